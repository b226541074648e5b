package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jwebster45206/script-runner/pkg/state"
	"github.com/jwebster45206/script-runner/pkg/storage"
)

// FileStorage keeps one JSON file per character under a directory, plus a ring
// of numbered backups (name.json.1 is the newest backup).
type FileStorage struct {
	dir     string
	backups int
	logger  *slog.Logger
	mu      sync.Mutex
}

// Ensure FileStorage implements Storage interface
var _ storage.Storage = (*FileStorage)(nil)

// NewFileStorage creates a file store rooted at dir keeping backups prior
// snapshots.
func NewFileStorage(dir string, backups int, logger *slog.Logger) *FileStorage {
	if dir == "" {
		dir = "./data/state"
	}
	return &FileStorage{
		dir:     dir,
		backups: max(backups, 0),
		logger:  logger,
	}
}

func (f *FileStorage) Ping(ctx context.Context) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("state directory unavailable: %w", err)
	}
	return nil
}

func (f *FileStorage) Close() error {
	return nil
}

func (f *FileStorage) path(character string) string {
	return filepath.Join(f.dir, fileName(character)+".json")
}

func backupPath(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// fileName maps a character name to a safe file name. Bytes outside
// [A-Za-z0-9_-] are written as %XX so the mapping reverses exactly.
func fileName(character string) string {
	var b strings.Builder
	for i := 0; i < len(character); i++ {
		c := character[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// characterName reverses fileName.
func characterName(file string) (string, error) {
	return url.PathUnescape(file)
}

// SaveExecutionState writes the snapshot to a temp file, rotates the backup
// ring and renames the temp file over the canonical one. The canonical file
// exists at every point of a save.
func (f *FileStorage) SaveExecutionState(ctx context.Context, st *state.ExecutionState) error {
	if st == nil {
		return errors.New("execution state cannot be nil")
	}
	st.TruncateLog()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		f.logger.Error("Failed to marshal execution state", "character", st.Character, "error", err)
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	path := f.path(st.Character)

	tmp, err := os.CreateTemp(f.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write execution state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync execution state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close execution state: %w", err)
	}
	f.rotate(path)
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		f.logger.Error("Failed to save execution state", "character", st.Character, "error", err)
		return fmt.Errorf("failed to save execution state: %w", err)
	}
	return nil
}

// rotate shifts path.1..path.N-1 up by one and links path as path.1, leaving
// path itself in place.
func (f *FileStorage) rotate(path string) {
	if f.backups == 0 {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	for i := f.backups - 1; i >= 1; i-- {
		if err := os.Rename(backupPath(path, i), backupPath(path, i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("Failed to rotate state backup", "path", backupPath(path, i), "error", err)
		}
	}
	first := backupPath(path, 1)
	if err := os.Remove(first); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("Failed to rotate state backup", "path", first, "error", err)
		return
	}
	if err := os.Link(path, first); err == nil {
		return
	}
	// Hard links are not available everywhere; fall back to a copy.
	data, err := os.ReadFile(path)
	if err == nil {
		err = os.WriteFile(first, data, 0o644)
	}
	if err != nil {
		f.logger.Warn("Failed to rotate state backup", "path", path, "error", err)
	}
}

// LoadExecutionState returns the newest snapshot that decodes and validates,
// trying the canonical file first and then each backup.
func (f *FileStorage) LoadExecutionState(ctx context.Context, character string) (*state.ExecutionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(character)
	candidates := []string{path}
	for i := 1; i <= f.backups; i++ {
		candidates = append(candidates, backupPath(path, i))
	}

	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				f.logger.Warn("Failed to read execution state", "path", p, "error", err)
			}
			continue
		}
		var st state.ExecutionState
		if err := json.Unmarshal(data, &st); err != nil {
			f.logger.Warn("Skipping corrupt execution state", "path", p, "error", err)
			continue
		}
		if err := st.Validate(); err != nil {
			f.logger.Warn("Skipping invalid execution state", "path", p, "error", err)
			continue
		}
		st.Normalize()
		if p != path {
			f.logger.Info("Recovered execution state from backup", "path", p)
		}
		return &st, nil
	}
	return nil, nil
}

func (f *FileStorage) DeleteExecutionState(ctx context.Context, character string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(character)
	paths := []string{path}
	for i := 1; i <= f.backups; i++ {
		paths = append(paths, backupPath(path, i))
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete execution state: %w", err)
		}
	}
	return nil
}

func (f *FileStorage) ListCharacters(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		name, err := characterName(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			f.logger.Warn("Skipping unrecognised state file", "file", entry.Name(), "error", err)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
