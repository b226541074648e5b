package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jwebster45206/script-runner/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	states    map[string]*state.ExecutionState
	saves     int
	pingError error
	saveError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		states: make(map[string]*state.ExecutionState),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every save fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// Saves reports how many successful saves happened
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

// SaveExecutionState stores a copy so later mutation by the caller is not visible
func (m *MockStorage) SaveExecutionState(ctx context.Context, st *state.ExecutionState) error {
	if st == nil {
		return errors.New("execution state cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.states[st.Character] = st.Clone()
	m.saves++
	return nil
}

func (m *MockStorage) LoadExecutionState(ctx context.Context, character string) (*state.ExecutionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, exists := m.states[character]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return st.Clone(), nil
}

func (m *MockStorage) DeleteExecutionState(ctx context.Context, character string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, character)
	return nil
}

func (m *MockStorage) ListCharacters(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
