package state

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersion is written into every persisted ExecutionState. Snapshots
	// with a newer version are rejected on load.
	SchemaVersion = 1

	// MaxLogEntries bounds the rolling log.
	MaxLogEntries = 200
)

// Status is the run state of a script.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// Metrics accumulates over a run.
type Metrics struct {
	ActionsExecuted int            `json:"actions_executed"`
	XPGained        map[string]int `json:"xp_gained"`
	GoldGained      int            `json:"gold_gained"`
	ItemsGathered   map[string]int `json:"items_gathered"`
}

// ExecutionState is everything needed to resume a script for one character.
type ExecutionState struct {
	Version     int            `json:"version"`
	Character   string         `json:"character"`
	RunID       uuid.UUID      `json:"run_id"`
	Script      string         `json:"script"`
	CurrentLine int            `json:"current_line"`
	Vars        map[string]any `json:"vars"`
	Log         []string       `json:"log"`
	Status      Status         `json:"status"`
	Error       string         `json:"error,omitempty"`
	Metrics     Metrics        `json:"metrics"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewExecutionState creates a stopped state holding script, ready to run from
// the top.
func NewExecutionState(character, script string) *ExecutionState {
	s := &ExecutionState{
		Version:   SchemaVersion,
		Character: character,
		Status:    StatusStopped,
	}
	s.Reset(script)
	return s
}

// Reset replaces the script and clears everything derived from a previous run.
func (s *ExecutionState) Reset(script string) {
	s.Script = script
	s.RunID = uuid.New()
	s.CurrentLine = 0
	s.Vars = make(map[string]any)
	s.Log = make([]string, 0)
	s.Error = ""
	s.Metrics = Metrics{
		XPGained:      make(map[string]int),
		ItemsGathered: make(map[string]int),
	}
	s.StartedAt = time.Now()
}

// AppendLog adds a timestamped line and drops the oldest lines beyond
// MaxLogEntries.
func (s *ExecutionState) AppendLog(line string) {
	s.Log = append(s.Log, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line))
	s.TruncateLog()
}

// TruncateLog keeps only the newest MaxLogEntries lines.
func (s *ExecutionState) TruncateLog() {
	if n := len(s.Log); n > MaxLogEntries {
		s.Log = append([]string(nil), s.Log[n-MaxLogEntries:]...)
	}
}

// Normalize fills nil maps after decoding and enforces the log bound.
func (s *ExecutionState) Normalize() {
	if s.Vars == nil {
		s.Vars = make(map[string]any)
	}
	if s.Metrics.XPGained == nil {
		s.Metrics.XPGained = make(map[string]int)
	}
	if s.Metrics.ItemsGathered == nil {
		s.Metrics.ItemsGathered = make(map[string]int)
	}
	if s.Log == nil {
		s.Log = make([]string, 0)
	}
	s.TruncateLog()
}

// Validate reports whether a decoded snapshot can be used.
func (s *ExecutionState) Validate() error {
	if s.Version < 1 || s.Version > SchemaVersion {
		return fmt.Errorf("unsupported state version %d", s.Version)
	}
	switch s.Status {
	case StatusRunning, StatusPaused, StatusStopped, StatusError:
	default:
		return fmt.Errorf("unknown status %q", s.Status)
	}
	return nil
}

// LastLog returns the newest log line or "".
func (s *ExecutionState) LastLog() string {
	if len(s.Log) == 0 {
		return ""
	}
	return s.Log[len(s.Log)-1]
}

// Clone returns a deep copy, safe to hand to observers.
func (s *ExecutionState) Clone() *ExecutionState {
	out := *s
	out.Vars = make(map[string]any, len(s.Vars))
	for k, v := range s.Vars {
		out.Vars[k] = v
	}
	out.Log = append([]string(nil), s.Log...)
	out.Metrics.XPGained = make(map[string]int, len(s.Metrics.XPGained))
	for k, v := range s.Metrics.XPGained {
		out.Metrics.XPGained[k] = v
	}
	out.Metrics.ItemsGathered = make(map[string]int, len(s.Metrics.ItemsGathered))
	for k, v := range s.Metrics.ItemsGathered {
		out.Metrics.ItemsGathered[k] = v
	}
	return &out
}
