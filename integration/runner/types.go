package runner

import (
	"time"

	"github.com/jwebster45206/script-runner/pkg/state"
)

// Step actions. A step with no action waits for its expectations.
const (
	ActionRun   = "run"
	ActionStop  = "stop"
	ActionPause = "pause"
	ActionWait  = "wait"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name      string     `json:"name"`
	Character string     `json:"character,omitempty"` // Used for regular tests
	Steps     []TestStep `json:"steps,omitempty"`     // Used for regular tests
	Cases     []string   `json:"cases,omitempty"`     // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one API call followed by a wait for its expectations.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	Script       string       `json:"script,omitempty"`
	Fresh        bool         `json:"fresh,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Status         state.Status `json:"status,omitempty"`
	CurrentLine    *int         `json:"current_line,omitempty"`
	MinActions     *int         `json:"min_actions,omitempty"`
	LogContains    []string     `json:"log_contains,omitempty"`
	LogNotContains []string     `json:"log_not_contains,omitempty"`
	ErrorContains  string       `json:"error_contains,omitempty"`
	RejectedWith   int          `json:"rejected_with,omitempty"` // HTTP status when the API should refuse the step
	RejectedOnLine int          `json:"rejected_on_line,omitempty"`
	TimeoutSeconds int          `json:"timeout_seconds,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	LastLog  string
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job       TestJob
	Results   []TestResult
	Error     error
	Duration  time.Duration
	Character string
}
