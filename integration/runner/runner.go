package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/script-runner/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running script-runner API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	CharacterOverride string // If set, overrides the character for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           StatusTimeout,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	character := suite.Character
	if r.CharacterOverride != "" {
		character = r.CharacterOverride
	}
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results:   make([]TestResult, 0, len(suite.Steps)),
		Character: character,
	}
	if character == "" {
		result.Error = errors.New("suite has no character")
		return result, result.Error
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, character, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, character string, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	fail := func(err error) TestResult {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	exp := step.Expectations
	switch step.Action {
	case ActionRun:
		body := map[string]any{}
		if step.Script != "" {
			body["script"] = step.Script
		}
		if step.Fresh {
			body["fresh"] = true
		}
		_, err := PostAction(ctx, r.Client, r.BaseURL, character, ActionRun, body)
		if done, err := checkRejection(exp, err); done {
			if err != nil {
				return fail(err)
			}
			result.Success = true
			result.Duration = time.Since(start)
			return result
		}
	case ActionStop, ActionPause:
		if _, err := PostAction(ctx, r.Client, r.BaseURL, character, step.Action, nil); err != nil {
			return fail(err)
		}
	case ActionWait, "":
	default:
		return fail(fmt.Errorf("unknown step action %q", step.Action))
	}

	timeout := r.Timeout
	if exp.TimeoutSeconds > 0 {
		timeout = time.Duration(exp.TimeoutSeconds) * time.Second
	}
	st, err := PollForState(ctx, r.Client, r.BaseURL, character, timeout, func(st *state.ExecutionState) bool {
		return checkExpectations(exp, st) == nil
	})
	if st != nil {
		result.LastLog = st.LastLog()
	}
	if err != nil {
		if st != nil {
			if expErr := checkExpectations(exp, st); expErr != nil {
				return fail(fmt.Errorf("%w: %v", err, expErr))
			}
		}
		return fail(err)
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// checkRejection reports whether the step ends at the API response: either
// a rejection was expected, or the API refused the request unexpectedly.
func checkRejection(exp Expectations, err error) (bool, error) {
	var rejected *RejectedError
	if exp.RejectedWith == 0 {
		if err != nil {
			return true, err
		}
		return false, nil
	}
	if !errors.As(err, &rejected) {
		return true, fmt.Errorf("expected the API to reject with %d, got %v", exp.RejectedWith, err)
	}
	if rejected.StatusCode != exp.RejectedWith {
		return true, fmt.Errorf("expected rejection status %d, got %d", exp.RejectedWith, rejected.StatusCode)
	}
	if exp.RejectedOnLine != 0 && rejected.Line != exp.RejectedOnLine {
		return true, fmt.Errorf("expected rejection on line %d, got %d", exp.RejectedOnLine, rejected.Line)
	}
	return true, nil
}

// checkExpectations validates the test expectations against the current state
func checkExpectations(exp Expectations, st *state.ExecutionState) error {
	if exp.Status != "" && st.Status != exp.Status {
		return fmt.Errorf("expected status %s, got %s", exp.Status, st.Status)
	}

	if exp.CurrentLine != nil && st.CurrentLine != *exp.CurrentLine {
		return fmt.Errorf("expected current_line %d, got %d", *exp.CurrentLine, st.CurrentLine)
	}

	if exp.MinActions != nil && st.Metrics.ActionsExecuted < *exp.MinActions {
		return fmt.Errorf("expected at least %d actions, got %d", *exp.MinActions, st.Metrics.ActionsExecuted)
	}

	log := strings.ToLower(strings.Join(st.Log, "\n"))
	for _, expectedText := range exp.LogContains {
		if !strings.Contains(log, strings.ToLower(expectedText)) {
			return fmt.Errorf("expected log to contain '%s', but it didn't", expectedText)
		}
	}
	for _, unexpectedText := range exp.LogNotContains {
		if strings.Contains(log, strings.ToLower(unexpectedText)) {
			return fmt.Errorf("expected log to NOT contain '%s', but it did", unexpectedText)
		}
	}

	if exp.ErrorContains != "" && !strings.Contains(st.Error, exp.ErrorContains) {
		return fmt.Errorf("expected error to contain '%s', got '%s'", exp.ErrorContains, st.Error)
	}

	return nil
}
