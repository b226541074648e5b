package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jwebster45206/script-runner/pkg/state"
)

const (
	// PollInterval is how often to check the execution state for updates
	PollInterval = 500 * time.Millisecond
	// StatusTimeout is the default wait for an expected status
	StatusTimeout = 30 * time.Second
)

// RejectedError is returned when the API refuses a request.
type RejectedError struct {
	StatusCode int
	Message    string
	Line       int
}

func (e *RejectedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("API returned %d: %s (line %d)", e.StatusCode, e.Message, e.Line)
	}
	return fmt.Sprintf("API returned %d: %s", e.StatusCode, e.Message)
}

// RunResponse is the response from the run endpoint
type RunResponse struct {
	RequestID string `json:"request_id"`
	Character string `json:"character"`
}

// PostAction posts run, stop or pause for a character. body is only sent for run.
func PostAction(ctx context.Context, client *http.Client, baseURL, character, action string, body any) (*RunResponse, error) {
	var payload io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", action, err)
		}
		payload = bytes.NewBuffer(reqBody)
	}

	endpoint := fmt.Sprintf("%s/v1/characters/%s/%s", baseURL, url.PathEscape(character), action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		rejected := &RejectedError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
			Line  int    `json:"line"`
		}
		respBody, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(respBody, &errResp) == nil {
			rejected.Message = errResp.Error
			rejected.Line = errResp.Line
		} else {
			rejected.Message = string(respBody)
		}
		return nil, rejected
	}

	var runResp RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", action, err)
	}
	return &runResp, nil
}

// GetState retrieves the character's execution state. It returns nil, nil
// when nothing is stored.
func GetState(ctx context.Context, client *http.Client, baseURL, character string) (*state.ExecutionState, error) {
	endpoint := fmt.Sprintf("%s/v1/characters/%s/state", baseURL, url.PathEscape(character))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create state request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send state request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("state endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var st state.ExecutionState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &st, nil
}

// PollForState polls until done reports true for the current state, and
// returns that state.
func PollForState(ctx context.Context, client *http.Client, baseURL, character string, timeout time.Duration, done func(*state.ExecutionState) bool) (*state.ExecutionState, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var last *state.ExecutionState
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-deadline:
			if last == nil {
				return nil, fmt.Errorf("timeout waiting for state (waited %v)", timeout)
			}
			return last, fmt.Errorf("timeout waiting for state (waited %v, last status %s)", timeout, last.Status)
		case <-ticker.C:
			st, err := GetState(ctx, client, baseURL, character)
			if err != nil || st == nil {
				// Log error but continue polling
				continue
			}
			last = st
			if done(st) {
				return st, nil
			}
		}
	}
}
