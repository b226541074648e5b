package queue

import (
	"encoding/json"
	"time"
)

// Control is a run-control signal posted for a character.
type Control string

const (
	ControlStop  Control = "stop"
	ControlPause Control = "pause"
)

// Request asks a worker to run a script for a character.
type Request struct {
	RequestID string `json:"request_id"`
	Character string `json:"character"`

	// Script is the source to start. Empty resumes the stored script.
	Script string `json:"script,omitempty"`

	// Fresh discards stored progress when Script is empty.
	Fresh bool `json:"fresh,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
