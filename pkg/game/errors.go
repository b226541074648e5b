package game

import (
	"errors"
	"fmt"
	"time"
)

// FailureClass groups action failures by how the caller should react.
type FailureClass int

const (
	// FailureGeneric covers network faults and any unclassified server error.
	FailureGeneric FailureClass = iota
	// FailureCooldown means the character is still on cooldown.
	FailureCooldown
	// FailureAlreadySatisfied means the action's goal already holds (e.g.
	// already at the destination).
	FailureAlreadySatisfied
	// FailureNoTarget means there is nothing on the tile to act on.
	FailureNoTarget
	// FailureMalformed means the server accepted the action but its reply
	// could not be read. The action may have run, so it is never retried.
	FailureMalformed
)

func (c FailureClass) String() string {
	switch c {
	case FailureCooldown:
		return "cooldown"
	case FailureAlreadySatisfied:
		return "already_satisfied"
	case FailureNoTarget:
		return "no_target"
	case FailureMalformed:
		return "malformed_response"
	default:
		return "generic"
	}
}

var (
	ErrCooldown         = errors.New("character in cooldown")
	ErrAlreadySatisfied = errors.New("action already satisfied")
	ErrNoTarget         = errors.New("no valid target on tile")
	ErrNotFound         = errors.New("not found")
	ErrMalformed        = errors.New("malformed response")
)

// ActionError is a failed action as reported by the game API.
type ActionError struct {
	Class   FailureClass
	Code    int
	Message string
	// Remaining and Expiration are set for cooldown failures. Expiration is
	// authoritative when present.
	Remaining  time.Duration
	Expiration time.Time
}

func (e *ActionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Class, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// Is lets errors.Is match the class sentinels.
func (e *ActionError) Is(target error) bool {
	switch target {
	case ErrCooldown:
		return e.Class == FailureCooldown
	case ErrAlreadySatisfied:
		return e.Class == FailureAlreadySatisfied
	case ErrNoTarget:
		return e.Class == FailureNoTarget
	case ErrMalformed:
		return e.Class == FailureMalformed
	}
	return false
}

// CooldownWait returns how long to wait before retrying a cooldown failure,
// preferring the server's expiration timestamp.
func (e *ActionError) CooldownWait(now time.Time) time.Duration {
	if !e.Expiration.IsZero() {
		return max(e.Expiration.Sub(now), 0)
	}
	return e.Remaining
}

// ClassOf reports the failure class of err. Non-ActionError errors are generic.
func ClassOf(err error) FailureClass {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Class
	}
	return FailureGeneric
}
