package storage

import (
	"context"

	"github.com/jwebster45206/script-runner/pkg/state"
)

// Storage persists execution state per character. Implementations must never
// expose a partially written snapshot to Load.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveExecutionState replaces the stored snapshot, keeping earlier ones as
	// backups where the backend supports it.
	SaveExecutionState(ctx context.Context, st *state.ExecutionState) error
	// LoadExecutionState returns the newest valid snapshot, or nil when none
	// exists.
	LoadExecutionState(ctx context.Context, character string) (*state.ExecutionState, error)
	DeleteExecutionState(ctx context.Context, character string) error

	// ListCharacters returns every character with stored state.
	ListCharacters(ctx context.Context) ([]string, error)
}
