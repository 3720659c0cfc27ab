// Package store persists execution records. The rest of the pipeline
// consumes the Store interface; Postgres and in-memory implementations are
// provided.
package store

import (
	"context"

	"github.com/codecollab/execd/internal/domain"
)

// ResultUpdate is the terminal write folded from an execution outcome.
type ResultUpdate struct {
	Status       domain.Status
	Output       string
	ErrorMessage string
	ExecTimeMs   int64
	MemoryUsedKb int64
}

// Store is the durable record of each execution request and its state.
// Implementations must reject transitions out of COMPLETED/FAILED with
// domain.ErrTerminalState; that guard is what makes terminal states
// immutable under replays and duplicate events.
type Store interface {
	Create(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionRecord, error)
	SetJobID(ctx context.Context, id, jobID string) error
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	SaveResult(ctx context.Context, id string, res ResultUpdate) error
	GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.ExecutionRecord, error)
}
