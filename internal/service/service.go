// Package service orchestrates submissions: room membership, admission
// control, record creation, and the hand-off to the execution queue.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/queue"
	"github.com/codecollab/execd/internal/store"
)

const defaultListLimit = 20

// RoomDirectory is the external room/membership collaborator. It returns
// domain.ErrRoomNotFound or domain.ErrNotAMember when the submission must
// be rejected.
type RoomDirectory interface {
	CheckMember(ctx context.Context, roomID, userID string) error
}

// Admitter is the per-user quota gate consulted before anything is stored.
type Admitter interface {
	TryAdmit(userID string) (bool, time.Duration)
}

// EventBridge publishes the initial QUEUED status event on enqueue.
type EventBridge interface {
	PublishStatus(roomID string, ev domain.StatusEvent)
}

type ExecutionService struct {
	rooms     RoomDirectory
	admission Admitter
	queue     *queue.Manager
	store     store.Store
	bridge    EventBridge
	logger    *zerolog.Logger
}

func New(
	rooms RoomDirectory,
	admission Admitter,
	q *queue.Manager,
	st store.Store,
	bridge EventBridge,
	logger *zerolog.Logger,
) *ExecutionService {
	return &ExecutionService{
		rooms:     rooms,
		admission: admission,
		queue:     q,
		store:     st,
		bridge:    bridge,
		logger:    logger,
	}
}

// SubmitResult is the synchronous response to a submission; the terminal
// outcome arrives later via events or polling.
type SubmitResult struct {
	ExecutionID string
	JobID       string
	Status      domain.Status
}

// Submit validates and accepts one execution request. Rejections happen
// before any record exists: unknown room, non-member, rate limited, or a
// saturated queue all leave no trace in the store.
func (s *ExecutionService) Submit(ctx context.Context, userID, roomID string, language domain.Language, code, input string) (SubmitResult, error) {
	if !language.Valid() {
		return SubmitResult{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedLanguage, language)
	}

	if err := s.rooms.CheckMember(ctx, roomID, userID); err != nil {
		return SubmitResult{}, err
	}

	if ok, retryAfter := s.admission.TryAdmit(userID); !ok {
		return SubmitResult{}, &domain.RateLimitedError{RetryAfter: retryAfter}
	}

	// Reserve queue capacity first so saturation rejects the submission
	// before a record is created.
	if err := s.queue.Reserve(); err != nil {
		return SubmitResult{}, err
	}

	req := domain.ExecutionRequest{
		ID:       uuid.NewString(),
		UserID:   userID,
		RoomID:   roomID,
		Language: language,
		Code:     code,
		Input:    input,
	}

	rec, err := s.store.Create(ctx, req)
	if err != nil {
		s.queue.Release()
		return SubmitResult{}, fmt.Errorf("create execution record: %w", err)
	}

	job := s.queue.NewJob(req)

	// Record bookkeeping and the QUEUED event must land before the job is
	// visible to workers: once enqueued, a worker may drive the record to a
	// terminal state at any time.
	if err := s.store.SetJobID(ctx, req.ID, job.JobID); err != nil {
		s.logger.Error().Err(err).Str("execution_id", req.ID).Msg("failed to record job id")
	}

	s.bridge.PublishStatus(roomID, domain.StatusEvent{
		ExecutionID: req.ID,
		JobID:       job.JobID,
		Status:      domain.StatusQueued,
		Progress:    domain.ProgressQueued,
	})

	s.queue.Enqueue(job)

	s.logger.Info().
		Str("execution_id", req.ID).
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Str("language", string(language)).
		Msg("execution queued")

	return SubmitResult{
		ExecutionID: rec.ID,
		JobID:       job.JobID,
		Status:      rec.Status,
	}, nil
}

// GetByID returns the execution record for a status query.
func (s *ExecutionService) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	return s.store.GetByID(ctx, id)
}

// ListRecent returns the user's most recent executions, newest first.
func (s *ExecutionService) ListRecent(ctx context.Context, userID string, limit int) ([]domain.ExecutionRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.store.ListRecent(ctx, userID, limit)
}
