package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codecollab/execd/internal/config"
	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/executor"
	"github.com/codecollab/execd/internal/metrics"
	"github.com/codecollab/execd/internal/queue"
	"github.com/codecollab/execd/internal/store"
)

// Executor runs one sandbox attempt. A non-nil error is a transient
// infrastructure failure and eligible for retry; guest failures are
// reported inside the Outcome and are terminal on first attempt.
type Executor interface {
	Execute(ctx context.Context, opts executor.ExecuteOptions) (*domain.Outcome, error)
}

// EventBridge receives lifecycle events for the job's room.
type EventBridge interface {
	PublishStatus(roomID string, ev domain.StatusEvent)
	PublishOutput(roomID string, ev domain.OutputEvent)
}

// Worker consumes jobs from the queue and drives each through the
// RUNNING -> terminal protocol. The record for a job is only ever written
// by the worker currently holding it.
type Worker struct {
	id       int
	executor Executor
	queue    *queue.Manager
	store    store.Store
	bridge   EventBridge
	starts   *rate.Limiter
	cfg      config.ExecutionConfig
	logger   *zerolog.Logger
}

func NewWorker(
	id int,
	exec Executor,
	manager *queue.Manager,
	st store.Store,
	bridge EventBridge,
	starts *rate.Limiter,
	cfg config.ExecutionConfig,
	logger *zerolog.Logger,
) *Worker {
	return &Worker{
		id:       id,
		executor: exec,
		queue:    manager,
		store:    st,
		bridge:   bridge,
		starts:   starts,
		cfg:      cfg,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Int("worker_id", w.id).Msg("worker started")
	for {
		select {
		case job := <-w.queue.Next():
			metrics.ActiveWorkers.Inc()
			w.process(ctx, job)
			metrics.ActiveWorkers.Dec()
		case <-ctx.Done():
			w.logger.Info().Int("worker_id", w.id).Msg("worker stopping")
			return
		}
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	attempt := w.queue.BeginAttempt(job)
	req := job.Request

	// Global cap on sandbox launches per second, independent of pool size.
	if err := w.starts.Wait(ctx); err != nil {
		return
	}

	w.logger.Info().
		Int("worker_id", w.id).
		Str("execution_id", req.ID).
		Str("job_id", job.JobID).
		Int("attempt", attempt).
		Str("language", string(req.Language)).
		Msg("processing job")

	if err := w.store.UpdateStatus(ctx, req.ID, domain.StatusRunning); err != nil {
		if errors.Is(err, domain.ErrTerminalState) {
			// Already terminal; nothing left to do for this job.
			w.queue.Release()
			return
		}
		w.logger.Error().Err(err).Str("execution_id", req.ID).Msg("failed to mark running")
	}
	w.bridge.PublishStatus(req.RoomID, domain.StatusEvent{
		ExecutionID: req.ID,
		JobID:       job.JobID,
		Status:      domain.StatusRunning,
		Progress:    domain.ProgressRunning,
	})

	outcome, execErr := w.executor.Execute(ctx, executor.ExecuteOptions{
		Language:       req.Language,
		SourceCode:     req.Code,
		Stdin:          req.Input,
		TimeoutMs:      w.cfg.TimeoutMs,
		MemoryLimitKb:  w.cfg.MemoryLimitKb,
		CPUQuotaMicros: w.cfg.CPUQuotaMicros,
	})

	if execErr != nil {
		w.handleTransient(ctx, job, execErr)
		return
	}

	w.finish(ctx, job, outcome)
}

// handleTransient requeues an infrastructure failure while attempts
// remain, otherwise fails the job terminally. The retry-vs-terminal
// decision belongs to the queue's attempt counter, not to the worker.
func (w *Worker) handleTransient(ctx context.Context, job *queue.Job, execErr error) {
	req := job.Request
	metrics.ExecutionsTotal.WithLabelValues(string(req.Language), "transient_error").Inc()

	w.logger.Warn().Err(execErr).
		Str("execution_id", req.ID).
		Int("attempt", job.Attempt).
		Msg("transient execution failure")

	if w.queue.CanRetry(job) {
		if err := w.store.UpdateStatus(ctx, req.ID, domain.StatusQueued); err != nil {
			w.logger.Error().Err(err).Str("execution_id", req.ID).Msg("failed to requeue status")
		}
		// The attempt's terminal progress marker, then the re-enqueue event,
		// both before the next attempt can claim the job.
		w.bridge.PublishStatus(req.RoomID, domain.StatusEvent{
			ExecutionID: req.ID,
			JobID:       job.JobID,
			Status:      domain.StatusRunning,
			Progress:    domain.ProgressComplete,
		})
		w.bridge.PublishStatus(req.RoomID, domain.StatusEvent{
			ExecutionID: req.ID,
			JobID:       job.JobID,
			Status:      domain.StatusQueued,
			Progress:    domain.ProgressQueued,
		})
		w.queue.Requeue(job)
		return
	}

	// Attempt budget exhausted.
	w.finish(ctx, job, &domain.Outcome{
		Success:        false,
		CombinedOutput: execErr.Error(),
		ErrorDetail:    execErr.Error(),
	})
}

// finish persists the terminal outcome and emits the output event plus the
// attempt's terminal progress marker, in that lifecycle order.
func (w *Worker) finish(ctx context.Context, job *queue.Job, outcome *domain.Outcome) {
	req := job.Request
	defer w.queue.Release()

	status := domain.StatusCompleted
	errMsg := ""
	if !outcome.Success {
		status = domain.StatusFailed
		errMsg = outcome.ErrorDetail
	}

	update := store.ResultUpdate{
		Status:       status,
		Output:       outcome.CombinedOutput,
		ErrorMessage: errMsg,
		ExecTimeMs:   outcome.DurationMs,
		MemoryUsedKb: outcome.MemoryKb,
	}
	// A terminal record never surfaces an empty output when a diagnostic
	// exists.
	if update.Output == "" {
		update.Output = errMsg
	}

	if err := w.store.SaveResult(ctx, req.ID, update); err != nil {
		if errors.Is(err, domain.ErrTerminalState) {
			w.logger.Warn().Str("execution_id", req.ID).Msg("result for already-terminal execution dropped")
			return
		}
		// The sandbox outcome must not be silently lost; keep it in the log
		// so record and events can be reconciled.
		w.logger.Error().Err(err).
			Str("execution_id", req.ID).
			Str("status", string(status)).
			Str("output", update.Output).
			Msg("failed to persist execution result")
	}

	w.bridge.PublishOutput(req.RoomID, domain.OutputEvent{
		ExecutionID: req.ID,
		JobID:       job.JobID,
		Status:      status,
		Output:      update.Output,
	})
	w.bridge.PublishStatus(req.RoomID, domain.StatusEvent{
		ExecutionID: req.ID,
		JobID:       job.JobID,
		Status:      status,
		Progress:    domain.ProgressComplete,
	})

	metrics.ExecutionsTotal.WithLabelValues(string(req.Language), statusLabel(outcome)).Inc()
	metrics.ExecutionDuration.WithLabelValues(string(req.Language)).Observe(float64(outcome.DurationMs))
	if outcome.MemoryKb > 0 {
		metrics.MemoryUsage.WithLabelValues(string(req.Language)).Observe(float64(outcome.MemoryKb))
	}

	w.logger.Info().
		Int("worker_id", w.id).
		Str("execution_id", req.ID).
		Str("status", string(status)).
		Int64("duration_ms", outcome.DurationMs).
		Msg("job finished")
}

func statusLabel(outcome *domain.Outcome) string {
	if outcome.Success {
		return "success"
	}
	if outcome.FailureKind != domain.FailureNone {
		return string(outcome.FailureKind)
	}
	return "failed"
}
