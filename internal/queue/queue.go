package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/metrics"
)

// Job is the queue-visible unit of work: a reference to an execution
// request plus retry bookkeeping. The queue owns it until a worker claims
// it; at most one attempt is in flight at any time.
type Job struct {
	Request    domain.ExecutionRequest
	JobID      string
	Attempt    int
	EnqueuedAt time.Time
}

type Config struct {
	Capacity    int
	MaxAttempts int
	BackoffBase time.Duration
}

// Manager buffers jobs between submission and execution, enforces the
// queue depth ceiling, and schedules bounded-backoff retries for transient
// failures. Capacity is reserved before a record exists and released only
// at terminal state, so retries never re-contend for a slot.
type Manager struct {
	cfg Config
	ch  chan *Job

	mu       sync.Mutex
	inflight int

	clock func() time.Time
	after func(d time.Duration, f func()) // injectable for tests
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Manager{
		cfg:   cfg,
		ch:    make(chan *Job, cfg.Capacity),
		clock: time.Now,
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// WithClock overrides the time source. Test hook.
func (m *Manager) WithClock(clock func() time.Time) *Manager {
	m.clock = clock
	return m
}

// WithAfter overrides retry scheduling. Test hook.
func (m *Manager) WithAfter(after func(d time.Duration, f func())) *Manager {
	m.after = after
	return m
}

// Reserve claims a capacity slot for a new submission. It must be called
// before the execution record is created so that a saturated queue rejects
// the submission without leaving a record behind.
func (m *Manager) Reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight >= m.cfg.Capacity {
		metrics.QueueSaturations.Inc()
		return domain.ErrQueueSaturated
	}
	m.inflight++
	return nil
}

// Release frees the slot held by a job that reached a terminal state.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight > 0 {
		m.inflight--
	}
}

// NewJob wraps a request with a queue-assigned job id.
func (m *Manager) NewJob(req domain.ExecutionRequest) *Job {
	return &Job{
		Request:    req,
		JobID:      uuid.NewString(),
		EnqueuedAt: m.clock(),
	}
}

// Enqueue hands the job to the worker pool. The caller must hold a
// reservation, which guarantees channel room; the send never blocks.
func (m *Manager) Enqueue(job *Job) {
	m.ch <- job
	metrics.QueueDepth.Set(float64(len(m.ch)))
}

// Next exposes the job stream consumed by workers. FIFO for first
// attempts; delayed retries land wherever their backoff puts them.
func (m *Manager) Next() <-chan *Job {
	return m.ch
}

// BeginAttempt marks a dequeued job as claimed and returns the attempt
// number, counting from 1.
func (m *Manager) BeginAttempt(job *Job) int {
	job.Attempt++
	metrics.QueueDepth.Set(float64(len(m.ch)))
	return job.Attempt
}

// CanRetry reports whether the job has attempt budget left.
func (m *Manager) CanRetry(job *Job) bool {
	return job.Attempt < m.cfg.MaxAttempts
}

// Requeue schedules another attempt after an exponential backoff delay.
// It reports false once the attempt budget is exhausted; the caller then
// marks the job terminally failed. Callers must finish their record
// bookkeeping before requeueing: once scheduled, the next attempt may
// claim the job at any time.
func (m *Manager) Requeue(job *Job) bool {
	if !m.CanRetry(job) {
		return false
	}
	metrics.RetriesTotal.Inc()
	delay := Delay(m.cfg.BackoffBase, job.Attempt)
	m.after(delay, func() {
		m.ch <- job
		metrics.QueueDepth.Set(float64(len(m.ch)))
	})
	return true
}

// Depth returns the number of jobs waiting in the queue.
func (m *Manager) Depth() int {
	return len(m.ch)
}

// Delay computes the backoff before retry number attempt+1, given attempt
// completed attempts: base, 2*base, 4*base, ...
func Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
