package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/codecollab/execd/internal/domain"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and
// single-node deployments that do not need durable history.
type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.ExecutionRecord
	clock   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]domain.ExecutionRecord),
		clock:   time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	m.clock = clock
	return m
}

func (m *Memory) Create(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	rec := domain.ExecutionRecord{
		ID:        req.ID,
		UserID:    req.UserID,
		RoomID:    req.RoomID,
		Language:  req.Language,
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.records[req.ID] = rec
	return rec, nil
}

func (m *Memory) SetJobID(ctx context.Context, id, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.JobID = jobID
	rec.UpdatedAt = m.clock()
	m.records[id] = rec
	return nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id string, status domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return domain.ErrTerminalState
	}
	rec.Status = status
	rec.UpdatedAt = m.clock()
	m.records[id] = rec
	return nil
}

func (m *Memory) SaveResult(ctx context.Context, id string, res ResultUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.Status.IsTerminal() {
		return domain.ErrTerminalState
	}
	rec.Status = res.Status
	rec.Output = res.Output
	rec.ErrorMessage = res.ErrorMessage
	rec.ExecTimeMs = res.ExecTimeMs
	rec.MemoryUsedKb = res.MemoryUsedKb
	rec.UpdatedAt = m.clock()
	m.records[id] = rec
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ExecutionRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListRecent(ctx context.Context, userID string, limit int) ([]domain.ExecutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []domain.ExecutionRecord
	for _, rec := range m.records {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
