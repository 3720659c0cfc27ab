package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/codecollab/execd/internal/domain"
)

func newReq(id, userID string) domain.ExecutionRequest {
	return domain.ExecutionRequest{
		ID:       id,
		UserID:   userID,
		RoomID:   "room1",
		Language: domain.LangPython,
		Code:     "print('hi')",
	}
}

func TestCreateStartsQueued(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	rec, err := m.Create(ctx, newReq("e1", "u1"))
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.StatusQueued {
		t.Errorf("Status = %s, want QUEUED", rec.Status)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt must be set")
	}
}

func TestTerminalStateIsImmutable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Create(ctx, newReq("e1", "u1"))

	res := ResultUpdate{Status: domain.StatusCompleted, Output: "hi", ExecTimeMs: 5}
	if err := m.SaveResult(ctx, "e1", res); err != nil {
		t.Fatal(err)
	}

	if err := m.UpdateStatus(ctx, "e1", domain.StatusRunning); !errors.Is(err, domain.ErrTerminalState) {
		t.Errorf("UpdateStatus after terminal = %v, want ErrTerminalState", err)
	}
	if err := m.SaveResult(ctx, "e1", ResultUpdate{Status: domain.StatusFailed, Output: "late"}); !errors.Is(err, domain.ErrTerminalState) {
		t.Errorf("SaveResult after terminal = %v, want ErrTerminalState", err)
	}

	rec, _ := m.GetByID(ctx, "e1")
	if rec.Status != domain.StatusCompleted || rec.Output != "hi" {
		t.Errorf("terminal record mutated: %+v", rec)
	}
}

func TestStatusOscillationBeforeTerminal(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Create(ctx, newReq("e1", "u1"))

	transitions := []domain.Status{
		domain.StatusRunning,
		domain.StatusQueued, // requeued retry
		domain.StatusRunning,
	}
	for _, st := range transitions {
		if err := m.UpdateStatus(ctx, "e1", st); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", st, err)
		}
	}
}

func TestGetByIDNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRecentOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })

	for _, id := range []string{"e1", "e2", "e3"} {
		m.Create(ctx, newReq(id, "u1"))
		now = now.Add(time.Second)
	}
	m.Create(ctx, newReq("other", "u2"))

	recs, err := m.ListRecent(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].ID != "e3" || recs[1].ID != "e2" {
		t.Errorf("order = %s, %s; want e3, e2", recs[0].ID, recs[1].ID)
	}
}

func TestSetJobID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Create(ctx, newReq("e1", "u1"))

	if err := m.SetJobID(ctx, "e1", "job-42"); err != nil {
		t.Fatal(err)
	}
	rec, _ := m.GetByID(ctx, "e1")
	if rec.JobID != "job-42" {
		t.Errorf("JobID = %q", rec.JobID)
	}

	if err := m.SetJobID(ctx, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
