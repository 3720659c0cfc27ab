package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/codecollab/execd/internal/domain"
)

func req(id string) domain.ExecutionRequest {
	return domain.ExecutionRequest{ID: id, UserID: "u1", RoomID: "r1", Language: domain.LangPython}
}

func TestDelay(t *testing.T) {
	base := 2 * time.Second
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{0, 2 * time.Second}, // clamped
	}
	for _, tt := range tests {
		if got := Delay(base, tt.attempt); got != tt.want {
			t.Errorf("Delay(base, %d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestReserveSaturation(t *testing.T) {
	m := NewManager(Config{Capacity: 2, MaxAttempts: 3, BackoffBase: time.Second})

	if err := m.Reserve(); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := m.Reserve(); err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if err := m.Reserve(); err != domain.ErrQueueSaturated {
		t.Fatalf("third reserve = %v, want ErrQueueSaturated", err)
	}

	m.Release()
	if err := m.Reserve(); err != nil {
		t.Fatalf("reserve after release: %v", err)
	}
}

func TestEnqueueFIFO(t *testing.T) {
	m := NewManager(Config{Capacity: 10, MaxAttempts: 3, BackoffBase: time.Second})

	for _, id := range []string{"a", "b", "c"} {
		if err := m.Reserve(); err != nil {
			t.Fatal(err)
		}
		m.Enqueue(m.NewJob(req(id)))
	}

	if m.Depth() != 3 {
		t.Fatalf("Depth = %d, want 3", m.Depth())
	}

	for _, want := range []string{"a", "b", "c"} {
		job := <-m.Next()
		if job.Request.ID != want {
			t.Errorf("dequeued %q, want %q", job.Request.ID, want)
		}
	}
}

func TestBeginAttemptCounts(t *testing.T) {
	m := NewManager(Config{Capacity: 1, MaxAttempts: 3, BackoffBase: time.Second})
	job := m.NewJob(req("a"))

	if got := m.BeginAttempt(job); got != 1 {
		t.Errorf("first attempt = %d", got)
	}
	if got := m.BeginAttempt(job); got != 2 {
		t.Errorf("second attempt = %d", got)
	}
}

func TestRequeueSchedulesBackoff(t *testing.T) {
	var mu sync.Mutex
	var delays []time.Duration

	m := NewManager(Config{Capacity: 5, MaxAttempts: 3, BackoffBase: 2 * time.Second}).
		WithAfter(func(d time.Duration, f func()) {
			mu.Lock()
			delays = append(delays, d)
			mu.Unlock()
			f()
		})

	if err := m.Reserve(); err != nil {
		t.Fatal(err)
	}
	m.Enqueue(m.NewJob(req("a")))

	job := <-m.Next()
	m.BeginAttempt(job) // attempt 1
	if !m.Requeue(job) {
		t.Fatal("first requeue should be scheduled")
	}
	job = <-m.Next()
	m.BeginAttempt(job) // attempt 2
	if !m.Requeue(job) {
		t.Fatal("second requeue should be scheduled")
	}
	job = <-m.Next()
	m.BeginAttempt(job) // attempt 3
	if m.Requeue(job) {
		t.Fatal("requeue past MaxAttempts must be refused")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %s, want %s", i, delays[i], want[i])
		}
	}

	if m.Depth() != 0 {
		t.Errorf("Depth = %d, want 0", m.Depth())
	}
}

func TestNewJobAssignsID(t *testing.T) {
	m := NewManager(Config{Capacity: 1, MaxAttempts: 1, BackoffBase: time.Second})
	a := m.NewJob(req("a"))
	b := m.NewJob(req("b"))

	if a.JobID == "" || b.JobID == "" {
		t.Fatal("job ids must be assigned")
	}
	if a.JobID == b.JobID {
		t.Fatal("job ids must be unique")
	}
	if a.EnqueuedAt.IsZero() {
		t.Fatal("EnqueuedAt must be set")
	}
}
