package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/queue"
	"github.com/codecollab/execd/internal/service"
	"github.com/codecollab/execd/internal/store"
)

type allowAll struct{}

func (allowAll) TryAdmit(string) (bool, time.Duration) { return true, 0 }

type denyAll struct{ retryAfter time.Duration }

func (d denyAll) TryAdmit(string) (bool, time.Duration) { return false, d.retryAfter }

type silentBridge struct{}

func (silentBridge) PublishStatus(string, domain.StatusEvent) {}

func newTestRouter(t *testing.T, adm service.Admitter, queueCapacity int) chi.Router {
	t.Helper()

	rooms := service.NewMemoryRooms()
	rooms.AddMember("room1", "u1")

	q := queue.NewManager(queue.Config{Capacity: queueCapacity, MaxAttempts: 3, BackoffBase: time.Second})
	st := store.NewMemory()
	logger := zerolog.Nop()
	svc := service.New(rooms, adm, q, st, silentBridge{}, &logger)

	r := chi.NewRouter()
	NewHandler(svc, &logger).Routes(r)
	return r
}

func submitBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(ExecutionRequest{
		RoomID:   "room1",
		Language: "python",
		Code:     "print('hi')",
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(b)
}

func TestSubmitAccepted(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	req := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", w.Code, w.Body.String())
	}
	var resp ExecutionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(domain.StatusQueued) {
		t.Errorf("Status = %q, want QUEUED", resp.Status)
	}
	if resp.ExecutionID == "" || resp.JobID == "" {
		t.Errorf("ids must be present: %+v", resp)
	}
}

func TestSubmitMissingIdentity(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	req := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSubmitMissingFields(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	b, _ := json.Marshal(ExecutionRequest{RoomID: "room1", Language: "python"})
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewBuffer(b))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSubmitUnsupportedLanguage(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	b, _ := json.Marshal(ExecutionRequest{RoomID: "room1", Language: "cobol", Code: "x"})
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewBuffer(b))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSubmitUnknownRoom(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	b, _ := json.Marshal(ExecutionRequest{RoomID: "ghost", Language: "python", Code: "x"})
	req := httptest.NewRequest(http.MethodPost, "/executions", bytes.NewBuffer(b))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSubmitNonMember(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	req := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	req.Header.Set("X-User-Id", "intruder")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	r := newTestRouter(t, denyAll{retryAfter: 30 * time.Second}, 10)

	req := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "31" {
		t.Errorf("Retry-After = %q, want 31", got)
	}
}

func TestSubmitQueueSaturated(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 1)

	first := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	first.Header.Set("X-User-Id", "u1")
	r.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	second.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, second)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetByID(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	submit := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
	submit.Header.Set("X-User-Id", "u1")
	sw := httptest.NewRecorder()
	r.ServeHTTP(sw, submit)

	var resp ExecutionResponse
	if err := json.NewDecoder(sw.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/executions/"+resp.ExecutionID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var rec RecordResponse
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != resp.ExecutionID || rec.Status != string(domain.StatusQueued) {
		t.Errorf("unexpected record: %+v", rec)
	}

}

func TestGetByIDNotFound(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/executions/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListRequiresIdentity(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	req := httptest.NewRequest(http.MethodGet, "/executions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestListReturnsOwnExecutions(t *testing.T) {
	r := newTestRouter(t, allowAll{}, 10)

	for i := 0; i < 3; i++ {
		submit := httptest.NewRequest(http.MethodPost, "/executions", submitBody(t))
		submit.Header.Set("X-User-Id", "u1")
		r.ServeHTTP(httptest.NewRecorder(), submit)
	}

	req := httptest.NewRequest(http.MethodGet, "/executions?limit=2", nil)
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var recs []RecordResponse
	if err := json.NewDecoder(w.Body).Decode(&recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}
}
