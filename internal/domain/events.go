package domain

// Progress markers attached to status events. Enqueue is 0, a claimed job
// reports 10, and every attempt ends with exactly one 100.
const (
	ProgressQueued   = 0
	ProgressRunning  = 10
	ProgressComplete = 100
)

// StatusEvent announces a lifecycle transition to the room audience.
type StatusEvent struct {
	ExecutionID string `json:"executionId"`
	JobID       string `json:"jobId"`
	Status      Status `json:"status"`
	Progress    int    `json:"progress"`
}

// OutputEvent delivers the terminal result to the room audience. It is
// emitted exactly once per execution, never before the corresponding
// RUNNING status event. Consumers must treat duplicates as idempotent.
type OutputEvent struct {
	ExecutionID string `json:"executionId"`
	JobID       string `json:"jobId"`
	Status      Status `json:"status"`
	Output      string `json:"output"`
}

// Event is the union delivered on a room subscription channel; exactly one
// of Status/Output is set.
type Event struct {
	RoomID string
	Status *StatusEvent
	Output *OutputEvent
}
