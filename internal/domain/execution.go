package domain

import "time"

// Status is the lifecycle state of an execution record.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Language identifies a supported guest runtime.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangCpp        Language = "cpp"
	LangJava       Language = "java"
)

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LangJavaScript, LangPython, LangCpp, LangJava:
		return true
	}
	return false
}

// ExecutionRequest is the immutable submission input. Created once, never
// mutated afterwards.
type ExecutionRequest struct {
	ID       string
	UserID   string
	RoomID   string
	Language Language
	Code     string
	Input    string
}

// ExecutionRecord is the durable, queryable record of a submission's
// lifecycle and result. It shares its ID with the originating request.
// Output is set only when the record is terminal.
type ExecutionRecord struct {
	ID           string
	UserID       string
	RoomID       string
	Language     Language
	Status       Status
	Output       string
	ErrorMessage string
	ExecTimeMs   int64
	MemoryUsedKb int64
	JobID        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Outcome is the normalized result of a single sandbox attempt. It is
// transient: workers fold it into the execution record.
type Outcome struct {
	Success        bool
	CombinedOutput string
	DurationMs     int64
	MemoryKb       int64
	ErrorDetail    string
	FailureKind    FailureKind
}

// FailureKind sub-classifies guest failures for observability. It is not
// part of the persisted schema; it surfaces inside the error message.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureCompile FailureKind = "COMPILE_ERROR"
	FailureTimeout FailureKind = "TIMEOUT"
	FailureRuntime FailureKind = "RUNTIME_ERROR"
)
