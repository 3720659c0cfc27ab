package sandbox

import (
	"context"
)

// Result is the raw outcome of one sandboxed run. A non-zero ExitCode is a
// legitimate guest outcome, not an infrastructure error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimeMs   int64
	MemoryKb int64
	Compiled bool // false when a compile step failed before execution
}

// Sandbox executes one untrusted program in an isolated, resource-capped
// environment. Run returns an error only for infrastructure failures
// (container create/start/attach); guest failures come back inside Result.
// A context deadline bounds the whole invocation, compile included.
type Sandbox interface {
	Run(ctx context.Context, config RunConfig) (*Result, error)
	EnsureImage(ctx context.Context, image string) error
}

type RunConfig struct {
	Image          string
	SourceCode     string
	SourceFile     string
	CompileCmd     []string
	RunCmd         []string
	Stdin          string
	MemoryLimitKb  int
	CPUQuotaMicros int64
}
