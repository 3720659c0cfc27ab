package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/languages"
	"github.com/codecollab/execd/internal/sandbox"
)

// Executor runs one submission in the sandbox and normalizes the raw result
// into a domain.Outcome. A returned error means the sandbox infrastructure
// itself failed (retryable); everything the guest program did wrong comes
// back inside the Outcome (never retried).
type Executor struct {
	registry *languages.Registry
	sandbox  sandbox.Sandbox
}

func NewExecutor(registry *languages.Registry, sb sandbox.Sandbox) *Executor {
	return &Executor{
		registry: registry,
		sandbox:  sb,
	}
}

type ExecuteOptions struct {
	Language       domain.Language
	SourceCode     string
	Stdin          string
	TimeoutMs      int
	MemoryLimitKb  int
	CPUQuotaMicros int64
}

func (e *Executor) Execute(ctx context.Context, opts ExecuteOptions) (*domain.Outcome, error) {
	rt, err := e.registry.Get(opts.Language)
	if err != nil {
		return &domain.Outcome{
			Success:     false,
			ErrorDetail: fmt.Sprintf("unsupported language %q", opts.Language),
			FailureKind: domain.FailureRuntime,
		}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
	defer cancel()

	res, err := e.sandbox.Run(runCtx, sandbox.RunConfig{
		Image:          rt.Config.Image,
		SourceCode:     opts.SourceCode,
		SourceFile:     rt.Config.SourceFile,
		CompileCmd:     rt.Config.CompileCommand,
		RunCmd:         rt.Config.RunCommand,
		Stdin:          opts.Stdin,
		MemoryLimitKb:  opts.MemoryLimitKb,
		CPUQuotaMicros: opts.CPUQuotaMicros,
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || runCtx.Err() == context.DeadlineExceeded {
			// Timeouts are caused by the submitted code, not the host.
			return timeoutOutcome(res, opts.TimeoutMs), nil
		}
		return nil, fmt.Errorf("sandbox execution failed: %w", err)
	}

	return Normalize(res), nil
}

func timeoutOutcome(res *sandbox.Result, timeoutMs int) *domain.Outcome {
	detail := fmt.Sprintf("time limit exceeded after %dms", timeoutMs)
	out := &domain.Outcome{
		Success:     false,
		DurationMs:  int64(timeoutMs),
		ErrorDetail: detail,
		FailureKind: domain.FailureTimeout,
	}
	if res != nil {
		out.CombinedOutput = primaryOutput("", res.Stdout, res.Stderr, detail)
		out.MemoryKb = res.MemoryKb
		if res.TimeMs > 0 {
			out.DurationMs = res.TimeMs
		}
	} else {
		out.CombinedOutput = detail
	}
	return out
}
