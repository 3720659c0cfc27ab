package executor

import (
	"fmt"
	"strings"

	"github.com/codecollab/execd/internal/domain"
	"github.com/codecollab/execd/internal/sandbox"
)

// Normalize collapses a raw sandbox result into a single typed Outcome.
// Success requires a completed compile step and a zero exit status.
func Normalize(res *sandbox.Result) *domain.Outcome {
	out := &domain.Outcome{
		DurationMs: res.TimeMs,
		MemoryKb:   res.MemoryKb,
	}

	switch {
	case !res.Compiled:
		out.FailureKind = domain.FailureCompile
		out.ErrorDetail = compileDetail(res)
	case res.ExitCode != 0:
		out.FailureKind = domain.FailureRuntime
		out.ErrorDetail = runtimeDetail(res)
	default:
		out.Success = true
	}

	out.CombinedOutput = primaryOutput("", res.Stdout, res.Stderr, out.ErrorDetail)
	return out
}

// primaryOutput picks the single output string shown to the user, in order
// of precedence: an already-normalized output, stdout, stderr, the error
// message, then empty.
func primaryOutput(output, stdout, stderr, errMsg string) string {
	for _, candidate := range []string{output, stdout, stderr, errMsg} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func compileDetail(res *sandbox.Result) string {
	if strings.TrimSpace(res.Stderr) != "" {
		return res.Stderr
	}
	return fmt.Sprintf("compilation failed with exit code %d", res.ExitCode)
}

func runtimeDetail(res *sandbox.Result) string {
	if strings.TrimSpace(res.Stderr) != "" {
		return res.Stderr
	}
	return fmt.Sprintf("process exited with code %d", res.ExitCode)
}
