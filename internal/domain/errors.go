package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRoomNotFound is returned when a submission references an unknown room.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotAMember is returned when the submitting user does not belong to
	// the target room.
	ErrNotAMember = errors.New("not a room member")

	// ErrQueueSaturated is returned when the execution queue is at capacity.
	// The caller may resubmit later; no execution record exists in that case.
	ErrQueueSaturated = errors.New("execution queue saturated")

	// ErrNotFound is returned by status queries for unknown execution ids.
	ErrNotFound = errors.New("execution not found")

	// ErrTerminalState is returned when an update would regress a record out
	// of COMPLETED or FAILED.
	ErrTerminalState = errors.New("execution already in terminal state")

	// ErrUnsupportedLanguage is returned for submissions in a language the
	// registry does not know.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// RateLimitedError carries the remaining admission window back to the caller.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// IsRateLimited reports whether err is an admission rejection and, if so,
// returns the retry-after hint.
func IsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}
