package admission

import (
	"sync"
	"time"

	"github.com/codecollab/execd/internal/metrics"
)

// Controller enforces a per-user sliding-window submission quota, checked
// before a job is accepted into the queue. It is distinct from queue
// capacity: a rejected user gets a retry-after hint and nothing is stored.
type Controller struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	hits   map[string][]time.Time
	clock  func() time.Time
}

func NewController(window time.Duration, max int) *Controller {
	return &Controller{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		clock:  time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

// TryAdmit records a submission for userID if the user is under quota.
// When the quota is exceeded it returns false and the time remaining until
// the oldest counted submission leaves the window.
func (c *Controller) TryAdmit(userID string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	cutoff := now.Add(-c.window)

	recent := c.hits[userID][:0]
	for _, t := range c.hits[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= c.max {
		c.hits[userID] = recent
		metrics.AdmissionRejections.Inc()
		return false, recent[0].Sub(cutoff)
	}

	c.hits[userID] = append(recent, now)
	return true, 0
}

// StartCleanup periodically drops users whose entire window has expired,
// bounding memory for one-off users.
func (c *Controller) StartCleanup(interval time.Duration) {
	go func() {
		for {
			time.Sleep(interval)
			c.cleanup()
		}
	}()
}

func (c *Controller) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock().Add(-c.window)
	for user, times := range c.hits {
		live := false
		for _, t := range times {
			if t.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(c.hits, user)
		}
	}
}
