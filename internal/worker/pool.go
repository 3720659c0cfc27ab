package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/codecollab/execd/internal/config"
	"github.com/codecollab/execd/internal/queue"
	"github.com/codecollab/execd/internal/store"
)

// Pool is a fixed-size set of workers sharing one queue and one start-rate
// limiter. Each worker blocks on a single sandbox invocation at a time;
// the limiter smooths bursts of container creation across the whole pool.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	exec Executor,
	manager *queue.Manager,
	st store.Store,
	bridge EventBridge,
	cfg config.ExecutionConfig,
	logger *zerolog.Logger,
) *Pool {
	starts := rate.NewLimiter(rate.Limit(cfg.StartRatePerSec), cfg.StartBurst)

	p := &Pool{}
	for i := 0; i < cfg.WorkerCount; i++ {
		p.workers = append(p.workers, NewWorker(i, exec, manager, st, bridge, starts, cfg, logger))
	}
	return p
}

// Start launches every worker. Cancel the context to stop the pool; Wait
// returns once all workers have exited.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(w)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}
