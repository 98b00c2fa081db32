package execengine

import (
	"context"

	"golang.org/x/time/rate"
)

// pool bounds concurrent subprocess spawns across all scans, and
// additionally rate-limits the spawn rate itself (independent of the
// concurrency cap) so a burst of chained tool calls cannot fork-bomb the
// host even when under the concurrency ceiling. Modeled on the teacher's
// worker-pool-as-bounded-concurrency-primitive shape (pkg/queue/pool.go),
// generalized from a fixed worker-goroutine-per-slot model to a semaphore
// since tool executions are one-shot rather than long-lived workers.
type pool struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

func newPool(maxConcurrent int, spawnPerSecond float64, spawnBurst int) *pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &pool{
		sem:     make(chan struct{}, maxConcurrent),
		limiter: rate.NewLimiter(rate.Limit(spawnPerSecond), spawnBurst),
	}
}

// acquire blocks until a concurrency slot and spawn-rate token are both
// available, or ctx is done. The returned release func must be called
// exactly once.
func (p *pool) acquire(ctx context.Context) (release func(), err error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
