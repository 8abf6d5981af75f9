package services

import (
	"context"
	"sync"
	"time"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

// Effects runs best-effort work after a core write has committed.
// Failures are logged and counted, never returned.
type Effects struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewEffects(timeout time.Duration) *Effects {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Effects{timeout: timeout}
}

// Run executes fn inline. The request's cancellation does not reach fn.
func (e *Effects) Run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		metrics.EffectFailures.WithLabelValues(name).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("effect", name).Msg("side effect failed")
	}
}

// Go executes fn in the background.
func (e *Effects) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Run(ctx, name, fn)
	}()
}

// Wait blocks until every background effect has finished.
func (e *Effects) Wait() {
	e.wg.Wait()
}
