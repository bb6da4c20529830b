package lists

import (
	"context"
	"errors"

	"github.com/fenilsonani/listmunge/internal/metrics"
	"github.com/fenilsonani/listmunge/internal/resilience"
)

// GuardedSequence fails fast while the wrapped store keeps failing, so a
// batch run against an unreachable Redis does not wait out every timeout.
type GuardedSequence struct {
	seq Sequence
	br  *resilience.Breaker
}

// NewGuardedSequence wraps seq with a breaker named after backend.
func NewGuardedSequence(seq Sequence, backend string) *GuardedSequence {
	cfg := resilience.DefaultConfig(backend)
	cfg.IsFailure = storeFailure
	cfg.OnStateChange = func(name string, _, to resilience.State) {
		metrics.RecordBreakerState(name, int(to))
	}
	return &GuardedSequence{seq: seq, br: resilience.New(cfg)}
}

// storeFailure ignores errors that say nothing about the store's health.
func storeFailure(err error) bool {
	return !errors.Is(err, ErrNoSequence) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrSequenceClosed)
}

func (g *GuardedSequence) Current(ctx context.Context, list string) (int, error) {
	var n int
	err := g.br.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.seq.Current(ctx, list)
		return err
	})
	return n, err
}

func (g *GuardedSequence) Next(ctx context.Context, list string) (int, error) {
	var n int
	err := g.br.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = g.seq.Next(ctx, list)
		return err
	})
	return n, err
}

func (g *GuardedSequence) Set(ctx context.Context, list string, n int) error {
	return g.br.Do(ctx, func(ctx context.Context) error {
		return g.seq.Set(ctx, list, n)
	})
}

func (g *GuardedSequence) Init(ctx context.Context, list string, start int) error {
	return g.br.Do(ctx, func(ctx context.Context) error {
		return g.seq.Init(ctx, list, start)
	})
}

func (g *GuardedSequence) Close() error { return g.seq.Close() }
