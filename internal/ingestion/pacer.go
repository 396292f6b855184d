package ingestion

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer espera um intervalo aleatório entre min e max antes de cada
// requisição ao portal. Não garante ordem nem taxa; é só cortesia.
type Pacer struct {
	min   time.Duration
	max   time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max, sleep: sleepContext}
}

func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	return p.sleep(ctx, p.Next())
}

func (p *Pacer) Next() time.Duration {
	if p == nil || p.max <= 0 {
		return 0
	}
	if p.max == p.min {
		return p.min
	}
	return p.min + rand.N(p.max-p.min+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
