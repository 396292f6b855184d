package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacerNextWithinBounds(t *testing.T) {
	p := NewPacer(100*time.Millisecond, 3*time.Second)

	for i := 0; i < 1000; i++ {
		d := p.Next()
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 3*time.Second)
	}
}

func TestPacerZeroDoesNotWait(t *testing.T) {
	p := NewPacer(0, 0)

	start := time.Now()
	assert.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacerHonoursCancellation(t *testing.T) {
	p := NewPacer(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacerUsesInjectedSleep(t *testing.T) {
	var slept time.Duration
	p := NewPacer(2*time.Second, 2*time.Second)
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	assert.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, 2*time.Second, slept)
}

func TestNilPacer(t *testing.T) {
	var p *Pacer
	assert.Zero(t, p.Next())
	assert.NoError(t, p.Wait(context.Background()))
}
