package scrape

import (
	"context"
	"math/rand"
	"time"
)

// Pauser sleeps a random duration between page fetches so the crawl does not
// hammer the upstream site. The pause is context-aware and returns early on
// cancellation.
type Pauser struct {
	min time.Duration
	max time.Duration
}

// NewPauser builds a pauser drawing uniformly from [min, max]. A max at or
// below min collapses to a fixed min-length pause.
func NewPauser(min, max time.Duration) *Pauser {
	if max < min {
		max = min
	}
	return &Pauser{min: min, max: max}
}

// Pause blocks for the drawn duration or until ctx is canceled.
func (p *Pauser) Pause(ctx context.Context) {
	delay := p.min
	if span := p.max - p.min; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return
	}
	PauseDurations.Observe(delay.Seconds())
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
