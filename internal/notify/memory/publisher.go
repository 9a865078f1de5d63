// Package memory contains an in-memory publisher for tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/wbstats/internal/notify"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []notify.RunCompleted
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// RunCompleted records the event.
func (p *Publisher) RunCompleted(_ context.Context, event notify.RunCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []notify.RunCompleted {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]notify.RunCompleted, len(p.events))
	copy(out, p.events)
	return out
}
