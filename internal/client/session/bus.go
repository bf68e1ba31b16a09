package session

import (
	"context"
	"sync"
)

// Event announces that key changed in the durable scope. Origin is the ID of
// the browsing context that made the change.
type Event struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Bus carries storage change events between browsing contexts.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe registers fn for events from origins other than origin. The
	// returned func removes the subscription.
	Subscribe(origin string, fn func(Event)) (cancel func())
}

type subscriber struct {
	origin string
	fn     func(Event)
}

// LocalBus delivers events synchronously to subscribers in this process.
type LocalBus struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscriber
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]subscriber)}
}

func (b *LocalBus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	targets := make([]func(Event), 0, len(b.subs))
	for _, s := range b.subs {
		if s.origin != ev.Origin {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(origin string, fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{origin: origin, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
