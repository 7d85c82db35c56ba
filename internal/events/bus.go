package events

import (
	"context"
	"sync"
)

// Bus is an in-process Publisher and Subscriber, used when the daemon runs
// without Redis.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[int]func(Event)
	nextID   int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]func(Event))}
}

// Publish calls every handler of stream synchronously.
func (b *Bus) Publish(ctx context.Context, stream string, event Event) error {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.handlers[stream]))
	for _, fn := range b.handlers[stream] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
	return nil
}

// Subscribe registers handler until ctx ends.
func (b *Bus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.handlers[stream] == nil {
		b.handlers[stream] = make(map[int]func(Event))
	}
	b.handlers[stream][id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers[stream], id)
		b.mu.Unlock()
	}()
	return nil
}
