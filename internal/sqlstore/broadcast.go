package sqlstore

import (
	"context"
	"sync"

	"github.com/dyluth/lanes/internal/realtime"
)

const subscriptionBuffer = 64

// broadcaster fans change events out to in-process subscribers.
// A full subscriber buffer drops the event, matching Pub/Sub delivery.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscription]struct{})}
}

func (b *broadcaster) subscribe(ctx context.Context, tables []string) *subscription {
	sub := &subscription{
		b:      b,
		tables: make(map[string]bool, len(tables)),
		events: make(chan realtime.Change, subscriptionBuffer),
		errors: make(chan error),
		done:   make(chan struct{}),
	}
	for _, t := range tables {
		sub.tables[t] = true
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub
}

func (b *broadcaster) publish(change realtime.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.tables[change.Table] {
			continue
		}
		select {
		case sub.events <- change:
		default:
		}
	}
}

// closeAll ends every subscription.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}

type subscription struct {
	b      *broadcaster
	tables map[string]bool
	events chan realtime.Change
	errors chan error
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan realtime.Change { return s.events }

func (s *subscription) Errors() <-chan error { return s.errors }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		close(s.events)
		close(s.errors)
		s.b.mu.Unlock()
		close(s.done)
	})
	return nil
}
