package boardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dyluth/lanes/internal/realtime"
)

// Subscription is an active Pub/Sub subscription to change events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan realtime.Change
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of change events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan realtime.Change {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors; the bad message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeChanges subscribes to change events for the given tables.
// It returns once Redis has confirmed every channel, so no event published
// after it returns is missed.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once; a slow subscriber may miss notifications.
func (c *Client) SubscribeChanges(ctx context.Context, tables ...string) (realtime.Subscription, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}

	channels := make([]string, len(tables))
	for i, table := range tables {
		channels[i] = ChangesChannel(c.instanceName, table)
	}

	pubsub := c.rdb.Subscribe(ctx, channels...)
	for range channels {
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to change events: %w", err)
		}
	}

	eventsChan := make(chan realtime.Change, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change realtime.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal change event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
