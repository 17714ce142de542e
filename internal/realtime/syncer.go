package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/observability"
	"github.com/rs/zerolog"
)

// DeliverFunc hands a snapshot to the engine. It may block until the engine
// accepts it; it must return once ctx is done.
type DeliverFunc func(ctx context.Context, snap Snapshot)

// Syncer subscribes to store tables and re-fetches the containers each
// notification maps to.
//
// Fetches for one container are serialized: a notification arriving while a
// fetch is in flight marks the container dirty and exactly one follow-up
// fetch runs afterwards, so snapshots for a container are delivered in fetch
// order. Different containers are fetched independently.
type Syncer struct {
	source  Source
	fetcher Fetcher
	routes  Routes
	logger  zerolog.Logger

	mu      sync.Mutex
	workers map[board.ContainerID]*fetchState
	wg      sync.WaitGroup
}

type fetchState struct {
	running bool
	dirty   bool
}

// NewSyncer creates a Syncer that refetches the containers routes maps each change to.
func NewSyncer(source Source, fetcher Fetcher, routes Routes, logger zerolog.Logger) *Syncer {
	return &Syncer{
		source:  source,
		fetcher: fetcher,
		routes:  routes,
		logger:  logger.With().Str("component", "realtime").Logger(),
		workers: make(map[board.ContainerID]*fetchState),
	}
}

// Tables returns the routed table names in sorted order.
func (s *Syncer) Tables() []string {
	return s.routes.Tables()
}

// Containers returns every routed container once, in table order.
func (s *Syncer) Containers() []board.ContainerID {
	seen := make(map[board.ContainerID]bool)
	var out []board.ContainerID
	for _, table := range s.Tables() {
		for _, id := range s.routes[table] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// Run subscribes, performs the initial load of every routed container, then
// re-fetches on each notification until ctx is cancelled or the
// subscription closes. In-flight fetches are drained before Run returns.
func (s *Syncer) Run(ctx context.Context, deliver DeliverFunc) error {
	sub, err := s.source.SubscribeChanges(ctx, s.Tables()...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}
	defer sub.Close()
	defer s.wg.Wait()

	s.logger.Info().Strs("tables", s.Tables()).Msg("subscribed")

	for _, id := range s.Containers() {
		s.Refresh(ctx, id, deliver)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("shutting_down")
			return nil

		case change, ok := <-sub.Events():
			if !ok {
				s.logger.Info().Msg("subscription_closed")
				return nil
			}
			s.handle(ctx, change, deliver)

		case err, ok := <-sub.Errors():
			if !ok {
				s.logger.Info().Msg("error_channel_closed")
				return nil
			}
			s.logger.Warn().Err(err).Msg("subscription_error")
		}
	}
}

func (s *Syncer) handle(ctx context.Context, change Change, deliver DeliverFunc) {
	containers, ok := s.routes[change.Table]
	if !ok {
		s.logger.Debug().Str("table", change.Table).Msg("unrouted_change")
		return
	}

	s.logger.Debug().
		Str("table", change.Table).
		Str("kind", string(change.Kind)).
		Msg("change_received")

	for _, id := range containers {
		s.Refresh(ctx, id, deliver)
	}
}

// Refresh schedules a fetch of one container. If a fetch is already running
// for it, a single follow-up fetch is queued instead.
func (s *Syncer) Refresh(ctx context.Context, id board.ContainerID, deliver DeliverFunc) {
	s.mu.Lock()
	state, ok := s.workers[id]
	if !ok {
		state = &fetchState{}
		s.workers[id] = state
	}
	if state.running {
		state.dirty = true
		s.mu.Unlock()
		return
	}
	state.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.fetchLoop(ctx, id, state, deliver)
}

func (s *Syncer) fetchLoop(ctx context.Context, id board.ContainerID, state *fetchState, deliver DeliverFunc) {
	defer s.wg.Done()

	for {
		s.fetchOnce(ctx, id, deliver)

		s.mu.Lock()
		if !state.dirty || ctx.Err() != nil {
			state.running = false
			state.dirty = false
			s.mu.Unlock()
			return
		}
		state.dirty = false
		s.mu.Unlock()
	}
}

func (s *Syncer) fetchOnce(ctx context.Context, id board.ContainerID, deliver DeliverFunc) {
	items, err := s.fetcher.FetchContainer(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		observability.RecordSnapshot(string(id), false)
		s.logger.Warn().Err(err).Str("container", string(id)).Msg("fetch_failed")
		return
	}

	observability.RecordSnapshot(string(id), true)
	deliver(ctx, Snapshot{
		Container: id,
		Items:     items,
		FetchedAt: time.Now(),
	})
}
