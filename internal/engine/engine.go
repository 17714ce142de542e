// Package engine serializes every board event through one goroutine.
//
// Commands, deposit results, snapshots and annotation chunks are all queued
// on a single channel and applied by Run in arrival order, so the board has
// exactly one writer. Slow work (store writes, fetches, annotation streams)
// runs in its own goroutine and posts its result back as another event.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dyluth/lanes/internal/annotation"
	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/drag"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/persist"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/rs/zerolog"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("engine is not running")

const eventBuffer = 256

// Depositor persists bank deposits and deletes.
type Depositor interface {
	CommitBankDeposit(ctx context.Context, itemID string) (persist.Ack, error)
	CommitWithRetry(ctx context.Context, itemID string) (persist.Ack, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// Options wires an engine. Syncer and Transport may be nil.
type Options struct {
	Topology  []board.ContainerSpec
	Bank      board.ContainerID
	Depositor Depositor
	Transport annotation.Transport
	Syncer    *realtime.Syncer
	Logger    zerolog.Logger
}

type event struct {
	apply func() (board.View, []Effect)
	reply chan board.View
}

// Engine owns a Core and runs it on a single goroutine.
type Engine struct {
	core      *Core
	depositor Depositor
	transport annotation.Transport
	syncer    *realtime.Syncer
	logger    zerolog.Logger

	events chan event
	done   chan struct{}
	wg     sync.WaitGroup

	// streams maps a live annotation session to its cancel func.
	// Touched only by the Run goroutine.
	streams map[string]context.CancelFunc
}

// New builds an engine; call Run to start processing.
func New(opts Options) (*Engine, error) {
	if opts.Depositor == nil {
		return nil, boarderrors.NewInvalidRequest("engine requires a depositor")
	}
	topology := opts.Topology
	if len(topology) == 0 {
		topology = board.DefaultTopology()
	}
	bank := opts.Bank
	if bank == "" {
		bank = board.BankContainer
	}

	core, err := NewCore(topology, bank, opts.Logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		core:      core,
		depositor: opts.Depositor,
		transport: opts.Transport,
		syncer:    opts.Syncer,
		logger:    opts.Logger.With().Str("component", "engine").Logger(),
		events:    make(chan event, eventBuffer),
		done:      make(chan struct{}),
		streams:   make(map[string]context.CancelFunc),
	}, nil
}

// Run processes events until ctx is cancelled. It starts the realtime syncer
// when one is configured and waits for all background work before returning.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	if e.syncer != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if err := e.syncer.Run(ctx, e.deliverSnapshot); err != nil {
				e.logger.Error().Err(err).Msg("realtime_stopped")
			}
		}()
	}

	e.logger.Info().Msg("engine_started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("engine_stopping")
			for session, cancel := range e.streams {
				cancel()
				delete(e.streams, session)
			}
			e.wg.Wait()
			return nil

		case ev := <-e.events:
			view, effects := ev.apply()
			for _, eff := range effects {
				e.start(ctx, eff)
			}
			if ev.reply != nil {
				ev.reply <- view
			}
		}
	}
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// submit queues a command and waits for the view it produced.
func (e *Engine) submit(ctx context.Context, apply func() (board.View, []Effect)) (board.View, error) {
	reply := make(chan board.View, 1)
	select {
	case e.events <- event{apply: apply, reply: reply}:
	case <-ctx.Done():
		return board.View{}, ctx.Err()
	case <-e.done:
		return board.View{}, ErrStopped
	}

	select {
	case view := <-reply:
		return view, nil
	case <-ctx.Done():
		return board.View{}, ctx.Err()
	case <-e.done:
		return board.View{}, ErrStopped
	}
}

// post queues an internal event without waiting. It gives up when ctx ends
// or the engine stops.
func (e *Engine) post(ctx context.Context, apply func() (board.View, []Effect)) {
	select {
	case e.events <- event{apply: apply}:
	case <-ctx.Done():
	case <-e.done:
	}
}

// Board returns the current view.
func (e *Engine) Board(ctx context.Context) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.View(), nil })
}

// StartDrag begins dragging itemID.
func (e *Engine) StartDrag(ctx context.Context, itemID string) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.StartDrag(itemID) })
}

// HoverOver moves the dragged item live to the hovered target.
func (e *Engine) HoverOver(ctx context.Context, h drag.Hover) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.HoverOver(h) })
}

// EndDrag commits the drag over overID, or aborts it when overID is empty or
// not a known target.
func (e *Engine) EndDrag(ctx context.Context, overID string) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.EndDrag(overID) })
}

// CancelDrag restores the pre-drag placement.
func (e *Engine) CancelDrag(ctx context.Context) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.CancelDrag() })
}

// SelectPersonaForItem opens an annotation stream for the item, superseding any live one.
func (e *Engine) SelectPersonaForItem(ctx context.Context, itemID, personaID string) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.SelectPersonaForItem(itemID, personaID) })
}

// DeleteItem removes the item from the board and the store.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.DeleteItem(itemID) })
}

// RetryDeposits re-issues failed deposits of items still in the bank.
func (e *Engine) RetryDeposits(ctx context.Context) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.RetryDeposits() })
}

// ApplySnapshot merges a snapshot through the event queue.
func (e *Engine) ApplySnapshot(ctx context.Context, snap realtime.Snapshot) (board.View, error) {
	return e.submit(ctx, func() (board.View, []Effect) { return e.core.ApplySnapshot(snap) })
}

func (e *Engine) deliverSnapshot(ctx context.Context, snap realtime.Snapshot) {
	e.post(ctx, func() (board.View, []Effect) { return e.core.ApplySnapshot(snap) })
}

// start launches one effect. Called only from the Run goroutine.
func (e *Engine) start(ctx context.Context, eff Effect) {
	switch eff.Kind {
	case EffectDeposit:
		e.goWork(func() {
			_, err := e.depositor.CommitBankDeposit(ctx, eff.ItemID)
			e.post(ctx, func() (board.View, []Effect) { return e.core.DepositResult(eff.ItemID, err, false) })
		})

	case EffectRetryDeposit:
		e.goWork(func() {
			_, err := e.depositor.CommitWithRetry(ctx, eff.ItemID)
			e.post(ctx, func() (board.View, []Effect) { return e.core.DepositResult(eff.ItemID, err, true) })
		})

	case EffectDeleteInStore:
		e.goWork(func() {
			if err := e.depositor.DeleteItem(ctx, eff.ItemID); err != nil {
				e.logger.Warn().Err(err).Str("item_id", eff.ItemID).Msg("store_delete_failed")
			}
		})

	case EffectOpenAnnotation:
		streamCtx, cancel := context.WithCancel(ctx)
		e.streams[eff.Session] = cancel
		e.goWork(func() { e.stream(streamCtx, eff) })

	case EffectCancelAnnotation:
		if cancel, ok := e.streams[eff.Session]; ok {
			cancel()
			delete(e.streams, eff.Session)
		}
	}
}

func (e *Engine) goWork(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// stream pumps one annotation response into the event queue. Once ctx is
// cancelled nothing more is posted for the session.
func (e *Engine) stream(ctx context.Context, eff Effect) {
	release := func() {
		if cancel, ok := e.streams[eff.Session]; ok {
			cancel()
			delete(e.streams, eff.Session)
		}
	}
	fail := func(err error) {
		e.post(ctx, func() (board.View, []Effect) {
			release()
			return e.core.AnnotationFailed(eff.ItemID, eff.Session, err)
		})
	}

	if e.transport == nil {
		fail(boarderrors.NewStream("no annotation transport configured", nil))
		return
	}

	s, err := e.transport.Open(ctx, eff.Content, eff.PersonaID)
	if err != nil {
		if ctx.Err() == nil {
			fail(err)
		}
		return
	}
	defer s.Close()

	for {
		chunk, err := s.Recv()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, io.EOF) {
			e.post(ctx, func() (board.View, []Effect) {
				release()
				return e.core.AnnotationDone(eff.ItemID, eff.Session)
			})
			return
		}
		if err != nil {
			fail(err)
			return
		}
		e.post(ctx, func() (board.View, []Effect) {
			return e.core.AnnotationChunk(eff.ItemID, eff.Session, chunk)
		})
	}
}
