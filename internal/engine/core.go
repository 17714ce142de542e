package engine

import (
	"github.com/dyluth/lanes/internal/annotation"
	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/drag"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/observability"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/rs/zerolog"
)

// EffectKind names work the engine must start outside the reducer.
type EffectKind string

const (
	EffectDeposit          EffectKind = "deposit"
	EffectRetryDeposit     EffectKind = "retry_deposit"
	EffectOpenAnnotation   EffectKind = "open_annotation"
	EffectCancelAnnotation EffectKind = "cancel_annotation"
	EffectDeleteInStore    EffectKind = "delete_in_store"
)

// Effect is a side effect requested by a state transition.
// Session, PersonaID and Content are set for annotation effects only.
type Effect struct {
	Kind      EffectKind
	ItemID    string
	Session   string
	PersonaID string
	Content   string
}

// Core is the synchronous state machine behind the engine. Every method
// applies one event to the board and returns the resulting view and any
// effects to start. Errors are absorbed and logged; they surface only through
// item state. Core is not safe for concurrent use.
type Core struct {
	board   *board.Board
	drag    *drag.Engine
	tracker *annotation.Tracker
	bank    board.ContainerID
	logger  zerolog.Logger
}

// NewCore builds a board from topology. bank must be one of its tracked
// containers.
func NewCore(topology []board.ContainerSpec, bank board.ContainerID, logger zerolog.Logger) (*Core, error) {
	b, err := board.New(topology)
	if err != nil {
		return nil, err
	}
	if !b.IsTracked(bank) {
		return nil, boarderrors.NewInvalidRequest("bank container must be a tracked container: " + string(bank))
	}
	return &Core{
		board:   b,
		drag:    drag.NewEngine(b, bank),
		tracker: annotation.NewTracker(),
		bank:    bank,
		logger:  logger.With().Str("component", "engine").Logger(),
	}, nil
}

// View returns an immutable copy of the board.
func (c *Core) View() board.View {
	return c.board.View()
}

// DragSession returns the active drag, if any.
func (c *Core) DragSession() (drag.Session, bool) {
	return c.drag.Session()
}

// Annotation returns the tracked annotation request for an item.
func (c *Core) Annotation(itemID string) (annotation.Request, bool) {
	return c.tracker.Get(itemID)
}

// StartDrag begins dragging an item. A drag already in progress is aborted.
func (c *Core) StartDrag(itemID string) (board.View, []Effect) {
	prior, err := c.drag.Start(itemID)
	c.finish(prior)
	if err != nil {
		c.logger.Debug().Err(err).Str("item_id", itemID).Msg("drag_start_ignored")
		return c.View(), nil
	}
	c.logger.Debug().Str("item_id", itemID).Msg("drag_started")
	return c.View(), nil
}

// HoverOver moves the dragged item live under the pointer.
func (c *Core) HoverOver(h drag.Hover) (board.View, []Effect) {
	out, err := c.drag.HoverOver(h)
	if err != nil {
		c.logger.Debug().Err(err).Str("target_id", h.TargetID).Msg("hover_ignored")
	}
	return c.View(), c.finish(out)
}

// EndDrag commits the drag over overID, requesting a deposit on entry to the bank.
func (c *Core) EndDrag(overID string) (board.View, []Effect) {
	out, err := c.drag.End(overID)
	if err != nil {
		c.logger.Debug().Err(err).Str("over_id", overID).Msg("drag_end_stale")
	}
	return c.View(), c.finish(out)
}

// CancelDrag restores the dragged item to where the drag started.
func (c *Core) CancelDrag() (board.View, []Effect) {
	return c.View(), c.finish(c.drag.Cancel())
}

// finish records a terminal drag outcome and requests a deposit when the
// drag committed into the bank.
func (c *Core) finish(out drag.Outcome) []Effect {
	switch out.Kind {
	case drag.OutcomeCommitted:
		observability.RecordDrag(string(out.Kind), string(out.Destination))
		c.logger.Info().
			Str("item_id", out.ItemID).
			Str("source", string(out.Source)).
			Str("destination", string(out.Destination)).
			Int("index", out.Index).
			Bool("deposit", out.Deposit).
			Msg("drag_committed")
		if out.Deposit {
			c.board.SetDeposit(out.ItemID, board.DepositPending)
			return []Effect{{Kind: EffectDeposit, ItemID: out.ItemID}}
		}
		if out.Source == c.bank && out.Destination != c.bank {
			c.clearRetry(out.ItemID)
		}
	case drag.OutcomeAborted:
		observability.RecordDrag(string(out.Kind), string(out.Destination))
		event := c.logger.Info()
		if out.Err != nil {
			event = c.logger.Warn().Err(out.Err)
		}
		event.Str("item_id", out.ItemID).Str("source", string(out.Source)).Msg("drag_aborted")
	}
	return nil
}

// SelectPersonaForItem starts an annotation request, superseding any request
// in flight for the item. The annotation is cleared and shown immediately.
func (c *Core) SelectPersonaForItem(itemID, personaID string) (board.View, []Effect) {
	if personaID == "" {
		c.logger.Debug().Str("item_id", itemID).Msg("persona_missing")
		return c.View(), nil
	}
	item, ok := c.board.Item(itemID)
	if !ok {
		c.logger.Debug().Str("item_id", itemID).Msg("annotation_item_missing")
		return c.View(), nil
	}

	req, superseded := c.tracker.Begin(itemID, personaID)

	var effects []Effect
	if superseded != "" {
		effects = append(effects, Effect{Kind: EffectCancelAnnotation, ItemID: itemID, Session: superseded})
		c.logger.Info().Str("item_id", itemID).Str("session", superseded).Msg("annotation_superseded")
	}

	c.board.UpsertAnnotation(itemID, "", board.AnnotationReplace, true)
	c.board.SetAnnotationState(itemID, board.AnnotationRequesting)

	effects = append(effects, Effect{
		Kind:      EffectOpenAnnotation,
		ItemID:    itemID,
		Session:   req.Session,
		PersonaID: personaID,
		Content:   item.Content,
	})
	c.logger.Info().Str("item_id", itemID).Str("persona_id", personaID).Str("session", req.Session).Msg("annotation_requested")
	return c.View(), effects
}

// AnnotationChunk appends streamed text. Chunks for a stale session are dropped.
func (c *Core) AnnotationChunk(itemID, session, text string) (board.View, []Effect) {
	acc, ok := c.tracker.Chunk(itemID, session, text)
	if !ok {
		return c.View(), nil
	}
	observability.RecordAnnotationChunk()
	c.board.UpsertAnnotation(itemID, acc, board.AnnotationReplace, true)
	c.board.SetAnnotationState(itemID, board.AnnotationStreaming)
	return c.View(), nil
}

// AnnotationDone marks the annotation complete. Stale sessions are ignored.
func (c *Core) AnnotationDone(itemID, session string) (board.View, []Effect) {
	if !c.tracker.Complete(itemID, session) {
		return c.View(), nil
	}
	observability.RecordAnnotation(string(annotation.StatusComplete))
	c.board.SetAnnotationState(itemID, board.AnnotationComplete)
	c.logger.Info().Str("item_id", itemID).Str("session", session).Msg("annotation_complete")
	return c.View(), nil
}

// AnnotationFailed moves the request to Failed. Text already received stays
// visible alongside the failure marker.
func (c *Core) AnnotationFailed(itemID, session string, err error) (board.View, []Effect) {
	if _, ok := c.tracker.Fail(itemID, session, err); !ok {
		return c.View(), nil
	}
	observability.RecordAnnotation(string(annotation.StatusFailed))
	c.board.SetAnnotationState(itemID, board.AnnotationFailed)
	c.logger.Warn().Err(err).Str("item_id", itemID).Str("session", session).Msg("annotation_failed")
	return c.View(), nil
}

// DeleteItem removes the item from the board, stops its annotation, and asks
// the store to delete it. A drag of the item is cancelled first.
func (c *Core) DeleteItem(itemID string) (board.View, []Effect) {
	var effects []Effect
	if s, ok := c.drag.Session(); ok && s.ActiveItemID == itemID {
		effects = append(effects, c.finish(c.drag.Cancel())...)
	}
	if session, live := c.tracker.Cancel(itemID); live {
		effects = append(effects, Effect{Kind: EffectCancelAnnotation, ItemID: itemID, Session: session})
	}

	if _, ok := c.board.DeleteItem(itemID); !ok {
		c.logger.Debug().Str("item_id", itemID).Msg("delete_item_missing")
		return c.View(), effects
	}
	c.logger.Info().Str("item_id", itemID).Msg("item_removed")
	effects = append(effects, Effect{Kind: EffectDeleteInStore, ItemID: itemID})
	return c.View(), effects
}

// ApplySnapshot merges an authoritative container snapshot.
func (c *Core) ApplySnapshot(snap realtime.Snapshot) (board.View, []Effect) {
	changed, err := c.board.ApplySnapshot(snap.Container, snap.Items)
	if err != nil {
		c.logger.Warn().Err(err).Str("container", string(snap.Container)).Msg("snapshot_rejected")
		return c.View(), nil
	}
	if changed {
		c.logger.Debug().
			Str("container", string(snap.Container)).
			Int("items", len(snap.Items)).
			Uint64("version", c.board.Version()).
			Msg("snapshot_applied")
	}
	return c.View(), nil
}

// DepositResult records the outcome of a bank deposit. A first failure flags
// the item for retry and schedules a backoff retry; a failed retry leaves the
// flag for RetryDeposits.
func (c *Core) DepositResult(itemID string, err error, retried bool) (board.View, []Effect) {
	if err == nil {
		c.board.SetDeposit(itemID, board.DepositPersisted)
		return c.View(), nil
	}

	if item, ok := c.board.Item(itemID); ok && item.IsPersisted {
		// A later deposit already succeeded.
		return c.View(), nil
	}
	if boarderrors.Is(err, boarderrors.ErrNotFound) {
		c.logger.Warn().Str("item_id", itemID).Msg("deposit_item_unknown_to_store")
		c.board.SetDeposit(itemID, board.DepositNone)
		return c.View(), nil
	}

	if !c.inBank(itemID) {
		c.logger.Info().Err(err).Str("item_id", itemID).Msg("deposit_dropped_outside_bank")
		c.board.SetDeposit(itemID, board.DepositNone)
		return c.View(), nil
	}

	c.board.SetDeposit(itemID, board.DepositRetry)
	if retried {
		c.logger.Error().Err(err).Str("item_id", itemID).Msg("deposit_flagged_for_retry")
		return c.View(), nil
	}
	return c.View(), []Effect{{Kind: EffectRetryDeposit, ItemID: itemID}}
}

// RetryDeposits re-issues the deposit of every bank item flagged for retry.
func (c *Core) RetryDeposits() (board.View, []Effect) {
	var effects []Effect
	for _, item := range c.View().Container(c.bank) {
		if item.Deposit != board.DepositRetry {
			continue
		}
		c.board.SetDeposit(item.ID, board.DepositPending)
		effects = append(effects, Effect{Kind: EffectDeposit, ItemID: item.ID})
	}
	if len(effects) > 0 {
		c.logger.Info().Int("count", len(effects)).Msg("deposits_retried")
	}
	return c.View(), effects
}

// inBank reports whether the item currently sits in the bank container.
func (c *Core) inBank(itemID string) bool {
	pos, ok := c.board.Locate(itemID)
	return ok && pos.Container == c.bank
}

// clearRetry drops the retry flag of an item dragged out of the bank.
func (c *Core) clearRetry(itemID string) {
	item, ok := c.board.Item(itemID)
	if !ok || item.Deposit != board.DepositRetry {
		return
	}
	c.board.SetDeposit(itemID, board.DepositNone)
	c.logger.Info().Str("item_id", itemID).Msg("deposit_retry_cleared")
}
