// Package drag computes the effect of pointer-drag events on a board.
//
// A drag runs Idle → Dragging → (Committed | Aborted). While dragging, every
// hover applies a provisional move that supersedes the previous one. The
// pre-drag position is kept separately so an abort can restore it.
package drag

import (
	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// Session is the ephemeral state between drag-start and drag-end/cancel.
type Session struct {
	ActiveItemID         string
	SourceContainerID    board.ContainerID
	SourceIndex          int
	LastHoverContainerID board.ContainerID
	LastHoverIndex       int
}

// Hover describes the pointer hovering a drop target.
// TargetID is either a container id or an item id. TargetTop and TargetHeight
// give the hovered item's vertical extent; they are ignored for containers.
type Hover struct {
	TargetID     string  `json:"target_id"`
	PointerY     float64 `json:"pointer_y"`
	TargetTop    float64 `json:"target_top"`
	TargetHeight float64 `json:"target_height"`
}

// OutcomeKind classifies how a drag ended.
type OutcomeKind string

const (
	OutcomeNone      OutcomeKind = "none"
	OutcomeCommitted OutcomeKind = "committed"
	OutcomeAborted   OutcomeKind = "aborted"
)

// Outcome reports the terminal transition of a drag.
type Outcome struct {
	Kind        OutcomeKind
	ItemID      string
	Source      board.ContainerID
	Destination board.ContainerID
	Index       int

	// Deposit is set when the committed destination is the bank and the item
	// is neither persisted nor already pending.
	Deposit bool

	// Err explains an abort caused by a stale reference.
	Err error
}

// Engine applies drag events to a board. It holds at most one session.
type Engine struct {
	board   *board.Board
	bank    board.ContainerID
	session *Session
}

// NewEngine creates a drag engine over b. bank names the container whose
// entries are durably tracked; commits into it request a deposit.
func NewEngine(b *board.Board, bank board.ContainerID) *Engine {
	return &Engine{board: b, bank: bank}
}

// Session returns a copy of the active session.
func (e *Engine) Session() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

// Active reports whether a drag is in progress.
func (e *Engine) Active() bool {
	return e.session != nil
}

// Start begins dragging itemID. A drag already in progress is aborted first.
func (e *Engine) Start(itemID string) (Outcome, error) {
	var prior Outcome
	if e.session != nil {
		prior = e.Cancel()
	}

	pos, ok := e.board.Locate(itemID)
	if !ok {
		return prior, boarderrors.NewNotFound(itemID)
	}
	e.session = &Session{
		ActiveItemID:         itemID,
		SourceContainerID:    pos.Container,
		SourceIndex:          pos.Index,
		LastHoverContainerID: pos.Container,
		LastHoverIndex:       pos.Index,
	}
	return prior, nil
}

// HoverOver applies a provisional placement for the hovered target.
//
// Rules, evaluated in order:
//  1. hovering a container inserts at its end;
//  2. hovering item X at index i inserts at i+1 when the pointer is below X's
//     vertical midpoint, otherwise at i (indices measured without the active
//     item);
//  3. a destination equal to the current position changes nothing.
//
// An unknown target is ignored and the session kept. If the active item has
// vanished from the board the session is aborted and the outcome returned.
func (e *Engine) HoverOver(h Hover) (Outcome, error) {
	if e.session == nil {
		return Outcome{Kind: OutcomeNone}, nil
	}
	s := e.session

	current, ok := e.board.Locate(s.ActiveItemID)
	if !ok {
		return e.abortStale(), boarderrors.NewNotFound(s.ActiveItemID)
	}
	if h.TargetID == s.ActiveItemID {
		return Outcome{Kind: OutcomeNone}, nil
	}

	dest, err := e.destination(h, current)
	if err != nil {
		return Outcome{Kind: OutcomeNone}, err
	}
	if dest == current {
		return Outcome{Kind: OutcomeNone}, nil
	}

	if err := e.board.MoveItem(s.ActiveItemID, current.Container, dest.Container, dest.Index); err != nil {
		return Outcome{Kind: OutcomeNone}, err
	}
	placed, _ := e.board.Locate(s.ActiveItemID)
	s.LastHoverContainerID = placed.Container
	s.LastHoverIndex = placed.Index
	return Outcome{Kind: OutcomeNone}, nil
}

// destination computes where the active item should land.
func (e *Engine) destination(h Hover, current board.Position) (board.Position, error) {
	if cid := board.ContainerID(h.TargetID); e.board.HasContainer(cid) {
		n := e.board.Len(cid)
		if cid == current.Container {
			n--
		}
		return board.Position{Container: cid, Index: n}, nil
	}

	over, ok := e.board.Locate(h.TargetID)
	if !ok {
		return board.Position{}, boarderrors.NewPlacement("unknown hover target", map[string]any{
			"target_id": h.TargetID,
		})
	}

	index := over.Index
	if over.Container == current.Container && current.Index < over.Index {
		index--
	}
	if h.PointerY > h.TargetTop+h.TargetHeight/2 {
		index++
	}
	return board.Position{Container: over.Container, Index: index}, nil
}

// End finishes the drag. overID is the id under the pointer at release; an
// empty or unknown id aborts the drag and restores the pre-drag placement.
func (e *Engine) End(overID string) (Outcome, error) {
	if e.session == nil {
		return Outcome{Kind: OutcomeNone}, nil
	}
	s := e.session

	if overID == "" || !e.validTarget(overID) {
		return e.Cancel(), nil
	}

	pos, ok := e.board.Locate(s.ActiveItemID)
	if !ok {
		return e.abortStale(), boarderrors.NewNotFound(s.ActiveItemID)
	}
	e.session = nil

	out := Outcome{
		Kind:        OutcomeCommitted,
		ItemID:      s.ActiveItemID,
		Source:      s.SourceContainerID,
		Destination: pos.Container,
		Index:       pos.Index,
	}
	if pos.Container == e.bank && s.SourceContainerID != e.bank {
		item, _ := e.board.Item(s.ActiveItemID)
		out.Deposit = !item.IsPersisted && item.Deposit != board.DepositPending && item.Deposit != board.DepositPersisted
	}
	return out, nil
}

// Cancel aborts the drag and restores the pre-drag placement.
func (e *Engine) Cancel() Outcome {
	if e.session == nil {
		return Outcome{Kind: OutcomeNone}
	}
	s := e.session
	e.session = nil

	out := Outcome{
		Kind:        OutcomeAborted,
		ItemID:      s.ActiveItemID,
		Source:      s.SourceContainerID,
		Destination: s.SourceContainerID,
		Index:       s.SourceIndex,
	}
	pos, ok := e.board.Locate(s.ActiveItemID)
	if !ok {
		out.Err = boarderrors.NewNotFound(s.ActiveItemID)
		return out
	}
	if err := e.board.MoveItem(s.ActiveItemID, pos.Container, s.SourceContainerID, s.SourceIndex); err != nil {
		out.Err = err
	}
	return out
}

func (e *Engine) abortStale() Outcome {
	s := e.session
	e.session = nil
	return Outcome{
		Kind:   OutcomeAborted,
		ItemID: s.ActiveItemID,
		Source: s.SourceContainerID,
		Err:    boarderrors.NewNotFound(s.ActiveItemID),
	}
}

func (e *Engine) validTarget(id string) bool {
	if e.board.HasContainer(board.ContainerID(id)) {
		return true
	}
	_, ok := e.board.Locate(id)
	return ok
}
