package board

import (
	"fmt"
	"slices"

	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// Board is the ordered, multi-container item collection.
// The reverse index maps every item id to its current position and is rebuilt
// after each mutation.
type Board struct {
	order      []ContainerID
	tracked    map[ContainerID]bool
	containers map[ContainerID][]Item
	index      map[string]Position
	version    uint64
}

// New creates an empty board with the given container topology.
// Returns an error if a container id is empty or declared twice.
func New(topology []ContainerSpec) (*Board, error) {
	if len(topology) == 0 {
		return nil, fmt.Errorf("board topology cannot be empty")
	}

	b := &Board{
		tracked:    make(map[ContainerID]bool, len(topology)),
		containers: make(map[ContainerID][]Item, len(topology)),
		index:      make(map[string]Position),
	}
	for _, spec := range topology {
		if spec.ID == "" {
			return nil, fmt.Errorf("container id cannot be empty")
		}
		if _, exists := b.containers[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate container id %q", spec.ID)
		}
		b.order = append(b.order, spec.ID)
		b.tracked[spec.ID] = spec.Tracked
		b.containers[spec.ID] = []Item{}
	}
	return b, nil
}

// HasContainer reports whether id names a container of this board.
func (b *Board) HasContainer(id ContainerID) bool {
	_, ok := b.containers[id]
	return ok
}

// IsTracked reports whether the container mirrors durable store state.
func (b *Board) IsTracked(id ContainerID) bool {
	return b.tracked[id]
}

// Containers returns the container ids in topology order.
func (b *Board) Containers() []ContainerID {
	return slices.Clone(b.order)
}

// Version increases by one with every observable change.
func (b *Board) Version() uint64 {
	return b.version
}

// Locate returns the current position of an item.
func (b *Board) Locate(itemID string) (Position, bool) {
	pos, ok := b.index[itemID]
	return pos, ok
}

// Item returns a copy of the item with the given id.
func (b *Board) Item(itemID string) (Item, bool) {
	pos, ok := b.index[itemID]
	if !ok {
		return Item{}, false
	}
	return b.containers[pos.Container][pos.Index], true
}

// Len returns the number of items in a container (0 for unknown containers).
func (b *Board) Len(id ContainerID) int {
	return len(b.containers[id])
}

// ItemAt returns the item at index in container id.
func (b *Board) ItemAt(id ContainerID, index int) (Item, bool) {
	items := b.containers[id]
	if index < 0 || index >= len(items) {
		return Item{}, false
	}
	return items[index], true
}

// MoveItem removes itemID from container from and inserts it into container to
// at targetIndex. targetIndex is measured after the removal and clamped to
// [0, len]. The board is left unchanged when the item is not in from or when
// to is unknown; the returned error says which.
func (b *Board) MoveItem(itemID string, from, to ContainerID, targetIndex int) error {
	if !b.HasContainer(to) {
		return boarderrors.NewPlacement("unknown destination container", map[string]any{
			"item_id": itemID, "container": string(to),
		})
	}
	pos, ok := b.index[itemID]
	if !ok || pos.Container != from {
		return boarderrors.NewNotFound(itemID)
	}

	item := b.containers[from][pos.Index]
	b.containers[from] = slices.Delete(b.containers[from], pos.Index, pos.Index+1)

	dest := b.containers[to]
	targetIndex = clamp(targetIndex, 0, len(dest))
	if from == to && targetIndex == pos.Index {
		b.containers[from] = slices.Insert(dest, targetIndex, item)
		return nil
	}
	b.containers[to] = slices.Insert(dest, targetIndex, item)

	b.changed()
	return nil
}

// ApplySnapshot replaces a container's contents with the authoritative list.
//
// Client-local state (annotation text, visibility, state, and deposit state)
// survives for every id that still exists after the swap. An id that lives in
// another tracked container moves here; an id placed in a local container stays
// where the user put it, taking the authoritative content fields. Duplicate ids
// inside the snapshot keep their first occurrence.
//
// Returns true if the board changed.
func (b *Board) ApplySnapshot(id ContainerID, items []Item) (bool, error) {
	if !b.HasContainer(id) {
		return false, boarderrors.NewPlacement("unknown snapshot container", map[string]any{
			"container": string(id),
		})
	}

	next := make([]Item, 0, len(items))
	seen := make(map[string]bool, len(items))
	movedFrom := make(map[string]Position)
	localUpdates := make(map[string]Item)

	for _, incoming := range items {
		if incoming.ID == "" || seen[incoming.ID] {
			continue
		}
		seen[incoming.ID] = true

		pos, exists := b.index[incoming.ID]
		if exists {
			merged := mergeLocal(incoming, b.containers[pos.Container][pos.Index])
			if pos.Container != id && !b.tracked[pos.Container] {
				if merged != b.containers[pos.Container][pos.Index] {
					localUpdates[incoming.ID] = merged
				}
				continue
			}
			if pos.Container != id {
				movedFrom[incoming.ID] = pos
			}
			next = append(next, merged)
			continue
		}
		next = append(next, mergeLocal(incoming, Item{}))
	}

	if len(movedFrom) == 0 && len(localUpdates) == 0 && slices.Equal(next, b.containers[id]) {
		return false, nil
	}

	for itemID, pos := range movedFrom {
		b.containers[pos.Container] = slices.DeleteFunc(b.containers[pos.Container], func(it Item) bool {
			return it.ID == itemID
		})
	}
	for itemID, merged := range localUpdates {
		pos := b.index[itemID]
		b.containers[pos.Container][pos.Index] = merged
	}
	b.containers[id] = next

	b.changed()
	return true, nil
}

// mergeLocal combines an authoritative item with the client-local fields of
// the previous copy of the same id.
func mergeLocal(incoming, previous Item) Item {
	merged := incoming
	merged.AnnotationVisible = previous.AnnotationVisible
	merged.AnnotationText = previous.AnnotationText
	merged.AnnotationState = previous.AnnotationState
	merged.Deposit = previous.Deposit

	if merged.IsPersisted {
		merged.Deposit = DepositPersisted
	}
	return merged
}

// UpsertAnnotation updates the annotation of one item.
// Returns false if no container holds the item.
func (b *Board) UpsertAnnotation(itemID, text string, mode AnnotationMode, visible bool) bool {
	return b.update(itemID, func(it *Item) {
		switch mode {
		case AnnotationAppend:
			it.AnnotationText += text
		case AnnotationReplace:
			it.AnnotationText = text
		}
		it.AnnotationVisible = visible
	})
}

// SetAnnotationState records the annotation lifecycle state of one item.
func (b *Board) SetAnnotationState(itemID string, state AnnotationState) bool {
	return b.update(itemID, func(it *Item) {
		it.AnnotationState = state
	})
}

// SetDeposit records the bank deposit state of one item.
// DepositPersisted also marks the item persisted.
func (b *Board) SetDeposit(itemID string, state DepositState) bool {
	return b.update(itemID, func(it *Item) {
		it.Deposit = state
		if state == DepositPersisted {
			it.IsPersisted = true
		}
	})
}

// DeleteItem removes an item from whichever container holds it.
func (b *Board) DeleteItem(itemID string) (Item, bool) {
	pos, ok := b.index[itemID]
	if !ok {
		return Item{}, false
	}
	item := b.containers[pos.Container][pos.Index]
	b.containers[pos.Container] = slices.Delete(b.containers[pos.Container], pos.Index, pos.Index+1)
	b.changed()
	return item, true
}

func (b *Board) update(itemID string, fn func(*Item)) bool {
	pos, ok := b.index[itemID]
	if !ok {
		return false
	}
	item := b.containers[pos.Container][pos.Index]
	fn(&item)
	if item == b.containers[pos.Container][pos.Index] {
		return true
	}
	b.containers[pos.Container][pos.Index] = item
	b.version++
	return true
}

// changed bumps the version and rebuilds the reverse index.
func (b *Board) changed() {
	b.version++
	clear(b.index)
	for _, id := range b.order {
		for i, item := range b.containers[id] {
			b.index[item.ID] = Position{Container: id, Index: i}
		}
	}
}

// View returns an immutable copy of the board.
func (b *Board) View() View {
	v := View{
		Version:    b.version,
		Containers: make([]ContainerView, 0, len(b.order)),
	}
	for _, id := range b.order {
		v.Containers = append(v.Containers, ContainerView{
			ID:      id,
			Tracked: b.tracked[id],
			Items:   slices.Clone(b.containers[id]),
		})
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
