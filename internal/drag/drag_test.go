package drag

import (
	"testing"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(ids ...string) []board.Item {
	out := make([]board.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, board.Item{ID: id, Content: "content " + id})
	}
	return out
}

// setupEngine creates feed-1 = [item-1, item-2], active-ops = [op-1], empty bank.
func setupEngine(t *testing.T) (*Engine, *board.Board) {
	t.Helper()
	b, err := board.New(board.DefaultTopology())
	require.NoError(t, err)
	_, err = b.ApplySnapshot(board.FeedContainer, items("item-1", "item-2"))
	require.NoError(t, err)
	_, err = b.ApplySnapshot(board.StagingContainer, items("op-1"))
	require.NoError(t, err)
	return NewEngine(b, board.BankContainer), b
}

// above and below produce hovers relative to a 100px card at top 0.
func above(id string) Hover {
	return Hover{TargetID: id, PointerY: 10, TargetTop: 0, TargetHeight: 100}
}
func below(id string) Hover {
	return Hover{TargetID: id, PointerY: 90, TargetTop: 0, TargetHeight: 100}
}

func TestDragAcrossContainers(t *testing.T) {
	t.Run("hover above midpoint inserts before target", func(t *testing.T) {
		e, b := setupEngine(t)

		_, err := e.Start("item-1")
		require.NoError(t, err)
		_, err = e.HoverOver(above("op-1"))
		require.NoError(t, err)

		out, err := e.End("op-1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeCommitted, out.Kind)
		assert.Equal(t, board.FeedContainer, out.Source)
		assert.Equal(t, board.StagingContainer, out.Destination)
		assert.Equal(t, 0, out.Index)
		assert.False(t, out.Deposit)

		assert.Equal(t, []string{"item-1", "op-1"}, b.View().IDs(board.StagingContainer))
		assert.Equal(t, []string{"item-2"}, b.View().IDs(board.FeedContainer))
		assert.False(t, e.Active())
	})

	t.Run("hover below midpoint inserts after target", func(t *testing.T) {
		e, b := setupEngine(t)

		_, err := e.Start("item-1")
		require.NoError(t, err)
		_, err = e.HoverOver(below("op-1"))
		require.NoError(t, err)
		assert.Equal(t, []string{"op-1", "item-1"}, b.View().IDs(board.StagingContainer))
	})

	t.Run("hover over container appends", func(t *testing.T) {
		e, b := setupEngine(t)

		_, err := e.Start("item-2")
		require.NoError(t, err)
		_, err = e.HoverOver(Hover{TargetID: string(board.StagingContainer)})
		require.NoError(t, err)
		assert.Equal(t, []string{"op-1", "item-2"}, b.View().IDs(board.StagingContainer))
	})

	t.Run("provisional moves supersede each other", func(t *testing.T) {
		e, b := setupEngine(t)

		_, err := e.Start("item-1")
		require.NoError(t, err)
		_, err = e.HoverOver(above("op-1"))
		require.NoError(t, err)
		_, err = e.HoverOver(Hover{TargetID: string(board.BankContainer)})
		require.NoError(t, err)

		v := b.View()
		assert.Equal(t, []string{"op-1"}, v.IDs(board.StagingContainer))
		assert.Equal(t, []string{"item-1"}, v.IDs(board.BankContainer))
		assert.Empty(t, v.Duplicates())

		s, ok := e.Session()
		require.True(t, ok)
		assert.Equal(t, board.BankContainer, s.LastHoverContainerID)
		assert.Equal(t, board.FeedContainer, s.SourceContainerID)
	})
}

func TestDragWithinContainer(t *testing.T) {
	tests := []struct {
		name   string
		active string
		hover  Hover
		want   []string
	}{
		{"first above last", "a", above("c"), []string{"b", "a", "c"}},
		{"first below last", "a", below("c"), []string{"b", "c", "a"}},
		{"last above first", "c", above("a"), []string{"c", "a", "b"}},
		{"last below first", "c", below("a"), []string{"a", "c", "b"}},
		{"container hover moves to end", "a", Hover{TargetID: string(board.FeedContainer)}, []string{"b", "c", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := board.New(board.DefaultTopology())
			require.NoError(t, err)
			_, err = b.ApplySnapshot(board.FeedContainer, items("a", "b", "c"))
			require.NoError(t, err)
			e := NewEngine(b, board.BankContainer)

			_, err = e.Start(tt.active)
			require.NoError(t, err)
			_, err = e.HoverOver(tt.hover)
			require.NoError(t, err)
			out, err := e.End(tt.hover.TargetID)
			require.NoError(t, err)

			assert.Equal(t, OutcomeCommitted, out.Kind)
			assert.Equal(t, tt.want, b.View().IDs(board.FeedContainer))
		})
	}
}

func TestRepeatedHoverDoesNotThrash(t *testing.T) {
	e, b := setupEngine(t)
	_, err := e.Start("item-1")
	require.NoError(t, err)

	_, err = e.HoverOver(above("op-1"))
	require.NoError(t, err)
	version := b.Version()

	for i := 0; i < 5; i++ {
		_, err = e.HoverOver(above("op-1"))
		require.NoError(t, err)
	}
	assert.Equal(t, version, b.Version())
}

func TestOnlyItemOntoItselfIsNoOp(t *testing.T) {
	b, err := board.New(board.DefaultTopology())
	require.NoError(t, err)
	_, err = b.ApplySnapshot(board.StagingContainer, items("solo"))
	require.NoError(t, err)
	e := NewEngine(b, board.BankContainer)
	version := b.Version()

	_, err = e.Start("solo")
	require.NoError(t, err)
	_, err = e.HoverOver(above("solo"))
	require.NoError(t, err)
	_, err = e.HoverOver(Hover{TargetID: string(board.StagingContainer)})
	require.NoError(t, err)
	out, err := e.End("solo")
	require.NoError(t, err)

	assert.Equal(t, OutcomeCommitted, out.Kind)
	assert.Equal(t, version, b.Version())
	assert.Equal(t, []string{"solo"}, b.View().IDs(board.StagingContainer))
}

func TestAbort(t *testing.T) {
	t.Run("end over nothing restores placement", func(t *testing.T) {
		e, b := setupEngine(t)
		before := b.View()

		_, err := e.Start("item-2")
		require.NoError(t, err)
		_, err = e.HoverOver(above("op-1"))
		require.NoError(t, err)
		_, err = e.HoverOver(Hover{TargetID: string(board.BankContainer)})
		require.NoError(t, err)

		out, err := e.End("")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAborted, out.Kind)
		assert.Equal(t, before.IDs(board.FeedContainer), b.View().IDs(board.FeedContainer))
		assert.Empty(t, b.View().IDs(board.BankContainer))
		assert.False(t, e.Active())
	})

	t.Run("explicit cancel restores placement", func(t *testing.T) {
		e, b := setupEngine(t)

		_, err := e.Start("item-1")
		require.NoError(t, err)
		_, err = e.HoverOver(below("op-1"))
		require.NoError(t, err)

		out := e.Cancel()
		assert.Equal(t, OutcomeAborted, out.Kind)
		assert.Equal(t, []string{"item-1", "item-2"}, b.View().IDs(board.FeedContainer))
		assert.Equal(t, []string{"op-1"}, b.View().IDs(board.StagingContainer))
	})

	t.Run("unknown drop target aborts", func(t *testing.T) {
		e, _ := setupEngine(t)
		_, err := e.Start("item-1")
		require.NoError(t, err)

		out, err := e.End("nowhere")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAborted, out.Kind)
	})

	t.Run("starting a new drag aborts the old one", func(t *testing.T) {
		e, b := setupEngine(t)
		_, err := e.Start("item-1")
		require.NoError(t, err)
		_, err = e.HoverOver(above("op-1"))
		require.NoError(t, err)

		prior, err := e.Start("item-2")
		require.NoError(t, err)
		assert.Equal(t, OutcomeAborted, prior.Kind)
		assert.Equal(t, []string{"item-1", "item-2"}, b.View().IDs(board.FeedContainer))

		s, ok := e.Session()
		require.True(t, ok)
		assert.Equal(t, "item-2", s.ActiveItemID)
	})
}

func TestStaleReferences(t *testing.T) {
	t.Run("start on unknown item", func(t *testing.T) {
		e, _ := setupEngine(t)
		_, err := e.Start("ghost")
		assert.True(t, boarderrors.Is(err, boarderrors.ErrNotFound))
		assert.False(t, e.Active())
	})

	t.Run("unknown hover target keeps the session", func(t *testing.T) {
		e, b := setupEngine(t)
		_, err := e.Start("item-1")
		require.NoError(t, err)
		version := b.Version()

		_, err = e.HoverOver(above("ghost"))
		assert.True(t, boarderrors.Is(err, boarderrors.ErrPlacement))
		assert.True(t, e.Active())
		assert.Equal(t, version, b.Version())
	})

	t.Run("active item removed by snapshot aborts the session", func(t *testing.T) {
		e, b := setupEngine(t)
		_, err := e.Start("item-1")
		require.NoError(t, err)

		_, err = b.ApplySnapshot(board.FeedContainer, items("item-2"))
		require.NoError(t, err)

		out, err := e.HoverOver(above("op-1"))
		assert.True(t, boarderrors.Is(err, boarderrors.ErrNotFound))
		assert.Equal(t, OutcomeAborted, out.Kind)
		assert.False(t, e.Active())
	})
}

func TestBankCommitRequestsDeposit(t *testing.T) {
	t.Run("fresh item", func(t *testing.T) {
		e, b := setupEngine(t)
		_, err := e.Start("item-2")
		require.NoError(t, err)
		_, err = e.HoverOver(Hover{TargetID: string(board.BankContainer)})
		require.NoError(t, err)

		out, err := e.End(string(board.BankContainer))
		require.NoError(t, err)
		assert.True(t, out.Deposit)
		assert.Equal(t, []string{"item-2"}, b.View().IDs(board.BankContainer))
	})

	t.Run("pending item is not deposited twice", func(t *testing.T) {
		e, b := setupEngine(t)
		require.True(t, b.SetDeposit("item-2", board.DepositPending))

		_, err := e.Start("item-2")
		require.NoError(t, err)
		_, err = e.HoverOver(Hover{TargetID: string(board.BankContainer)})
		require.NoError(t, err)
		out, err := e.End(string(board.BankContainer))
		require.NoError(t, err)
		assert.False(t, out.Deposit)
	})

	t.Run("reorder inside the bank", func(t *testing.T) {
		b, err := board.New(board.DefaultTopology())
		require.NoError(t, err)
		persisted := items("x", "y")
		for i := range persisted {
			persisted[i].IsPersisted = true
		}
		_, err = b.ApplySnapshot(board.BankContainer, persisted)
		require.NoError(t, err)
		e := NewEngine(b, board.BankContainer)

		_, err = e.Start("x")
		require.NoError(t, err)
		_, err = e.HoverOver(below("y"))
		require.NoError(t, err)
		out, err := e.End("y")
		require.NoError(t, err)
		assert.False(t, out.Deposit)
		assert.Equal(t, []string{"y", "x"}, b.View().IDs(board.BankContainer))
	})
}
