package printer

import (
	"bytes"
	"testing"

	"github.com/dyluth/lanes/internal/board"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestBoard(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	view := board.View{
		Version: 7,
		Containers: []board.ContainerView{
			{ID: board.FeedContainer, Tracked: true, Items: []board.Item{
				{ID: "item-1", OriginHandle: "@desk", Content: "Storm warning\nsecond line"},
			}},
			{ID: board.StagingContainer},
			{ID: board.BankContainer, Tracked: true, Items: []board.Item{
				{ID: "item-2", IsPersisted: true, Deposit: board.DepositPersisted,
					AnnotationVisible: true, AnnotationText: "Context here", AnnotationState: board.AnnotationComplete},
				{ID: "item-3", Deposit: board.DepositRetry},
				{ID: "item-4", Deposit: board.DepositPending,
					AnnotationVisible: true, AnnotationText: "half", AnnotationState: board.AnnotationFailed},
			}},
		},
	}

	var buf bytes.Buffer
	Board(&buf, view)
	out := buf.String()

	assert.Contains(t, out, "board v7")
	assert.Contains(t, out, "feed-1 (tracked, 1)")
	assert.Contains(t, out, "active-ops (local, 0)")
	assert.Contains(t, out, "  (empty)")
	assert.Contains(t, out, "   0. item-1 @desk\n")
	assert.Contains(t, out, "Storm warning\n")
	assert.NotContains(t, out, "second line")
	assert.Contains(t, out, "item-2 [saved]")
	assert.Contains(t, out, "» Context here")
	assert.Contains(t, out, "item-3 [retry]")
	assert.Contains(t, out, "item-4 [saving]")
	assert.Contains(t, out, "» half")
	assert.Contains(t, out, "✗ annotation failed")
}

func TestCard_RequestingAnnotation(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	Card(&buf, 3, board.Item{ID: "x", AnnotationVisible: true, AnnotationState: board.AnnotationRequesting})
	assert.Equal(t, "   3. x\n      … requesting annotation\n", buf.String())
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "abc", firstLine("abc\ndef", 10))
	assert.Equal(t, "abcdefg...", firstLine("abcdefghijklmnop", 10))
}
