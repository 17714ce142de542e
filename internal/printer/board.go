package printer

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/lanes/internal/board"
	"github.com/fatih/color"
)

var (
	bold    = color.New(color.Bold)
	faint   = color.New(color.Faint)
	magenta = color.New(color.FgMagenta)
)

// Board renders every container of a view as a column of cards, in order.
func Board(w io.Writer, view board.View) {
	faint.Fprintf(w, "board v%d\n", view.Version)
	for _, c := range view.Containers {
		kind := "local"
		if c.Tracked {
			kind = "tracked"
		}
		bold.Fprintf(w, "\n%s", c.ID)
		faint.Fprintf(w, " (%s, %d)\n", kind, len(c.Items))
		if len(c.Items) == 0 {
			faint.Fprintln(w, "  (empty)")
			continue
		}
		for i, item := range c.Items {
			Card(w, i, item)
		}
	}
}

// Card renders one item with its deposit and annotation markers.
func Card(w io.Writer, index int, item board.Item) {
	fmt.Fprintf(w, "  %2d. %s", index, item.ID)
	if item.OriginHandle != "" {
		cyan.Fprintf(w, " %s", item.OriginHandle)
	}
	if marker := depositMarker(item); marker != "" {
		fmt.Fprint(w, " ")
		marker.print(w)
	}
	fmt.Fprintln(w)

	if content := strings.TrimSpace(item.Content); content != "" {
		fmt.Fprintf(w, "      %s\n", firstLine(content, 72))
	}

	if !item.AnnotationVisible {
		return
	}
	switch item.AnnotationState {
	case board.AnnotationRequesting:
		faint.Fprintln(w, "      … requesting annotation")
	case board.AnnotationFailed:
		if item.AnnotationText != "" {
			magenta.Fprintf(w, "      » %s\n", firstLine(item.AnnotationText, 72))
		}
		red.Fprintln(w, "      ✗ annotation failed")
	default:
		if item.AnnotationText != "" {
			magenta.Fprintf(w, "      » %s\n", firstLine(item.AnnotationText, 72))
		}
	}
}

type marker string

func (m marker) print(w io.Writer) {
	switch m {
	case "saved":
		green.Fprint(w, "[saved]")
	case "retry":
		red.Fprint(w, "[retry]")
	default:
		yellow.Fprintf(w, "[%s]", string(m))
	}
}

func depositMarker(item board.Item) marker {
	switch {
	case item.Deposit == board.DepositRetry:
		return "retry"
	case item.Deposit == board.DepositPending:
		return "saving"
	case item.IsPersisted:
		return "saved"
	}
	return ""
}

func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
