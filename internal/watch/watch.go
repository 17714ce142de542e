// Package watch streams store change notifications to a terminal or a pipe.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/lanes/internal/realtime"
)

// OutputFormat specifies how change events are written.
type OutputFormat string

const (
	// OutputFormatDefault is human-readable, one line per change.
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON is line-delimited JSON, one object per change.
	OutputFormatJSON OutputFormat = "json"
)

// Event is one observed change with the time it was received.
type Event struct {
	ReceivedAt time.Time          `json:"received_at"`
	Table      string             `json:"table"`
	Kind       realtime.EventKind `json:"kind"`
	ItemID     string             `json:"item_id,omitempty"`
}

// StreamChanges subscribes to tables and writes every change until ctx is
// cancelled or the subscription ends. Subscription errors are reported and
// streaming continues.
func StreamChanges(ctx context.Context, source realtime.Source, tables []string, format OutputFormat, w io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", format)
	}

	sub, err := source.SubscribeChanges(ctx, tables...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}
	defer sub.Close()

	if format == OutputFormatDefault {
		fmt.Fprintf(w, "👀 Watching %v (Ctrl+C to stop)\n", tables)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-sub.Events():
			if !ok {
				return nil
			}
			ev := Event{ReceivedAt: time.Now(), Table: change.Table, Kind: change.Kind, ItemID: change.ItemID}
			if err := writeEvent(w, ev, format); err != nil {
				return err
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			if format == OutputFormatDefault {
				fmt.Fprintf(w, "⚠️  subscription error: %v\n", err)
			}
		}
	}
}

func writeEvent(w io.Writer, ev Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	_, err := fmt.Fprintln(w, FormatEvent(ev))
	return err
}

// FormatEvent renders one change as a single human-readable line.
func FormatEvent(ev Event) string {
	item := ev.ItemID
	if item == "" {
		item = "-"
	}
	return fmt.Sprintf("[%s] %s %-10s %-6s %s", ev.ReceivedAt.Format("15:04:05"), kindEmoji(ev.Kind), ev.Table, ev.Kind, item)
}

func kindEmoji(kind realtime.EventKind) string {
	switch kind {
	case realtime.KindInsert:
		return "✨"
	case realtime.KindUpdate:
		return "✏️ "
	case realtime.KindDelete:
		return "🗑️ "
	}
	return "•"
}
