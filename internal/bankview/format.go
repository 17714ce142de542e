package bankview

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/lanes/internal/board"
)

// FormatTable writes items as a formatted table to the provided writer.
// Columns: ID, SOURCE, HANDLE, TIME, CONTENT (truncated).
// Returns the number of items formatted.
func FormatTable(w io.Writer, items []board.Item, container board.ContainerID, instanceName string) int {
	if len(items) == 0 {
		fmt.Fprintf(w, "No items in '%s' for instance '%s'\n", container, instanceName)
		return 0
	}

	fmt.Fprintf(w, "Items in '%s' for instance '%s':\n\n", container, instanceName)

	fmt.Fprintf(w, "%-10s %-12s %-16s %-10s %s\n",
		"ID", "SOURCE", "HANDLE", "TIME", "CONTENT")
	fmt.Fprintf(w, "%-10s %-12s %-16s %-10s %s\n",
		"----------", "------------", "----------------", "----------", "----------------------------------------")

	for _, item := range items {
		fmt.Fprintf(w, "%-10s %-12s %-16s %-10s %s\n",
			formatID(item.ID),
			formatField(item.OriginSource, 12),
			formatField(item.OriginHandle, 16),
			formatField(item.DisplayTime, 10),
			formatContent(item.Content),
		)
	}

	noun := "item"
	if len(items) != 1 {
		noun = "items"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(items), noun)

	return len(items)
}

// FormatJSONL writes one compact JSON object per item.
func FormatJSONL(w io.Writer, items []board.Item) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes a single item as pretty-printed JSON.
func FormatSingleJSON(w io.Writer, item board.Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal item to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)
	return nil
}

// formatID truncates item IDs to the first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatField(value string, width int) string {
	if value == "" {
		return "-"
	}
	if len(value) > width {
		return value[:width-3] + "..."
	}
	return value
}

// formatContent returns the first non-empty line, truncated to 40 characters.
// Empty content returns "-".
func formatContent(content string) string {
	var firstLine string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			firstLine = trimmed
			break
		}
	}

	if firstLine == "" {
		return "-"
	}
	if len(firstLine) > 40 {
		return firstLine[:37] + "..."
	}
	return firstLine
}
