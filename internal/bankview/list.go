package bankview

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/realtime"
)

// OutputFormat specifies how to format the item list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated content
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete items as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for listing a container.
// All filters are ANDed together.
type FilterCriteria struct {
	SourceGlob string // Glob pattern for origin source, empty = no filter
	Handle     string // Exact match for origin handle, empty = no filter
	Contains   string // Case-insensitive substring of content, empty = no filter
}

func (fc *FilterCriteria) matches(item board.Item) bool {
	if fc.SourceGlob != "" {
		matched, err := filepath.Match(fc.SourceGlob, item.OriginSource)
		if err != nil || !matched {
			return false
		}
	}
	if fc.Handle != "" && item.OriginHandle != fc.Handle {
		return false
	}
	if fc.Contains != "" && !strings.Contains(strings.ToLower(item.Content), strings.ToLower(fc.Contains)) {
		return false
	}
	return true
}

// ListContainer fetches one container from the store and writes it to w in
// store order (bank position, or newest first for the feed).
func ListContainer(ctx context.Context, fetcher realtime.Fetcher, container board.ContainerID, instanceName string, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	items, err := fetcher.FetchContainer(ctx, container)
	if err != nil {
		return fmt.Errorf("failed to fetch container '%s': %w", container, err)
	}

	if filters != nil {
		kept := items[:0]
		for _, item := range items {
			if filters.matches(item) {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	switch format {
	case OutputFormatDefault:
		FormatTable(w, items, container, instanceName)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, items); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
