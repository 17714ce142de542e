// Package resolver turns the short item ids shown in tables back into full ids.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// MinShortIDLength is the minimum length accepted for a prefix lookup.
const MinShortIDLength = 6

// maxListed caps the ids printed for an ambiguous prefix.
const maxListed = 10

// Store is what resolution needs from a durable store.
type Store interface {
	GetItem(ctx context.Context, itemID string) (board.Item, error)
	ScanItemIDs(ctx context.Context, prefix string) ([]string, error)
}

// ResolveItemID returns the full id for input. An exact id match wins;
// otherwise input must be a prefix of at least MinShortIDLength characters
// that matches exactly one item.
func ResolveItemID(ctx context.Context, store Store, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("item ID cannot be empty")
	}

	_, err := store.GetItem(ctx, input)
	if err == nil {
		return input, nil
	}
	if !boarderrors.Is(err, boarderrors.ErrNotFound) {
		return "", fmt.Errorf("failed to verify item existence: %w", err)
	}

	if len(input) < MinShortIDLength {
		return "", &NotFoundError{ShortID: input}
	}

	matches, err := store.ScanItemIDs(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to search for item: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: input}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: input, Matches: matches}
	}
}

// NotFoundError indicates no item matched the id or prefix.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no items found matching '%s'", e.ShortID)
}

// AmbiguousError indicates several items share the prefix.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d items", e.ShortID, len(e.Matches))
}

// Explain lists the matching ids (up to ten) for display.
func (e *AmbiguousError) Explain() string {
	var b strings.Builder
	shown := e.Matches
	if len(shown) > maxListed {
		shown = shown[:maxListed]
	}
	for _, id := range shown {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(e.Matches) > maxListed {
		fmt.Fprintf(&b, "  ...and %d more\n", len(e.Matches)-maxListed)
	}
	return b.String()
}

func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
