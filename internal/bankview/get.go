package bankview

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
)

// ItemGetter reads a single item from a durable store.
type ItemGetter interface {
	GetItem(ctx context.Context, itemID string) (board.Item, error)
}

// GetItem retrieves one item and writes it as pretty-printed JSON.
func GetItem(ctx context.Context, getter ItemGetter, itemID string, w io.Writer) error {
	if itemID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}

	item, err := getter.GetItem(ctx, itemID)
	if err != nil {
		if boarderrors.Is(err, boarderrors.ErrNotFound) {
			return &ItemNotFoundError{ItemID: itemID}
		}
		return fmt.Errorf("failed to fetch item: %w", err)
	}

	if err := FormatSingleJSON(w, item); err != nil {
		return fmt.Errorf("failed to format item: %w", err)
	}
	return nil
}

// ItemNotFoundError lets callers tell a missing item from other failures.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item with ID '%s' not found", e.ItemID)
}

// IsNotFound returns true if the error is an ItemNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ItemNotFoundError)
	return ok
}
