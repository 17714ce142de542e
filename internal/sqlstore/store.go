// Package sqlstore is a single-process durable store for a lanes board,
// backed by SQLite. Change notifications are delivered in-process.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/dyluth/lanes/pkg/boardstore"
)

type Store struct {
	db     *sql.DB
	layout boardstore.Layout
	bus    *broadcaster
}

// Open initializes the database at path and returns a store over it.
func Open(path string, layout boardstore.Layout) (*Store, error) {
	if layout.Feed == "" || layout.Bank == "" || layout.Feed == layout.Bank {
		return nil, fmt.Errorf("layout must name distinct feed and bank containers")
	}
	if layout.FeedLimit <= 0 {
		return nil, fmt.Errorf("feed limit must be positive, got %d", layout.FeedLimit)
	}

	db, err := Init(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, layout: layout, bus: newBroadcaster()}, nil
}

// Close ends all subscriptions and closes the database.
func (s *Store) Close() error {
	s.bus.closeAll()
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateItem inserts or updates an item and notifies items subscribers.
func (s *Store) CreateItem(ctx context.Context, item board.Item, createdAt time.Time) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	existed, err := s.itemExists(ctx, item.ID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, origin_source, origin_handle, display_time, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			origin_source = excluded.origin_source,
			origin_handle = excluded.origin_handle,
			display_time  = excluded.display_time,
			content       = excluded.content,
			created_at    = excluded.created_at
	`, item.ID, item.OriginSource, item.OriginHandle, item.DisplayTime, item.Content, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write item: %w", err)
	}

	kind := realtime.KindInsert
	if existed {
		kind = realtime.KindUpdate
	}
	s.bus.publish(realtime.Change{Table: realtime.TableItems, Kind: kind, ItemID: item.ID})
	return nil
}

// GetItem returns the item or a NOT_FOUND error.
func (s *Store) GetItem(ctx context.Context, itemID string) (board.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, origin_source, origin_handle, display_time, content
		FROM items WHERE id = ?
	`, itemID)

	var item board.Item
	if err := row.Scan(&item.ID, &item.OriginSource, &item.OriginHandle, &item.DisplayTime, &item.Content); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return board.Item{}, boarderrors.NewNotFound(itemID)
		}
		return board.Item{}, fmt.Errorf("failed to read item: %w", err)
	}
	return item, nil
}

func (s *Store) itemExists(ctx context.Context, itemID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, itemID).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return true, nil
}

// ScanItemIDs returns the ids of all items starting with prefix, sorted.
func (s *Store) ScanItemIDs(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM items WHERE substr(id, 1, length(?1)) = ?1 ORDER BY id
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BankMembers returns the ids in the bank in deposit order.
func (s *Store) BankMembers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id FROM bank ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bank member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchContainer has the same contract as the Redis store: the bank in
// deposit order with IsPersisted set, or the newest FeedLimit non-bank items.
func (s *Store) FetchContainer(ctx context.Context, id board.ContainerID) ([]board.Item, error) {
	switch id {
	case s.layout.Bank:
		items, err := s.queryItems(ctx, `
			SELECT i.id, i.origin_source, i.origin_handle, i.display_time, i.content
			FROM bank b JOIN items i ON i.id = b.item_id
			ORDER BY b.position
		`)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].IsPersisted = true
		}
		return items, nil
	case s.layout.Feed:
		return s.queryItems(ctx, `
			SELECT i.id, i.origin_source, i.origin_handle, i.display_time, i.content
			FROM items i
			WHERE NOT EXISTS (SELECT 1 FROM bank b WHERE b.item_id = i.id)
			ORDER BY i.created_at DESC, i.id DESC
			LIMIT ?
		`, s.layout.FeedLimit)
	default:
		return nil, boarderrors.NewPlacement("container is not backed by the store",
			map[string]any{"container": string(id)})
	}
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]board.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []board.Item{}
	for rows.Next() {
		var item board.Item
		if err := rows.Scan(&item.ID, &item.OriginSource, &item.OriginHandle, &item.DisplayTime, &item.Content); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// InsertBankMembership appends the item to the bank unless it is already a
// member; a missing item is a NOT_FOUND error.
func (s *Store) InsertBankMembership(ctx context.Context, itemID string) (bool, error) {
	exists, err := s.itemExists(ctx, itemID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, boarderrors.NewNotFound(itemID)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bank (item_id, position)
		SELECT ?, COALESCE(MAX(position), 0) + 1 FROM bank WHERE true
		ON CONFLICT(item_id) DO NOTHING
	`, itemID)
	if err != nil {
		return false, fmt.Errorf("failed to write bank membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read bank insert result: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.bus.publish(realtime.Change{Table: realtime.TableBank, Kind: realtime.KindInsert, ItemID: itemID})
	return true, nil
}

// DeleteItem removes the item and any bank membership in one transaction.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	bankRes, err := tx.ExecContext(ctx, `DELETE FROM bank WHERE item_id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete bank membership: %w", err)
	}
	itemRes, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	if n, _ := itemRes.RowsAffected(); n > 0 {
		s.bus.publish(realtime.Change{Table: realtime.TableItems, Kind: realtime.KindDelete, ItemID: itemID})
	}
	if n, _ := bankRes.RowsAffected(); n > 0 {
		s.bus.publish(realtime.Change{Table: realtime.TableBank, Kind: realtime.KindDelete, ItemID: itemID})
	}
	return nil
}

// SubscribeChanges delivers change events for the given tables until ctx
// ends or the subscription is closed.
func (s *Store) SubscribeChanges(ctx context.Context, tables ...string) (realtime.Subscription, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("at least one table is required")
	}
	return s.bus.subscribe(ctx, tables), nil
}
