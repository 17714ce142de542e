// Package realtime turns store change notifications into authoritative
// container snapshots for the engine.
//
// Notifications are treated as "something changed" signals only; their
// payloads are never trusted. Each one triggers a full re-fetch of every
// container its table maps to.
package realtime

import (
	"context"
	"sort"
	"time"

	"github.com/dyluth/lanes/internal/board"
)

// Store tables that emit change notifications.
const (
	TableItems = "items"
	TableBank  = "the_bank"
)

// EventKind is the kind of row change that produced a notification.
type EventKind string

const (
	KindInsert EventKind = "INSERT"
	KindUpdate EventKind = "UPDATE"
	KindDelete EventKind = "DELETE"
)

// Change is one notification from a store. ItemID is informational.
type Change struct {
	Table  string    `json:"table"`
	Kind   EventKind `json:"kind"`
	ItemID string    `json:"item_id,omitempty"`
}

// Subscription delivers change notifications for one or more tables.
// Errors are non-fatal; the subscription keeps running after one.
type Subscription interface {
	Events() <-chan Change
	Errors() <-chan error
	Close() error
}

// Source opens change subscriptions.
type Source interface {
	SubscribeChanges(ctx context.Context, tables ...string) (Subscription, error)
}

// Fetcher reads the authoritative contents of a tracked container.
type Fetcher interface {
	FetchContainer(ctx context.Context, id board.ContainerID) ([]board.Item, error)
}

// Snapshot is the fetched contents of one container.
type Snapshot struct {
	Container board.ContainerID
	Items     []board.Item
	FetchedAt time.Time
}

// Routes maps a store table to the containers its changes invalidate.
type Routes map[string][]board.ContainerID

// DefaultRoutes maps the bank table to the bank and the items table to the feed.
func DefaultRoutes() Routes {
	return Routes{
		TableBank:  {board.BankContainer},
		TableItems: {board.FeedContainer},
	}
}

// Tables returns the routed table names in sorted order.
func (r Routes) Tables() []string {
	tables := make([]string, 0, len(r))
	for table := range r {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}
