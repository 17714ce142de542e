package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/config"
	"github.com/dyluth/lanes/internal/printer"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/dyluth/lanes/internal/resolver"
	"github.com/dyluth/lanes/internal/sqlstore"
	"github.com/dyluth/lanes/pkg/boardstore"
)

// backend is what every command needs from a durable store. Both the Redis
// and SQLite stores satisfy it.
type backend interface {
	realtime.Fetcher
	realtime.Source
	CreateItem(ctx context.Context, item board.Item, createdAt time.Time) error
	GetItem(ctx context.Context, itemID string) (board.Item, error)
	ScanItemIDs(ctx context.Context, prefix string) ([]string, error)
	InsertBankMembership(ctx context.Context, itemID string) (bool, error)
	DeleteItem(ctx context.Context, itemID string) error
	UpsertPersona(ctx context.Context, p board.Persona) error
	GetPersona(ctx context.Context, personaID string) (board.Persona, error)
	ListPersonas(ctx context.Context) ([]board.Persona, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ backend = (*boardstore.Client)(nil)
	_ backend = (*sqlstore.Store)(nil)
)

// openBackend connects to the configured store and verifies it answers.
func openBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	var (
		store backend
		err   error
	)

	switch cfg.Backend {
	case config.BackendSQLite:
		store, err = sqlstore.Open(cfg.SQLite.Path, cfg.Layout())
		if err != nil {
			return nil, printer.ErrorWithContext(
				"SQLite store unavailable",
				err.Error(),
				map[string]string{"Path": cfg.SQLite.Path},
				[]string{"Check the path is writable, or set sqlite.path in lanes.yml"},
			)
		}

	default:
		opts, perr := cfg.RedisOptions()
		if perr != nil {
			return nil, printer.Error("invalid Redis URL", perr.Error(), []string{"Set redis.url or LANES_REDIS_URL"})
		}
		store, err = boardstore.NewClient(opts, cfg.Instance, cfg.Layout())
		if err != nil {
			return nil, fmt.Errorf("failed to create store client: %w", err)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, printer.ErrorWithContext(
			"store connection failed",
			fmt.Sprintf("Could not reach the %s store: %v", cfg.Backend, err),
			map[string]string{"Backend": cfg.Backend, "Instance": cfg.Instance},
			[]string{
				"Start Redis locally:\n  docker run -p 6379:6379 redis:7-alpine",
				"Use the embedded store instead:\n  LANES_BACKEND=sqlite lanes ...",
			},
		)
	}

	return store, nil
}

// resolveItem expands a full or short item id, turning resolver failures
// into printed errors.
func resolveItem(ctx context.Context, store backend, input string) (string, error) {
	id, err := resolver.ResolveItemID(ctx, store, input)
	if err == nil {
		return id, nil
	}

	switch e := err.(type) {
	case *resolver.NotFoundError:
		return "", printer.Error(
			"item not found",
			fmt.Sprintf("No item matching '%s' in instance '%s'", input, cfg.Instance),
			[]string{
				"List the bank:\n  lanes bank",
				"List the feed:\n  lanes bank --container " + cfg.Board.Feed,
			},
		)
	case *resolver.AmbiguousError:
		return "", printer.Error(
			"ambiguous item ID",
			fmt.Sprintf("'%s' matches %d items:\n%s", input, len(e.Matches), e.Explain()),
			[]string{"Use more characters of the ID"},
		)
	default:
		return "", err
	}
}
