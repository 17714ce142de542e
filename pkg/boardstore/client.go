package boardstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/lanes/internal/board"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/redis/go-redis/v9"
)

// Layout names the tracked containers the store can fill.
type Layout struct {
	Feed      board.ContainerID
	Bank      board.ContainerID
	FeedLimit int
}

// DefaultLayout is the feed and bank of the default topology with the
// 20 most recent feed items.
func DefaultLayout() Layout {
	return Layout{
		Feed:      board.FeedContainer,
		Bank:      board.BankContainer,
		FeedLimit: 20,
	}
}

// Client provides instance-scoped Redis operations for the board.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
	layout       Layout
}

// NewClient creates a new store client for the specified instance.
//
// Returns an error if instanceName is empty or the layout is incomplete.
func NewClient(redisOpts *redis.Options, instanceName string, layout Layout) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	if layout.Feed == "" || layout.Bank == "" {
		return nil, fmt.Errorf("layout must name both feed and bank containers")
	}
	if layout.Feed == layout.Bank {
		return nil, fmt.Errorf("feed and bank containers must differ")
	}
	if layout.FeedLimit <= 0 {
		return nil, fmt.Errorf("feed limit must be positive, got %d", layout.FeedLimit)
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
		layout:       layout,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RedisClient exposes the underlying connection for callers that need raw access.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// InstanceName returns the namespace this client writes under.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// CreateItem writes an item to Redis, adds it to the feed index, and
// publishes an items change. Writing the same item twice overwrites its
// content and publishes an UPDATE.
func (c *Client) CreateItem(ctx context.Context, item board.Item, createdAt time.Time) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}

	key := ItemKey(c.instanceName, item.ID)
	existed, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check item existence: %w", err)
	}

	createdAtMs := createdAt.UnixMilli()
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, ItemToHash(item, createdAtMs))
	pipe.ZAdd(ctx, FeedKey(c.instanceName), redis.Z{Score: float64(createdAtMs), Member: item.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write item to Redis: %w", err)
	}

	kind := realtime.KindInsert
	if existed > 0 {
		kind = realtime.KindUpdate
	}
	return c.publish(ctx, realtime.Change{Table: realtime.TableItems, Kind: kind, ItemID: item.ID})
}

// GetItem retrieves an item by ID.
// A missing item is a NOT_FOUND BoardError wrapping redis.Nil, so both
// IsNotFound() and boarderrors.Is(err, ErrNotFound) match it.
func (c *Client) GetItem(ctx context.Context, itemID string) (board.Item, error) {
	hashData, err := c.rdb.HGetAll(ctx, ItemKey(c.instanceName, itemID)).Result()
	if err != nil {
		return board.Item{}, fmt.Errorf("failed to read item from Redis: %w", err)
	}
	if len(hashData) == 0 {
		nf := boarderrors.NewNotFound(itemID)
		nf.Err = redis.Nil
		return board.Item{}, nf
	}

	item, _, err := HashToItem(hashData)
	if err != nil {
		return board.Item{}, fmt.Errorf("failed to deserialize item: %w", err)
	}
	return item, nil
}

// ItemExists checks if an item exists without fetching it.
func (c *Client) ItemExists(ctx context.Context, itemID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, ItemKey(c.instanceName, itemID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return exists > 0, nil
}

// ScanItemIDs returns the ids of all items starting with prefix, sorted.
// Uses SCAN so large keyspaces do not block the server.
func (c *Client) ScanItemIDs(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := ItemKey(c.instanceName, "")
	iter := c.rdb.Scan(ctx, 0, keyPrefix+escapeGlob(prefix)+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BankMembers returns the ids in the bank in deposit order.
func (c *Client) BankMembers(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.ZRange(ctx, BankKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bank members: %w", err)
	}
	return ids, nil
}

// FetchContainer reads the authoritative contents of the feed or the bank.
// The bank is returned in deposit order with IsPersisted set. The feed holds
// the newest FeedLimit items that are not in the bank, newest first.
func (c *Client) FetchContainer(ctx context.Context, id board.ContainerID) ([]board.Item, error) {
	switch id {
	case c.layout.Bank:
		return c.fetchBank(ctx)
	case c.layout.Feed:
		return c.fetchFeed(ctx)
	default:
		return nil, boarderrors.NewPlacement("container is not backed by the store",
			map[string]any{"container": string(id)})
	}
}

func (c *Client) fetchBank(ctx context.Context) ([]board.Item, error) {
	ids, err := c.BankMembers(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].IsPersisted = true
	}
	return items, nil
}

func (c *Client) fetchFeed(ctx context.Context) ([]board.Item, error) {
	banked, err := c.BankMembers(ctx)
	if err != nil {
		return nil, err
	}
	inBank := make(map[string]bool, len(banked))
	for _, id := range banked {
		inBank[id] = true
	}

	// Over-read by the bank size so filtering still leaves FeedLimit items.
	stop := int64(c.layout.FeedLimit + len(banked) - 1)
	ids, err := c.rdb.ZRevRange(ctx, FeedKey(c.instanceName), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read feed index: %w", err)
	}

	feed := make([]string, 0, c.layout.FeedLimit)
	for _, id := range ids {
		if inBank[id] {
			continue
		}
		feed = append(feed, id)
		if len(feed) == c.layout.FeedLimit {
			break
		}
	}
	return c.loadItems(ctx, feed)
}

// loadItems reads item hashes in order, skipping ids whose hash is gone.
func (c *Client) loadItems(ctx context.Context, ids []string) ([]board.Item, error) {
	if len(ids) == 0 {
		return []board.Item{}, nil
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, ItemKey(c.instanceName, id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read items from Redis: %w", err)
	}

	items := make([]board.Item, 0, len(ids))
	for _, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			continue
		}
		item, _, err := HashToItem(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// InsertBankMembership appends the item to the bank unless it is already a
// member. It reports whether a new membership was created and publishes a
// bank change only in that case. A missing item is a NOT_FOUND error.
func (c *Client) InsertBankMembership(ctx context.Context, itemID string) (bool, error) {
	exists, err := c.ItemExists(ctx, itemID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, boarderrors.NewNotFound(itemID)
	}

	position, err := c.rdb.Incr(ctx, BankSeqKey(c.instanceName)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to allocate bank position: %w", err)
	}

	added, err := c.rdb.ZAddNX(ctx, BankKey(c.instanceName), redis.Z{
		Score:  float64(position),
		Member: itemID,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write bank membership: %w", err)
	}
	if added == 0 {
		return false, nil
	}

	if err := c.publish(ctx, realtime.Change{Table: realtime.TableBank, Kind: realtime.KindInsert, ItemID: itemID}); err != nil {
		return true, err
	}
	return true, nil
}

// DeleteItem removes the item hash, its feed entry, and any bank membership.
// Deleting a missing item is not an error.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	pipe := c.rdb.TxPipeline()
	del := pipe.Del(ctx, ItemKey(c.instanceName, itemID))
	pipe.ZRem(ctx, FeedKey(c.instanceName), itemID)
	bankRem := pipe.ZRem(ctx, BankKey(c.instanceName), itemID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete item from Redis: %w", err)
	}

	if del.Val() > 0 {
		if err := c.publish(ctx, realtime.Change{Table: realtime.TableItems, Kind: realtime.KindDelete, ItemID: itemID}); err != nil {
			return err
		}
	}
	if bankRem.Val() > 0 {
		if err := c.publish(ctx, realtime.Change{Table: realtime.TableBank, Kind: realtime.KindDelete, ItemID: itemID}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) publish(ctx context.Context, change realtime.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	channel := ChangesChannel(c.instanceName, change.Table)
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
