// Package persist forwards bank deposits and deletes from the board to the
// durable store.
package persist

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/dyluth/lanes/internal/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Store is the durable side of a bank deposit.
// InsertBankMembership must be idempotent: it reports false when the item
// already had a membership record.
type Store interface {
	InsertBankMembership(ctx context.Context, itemID string) (bool, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// Ack confirms a durable bank membership. Created is false when the record
// already existed.
type Ack struct {
	ItemID  string `json:"item_id"`
	Created bool   `json:"created"`
}

// RetryPolicy bounds CommitWithRetry.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy backs off from 500ms to 5s and gives up after 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Bridge is safe for concurrent use.
type Bridge struct {
	store  Store
	policy RetryPolicy
	logger zerolog.Logger

	deposits singleflight.Group
	issued   atomic.Int64 // deposit calls registered with deposits
}

// NewBridge creates a Bridge writing to store.
func NewBridge(store Store, policy RetryPolicy, logger zerolog.Logger) *Bridge {
	return &Bridge{
		store:  store,
		policy: policy,
		logger: logger.With().Str("component", "persist").Logger(),
	}
}

// CommitBankDeposit records that itemID belongs to the bank.
// Concurrent calls for the same item share one store call and its result.
// Failures are returned as PERSIST errors, or NOT_FOUND when the store has no
// such item.
func (b *Bridge) CommitBankDeposit(ctx context.Context, itemID string) (Ack, error) {
	ch := b.deposits.DoChan(itemID, func() (any, error) {
		// The call is shared; one caller giving up must not fail the rest.
		return b.commit(context.WithoutCancel(ctx), itemID)
	})
	b.issued.Add(1)

	select {
	case res := <-ch:
		if res.Shared {
			b.logger.Debug().Str("item_id", itemID).Msg("deposit_shared")
		}
		ack, _ := res.Val.(Ack)
		return ack, res.Err
	case <-ctx.Done():
		return Ack{}, boarderrors.NewPersist(itemID, ctx.Err())
	}
}

func (b *Bridge) commit(ctx context.Context, itemID string) (Ack, error) {
	created, err := b.store.InsertBankMembership(ctx, itemID)
	if err != nil {
		observability.RecordDeposit("failed")
		b.logger.Warn().Err(err).Str("item_id", itemID).Msg("deposit_failed")
		if boarderrors.Is(err, boarderrors.ErrNotFound) {
			return Ack{}, err
		}
		return Ack{}, boarderrors.NewPersist(itemID, err)
	}

	if created {
		observability.RecordDeposit("created")
	} else {
		observability.RecordDeposit("duplicate")
	}
	b.logger.Info().Str("item_id", itemID).Bool("created", created).Msg("deposit_committed")
	return Ack{ItemID: itemID, Created: created}, nil
}

// CommitWithRetry repeats CommitBankDeposit with exponential backoff until it
// succeeds, the policy's elapsed time runs out, or ctx ends. A NOT_FOUND
// result is not retried.
func (b *Bridge) CommitWithRetry(ctx context.Context, itemID string) (Ack, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.policy.InitialInterval
	if b.policy.MaxInterval > 0 {
		bo.MaxInterval = b.policy.MaxInterval
	}
	bo.MaxElapsedTime = b.policy.MaxElapsedTime

	var ack Ack
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		ack, err = b.CommitBankDeposit(ctx, itemID)
		if boarderrors.Is(err, boarderrors.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		b.logger.Debug().
			Err(err).
			Str("item_id", itemID).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("deposit_retry_scheduled")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		b.logger.Error().Err(err).Str("item_id", itemID).Int("attempts", attempt).Msg("deposit_retry_exhausted")
		return Ack{}, err
	}
	return ack, nil
}

// DeleteItem removes the item record and any bank membership.
func (b *Bridge) DeleteItem(ctx context.Context, itemID string) error {
	if err := b.store.DeleteItem(ctx, itemID); err != nil {
		b.logger.Warn().Err(err).Str("item_id", itemID).Msg("delete_failed")
		return boarderrors.NewPersist(itemID, err)
	}
	b.logger.Info().Str("item_id", itemID).Msg("item_deleted")
	return nil
}
