package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	boarderrors "github.com/dyluth/lanes/internal/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) InsertBankMembership(ctx context.Context, itemID string) (bool, error) {
	args := m.Called(ctx, itemID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) DeleteItem(ctx context.Context, itemID string) error {
	args := m.Called(ctx, itemID)
	return args.Error(0)
}

func anyContext() any {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  500 * time.Millisecond,
	}
}

func TestCommitBankDeposit(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(true, nil).Once()
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		ack, err := bridge.CommitBankDeposit(context.Background(), "item-2")
		require.NoError(t, err)
		assert.Equal(t, Ack{ItemID: "item-2", Created: true}, ack)
		store.AssertExpectations(t)
	})

	t.Run("already a member", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(false, nil).Once()
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		ack, err := bridge.CommitBankDeposit(context.Background(), "item-2")
		require.NoError(t, err)
		assert.False(t, ack.Created)
	})

	t.Run("store failure is a persist error", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(false, errors.New("connection reset")).Once()
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		_, err := bridge.CommitBankDeposit(context.Background(), "item-2")
		require.Error(t, err)
		assert.True(t, boarderrors.Is(err, boarderrors.ErrPersist))
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("missing item passes through as not found", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "ghost").Return(false, boarderrors.NewNotFound("ghost")).Once()
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		_, err := bridge.CommitBankDeposit(context.Background(), "ghost")
		assert.True(t, boarderrors.Is(err, boarderrors.ErrNotFound))
	})
}

func TestCommitBankDepositSingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	store := &mockStore{}
	store.On("InsertBankMembership", anyContext(), "item-2").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(true, nil).Once()
	bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

	const callers = 5
	acks := make([]Ack, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		acks[0], _ = bridge.CommitBankDeposit(context.Background(), "item-2")
	}()
	<-entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acks[i], _ = bridge.CommitBankDeposit(context.Background(), "item-2")
		}(i)
	}
	require.Eventually(t, func() bool {
		return bridge.issued.Load() == callers
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	store.AssertNumberOfCalls(t, "InsertBankMembership", 1)
	for _, ack := range acks {
		assert.Equal(t, Ack{ItemID: "item-2", Created: true}, ack)
	}
}

func TestCommitBankDepositSurvivesFirstCallerCancel(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var storeErr error
	store := &mockStore{}
	store.On("InsertBankMembership", anyContext(), "item-2").
		Run(func(args mock.Arguments) {
			close(entered)
			<-release
			storeErr = args.Get(0).(context.Context).Err()
		}).
		Return(true, nil).Once()
	bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := bridge.CommitBankDeposit(firstCtx, "item-2")
		firstErr <- err
	}()
	<-entered

	second := make(chan Ack, 1)
	go func() {
		ack, err := bridge.CommitBankDeposit(context.Background(), "item-2")
		assert.NoError(t, err)
		second <- ack
	}()
	require.Eventually(t, func() bool {
		return bridge.issued.Load() == 2
	}, time.Second, time.Millisecond)

	cancelFirst()
	err := <-firstErr
	assert.True(t, boarderrors.Is(err, boarderrors.ErrPersist))
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.Equal(t, Ack{ItemID: "item-2", Created: true}, <-second)
	assert.NoError(t, storeErr)
	store.AssertNumberOfCalls(t, "InsertBankMembership", 1)
}

func TestCommitWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(false, errors.New("timeout")).Twice()
		store.On("InsertBankMembership", anyContext(), "item-2").Return(true, nil).Once()
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		ack, err := bridge.CommitWithRetry(context.Background(), "item-2")
		require.NoError(t, err)
		assert.True(t, ack.Created)
		store.AssertNumberOfCalls(t, "InsertBankMembership", 3)
	})

	t.Run("not found is permanent", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "ghost").Return(false, boarderrors.NewNotFound("ghost"))
		bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

		_, err := bridge.CommitWithRetry(context.Background(), "ghost")
		assert.True(t, boarderrors.Is(err, boarderrors.ErrNotFound))
		store.AssertNumberOfCalls(t, "InsertBankMembership", 1)
	})

	t.Run("gives up after max elapsed time", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(false, errors.New("down"))
		policy := fastPolicy()
		policy.MaxElapsedTime = 20 * time.Millisecond
		bridge := NewBridge(store, policy, zerolog.Nop())

		_, err := bridge.CommitWithRetry(context.Background(), "item-2")
		require.Error(t, err)
		assert.True(t, boarderrors.Is(err, boarderrors.ErrPersist))
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		store := &mockStore{}
		store.On("InsertBankMembership", anyContext(), "item-2").Return(false, errors.New("down"))
		policy := fastPolicy()
		policy.MaxElapsedTime = time.Minute
		bridge := NewBridge(store, policy, zerolog.Nop())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := bridge.CommitWithRetry(ctx, "item-2")
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestDeleteItem(t *testing.T) {
	store := &mockStore{}
	store.On("DeleteItem", anyContext(), "item-1").Return(nil).Once()
	store.On("DeleteItem", anyContext(), "item-2").Return(errors.New("down")).Once()
	bridge := NewBridge(store, fastPolicy(), zerolog.Nop())

	require.NoError(t, bridge.DeleteItem(context.Background(), "item-1"))

	err := bridge.DeleteItem(context.Background(), "item-2")
	assert.True(t, boarderrors.Is(err, boarderrors.ErrPersist))
	store.AssertExpectations(t)
}
