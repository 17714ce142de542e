package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	events chan Change
	errors chan error
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		events: make(chan Change),
		errors: make(chan error),
		closed: make(chan struct{}),
	}
}

func (f *fakeSubscription) Events() <-chan Change { return f.events }
func (f *fakeSubscription) Errors() <-chan error  { return f.errors }
func (f *fakeSubscription) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type fakeSource struct {
	sub    *fakeSubscription
	tables []string
	err    error
}

func (f *fakeSource) SubscribeChanges(ctx context.Context, tables ...string) (Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tables = tables
	return f.sub, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[board.ContainerID]int
	items map[board.ContainerID][]board.Item
	gate  chan struct{}
	err   error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls: make(map[board.ContainerID]int),
		items: make(map[board.ContainerID][]board.Item),
	}
}

func (f *fakeFetcher) FetchContainer(ctx context.Context, id board.ContainerID) ([]board.Item, error) {
	f.mu.Lock()
	f.calls[id]++
	n := f.calls[id]
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	// Tag the payload with the call number so delivery order is observable.
	return []board.Item{{ID: string(id), Content: string(rune('0' + n))}}, nil
}

func (f *fakeFetcher) Calls(id board.ContainerID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) deliver(ctx context.Context, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) For(id board.ContainerID) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, s := range r.snaps {
		if s.Container == id {
			out = append(out, s)
		}
	}
	return out
}

func TestSyncerTablesAndContainers(t *testing.T) {
	routes := Routes{
		TableItems: {board.FeedContainer, board.BankContainer},
		TableBank:  {board.BankContainer},
	}
	s := NewSyncer(&fakeSource{}, newFakeFetcher(), routes, zerolog.Nop())

	assert.Equal(t, []string{TableBank, TableItems}, s.Tables())
	assert.Equal(t, []board.ContainerID{board.BankContainer, board.FeedContainer}, s.Containers())
}

func TestRefreshCoalescesWhileInFlight(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.gate = make(chan struct{})
	s := NewSyncer(&fakeSource{}, fetcher, DefaultRoutes(), zerolog.Nop())
	rec := &recorder{}
	ctx := context.Background()

	s.Refresh(ctx, board.FeedContainer, rec.deliver)
	require.Eventually(t, func() bool { return fetcher.Calls(board.FeedContainer) == 1 }, time.Second, 5*time.Millisecond)

	// Three notifications during the in-flight fetch collapse into one follow-up.
	s.Refresh(ctx, board.FeedContainer, rec.deliver)
	s.Refresh(ctx, board.FeedContainer, rec.deliver)
	s.Refresh(ctx, board.FeedContainer, rec.deliver)

	close(fetcher.gate)
	s.wg.Wait()

	assert.Equal(t, 2, fetcher.Calls(board.FeedContainer))
	snaps := rec.For(board.FeedContainer)
	require.Len(t, snaps, 2)
	assert.Equal(t, "1", snaps[0].Items[0].Content)
	assert.Equal(t, "2", snaps[1].Items[0].Content)
}

func TestRefreshContainersAreIndependent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.gate = make(chan struct{})
	s := NewSyncer(&fakeSource{}, fetcher, DefaultRoutes(), zerolog.Nop())
	rec := &recorder{}
	ctx := context.Background()

	s.Refresh(ctx, board.FeedContainer, rec.deliver)
	s.Refresh(ctx, board.BankContainer, rec.deliver)
	require.Eventually(t, func() bool {
		return fetcher.Calls(board.FeedContainer) == 1 && fetcher.Calls(board.BankContainer) == 1
	}, time.Second, 5*time.Millisecond)

	close(fetcher.gate)
	s.wg.Wait()

	assert.Len(t, rec.For(board.FeedContainer), 1)
	assert.Len(t, rec.For(board.BankContainer), 1)
}

func TestRefreshFetchErrorKeepsState(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.err = errors.New("connection refused")
	s := NewSyncer(&fakeSource{}, fetcher, DefaultRoutes(), zerolog.Nop())
	rec := &recorder{}

	s.Refresh(context.Background(), board.BankContainer, rec.deliver)
	s.wg.Wait()

	assert.Equal(t, 1, fetcher.Calls(board.BankContainer))
	assert.Empty(t, rec.For(board.BankContainer))
}

func TestRunInitialLoadAndNotifications(t *testing.T) {
	sub := newFakeSubscription()
	source := &fakeSource{sub: sub}
	fetcher := newFakeFetcher()
	s := NewSyncer(source, fetcher, DefaultRoutes(), zerolog.Nop())
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, rec.deliver) }()

	// Initial load covers every routed container.
	require.Eventually(t, func() bool {
		return len(rec.For(board.FeedContainer)) == 1 && len(rec.For(board.BankContainer)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{TableBank, TableItems}, source.tables)

	sub.events <- Change{Table: TableBank, Kind: KindInsert}
	require.Eventually(t, func() bool { return len(rec.For(board.BankContainer)) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.For(board.FeedContainer), 1)

	// Unrouted tables and subscription errors are ignored.
	sub.events <- Change{Table: "personas", Kind: KindUpdate}
	sub.errors <- errors.New("bad payload")

	sub.events <- Change{Table: TableItems, Kind: KindDelete}
	require.Eventually(t, func() bool { return len(rec.For(board.FeedContainer)) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-sub.closed
}

func TestRunSubscribeFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("redis down")}
	s := NewSyncer(source, newFakeFetcher(), DefaultRoutes(), zerolog.Nop())

	err := s.Run(context.Background(), func(context.Context, Snapshot) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestRoutesTables(t *testing.T) {
	routes := Routes{"zeta": nil, TableItems: nil, TableBank: nil}
	assert.Equal(t, []string{"items", "the_bank", "zeta"}, routes.Tables())
}
