package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/sqlstore"
	"github.com/dyluth/lanes/internal/testutil"
	"github.com/dyluth/lanes/pkg/boardstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store interface {
	CreateItem(ctx context.Context, item board.Item, createdAt time.Time) error
}, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.CreateItem(context.Background(), board.Item{ID: id}, time.Now()))
	}
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := testutil.NewRedisStore(t, "resolver-test")

	sqlStore, err := sqlstore.Open(t.TempDir()+"/lanes.db", boardstore.DefaultLayout())
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	ids := []string{
		"3f2a9c10-0000-4000-8000-000000000001",
		"3f2a9c10-0000-4000-8000-000000000002",
		"7b8e1d44-0000-4000-8000-000000000003",
		"short",
		"50%_off",
	}
	seed(t, redisStore, ids...)
	seed(t, sqlStore, ids...)

	return map[string]Store{"redis": redisStore, "sqlite": sqlStore}
}

func TestResolveItemID(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("full id", func(t *testing.T) {
				id, err := ResolveItemID(ctx, store, "7b8e1d44-0000-4000-8000-000000000003")
				require.NoError(t, err)
				assert.Equal(t, "7b8e1d44-0000-4000-8000-000000000003", id)
			})

			t.Run("exact short id bypasses length check", func(t *testing.T) {
				id, err := ResolveItemID(ctx, store, "short")
				require.NoError(t, err)
				assert.Equal(t, "short", id)
			})

			t.Run("unique prefix", func(t *testing.T) {
				id, err := ResolveItemID(ctx, store, "7b8e1d")
				require.NoError(t, err)
				assert.Equal(t, "7b8e1d44-0000-4000-8000-000000000003", id)
			})

			t.Run("ambiguous prefix", func(t *testing.T) {
				_, err := ResolveItemID(ctx, store, "3f2a9c10")
				require.Error(t, err)
				require.True(t, IsAmbiguousError(err))

				amb := err.(*AmbiguousError)
				assert.Equal(t, []string{
					"3f2a9c10-0000-4000-8000-000000000001",
					"3f2a9c10-0000-4000-8000-000000000002",
				}, amb.Matches)
			})

			t.Run("pattern characters are literal", func(t *testing.T) {
				_, err := ResolveItemID(ctx, store, "50%_of*")
				assert.True(t, IsNotFoundError(err))

				id, err := ResolveItemID(ctx, store, "50%_of")
				require.NoError(t, err)
				assert.Equal(t, "50%_off", id)
			})

			t.Run("too short", func(t *testing.T) {
				_, err := ResolveItemID(ctx, store, "3f2a")
				assert.True(t, IsNotFoundError(err))
			})

			t.Run("no match", func(t *testing.T) {
				_, err := ResolveItemID(ctx, store, "ffffffff")
				require.Error(t, err)
				assert.True(t, IsNotFoundError(err))
				assert.Equal(t, "no items found matching 'ffffffff'", err.Error())
			})
		})
	}
}

func TestResolveItemID_Empty(t *testing.T) {
	_, err := ResolveItemID(context.Background(), nil, "")
	require.Error(t, err)
	assert.False(t, IsNotFoundError(err))
}

func TestAmbiguousError_Explain(t *testing.T) {
	var matches []string
	for i := 0; i < 12; i++ {
		matches = append(matches, fmt.Sprintf("id-%02d", i))
	}
	err := &AmbiguousError{ShortID: "id-", Matches: matches}

	out := err.Explain()
	assert.Equal(t, 11, strings.Count(out, "\n"))
	assert.Contains(t, out, "  id-09\n")
	assert.NotContains(t, out, "id-10")
	assert.Contains(t, out, "...and 2 more")
	assert.Equal(t, "ambiguous short ID 'id-' matches 12 items", err.Error())
}

func TestIsErrorHelpers(t *testing.T) {
	assert.False(t, IsNotFoundError(errors.New("x")))
	assert.False(t, IsAmbiguousError(nil))
}
