// Package testutil provides store fixtures shared by package tests.
package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lanes/pkg/boardstore"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// NewRedisStore starts a miniredis server and returns a store client for
// instance with the default layout. Both are closed when the test ends.
func NewRedisStore(t *testing.T, instance string) (*boardstore.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := boardstore.NewClient(&redis.Options{Addr: mr.Addr()}, instance, boardstore.DefaultLayout())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}
