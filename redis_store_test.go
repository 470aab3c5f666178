package renovo

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "renovo:session"), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStoreTest(t)

	require.NoError(t, store.Save("access-1", "refresh-1"))

	access, refresh, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-1", access)
	require.Equal(t, "refresh-1", refresh)
}

func TestRedisStoreMissingKey(t *testing.T) {
	store, _ := newRedisStoreTest(t)

	access, refresh, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, access)
	require.Empty(t, refresh)
}

func TestRedisStoreClear(t *testing.T) {
	store, mr := newRedisStoreTest(t)

	require.NoError(t, store.Save("access-1", "refresh-1"))
	require.NoError(t, store.Clear())
	require.False(t, mr.Exists("renovo:session"))

	access, refresh, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, access)
	require.Empty(t, refresh)
}

func TestRedisStoreRotationOverwrites(t *testing.T) {
	store, _ := newRedisStoreTest(t)

	require.NoError(t, store.Save("access-1", "refresh-1"))
	require.NoError(t, store.Save("access-2", "refresh-2"))

	access, refresh, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-2", access)
	require.Equal(t, "refresh-2", refresh)
}

func TestRedisStoreServerDown(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	mr.Close()

	_, _, err := store.Load()
	require.Error(t, err)

	require.Error(t, store.Save("access-1", "refresh-1"))
	require.Error(t, store.Clear())
}
