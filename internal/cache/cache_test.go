package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/awards/internal/database/testutil"
)

func newDatabaseStore(t *testing.T) (*DatabaseStore, *time.Time) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	store := NewDatabaseStore(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	return store, &now
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "session:abc", []byte("payload"), time.Minute))
	value, ok, err := store.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	require.NoError(t, store.Set(ctx, "session:abc", []byte("updated"), time.Minute))
	value, _, err = store.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.Equal(t, []byte("updated"), value)

	*now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "session:abc")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "forever", []byte("x"), 0))
	require.NoError(t, store.Delete(ctx, "forever"))
	_, ok, err = store.Get(ctx, "forever")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreIncrementKeepsWindow(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	count, ttl, err := store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Equal(t, time.Minute, ttl)

	*now = now.Add(20 * time.Second)
	count, ttl, err = store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Equal(t, 40*time.Second, ttl)

	*now = now.Add(41 * time.Second)
	count, _, err = store.IncrementWithTTL(ctx, "rl:1.2.3.4", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store, now := newDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("1"), time.Hour))
	require.NoError(t, store.Set(ctx, "forever", []byte("1"), 0))

	*now = now.Add(time.Minute)
	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}

func TestNilDatabaseStore(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))
	var store *DatabaseStore
	_, _, err := store.Get(context.Background(), "x")
	require.Error(t, err)
}

func TestRedisStoreConfigAndKeys(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.ErrorContains(t, err, "address is required")

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStoreFromClient(client, "")
	require.Equal(t, "awards:session:abc", store.key("session:abc"))
	require.Equal(t, "awards:session:abc", store.key("awards:session:abc"))

	custom := NewRedisStoreFromClient(client, "test:")
	require.Equal(t, "test:rl", custom.key(" rl "))
}
