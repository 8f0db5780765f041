package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newSession(userID string, ttl time.Duration) Session {
	now := time.Now().UTC()
	return Session{ID: idx.New().String(), UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

// testStoreContract runs the behaviour both stores share.
func testStoreContract(t *testing.T, st Store) {
	ctx := context.Background()

	t.Run("save get delete", func(t *testing.T) {
		s := newSession("user-1", time.Hour)
		require.NoError(t, st.Save(ctx, s))

		got, err := st.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.UserID, got.UserID)
		require.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Millisecond)

		require.NoError(t, st.Delete(ctx, s.ID))
		_, err = st.Get(ctx, s.ID)
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, st.Delete(ctx, s.ID), "deleting twice is fine")
	})

	t.Run("delete user", func(t *testing.T) {
		a := newSession("user-2", time.Hour)
		b := newSession("user-2", time.Hour)
		other := newSession("user-3", time.Hour)
		for _, s := range []Session{a, b, other} {
			require.NoError(t, st.Save(ctx, s))
		}

		require.NoError(t, st.DeleteUser(ctx, "user-2"))

		_, err := st.Get(ctx, a.ID)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = st.Get(ctx, b.ID)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = st.Get(ctx, other.ID)
		require.NoError(t, err)

		require.NoError(t, st.DeleteUser(ctx, "nobody"))
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, st.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	testStoreContract(t, NewMemoryStore(nil))
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	now := time.Now()
	st := NewMemoryStore(func() time.Time { return now })
	s := Session{ID: "sid", UserID: "u", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, st.Save(ctx, s))

	_, err := st.Get(ctx, "sid")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = st.Get(ctx, "sid")
	require.ErrorIs(t, err, ErrNotFound)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreWithClient(client, "test:")
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func TestRedisStore(t *testing.T) {
	t.Parallel()
	st, _ := newRedisStore(t)
	testStoreContract(t, st)
}

func TestRedisStoreExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, mr := newRedisStore(t)

	s := newSession("user-1", time.Minute)
	require.NoError(t, st.Save(ctx, s))
	require.True(t, mr.Exists("test:sid:"+s.ID))
	require.Positive(t, mr.TTL("test:sid:"+s.ID))

	mr.FastForward(2 * time.Minute)
	_, err := st.Get(ctx, s.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSkipsExpiredSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, mr := newRedisStore(t)

	s := newSession("user-1", -time.Second)
	require.NoError(t, st.Save(ctx, s))
	require.False(t, mr.Exists("test:sid:"+s.ID))
}

func TestNewRedisStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewRedisStore(ctx, RedisConfig{})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	st, err := NewRedisStore(ctx, RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.Close())

	_, err = NewRedisStore(ctx, RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
