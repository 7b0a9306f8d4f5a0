package redis_test

import (
	"context"
	"testing"
	"time"

	"merchant-payout-platform/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	guard := redis.NewSyncGuard(client)
	ctx := context.Background()

	t.Run("first acquire succeeds", func(t *testing.T) {
		acquired, err := guard.TryAcquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("second acquire is refused while held", func(t *testing.T) {
		acquired, err := guard.TryAcquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.False(t, acquired)
	})

	t.Run("release frees the lease", func(t *testing.T) {
		require.NoError(t, guard.Release(ctx))

		acquired, err := guard.TryAcquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)
	})

	t.Run("lease expires on its own after the TTL", func(t *testing.T) {
		// Still held from the previous subtest
		acquired, err := guard.TryAcquire(ctx, time.Minute)
		require.NoError(t, err)
		require.False(t, acquired)

		mr.FastForward(61 * time.Second)

		acquired, err = guard.TryAcquire(ctx, time.Minute)
		require.NoError(t, err)
		assert.True(t, acquired)
	})
}
