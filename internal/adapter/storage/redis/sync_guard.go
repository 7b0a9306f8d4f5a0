package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SyncGuard implements ports.SyncGuard with a Redis SET NX lease.
//
// The lease carries a TTL so a crashed cycle cannot wedge balance sync
// forever; a healthy cycle releases it explicitly when done.
type SyncGuard struct {
	client *goredis.Client
	key    string
}

// NewSyncGuard creates a Redis-backed single-flight guard.
func NewSyncGuard(client *goredis.Client) *SyncGuard {
	return &SyncGuard{
		client: client,
		key:    "balance-sync:lock",
	}
}

// TryAcquire attempts to take the lease. Returns false without error when
// another cycle already holds it.
func (g *SyncGuard) TryAcquire(ctx context.Context, ttl time.Duration) (bool, error) {
	result, err := g.client.SetArgs(ctx, g.key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — a cycle is in progress
			return false, nil
		}
		return false, fmt.Errorf("redis sync lock acquire: %w", err)
	}
	return result == "OK", nil
}

// Release drops the lease.
func (g *SyncGuard) Release(ctx context.Context) error {
	if err := g.client.Del(ctx, g.key).Err(); err != nil {
		return fmt.Errorf("redis sync lock release: %w", err)
	}
	return nil
}
