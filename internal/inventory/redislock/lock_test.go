package redislock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis, so no real
// Redis server is needed.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

// quickLock uses a short MaxWait so contention tests finish fast.
func quickLock(client *redis.Client) *SlotLock {
	return New(client, 5*time.Second, 5*time.Millisecond, 50*time.Millisecond)
}

func TestAcquireSlots_AllOrNothing(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	ctx := context.Background()
	l := quickLock(client)

	slots := []string{"T101/ac2/2026-09-15", "T101/sleeper/2026-09-15"}

	ok, err := l.AcquireSlots(ctx, slots, "owner-1")
	require.NoError(t, err)
	assert.True(t, ok, "Should lock all slots")

	// A second owner must not get either slot while the first holds them
	ok, err = l.AcquireSlots(ctx, slots, "owner-2")
	require.NoError(t, err)
	assert.False(t, ok, "Should not lock already locked slots")

	require.NoError(t, l.ReleaseSlots(ctx, slots, "owner-1"))

	ok, err = l.AcquireSlots(ctx, slots, "owner-2")
	require.NoError(t, err)
	assert.True(t, ok, "Should lock slots after release")
}

func TestAcquireSlots_PartialFailureRollsBack(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	ctx := context.Background()
	l := quickLock(client)

	// owner-1 holds one of the two slots
	ok, err := l.AcquireSlots(ctx, []string{"T101/ac2/2026-09-15"}, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.AcquireSlots(ctx, []string{"T101/ac1/2026-09-15", "T101/ac2/2026-09-15"}, "owner-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// the slot owner-2 briefly held must have been rolled back
	ok, err = l.AcquireSlots(ctx, []string{"T101/ac1/2026-09-15"}, "owner-3")
	require.NoError(t, err)
	assert.True(t, ok, "Rolled-back slot should be free again")
}

func TestReleaseSlots_OwnerCheck(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	ctx := context.Background()
	l := quickLock(client)

	slots := []string{"T202/sleeper/2026-10-01"}

	ok, err := l.AcquireSlots(ctx, slots, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)

	// releasing with the wrong owner is a no-op
	require.NoError(t, l.ReleaseSlots(ctx, slots, "intruder"))

	ok, err = l.AcquireSlots(ctx, slots, "owner-2")
	require.NoError(t, err)
	assert.False(t, ok, "Lock should still be held by owner-1")
}

func TestAcquireSlots_ConcurrentOwnersSerialize(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	ctx := context.Background()
	// long enough wait that every owner eventually gets a turn
	l := New(client, 5*time.Second, 2*time.Millisecond, 3*time.Second)

	slots := []string{"T303/general/2026-11-11"}

	const numOwners = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	for i := 0; i < numOwners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("owner-%d", n)

			ok, err := l.AcquireSlots(ctx, slots, owner)
			if err != nil || !ok {
				t.Errorf("owner %s failed to acquire: ok=%v err=%v", owner, ok, err)
				return
			}

			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inSection--
			mu.Unlock()

			_ = l.ReleaseSlots(ctx, slots, owner)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, maxInSection, "At most one owner may hold the slot at a time")
}
