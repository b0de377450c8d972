package redislock

import (
	"context"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// SlotLock serializes work on an inventory slot across service
// instances. The key is the slot's string form; the value identifies
// the owner so only the acquirer can release. Slots are always locked
// in sorted order, so two bookings touching the same pair of slots
// cannot deadlock.
type SlotLock struct {
	Client        *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration
	MaxWait       time.Duration
}

func New(client *redis.Client, ttl, retryInterval, maxWait time.Duration) *SlotLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retryInterval <= 0 {
		retryInterval = 25 * time.Millisecond
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &SlotLock{Client: client, TTL: ttl, RetryInterval: retryInterval, MaxWait: maxWait}
}

func lockKey(slot string) string {
	return "slot_lock:" + slot
}

// acquireOne polls SetNX until the lock is taken or MaxWait elapses.
func (l *SlotLock) acquireOne(ctx context.Context, slot, owner string) (bool, error) {
	deadline := time.Now().Add(l.MaxWait)
	for {
		ok, err := l.Client.SetNX(ctx, lockKey(slot), owner, l.TTL).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(l.RetryInterval):
		}
	}
}

// releaseOne deletes the lock only if this owner still holds it.
func (l *SlotLock) releaseOne(ctx context.Context, slot, owner string) error {
	val, err := l.Client.Get(ctx, lockKey(slot)).Result()
	if err == redis.Nil {
		return nil // expired or already released
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := l.Client.Del(ctx, lockKey(slot)).Result()
		return err
	}
	return nil
}

// AcquireSlots locks every slot or none: on any failure the slots
// locked so far are released before returning.
func (l *SlotLock) AcquireSlots(ctx context.Context, slots []string, owner string) (bool, error) {
	ordered := append([]string(nil), slots...)
	sort.Strings(ordered)

	locked := []string{}
	for _, slot := range ordered {
		ok, err := l.acquireOne(ctx, slot, owner)
		if err != nil {
			for _, held := range locked {
				_ = l.releaseOne(ctx, held, owner)
			}
			return false, err
		}
		if !ok {
			for _, held := range locked {
				_ = l.releaseOne(ctx, held, owner)
			}
			return false, nil
		}
		locked = append(locked, slot)
	}
	return true, nil
}

func (l *SlotLock) ReleaseSlots(ctx context.Context, slots []string, owner string) error {
	var firstErr error
	for _, slot := range slots {
		if err := l.releaseOne(ctx, slot, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
