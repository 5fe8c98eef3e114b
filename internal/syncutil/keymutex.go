// Package syncutil provides a context-aware per-key mutex used to
// serialize money-moving operations on the same transaction.
package syncutil

import (
	"context"
	"hash/maphash"
)

const shardCount = 256

// KeyMutex serializes work per string key over a fixed pool of
// channel-based locks. Memory stays bounded no matter how many keys are
// seen; keys hashing to the same shard occasionally contend with each
// other, which is harmless for correctness. Waiters can give up when
// their context is cancelled, so a stuck holder cannot pile up blocked
// requests indefinitely.
//
// The zero value is not usable; construct with NewKeyMutex.
type KeyMutex struct {
	seed   maphash.Seed
	shards [shardCount]chan struct{}
}

// NewKeyMutex creates a KeyMutex with all shards unlocked.
func NewKeyMutex() *KeyMutex {
	m := &KeyMutex{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i] = make(chan struct{}, 1)
		m.shards[i] <- struct{}{}
	}
	return m
}

// Lock acquires the lock for key, blocking until it is free or ctx is
// done. On success it returns the unlock function, which the caller
// must invoke exactly once. On cancellation it returns ctx.Err() and no
// lock is held.
func (m *KeyMutex) Lock(ctx context.Context, key string) (unlock func(), err error) {
	shard := m.shards[maphash.String(m.seed, key)%shardCount]

	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
