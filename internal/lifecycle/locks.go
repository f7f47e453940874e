package lifecycle

import "sync"

// Each request's transitions run under a mutex so concurrent triggers
// (approver decision, scheduler tick, capacity retry) serialize. Locks
// are sharded by FNV-1a of the request ID to keep contention low; the
// store's status CAS remains the correctness backstop across processes.
const numLockShards = 128

type shardedLocks struct {
	shards [numLockShards]sync.Mutex
}

func (l *shardedLocks) lock(requestID string) func() {
	shard := &l.shards[hashRequestID(requestID)%numLockShards]
	shard.Lock()
	return shard.Unlock
}

func hashRequestID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
