package service

import (
	"context"
	"sync"
	"time"

	dErrors "caretrack/pkg/domain-errors"
)

// ShardedTx is the in-memory ledger transaction runner. Instead of a single
// global lock, operations are distributed across N shards based on a hash of
// the budget key, reducing contention under concurrent load. Two operations
// on the same budget always land on the same shard, which is what gives the
// memory stores their serialization guarantee.
const numLedgerShards = 128

// defaultLedgerTxTimeout bounds how long a ledger transaction may run,
// including time spent waiting for the shard lock.
const defaultLedgerTxTimeout = 5 * time.Second

type ShardedTx struct {
	shards  [numLedgerShards]sync.Mutex
	stores  TxStores
	timeout time.Duration
}

func NewShardedTx(stores TxStores, timeout time.Duration) *ShardedTx {
	return &ShardedTx{stores: stores, timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, shardKey string, fn func(ctx context.Context, stores TxStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := hashShardKey(shardKey) % numLedgerShards
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Re-check after acquiring the lock: the wait may have consumed the
	// deadline. Once fn starts, it runs to completion; memory mutations are
	// not interruptible mid-flight.
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeLockTimeout, "ledger transaction aborted: lock wait exceeded deadline")
	}

	return fn(ctx, t.stores)
}

// hashShardKey uses FNV-1a for good distribution over budget keys.
func hashShardKey(s string) uint32 {
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
