package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock taken by DistributedLocker.Lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes the runs of one flow across replicas. The
// trigger manager takes it around every run, after its in-process lock.
type DistributedLocker interface {
	// Lock blocks until the lock on key (a flow id) is held or ctx is done.
	// The lock expires after ttl if it is never released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
