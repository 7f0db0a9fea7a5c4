package dblock

import (
	"context"

	"go.uber.org/zap"
)

// Releaser releases a held lock. Release problems are the implementation's
// to log; Unlock never reports them.
type Releaser interface {
	Unlock(ctx context.Context)
}

// Locker is what RunExclusive needs from the lock manager. Tests substitute
// an in-memory implementation.
type Locker interface {
	TryLock(ctx context.Context, job string) (Releaser, bool, error)
}

// RunExclusive runs fn only if the job's advisory lock is free. A lock held
// elsewhere skips fn with an info log and returns (false, nil). The lock is
// always released afterwards, whatever fn returned, and a release failure
// never changes fn's outcome.
func RunExclusive(ctx context.Context, locker Locker, logger *zap.Logger, job string, fn func(context.Context) error) (bool, error) {
	handle, acquired, err := locker.TryLock(ctx, job)
	if err != nil {
		return false, err
	}
	if !acquired {
		if logger != nil {
			logger.Info("job already running elsewhere, skipping", zap.String("job", job))
		}
		return false, nil
	}
	defer handle.Unlock(ctx)

	return true, fn(ctx)
}
