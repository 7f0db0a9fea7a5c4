// Package dblock coordinates scheduled jobs across redundant service
// instances with Postgres advisory locks. Locks are session-scoped: the
// acquire and release round trips are pinned to one pooled connection, and
// if the holding process dies the server releases the lock with the session.
package dblock

import (
	"context"
	"database/sql"
	"hash/fnv"

	"go.uber.org/zap"
)

type Manager struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(db *sql.DB, logger *zap.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

// Handle is a held advisory lock. Unlock releases it and returns the pinned
// connection to the pool; errors are logged and swallowed.
type Handle struct {
	key    int64
	job    string
	conn   *sql.Conn
	logger *zap.Logger
}

// lockKey derives the fixed 64-bit advisory key for a job name. Each job
// gets its own key so unrelated jobs never contend.
func lockKey(job string) int64 {
	h := fnv.New64a()
	h.Write([]byte(job))
	return int64(h.Sum64())
}

// TryLock attempts a non-blocking pg_try_advisory_lock for the job. It
// returns (nil, false, nil) when another session holds the lock; that is a
// normal condition, not an error.
func (m *Manager) TryLock(ctx context.Context, job string) (Releaser, bool, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	key := lockKey(job)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	return &Handle{key: key, job: job, conn: conn, logger: m.logger}, true, nil
}

func (h *Handle) Unlock(ctx context.Context) {
	if h == nil || h.conn == nil {
		return
	}
	var released bool
	if err := h.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", h.key).Scan(&released); err != nil {
		if h.logger != nil {
			h.logger.Warn("advisory unlock failed", zap.String("job", h.job), zap.Error(err))
		}
	} else if !released && h.logger != nil {
		h.logger.Warn("advisory unlock returned false", zap.String("job", h.job))
	}
	// Closing the connection also drops the lock server-side if the
	// unlock statement failed.
	h.conn.Close()
	h.conn = nil
}
