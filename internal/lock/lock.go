// Package lock provides the per-user single-writer lock around target and
// plan writes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lg/fitplan-api/internal/logger"
)

// ErrNotAcquired is returned when the lock stays held by another owner for
// longer than the wait allows.
var ErrNotAcquired = errors.New("lock not acquired")

// retryInterval is how often a waiting caller polls for a held lock.
const retryInterval = 25 * time.Millisecond

// Locker serializes writers per key. The returned unlock func is safe to call
// more than once. A caller waits at most ttl for a held lock.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// UserKey is the lock key guarding one user's targets and plans.
func UserKey(userID int) string {
	return fmt.Sprintf("fitplan:user:%d", userID)
}

/* ─── In-process ─────────────────────────────────────────────────────── */

// Local is an in-process keyed lock for single-instance deployments and tests.
type Local struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocal() *Local {
	return &Local{held: map[string]chan struct{}{}}
}

func (l *Local) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	var timeout <-chan time.Time
	if ttl > 0 {
		t := time.NewTimer(ttl)
		defer t.Stop()
		timeout = t.C
	}
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					l.mu.Lock()
					delete(l.held, key)
					l.mu.Unlock()
					close(ch)
				})
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
	}
}

// New returns a Redis locker when redisAddr is set and an in-process one
// otherwise. closeFn releases the Redis connection.
func New(redisAddr string, log *logger.Logger) (l Locker, closeFn func() error, err error) {
	if strings.TrimSpace(redisAddr) == "" {
		log.Info("REDIS_ADDR not set, using in-process plan lock")
		return NewLocal(), func() error { return nil }, nil
	}
	r, err := NewRedis(redisAddr, log)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}
