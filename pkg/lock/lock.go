// Package lock provides the run-level lock that keeps two cleanup or warning
// runs from processing the same users at the same time.
//
// RedisLocker serves multi-replica deployments; LocalLocker serves a single
// process and tests.
//
//	lease, err := locker.Acquire(ctx, "demo-cleanup", 30*time.Minute)
//	if errors.Is(err, lock.ErrLockHeld) {
//		return // another run is in progress
//	}
//	defer lease.Release(context.Background())
//
// A lease that may outlive its ttl is kept alive with KeepAlive, which
// refreshes it every ttl/3 until stopped:
//
//	stop := lock.KeepAlive(ctx, lease, ttl, func(err error) { log(err) })
//	defer stop()
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock: held by another run")

// ErrNotHeld is returned when releasing a lease that already expired or was taken over
var ErrNotHeld = errors.New("lock: lease no longer held")

// Locker acquires named locks with a time-to-live
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock
type Lease interface {
	// Refresh extends the lease to ttl from now. It fails with ErrNotHeld
	// once the lease expired or was taken over.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// KeepAlive refreshes lease every ttl/3 until stop is called or ctx is done.
// onErr receives refresh failures; after ErrNotHeld refreshing stops.
func KeepAlive(ctx context.Context, lease Lease, ttl time.Duration, onErr func(error)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(ctx, ttl)
				if err == nil || ctx.Err() != nil {
					continue
				}
				if onErr != nil {
					onErr(err)
				}
				if errors.Is(err, ErrNotHeld) {
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// LocalLocker is an in-process Locker
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]*localLease
	clock func() time.Time
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]*localLease),
		clock: time.Now,
	}
}

type localLease struct {
	locker  *LocalLocker
	name    string
	expires time.Time
}

// Acquire implements Locker. Expired leases are taken over.
func (l *LocalLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[name]; ok && now.Before(cur.expires) {
		return nil, ErrLockHeld
	}
	lease := &localLease{locker: l, name: name, expires: now.Add(ttl)}
	l.held[name] = lease
	return lease, nil
}

// Refresh implements Lease
func (le *localLease) Refresh(ctx context.Context, ttl time.Duration) error {
	l := le.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if l.held[le.name] != le || !now.Before(le.expires) {
		return ErrNotHeld
	}
	le.expires = now.Add(ttl)
	return nil
}

// Release implements Lease
func (le *localLease) Release(ctx context.Context) error {
	l := le.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[le.name] != le {
		return ErrNotHeld
	}
	delete(l.held, le.name)
	return nil
}
