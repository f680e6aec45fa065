package bundlez

import (
	"context"
	"sync"
)

// keyLocks hands out one exclusive lock per artifact key. Entries are
// reference counted and dropped once nobody holds or waits for them, so
// unrelated keys never contend.
type keyLocks struct {
	mu    sync.Mutex
	locks map[ArtifactKey]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[ArtifactKey]*keyLock)}
}

// lock blocks until the key is free or ctx is done. The returned function
// releases the lock and must be called exactly once.
func (l *keyLocks) lock(ctx context.Context, key ArtifactKey) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}

	return func() {
		<-kl.ch
		l.release(key, kl)
	}, nil
}

func (l *keyLocks) release(key ArtifactKey, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// size returns the number of live lock entries.
func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
