package ledgerservice

import (
	"context"
	"sync"
)

// accountLocks serializes ledger mutations per account.
//
// Each lock is a one-slot semaphore so that waiting can be abandoned when the
// caller's context is done. Entries are reference counted and removed once idle.
type accountLocks struct {
	mu    sync.Mutex
	locks map[int64]*accountLock
}

type accountLock struct {
	sem     chan struct{}
	waiters int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{
		locks: make(map[int64]*accountLock),
	}
}

// lock blocks until the account lock is held or ctx is done.
// On success the returned func must be called to release the lock.
func (al *accountLocks) lock(ctx context.Context, id int64) (func(), error) {
	al.mu.Lock()

	lk, ok := al.locks[id]
	if !ok {
		lk = &accountLock{sem: make(chan struct{}, 1)}
		al.locks[id] = lk
	}
	lk.waiters++

	al.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		return func() {
			<-lk.sem
			al.release(id, lk)
		}, nil
	case <-ctx.Done():
		al.release(id, lk)
		return nil, ctx.Err()
	}
}

func (al *accountLocks) release(id int64, lk *accountLock) {
	al.mu.Lock()
	defer al.mu.Unlock()

	lk.waiters--
	if lk.waiters == 0 {
		delete(al.locks, id)
	}
}

func (al *accountLocks) size() int {
	al.mu.Lock()
	defer al.mu.Unlock()

	return len(al.locks)
}
