package session

import "sync"

// Locker hands out one mutex per session id. Entries are dropped when the
// last holder or waiter releases, so the map holds only sessions in use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the caller holds the session's lock and returns the
// function that releases it.
func (l *Locker) Lock(sessionID string) (unlock func()) {
	l.mu.Lock()
	sl, ok := l.locks[sessionID]
	if !ok {
		sl = &sessionLock{}
		l.locks[sessionID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.mu.Unlock()

			l.mu.Lock()
			sl.refs--
			if sl.refs == 0 {
				delete(l.locks, sessionID)
			}
			l.mu.Unlock()
		})
	}
}

