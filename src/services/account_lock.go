package services

import "sync"

// scopeLocks serializes match runs. An all-accounts run holds the global lock
// exclusively; an account run shares it and holds the account's own mutex.
type scopeLocks struct {
	global   sync.RWMutex
	mu       sync.Mutex
	accounts map[int64]*sync.Mutex
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{accounts: make(map[int64]*sync.Mutex)}
}

func (l *scopeLocks) lock(accountID *int64) (unlock func()) {
	if accountID == nil {
		l.global.Lock()
		return l.global.Unlock
	}

	l.global.RLock()
	l.mu.Lock()
	m, ok := l.accounts[*accountID]
	if !ok {
		m = &sync.Mutex{}
		l.accounts[*accountID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.global.RUnlock()
	}
}
