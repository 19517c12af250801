// Package ledger records which provider thread ids have been admitted to the
// pipeline during one run.
package ledger

import (
	"sync"
	"time"
)

type Ledger struct {
	cutoff time.Time
	seen   map[string]struct{}
	mutex  sync.RWMutex
}

// New returns an empty ledger. Threads whose last message is not after
// cutoff are never admitted.
func New(cutoff time.Time) *Ledger {
	return &Ledger{
		cutoff: cutoff,
		seen:   make(map[string]struct{}),
	}
}

func (l *Ledger) Cutoff() time.Time {
	return l.cutoff
}

func (l *Ledger) Seen(id string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, ok := l.seen[id]
	return ok
}

func (l *Ledger) MarkSeen(id string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.seen[id] = struct{}{}
}

// Admit marks id as seen and reports whether it was new.
func (l *Ledger) Admit(id string) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, ok := l.seen[id]; ok {
		return false
	}
	l.seen[id] = struct{}{}
	return true
}

// Forget removes id so a manual resubmission can pass through again.
func (l *Ledger) Forget(id string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.seen, id)
}

func (l *Ledger) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.seen)
}
