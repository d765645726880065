// this code is adapted from https://github.com/ryogrid/SamehadaDB (common/rwlatch.go),
// itself originally from https://github.com/pzhzqt/goostub
package common

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// Latch is a short-duration, physical reader/writer mutex protecting a
// page's bytes (spec.md GLOSSARY: "Latch"). It is distinct from a Lock,
// which is logical and held for the duration of a transaction.
type Latch interface {
	WLock()
	WUnlock()
	RLock()
	RUnlock()
}

type rwLatch struct {
	mutex deadlock.RWMutex
}

// NewLatch returns a Latch backed by a deadlock-detecting RWMutex. Every
// page latch and every internal bookkeeping mutex in this engine goes
// through go-deadlock rather than bare sync.RWMutex, so a latch-ordering
// bug (e.g. a sibling-before-parent acquisition that violates the
// discipline in spec.md section 5) is reported with a stack trace during
// tests instead of hanging forever.
func NewLatch() Latch {
	return &rwLatch{}
}

func (l *rwLatch) WLock()   { l.mutex.Lock() }
func (l *rwLatch) WUnlock() { l.mutex.Unlock() }
func (l *rwLatch) RLock()   { l.mutex.RLock() }
func (l *rwLatch) RUnlock() { l.mutex.RUnlock() }
