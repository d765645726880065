package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLocker struct {
	released []*Transaction
}

func (f *fakeLocker) ReleaseAll(t *Transaction) { f.released = append(f.released, t) }

func TestManagerBeginAssignsIncreasingIDs(t *testing.T) {
	locker := &fakeLocker{}
	m := NewManager(locker)

	t1 := m.Begin()
	t2 := m.Begin()

	assert.Equal(t, Growing, t1.State())
	assert.NotEqual(t, t1.ID(), t2.ID())
	assert.Less(t, int32(t1.ID()), int32(t2.ID()))
}

func TestManagerCommitReleasesLocksAndTransitions(t *testing.T) {
	locker := &fakeLocker{}
	m := NewManager(locker)

	txn1 := m.Begin()
	m.Commit(txn1)

	assert.Equal(t, Committed, txn1.State())
	assert.Equal(t, []*Transaction{txn1}, locker.released)
}

func TestManagerAbortReleasesLocksAndTransitions(t *testing.T) {
	locker := &fakeLocker{}
	m := NewManager(locker)

	txn1 := m.Begin()
	m.Abort(txn1)

	assert.Equal(t, Aborted, txn1.State())
	assert.Equal(t, []*Transaction{txn1}, locker.released)
}

func TestManagerLookup(t *testing.T) {
	locker := &fakeLocker{}
	m := NewManager(locker)

	txn1 := m.Begin()
	found, ok := m.Lookup(txn1.ID())
	assert.True(t, ok)
	assert.Same(t, txn1, found)

	_, ok = m.Lookup(txn1.ID() + 100)
	assert.False(t, ok)
}
