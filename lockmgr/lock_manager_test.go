package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/txn"
	"github.com/relstore/core/types"
)

// testTxns is shared by every test so each transaction gets its own id:
// the lock manager tells requests apart by transaction id.
var testTxns = txn.NewManager(noopLocker{})

func newTxn(id int32) *txn.Transaction {
	// txn.Transaction has no exported constructor outside the package's
	// Manager.Begin, so route through it; the manager assigns ids
	// sequentially starting at 1, and the tests rely only on those ids
	// being distinct. Begin keeps the manager's global latch read-locked
	// until the transaction ends, so each Begin runs on its own goroutine
	// rather than read-locking it again from the test goroutine.
	ch := make(chan *txn.Transaction, 1)
	go func() { ch <- testTxns.Begin() }()
	return <-ch
}

type noopLocker struct{}

func (noopLocker) ReleaseAll(*txn.Transaction) {}

func TestLockSharedCompatibleGrantsImmediately(t *testing.T) {
	lm := New()
	rid := types.NewRecordID(1, 0)

	t1 := newTxn(1)
	t2 := newTxn(2)

	assert.NoError(t, lm.LockShared(t1, rid))
	assert.NoError(t, lm.LockShared(t2, rid))
}

func TestLockExclusiveBlocksThenGrantsAfterUnlock(t *testing.T) {
	lm := New()
	rid := types.NewRecordID(1, 0)

	t1 := newTxn(1)
	t2 := newTxn(2)

	assert.NoError(t, lm.LockExclusive(t1, rid))

	granted := make(chan error, 1)
	go func() {
		granted <- lm.LockShared(t2, rid)
	}()

	select {
	case <-granted:
		t.Fatal("shared lock granted while exclusive lock held")
	case <-time.After(50 * time.Millisecond):
	}

	lm.Unlock(t1, rid)

	select {
	case err := <-granted:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never granted after unlock")
	}

	// T1 already moved to Shrinking; a further acquisition must fail.
	assert.ErrorIs(t, lm.LockShared(t1, rid), dberrors.LockOnShrinking)
}

func TestLockUpgrade(t *testing.T) {
	lm := New()
	rid := types.NewRecordID(1, 0)

	t1 := newTxn(1)
	t2 := newTxn(2)

	assert.NoError(t, lm.LockShared(t1, rid))
	assert.NoError(t, lm.LockShared(t2, rid))

	upgraded := make(chan error, 1)
	go func() {
		upgraded <- lm.LockUpgrade(t1, rid)
	}()

	select {
	case <-upgraded:
		t.Fatal("upgrade granted while another shared holder remains")
	case <-time.After(50 * time.Millisecond):
	}

	lm.Unlock(t2, rid)

	select {
	case err := <-upgraded:
		assert.NoError(t, err)
		assert.True(t, t1.IsExclusiveLocked(rid))
		assert.False(t, t1.IsSharedLocked(rid))
	case <-time.After(time.Second):
		t.Fatal("upgrade never granted")
	}
}

func TestLockUpgradeConflict(t *testing.T) {
	lm := New()
	rid := types.NewRecordID(1, 0)

	t1 := newTxn(1)
	t2 := newTxn(2)

	assert.NoError(t, lm.LockShared(t1, rid))
	assert.NoError(t, lm.LockShared(t2, rid))

	go func() { lm.LockUpgrade(t1, rid) }()
	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, lm.LockUpgrade(t2, rid), dberrors.UpgradeConflict)

	lm.Unlock(t2, rid)
}
