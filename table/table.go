// Package table is the tuple-oriented facade higher layers call instead
// of touching the index or lock manager directly (spec.md section 6,
// "Public operations exposed to higher layers"): every operation acquires
// the lock spec.md names before touching the tree, so 2PL is enforced in
// one place rather than by every caller remembering to lock first.
package table

import (
	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage/index"
	"github.com/relstore/core/storage/tuple"
	"github.com/relstore/core/txn"
	"github.com/relstore/core/types"
)

// Table wires a B+tree index to the lock manager, acquiring the lock
// spec.md section 6 specifies for each operation before touching the
// tree.
type Table struct {
	tree  *index.BTree
	locks *lockmgr.LockManager
}

// New returns a table backed by tree, lock-coordinated through locks.
func New(tree *index.BTree, locks *lockmgr.LockManager) *Table {
	return &Table{tree: tree, locks: locks}
}

// recordID maps an index key to the RecordID the lock manager keys its
// queues by. The B+tree relocates a key's physical (page, slot) on every
// split/merge/steal, so spec.md's RecordID = (page_id, slot_index)
// cannot name a fixed leaf slot here; lock granularity is instead one
// queue per logical key, which is the same mutual-exclusion guarantee
// 2PL asks for (spec.md section 4.6) without tracking a location that
// would go stale the moment a concurrent insert splits the leaf.
func recordID(key uint32) types.RecordID {
	return types.NewRecordID(types.PageID(key), 0)
}

// Insert acquires an exclusive lock on key's record and inserts row,
// failing with DuplicateKey if key already exists.
func (tb *Table) Insert(t *txn.Transaction, key uint32, row *tuple.Tuple) error {
	rid := recordID(key)
	if err := tb.locks.LockExclusive(t, rid); err != nil {
		return err
	}
	return tb.tree.Insert(key, row)
}

// Delete acquires an exclusive lock on key's record and removes it,
// failing with NotFound if key is absent.
func (tb *Table) Delete(t *txn.Transaction, key uint32) error {
	rid := recordID(key)
	if err := tb.locks.LockExclusive(t, rid); err != nil {
		return err
	}
	return tb.tree.Delete(key)
}

// Update replaces key's row. If t already holds a shared lock on the
// record (from a prior Scan within the same transaction) the lock is
// upgraded in place; otherwise an exclusive lock is acquired directly
// (spec.md section 6, "upgrade S->X if an index scan already held S;
// else acquire X").
func (tb *Table) Update(t *txn.Transaction, key uint32, row *tuple.Tuple) error {
	rid := recordID(key)

	var err error
	if t.IsSharedLocked(rid) {
		err = tb.locks.LockUpgrade(t, rid)
	} else {
		err = tb.locks.LockExclusive(t, rid)
	}
	if err != nil {
		return err
	}
	return tb.tree.Update(key, row)
}

// Scan acquires a shared lock on key's record and returns its tuple.
func (tb *Table) Scan(t *txn.Transaction, key uint32) (*tuple.Tuple, error) {
	rid := recordID(key)
	if err := tb.locks.LockShared(t, rid); err != nil {
		return nil, err
	}
	return tb.tree.Search(key)
}
