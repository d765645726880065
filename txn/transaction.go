// Package txn models a running transaction and the manager that begins,
// commits, and aborts them (spec.md section 4.5). Grounded on the
// teacher's storage/access/transaction.go (state machine, lock sets,
// write set shape), trimmed of the WAL prev-LSN bookkeeping and the
// table-heap write-record rollback machinery: recovery and rollback of
// data changes are explicit non-goals here (spec.md section 4.5, "does
// not roll back data changes").
package txn

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/relstore/core/types"
)

// State is a transaction's position in the 2PL state machine.
//
//	GROWING -> SHRINKING -> COMMITTED
//	   \_________________________\-> ABORTED
type State int32

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case Growing:
		return "growing"
	case Shrinking:
		return "shrinking"
	case Committed:
		return "committed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Transaction tracks the locks a transaction holds and its 2PL phase.
// Record-level locks are keyed by types.RecordID (spec.md section 4.6);
// the shared/exclusive sets exist so the lock manager's unlock-on-commit
// sweep and IsSharedLocked/IsExclusiveLocked checks don't need to consult
// the lock table itself.
type Transaction struct {
	id    types.TxnID
	state State

	sharedLocks    mapset.Set[types.RecordID]
	exclusiveLocks mapset.Set[types.RecordID]
}

func newTransaction(id types.TxnID) *Transaction {
	return &Transaction{
		id:             id,
		state:          Growing,
		sharedLocks:    mapset.NewSet[types.RecordID](),
		exclusiveLocks: mapset.NewSet[types.RecordID](),
	}
}

func (t *Transaction) ID() types.TxnID { return t.id }

func (t *Transaction) State() State { return t.state }

func (t *Transaction) SetState(s State) { t.state = s }

func (t *Transaction) IsSharedLocked(rid types.RecordID) bool {
	return t.sharedLocks.Contains(rid)
}

func (t *Transaction) IsExclusiveLocked(rid types.RecordID) bool {
	return t.exclusiveLocks.Contains(rid)
}

// AddSharedLock, AddExclusiveLock, RemoveSharedLock, and RemoveExclusiveLock
// record lock-set membership. Exported for package lockmgr, the only
// expected caller: the lock manager owns the wait queues and therefore the
// moment a lock actually becomes granted or released, while Transaction
// just remembers what it holds.
func (t *Transaction) AddSharedLock(rid types.RecordID)    { t.sharedLocks.Add(rid) }
func (t *Transaction) AddExclusiveLock(rid types.RecordID) { t.exclusiveLocks.Add(rid) }

func (t *Transaction) RemoveSharedLock(rid types.RecordID)    { t.sharedLocks.Remove(rid) }
func (t *Transaction) RemoveExclusiveLock(rid types.RecordID) { t.exclusiveLocks.Remove(rid) }

// HeldLocks returns every record this transaction currently holds a lock
// on, shared or exclusive, for the manager's release-on-commit sweep.
func (t *Transaction) HeldLocks() []types.RecordID {
	all := t.sharedLocks.Clone()
	all = all.Union(t.exclusiveLocks)
	return all.ToSlice()
}
