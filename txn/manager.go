package txn

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/relstore/core/types"
)

// Locker is the subset of the lock manager a TransactionManager needs:
// releasing every lock a transaction holds on commit/abort. Defined here
// (rather than imported from package lockmgr) so lockmgr can depend on
// txn for the Transaction type without a package cycle; *lockmgr.LockManager
// satisfies this interface structurally.
type Locker interface {
	ReleaseAll(t *Transaction)
}

// Manager begins, commits, and aborts transactions (spec.md section
// 4.5). Grounded on the teacher's storage/access/transaction_manager.go
// (Begin/Commit/Abort shape, global transaction latch, counter-under-
// mutex id assignment), trimmed of WAL log-record appends and the
// table-heap rollback/reapply of write records (non-goals here).
type Manager struct {
	idCounter *types.TxnIDCounter
	locker    Locker

	// globalLatch blocks new transactions from beginning while a
	// checkpoint-style operation holds it exclusively (spec.md section
	// 4.5 mirrors the teacher's BlockAllTransactions/ResumeTransactions).
	globalLatch deadlock.RWMutex

	mu      deadlock.Mutex
	byID    map[types.TxnID]*Transaction
}

// NewManager returns a manager whose transactions release their locks
// through locker on commit/abort.
func NewManager(locker Locker) *Manager {
	return &Manager{
		idCounter: types.NewTxnIDCounter(),
		locker:    locker,
		byID:      make(map[types.TxnID]*Transaction),
	}
}

// Begin starts a new transaction in the Growing state.
func (m *Manager) Begin() *Transaction {
	m.globalLatch.RLock()

	t := newTransaction(m.idCounter.Next())

	m.mu.Lock()
	m.byID[t.id] = t
	m.mu.Unlock()

	return t
}

// Lookup returns the transaction with the given id, if still tracked.
func (m *Manager) Lookup(id types.TxnID) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	return t, ok
}

// Commit transitions t to Committed and releases every lock it holds.
func (m *Manager) Commit(t *Transaction) {
	t.SetState(Committed)
	m.locker.ReleaseAll(t)
	m.globalLatch.RUnlock()
}

// Abort transitions t to Aborted and releases every lock it holds. Data
// changes already made by t are not rolled back (spec.md section 4.5:
// "a known limitation pending WAL").
func (m *Manager) Abort(t *Transaction) {
	t.SetState(Aborted)
	m.locker.ReleaseAll(t)
	m.globalLatch.RUnlock()
}

// BlockAll acquires the global transaction latch exclusively, preventing
// any new transaction from beginning until ResumeAll is called.
func (m *Manager) BlockAll() { m.globalLatch.Lock() }

// ResumeAll releases the global transaction latch acquired by BlockAll.
func (m *Manager) ResumeAll() { m.globalLatch.Unlock() }
