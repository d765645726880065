package table

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/lockmgr"
	"github.com/relstore/core/storage/buffer"
	"github.com/relstore/core/storage/disk"
	"github.com/relstore/core/storage/index"
	"github.com/relstore/core/storage/page"
	"github.com/relstore/core/storage/tuple"
	"github.com/relstore/core/txn"
)

const tablePageSize = 64

func newTestTable(t *testing.T) (*Table, *txn.Manager) {
	t.Helper()
	dm := disk.NewMemDiskManager(tablePageSize)
	bpm := buffer.NewBufferPoolManager(64, tablePageSize, dm)
	codec := page.NodeCodec{PageSize: tablePageSize, TupleSize: 4}
	tree, err := index.Create(bpm, codec)
	assert.NoError(t, err)

	locks := lockmgr.New()
	txnMgr := txn.NewManager(locks)
	return New(tree, locks), txnMgr
}

func TestTableInsertScanUpdateDelete(t *testing.T) {
	tb, txnMgr := newTestTable(t)

	writer := txnMgr.Begin()
	assert.NoError(t, tb.Insert(writer, 1, tuple.New(1, tuple.EncodeUint32(100))))
	txnMgr.Commit(writer)

	reader := txnMgr.Begin()
	row, err := tb.Scan(reader, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint32(100), tuple.DecodeUint32(row.Payload))
	txnMgr.Commit(reader)

	updater := txnMgr.Begin()
	assert.NoError(t, tb.Update(updater, 1, tuple.New(1, tuple.EncodeUint32(200))))
	txnMgr.Commit(updater)

	reader2 := txnMgr.Begin()
	row2, err := tb.Scan(reader2, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint32(200), tuple.DecodeUint32(row2.Payload))
	txnMgr.Commit(reader2)

	deleter := txnMgr.Begin()
	assert.NoError(t, tb.Delete(deleter, 1))
	txnMgr.Commit(deleter)

	reader3 := txnMgr.Begin()
	_, err = tb.Scan(reader3, 1)
	assert.ErrorIs(t, err, dberrors.NotFound)
	txnMgr.Commit(reader3)
}

func TestTableUpdateUpgradesHeldSharedLock(t *testing.T) {
	tb, txnMgr := newTestTable(t)

	setup := txnMgr.Begin()
	assert.NoError(t, tb.Insert(setup, 5, tuple.New(5, tuple.EncodeUint32(1))))
	txnMgr.Commit(setup)

	t1 := txnMgr.Begin()
	_, err := tb.Scan(t1, 5)
	assert.NoError(t, err)
	assert.True(t, t1.IsSharedLocked(recordID(5)))

	assert.NoError(t, tb.Update(t1, 5, tuple.New(5, tuple.EncodeUint32(2))))
	assert.True(t, t1.IsExclusiveLocked(recordID(5)))
	txnMgr.Commit(t1)

	t2 := txnMgr.Begin()
	row, err := tb.Scan(t2, 5)
	assert.NoError(t, err)
	assert.Equal(t, uint32(2), tuple.DecodeUint32(row.Payload))
	txnMgr.Commit(t2)
}

func TestTableInsertDuplicateKey(t *testing.T) {
	tb, txnMgr := newTestTable(t)

	t1 := txnMgr.Begin()
	assert.NoError(t, tb.Insert(t1, 7, tuple.New(7, tuple.EncodeUint32(1))))
	err := tb.Insert(t1, 7, tuple.New(7, tuple.EncodeUint32(2)))
	assert.ErrorIs(t, err, dberrors.DuplicateKey)
	txnMgr.Commit(t1)
}
