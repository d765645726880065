package buffer

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/storage/disk"
	"github.com/relstore/core/types"
)

const bpmTestPageSize = 64

func TestBufferPoolManagerBinaryData(t *testing.T) {
	poolSize := 10
	dm := disk.NewMemDiskManager(bpmTestPageSize)
	bpm := NewBufferPoolManager(poolSize, bpmTestPageSize, dm)

	page0, err := bpm.NewPage()
	assert.NoError(t, err)
	assert.Equal(t, types.PageID(0), page0.ID())

	randomData := make([]byte, bpmTestPageSize)
	rand.Read(randomData)
	randomData[bpmTestPageSize/2] = '0'
	randomData[bpmTestPageSize-1] = '0'
	copy(page0.Data(), randomData)

	// buffer pool fills up
	for i := 1; i < poolSize; i++ {
		p, err := bpm.NewPage()
		assert.NoError(t, err)
		assert.Equal(t, types.PageID(i), p.ID())
	}

	// once full, every frame is still pinned: no frame available
	_, err = bpm.NewPage()
	assert.ErrorIs(t, err, dberrors.NoFreeFrame)
	assert.NoError(t, bpm.UnpinPage(page0.ID(), true))

	// after flushing page 0 back to disk we can refetch it
	assert.NoError(t, bpm.FlushPage(types.PageID(0)))
	fetched, err := bpm.FetchPage(types.PageID(0))
	assert.NoError(t, err)
	assert.Equal(t, randomData, fetched.Data())
}

func TestBufferPoolManagerEvictsOnUnpinnedFrame(t *testing.T) {
	poolSize := 4
	dm := disk.NewMemDiskManager(bpmTestPageSize)
	bpm := NewBufferPoolManager(poolSize, bpmTestPageSize, dm)

	var ids []types.PageID
	for i := 0; i < poolSize; i++ {
		p, err := bpm.NewPage()
		assert.NoError(t, err)
		ids = append(ids, p.ID())
		assert.NoError(t, bpm.UnpinPage(p.ID(), false))
	}

	// all frames are unpinned and therefore evictable; a new page should
	// succeed by evicting the least-recently-used one (ids[0]).
	p, err := bpm.NewPage()
	assert.NoError(t, err)
	assert.Equal(t, types.PageID(poolSize), p.ID())

	_, err = bpm.FetchPage(ids[0])
	assert.NoError(t, err) // re-read from disk into a fresh frame
}

func TestBufferPoolManagerDeletePageRequiresUnpinned(t *testing.T) {
	dm := disk.NewMemDiskManager(bpmTestPageSize)
	bpm := NewBufferPoolManager(4, bpmTestPageSize, dm)

	p, err := bpm.NewPage()
	assert.NoError(t, err)

	assert.Error(t, bpm.DeletePage(p.ID()))

	assert.NoError(t, bpm.UnpinPage(p.ID(), false))
	assert.NoError(t, bpm.DeletePage(p.ID()))
}
