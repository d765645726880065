package disk

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relstore/core/errors"
	"github.com/relstore/core/types"
)

const testPageSize = 64

func TestFileDiskManagerReadWrite(t *testing.T) {
	dm, err := NewFileDiskManager(t.TempDir()+"/test.db", testPageSize)
	assert.NoError(t, err)
	defer dm.ShutDown()

	data := make([]byte, testPageSize)
	copy(data, "A test string.")
	buffer := make([]byte, testPageSize)

	assert.NoError(t, dm.ReadPage(0, buffer)) // tolerate empty read, zero-filled
	assert.Equal(t, make([]byte, testPageSize), buffer)

	assert.NoError(t, dm.WritePage(0, data))
	assert.NoError(t, dm.ReadPage(0, buffer))
	assert.Equal(t, data, buffer)

	copy(data, "Another test string, further along.")
	assert.NoError(t, dm.WritePage(5, data))
	assert.NoError(t, dm.ReadPage(5, buffer))
	assert.Equal(t, data, buffer)

	assert.Equal(t, uint64(2), dm.GetNumWrites())
}

func TestFileDiskManagerAllocateAndDeallocate(t *testing.T) {
	dm, err := NewFileDiskManager(t.TempDir()+"/test.db", testPageSize)
	assert.NoError(t, err)
	defer dm.ShutDown()

	first := dm.AllocatePage()
	second := dm.AllocatePage()
	assert.Equal(t, first+1, second)

	dm.DeallocatePage(first)
	assert.ElementsMatch(t, []types.PageID{first}, dm.FreedPages())
}

func TestFileDiskManagerChecksumMismatch(t *testing.T) {
	path := t.TempDir() + "/test.db"
	dm, err := NewFileDiskManager(path, testPageSize)
	assert.NoError(t, err)

	data := make([]byte, testPageSize)
	copy(data, "corrupt me")
	assert.NoError(t, dm.WritePage(0, data))
	dm.ShutDown()

	// flip a byte inside the page body, leaving the checksum trailer as-is
	f, ferr := os.OpenFile(path, os.O_RDWR, 0666)
	assert.NoError(t, ferr)
	_, werr := f.WriteAt([]byte{'X'}, 0)
	assert.NoError(t, werr)
	f.Close()

	dm2, err := NewFileDiskManager(path, testPageSize)
	assert.NoError(t, err)
	defer dm2.ShutDown()

	buffer := make([]byte, testPageSize)
	err = dm2.ReadPage(0, buffer)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errors.IoError))
}

func TestMemDiskManagerReadWrite(t *testing.T) {
	dm := NewMemDiskManager(testPageSize)

	data := make([]byte, testPageSize)
	copy(data, "in memory")
	buffer := make([]byte, testPageSize)

	assert.NoError(t, dm.WritePage(0, data))
	assert.NoError(t, dm.ReadPage(0, buffer))
	assert.Equal(t, data, buffer)
}
