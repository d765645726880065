// this code is adapted from https://github.com/ryogrid/SamehadaDB (storage/disk/disk_manager_impl.go)
package disk

import (
	"io"
	"os"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	humanize "github.com/dustin/go-humanize"
	"github.com/spaolacci/murmur3"

	"github.com/relstore/core/common"
	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/types"
)

// checksumSize is the trailing murmur3.Sum32 stored after every physical
// page slot. The buffer pool only ever sees PageSize bytes back from
// ReadPage; the checksum is entirely an implementation detail of this
// package, catching media corruption the teacher's disk manager never
// checked for.
const checksumSize = 4

// FileDiskManager is the file-backed implementation of DiskManager. Pages
// are stored at offset id * (pageSize+checksumSize) in a single append-only
// heap file.
type FileDiskManager struct {
	mu         sync.Mutex
	file       *os.File
	pageSize   int
	size       int64 // logical file size in page slots' worth of bytes
	numWrites  uint64
	nextID     *types.PageIDCounter
	freedPages mapset.Set[types.PageID]
}

// NewFileDiskManager opens (creating if necessary) dbFilename and derives
// the next fresh page id from however many whole page-slots are already on
// disk (spec.md section 9: ids are "initialized from the persisted
// root-header page on startup" — here, from the file's own size, since
// the root-header page itself is page 0 of that same file).
func NewFileDiskManager(dbFilename string, pageSize int) (*FileDiskManager, error) {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, dberrors.Wrap(err, "disk: open db file")
	}
	info, err := file.Stat()
	if err != nil {
		return nil, dberrors.Wrap(err, "disk: stat db file")
	}

	slot := int64(pageSize + checksumSize)
	nPages := info.Size() / slot

	d := &FileDiskManager{
		file:       file,
		pageSize:   pageSize,
		size:       nPages * slot,
		nextID:     types.NewPageIDCounter(types.PageID(nPages)),
		freedPages: mapset.NewSet[types.PageID](),
	}
	return d, nil
}

func (d *FileDiskManager) offset(id types.PageID) int64 {
	return int64(id) * int64(d.pageSize+checksumSize)
}

// WritePage writes data (exactly pageSize bytes) plus its checksum.
func (d *FileDiskManager) WritePage(id types.PageID, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(data) != d.pageSize {
		return dberrors.New("disk: WritePage: data is not pageSize bytes")
	}

	buf := make([]byte, d.pageSize+checksumSize)
	copy(buf, data)
	sum := murmur3.Sum32(data)
	buf[d.pageSize] = byte(sum)
	buf[d.pageSize+1] = byte(sum >> 8)
	buf[d.pageSize+2] = byte(sum >> 16)
	buf[d.pageSize+3] = byte(sum >> 24)

	offset := d.offset(id)
	if _, err := d.file.WriteAt(buf, offset); err != nil {
		return dberrors.Wrap(err, "disk: write page")
	}
	if end := offset + int64(len(buf)); end > d.size {
		d.size = end
		common.ShPrintf(common.DebugInfo, "disk: file grew", "file", d.file.Name(), "size", humanize.Bytes(uint64(d.size)))
	}
	d.numWrites++
	return d.file.Sync()
}

// ReadPage reads pageSize bytes into out and verifies the trailing
// checksum, returning errors.IoError if it doesn't match (media
// corruption) or the read comes back short. A page whose slot lies past
// the end of the file reads back as all zeros, with no error.
func (d *FileDiskManager) ReadPage(id types.PageID, out []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(out) != d.pageSize {
		return dberrors.New("disk: ReadPage: out is not pageSize bytes")
	}

	offset := d.offset(id)
	if offset+int64(d.pageSize+checksumSize) > d.size {
		// never-written page: zero-fill, matches the teacher's behavior
		// for a short read past EOF.
		for i := range out {
			out[i] = 0
		}
		return nil
	}

	buf := make([]byte, d.pageSize+checksumSize)
	n, err := d.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return dberrors.Wrap(dberrors.IoError, "disk: read page: "+err.Error())
	}
	if n < len(buf) {
		return dberrors.Wrap(dberrors.IoError, "disk: read page: short read")
	}

	want := uint32(buf[d.pageSize]) | uint32(buf[d.pageSize+1])<<8 |
		uint32(buf[d.pageSize+2])<<16 | uint32(buf[d.pageSize+3])<<24
	got := murmur3.Sum32(buf[:d.pageSize])
	if want != got {
		common.ShPrintf(common.Error, "disk: checksum mismatch", "page_id", id, "want", want, "got", got)
		return dberrors.Wrap(dberrors.IoError, "disk: read page: checksum mismatch")
	}

	copy(out, buf[:d.pageSize])
	return nil
}

// AllocatePage hands out a fresh page id by incrementing a counter; no
// bytes are written until the caller's first WritePage (spec.md section
// 4.1: "allocates fresh page identifiers by appending").
func (d *FileDiskManager) AllocatePage() types.PageID {
	return d.nextID.Next()
}

// DeallocatePage records id as freed. Freed pages are not reused by
// AllocatePage (spec.md section 3, "Lifecycles": freed pages become dead
// space, an accepted limitation); the set exists so higher layers and
// tests can at least observe what has been freed.
func (d *FileDiskManager) DeallocatePage(id types.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freedPages.Add(id)
}

// FreedPages returns the set of page ids DeallocatePage has been called
// with, for diagnostics/tests.
func (d *FileDiskManager) FreedPages() []types.PageID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.freedPages.ToSlice()
}

func (d *FileDiskManager) GetNumWrites() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numWrites
}

func (d *FileDiskManager) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *FileDiskManager) ShutDown() {
	d.file.Close()
}

// RemoveDBFile deletes the backing file. Only valid after ShutDown.
func (d *FileDiskManager) RemoveDBFile() {
	os.Remove(d.file.Name())
}
