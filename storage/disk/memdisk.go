package disk

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dsnet/golib/memfile"
	"github.com/spaolacci/murmur3"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/types"
)

// MemDiskManager is an in-memory DiskManager backed by memfile.File, used
// by package tests that want DiskManager semantics (including the
// checksum check) without touching the filesystem. Its read/write/offset
// logic mirrors FileDiskManager exactly; only the backing medium differs.
type MemDiskManager struct {
	mu         sync.Mutex
	file       *memfile.File
	pageSize   int
	size       int64
	numWrites  uint64
	nextID     *types.PageIDCounter
	freedPages mapset.Set[types.PageID]
}

// NewMemDiskManager starts with an empty in-memory file.
func NewMemDiskManager(pageSize int) *MemDiskManager {
	return &MemDiskManager{
		file:       memfile.New(nil),
		pageSize:   pageSize,
		nextID:     types.NewPageIDCounter(0),
		freedPages: mapset.NewSet[types.PageID](),
	}
}

func (d *MemDiskManager) offset(id types.PageID) int64 {
	return int64(id) * int64(d.pageSize+checksumSize)
}

func (d *MemDiskManager) WritePage(id types.PageID, data []byte) error {
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
	}
	d.numWrites++
	return nil
}

func (d *MemDiskManager) ReadPage(id types.PageID, out []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(out) != d.pageSize {
		return dberrors.New("disk: ReadPage: out is not pageSize bytes")
	}

	offset := d.offset(id)
	if offset+int64(d.pageSize+checksumSize) > d.size {
		for i := range out {
			out[i] = 0
		}
		return nil
	}

	buf := make([]byte, d.pageSize+checksumSize)
	if _, err := d.file.ReadAt(buf, offset); err != nil {
		return dberrors.Wrap(dberrors.IoError, "disk: read page: "+err.Error())
	}

	want := uint32(buf[d.pageSize]) | uint32(buf[d.pageSize+1])<<8 |
		uint32(buf[d.pageSize+2])<<16 | uint32(buf[d.pageSize+3])<<24
	got := murmur3.Sum32(buf[:d.pageSize])
	if want != got {
		return dberrors.Wrap(dberrors.IoError, "disk: read page: checksum mismatch")
	}

	copy(out, buf[:d.pageSize])
	return nil
}

func (d *MemDiskManager) AllocatePage() types.PageID { return d.nextID.Next() }

func (d *MemDiskManager) DeallocatePage(id types.PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.freedPages.Add(id)
}

func (d *MemDiskManager) GetNumWrites() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.numWrites
}

func (d *MemDiskManager) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *MemDiskManager) ShutDown() {}
