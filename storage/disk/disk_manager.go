// this code is adapted from https://github.com/ryogrid/SamehadaDB (storage/disk/disk_manager.go)
package disk

import "github.com/relstore/core/types"

// DiskManager is responsible for interacting with disk: fixed-size page
// reads/writes against a single heap file, and allocation of fresh page
// ids by appending (spec.md section 4.1). Writes are synchronous; no
// caching happens here, that is the buffer pool's job.
type DiskManager interface {
	ReadPage(id types.PageID, out []byte) error
	WritePage(id types.PageID, data []byte) error
	AllocatePage() types.PageID
	DeallocatePage(id types.PageID)
	GetNumWrites() uint64
	Size() int64
	ShutDown()
}
