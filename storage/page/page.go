// this code is adapted from https://github.com/ryogrid/SamehadaDB (storage/page/page.go)
package page

import (
	"go.uber.org/atomic"

	"github.com/relstore/core/common"
	"github.com/relstore/core/types"
)

// Page is the in-memory wrapper around one page-worth of bytes held by a
// buffer-pool frame, plus the bookkeeping the pool needs: pin count, dirty
// flag, and the read/write latch that arbitrates concurrent access to the
// bytes (spec.md section 3, "Frame"). A page must be pinned before it is
// latched, and unpinned only after the latch is released (spec.md
// section 9, "Latch + pin layering").
type Page struct {
	id       types.PageID
	pinCount atomic.Int32
	isDirty  bool
	data     []byte
	latch    common.Latch
}

// New wraps pre-loaded bytes (e.g. just read from disk) for pageID, pinned
// once on behalf of the caller that is fetching it.
func New(pageID types.PageID, data []byte) *Page {
	p := &Page{id: pageID, data: data, latch: common.NewLatch()}
	p.pinCount.Store(1)
	return p
}

// NewEmpty allocates a fresh, zero-filled page of size pageSize, pinned
// once on behalf of the caller that just allocated it.
func NewEmpty(pageID types.PageID, pageSize int) *Page {
	return New(pageID, make([]byte, pageSize))
}

func (p *Page) ID() types.PageID { return p.id }

func (p *Page) Data() []byte { return p.data }

func (p *Page) IncPinCount() { p.pinCount.Inc() }

// DecPinCount decrements the pin count, never below zero (spec.md section
// 3 invariant: "pin_count >= 0").
func (p *Page) DecPinCount() {
	if p.pinCount.Load() > 0 {
		p.pinCount.Dec()
	}
}

func (p *Page) PinCount() int32 { return p.pinCount.Load() }

func (p *Page) IsDirty() bool { return p.isDirty }

func (p *Page) SetIsDirty(dirty bool) { p.isDirty = dirty }

// WLatch/WUnlatch/RLatch/RUnlatch acquire and release the page's physical
// latch. Traversal code is responsible for the crabbing discipline
// (spec.md section 4.4); Page only provides the primitive.
func (p *Page) WLatch()   { p.latch.WLock() }
func (p *Page) WUnlatch() { p.latch.WUnlock() }
func (p *Page) RLatch()   { p.latch.RLock() }
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// ResetFor reinitializes an evicted frame's Page to hold a newly-read page,
// reusing the allocation and latch rather than constructing a new Page.
func (p *Page) ResetFor(pageID types.PageID, data []byte) {
	p.id = pageID
	p.data = data
	p.isDirty = false
	p.pinCount.Store(0)
}
