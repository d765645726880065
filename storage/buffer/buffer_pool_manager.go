// BufferPoolManager caches fixed-size pages from disk in a pool of
// frames, evicting via Replacer when the pool is full (spec.md section
// 4.3). Grounded on the teacher's storage/buffer/buffer_pool_manager.go
// (FetchPage/UnpinPage/FlushPage/NewPage/DeletePage shape, free-list +
// replacer fallback for frame allocation), generalized to the
// record_access/set_evictable replacer API and a configurable page size.
package buffer

import (
	pair "github.com/notEpsilon/go-pair"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/multierr"

	"github.com/relstore/core/common"
	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/storage/disk"
	"github.com/relstore/core/storage/page"
	"github.com/relstore/core/types"
)

// BufferPoolManager owns every resident page frame and the sole
// authoritative mapping from page id to frame.
type BufferPoolManager struct {
	mu deadlock.Mutex

	diskManager disk.DiskManager
	pageSize    int

	frames    []*page.Page
	replacer  *Replacer
	freeList  []types.FrameID
	pageTable map[types.PageID]types.FrameID
}

// NewBufferPoolManager allocates poolSize frames of pageSize bytes each,
// backed by dm for eviction/fetch.
func NewBufferPoolManager(poolSize, pageSize int, dm disk.DiskManager) *BufferPoolManager {
	freeList := make([]types.FrameID, poolSize)
	for i := range freeList {
		freeList[i] = types.FrameID(i)
	}
	return &BufferPoolManager{
		diskManager: dm,
		pageSize:    pageSize,
		frames:      make([]*page.Page, poolSize),
		replacer:    NewReplacer(poolSize),
		freeList:    freeList,
		pageTable:   make(map[types.PageID]types.FrameID),
	}
}

// frameAndSource finds a usable frame: (frame id, came-from-free-list).
// Caller must hold b.mu.
func (b *BufferPoolManager) frameAndSource() (pair.Pair[types.FrameID, bool], bool) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return pair.Pair[types.FrameID, bool]{First: frameID, Second: true}, true
	}
	frameID, ok := b.replacer.Victim()
	if !ok {
		return pair.Pair[types.FrameID, bool]{}, false
	}
	return pair.Pair[types.FrameID, bool]{First: frameID, Second: false}, true
}

// evictFrame writes back the frame's current occupant (if dirty) and
// clears the page table entry for it. Caller must hold b.mu.
func (b *BufferPoolManager) evictFrame(frameID types.FrameID) error {
	current := b.frames[frameID]
	if current == nil {
		return nil
	}
	common.AssertDebug(current.PinCount() == 0, "buffer: evicting a still-pinned frame")
	if current.IsDirty() {
		if err := b.diskManager.WritePage(current.ID(), current.Data()); err != nil {
			return dberrors.Wrap(err, "buffer: evict: flush dirty frame")
		}
	}
	common.ShPrintf(common.DebugInfo, "buffer: evicting frame", "frame_id", frameID, "page_id", current.ID())
	delete(b.pageTable, current.ID())
	return nil
}

// FetchPage pins and returns the page, reading it from disk into a free
// or evicted frame if it isn't already resident. Returns NoFreeFrame if
// every frame is pinned.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) (*page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.frames[frameID]
		pg.IncPinCount()
		b.replacer.RecordAccess(frameID)
		b.replacer.SetEvictable(frameID, false)
		return pg, nil
	}

	picked, ok := b.frameAndSource()
	if !ok {
		return nil, dberrors.NoFreeFrame
	}
	frameID, fromFreeList := picked.First, picked.Second
	if !fromFreeList {
		if err := b.evictFrame(frameID); err != nil {
			return nil, err
		}
	}

	data := make([]byte, b.pageSize)
	if err := b.diskManager.ReadPage(pageID, data); err != nil {
		return nil, dberrors.Wrap(err, "buffer: fetch page")
	}

	pg := page.New(pageID, data)
	b.frames[frameID] = pg
	b.pageTable[pageID] = frameID
	b.replacer.RecordAccess(frameID)
	b.replacer.SetEvictable(frameID, false)
	return pg, nil
}

// NewPage allocates a fresh page id via the disk manager and installs it
// in a frame, pinned. Returns NoFreeFrame if every frame is pinned.
func (b *BufferPoolManager) NewPage() (*page.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	picked, ok := b.frameAndSource()
	if !ok {
		return nil, dberrors.NoFreeFrame
	}
	frameID, fromFreeList := picked.First, picked.Second
	if !fromFreeList {
		if err := b.evictFrame(frameID); err != nil {
			return nil, err
		}
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID, b.pageSize)
	b.frames[frameID] = pg
	b.pageTable[pageID] = frameID
	b.replacer.RecordAccess(frameID)
	b.replacer.SetEvictable(frameID, false)
	return pg, nil
}

// UnpinPage decrements the page's pin count; once it reaches zero the
// frame becomes an eviction candidate. isDirty is OR'd with the page's
// existing dirty flag, never cleared here.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return dberrors.NotFound
	}
	pg := b.frames[frameID]
	pg.DecPinCount()
	if isDirty {
		pg.SetIsDirty(true)
	}
	if pg.PinCount() <= 0 {
		b.replacer.SetEvictable(frameID, true)
	}
	return nil
}

// FlushPage writes the page's current contents to disk unconditionally
// and clears its dirty flag.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return dberrors.NotFound
	}
	pg := b.frames[frameID]
	if err := b.diskManager.WritePage(pageID, pg.Data()); err != nil {
		return dberrors.Wrap(err, "buffer: flush page")
	}
	pg.SetIsDirty(false)
	return nil
}

// FlushAll flushes every resident page, aggregating any errors.
func (b *BufferPoolManager) FlushAll() error {
	b.mu.Lock()
	pageIDs := make([]types.PageID, 0, len(b.pageTable))
	for pid := range b.pageTable {
		pageIDs = append(pageIDs, pid)
	}
	b.mu.Unlock()

	var errs error
	for _, pid := range pageIDs {
		errs = multierr.Append(errs, b.FlushPage(pid))
	}
	return errs
}

// DeletePage frees pageID's frame, provided it is not pinned.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return nil
	}
	pg := b.frames[frameID]
	if pg.PinCount() > 0 {
		return dberrors.New("buffer: delete page: pin count greater than 0")
	}
	delete(b.pageTable, pageID)
	b.frames[frameID] = nil
	b.diskManager.DeallocatePage(pageID)
	b.freeList = append(b.freeList, frameID)
	return nil
}

// FrameGuard scopes a fetched page to a pin/unpin pair so callers can't
// forget to release it (spec.md section 4.3, "every fetch is matched by
// exactly one unpin").
type FrameGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	dirty   bool
	latched bool
	write   bool
}

// Fetch pins pageID and returns a guard over it.
func (b *BufferPoolManager) Fetch(pageID types.PageID) (*FrameGuard, error) {
	pg, err := b.FetchPage(pageID)
	if err != nil {
		return nil, err
	}
	return &FrameGuard{bpm: b, page: pg}, nil
}

// New allocates a fresh page and returns a guard over it.
func (b *BufferPoolManager) New() (*FrameGuard, error) {
	pg, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	return &FrameGuard{bpm: b, page: pg}, nil
}

// Page returns the underlying page.
func (g *FrameGuard) Page() *page.Page { return g.page }

// MarkDirty records that the guard's page was mutated, so Release flushes
// the dirty flag through to the buffer pool on unpin.
func (g *FrameGuard) MarkDirty() { g.dirty = true }

// RLatch/WLatch/Unlatch wrap the page's latch, tracked so Release can
// release it if the caller forgot to.
func (g *FrameGuard) RLatch() {
	g.page.RLatch()
	g.latched, g.write = true, false
}

func (g *FrameGuard) WLatch() {
	g.page.WLatch()
	g.latched, g.write = true, true
}

func (g *FrameGuard) Unlatch() {
	if !g.latched {
		return
	}
	if g.write {
		g.page.WUnlatch()
	} else {
		g.page.RUnlatch()
	}
	g.latched = false
}

// Release unlatches (if still latched) and unpins the page.
func (g *FrameGuard) Release() error {
	g.Unlatch()
	return g.bpm.UnpinPage(g.page.ID(), g.dirty)
}
