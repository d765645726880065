// Replacer tracks unpinned frames in recency order and picks an eviction
// victim (spec.md section 4.2). The internal doubly-linked-list/index
// structure follows lintang-b-s-rtreed's lib/buffer/lru_replacer.go; the
// public API (record_access/set_evictable/victim, rather than the
// teacher's Clock-based Pin/Unpin/Victim) is spec.md section 4.2's own.
package buffer

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/relstore/core/types"
)

type lruNode struct {
	frame types.FrameID
	prev  *lruNode
	next  *lruNode
}

// Replacer is a recency-ordered set of evictable frames.
type Replacer struct {
	mu deadlock.Mutex

	head *lruNode // most recently used
	tail *lruNode // least recently used

	tracked   map[types.FrameID]*lruNode // every recorded frame not yet evicted, evictable or not
	evictable map[types.FrameID]bool
}

// NewReplacer returns an empty replacer. capacity is advisory only (the
// replacer itself grows/shrinks with RecordAccess/SetEvictable calls); it
// exists so callers can size the backing map up front.
func NewReplacer(capacity int) *Replacer {
	head := &lruNode{}
	tail := &lruNode{}
	head.next = tail
	tail.prev = head
	return &Replacer{
		head:      head,
		tail:      tail,
		tracked:   make(map[types.FrameID]*lruNode, capacity),
		evictable: make(map[types.FrameID]bool, capacity),
	}
}

func (r *Replacer) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (r *Replacer) pushFront(n *lruNode) {
	n.next = r.head.next
	n.prev = r.head
	r.head.next.prev = n
	r.head.next = n
}

// RecordAccess moves frameID to the most-recently-used end, inserting it
// if this is the first time it has been seen.
func (r *Replacer) RecordAccess(frameID types.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.tracked[frameID]; ok {
		r.unlink(n)
		r.pushFront(n)
		return
	}
	n := &lruNode{frame: frameID}
	r.tracked[frameID] = n
	r.pushFront(n)
}

// SetEvictable adds or removes frameID from the eviction candidate set.
func (r *Replacer) SetEvictable(frameID types.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tracked[frameID]; !ok {
		return
	}
	r.evictable[frameID] = evictable
}

// Victim removes and returns the least-recently-used evictable frame, or
// ok=false if no frame is currently evictable.
func (r *Replacer) Victim() (frameID types.FrameID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for n := r.tail.prev; n != r.head; n = n.prev {
		if r.evictable[n.frame] {
			r.unlink(n)
			delete(r.tracked, n.frame)
			delete(r.evictable, n.frame)
			return n.frame, true
		}
	}
	return 0, false
}

// Size reports how many frames are currently evictable.
func (r *Replacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, v := range r.evictable {
		if v {
			n++
		}
	}
	return n
}
