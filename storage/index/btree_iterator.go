package index

import (
	"golang.org/x/exp/slices"

	"github.com/relstore/core/storage/page"
	"github.com/relstore/core/storage/tuple"
	"github.com/relstore/core/types"
)

// Iterator walks the leaf chain in ascending key order (spec.md section
// 4.4, "leaves are linked for ordered range scans"). It holds no latch
// between calls to Next: each call pins the current leaf just long enough
// to copy its entries out, then releases it, so a long-lived scan never
// blocks concurrent writers for its whole duration.
type Iterator struct {
	t       *BTree
	leaf    types.PageID
	entries []page.LeafEntry
	pos     int
	done    bool
}

// Scan returns an iterator positioned at the first key >= start.
func (t *BTree) Scan(start uint32) (*Iterator, error) {
	frames, err := t.descend(start, false, opRead)
	if err != nil {
		return nil, err
	}
	leafF := frames.Peek().(frame)
	_, entries := t.codec.DecodeLeaf(leafF.guard.Page().Data())

	idx, _ := slices.BinarySearchFunc(entries, start, cmpLeafKey)

	it := &Iterator{t: t, leaf: leafF.pageID, entries: entries, pos: idx}
	release(frames)
	return it, nil
}

// ScanAll returns an iterator over every entry in the tree, in key order.
func (t *BTree) ScanAll() (*Iterator, error) {
	return t.Scan(0)
}

// Next returns the next (key, tuple) pair and advances the iterator, or
// reports done == true once the last leaf is exhausted.
func (it *Iterator) Next() (key uint32, tp *tuple.Tuple, done bool, err error) {
	for {
		if it.done {
			return 0, nil, true, nil
		}
		if it.pos < len(it.entries) {
			e := it.entries[it.pos]
			it.pos++
			return e.Key, tuple.New(e.Key, e.Tuple), false, nil
		}

		guard, ferr := it.t.bpm.Fetch(it.leaf)
		if ferr != nil {
			return 0, nil, false, ferr
		}
		guard.RLatch()
		h, _ := it.t.codec.DecodeLeaf(guard.Page().Data())
		nextLeaf := h.NextLeaf
		if err := guard.Release(); err != nil {
			return 0, nil, false, err
		}

		if !nextLeaf.IsValid() {
			it.done = true
			return 0, nil, true, nil
		}

		nextGuard, ferr := it.t.bpm.Fetch(nextLeaf)
		if ferr != nil {
			return 0, nil, false, ferr
		}
		nextGuard.RLatch()
		_, entries := it.t.codec.DecodeLeaf(nextGuard.Page().Data())
		if err := nextGuard.Release(); err != nil {
			return 0, nil, false, err
		}

		it.leaf = nextLeaf
		it.entries = entries
		it.pos = 0
	}
}
