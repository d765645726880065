package index

import (
	"github.com/golang-collections/collections/stack"
	"golang.org/x/exp/slices"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/storage/buffer"
	"github.com/relstore/core/storage/page"
	"github.com/relstore/core/storage/tuple"
	"github.com/relstore/core/types"
)

// Insert adds (key, tp) to the tree, failing with DuplicateKey if key is
// already present (spec.md section 4.4).
func (t *BTree) Insert(key uint32, tp *tuple.Tuple) error {
	frames, err := t.descend(key, true, opInsert)
	if err != nil {
		return err
	}

	leafF := frames.Pop().(frame)
	h, entries := t.codec.DecodeLeaf(leafF.guard.Page().Data())

	idx, found := slices.BinarySearchFunc(entries, key, func(e page.LeafEntry, k uint32) int {
		return int(e.Key) - int(k)
	})
	if found {
		leafF.guard.Release()
		release(frames)
		return dberrors.DuplicateKey
	}

	entries = slices.Insert(entries, idx, page.LeafEntry{Key: key, Tuple: tp.Payload})

	if len(entries) <= t.codec.LeafCapacity() {
		t.codec.EncodeLeaf(leafF.guard.Page().Data(), h.Parent, h.NextLeaf, entries)
		leafF.guard.MarkDirty()
		leafF.guard.Release()
		release(frames)
		return nil
	}

	return t.splitLeafAndPropagate(frames, leafF, h, entries)
}

// splitLeafAndPropagate splits an overflowing leaf (spec.md section 4.4:
// "move the upper half to it, link leaves, push the smallest key of the
// right sibling into the parent"), then walks up frames inserting the
// new separator, splitting ancestors in turn as needed.
func (t *BTree) splitLeafAndPropagate(frames *stack.Stack, leafF frame, h page.NodeHeader, entries []page.LeafEntry) error {
	splitAt := len(entries) / 2
	leftEntries, rightEntries := entries[:splitAt], entries[splitAt:]
	promoted := rightEntries[0].Key

	rightGuard, err := t.bpm.New()
	if err != nil {
		release(frames)
		leafF.guard.Release()
		return err
	}
	t.codec.EncodeLeaf(rightGuard.Page().Data(), h.Parent, h.NextLeaf, rightEntries)
	rightGuard.MarkDirty()

	t.codec.EncodeLeaf(leafF.guard.Page().Data(), h.Parent, rightGuard.Page().ID(), leftEntries)
	leafF.guard.MarkDirty()

	return t.propagateSplit(frames, leafF.pageID, rightGuard.Page().ID(), promoted, leafF.guard, rightGuard)
}

// propagateSplit installs (promotedKey, rightID) as a new separator in
// the parent frame on top of the stack, splitting that parent in turn if
// it overflows, until either an ancestor absorbs the new separator
// without overflowing or the root itself splits (spec.md section 4.4:
// "If the root splits, a new root is created whose only children are the
// two halves.").
func (t *BTree) propagateSplit(frames *stack.Stack, leftID, rightID types.PageID, promotedKey uint32, leftGuard, rightGuard *buffer.FrameGuard) error {
	for {
		f := frames.Pop().(frame)

		if f.pageID == types.HeaderPageID {
			newRoot, err := t.bpm.New()
			if err != nil {
				leftGuard.Release()
				rightGuard.Release()
				f.guard.Release()
				return err
			}
			t.codec.EncodeInternal(newRoot.Page().Data(), types.InvalidPageID, leftID,
				[]page.InternalEntry{{Key: promotedKey, Child: rightID}})
			newRoot.MarkDirty()

			page.SetParent(leftGuard.Page().Data(), newRoot.Page().ID())
			page.SetParent(rightGuard.Page().Data(), newRoot.Page().ID())
			leftGuard.MarkDirty()
			rightGuard.MarkDirty()
			leftGuard.Release()
			rightGuard.Release()

			header := page.DecodeRootHeader(f.guard.Page().Data())
			header.RootPageID = newRoot.Page().ID()
			page.EncodeRootHeader(f.guard.Page().Data(), header)
			f.guard.MarkDirty()
			f.guard.Release()
			newRoot.Release()
			return nil
		}

		h, leftmost, entries := t.codec.DecodeInternal(f.guard.Page().Data())
		entries = slices.Insert(entries, f.childIdx+1, page.InternalEntry{Key: promotedKey, Child: rightID})

		page.SetParent(leftGuard.Page().Data(), f.pageID)
		page.SetParent(rightGuard.Page().Data(), f.pageID)
		leftGuard.MarkDirty()
		rightGuard.MarkDirty()
		leftGuard.Release()
		rightGuard.Release()

		if len(entries) <= t.codec.InternalCapacity() {
			t.codec.EncodeInternal(f.guard.Page().Data(), h.Parent, leftmost, entries)
			f.guard.MarkDirty()
			f.guard.Release()
			release(frames)
			return nil
		}

		mid := len(entries) / 2
		promoted2 := entries[mid].Key
		rightLeftmost := entries[mid].Child
		leftEntries, rightEntries := entries[:mid], entries[mid+1:]

		rightGuard2, err := t.bpm.New()
		if err != nil {
			f.guard.Release()
			return err
		}
		t.codec.EncodeInternal(rightGuard2.Page().Data(), h.Parent, rightLeftmost, rightEntries)
		rightGuard2.MarkDirty()
		if err := t.reparentChildren(rightLeftmost, rightEntries, rightGuard2.Page().ID()); err != nil {
			return err
		}

		t.codec.EncodeInternal(f.guard.Page().Data(), h.Parent, leftmost, leftEntries)
		f.guard.MarkDirty()

		leftID, rightID, promotedKey = f.pageID, rightGuard2.Page().ID(), promoted2
		leftGuard, rightGuard = f.guard, rightGuard2
	}
}

// reparentChildren rewrites the parent pointer of every child an
// internal node owns (its left-most pointer plus each entry's child) to
// newParent. Called after an internal split moves a run of children to
// a freshly created sibling.
func (t *BTree) reparentChildren(leftmost types.PageID, entries []page.InternalEntry, newParent types.PageID) error {
	ids := make([]types.PageID, 0, len(entries)+1)
	ids = append(ids, leftmost)
	for _, e := range entries {
		ids = append(ids, e.Child)
	}
	for _, id := range ids {
		g, err := t.bpm.Fetch(id)
		if err != nil {
			return err
		}
		g.WLatch()
		page.SetParent(g.Page().Data(), newParent)
		g.MarkDirty()
		if err := g.Release(); err != nil {
			return err
		}
	}
	return nil
}
