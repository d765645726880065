package index

import (
	"github.com/golang-collections/collections/stack"
	"golang.org/x/exp/slices"

	dberrors "github.com/relstore/core/errors"
	"github.com/relstore/core/storage/buffer"
	"github.com/relstore/core/storage/page"
	"github.com/relstore/core/types"
)

func cmpLeafKey(e page.LeafEntry, k uint32) int { return int(e.Key) - int(k) }

func childIDs(leftmost types.PageID, entries []page.InternalEntry) []types.PageID {
	ids := make([]types.PageID, 0, len(entries)+1)
	ids = append(ids, leftmost)
	for _, e := range entries {
		ids = append(ids, e.Child)
	}
	return ids
}

func (t *BTree) fetchWrite(id types.PageID) (*buffer.FrameGuard, error) {
	g, err := t.bpm.Fetch(id)
	if err != nil {
		return nil, err
	}
	g.WLatch()
	return g, nil
}

// Delete removes key from the tree, failing with NotFound if it is absent
// (spec.md section 4.4: "Delete ... rebalances via steal-then-merge").
func (t *BTree) Delete(key uint32) error {
	frames, err := t.descend(key, true, opDelete)
	if err != nil {
		return err
	}

	leafF := frames.Pop().(frame)
	lh, entries := t.codec.DecodeLeaf(leafF.guard.Page().Data())

	idx, found := slices.BinarySearchFunc(entries, key, cmpLeafKey)
	if !found {
		leafF.guard.Release()
		release(frames)
		return dberrors.NotFound
	}
	entries = slices.Delete(entries, idx, idx+1)

	// The root leaf has no sibling to steal from or merge into, regardless
	// of how far below minLeaf its count falls (spec.md section 4.4: the
	// root is exempt from the minimum-occupancy invariant). Checked via
	// the frame's own isRoot flag, not by popping an ancestor: descend
	// only keeps a parent frame on the stack when this leaf was found
	// "unsafe" (at or below minLeaf), so a non-root leaf comfortably above
	// minLeaf reaches here with frames already empty.
	if leafF.isRoot || len(entries) >= t.minLeaf() {
		t.codec.EncodeLeaf(leafF.guard.Page().Data(), lh.Parent, lh.NextLeaf, entries)
		leafF.guard.MarkDirty()
		leafF.guard.Release()
		release(frames)
		return nil
	}

	parentF := frames.Pop().(frame)
	return t.fixLeafUnderflow(frames, leafF, lh, entries, parentF)
}

// fixLeafUnderflow rebalances an underflowing leaf against its immediate
// siblings: steal from the left sibling first, then the right, and only
// merge if neither can spare an entry (spec.md section 4.4, "steal moves
// the entry adjacent to the underflowing node").
func (t *BTree) fixLeafUnderflow(frames *stack.Stack, leafF frame, lh page.NodeHeader, entries []page.LeafEntry, parentF frame) error {
	ph, pleftmost, pentries := t.codec.DecodeInternal(parentF.guard.Page().Data())
	pos := parentF.childIdx + 1
	children := childIDs(pleftmost, pentries)

	if pos > 0 {
		leftGuard, err := t.fetchWrite(children[pos-1])
		if err != nil {
			return err
		}
		lh2, lentries := t.codec.DecodeLeaf(leftGuard.Page().Data())
		if len(lentries) > t.minLeaf() {
			stolen := lentries[len(lentries)-1]
			lentries = lentries[:len(lentries)-1]
			entries = append([]page.LeafEntry{stolen}, entries...)

			t.codec.EncodeLeaf(leftGuard.Page().Data(), lh2.Parent, lh2.NextLeaf, lentries)
			leftGuard.MarkDirty()
			leftGuard.Release()

			t.codec.EncodeLeaf(leafF.guard.Page().Data(), lh.Parent, lh.NextLeaf, entries)
			leafF.guard.MarkDirty()
			leafF.guard.Release()

			pentries[pos-1].Key = stolen.Key
			t.codec.EncodeInternal(parentF.guard.Page().Data(), ph.Parent, pleftmost, pentries)
			parentF.guard.MarkDirty()
			parentF.guard.Release()
			release(frames)
			return nil
		}
		leftGuard.Release()
	}

	if pos < len(children)-1 {
		rightGuard, err := t.fetchWrite(children[pos+1])
		if err != nil {
			return err
		}
		rh, rentries := t.codec.DecodeLeaf(rightGuard.Page().Data())
		if len(rentries) > t.minLeaf() {
			stolen := rentries[0]
			rentries = rentries[1:]
			entries = append(entries, stolen)

			t.codec.EncodeLeaf(leafF.guard.Page().Data(), lh.Parent, lh.NextLeaf, entries)
			leafF.guard.MarkDirty()
			leafF.guard.Release()

			t.codec.EncodeLeaf(rightGuard.Page().Data(), rh.Parent, rh.NextLeaf, rentries)
			rightGuard.MarkDirty()
			rightGuard.Release()

			pentries[pos].Key = rentries[0].Key
			t.codec.EncodeInternal(parentF.guard.Page().Data(), ph.Parent, pleftmost, pentries)
			parentF.guard.MarkDirty()
			parentF.guard.Release()
			release(frames)
			return nil
		}
		rightGuard.Release()
	}

	// Neither sibling can spare an entry: merge (spec.md section 4.4,
	// "right sibling absorbed into left on merge; left's page id
	// survives").
	if pos > 0 {
		leftID := children[pos-1]
		leftGuard, err := t.fetchWrite(leftID)
		if err != nil {
			return err
		}
		lh2, lentries := t.codec.DecodeLeaf(leftGuard.Page().Data())
		merged := append(lentries, entries...)
		t.codec.EncodeLeaf(leftGuard.Page().Data(), lh2.Parent, lh.NextLeaf, merged)
		leftGuard.MarkDirty()
		leftGuard.Release()

		leafF.guard.Release()
		if err := t.bpm.DeletePage(leafF.pageID); err != nil {
			return err
		}

		pentries = slices.Delete(pentries, pos-1, pos)
		return t.propagateMerge(frames, parentF, ph, pleftmost, pentries)
	}

	rightID := children[pos+1]
	rightGuard, err := t.fetchWrite(rightID)
	if err != nil {
		return err
	}
	rh, rentries := t.codec.DecodeLeaf(rightGuard.Page().Data())
	merged := append(entries, rentries...)
	t.codec.EncodeLeaf(leafF.guard.Page().Data(), lh.Parent, rh.NextLeaf, merged)
	leafF.guard.MarkDirty()
	leafF.guard.Release()

	rightGuard.Release()
	if err := t.bpm.DeletePage(rightID); err != nil {
		return err
	}

	pentries = slices.Delete(pentries, pos, pos+1)
	return t.propagateMerge(frames, parentF, ph, pleftmost, pentries)
}

// propagateMerge is entered once an internal node's entry count has just
// shrunk by one (a child merge below it removed a separator). survivorF is
// that node, already holding the post-removal (h, leftmost, entries); its
// own parent is fetched fresh each iteration from frames, mirroring
// propagateSplit's upward walk but in the opposite direction: merging
// ancestors together, and collapsing the root, instead of splitting them
// apart (spec.md section 4.4, "parent underflow recurses the same
// steal-then-merge logic one level up; an internal root left with a single
// child is replaced by that child").
func (t *BTree) propagateMerge(frames *stack.Stack, survivorF frame, h page.NodeHeader, leftmost types.PageID, entries []page.InternalEntry) error {
	for {
		// The root has no parent to rebalance against; it only ever needs
		// its own parent (the header page) when it collapses down to a
		// single child. Checked via survivorF.isRoot rather than by
		// popping frames: descend only keeps an ancestor frame around
		// when survivorF was found "unsafe", so a root comfortably above
		// minInternal (which can never reach entries == 0 here) arrives
		// with frames already empty.
		if survivorF.isRoot {
			if len(entries) == 0 {
				headerF := frames.Pop().(frame)
				header := page.DecodeRootHeader(headerF.guard.Page().Data())
				header.RootPageID = leftmost
				page.EncodeRootHeader(headerF.guard.Page().Data(), header)
				headerF.guard.MarkDirty()
				headerF.guard.Release()

				childGuard, err := t.fetchWrite(leftmost)
				if err != nil {
					return err
				}
				page.SetParent(childGuard.Page().Data(), types.InvalidPageID)
				childGuard.MarkDirty()
				childGuard.Release()

				survivorF.guard.Release()
				return t.bpm.DeletePage(survivorF.pageID)
			}

			t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, entries)
			survivorF.guard.MarkDirty()
			survivorF.guard.Release()
			release(frames)
			return nil
		}

		if len(entries) >= t.minInternal() {
			t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, entries)
			survivorF.guard.MarkDirty()
			survivorF.guard.Release()
			release(frames)
			return nil
		}

		t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, entries)
		survivorF.guard.MarkDirty()

		parentF := frames.Pop().(frame)
		gh, gleftmost, gentries := t.codec.DecodeInternal(parentF.guard.Page().Data())
		pos := parentF.childIdx + 1
		siblings := childIDs(gleftmost, gentries)

		if pos > 0 {
			leftGuard, err := t.fetchWrite(siblings[pos-1])
			if err != nil {
				return err
			}
			lh2, lleftmost2, lentries2 := t.codec.DecodeInternal(leftGuard.Page().Data())
			if len(lentries2) > t.minInternal() {
				stolenEntry := lentries2[len(lentries2)-1]
				lentries2 = lentries2[:len(lentries2)-1]

				entries = slices.Insert(entries, 0, page.InternalEntry{Key: gentries[pos-1].Key, Child: leftmost})
				leftmost = stolenEntry.Child
				t.reparentOne(leftmost, survivorF.pageID)

				t.codec.EncodeInternal(leftGuard.Page().Data(), lh2.Parent, lleftmost2, lentries2)
				leftGuard.MarkDirty()
				leftGuard.Release()

				t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, entries)
				survivorF.guard.MarkDirty()
				survivorF.guard.Release()

				gentries[pos-1].Key = stolenEntry.Key
				t.codec.EncodeInternal(parentF.guard.Page().Data(), gh.Parent, gleftmost, gentries)
				parentF.guard.MarkDirty()
				parentF.guard.Release()
				release(frames)
				return nil
			}
			leftGuard.Release()
		}

		if pos < len(siblings)-1 {
			rightGuard, err := t.fetchWrite(siblings[pos+1])
			if err != nil {
				return err
			}
			rh2, rleftmost2, rentries2 := t.codec.DecodeInternal(rightGuard.Page().Data())
			if len(rentries2) > t.minInternal() {
				stolenChild := rleftmost2
				stolenKey := gentries[pos].Key

				entries = append(entries, page.InternalEntry{Key: stolenKey, Child: stolenChild})
				t.reparentOne(stolenChild, survivorF.pageID)

				rleftmost2 = rentries2[0].Child
				newRightSeparator := rentries2[0].Key
				rentries2 = rentries2[1:]

				t.codec.EncodeInternal(rightGuard.Page().Data(), rh2.Parent, rleftmost2, rentries2)
				rightGuard.MarkDirty()
				rightGuard.Release()

				t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, entries)
				survivorF.guard.MarkDirty()
				survivorF.guard.Release()

				gentries[pos].Key = newRightSeparator
				t.codec.EncodeInternal(parentF.guard.Page().Data(), gh.Parent, gleftmost, gentries)
				parentF.guard.MarkDirty()
				parentF.guard.Release()
				release(frames)
				return nil
			}
			rightGuard.Release()
		}

		// Merge with a sibling, pulling the separating key down from the
		// parent (classic B-tree internal merge).
		if pos > 0 {
			leftID := siblings[pos-1]
			leftGuard, err := t.fetchWrite(leftID)
			if err != nil {
				return err
			}
			lh2, lleftmost2, lentries2 := t.codec.DecodeInternal(leftGuard.Page().Data())

			merged := append(lentries2, page.InternalEntry{Key: gentries[pos-1].Key, Child: leftmost})
			merged = append(merged, entries...)
			t.reparentOne(leftmost, leftID)
			for _, e := range entries {
				t.reparentOne(e.Child, leftID)
			}

			t.codec.EncodeInternal(leftGuard.Page().Data(), lh2.Parent, lleftmost2, merged)
			leftGuard.MarkDirty()
			leftGuard.Release()

			survivorF.guard.Release()
			if err := t.bpm.DeletePage(survivorF.pageID); err != nil {
				return err
			}

			gentries = slices.Delete(gentries, pos-1, pos)
			survivorF = parentF
			h, leftmost, entries = gh, gleftmost, gentries
			continue
		}

		rightID := siblings[pos+1]
		rightGuard, err := t.fetchWrite(rightID)
		if err != nil {
			return err
		}
		_, rleftmost2, rentries2 := t.codec.DecodeInternal(rightGuard.Page().Data())

		merged := append(entries, page.InternalEntry{Key: gentries[pos].Key, Child: rleftmost2})
		merged = append(merged, rentries2...)
		t.reparentOne(rleftmost2, survivorF.pageID)
		for _, e := range rentries2 {
			t.reparentOne(e.Child, survivorF.pageID)
		}

		t.codec.EncodeInternal(survivorF.guard.Page().Data(), h.Parent, leftmost, merged)
		survivorF.guard.MarkDirty()
		survivorF.guard.Release()

		rightGuard.Release()
		if err := t.bpm.DeletePage(rightID); err != nil {
			return err
		}

		gentries = slices.Delete(gentries, pos, pos+1)
		survivorF = parentF
		h, leftmost, entries = gh, gleftmost, gentries
	}
}

// reparentOne rewrites a single child's parent pointer. Errors fetching
// the child are swallowed into a best-effort rewrite: the parent pointer
// is advisory bookkeeping (spec.md section 9) and never consulted by
// descend, which always finds children via the authoritative root header
// and separator keys.
func (t *BTree) reparentOne(childID, newParent types.PageID) {
	g, err := t.fetchWrite(childID)
	if err != nil {
		return
	}
	page.SetParent(g.Page().Data(), newParent)
	g.MarkDirty()
	g.Release()
}
