// Node header/entry wire format for B+tree pages, per spec.md section 6:
//
//	byte 0:      node kind (0 = internal, 1 = leaf)
//	bytes 1-4:   entry count (u32)
//	bytes 5-8:   parent page id (u32; sentinel if root)
//	bytes 9-12:  next leaf id (u32; leaves only; sentinel if none)
//	remainder:   entries, tightly packed, key-ascending
//
// spec.md section 6 describes the "no parent"/"no next leaf" sentinel as a
// literal 0. Here "no next leaf" is types.InvalidPageID (-1, i.e.
// 0xFFFFFFFF on the wire), leaving page id 0 free to mean the root-header
// page. A root made by a split or a collapse has types.InvalidPageID as
// its parent; the first root leaf, written by index.Create, has 0 (the
// root-header page id).
//
// Leaf entry:     u32 key || fixed-size tuple payload
// Internal entry: u32 separator key || u32 child page id, plus a leading
//                 u32 left-most child pointer before the first entry.
//
// The byte-packing style (explicit offsets, LittleEndian Put/Get helpers)
// follows lintang-b-s-rtreed's lib/disk/page.go. Unlike that file, we don't
// mutate the backing array in place entry-by-entry: NodeCodec decodes the
// whole entry region into a Go slice, the B+tree package mutates that slice
// with golang.org/x/exp/slices (Insert/Delete/BinarySearchFunc), and the
// result is re-encoded in one pass. That keeps split/merge/steal logic free
// of manual byte-shifting arithmetic.
package page

import (
	"encoding/binary"

	"github.com/relstore/core/types"
)

const (
	KindInternal byte = 0
	KindLeaf     byte = 1

	HeaderSize = 13

	offKind      = 0
	offCount     = 1
	offParent    = 5
	offNextLeaf  = 9
	entryKeySize = 4
	childIDSize  = 4
)

// NodeCodec knows how to (de)serialize nodes for a fixed page size and
// fixed tuple width, and therefore the leaf/internal capacities derived
// from them (spec.md section 9(d): fanout must be derived from page size,
// not hardcoded).
type NodeCodec struct {
	PageSize  int
	TupleSize int // fixed-width payload carried by each leaf entry
}

// LeafCapacity is L: the maximum number of (key, tuple) entries a leaf page
// can hold.
func (c NodeCodec) LeafCapacity() int {
	return (c.PageSize - HeaderSize) / (entryKeySize + c.TupleSize)
}

// InternalCapacity is M: the maximum number of separator keys an internal
// page can hold (it therefore has up to M+1 children: one leading
// left-most pointer plus M (key, child) pairs).
func (c NodeCodec) InternalCapacity() int {
	return (c.PageSize - HeaderSize - childIDSize) / (entryKeySize + childIDSize)
}

// LeafEntry is one decoded (key, tuple) pair.
type LeafEntry struct {
	Key   uint32
	Tuple []byte
}

// InternalEntry is one decoded (separator key, child) pair; the node's
// left-most child (the pointer before the first separator) is carried
// alongside the slice of InternalEntry, not inside it.
type InternalEntry struct {
	Key   uint32
	Child types.PageID
}

// NodeHeader is the decoded fixed header common to both node kinds.
type NodeHeader struct {
	Kind     byte
	Count    uint32
	Parent   types.PageID
	NextLeaf types.PageID // leaves only
}

func decodeHeader(data []byte) NodeHeader {
	return NodeHeader{
		Kind:     data[offKind],
		Count:    binary.LittleEndian.Uint32(data[offCount:]),
		Parent:   types.PageID(binary.LittleEndian.Uint32(data[offParent:])),
		NextLeaf: types.PageID(binary.LittleEndian.Uint32(data[offNextLeaf:])),
	}
}

func encodeHeader(data []byte, h NodeHeader) {
	data[offKind] = h.Kind
	binary.LittleEndian.PutUint32(data[offCount:], h.Count)
	binary.LittleEndian.PutUint32(data[offParent:], uint32(h.Parent))
	binary.LittleEndian.PutUint32(data[offNextLeaf:], uint32(h.NextLeaf))
}

// Kind reports whether data holds a leaf or internal node without
// decoding the rest of the header.
func Kind(data []byte) byte { return data[offKind] }

// SetParent rewrites just the parent-pointer field of an already-encoded
// node, without touching its entries. Used when a split changes which
// internal node owns a child (spec.md section 9, "parent back-pointers
// in tree nodes").
func SetParent(data []byte, parent types.PageID) {
	binary.LittleEndian.PutUint32(data[offParent:], uint32(parent))
}

// DecodeLeaf reads a leaf node's header and entries.
func (c NodeCodec) DecodeLeaf(data []byte) (NodeHeader, []LeafEntry) {
	h := decodeHeader(data)
	entries := make([]LeafEntry, h.Count)
	stride := entryKeySize + c.TupleSize
	off := HeaderSize
	for i := 0; i < int(h.Count); i++ {
		key := binary.LittleEndian.Uint32(data[off:])
		tuple := make([]byte, c.TupleSize)
		copy(tuple, data[off+entryKeySize:off+stride])
		entries[i] = LeafEntry{Key: key, Tuple: tuple}
		off += stride
	}
	return h, entries
}

// EncodeLeaf writes a leaf node's header and entries into data, which must
// be at least c.PageSize bytes. Panics if entries overflow LeafCapacity.
func (c NodeCodec) EncodeLeaf(data []byte, parent, nextLeaf types.PageID, entries []LeafEntry) {
	if len(entries) > c.LeafCapacity() {
		panic("NodeCodec.EncodeLeaf: entry count exceeds leaf capacity")
	}
	encodeHeader(data, NodeHeader{Kind: KindLeaf, Count: uint32(len(entries)), Parent: parent, NextLeaf: nextLeaf})
	stride := entryKeySize + c.TupleSize
	off := HeaderSize
	for _, e := range entries {
		binary.LittleEndian.PutUint32(data[off:], e.Key)
		copy(data[off+entryKeySize:off+stride], e.Tuple)
		off += stride
	}
}

// DecodeInternal reads an internal node's header, left-most child pointer,
// and separator/child entries.
func (c NodeCodec) DecodeInternal(data []byte) (NodeHeader, types.PageID, []InternalEntry) {
	h := decodeHeader(data)
	off := HeaderSize
	leftmost := types.PageID(binary.LittleEndian.Uint32(data[off:]))
	off += childIDSize
	entries := make([]InternalEntry, h.Count)
	for i := 0; i < int(h.Count); i++ {
		key := binary.LittleEndian.Uint32(data[off:])
		off += entryKeySize
		child := types.PageID(binary.LittleEndian.Uint32(data[off:]))
		off += childIDSize
		entries[i] = InternalEntry{Key: key, Child: child}
	}
	return h, leftmost, entries
}

// EncodeInternal writes an internal node's header, left-most child, and
// separator/child entries into data.
func (c NodeCodec) EncodeInternal(data []byte, parent types.PageID, leftmost types.PageID, entries []InternalEntry) {
	if len(entries) > c.InternalCapacity() {
		panic("NodeCodec.EncodeInternal: entry count exceeds internal capacity")
	}
	encodeHeader(data, NodeHeader{Kind: KindInternal, Count: uint32(len(entries)), Parent: parent})
	off := HeaderSize
	binary.LittleEndian.PutUint32(data[off:], uint32(leftmost))
	off += childIDSize
	for _, e := range entries {
		binary.LittleEndian.PutUint32(data[off:], e.Key)
		off += entryKeySize
		binary.LittleEndian.PutUint32(data[off:], uint32(e.Child))
		off += childIDSize
	}
}
