// Package tuple holds the fixed-width row stored in B+tree leaves
// (spec.md section 3: "an unsigned 32-bit id ... plus opaque payload
// columns"). Grounded on the teacher's storage/tuple/tuple.go for the
// {size, data} shape and Copy/SerializeTo byte-slice conventions, trimmed
// of the variable-length/schema machinery (types.Value, schema.Schema,
// not-inlined varchar offsets): spec.md's tuple is a single fixed-width
// payload, not a multi-column schema-driven row.
package tuple

import (
	"encoding/binary"
)

// Tuple is the key plus its fixed-width opaque payload. Key is the value
// indexed by the B+tree (spec.md section 3, "the primary and only index
// key"); Payload is carried alongside it in the leaf entry, width fixed
// per index (storage/page.NodeCodec.TupleSize).
type Tuple struct {
	Key     uint32
	Payload []byte
}

// New builds a tuple from a key and a payload already sized to the
// index's fixed tuple width.
func New(key uint32, payload []byte) *Tuple {
	return &Tuple{Key: key, Payload: append([]byte(nil), payload...)}
}

// Size is the on-disk width of the tuple's payload (not including the
// leaf entry's leading key, which the node codec stores separately).
func (t *Tuple) Size() int { return len(t.Payload) }

// Copy returns a deep copy, safe to mutate independently of t.
func (t *Tuple) Copy() *Tuple {
	return New(t.Key, t.Payload)
}

// SerializeTo writes the tuple's payload into storage, which must be at
// least t.Size() bytes. The key is not included: leaf entries carry it
// separately (storage/page.NodeCodec.EncodeLeaf).
func (t *Tuple) SerializeTo(storage []byte) {
	copy(storage, t.Payload)
}

// EncodeUint32 is a small helper for building fixed-width payloads whose
// only column is itself a uint32 (used by tests and simple callers).
func EncodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// DecodeUint32 is the inverse of EncodeUint32.
func DecodeUint32(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data)
}

// RecordID addressing is carried by the caller (storage/page.LeafEntry +
// its owning page id), not embedded in Tuple itself: unlike the teacher's
// tuple.rid field, a Tuple here is a value the index stores, not a
// handle the index returns — package table derives the types.RecordID it
// locks from the key itself (table.recordID).
