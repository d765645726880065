// Package types holds the small identifier types shared across every
// storage-engine package: PageID, FrameID, TxnID, and RecordID (spec.md
// section 3). Keeping them here (rather than in the packages that use
// them) avoids the import cycles a disk-manager <-> buffer-pool <->
// page <-> index dependency chain would otherwise create.
package types

import (
	"bytes"
	"encoding/binary"

	"go.uber.org/atomic"
)

// PageID identifies a page within the single heap file (spec.md section 3).
// Negative values are reserved for the invalid/sentinel id.
type PageID int32

// InvalidPageID is returned where no page id applies.
const InvalidPageID PageID = -1

// HeaderPageID is the root-header page (spec.md section 6): page 0 always
// holds the current root pointer, free-list head, and page size.
const HeaderPageID PageID = 0

func (id PageID) IsValid() bool { return id >= 0 }

func (id PageID) Serialize() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	return buf
}

func NewPageIDFromBytes(data []byte) PageID {
	return PageID(binary.LittleEndian.Uint32(data))
}

// FrameID identifies a resident buffer-pool frame (spec.md section 3/4.3).
type FrameID uint32

// TxnID identifies a transaction (spec.md section 3); monotonically
// increasing, issued by the transaction manager.
type TxnID int32

// InvalidTxnID is used for "no transaction" contexts.
const InvalidTxnID TxnID = -1

func (id TxnID) Serialize() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(id))
	return buf
}

func NewTxnIDFromBytes(data []byte) TxnID {
	return TxnID(binary.LittleEndian.Uint32(data))
}

// PageIDCounter and TxnIDCounter are process-wide monotonic atomics
// (spec.md section 9, "Global monotonic IDs"), backed by go.uber.org/atomic
// so callers get the typed Add/Load API instead of raw sync/atomic on an
// unsafe.Pointer cast.
type PageIDCounter struct{ n atomic.Int32 }

// NewPageIDCounter seeds the counter so the first Next returns start.
// FileDiskManager passes the number of whole page slots already in its
// file; MemDiskManager passes 0.
func NewPageIDCounter(start PageID) *PageIDCounter {
	c := &PageIDCounter{}
	c.n.Store(int32(start))
	return c
}

func (c *PageIDCounter) Next() PageID {
	return PageID(c.n.Add(1) - 1)
}

type TxnIDCounter struct{ n atomic.Int32 }

func NewTxnIDCounter() *TxnIDCounter { return &TxnIDCounter{} }

func (c *TxnIDCounter) Next() TxnID {
	return TxnID(c.n.Add(1))
}

// RecordID addresses a tuple within a leaf page: (page_id, slot_index),
// spec.md section 3 / GLOSSARY.
type RecordID struct {
	PageID PageID
	Slot   uint32
}

func NewRecordID(pageID PageID, slot uint32) RecordID {
	return RecordID{PageID: pageID, Slot: slot}
}

func (r RecordID) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, r.PageID)
	binary.Write(buf, binary.LittleEndian, r.Slot)
	return buf.Bytes()
}
