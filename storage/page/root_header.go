package page

import (
	"encoding/binary"

	"github.com/relstore/core/types"
)

// RootHeader is the content of page 0 (spec.md section 6): "the current
// root page_id, free-page head, and page size."
type RootHeader struct {
	RootPageID   types.PageID
	FreeListHead types.PageID
	PageSize     uint32
}

const (
	rootHdrOffRoot     = 0
	rootHdrOffFreeList = 4
	rootHdrOffPageSize = 8
)

func DecodeRootHeader(data []byte) RootHeader {
	return RootHeader{
		RootPageID:   types.PageID(binary.LittleEndian.Uint32(data[rootHdrOffRoot:])),
		FreeListHead: types.PageID(binary.LittleEndian.Uint32(data[rootHdrOffFreeList:])),
		PageSize:     binary.LittleEndian.Uint32(data[rootHdrOffPageSize:]),
	}
}

func EncodeRootHeader(data []byte, h RootHeader) {
	binary.LittleEndian.PutUint32(data[rootHdrOffRoot:], uint32(h.RootPageID))
	binary.LittleEndian.PutUint32(data[rootHdrOffFreeList:], uint32(h.FreeListHead))
	binary.LittleEndian.PutUint32(data[rootHdrOffPageSize:], h.PageSize)
}
