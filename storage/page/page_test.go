package page

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relstore/core/types"
)

func TestNewPage(t *testing.T) {
	p := New(types.PageID(0), make([]byte, 16))

	assert.Equal(t, types.PageID(0), p.ID())
	assert.Equal(t, int32(1), p.PinCount())
	p.IncPinCount()
	assert.Equal(t, int32(2), p.PinCount())
	p.DecPinCount()
	p.DecPinCount()
	assert.Equal(t, int32(0), p.PinCount())
	// pin count never goes negative
	p.DecPinCount()
	assert.Equal(t, int32(0), p.PinCount())

	assert.False(t, p.IsDirty())
	p.SetIsDirty(true)
	assert.True(t, p.IsDirty())

	copy(p.Data(), []byte{'H', 'E', 'L', 'L', 'O'})
	assert.Equal(t, []byte("HELLO"), p.Data()[:5])
}

func TestEmptyPage(t *testing.T) {
	p := NewEmpty(types.PageID(0), 16)

	assert.Equal(t, types.PageID(0), p.ID())
	assert.Equal(t, int32(1), p.PinCount())
	assert.False(t, p.IsDirty())
	assert.Equal(t, make([]byte, 16), p.Data())
}

func TestLatchRoundTrip(t *testing.T) {
	p := NewEmpty(types.PageID(1), 16)
	p.RLatch()
	p.RUnlatch()
	p.WLatch()
	p.WUnlatch()
}
