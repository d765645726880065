package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relstore/core/types"
)

func TestReplacerVictimLeastRecentlyUsed(t *testing.T) {
	r := NewReplacer(4)

	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(3)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	frame, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, types.FrameID(1), frame)

	frame, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, types.FrameID(2), frame)
}

func TestReplacerNonEvictableSkipped(t *testing.T) {
	r := NewReplacer(4)

	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(1, false)
	r.SetEvictable(2, true)

	frame, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, types.FrameID(2), frame)

	_, ok = r.Victim()
	assert.False(t, ok)
}

func TestReplacerRecordAccessRefreshesRecency(t *testing.T) {
	r := NewReplacer(4)

	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	r.RecordAccess(1) // touch 1 again, it is now most recently used

	frame, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, types.FrameID(2), frame)
}

func TestReplacerEmpty(t *testing.T) {
	r := NewReplacer(4)
	_, ok := r.Victim()
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}
