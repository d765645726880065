package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndCopyAreIndependent(t *testing.T) {
	original := New(42, EncodeUint32(7))
	clone := original.Copy()

	clone.Payload[0] = 0xFF
	assert.Equal(t, uint32(7), DecodeUint32(original.Payload))
	assert.Equal(t, uint32(42), original.Key)
}

func TestSerializeTo(t *testing.T) {
	tp := New(1, EncodeUint32(12345))
	storage := make([]byte, tp.Size())
	tp.SerializeTo(storage)

	assert.Equal(t, uint32(12345), DecodeUint32(storage))
}

func TestEncodeDecodeUint32RoundTrip(t *testing.T) {
	assert.Equal(t, uint32(0), DecodeUint32(EncodeUint32(0)))
	assert.Equal(t, uint32(4294967295), DecodeUint32(EncodeUint32(4294967295)))
}
