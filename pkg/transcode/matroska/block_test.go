package matroska

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeSimpleBlockNoLacing(t *testing.T) {
	// track number 1 (1-byte vint 0x81), timestamp 10, flags keyframe, "hi".
	payload := []byte{0x81, 0x00, 0x0A, blockFlagKeyframe, 'h', 'i'}
	d, err := DecodeSimpleBlock(payload)
	require.NoError(t, err)
	require.Equal(t, uint64(1), d.TrackNumber)
	require.Equal(t, int16(10), d.Timestamp)
	require.True(t, d.Keyframe)
	require.Equal(t, [][]byte{[]byte("hi")}, d.Frames)
}

func TestDecodeSimpleBlockFixedLacing(t *testing.T) {
	// 3 frames of 2 bytes each, fixed lacing.
	payload := []byte{0x81, 0x00, 0x00, blockFlagKeyframe | LacingFixed, 0x02, 'a', 'a', 'b', 'b', 'c', 'c'}
	d, err := DecodeSimpleBlock(payload)
	require.NoError(t, err)
	require.Len(t, d.Frames, 3)
	require.Equal(t, []byte("aa"), d.Frames[0])
	require.Equal(t, []byte("bb"), d.Frames[1])
	require.Equal(t, []byte("cc"), d.Frames[2])
}

func TestDecodeSimpleBlockXiphLacing(t *testing.T) {
	// 2 frames: sizes 3 and (implied) remainder; Xiph lacing header.
	payload := []byte{0x81, 0x00, 0x00, LacingXiph, 0x01, 0x03, 'a', 'b', 'c', 'd', 'e'}
	d, err := DecodeSimpleBlock(payload)
	require.NoError(t, err)
	require.Len(t, d.Frames, 2)
	require.Equal(t, []byte("abc"), d.Frames[0])
	require.Equal(t, []byte("de"), d.Frames[1])
}

func TestBlockGroupKeyframeWithoutReferenceBlock(t *testing.T) {
	require.True(t, ResolveBlockGroupKeyframe(nil))
	require.True(t, ResolveBlockGroupKeyframe([]Element{{ID: IDBlockDuration}}))
}

func TestBlockGroupNotKeyframeWithReferenceBlock(t *testing.T) {
	require.False(t, ResolveBlockGroupKeyframe([]Element{{ID: IDReferenceBlock}}))
}
