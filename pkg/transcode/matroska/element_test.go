package matroska

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// ebmlUint encodes n as a big-endian value in exactly width bytes.
func ebmlUint(n uint64, width int) []byte {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(n)
		n >>= 8
	}
	return buf
}

func elementBytes(idBytes []byte, sizeByte byte, payload []byte) []byte {
	out := append([]byte{}, idBytes...)
	out = append(out, sizeByte)
	out = append(out, payload...)
	return out
}

func TestReadElementDecodesTimestampScale(t *testing.T) {
	// TimestampScale (0x2AD7B1, a 3-byte ID) with value 1000000.
	idBytes := []byte{0x2A, 0xD7, 0xB1}
	payload := ebmlUint(1000000, 4)
	raw := elementBytes(idBytes, 0x84, payload) // size=4, 1-byte vint 0x80|4

	el, err := ReadElement(iterbuf.New(raw), -1)
	require.NoError(t, err)
	require.Equal(t, uint32(IDTimestampScale), el.ID)
	v, ok := el.Body.(uint64)
	require.True(t, ok)
	require.Equal(t, uint64(1000000), v)
}

func TestReadElementUnknownLeafPreservedOpaque(t *testing.T) {
	// SeekID (0x53AB, 2-byte ID) with arbitrary payload - not in
	// decodeLeaf's recognized set, so it should come back opaque.
	idBytes := []byte{0x53, 0xAB}
	payload := []byte{0xAA, 0xBB}
	raw := elementBytes(idBytes, 0x82, payload)

	el, err := ReadElement(iterbuf.New(raw), -1)
	require.NoError(t, err)
	require.Nil(t, el.Body)
	require.Equal(t, payload, el.Payload)
}

func TestReadElementIncompleteRewinds(t *testing.T) {
	idBytes := []byte{0x2A, 0xD7, 0xB1}
	payload := ebmlUint(1000000, 4)
	raw := elementBytes(idBytes, 0x84, payload)
	b := iterbuf.New(raw[:len(raw)-1])

	_, err := ReadElement(b, -1)
	require.Error(t, err)
	require.Equal(t, int64(0), b.Offset())
}

func TestReadElementMasterRecursesIntoChildren(t *testing.T) {
	innerIDBytes := []byte{0x2A, 0xD7, 0xB1}
	innerPayload := ebmlUint(1000000, 4)
	inner := elementBytes(innerIDBytes, 0x84, innerPayload)

	// Info (0x1549A966, 4-byte ID) containing the inner element.
	infoID := []byte{0x15, 0x49, 0xA9, 0x66}
	outer := elementBytes(infoID, byte(0x80|len(inner)), inner)

	el, err := ReadElement(iterbuf.New(outer), -1)
	require.NoError(t, err)
	require.Equal(t, uint32(IDInfo), el.ID)
	require.Len(t, el.Children, 1)
	require.Equal(t, uint32(IDTimestampScale), el.Children[0].ID)
}
