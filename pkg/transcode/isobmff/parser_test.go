package isobmff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

func u32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func box(t Type, payload []byte) []byte {
	size := 8 + len(payload)
	buf := append(u32(uint32(size)), t[:]...)
	return append(buf, payload...)
}

func TestReadBoxesFreeBoxPreservedOpaque(t *testing.T) {
	raw := box(TypeFree, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	boxes, err := ReadBoxes(iterbuf.New(raw), -1)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	require.Equal(t, TypeFree, boxes[0].Type)
	require.Nil(t, boxes[0].Body)
	require.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, boxes[0].Payload)
}

func TestReadBoxesContainerRecursion(t *testing.T) {
	mdhdPayload := append([]byte{0, 0, 0, 0}, u32(0)...) // version/flags, creation_time
	mdhdPayload = append(mdhdPayload, u32(0)...)          // modification_time
	mdhdPayload = append(mdhdPayload, u32(90000)...)      // timescale
	mdhdPayload = append(mdhdPayload, u32(0)...)          // duration
	mdhdPayload = append(mdhdPayload, 0x55, 0xc4)         // language ("und")
	inner := box(TypeMdhd, mdhdPayload)
	outer := box(TypeMdia, inner)

	boxes, err := ReadBoxes(iterbuf.New(outer), -1)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	require.Equal(t, TypeMdia, boxes[0].Type)
	require.Len(t, boxes[0].Children, 1)
	mdhd, ok := boxes[0].Children[0].Body.(*Mdhd)
	require.True(t, ok)
	require.Equal(t, uint32(90000), mdhd.Timescale)
}

func TestReadBoxesIncompleteAtTopLevelAwaitsMoreData(t *testing.T) {
	raw := box(TypeFtyp, append([]byte("isom"), u32(512)...)) // major brand, minor version
	truncated := raw[:len(raw)-2]
	buf := iterbuf.New(truncated)
	_, err := ReadBoxes(buf, -1)
	require.Error(t, err)
	require.Equal(t, int64(0), buf.Offset())

	buf.Append(raw[len(raw)-2:])
	boxes, err := ReadBoxes(buf, -1)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	ftyp, ok := boxes[0].Body.(*Ftyp)
	require.True(t, ok)
	require.Equal(t, [4]byte{'i', 's', 'o', 'm'}, ftyp.MajorBrand)
}

func TestDecodeTkhdRotation90Matrix(t *testing.T) {
	payload := make([]byte, 0, 92)
	payload = append(payload, 0, 0, 0, 0) // version/flags
	payload = append(payload, u32(0)...)  // creation_time
	payload = append(payload, u32(0)...)  // modification_time
	payload = append(payload, u32(1)...)  // track_ID
	payload = append(payload, u32(0)...)  // reserved
	payload = append(payload, u32(0)...)  // duration
	payload = append(payload, make([]byte, 8)...)  // reserved[2]
	payload = append(payload, make([]byte, 2)...)  // layer
	payload = append(payload, make([]byte, 2)...)  // alternate_group
	payload = append(payload, make([]byte, 2)...)  // volume
	payload = append(payload, make([]byte, 2)...)  // reserved
	payload = append(payload, matrixBytes(matrixRotate90)...)
	payload = append(payload, u32(1920<<16)...)
	payload = append(payload, u32(1080<<16)...)

	b := iterbuf.New(payload)
	body, err := decodeTkhd(b, 0)
	require.NoError(t, err)
	tkhd := body.(*Tkhd)
	require.Equal(t, matrixRotate90, tkhd.Matrix)
	require.Equal(t, transcode.Rotate90, rotationFromMatrix(tkhd.Matrix))
}

func matrixBytes(m [9]int32) []byte {
	var out []byte
	for _, v := range m {
		out = append(out, u32(uint32(v))...)
	}
	return out
}
