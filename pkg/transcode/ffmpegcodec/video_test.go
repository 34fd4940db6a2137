package ffmpegcodec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videopipe/transcodecore/pkg/ffmpeg/ffmock"
	"github.com/videopipe/transcodecore/pkg/transcode"
)

func TestIVFRoundTrip(t *testing.T) {
	frames := []ivfFrame{
		{Timestamp: 0, Data: []byte{0x10, 0xAA, 0xBB}},
		{Timestamp: 33, Data: []byte{0x11, 0xCC}},
	}
	data := writeIVF([4]byte{'V', 'P', '8', '0'}, 640, 480, frames)

	got, fourcc, w, h, err := readIVF(data)
	require.NoError(t, err)
	require.Equal(t, [4]byte{'V', 'P', '8', '0'}, fourcc)
	require.EqualValues(t, 640, w)
	require.EqualValues(t, 480, h)
	require.Equal(t, frames, got)
}

func TestReadIVFRejectsBadMagic(t *testing.T) {
	_, _, _, _, err := readIVF([]byte("not an ivf stream at all"))
	require.Error(t, err)
}

func TestIsVP8Keyframe(t *testing.T) {
	require.True(t, isVP8Keyframe([]byte{0x10}))
	require.False(t, isVP8Keyframe([]byte{0x11}))
	require.False(t, isVP8Keyframe(nil))
}

func TestAVCCToAnnexB(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00}
	pps := []byte{0x68, 0xCE}
	chunk := lengthPrefixed(sps)
	chunk = append(chunk, lengthPrefixed(pps)...)

	out, err := avccToAnnexB([][]byte{chunk})
	require.NoError(t, err)

	expected := append([]byte{0, 0, 0, 1}, sps...)
	expected = append(expected, []byte{0, 0, 0, 1}...)
	expected = append(expected, pps...)
	require.Equal(t, expected, out)
}

func TestAVCCToAnnexBRejectsTruncatedLength(t *testing.T) {
	_, err := avccToAnnexB([][]byte{{0x00, 0x00, 0x00}})
	require.Error(t, err)
}

func TestAVCCToAnnexBRejectsOverrunLength(t *testing.T) {
	_, err := avccToAnnexB([][]byte{{0x00, 0x00, 0x00, 0x10, 0x01}})
	require.Error(t, err)
}

func lengthPrefixed(nal []byte) []byte {
	out := make([]byte, 4)
	out[3] = byte(len(nal))
	return append(out, nal...)
}

func TestVideoDecoderFactoryRejectsMissingDimensions(t *testing.T) {
	factory := NewVideoDecoderFactory(Config{})
	_, err := factory(transcode.Track{Kind: transcode.TrackVideo})
	require.Error(t, err)
}

func TestVideoEncoderFactorySetsOutputTrack(t *testing.T) {
	factory := NewVideoEncoderFactory(Config{})
	enc, out, err := factory(transcode.Track{
		TrackID: 1, Kind: transcode.TrackVideo,
		VideoCodec: transcode.VideoCodecH264, CodedWidth: 640, CodedHeight: 480,
		VideoCodecPrivate: []byte{1, 2, 3},
	})
	require.NoError(t, err)
	require.NotNil(t, enc)
	require.Equal(t, transcode.VideoCodecVP8, out.VideoCodec)
	require.Nil(t, out.VideoCodecPrivate)
	require.Equal(t, 640, out.CodedWidth)
}

// TestVideoEncoderFlushPropagatesProcessFailure exercises the real
// orchestration path (temp file write, ffmpeg command construction,
// process Start, cleanup) through a mocked Process, without an actual
// ffmpeg binary: ffmock.NewProcessErr makes Start fail, and Flush must
// surface that as a wrapped transcode.ErrCodecFailure rather than
// panic or hang.
func TestVideoEncoderFlushPropagatesProcessFailure(t *testing.T) {
	cfg := Config{}.WithProcessFunc(ffmock.NewProcessErr)
	enc := &videoEncoder{cfg: cfg, track: transcode.Track{TrackID: 1, CodedWidth: 2, CodedHeight: 2}}

	_, err := enc.Encode(context.Background(), transcode.NewFrame(1, 0, make([]byte, 6), nil))
	require.NoError(t, err)

	_, err = enc.Flush(context.Background())
	require.ErrorIs(t, err, transcode.ErrCodecFailure)
}

func TestVideoDecoderFlushEmptyIsNoop(t *testing.T) {
	dec := &videoDecoder{track: transcode.Track{CodedWidth: 2, CodedHeight: 2}}
	frames, err := dec.Flush(context.Background())
	require.NoError(t, err)
	require.Nil(t, frames)
}
