// Package transcode holds the shared domain types for the container
// demux/transcode/remux core: track descriptors, sample positions,
// encoded chunks and decoded frames. Sub-packages (isobmff, matroska,
// codecstage, pipeline, isomux, webmmux) all build on these types
// instead of defining their own.
package transcode

import "fmt"

// TrackKind distinguishes the three track categories spec.md knows
// about. Other exists so an unsupported track (e.g. a subtitle track)
// can still be described and then explicitly skipped.
type TrackKind uint8

// Track kinds.
const (
	TrackVideo TrackKind = iota
	TrackAudio
	TrackOther
)

func (k TrackKind) String() string {
	switch k {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "other"
	}
}

// VideoCodec enumerates the video codecs this package knows how to
// describe. Not every codec here is writable by every muxer; see
// isomux/webmmux for the matrix each one actually supports.
type VideoCodec uint8

// Video codecs.
const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecH264
	VideoCodecH265
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecH264:
		return "h264"
	case VideoCodecH265:
		return "h265"
	case VideoCodecVP8:
		return "vp8"
	case VideoCodecVP9:
		return "vp9"
	case VideoCodecAV1:
		return "av1"
	default:
		return "unknown"
	}
}

// AudioCodec enumerates the audio codecs this package knows how to
// describe.
type AudioCodec uint8

// Audio codecs.
const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecAAC
	AudioCodecOpus
	AudioCodecPCM
	AudioCodecMP3
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecAAC:
		return "aac"
	case AudioCodecOpus:
		return "opus"
	case AudioCodecPCM:
		return "pcm"
	case AudioCodecMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// Rotation is a display rotation in degrees, always one of the four
// values a tkhd matrix can canonically express.
type Rotation uint16

// Rotation values.
const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Ratio is a simple numerator/denominator pair, used for sample
// aspect ratio.
type Ratio struct {
	Num int
	Den int
}

// ColorInfo carries the container-level color description, when
// present. A zero value means "unspecified", not "sRGB".
type ColorInfo struct {
	Primaries uint16
	Transfer  uint16
	Matrix    uint16
	FullRange bool
}

// Track describes one elementary stream discovered by a demuxer.
// Video and audio fields are both present but only one set is
// meaningful, selected by Kind - mirroring the teacher's existing
// *gortsplib.TrackH264 / *gortsplib.TrackMPEG4Audio split, collapsed
// into a single struct because this package must also describe
// VP8/VP9/Opus tracks the teacher never had a type for.
type Track struct {
	TrackID   uint32
	Kind      TrackKind
	Timescale uint32

	// Video fields.
	VideoCodec            VideoCodec
	CodecString           string
	CodedWidth            int
	CodedHeight           int
	DisplayAspectWidth    int
	DisplayAspectHeight   int
	Rotation              Rotation
	SampleAspectRatio     Ratio
	Color                 ColorInfo
	VideoCodecPrivate     []byte

	// Audio fields.
	AudioCodec       AudioCodec
	NumberOfChannels int
	SampleRate       int
	AudioCodecPrivate []byte
}

// SamplePosition is one decode-ordered sample location, produced by
// the sample-position resolver (isobmff/sampletable, or matroska's
// Block stream) and consumed by the pipeline controller.
type SamplePosition struct {
	FileOffset uint64
	Size       uint32
	DTS        int64
	CTS        int64
	Duration   uint32
	IsKeyframe bool
}

// Validate checks the invariants spec.md §3 places on a sample
// position in isolation (cross-sample invariants - strictly
// increasing DTS - are checked by the caller across a run).
func (s SamplePosition) Validate() error {
	if s.Duration == 0 {
		return fmt.Errorf("sample position: duration must be > 0")
	}
	if s.Size == 0 {
		return fmt.Errorf("sample position: size must be > 0")
	}
	return nil
}

// Chunk is an encoded access unit ready for the muxer, with
// timestamps normalized to microseconds.
type Chunk struct {
	TrackID         uint32
	Data            []byte
	TimestampMicros int64
	DurationMicros  uint32
	IsKeyframe      bool
}

// Frame is a decoded picture or PCM buffer passed from decoder to
// encoder. Release must be called exactly once by whoever consumes
// the frame last (the optional frame hook, or the encoder if no hook
// is registered).
type Frame struct {
	TrackID             uint32
	PresentationMicros  int64
	Data                []byte
	release             func()
}

// NewFrame wraps decoded data with its release callback.
func NewFrame(trackID uint32, presentationMicros int64, data []byte, release func()) Frame {
	return Frame{
		TrackID:            trackID,
		PresentationMicros: presentationMicros,
		Data:                data,
		release:             release,
	}
}

// Release returns the frame's underlying buffer to the decoder. Safe
// to call on a zero-value Frame (no-op).
func (f Frame) Release() {
	if f.release != nil {
		f.release()
	}
}

// TimescaleToMicros converts a duration of ticks at the given
// timescale to microseconds, truncating toward zero.
func TimescaleToMicros(ticks int64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	return ticks * 1_000_000 / int64(timescale)
}

// MicrosToTimescale converts a duration in microseconds to ticks at
// the given timescale, truncating toward zero.
func MicrosToTimescale(micros int64, timescale uint32) int64 {
	return micros * int64(timescale) / 1_000_000
}
