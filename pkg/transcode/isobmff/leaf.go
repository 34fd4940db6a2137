package isobmff

// Leaf box bodies. One struct per recognized fixed-layout box,
// mirroring the one-type-per-box shape of
// nvr/pkg/video/mp4/box_types.go but holding decoded fields instead
// of a Marshal method.

// FullBoxHeader is the version/flags pair every FullBox leaf embeds.
type FullBoxHeader struct {
	Version uint8
	Flags   uint32
}

// Mvhd is the movie header: overall timescale and duration.
type Mvhd struct {
	FullBoxHeader
	Timescale   uint32
	Duration    uint64
	NextTrackID uint32
}

// Tkhd is the track header: track id, duration, display
// dimensions and the rotation/flip matrix.
type Tkhd struct {
	FullBoxHeader
	TrackID  uint32
	Duration uint64
	Width    uint32 // 16.16 fixed point
	Height   uint32 // 16.16 fixed point
	Matrix   [9]int32
}

// Mdhd is the media header: the track's own timescale and duration.
type Mdhd struct {
	FullBoxHeader
	Timescale uint32
	Duration  uint64
	Language  [3]byte
}

// Hdlr carries the handler type ("vide"/"soun") that selects track
// kind.
type Hdlr struct {
	FullBoxHeader
	HandlerType [4]byte
	Name        string
}

// Elst is the edit list; this parser only inspects it for a
// presentation-offset lead-in, never rewrites timestamps (non-goal).
type ElstEntry struct {
	SegmentDuration uint64
	MediaTime       int64
}

type Elst struct {
	FullBoxHeader
	Entries []ElstEntry
}

// AvcC is the AVCDecoderConfigurationRecord.
type AvcC struct {
	ConfigurationVersion uint8
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

// HvcC is the minimal HEVCDecoderConfigurationRecord this parser
// extracts: just enough to assemble a codec string.
type HvcC struct {
	GeneralProfileSpace uint8
	GeneralProfileIDC   uint8
	GeneralTierFlag     uint8
	GeneralLevelIDC     uint8
}

// Esds carries the raw AudioSpecificConfig extracted from the
// DecSpecificInfo descriptor, plus the objectTypeIndication used to
// build the "mp4a.40.X" codec string.
type Esds struct {
	ObjectTypeIndication uint8
	AudioObjectType      uint8
	DecoderConfig        []byte
}

// SampleEntry is one stsd child (avc1/hev1/mp4a/Opus), with its
// codec-specific configuration box already decoded into CodecConfig
// (an *AvcC, *HvcC, *Esds, or nil for Opus which needs none beyond
// dOps sample rate/channel count already on the audio track).
type SampleEntry struct {
	Type            Type
	DataReferenceIdx uint16
	Width            uint16 // video only
	Height           uint16 // video only
	ChannelCount     uint16 // audio only
	SampleSize       uint16 // audio only
	SampleRate       uint32 // audio only, 16.16 fixed point
	CodecConfig      interface{}
	Pasp             *Ratio
}

// Ratio is num/den, used for pasp (sample aspect ratio).
type Ratio struct {
	Num int
	Den int
}

// Stsd is the sample description box: one or more sample entries, of
// which this parser only ever consumes the first (multiple
// alternative sample descriptions are out of scope).
type Stsd struct {
	FullBoxHeader
	Entries []SampleEntry
}

// Stts is decode-time-to-sample: run-length (count, delta) pairs.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}
type Stts struct {
	FullBoxHeader
	Entries []SttsEntry
}

// Ctts is composition-time-to-sample: run-length (count, offset)
// pairs; offset is signed starting in version 1.
type CttsEntry struct {
	SampleCount  uint32
	SampleOffset int32
}
type Ctts struct {
	FullBoxHeader
	Entries []CttsEntry
}

// Stsc is sample-to-chunk: run-length (firstChunk, samplesPerChunk,
// sampleDescriptionIndex) triples.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}
type Stsc struct {
	FullBoxHeader
	Entries []StscEntry
}

// Stsz is sample sizes: either one uniform size, or a per-sample
// list.
type Stsz struct {
	FullBoxHeader
	SampleSize  uint32 // 0 means per-sample sizes follow
	SampleCount uint32
	EntrySize   []uint32
}

// Stco/Co64 are chunk offsets, 32- or 64-bit.
type Stco struct {
	FullBoxHeader
	ChunkOffset []uint64
}

// Stss is the sync-sample (keyframe) table: 1-based sample numbers.
type Stss struct {
	FullBoxHeader
	SampleNumber []uint32
}

// Trex carries per-track defaults consulted by fragmented trun rows
// that don't specify their own duration/size/flags.
type Trex struct {
	FullBoxHeader
	TrackID                       uint32
	DefaultSampleDescriptionIndex uint32
	DefaultSampleDuration         uint32
	DefaultSampleSize             uint32
	DefaultSampleFlags            uint32
}

// Tfhd is the track fragment header: which track this traf belongs
// to, and any per-fragment overrides of the trex defaults.
type Tfhd struct {
	FullBoxHeader
	TrackID                uint32
	BaseDataOffset         uint64
	HasBaseDataOffset      bool
	SampleDescriptionIndex uint32
	DefaultSampleDuration  uint32
	HasDefaultDuration     bool
	DefaultSampleSize      uint32
	HasDefaultSize         bool
	DefaultSampleFlags     uint32
	HasDefaultFlags        bool
}

// tfhd flag bits.
const (
	TfhdBaseDataOffsetPresent         = 0x000001
	TfhdSampleDescriptionIndexPresent = 0x000002
	TfhdDefaultSampleDurationPresent  = 0x000008
	TfhdDefaultSampleSizePresent      = 0x000010
	TfhdDefaultSampleFlagsPresent     = 0x000020
	TfhdDurationIsEmpty               = 0x010000
)

// Tfdt seeds the base decode time for every sample in the fragment.
type Tfdt struct {
	FullBoxHeader
	BaseMediaDecodeTime uint64
}

// TrunEntry is one per-sample row of a track run; any field may be
// absent (zero value) when its corresponding trun flag isn't set -
// the resolver falls back through firstSampleFlags/tfhd/trex.
type TrunEntry struct {
	HasDuration bool
	Duration    uint32
	HasSize     bool
	Size        uint32
	HasFlags    bool
	Flags       uint32
	HasCTSOffset bool
	CTSOffset   int32
}

// Trun is a track run: a batch of samples within one track fragment.
type Trun struct {
	FullBoxHeader
	SampleCount      uint32
	DataOffset       int32
	HasDataOffset    bool
	FirstSampleFlags uint32
	HasFirstFlags    bool
	Entries          []TrunEntry
}

// trun flag bits.
const (
	TrunDataOffsetPresent                  = 0x000001
	TrunFirstSampleFlagsPresent            = 0x000004
	TrunSampleDurationPresent              = 0x000100
	TrunSampleSizePresent                  = 0x000200
	TrunSampleFlagsPresent                 = 0x000400
	TrunSampleCompositionTimeOffsetPresent = 0x000800
)

// sampleFlagsIsKeyframe reports whether the sample-flags word marks a
// sync (key) sample. ISO/IEC 14496-12: bit 16 of sample_flags is
// sample_is_difference_sample; clear means keyframe.
func sampleFlagsIsKeyframe(flags uint32) bool {
	return (flags>>16)&1 == 0
}
