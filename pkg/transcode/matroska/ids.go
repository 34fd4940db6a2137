// Package matroska implements the streaming EBML/Matroska (and WebM)
// demuxer: an element reader, a parser state machine that walks
// Segment/Cluster structure incrementally, and Block/SimpleBlock
// decoding with lacing support.
//
// The EBML ID table is grounded on luispater-matroska-go/ebml.go; the
// parser's incremental, buffer-fed shape instead follows
// nvr/pkg/video/mp4/bitio and this module's own iterbuf, since the
// teacher example reads from a blocking io.ReadSeeker rather than an
// append-only buffer.
package matroska

// EBML element IDs, marker bit included (these are Matroska IDs, read
// with iterbuf.Buffer.ReadMatroskaID, not plain VINTs).
const (
	IDEBMLHeader             = 0x1A45DFA3
	IDEBMLVersion            = 0x4286
	IDEBMLReadVersion        = 0x42F7
	IDEBMLMaxIDLength        = 0x42F2
	IDEBMLMaxSizeLength      = 0x42F3
	IDEBMLDocType            = 0x4282
	IDEBMLDocTypeVersion     = 0x4287
	IDEBMLDocTypeReadVersion = 0x4285

	IDSegment = 0x18538067

	IDSeekHead = 0x114D9B74
	IDSeek     = 0x4DBB
	IDSeekID   = 0x53AB
	IDSeekPos  = 0x53AC

	IDInfo           = 0x1549A966
	IDTimestampScale = 0x2AD7B1
	IDDuration       = 0x4489
	IDMuxingApp      = 0x4D80
	IDWritingApp     = 0x5741

	IDTracks          = 0x1654AE6B
	IDTrackEntry      = 0xAE
	IDTrackNumber     = 0xD7
	IDTrackUID        = 0x73C5
	IDTrackType       = 0x83
	IDFlagLacing      = 0x9C
	IDLanguage        = 0x22B59C
	IDCodecID         = 0x86
	IDCodecPrivate    = 0x63A2
	IDDefaultDuration = 0x23E383
	IDVideoSettings   = 0xE0
	IDAudioSettings   = 0xE1

	IDPixelWidth    = 0xB0
	IDPixelHeight   = 0xBA
	IDDisplayWidth  = 0x54B0
	IDDisplayHeight = 0x54BA

	IDSamplingFrequency = 0xB5
	IDChannels          = 0x9F
	IDBitDepth          = 0x6264

	IDCluster     = 0x1F43B675
	IDTimestamp   = 0xE7
	IDSimpleBlock = 0xA3
	IDBlockGroup  = 0xA0
	IDBlock       = 0xA1
	IDBlockDuration = 0x9B
	IDReferenceBlock = 0xFB

	IDCues = 0x1C53BB6B
)

// TrackType values, per the Matroska spec.
const (
	TrackTypeVideo    = 1
	TrackTypeAudio    = 2
	TrackTypeSubtitle = 17
)

// Lacing types, bits 2-1 (mask 0x06) of a block's flags byte.
const (
	LacingNone  = 0x00
	LacingXiph  = 0x02
	LacingFixed = 0x04
	LacingEBML  = 0x06
)

// Well-known CodecID strings.
const (
	CodecIDVP8    = "V_VP8"
	CodecIDVP9    = "V_VP9"
	CodecIDAV1    = "V_AV1"
	CodecIDH264   = "V_MPEG4/ISO/AVC"
	CodecIDH265   = "V_MPEGH/ISO/HEVC"
	CodecIDOpus   = "A_OPUS"
	CodecIDVorbis = "A_VORBIS"
	CodecIDAAC    = "A_AAC"
	CodecIDPCM    = "A_PCM/INT/LIT"
)

// isMasterElement reports whether id's element body is itself a
// sequence of child elements rather than a typed leaf value. Only
// the elements this parser recurses into are listed; everything else
// is read as a leaf or, if entirely unrecognized, skipped as opaque
// bytes.
func isMasterElement(id uint32) bool {
	switch id {
	case IDEBMLHeader, IDSegment, IDSeekHead, IDSeek, IDInfo,
		IDTracks, IDTrackEntry, IDVideoSettings, IDAudioSettings,
		IDCluster, IDBlockGroup, IDCues:
		return true
	default:
		return false
	}
}
