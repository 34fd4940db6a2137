package matroska

import (
	"math"

	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// decodeLeaf decodes the small set of scalar leaf elements this
// demuxer cares about; everything else comes back (nil, nil) and is
// preserved as opaque Payload, mirroring isobmff.decodeLeaf's
// fallback for unrecognized box types.
func decodeLeaf(id uint32, offset int64, payload []byte) (interface{}, error) {
	switch id {
	case IDEBMLVersion, IDEBMLReadVersion, IDEBMLMaxIDLength, IDEBMLMaxSizeLength,
		IDEBMLDocTypeVersion, IDEBMLDocTypeReadVersion,
		IDTimestampScale, IDTrackNumber, IDTrackUID, IDTrackType, IDFlagLacing,
		IDDefaultDuration, IDPixelWidth, IDPixelHeight, IDDisplayWidth, IDDisplayHeight,
		IDChannels, IDBitDepth, IDTimestamp, IDBlockDuration:
		return decodeUint(payload), nil
	case IDEBMLDocType, IDCodecID, IDLanguage:
		return decodeString(payload), nil
	case IDDuration, IDSamplingFrequency:
		return decodeFloat(payload), nil
	case IDCodecPrivate:
		return append([]byte(nil), payload...), nil
	default:
		return nil, nil
	}
}

// decodeUint reads an EBML unsigned integer: a big-endian value of
// 0-8 bytes, no marker bit (unlike a VINT, the width comes from the
// element's own declared size, not from the content).
func decodeUint(p []byte) uint64 {
	var v uint64
	for _, b := range p {
		v = v<<8 | uint64(b)
	}
	return v
}

func decodeString(p []byte) string {
	for i, c := range p {
		if c == 0 {
			return string(p[:i])
		}
	}
	return string(p)
}

// decodeFloat reads an EBML float: 4 bytes (IEEE 754 single) or 8
// bytes (double), big-endian.
func decodeFloat(p []byte) float64 {
	switch len(p) {
	case 4:
		b := iterbuf.New(p)
		v, _ := b.ReadUint(4)
		return float64(math.Float32frombits(uint32(v)))
	case 8:
		b := iterbuf.New(p)
		v, _ := b.ReadUint(8)
		return math.Float64frombits(v)
	default:
		return 0
	}
}
