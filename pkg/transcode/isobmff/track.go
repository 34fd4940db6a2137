package isobmff

import (
	"fmt"

	"github.com/videopipe/transcodecore/pkg/transcode"
)

// handler types consulted to pick a track's kind.
var (
	handlerVideo = [4]byte{'v', 'i', 'd', 'e'}
	handlerSound = [4]byte{'s', 'o', 'u', 'n'}
)

// canonical tkhd matrices for the four axis-aligned rotations, in
// 16.16 fixed point, per ISO/IEC 14496-12 section 8.3.2.3.
var (
	matrixRotate0   = [9]int32{0x10000, 0, 0, 0, 0x10000, 0, 0, 0, 0x40000000}
	matrixRotate90  = [9]int32{0, 0x10000, 0, -0x10000, 0, 0, 0, 0, 0x40000000}
	matrixRotate180 = [9]int32{-0x10000, 0, 0, 0, -0x10000, 0, 0, 0, 0x40000000}
	matrixRotate270 = [9]int32{0, -0x10000, 0, 0x10000, 0, 0, 0, 0, 0x40000000}
)

// rotationFromMatrix maps a tkhd matrix to one of the four canonical
// rotations; a matrix that isn't one of the four recognized values
// falls back to Rotate0 rather than failing the parse, since an
// arbitrary affine transform is out of scope (non-goal: rotation/flip
// metadata is interpreted only for the four axis-aligned cases).
func rotationFromMatrix(m [9]int32) transcode.Rotation {
	switch m {
	case matrixRotate90:
		return transcode.Rotate90
	case matrixRotate180:
		return transcode.Rotate180
	case matrixRotate270:
		return transcode.Rotate270
	default:
		return transcode.Rotate0
	}
}

// findChild returns the first child of boxes with type t.
func findChild(boxes []Box, t Type) (Box, bool) {
	for _, b := range boxes {
		if b.Type == t {
			return b, true
		}
	}
	return Box{}, false
}

func findChildren(boxes []Box, t Type) []Box {
	var out []Box
	for _, b := range boxes {
		if b.Type == t {
			out = append(out, b)
		}
	}
	return out
}

// descend follows path one child type at a time and returns the box
// the last type names, used to reach into moov/trak/mdia/minf/stbl without
// hand-threading every intermediate container's children field.
func descend(boxes []Box, path ...Type) (Box, bool) {
	cur := boxes
	var last Box
	for i, t := range path {
		b, ok := findChild(cur, t)
		if !ok {
			return Box{}, false
		}
		last = b
		if i < len(path)-1 {
			cur = b.Children
		}
	}
	return last, true
}

// BuildTrack extracts a transcode.Track descriptor from one trak box's
// children; timing, dimensions and the stsd-derived codec
// configuration all come from that trak subtree. Grounded on how nvr/pkg/video/stream.go assembles a
// gortsplib track's static payload info from a single SDP pass -
// here the analogous one-pass assembly walks the trak subtree instead.
func BuildTrack(trakChildren []Box) (transcode.Track, error) {
	tkhdBox, ok := findChild(trakChildren, TypeTkhd)
	if !ok {
		return transcode.Track{}, malformed(TypeTrak, 0, "missing tkhd")
	}
	tkhd, ok := tkhdBox.Body.(*Tkhd)
	if !ok {
		return transcode.Track{}, malformed(TypeTkhd, tkhdBox.Offset, "tkhd not decoded")
	}

	mdiaBox, ok := findChild(trakChildren, TypeMdia)
	if !ok {
		return transcode.Track{}, malformed(TypeTrak, 0, "missing mdia")
	}
	mdhdBox, ok := findChild(mdiaBox.Children, TypeMdhd)
	if !ok {
		return transcode.Track{}, malformed(TypeMdia, mdiaBox.Offset, "missing mdhd")
	}
	mdhd, ok := mdhdBox.Body.(*Mdhd)
	if !ok {
		return transcode.Track{}, malformed(TypeMdhd, mdhdBox.Offset, "mdhd not decoded")
	}

	hdlrBox, ok := findChild(mdiaBox.Children, TypeHdlr)
	if !ok {
		return transcode.Track{}, malformed(TypeMdia, mdiaBox.Offset, "missing hdlr")
	}
	hdlr, ok := hdlrBox.Body.(*Hdlr)
	if !ok {
		return transcode.Track{}, malformed(TypeHdlr, hdlrBox.Offset, "hdlr not decoded")
	}

	minfBox, ok := findChild(mdiaBox.Children, TypeMinf)
	if !ok {
		return transcode.Track{}, malformed(TypeMdia, mdiaBox.Offset, "missing minf")
	}
	stblBox, ok := findChild(minfBox.Children, TypeStbl)
	if !ok {
		return transcode.Track{}, malformed(TypeMinf, minfBox.Offset, "missing stbl")
	}
	stsdBox, ok := findChild(stblBox.Children, TypeStsd)
	if !ok {
		return transcode.Track{}, malformed(TypeStbl, stblBox.Offset, "missing stsd")
	}
	stsd, ok := stsdBox.Body.(*Stsd)
	if !ok || len(stsd.Entries) == 0 {
		return transcode.Track{}, malformed(TypeStsd, stsdBox.Offset, "no sample entries")
	}
	entry := stsd.Entries[0]

	track := transcode.Track{
		TrackID:   tkhd.TrackID,
		Timescale: mdhd.Timescale,
	}

	switch hdlr.HandlerType {
	case handlerVideo:
		track.Kind = transcode.TrackVideo
		track.CodedWidth = int(entry.Width)
		track.CodedHeight = int(entry.Height)
		track.DisplayAspectWidth = int(tkhd.Width >> 16)
		track.DisplayAspectHeight = int(tkhd.Height >> 16)
		track.Rotation = rotationFromMatrix(tkhd.Matrix)
		if entry.Pasp != nil {
			track.SampleAspectRatio = transcode.Ratio{Num: entry.Pasp.Num, Den: entry.Pasp.Den}
		}
		if err := fillVideoCodec(&track, entry); err != nil {
			return transcode.Track{}, err
		}
	case handlerSound:
		track.Kind = transcode.TrackAudio
		track.NumberOfChannels = int(entry.ChannelCount)
		track.SampleRate = int(entry.SampleRate >> 16)
		if track.SampleRate == 0 {
			track.SampleRate = int(mdhd.Timescale)
		}
		if err := fillAudioCodec(&track, entry); err != nil {
			return transcode.Track{}, err
		}
	default:
		track.Kind = transcode.TrackOther
	}

	return track, nil
}

func fillVideoCodec(track *transcode.Track, entry SampleEntry) error {
	switch entry.Type {
	case TypeAvc1:
		cfg, ok := entry.CodecConfig.(*AvcC)
		if !ok {
			return malformed(TypeAvc1, 0, "avc1 missing avcC")
		}
		track.VideoCodec = transcode.VideoCodecH264
		track.VideoCodecPrivate = marshalAvcC(cfg)
		track.CodecString = fmt.Sprintf("avc1.%02X%02X%02X", cfg.Profile, cfg.ProfileCompatibility, cfg.Level)
		return nil
	case TypeHev1:
		cfg, ok := entry.CodecConfig.(*HvcC)
		if !ok {
			return malformed(TypeHev1, 0, "hev1 missing hvcC")
		}
		track.VideoCodec = transcode.VideoCodecH265
		space := ""
		switch cfg.GeneralProfileSpace {
		case 1:
			space = "A"
		case 2:
			space = "B"
		case 3:
			space = "C"
		}
		tier := "L"
		if cfg.GeneralTierFlag == 1 {
			tier = "H"
		}
		track.CodecString = fmt.Sprintf("hev1.%s%d.%s%d", space, cfg.GeneralProfileIDC, tier, cfg.GeneralLevelIDC)
		return nil
	default:
		return fmt.Errorf("%w: video sample entry type %s", transcode.ErrUnsupportedCodec, entry.Type)
	}
}

func fillAudioCodec(track *transcode.Track, entry SampleEntry) error {
	switch entry.Type {
	case TypeMp4a:
		cfg, ok := entry.CodecConfig.(*Esds)
		if !ok {
			return malformed(TypeMp4a, 0, "mp4a missing esds")
		}
		track.AudioCodec = transcode.AudioCodecAAC
		track.AudioCodecPrivate = cfg.DecoderConfig
		track.CodecString = fmt.Sprintf("mp4a.40.%d", cfg.AudioObjectType)
		return nil
	case TypeOpus:
		track.AudioCodec = transcode.AudioCodecOpus
		track.CodecString = "opus"
		return nil
	default:
		return fmt.Errorf("%w: audio sample entry type %s", transcode.ErrUnsupportedCodec, entry.Type)
	}
}

// marshalAvcC re-serializes the AVCDecoderConfigurationRecord for
// downstream muxer consumption, which wants the raw box payload
// rather than the parsed struct.
func marshalAvcC(cfg *AvcC) []byte {
	size := 6
	for _, s := range cfg.SPS {
		size += 2 + len(s)
	}
	size += 1
	for _, p := range cfg.PPS {
		size += 2 + len(p)
	}
	buf := make([]byte, size)
	pos := 0
	buf[pos] = cfg.ConfigurationVersion
	pos++
	buf[pos] = cfg.Profile
	pos++
	buf[pos] = cfg.ProfileCompatibility
	pos++
	buf[pos] = cfg.Level
	pos++
	buf[pos] = 0xfc | 3 // reserved bits + lengthSizeMinusOne=3 (4-byte NAL lengths)
	pos++
	buf[pos] = 0xe0 | byte(len(cfg.SPS))
	pos++
	for _, s := range cfg.SPS {
		buf[pos] = byte(len(s) >> 8)
		buf[pos+1] = byte(len(s))
		pos += 2
		copy(buf[pos:], s)
		pos += len(s)
	}
	buf[pos] = byte(len(cfg.PPS))
	pos++
	for _, p := range cfg.PPS {
		buf[pos] = byte(len(p) >> 8)
		buf[pos+1] = byte(len(p))
		pos += 2
		copy(buf[pos:], p)
		pos += len(p)
	}
	return buf
}
