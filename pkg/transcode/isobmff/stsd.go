package isobmff

import (
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// decodeStsd reads the sample description box and its sample-entry
// children (avc1/hev1/mp4a/Opus). Every entry is decoded and kept;
// BuildTrack reads only the first - this parser has no multi-description
// switching logic, matching the single-representation assumption
// elsewhere in sample-position resolution.
func decodeStsd(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStsd, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStsd, offset, "truncated entry_count")
	}
	s := &Stsd{FullBoxHeader: h}
	for i := uint64(0); i < count; i++ {
		entry, err := decodeSampleEntry(b, offset)
		if err != nil {
			return nil, err
		}
		s.Entries = append(s.Entries, entry)
	}
	return s, nil
}

func decodeSampleEntry(b *iterbuf.Buffer, offset int64) (SampleEntry, error) {
	entryStart := b.Offset()
	size, err := b.ReadUint(4)
	if err != nil {
		return SampleEntry{}, malformed(TypeStsd, offset, "truncated sample entry size")
	}
	typeBytes, err := b.ReadBytes(4)
	if err != nil {
		return SampleEntry{}, malformed(TypeStsd, offset, "truncated sample entry type")
	}
	var t Type
	copy(t[:], typeBytes)
	end := entryStart + int64(size)

	b.Skip(6) // reserved
	dataRef, err := b.ReadUint(2)
	if err != nil {
		return SampleEntry{}, malformed(TypeStsd, offset, "truncated data_reference_index")
	}
	entry := SampleEntry{Type: t, DataReferenceIdx: uint16(dataRef)}

	isVideo := t == TypeAvc1 || t == TypeHev1
	isAudio := t == TypeMp4a || t == TypeOpus

	if isVideo {
		b.Skip(2 + 2 + 12) // pre_defined, reserved, pre_defined[3]
		w, err := b.ReadUint(2)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated width")
		}
		h, err := b.ReadUint(2)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated height")
		}
		entry.Width, entry.Height = uint16(w), uint16(h)
		b.Skip(4 + 4 + 4 + 2 + 32 + 2 + 2) // horiz/vert resolution, reserved, frame_count, compressorname, depth, pre_defined
	} else if isAudio {
		b.Skip(8) // reserved[2]
		ch, err := b.ReadUint(2)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated channelcount")
		}
		ss, err := b.ReadUint(2)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated samplesize")
		}
		b.Skip(4) // pre_defined, reserved
		sr, err := b.ReadUint(4)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated samplerate")
		}
		entry.ChannelCount, entry.SampleSize, entry.SampleRate = uint16(ch), uint16(ss), uint32(sr)
	}

	for b.Offset() < end {
		childStart := b.Offset()
		childSize, err := b.ReadUint(4)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated child box size")
		}
		childType, err := b.ReadBytes(4)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated child box type")
		}
		var ct Type
		copy(ct[:], childType)
		childEnd := childStart + int64(childSize)
		payloadLen := int(childEnd - b.Offset())
		payload, err := b.ReadBytes(payloadLen)
		if err != nil {
			return SampleEntry{}, malformed(TypeStsd, offset, "truncated child box payload")
		}
		sub := iterbuf.New(payload)
		switch ct {
		case TypeAvcC:
			cfg, err := decodeAvcC(sub, offset)
			if err != nil {
				return SampleEntry{}, err
			}
			entry.CodecConfig = cfg
		case TypeHvcC:
			cfg, err := decodeHvcC(sub, offset)
			if err != nil {
				return SampleEntry{}, err
			}
			entry.CodecConfig = cfg
		case TypeEsds:
			cfg, err := decodeEsds(sub, offset)
			if err != nil {
				return SampleEntry{}, err
			}
			entry.CodecConfig = cfg
		case TypePasp:
			num, err1 := sub.ReadUint(4)
			den, err2 := sub.ReadUint(4)
			if err1 == nil && err2 == nil && den != 0 {
				entry.Pasp = &Ratio{Num: int(num), Den: int(den)}
			}
		}
	}

	return entry, nil
}

func decodeAvcC(b *iterbuf.Buffer, offset int64) (*AvcC, error) {
	cfgVer, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated configurationVersion")
	}
	profile, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated profile")
	}
	compat, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated profile_compatibility")
	}
	level, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated level")
	}
	if _, err := b.ReadUint(1); err != nil { // lengthSizeMinusOne, reserved bits
		return nil, malformed(TypeAvcC, offset, "truncated lengthSizeMinusOne")
	}
	numSPS, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated numOfSequenceParameterSets")
	}
	cfg := &AvcC{
		ConfigurationVersion: uint8(cfgVer), Profile: uint8(profile),
		ProfileCompatibility: uint8(compat), Level: uint8(level),
	}
	for i := uint64(0); i < numSPS&0x1f; i++ {
		l, err := b.ReadUint(2)
		if err != nil {
			return nil, malformed(TypeAvcC, offset, "truncated sps length")
		}
		sps, err := b.ReadBytes(int(l))
		if err != nil {
			return nil, malformed(TypeAvcC, offset, "truncated sps")
		}
		cfg.SPS = append(cfg.SPS, sps)
	}
	numPPS, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeAvcC, offset, "truncated numOfPictureParameterSets")
	}
	for i := uint64(0); i < numPPS; i++ {
		l, err := b.ReadUint(2)
		if err != nil {
			return nil, malformed(TypeAvcC, offset, "truncated pps length")
		}
		pps, err := b.ReadBytes(int(l))
		if err != nil {
			return nil, malformed(TypeAvcC, offset, "truncated pps")
		}
		cfg.PPS = append(cfg.PPS, pps)
	}
	return cfg, nil
}

// decodeHvcC extracts only the general_profile_space/idc/tier/level
// fields needed to build a codec string; the VPS/SPS/PPS NAL array
// that follows is skipped since nothing downstream consumes it.
func decodeHvcC(b *iterbuf.Buffer, offset int64) (*HvcC, error) {
	if err := b.Skip(1); err != nil { // configurationVersion
		return nil, malformed(TypeHvcC, offset, "truncated configurationVersion")
	}
	b0, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeHvcC, offset, "truncated profile byte")
	}
	if err := b.Skip(4 + 6); err != nil { // compatibility + constraint flags
		return nil, malformed(TypeHvcC, offset, "truncated constraint flags")
	}
	level, err := b.ReadUint(1)
	if err != nil {
		return nil, malformed(TypeHvcC, offset, "truncated general_level_idc")
	}
	return &HvcC{
		GeneralProfileSpace: uint8(b0 >> 6),
		GeneralTierFlag:     uint8((b0 >> 5) & 1),
		GeneralProfileIDC:   uint8(b0 & 0x1f),
		GeneralLevelIDC:     uint8(level),
	}, nil
}

// ES_Descriptor tag values (ISO/IEC 14496-1).
const (
	tagESDescr           = 0x03
	tagDecoderConfigDescr = 0x04
	tagDecSpecificInfo   = 0x05
)

func decodeEsds(b *iterbuf.Buffer, offset int64) (*Esds, error) {
	if err := b.Skip(4); err != nil { // FullBox version/flags
		return nil, malformed(TypeEsds, offset, "truncated header")
	}
	e := &Esds{}
	for b.Remaining() > 0 {
		tag, err := b.ReadUint(1)
		if err != nil {
			break
		}
		length, err := readDescriptorLength(b)
		if err != nil {
			return nil, malformed(TypeEsds, offset, "truncated descriptor length")
		}
		payload, err := b.ReadBytes(int(length))
		if err != nil {
			return nil, malformed(TypeEsds, offset, "truncated descriptor payload")
		}
		switch tag {
		case tagESDescr:
			// ES_ID(2) + flags(1), then nested descriptors follow in
			// payload; re-walk it as its own descriptor stream.
			if len(payload) < 3 {
				return nil, malformed(TypeEsds, offset, "truncated ES_Descriptor")
			}
			sub := iterbuf.New(payload[3:])
			if err := parseEsdsDescriptors(sub, offset, e); err != nil {
				return nil, err
			}
		case tagDecoderConfigDescr:
			if err := parseDecoderConfigDescr(payload, offset, e); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func parseEsdsDescriptors(b *iterbuf.Buffer, offset int64, e *Esds) error {
	for b.Remaining() > 0 {
		tag, err := b.ReadUint(1)
		if err != nil {
			break
		}
		length, err := readDescriptorLength(b)
		if err != nil {
			return malformed(TypeEsds, offset, "truncated descriptor length")
		}
		payload, err := b.ReadBytes(int(length))
		if err != nil {
			return malformed(TypeEsds, offset, "truncated descriptor payload")
		}
		if tag == tagDecoderConfigDescr {
			if err := parseDecoderConfigDescr(payload, offset, e); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseDecoderConfigDescr(payload []byte, offset int64, e *Esds) error {
	if len(payload) < 13 {
		return malformed(TypeEsds, offset, "truncated DecoderConfigDescriptor")
	}
	e.ObjectTypeIndication = payload[0]
	sub := iterbuf.New(payload[13:])
	for sub.Remaining() > 0 {
		tag, err := sub.ReadUint(1)
		if err != nil {
			break
		}
		length, err := readDescriptorLength(sub)
		if err != nil {
			return malformed(TypeEsds, offset, "truncated descriptor length")
		}
		decSpecific, err := sub.ReadBytes(int(length))
		if err != nil {
			return malformed(TypeEsds, offset, "truncated descriptor payload")
		}
		if tag == tagDecSpecificInfo {
			e.DecoderConfig = decSpecific
			if len(decSpecific) > 0 {
				e.AudioObjectType = decSpecific[0] >> 3
			}
		}
	}
	return nil
}

// readDescriptorLength reads the MPEG-4 descriptor variable-length
// size field: up to 4 bytes, continuation marked by the high bit.
func readDescriptorLength(b *iterbuf.Buffer) (uint32, error) {
	var length uint32
	for i := 0; i < 4; i++ {
		v, err := b.ReadUint(1)
		if err != nil {
			return 0, err
		}
		length = length<<7 | uint32(v&0x7f)
		if v&0x80 == 0 {
			break
		}
	}
	return length, nil
}
