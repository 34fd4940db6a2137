package isobmff

import (
	"github.com/videopipe/transcodecore/pkg/transcode/iterbuf"
)

// ReadBoxes walks a sequence of sibling boxes starting at the
// buffer's current offset until limit bytes have been consumed (or,
// for a top-level call, until the buffer runs out and the caller
// treats the resulting IncompleteError as "wait for more data" rather
// than malformed). limit is in absolute buffer-offset terms, not a
// remaining-byte count, since container recursion needs to stop
// children exactly at the parent's declared boundary.
func ReadBoxes(b *iterbuf.Buffer, limit int64) ([]Box, error) {
	var boxes []Box
	for b.Offset() < limit || limit < 0 {
		if limit < 0 && b.Remaining() == 0 {
			break
		}
		box, err := readBox(b)
		if err != nil {
			return boxes, err
		}
		boxes = append(boxes, box)
		if limit >= 0 && b.Offset() >= limit {
			break
		}
	}
	return boxes, nil
}

// readBox reads one box header (size, type, optional largesize) and
// either recurses into its children or decodes/copies its payload.
// On any error the buffer is left at the offset readBox started from,
// so a top-level IncompleteError lets the caller await more bytes and
// retry the exact same box.
func readBox(b *iterbuf.Buffer) (Box, error) {
	start := b.Offset()

	size32, err := b.ReadUint(4)
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Box{}, err
	}
	typeBytes, err := b.ReadBytes(4)
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Box{}, err
	}
	var t Type
	copy(t[:], typeBytes)

	headerLen := int64(8)
	size := int64(size32)
	if size32 == 1 {
		large, err := b.ReadUint(8)
		if err != nil {
			b.Rewind(int(b.Offset() - start))
			return Box{}, err
		}
		size = int64(large)
		headerLen = 16
	}

	var end int64
	toEOF := size32 == 0
	if !toEOF {
		if size < headerLen {
			b.Rewind(int(b.Offset() - start))
			return Box{}, malformed(t, start, "declared size %d smaller than header %d", size, headerLen)
		}
		end = start + size
	}

	if IsContainer(t) {
		limit := end
		if toEOF {
			limit = -1
		}
		children, err := ReadBoxes(b, limit)
		if err != nil {
			b.Rewind(int(b.Offset() - start))
			return Box{}, err
		}
		boxSize := size
		if toEOF {
			boxSize = b.Offset() - start
		}
		return Box{Type: t, Offset: start, Size: boxSize, Children: children}, nil
	}

	var bodyLen int64
	if toEOF {
		bodyLen = int64(b.Remaining())
	} else {
		bodyLen = end - b.Offset()
	}
	payload, err := b.ReadBytes(int(bodyLen))
	if err != nil {
		b.Rewind(int(b.Offset() - start))
		return Box{}, err
	}

	boxSize := size
	if toEOF {
		boxSize = b.Offset() - start
	}

	body, decodeErr := decodeLeaf(t, start, payload)
	if decodeErr != nil {
		b.Rewind(int(b.Offset() - start))
		return Box{}, decodeErr
	}
	if body == nil {
		return Box{Type: t, Offset: start, Size: boxSize, Payload: payload}, nil
	}
	return Box{Type: t, Offset: start, Size: boxSize, Body: body}, nil
}

// decodeLeaf dispatches to a per-box-type decoder. Returning (nil,
// nil) means "not a recognized leaf type" - the caller preserves the
// raw payload instead.
func decodeLeaf(t Type, offset int64, payload []byte) (interface{}, error) {
	buf := iterbuf.New(payload)
	switch t {
	case TypeMvhd:
		return decodeMvhd(buf, offset)
	case TypeTkhd:
		return decodeTkhd(buf, offset)
	case TypeMdhd:
		return decodeMdhd(buf, offset)
	case TypeHdlr:
		return decodeHdlr(buf, offset)
	case TypeElst:
		return decodeElst(buf, offset)
	case TypeStsd:
		return decodeStsd(buf, offset)
	case TypeStts:
		return decodeStts(buf, offset)
	case TypeCtts:
		return decodeCtts(buf, offset)
	case TypeStsc:
		return decodeStsc(buf, offset)
	case TypeStsz, TypeStz2:
		return decodeStsz(buf, offset)
	case TypeStco:
		return decodeStco(buf, offset, 4)
	case TypeCo64:
		return decodeStco(buf, offset, 8)
	case TypeStss:
		return decodeStss(buf, offset)
	case TypeTrex:
		return decodeTrex(buf, offset)
	case TypeTfhd:
		return decodeTfhd(buf, offset)
	case TypeTfdt:
		return decodeTfdt(buf, offset)
	case TypeTrun:
		return decodeTrun(buf, offset)
	case TypeFtyp, TypeStyp:
		return decodeFtyp(buf, offset)
	default:
		return nil, nil
	}
}

func readFullBoxHeader(b *iterbuf.Buffer) (FullBoxHeader, error) {
	version, err := b.ReadUint(1)
	if err != nil {
		return FullBoxHeader{}, err
	}
	flags, err := b.ReadUint(3)
	if err != nil {
		return FullBoxHeader{}, err
	}
	return FullBoxHeader{Version: uint8(version), Flags: uint32(flags)}, nil
}

// Ftyp is the file-type box: major brand plus compatible brand list.
type Ftyp struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands [][4]byte
}

func decodeFtyp(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	major, err := b.ReadBytes(4)
	if err != nil {
		return nil, malformed(TypeFtyp, offset, "truncated major brand")
	}
	minor, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeFtyp, offset, "truncated minor version")
	}
	var f Ftyp
	copy(f.MajorBrand[:], major)
	f.MinorVersion = uint32(minor)
	for b.Remaining() >= 4 {
		br, err := b.ReadBytes(4)
		if err != nil {
			break
		}
		var brand [4]byte
		copy(brand[:], br)
		f.CompatibleBrands = append(f.CompatibleBrands, brand)
	}
	return &f, nil
}

func decodeMvhd(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeMvhd, offset, "truncated header")
	}
	var timescale, duration uint64
	if h.Version == 1 {
		if _, err := b.ReadUint(8); err != nil { // creation_time
			return nil, malformed(TypeMvhd, offset, "truncated v1 times")
		}
		if _, err := b.ReadUint(8); err != nil { // modification_time
			return nil, malformed(TypeMvhd, offset, "truncated v1 times")
		}
		timescale, err = b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeMvhd, offset, "truncated timescale")
		}
		duration, err = b.ReadUint(8)
		if err != nil {
			return nil, malformed(TypeMvhd, offset, "truncated duration")
		}
	} else {
		if _, err := b.ReadUint(4); err != nil {
			return nil, malformed(TypeMvhd, offset, "truncated v0 times")
		}
		if _, err := b.ReadUint(4); err != nil {
			return nil, malformed(TypeMvhd, offset, "truncated v0 times")
		}
		timescale, err = b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeMvhd, offset, "truncated timescale")
		}
		d, err2 := b.ReadUint(4)
		if err2 != nil {
			return nil, malformed(TypeMvhd, offset, "truncated duration")
		}
		duration = d
	}
	if timescale == 0 {
		return nil, malformed(TypeMvhd, offset, "zero timescale")
	}
	// rate, volume, reserved, matrix, predefined: skip to next_track_ID.
	if err := b.Skip(4 + 2 + 2 + 8 + 36 + 24); err != nil {
		return nil, malformed(TypeMvhd, offset, "truncated tail")
	}
	next, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeMvhd, offset, "truncated next_track_ID")
	}
	return &Mvhd{FullBoxHeader: h, Timescale: uint32(timescale), Duration: duration, NextTrackID: uint32(next)}, nil
}

func decodeTkhd(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeTkhd, offset, "truncated header")
	}
	var trackID uint32
	var duration uint64
	if h.Version == 1 {
		b.Skip(16) // creation_time, modification_time
		id, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTkhd, offset, "truncated track_ID")
		}
		trackID = uint32(id)
		b.Skip(4) // reserved
		d, err := b.ReadUint(8)
		if err != nil {
			return nil, malformed(TypeTkhd, offset, "truncated duration")
		}
		duration = d
	} else {
		b.Skip(8)
		id, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTkhd, offset, "truncated track_ID")
		}
		trackID = uint32(id)
		b.Skip(4)
		d, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTkhd, offset, "truncated duration")
		}
		duration = d
	}
	b.Skip(8 + 2 + 2 + 2 + 2) // reserved, layer, alternate_group, volume, reserved
	var matrix [9]int32
	for i := 0; i < 9; i++ {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTkhd, offset, "truncated matrix")
		}
		matrix[i] = int32(v)
	}
	width, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTkhd, offset, "truncated width")
	}
	height, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTkhd, offset, "truncated height")
	}
	return &Tkhd{
		FullBoxHeader: h, TrackID: trackID, Duration: duration,
		Width: uint32(width), Height: uint32(height), Matrix: matrix,
	}, nil
}

func decodeMdhd(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeMdhd, offset, "truncated header")
	}
	var timescale, duration uint64
	if h.Version == 1 {
		b.Skip(16)
		timescale, err = b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeMdhd, offset, "truncated timescale")
		}
		duration, err = b.ReadUint(8)
		if err != nil {
			return nil, malformed(TypeMdhd, offset, "truncated duration")
		}
	} else {
		b.Skip(8)
		timescale, err = b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeMdhd, offset, "truncated timescale")
		}
		d, err2 := b.ReadUint(4)
		if err2 != nil {
			return nil, malformed(TypeMdhd, offset, "truncated duration")
		}
		duration = d
	}
	if timescale == 0 {
		return nil, malformed(TypeMdhd, offset, "zero timescale")
	}
	lang, err := b.ReadUint(2)
	if err != nil {
		return nil, malformed(TypeMdhd, offset, "truncated language")
	}
	var langBytes [3]byte
	langBytes[0] = byte(((lang >> 10) & 0x1f) + 0x60)
	langBytes[1] = byte(((lang >> 5) & 0x1f) + 0x60)
	langBytes[2] = byte((lang & 0x1f) + 0x60)
	return &Mdhd{FullBoxHeader: h, Timescale: uint32(timescale), Duration: duration, Language: langBytes}, nil
}

func decodeHdlr(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeHdlr, offset, "truncated header")
	}
	b.Skip(4) // pre_defined
	handlerType, err := b.ReadBytes(4)
	if err != nil {
		return nil, malformed(TypeHdlr, offset, "truncated handler_type")
	}
	b.Skip(12) // reserved
	name := ""
	if b.Remaining() > 0 {
		s, err := b.ReadFixedString(b.Remaining())
		if err == nil {
			name = s
		}
	}
	var ht [4]byte
	copy(ht[:], handlerType)
	return &Hdlr{FullBoxHeader: h, HandlerType: ht, Name: name}, nil
}

func decodeElst(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeElst, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeElst, offset, "truncated entry_count")
	}
	entries := make([]ElstEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var segDur uint64
		var mediaTime int64
		if h.Version == 1 {
			d, err := b.ReadUint(8)
			if err != nil {
				return nil, malformed(TypeElst, offset, "truncated v1 entry")
			}
			segDur = d
			mt, err := b.ReadUint(8)
			if err != nil {
				return nil, malformed(TypeElst, offset, "truncated v1 entry")
			}
			mediaTime = int64(mt)
		} else {
			d, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeElst, offset, "truncated v0 entry")
			}
			segDur = d
			mt, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeElst, offset, "truncated v0 entry")
			}
			mediaTime = int64(int32(mt))
		}
		b.Skip(4) // media_rate_integer + media_rate_fraction
		entries = append(entries, ElstEntry{SegmentDuration: segDur, MediaTime: mediaTime})
	}
	return &Elst{FullBoxHeader: h, Entries: entries}, nil
}

func decodeStts(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStts, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStts, offset, "truncated entry_count")
	}
	entries := make([]SttsEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		c, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStts, offset, "truncated entry")
		}
		d, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStts, offset, "truncated entry")
		}
		entries = append(entries, SttsEntry{SampleCount: uint32(c), SampleDelta: uint32(d)})
	}
	return &Stts{FullBoxHeader: h, Entries: entries}, nil
}

func decodeCtts(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeCtts, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeCtts, offset, "truncated entry_count")
	}
	entries := make([]CttsEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		c, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeCtts, offset, "truncated entry")
		}
		o, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeCtts, offset, "truncated entry")
		}
		entries = append(entries, CttsEntry{SampleCount: uint32(c), SampleOffset: int32(o)})
	}
	return &Ctts{FullBoxHeader: h, Entries: entries}, nil
}

func decodeStsc(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStsc, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStsc, offset, "truncated entry_count")
	}
	entries := make([]StscEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		first, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStsc, offset, "truncated entry")
		}
		spc, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStsc, offset, "truncated entry")
		}
		sdi, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStsc, offset, "truncated entry")
		}
		entries = append(entries, StscEntry{
			FirstChunk: uint32(first), SamplesPerChunk: uint32(spc), SampleDescriptionIndex: uint32(sdi),
		})
	}
	return &Stsc{FullBoxHeader: h, Entries: entries}, nil
}

func decodeStsz(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStsz, offset, "truncated header")
	}
	sampleSize, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStsz, offset, "truncated sample_size")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStsz, offset, "truncated sample_count")
	}
	s := &Stsz{FullBoxHeader: h, SampleSize: uint32(sampleSize), SampleCount: uint32(count)}
	if sampleSize == 0 {
		s.EntrySize = make([]uint32, 0, count)
		for i := uint64(0); i < count; i++ {
			v, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeStsz, offset, "truncated entry_size")
			}
			s.EntrySize = append(s.EntrySize, uint32(v))
		}
	}
	return s, nil
}

func decodeStco(b *iterbuf.Buffer, offset int64, width int) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStco, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStco, offset, "truncated entry_count")
	}
	entries := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := b.ReadUint(width)
		if err != nil {
			return nil, malformed(TypeStco, offset, "truncated chunk_offset")
		}
		entries = append(entries, v)
	}
	return &Stco{FullBoxHeader: h, ChunkOffset: entries}, nil
}

func decodeStss(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeStss, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeStss, offset, "truncated entry_count")
	}
	entries := make([]uint32, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeStss, offset, "truncated sample_number")
		}
		entries = append(entries, uint32(v))
	}
	return &Stss{FullBoxHeader: h, SampleNumber: entries}, nil
}

func decodeTrex(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated header")
	}
	trackID, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated track_ID")
	}
	sdi, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated sample_description_index")
	}
	dur, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated default_sample_duration")
	}
	size, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated default_sample_size")
	}
	flags, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrex, offset, "truncated default_sample_flags")
	}
	return &Trex{
		FullBoxHeader: h, TrackID: uint32(trackID), DefaultSampleDescriptionIndex: uint32(sdi),
		DefaultSampleDuration: uint32(dur), DefaultSampleSize: uint32(size), DefaultSampleFlags: uint32(flags),
	}, nil
}

func decodeTfhd(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeTfhd, offset, "truncated header")
	}
	trackID, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTfhd, offset, "truncated track_ID")
	}
	t := &Tfhd{FullBoxHeader: h, TrackID: uint32(trackID)}
	if h.Flags&TfhdBaseDataOffsetPresent != 0 {
		v, err := b.ReadUint(8)
		if err != nil {
			return nil, malformed(TypeTfhd, offset, "truncated base_data_offset")
		}
		t.BaseDataOffset, t.HasBaseDataOffset = v, true
	}
	if h.Flags&TfhdSampleDescriptionIndexPresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTfhd, offset, "truncated sample_description_index")
		}
		t.SampleDescriptionIndex = uint32(v)
	}
	if h.Flags&TfhdDefaultSampleDurationPresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTfhd, offset, "truncated default_sample_duration")
		}
		t.DefaultSampleDuration, t.HasDefaultDuration = uint32(v), true
	}
	if h.Flags&TfhdDefaultSampleSizePresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTfhd, offset, "truncated default_sample_size")
		}
		t.DefaultSampleSize, t.HasDefaultSize = uint32(v), true
	}
	if h.Flags&TfhdDefaultSampleFlagsPresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTfhd, offset, "truncated default_sample_flags")
		}
		t.DefaultSampleFlags, t.HasDefaultFlags = uint32(v), true
	}
	return t, nil
}

func decodeTfdt(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeTfdt, offset, "truncated header")
	}
	var base uint64
	if h.Version == 1 {
		v, err := b.ReadUint(8)
		if err != nil {
			return nil, malformed(TypeTfdt, offset, "truncated v1 baseMediaDecodeTime")
		}
		base = v
	} else {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTfdt, offset, "truncated v0 baseMediaDecodeTime")
		}
		base = v
	}
	return &Tfdt{FullBoxHeader: h, BaseMediaDecodeTime: base}, nil
}

func decodeTrun(b *iterbuf.Buffer, offset int64) (interface{}, error) {
	h, err := readFullBoxHeader(b)
	if err != nil {
		return nil, malformed(TypeTrun, offset, "truncated header")
	}
	count, err := b.ReadUint(4)
	if err != nil {
		return nil, malformed(TypeTrun, offset, "truncated sample_count")
	}
	t := &Trun{FullBoxHeader: h, SampleCount: uint32(count)}
	if h.Flags&TrunDataOffsetPresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTrun, offset, "truncated data_offset")
		}
		t.DataOffset, t.HasDataOffset = int32(v), true
	}
	if h.Flags&TrunFirstSampleFlagsPresent != 0 {
		v, err := b.ReadUint(4)
		if err != nil {
			return nil, malformed(TypeTrun, offset, "truncated first_sample_flags")
		}
		t.FirstSampleFlags, t.HasFirstFlags = uint32(v), true
	}
	t.Entries = make([]TrunEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var e TrunEntry
		if h.Flags&TrunSampleDurationPresent != 0 {
			v, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeTrun, offset, "truncated sample_duration")
			}
			e.Duration, e.HasDuration = uint32(v), true
		}
		if h.Flags&TrunSampleSizePresent != 0 {
			v, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeTrun, offset, "truncated sample_size")
			}
			e.Size, e.HasSize = uint32(v), true
		}
		if h.Flags&TrunSampleFlagsPresent != 0 {
			v, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeTrun, offset, "truncated sample_flags")
			}
			e.Flags, e.HasFlags = uint32(v), true
		}
		if h.Flags&TrunSampleCompositionTimeOffsetPresent != 0 {
			v, err := b.ReadUint(4)
			if err != nil {
				return nil, malformed(TypeTrun, offset, "truncated sample_composition_time_offset")
			}
			e.CTSOffset, e.HasCTSOffset = int32(v), true
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}
