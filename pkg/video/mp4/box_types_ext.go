package mp4

// Boxes added to support remuxing arbitrary track counts and reading
// back sample tables produced by third-party encoders, beyond the
// fixed single-video/single-audio recording layout the rest of this
// package was written for.

/*************************** stss ****************************/

// Stss is ISOBMFF stss box type. Lists the sync (key) samples; a
// track with no stss box has every sample as a sync sample.
type Stss struct {
	FullBox
	EntryCount   uint32
	SampleNumber []uint32
}

// Type returns the BoxType.
func (*Stss) Type() BoxType {
	return [4]byte{'s', 't', 's', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Stss) Size() int {
	return 8 + len(b.SampleNumber)*4
}

// Marshal box to buffer.
func (b *Stss) Marshal(buf []byte, pos *int) {
	b.FullBox.Marshal(buf, pos)
	WriteUint32(buf, pos, b.EntryCount)
	for _, n := range b.SampleNumber {
		WriteUint32(buf, pos, n)
	}
}

/*************************** ctts ****************************/

// CttsEntry .
type CttsEntry struct {
	SampleCount    uint32
	SampleOffsetV0 uint32
	SampleOffsetV1 int32
}

// Marshal entry to buffer.
func (b *CttsEntry) Marshal(buf []byte, pos *int, version uint8) {
	WriteUint32(buf, pos, b.SampleCount)
	if version == 0 {
		WriteUint32(buf, pos, b.SampleOffsetV0)
	} else {
		WriteUint32(buf, pos, uint32(b.SampleOffsetV1))
	}
}

// Ctts is ISOBMFF ctts box type. Maps decode order to the
// composition-time offset (cts - dts).
type Ctts struct {
	FullBox
	EntryCount uint32
	Entries    []CttsEntry
}

// Type returns the BoxType.
func (*Ctts) Type() BoxType {
	return [4]byte{'c', 't', 't', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Ctts) Size() int {
	return 8 + len(b.Entries)*8
}

// Marshal box to buffer.
func (b *Ctts) Marshal(buf []byte, pos *int) {
	b.FullBox.Marshal(buf, pos)
	WriteUint32(buf, pos, b.EntryCount)
	for _, entry := range b.Entries {
		entry.Marshal(buf, pos, b.FullBox.Version)
	}
}

/*************************** elst ****************************/

// ElstEntry .
type ElstEntry struct {
	SegmentDurationV0 uint32
	MediaTimeV0       int32
	SegmentDurationV1 uint64
	MediaTimeV1       int64
	MediaRateInteger  int16
	MediaRateFraction int16
}

// Marshal entry to buffer.
func (b *ElstEntry) Marshal(buf []byte, pos *int, version uint8) {
	if version == 0 {
		WriteUint32(buf, pos, b.SegmentDurationV0)
		WriteUint32(buf, pos, uint32(b.MediaTimeV0))
	} else {
		WriteUint64(buf, pos, b.SegmentDurationV1)
		WriteUint64(buf, pos, uint64(b.MediaTimeV1))
	}
	WriteUint16(buf, pos, uint16(b.MediaRateInteger))
	WriteUint16(buf, pos, uint16(b.MediaRateFraction))
}

// Elst is ISOBMFF elst box type. Holds the presentation edit list;
// this package only ever writes the identity edit (one entry, media
// time 0) since timestamp editing is out of scope.
type Elst struct {
	FullBox
	EntryCount uint32
	Entries    []ElstEntry
}

// Type returns the BoxType.
func (*Elst) Type() BoxType {
	return [4]byte{'e', 'l', 's', 't'}
}

// Size returns the marshaled size in bytes.
func (b *Elst) Size() int {
	entrySize := 12
	if b.FullBox.Version != 0 {
		entrySize = 20
	}
	return 8 + len(b.Entries)*entrySize
}

// Marshal box to buffer.
func (b *Elst) Marshal(buf []byte, pos *int) {
	b.FullBox.Marshal(buf, pos)
	WriteUint32(buf, pos, b.EntryCount)
	for _, entry := range b.Entries {
		entry.Marshal(buf, pos, b.FullBox.Version)
	}
}

/*************************** edts ****************************/

// Edts is ISOBMFF edts box type.
type Edts struct{}

// Type returns the BoxType.
func (*Edts) Type() BoxType {
	return [4]byte{'e', 'd', 't', 's'}
}

// Size returns the marshaled size in bytes.
func (*Edts) Size() int {
	return 0
}

// Marshal is never called.
func (b *Edts) Marshal(buf []byte, pos *int) {}

/*************************** nmhd ****************************/

// Nmhd is ISOBMFF nmhd box type, used for tracks that are neither
// audio nor video (kept for completeness; never emitted today).
type Nmhd struct {
	FullBox
}

// Type returns the BoxType.
func (*Nmhd) Type() BoxType {
	return [4]byte{'n', 'm', 'h', 'd'}
}

// Size returns the marshaled size in bytes.
func (b *Nmhd) Size() int {
	return 4
}

// Marshal box to buffer.
func (b *Nmhd) Marshal(buf []byte, pos *int) {
	b.FullBox.Marshal(buf, pos)
}

/*************************** free ****************************/

// Free is ISOBMFF free/skip box type. Used as a placeholder child
// where a track's box tree has no content (e.g. no audio track).
type Free struct{}

// Type returns the BoxType.
func (*Free) Type() BoxType {
	return [4]byte{'f', 'r', 'e', 'e'}
}

// Size returns the marshaled size in bytes.
func (*Free) Size() int {
	return 0
}

// Marshal is never called.
func (b *Free) Marshal(buf []byte, pos *int) {}

/*************************** esds ****************************/

// Esds is ISOBMFF esds box type. Wraps an MPEG-4 ES descriptor
// carrying the AAC AudioSpecificConfig as DecoderSpecificInfo.
type Esds struct {
	FullBox
	DecoderConfig []byte // raw AudioSpecificConfig bytes.
}

// Type returns the BoxType.
func (*Esds) Type() BoxType {
	return [4]byte{'e', 's', 'd', 's'}
}

// Size returns the marshaled size in bytes.
func (b *Esds) Size() int {
	// ES_Descr + DecoderConfigDescr + DecSpecificInfo + SLConfigDescr,
	// each descriptor header is 2 bytes (tag + 1-byte length for the
	// short payloads this package ever writes).
	decSpecificInfo := 2 + len(b.DecoderConfig)
	decoderConfigDescr := 2 + 13 + decSpecificInfo
	slConfigDescr := 2 + 1
	esDescr := 2 + 3 + decoderConfigDescr + slConfigDescr
	return b.FullBox.Size() + esDescr
}

// Marshal box to buffer.
func (b *Esds) Marshal(buf []byte, pos *int) {
	b.FullBox.Marshal(buf, pos)

	decSpecificInfo := 2 + len(b.DecoderConfig)
	decoderConfigDescr := 2 + 13 + decSpecificInfo
	slConfigDescr := 2 + 1
	esDescrPayload := 3 + decoderConfigDescr + slConfigDescr

	WriteByte(buf, pos, ESDescrTag)
	WriteByte(buf, pos, byte(esDescrPayload))
	WriteUint16(buf, pos, 0) // ES_ID
	WriteByte(buf, pos, 0)   // flags

	WriteByte(buf, pos, DecoderConfigDescrTag)
	WriteByte(buf, pos, byte(13+decSpecificInfo))
	WriteByte(buf, pos, 0x40) // objectTypeIndication: Audio ISO/IEC 14496-3
	WriteByte(buf, pos, 0x15) // streamType: audio, upStream=0, reserved=1
	Write(buf, pos, []byte{0, 0, 0}) // bufferSizeDB
	WriteUint32(buf, pos, 0)         // maxBitrate
	WriteUint32(buf, pos, 0)         // avgBitrate

	WriteByte(buf, pos, DecSpecificInfoTag)
	WriteByte(buf, pos, byte(len(b.DecoderConfig)))
	Write(buf, pos, b.DecoderConfig)

	WriteByte(buf, pos, SLConfigDescrTag)
	WriteByte(buf, pos, 1)
	WriteByte(buf, pos, 0x02) // predefined: MP4
}
