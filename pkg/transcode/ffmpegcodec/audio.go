package ffmpegcodec

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/codecstage"
)

const opusSampleRate = 48000

// NewAudioDecoderFactory returns a pipeline.DecoderFactory that
// decodes Opus or AAC packets down to interleaved s16le PCM.
func NewAudioDecoderFactory(cfg Config) func(transcode.Track) (codecstage.Decoder, error) {
	return func(source transcode.Track) (codecstage.Decoder, error) {
		if source.SampleRate == 0 || source.NumberOfChannels == 0 {
			return nil, fmt.Errorf("%w: audio track %d has no rate/channel info", transcode.ErrCodecFailure, source.TrackID)
		}
		return &audioDecoder{cfg: cfg, track: source}, nil
	}
}

// NewAudioEncoderFactory returns a pipeline.EncoderFactory that
// encodes PCM frames to Opus via libopus, framed as Ogg pages so the
// encoder's real per-packet boundaries survive the round-trip. The
// OpusHead/OpusTags identification packets are synthesized up front
// (RFC 7845 defines OpusHead purely from channel count/sample rate/
// pre-skip/gain, none of which depend on the actual encode) so the
// output track's CodecPrivate is available before the first chunk is
// pushed, same as buildAudioRoute/AddTrack need.
func NewAudioEncoderFactory(cfg Config) func(transcode.Track) (codecstage.Encoder, transcode.Track, error) {
	return func(source transcode.Track) (codecstage.Encoder, transcode.Track, error) {
		channels := source.NumberOfChannels
		if channels != 1 && channels != 2 {
			return nil, transcode.Track{}, fmt.Errorf(
				"%w: opus encode only supports mono/stereo, track %d has %d channels",
				transcode.ErrUnsupportedCodec, source.TrackID, channels)
		}
		out := source
		out.AudioCodec = transcode.AudioCodecOpus
		out.SampleRate = opusSampleRate
		out.AudioCodecPrivate = opusHead(channels)
		return &audioEncoder{cfg: cfg, track: out, srcRate: source.SampleRate, srcChannels: channels}, out, nil
	}
}

type audioDecoder struct {
	cfg      Config
	track    transcode.Track
	packets  [][]byte
	durMicro []uint32
	closed   bool
}

func (d *audioDecoder) Decode(_ context.Context, chunk transcode.Chunk) ([]transcode.Frame, error) {
	buf := make([]byte, len(chunk.Data))
	copy(buf, chunk.Data)
	d.packets = append(d.packets, buf)
	dur := chunk.DurationMicros
	if dur == 0 {
		dur = 20000
	}
	d.durMicro = append(d.durMicro, dur)
	return nil, nil
}

func (d *audioDecoder) Flush(ctx context.Context) ([]transcode.Frame, error) {
	if len(d.packets) == 0 {
		return nil, nil
	}

	inPath, inFormat, err := writeAudioInput(d.track, d.packets, d.durMicro)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inPath)

	outFile, err := scratchFile(".pcm")
	if err != nil {
		os.Remove(inPath)
		return nil, err
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	args := []string{"-y", "-f", inFormat, "-i", inPath,
		"-f", "s16le", "-ar", fmt.Sprint(d.track.SampleRate), "-ac", fmt.Sprint(d.track.NumberOfChannels), outPath}
	if err := d.cfg.run(ctx, args, "audio-decode"); err != nil {
		return nil, err
	}

	raw, err := readScratch(outPath)
	if err != nil {
		return nil, err
	}
	// 20ms worth of samples per frame, the common Opus/AAC framing
	// this module already assumes elsewhere for duration backfill.
	bytesPerSample := 2 * d.track.NumberOfChannels
	frameSamples := d.track.SampleRate / 50
	frameSize := frameSamples * bytesPerSample
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: invalid pcm frame size for track %d", transcode.ErrCodecFailure, d.track.TrackID)
	}
	n := len(raw) / frameSize
	frames := make([]transcode.Frame, 0, n)
	var ts int64
	for i := 0; i < n; i++ {
		frames = append(frames, transcode.NewFrame(d.track.TrackID, ts, raw[i*frameSize:(i+1)*frameSize], nil))
		ts += 20000
	}
	return frames, nil
}

func (d *audioDecoder) Close() error {
	d.closed = true
	return nil
}

func writeAudioInput(track transcode.Track, packets [][]byte, durMicro []uint32) (path, format string, err error) {
	switch track.AudioCodec {
	case transcode.AudioCodecOpus:
		data := writeOggOpus(track.AudioCodecPrivate, packets, durMicro)
		p, err := writeScratch(".ogg", data)
		return p, "ogg", err
	case transcode.AudioCodecAAC:
		data, err := writeADTS(packets, track.SampleRate, track.NumberOfChannels)
		if err != nil {
			return "", "", err
		}
		p, err := writeScratch(".aac", data)
		return p, "adts", err
	default:
		return "", "", fmt.Errorf("%w: no decode input framing for %s", transcode.ErrUnsupportedCodec, track.AudioCodec)
	}
}

type audioEncoder struct {
	cfg         Config
	track       transcode.Track
	srcRate     int
	srcChannels int
	pcm         []byte
	closed      bool
}

func (e *audioEncoder) Encode(_ context.Context, frame transcode.Frame) ([]transcode.Chunk, error) {
	e.pcm = append(e.pcm, frame.Data...)
	frame.Release()
	return nil, nil
}

func (e *audioEncoder) Flush(ctx context.Context) ([]transcode.Chunk, error) {
	if len(e.pcm) == 0 {
		return nil, nil
	}

	inPath, err := writeScratch(".pcm", e.pcm)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inPath)

	outFile, err := scratchFile(".ogg")
	if err != nil {
		os.Remove(inPath)
		return nil, err
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	args := []string{"-y", "-f", "s16le", "-ar", fmt.Sprint(e.srcRate), "-ac", fmt.Sprint(e.srcChannels),
		"-i", inPath, "-c:a", "libopus", "-ar", fmt.Sprint(opusSampleRate), "-f", "ogg", outPath}
	if err := e.cfg.run(ctx, args, "audio-encode"); err != nil {
		return nil, err
	}

	data, err := readScratch(outPath)
	if err != nil {
		return nil, err
	}
	packets, granules, err := readOggPackets(data)
	if err != nil {
		return nil, err
	}
	// Skip the OpusHead/OpusTags identification packets ffmpeg always
	// writes first, per RFC 7845.
	if len(packets) > 2 {
		packets = packets[2:]
		granules = granules[2:]
	} else {
		packets, granules = nil, nil
	}

	out := make([]transcode.Chunk, 0, len(packets))
	var prevGranule int64
	for i, p := range packets {
		g := granules[i]
		durMicro := (g - prevGranule) * 1_000_000 / opusSampleRate
		prevGranule = g
		out = append(out, transcode.Chunk{
			TrackID:         e.track.TrackID,
			Data:            p,
			TimestampMicros: g * 1_000_000 / opusSampleRate,
			DurationMicros:  uint32(durMicro),
			IsKeyframe:      true,
		})
	}
	return out, nil
}

func (e *audioEncoder) Close() error {
	e.closed = true
	return nil
}

// --- RFC 7845 OpusHead synthesis. Fully determined by channel count;
// sample rate/gain/mapping are left at their safe defaults. ---

func opusHead(channels int) []byte {
	buf := make([]byte, 19)
	copy(buf[0:8], "OpusHead")
	buf[8] = 1 // version
	buf[9] = byte(channels)
	binary.LittleEndian.PutUint16(buf[10:12], 312) // pre-skip, libopus's common default
	binary.LittleEndian.PutUint32(buf[12:16], uint32(opusSampleRate))
	binary.LittleEndian.PutUint16(buf[16:18], 0) // output gain
	buf[18] = 0                                  // channel mapping family: mono/stereo, no mapping table
	return buf
}

func opusTags() []byte {
	buf := make([]byte, 0, 16)
	buf = append(buf, []byte("OpusTags")...)
	buf = append(buf, 0, 0, 0, 0) // vendor string length
	buf = append(buf, 0, 0, 0, 0) // comment list length
	return buf
}

// --- Ogg container (RFC 3533): 27-byte page header + one lacing
// value per 255 bytes of each packet + payload, CRC over the whole
// page with the CRC field itself zeroed during the calculation. ---

func writeOggOpus(idHeader []byte, packets [][]byte, durMicro []uint32) []byte {
	var buf []byte
	const serial = 1
	var seq uint32

	head := idHeader
	if len(head) == 0 {
		head = opusHead(2)
	}
	buf = append(buf, oggPage(serial, seq, 0, true, false, head)...)
	seq++
	buf = append(buf, oggPage(serial, seq, 0, false, false, opusTags())...)
	seq++

	var granule int64
	for i, p := range packets {
		d := uint32(20000)
		if i < len(durMicro) && durMicro[i] != 0 {
			d = durMicro[i]
		}
		granule += int64(d) * opusSampleRate / 1_000_000
		eos := i == len(packets)-1
		buf = append(buf, oggPage(serial, seq, granule, false, eos, p)...)
		seq++
	}
	return buf
}

func lacingValues(n int) []byte {
	var out []byte
	for n >= 255 {
		out = append(out, 255)
		n -= 255
	}
	out = append(out, byte(n))
	return out
}

func oggPage(serial uint32, seq uint32, granule int64, bos, eos bool, packet []byte) []byte {
	segTable := lacingValues(len(packet))

	header := make([]byte, 27)
	copy(header[0:4], "OggS")
	header[4] = 0
	var flags byte
	if bos {
		flags |= 0x02
	}
	if eos {
		flags |= 0x04
	}
	header[5] = flags
	binary.LittleEndian.PutUint64(header[6:14], uint64(granule))
	binary.LittleEndian.PutUint32(header[14:18], serial)
	binary.LittleEndian.PutUint32(header[18:22], seq)
	header[26] = byte(len(segTable))

	page := append(header, segTable...)
	page = append(page, packet...)
	crc := oggCRC(page)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}

func readOggPackets(data []byte) (packets [][]byte, granules []int64, err error) {
	var cur []byte
	pos := 0
	for pos < len(data) {
		if pos+27 > len(data) || string(data[pos:pos+4]) != "OggS" {
			return nil, nil, fmt.Errorf("%w: invalid ogg page at offset %d", transcode.ErrMalformedContainer, pos)
		}
		granule := int64(binary.LittleEndian.Uint64(data[pos+6 : pos+14]))
		segCount := int(data[pos+26])
		if pos+27+segCount > len(data) {
			return nil, nil, fmt.Errorf("%w: truncated ogg segment table", transcode.ErrMalformedContainer)
		}
		segTable := data[pos+27 : pos+27+segCount]
		bodyPos := pos + 27 + segCount
		for _, n := range segTable {
			if bodyPos+int(n) > len(data) {
				return nil, nil, fmt.Errorf("%w: truncated ogg packet", transcode.ErrMalformedContainer)
			}
			cur = append(cur, data[bodyPos:bodyPos+int(n)]...)
			bodyPos += int(n)
			if n < 255 {
				packets = append(packets, cur)
				granules = append(granules, granule)
				cur = nil
			}
		}
		pos = bodyPos
	}
	return packets, granules, nil
}

var oggCRCTable [256]uint32

func init() {
	const poly = 0x04c11db7
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		oggCRCTable[i] = crc
	}
}

func oggCRC(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ oggCRCTable[byte(crc>>24)^b]
	}
	return crc
}

// --- ADTS framing (ISO/IEC 13818-7 Annex A-ish, 7-byte fixed header,
// no CRC): used to wrap raw MP4-style AAC payloads into a bytestream
// ffmpeg's native ADTS demuxer accepts; readADTS splits such a stream
// back into its payloads. ---

var adtsSampleRates = []int{96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350}

func adtsSampleRateIndex(rate int) (int, error) {
	for i, r := range adtsSampleRates {
		if r == rate {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported AAC sample rate %d", transcode.ErrUnsupportedCodec, rate)
}

func writeADTS(packets [][]byte, sampleRate, channels int) ([]byte, error) {
	freqIdx, err := adtsSampleRateIndex(sampleRate)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, p := range packets {
		out = append(out, adtsHeader(len(p), freqIdx, channels)...)
		out = append(out, p...)
	}
	return out, nil
}

func adtsHeader(payloadLen, freqIdx, channels int) []byte {
	frameLen := payloadLen + 7
	h := make([]byte, 7)
	h[0] = 0xFF
	h[1] = 0xF1 // MPEG-4, no CRC
	const profile = 1 // AAC LC, zero-indexed (profile-1)
	h[2] = byte(profile<<6) | byte(freqIdx<<2) | byte((channels>>2)&0x1)
	h[3] = byte((channels&0x3)<<6) | byte((frameLen>>11)&0x3)
	h[4] = byte((frameLen >> 3) & 0xFF)
	h[5] = byte((frameLen&0x7)<<5) | 0x1F
	h[6] = 0xFC
	return h
}

// readADTS is the inverse of writeADTS - kept alongside it and
// exercised by audio_test.go's TestADTSRoundTrip, even though the encode
// direction only targets Opus/WebM today (see NewAudioEncoderFactory).
func readADTS(data []byte) ([][]byte, error) {
	var packets [][]byte
	pos := 0
	for pos+7 <= len(data) {
		if data[pos] != 0xFF || data[pos+1]&0xF0 != 0xF0 {
			return nil, fmt.Errorf("%w: invalid ADTS sync at offset %d", transcode.ErrMalformedContainer, pos)
		}
		frameLen := (int(data[pos+3]&0x3) << 11) | (int(data[pos+4]) << 3) | (int(data[pos+5]) >> 5)
		if frameLen < 7 || pos+frameLen > len(data) {
			return nil, fmt.Errorf("%w: invalid ADTS frame length", transcode.ErrMalformedContainer)
		}
		packets = append(packets, data[pos+7:pos+frameLen])
		pos += frameLen
	}
	return packets, nil
}
