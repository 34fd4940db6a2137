package ffmpegcodec

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/codecstage"
)

// NewVideoDecoderFactory returns a pipeline.DecoderFactory (an
// untyped func(transcode.Track) (codecstage.Decoder, error) so this
// package doesn't need to import pipeline) that decodes an arbitrary
// source video codec down to planar yuv420p frames.
func NewVideoDecoderFactory(cfg Config) func(transcode.Track) (codecstage.Decoder, error) {
	return func(source transcode.Track) (codecstage.Decoder, error) {
		if source.CodedWidth == 0 || source.CodedHeight == 0 {
			return nil, fmt.Errorf("%w: video track %d has no coded dimensions", transcode.ErrCodecFailure, source.TrackID)
		}
		return &videoDecoder{cfg: cfg, track: source}, nil
	}
}

// NewVideoEncoderFactory returns a pipeline.EncoderFactory that
// encodes yuv420p frames to VP8 via libvpx, framed as IVF so the
// genuine per-frame boundaries and timestamps ffmpeg produces survive
// the subprocess round-trip. VP8-in-WebM carries no CodecPrivate
// (webmmux/track.go only emits the element when non-empty), so unlike
// an AVC/AAC encoder this one needs no encode-before-AddTrack probe.
func NewVideoEncoderFactory(cfg Config) func(transcode.Track) (codecstage.Encoder, transcode.Track, error) {
	return func(source transcode.Track) (codecstage.Encoder, transcode.Track, error) {
		out := source
		out.VideoCodec = transcode.VideoCodecVP8
		out.VideoCodecPrivate = nil
		out.CodecString = "vp8"
		return &videoEncoder{cfg: cfg, track: out}, out, nil
	}
}

type videoDecoder struct {
	cfg        Config
	track      transcode.Track
	chunks     [][]byte
	timestamps []int64
	closed     bool
}

func (d *videoDecoder) Decode(_ context.Context, chunk transcode.Chunk) ([]transcode.Frame, error) {
	buf := make([]byte, len(chunk.Data))
	copy(buf, chunk.Data)
	d.chunks = append(d.chunks, buf)
	d.timestamps = append(d.timestamps, chunk.TimestampMicros)
	return nil, nil
}

func (d *videoDecoder) Flush(ctx context.Context) ([]transcode.Frame, error) {
	if len(d.chunks) == 0 {
		return nil, nil
	}

	inPath, inFormat, err := writeVideoInput(d.track.VideoCodec, d.chunks, d.track.CodedWidth, d.track.CodedHeight)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inPath)

	outFile, err := scratchFile(".yuv")
	if err != nil {
		os.Remove(inPath)
		return nil, err
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	args := []string{"-y", "-f", inFormat, "-i", inPath,
		"-f", "rawvideo", "-pix_fmt", "yuv420p", outPath}
	if err := d.cfg.run(ctx, args, "video-decode"); err != nil {
		return nil, err
	}

	raw, err := readScratch(outPath)
	if err != nil {
		return nil, err
	}
	frameSize := d.track.CodedWidth * d.track.CodedHeight * 3 / 2
	if frameSize <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size for track %d", transcode.ErrCodecFailure, d.track.TrackID)
	}
	n := len(raw) / frameSize
	frames := make([]transcode.Frame, 0, n)
	for i := 0; i < n; i++ {
		ts := d.timestamps[len(d.timestamps)-1]
		if i < len(d.timestamps) {
			ts = d.timestamps[i]
		}
		frames = append(frames, transcode.NewFrame(d.track.TrackID, ts, raw[i*frameSize:(i+1)*frameSize], nil))
	}
	return frames, nil
}

func (d *videoDecoder) Close() error {
	d.closed = true
	return nil
}

// writeVideoInput materializes the buffered access units as a file
// ffmpeg can demux directly: IVF for the codecs IVF's fourcc registry
// actually covers (vp8/vp9/av1 - each chunk is already one complete
// frame, so it maps straight onto one IVF frame record), Annex-B for
// h264/h265 (MP4-style samples are length-prefixed per NAL per avcC's
// convention; ffmpeg's raw h264/hevc demuxers want start codes).
func writeVideoInput(codec transcode.VideoCodec, chunks [][]byte, width, height int) (path string, format string, err error) {
	switch codec {
	case transcode.VideoCodecVP8, transcode.VideoCodecVP9, transcode.VideoCodecAV1:
		frames := make([]ivfFrame, len(chunks))
		for i, c := range chunks {
			frames[i] = ivfFrame{Timestamp: int64(i), Data: c}
		}
		data := writeIVF(fourccFor(codec), uint16(width), uint16(height), frames)
		p, err := writeScratch(".ivf", data)
		return p, "ivf", err
	case transcode.VideoCodecH264:
		data, err := avccToAnnexB(chunks)
		if err != nil {
			return "", "", err
		}
		p, err := writeScratch(".h264", data)
		return p, "h264", err
	case transcode.VideoCodecH265:
		data, err := avccToAnnexB(chunks)
		if err != nil {
			return "", "", err
		}
		p, err := writeScratch(".hevc", data)
		return p, "hevc", err
	default:
		return "", "", fmt.Errorf("%w: no decode input framing for %s", transcode.ErrUnsupportedCodec, codec)
	}
}

type videoEncoder struct {
	cfg    Config
	track  transcode.Track
	frames [][]byte
	closed bool
}

func (e *videoEncoder) Encode(_ context.Context, frame transcode.Frame) ([]transcode.Chunk, error) {
	buf := make([]byte, len(frame.Data))
	copy(buf, frame.Data)
	e.frames = append(e.frames, buf)
	frame.Release()
	return nil, nil
}

func (e *videoEncoder) Flush(ctx context.Context) ([]transcode.Chunk, error) {
	if len(e.frames) == 0 {
		return nil, nil
	}

	var raw []byte
	for _, f := range e.frames {
		raw = append(raw, f...)
	}
	inPath, err := writeScratch(".yuv", raw)
	if err != nil {
		return nil, err
	}
	defer os.Remove(inPath)

	outFile, err := scratchFile(".ivf")
	if err != nil {
		os.Remove(inPath)
		return nil, err
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	size := fmt.Sprintf("%dx%d", e.track.CodedWidth, e.track.CodedHeight)
	args := []string{"-y", "-f", "rawvideo", "-pix_fmt", "yuv420p", "-s", size, "-r", "30",
		"-i", inPath, "-c:v", "libvpx", "-f", "ivf", outPath}
	if err := e.cfg.run(ctx, args, "video-encode"); err != nil {
		return nil, err
	}

	data, err := readScratch(outPath)
	if err != nil {
		return nil, err
	}
	frames, _, _, _, err := readIVF(data)
	if err != nil {
		return nil, err
	}
	out := make([]transcode.Chunk, 0, len(frames))
	for _, f := range frames {
		out = append(out, transcode.Chunk{
			TrackID:         e.track.TrackID,
			Data:            f.Data,
			TimestampMicros: f.Timestamp,
			DurationMicros:  33333,
			IsKeyframe:      isVP8Keyframe(f.Data),
		})
	}
	return out, nil
}

func (e *videoEncoder) Close() error {
	e.closed = true
	return nil
}

func fourccFor(c transcode.VideoCodec) [4]byte {
	switch c {
	case transcode.VideoCodecVP9:
		return [4]byte{'V', 'P', '9', '0'}
	case transcode.VideoCodecAV1:
		return [4]byte{'A', 'V', '0', '1'}
	default:
		return [4]byte{'V', 'P', '8', '0'}
	}
}

// isVP8Keyframe reads the low bit of the first byte of a VP8 frame
// tag: 0 marks a key frame, 1 an interframe - the same bit-level
// technique sampletable/fragment.go uses for the ISO-BMFF sample
// flags' keyframe bit.
func isVP8Keyframe(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return data[0]&0x1 == 0
}

// --- IVF container (RFC-less but widely implemented; see libvpx's
// ivfenc/ivfdec.c for the canonical layout this mirrors): 32-byte file
// header, then per-frame a 12-byte frame header (4-byte LE size,
// 8-byte LE timestamp) followed by the frame payload. ---

type ivfFrame struct {
	Timestamp int64
	Data      []byte
}

func writeIVF(fourcc [4]byte, width, height uint16, frames []ivfFrame) []byte {
	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[4:6], 0) // version
	binary.LittleEndian.PutUint16(header[6:8], 32) // header length
	copy(header[8:12], fourcc[:])
	binary.LittleEndian.PutUint16(header[12:14], width)
	binary.LittleEndian.PutUint16(header[14:16], height)
	binary.LittleEndian.PutUint32(header[16:20], 30) // framerate numerator
	binary.LittleEndian.PutUint32(header[20:24], 1)  // framerate denominator
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(frames)))
	binary.LittleEndian.PutUint32(header[28:32], 0) // reserved

	out := header
	for _, f := range frames {
		fh := make([]byte, 12)
		binary.LittleEndian.PutUint32(fh[0:4], uint32(len(f.Data)))
		binary.LittleEndian.PutUint64(fh[4:12], uint64(f.Timestamp))
		out = append(out, fh...)
		out = append(out, f.Data...)
	}
	return out
}

func readIVF(data []byte) (frames []ivfFrame, fourcc [4]byte, width, height uint16, err error) {
	if len(data) < 32 || string(data[0:4]) != "DKIF" {
		return nil, fourcc, 0, 0, fmt.Errorf("%w: not an IVF stream", transcode.ErrMalformedContainer)
	}
	copy(fourcc[:], data[8:12])
	width = binary.LittleEndian.Uint16(data[12:14])
	height = binary.LittleEndian.Uint16(data[14:16])
	headerLen := binary.LittleEndian.Uint16(data[6:8])
	pos := int(headerLen)
	for pos+12 <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		ts := int64(binary.LittleEndian.Uint64(data[pos+4 : pos+12]))
		pos += 12
		if pos+size > len(data) {
			return nil, fourcc, 0, 0, fmt.Errorf("%w: IVF frame overruns stream", transcode.ErrMalformedContainer)
		}
		frames = append(frames, ivfFrame{Timestamp: ts, Data: data[pos : pos+size]})
		pos += size
	}
	return frames, fourcc, width, height, nil
}

// --- AVCC <-> Annex-B conversion. MP4/Matroska store H.264/H.265
// samples as a sequence of 4-byte-length-prefixed NAL units (the
// convention avcC's lengthSizeMinusOne nearly always sets to 4);
// ffmpeg's raw bytestream demuxers want Annex-B start codes instead. ---

func avccToAnnexB(chunks [][]byte) ([]byte, error) {
	startCode := []byte{0, 0, 0, 1}
	var out []byte
	for _, c := range chunks {
		pos := 0
		for pos < len(c) {
			if pos+4 > len(c) {
				return nil, fmt.Errorf("%w: truncated NAL length prefix", transcode.ErrMalformedContainer)
			}
			n := int(binary.BigEndian.Uint32(c[pos : pos+4]))
			pos += 4
			if n < 0 || pos+n > len(c) {
				return nil, fmt.Errorf("%w: NAL length %d overruns sample", transcode.ErrMalformedContainer, n)
			}
			out = append(out, startCode...)
			out = append(out, c[pos:pos+n]...)
			pos += n
		}
	}
	return out, nil
}
