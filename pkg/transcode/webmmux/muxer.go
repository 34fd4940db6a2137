package webmmux

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/matroska"
)

// timestampScaleNanos is the Segment's TimestampScale: one tick is
// this many nanoseconds. 1,000,000 makes one tick a millisecond, the
// value every Block and Cluster timestamp in this package is written
// in.
const timestampScaleNanos = 1_000_000

// Default cluster-rotation thresholds, carried over from
// nvr/pkg/video/hls/segmenter.go's segment-rotation rule (rotate on
// size, on elapsed span, or on the next keyframe once a minimum span
// has passed) and retargeted from HLS segments to Matroska clusters.
const (
	defaultClusterMaxBytes        = 5 * 1024 * 1024
	defaultClusterMaxSpan         = 5 * time.Second
	defaultClusterKeyframeMinSpan = 1 * time.Second
)

// Config tunes cluster rotation. Zero values fall back to the
// defaults above.
type Config struct {
	ClusterMaxBytes        int
	ClusterMaxSpan         time.Duration
	ClusterKeyframeMinSpan time.Duration
}

func (c Config) withDefaults() Config {
	if c.ClusterMaxBytes == 0 {
		c.ClusterMaxBytes = defaultClusterMaxBytes
	}
	if c.ClusterMaxSpan == 0 {
		c.ClusterMaxSpan = defaultClusterMaxSpan
	}
	if c.ClusterKeyframeMinSpan == 0 {
		c.ClusterKeyframeMinSpan = defaultClusterKeyframeMinSpan
	}
	return c
}

type trackState struct {
	track   transcode.Track
	codecID string
}

// clusterBuilder accumulates one Cluster's encoded Block elements
// in-memory before the Cluster element itself is sealed.
type clusterBuilder struct {
	startMicros int64
	blocks      [][]byte
	size        int
}

// Muxer builds one WebM file. Only vp8 video and opus audio tracks
// are writable; every other codec is rejected at AddTrack, per the
// only fully-supported output combination for this container.
type Muxer struct {
	cfg Config

	tracks map[uint32]*trackState
	order  []uint32

	cur      *clusterBuilder
	clusters [][]byte

	haveSample    bool
	firstMicros   int64
	lastEndMicros int64

	haveLastVideo     bool
	lastVideoAbsTicks int64

	finalized bool
}

// New creates a Muxer with the given configuration.
func New(cfg Config) *Muxer {
	return &Muxer{cfg: cfg.withDefaults(), tracks: make(map[uint32]*trackState)}
}

// AddTrack registers one output track. Tracks must be added before
// any chunk referencing them is written.
func (m *Muxer) AddTrack(track transcode.Track) error {
	if _, exists := m.tracks[track.TrackID]; exists {
		return fmt.Errorf("%w: webmmux: duplicate track id %d", transcode.ErrUnsupportedConfig, track.TrackID)
	}
	codecID, err := codecIDFor(track)
	if err != nil {
		return err
	}
	m.tracks[track.TrackID] = &trackState{track: track, codecID: codecID}
	m.order = append(m.order, track.TrackID)
	return nil
}

// WriteChunk appends one encoded access unit to the track it belongs
// to, rotating to a new Cluster first if the current one has grown
// past its size or span budget, or if this is a video keyframe at
// least ClusterKeyframeMinSpan past the current cluster's start.
func (m *Muxer) WriteChunk(chunk transcode.Chunk) error {
	if m.finalized {
		return fmt.Errorf("%w: webmmux: write after finalize", transcode.ErrWriterFailure)
	}
	st, ok := m.tracks[chunk.TrackID]
	if !ok {
		return fmt.Errorf("%w: webmmux: chunk for unregistered track %d", transcode.ErrWriterFailure, chunk.TrackID)
	}
	if len(chunk.Data) == 0 {
		return fmt.Errorf("%w: webmmux: empty chunk for track %d", transcode.ErrWriterFailure, chunk.TrackID)
	}

	if !m.haveSample {
		m.firstMicros = chunk.TimestampMicros
		m.haveSample = true
	}
	if end := chunk.TimestampMicros + int64(chunk.DurationMicros); end > m.lastEndMicros {
		m.lastEndMicros = end
	}

	if m.shouldRotate(st, chunk) {
		m.finalizeCurrentCluster()
	}
	if m.cur == nil {
		m.cur = &clusterBuilder{startMicros: chunk.TimestampMicros}
	}

	relativeMicros := chunk.TimestampMicros - m.cur.startMicros
	relativeTicks := relativeMicros / (timestampScaleNanos / 1000)
	if relativeTicks < math.MinInt16 || relativeTicks > math.MaxInt16 {
		// Span budgets keep this from happening in practice; fall back
		// to starting a fresh cluster rather than writing a timestamp
		// that would overflow the block header's int16 field.
		m.finalizeCurrentCluster()
		m.cur = &clusterBuilder{startMicros: chunk.TimestampMicros}
		relativeTicks = 0
	}

	var block []byte
	if st.track.Kind == transcode.TrackVideo && !chunk.IsKeyframe {
		absTicks := (chunk.TimestampMicros - m.firstMicros) / (timestampScaleNanos / 1000)
		var referenceDelta int64
		if m.haveLastVideo {
			referenceDelta = m.lastVideoAbsTicks - absTicks
		}
		block = encodeBlockGroup(chunk.TrackID, int16(relativeTicks), chunk.Data, referenceDelta)
		m.lastVideoAbsTicks = absTicks
		m.haveLastVideo = true
	} else {
		block = encodeSimpleBlock(chunk.TrackID, int16(relativeTicks), chunk.IsKeyframe || st.track.Kind == transcode.TrackAudio, chunk.Data)
		if st.track.Kind == transcode.TrackVideo {
			m.lastVideoAbsTicks = (chunk.TimestampMicros - m.firstMicros) / (timestampScaleNanos / 1000)
			m.haveLastVideo = true
		}
	}
	m.cur.blocks = append(m.cur.blocks, block)
	m.cur.size += len(block)

	return nil
}

func (m *Muxer) shouldRotate(st *trackState, chunk transcode.Chunk) bool {
	if m.cur == nil {
		return false
	}
	if m.cur.size >= m.cfg.ClusterMaxBytes {
		return true
	}
	span := time.Duration(chunk.TimestampMicros-m.cur.startMicros) * time.Microsecond
	if span >= m.cfg.ClusterMaxSpan {
		return true
	}
	if st.track.Kind == transcode.TrackVideo && chunk.IsKeyframe && span >= m.cfg.ClusterKeyframeMinSpan {
		return true
	}
	return false
}

func (m *Muxer) finalizeCurrentCluster() {
	if m.cur == nil || len(m.cur.blocks) == 0 {
		m.cur = nil
		return
	}
	clusterTicks := uint64((m.cur.startMicros - m.firstMicros) / (timestampScaleNanos / 1000))
	children := make([][]byte, 0, 1+len(m.cur.blocks))
	children = append(children, encodeUint(matroska.IDTimestamp, clusterTicks))
	children = append(children, m.cur.blocks...)
	m.clusters = append(m.clusters, encodeMaster(matroska.IDCluster, children...))
	m.cur = nil
}

// blockPayload builds the VINT-track-number / 16-bit relative
// timestamp / flags-byte / frame-data layout shared by SimpleBlock
// and the Block inside a BlockGroup.
func blockPayload(trackID uint32, relativeTicks int16, flags byte, data []byte) []byte {
	payload := make([]byte, 0, 4+len(data))
	payload = append(payload, encodeVint(uint64(trackID))...)
	ts := uint16(relativeTicks)
	payload = append(payload, byte(ts>>8), byte(ts), flags)
	payload = append(payload, data...)
	return payload
}

// encodeSimpleBlock builds one SimpleBlock element, used for every
// keyframe (the keyframe flag bit set) and for every audio block
// (Opus/AAC frames carry no inter-frame dependency, so every audio
// block is a keyframe in the Matroska sense).
func encodeSimpleBlock(trackID uint32, relativeTicks int16, keyframe bool, data []byte) []byte {
	var flags byte
	if keyframe {
		flags |= 0x80
	}
	return encodeElement(matroska.IDSimpleBlock, blockPayload(trackID, relativeTicks, flags, data))
}

// encodeBlockGroup wraps a non-keyframe video Block together with a
// ReferenceBlock pointing at the previous video block, in Segment
// tick units - this muxer's chunks carry no separate DTS/PTS (see
// transcode.Chunk), so every non-key frame is modeled as referencing
// only its immediate predecessor rather than an arbitrary reference
// frame set.
func encodeBlockGroup(trackID uint32, relativeTicks int16, data []byte, referenceDeltaTicks int64) []byte {
	block := encodeElement(matroska.IDBlock, blockPayload(trackID, relativeTicks, 0, data))
	reference := encodeInt(matroska.IDReferenceBlock, referenceDeltaTicks)
	return encodeMaster(matroska.IDBlockGroup, block, reference)
}

// Finalize writes the completed file to w. The Muxer must not be
// written to again afterwards.
func (m *Muxer) Finalize(w io.Writer) error {
	if m.finalized {
		return fmt.Errorf("%w: webmmux: finalize called twice", transcode.ErrWriterFailure)
	}
	m.finalized = true
	m.finalizeCurrentCluster()

	header := encodeMaster(matroska.IDEBMLHeader,
		encodeUint(matroska.IDEBMLVersion, 1),
		encodeUint(matroska.IDEBMLReadVersion, 1),
		encodeUint(matroska.IDEBMLMaxIDLength, 4),
		encodeUint(matroska.IDEBMLMaxSizeLength, 8),
		encodeString(matroska.IDEBMLDocType, "webm"),
		encodeUint(matroska.IDEBMLDocTypeVersion, 4),
		encodeUint(matroska.IDEBMLDocTypeReadVersion, 2),
	)

	durationTicks := float64(m.lastEndMicros-m.firstMicros) / (timestampScaleNanos / 1000)
	infoData, durationOffsetInInfo := buildInfoElement(durationTicks)

	trackEntries := make([][]byte, 0, len(m.order))
	for _, id := range m.order {
		trackEntries = append(trackEntries, buildTrackEntry(m.tracks[id]))
	}
	tracksData := encodeMaster(matroska.IDTracks, trackEntries...)

	segmentHeader := append(encodeID(matroska.IDSegment), unknownSizeVint...)

	total := len(header) + len(segmentHeader) + len(infoData) + len(tracksData)
	for _, c := range m.clusters {
		total += len(c)
	}

	buf := make([]byte, 0, total)
	buf = append(buf, header...)
	buf = append(buf, segmentHeader...)
	durationAbsoluteOffset := len(buf) + durationOffsetInInfo
	buf = append(buf, infoData...)
	buf = append(buf, tracksData...)
	for _, c := range m.clusters {
		buf = append(buf, c...)
	}

	binary.BigEndian.PutUint64(buf[durationAbsoluteOffset:durationAbsoluteOffset+8], math.Float64bits(durationTicks))

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: webmmux: %v", transcode.ErrWriterFailure, err)
	}
	return nil
}

// buildInfoElement returns the fully-encoded Info element along with
// the byte offset, within that same slice, of the Duration element's
// 8-byte float64 payload - the cluster span isn't known until every
// chunk has been written, so Finalize patches it in after the fact
// instead of buffering the whole Info element's final form up front.
func buildInfoElement(durationTicks float64) (data []byte, durationPayloadOffset int) {
	before := encodeUint(matroska.IDTimestampScale, timestampScaleNanos)
	before = append(before, encodeString(matroska.IDMuxingApp, "transcodecore")...)
	before = append(before, encodeString(matroska.IDWritingApp, "transcodecore")...)

	durationHeader := encodeHeader(matroska.IDDuration, 8)
	payloadOffsetInContent := len(before) + len(durationHeader)

	content := append(before, durationHeader...)
	content = append(content, make([]byte, 8)...)

	infoHeader := encodeHeader(matroska.IDInfo, len(content))
	data = append(infoHeader, content...)
	durationPayloadOffset = len(infoHeader) + payloadOffsetInContent
	return data, durationPayloadOffset
}
