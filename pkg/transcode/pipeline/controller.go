// Package pipeline drives one conversion end to end: pull bytes from
// a SourceReader, demux into tracks and timestamp-ordered chunks,
// route each track through a straight copy or a full
// decode/transform/encode stage, and hand every resulting chunk to
// the target muxer, finally patching and saving the output.
//
// The ctx/abort-token shape and the per-unit terminal-error bookkeeping
// are grounded on nvr/pkg/video/core.go's NewServer(log, wg, env)
// construction and path.go's per-path sentinel errors and shutdown
// handling; this package has no long-lived background goroutines to
// manage the way path.go does; Convert runs and returns once, so
// there's no equivalent of path.go's request-channel loop to borrow
// beyond its ctx.Done()-everywhere discipline.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/videopipe/transcodecore/pkg/log"
	"github.com/videopipe/transcodecore/pkg/transcode"
	"github.com/videopipe/transcodecore/pkg/transcode/codecstage"
	"github.com/videopipe/transcodecore/pkg/transcode/isomux"
	"github.com/videopipe/transcodecore/pkg/transcode/webmmux"
)

// logInfo/logError are nil-safe wrappers so every call site below
// reads the same whether or not Params.Logger was set, matching how
// nvr/pkg/video/path.go logs every per-path lifecycle event (start,
// a camera's terminal error, shutdown) through its one *log.Logger
// rather than returning silently.
func logInfo(l *log.Logger, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Info().Src("pipeline").Msgf(format, args...)
}

func logError(l *log.Logger, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Error().Src("pipeline").Msgf(format, args...)
}

// outputMuxer is the common surface isomux.Muxer and webmmux.Muxer
// both already expose; Controller picks a concrete implementation by
// Params.To and drives it through this interface only.
type outputMuxer interface {
	AddTrack(transcode.Track) error
	WriteChunk(transcode.Chunk) error
	Finalize(w io.Writer) error
}

// Controller runs conversions. It carries no state between calls -
// every field a run needs lives on the stack of Convert itself - so
// one Controller may run sequential conversions, but never
// concurrent ones (matching spec.md's single-cooperative-goroutine
// model; there is nothing to share-lock because nothing is shared).
type Controller struct{}

// New returns a Controller ready to run conversions.
func New() *Controller {
	return &Controller{}
}

// Convert runs one source through to a finished output. The returned
// error, if any, is the first error encountered; a context
// cancellation surfaces as transcode.ErrAborted.
func (c *Controller) Convert(ctx context.Context, params Params) (*Result, error) {
	if err := params.validate(); err != nil {
		logError(params.Logger, "convert: rejected params: %v", err)
		return nil, err
	}
	logInfo(params.Logger, "convert: starting, to=%s allowMP4=%v", params.To, params.AllowMP4)

	buf, err := readAll(ctx, params.Src)
	if err != nil {
		logError(params.Logger, "convert: read source: %v", err)
		return nil, err
	}

	demuxed, err := demux(buf)
	if err != nil {
		logError(params.Logger, "convert: demux: %v", err)
		return nil, err
	}

	routes, err := buildRoutes(params, demuxed.tracks)
	if err != nil {
		logError(params.Logger, "convert: build routes: %v", err)
		return nil, err
	}

	muxer, err := newOutputMuxer(params.To)
	if err != nil {
		return nil, err
	}
	// AddTrack in the demuxer's own track order, so a reader of the
	// output sees tracks in the same relative order the source did.
	for _, t := range demuxed.tracks {
		route, ok := routes[t.TrackID]
		if !ok {
			continue // track kind this pipeline doesn't carry (subtitles, etc.)
		}
		if err := muxer.AddTrack(route.outTrack); err != nil {
			return nil, err
		}
	}

	prog := newProgress(len(routes))
	prog.setBytesIn(int64(len(buf)))

	if err := driveChunks(ctx, demuxed.chunks, routes, muxer, prog, params.OnProgress, params.Logger); err != nil {
		logError(params.Logger, "convert: %v", err)
		return nil, err
	}

	trackOrder := make([]uint32, 0, len(demuxed.tracks))
	for _, t := range demuxed.tracks {
		if _, ok := routes[t.TrackID]; ok {
			trackOrder = append(trackOrder, t.TrackID)
		}
	}
	if err := flushRoutes(ctx, trackOrder, routes, muxer, prog, params.OnProgress, params.Logger); err != nil {
		logError(params.Logger, "convert: %v", err)
		return nil, err
	}

	output := transcode.NewMemoryWriter()
	if err := muxer.Finalize(output); err != nil {
		logError(params.Logger, "convert: finalize: %v", err)
		return nil, err
	}

	final := prog.snapshot()
	if params.OnProgress != nil {
		params.OnProgress(final)
	}
	logInfo(params.Logger, "convert: done, %d chunks written across %d tracks", final.ChunksWritten, final.TracksDone)

	return &Result{output: output, state: final}, nil
}

func newOutputMuxer(to string) (outputMuxer, error) {
	switch to {
	case "webm":
		return webmmux.New(webmmux.Config{}), nil
	case "mp4":
		return isomux.New(isomux.Config{}), nil
	default:
		return nil, fmt.Errorf("%w: unknown output container %q", transcode.ErrUnsupportedConfig, to)
	}
}

// readAll pulls the whole source into memory in fixed-size windows,
// checking ctx between reads - both demuxers need random access into
// the full byte range (an mdat sample near the end of the file, a
// Cluster far past the Segment's Info), so there is no streaming-
// window alternative worth building here.
func readAll(ctx context.Context, src transcode.SourceReader) ([]byte, error) {
	const window = 1 << 20
	var out []byte
	var offset uint64
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", transcode.ErrAborted, ctx.Err())
		default:
		}
		p, err := src.ReadAt(ctx, offset, window)
		out = append(out, p...)
		offset += uint64(len(p))
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", transcode.ErrWriterFailure, err)
		}
		if len(p) == 0 {
			break
		}
	}
	return out, nil
}

// trackRoute is the resolved handling for one track: either a direct
// copy (outTrack is the source track descriptor, unmodified) or a
// transcode through stage (outTrack is whatever the encoder factory
// reported once configured).
type trackRoute struct {
	stage    *codecstage.Stage
	outTrack transcode.Track
}

func (r *trackRoute) isCopy() bool {
	return r.stage == nil
}

func buildRoutes(params Params, tracks []transcode.Track) (map[uint32]*trackRoute, error) {
	routes := make(map[uint32]*trackRoute, len(tracks))
	for _, t := range tracks {
		switch t.Kind {
		case transcode.TrackVideo:
			route, err := buildVideoRoute(params, t)
			if err != nil {
				return nil, err
			}
			if route != nil {
				routes[t.TrackID] = route
			}
		case transcode.TrackAudio:
			route, err := buildAudioRoute(params, t)
			if err != nil {
				return nil, err
			}
			if route != nil {
				routes[t.TrackID] = route
			}
		default:
			// Other track kinds (subtitles, unknown handlers) aren't
			// carried by either muxer; skipped rather than failing the
			// whole conversion over one track neither output format
			// can express.
		}
	}
	return routes, nil
}

func buildVideoRoute(params Params, t transcode.Track) (*trackRoute, error) {
	if videoCodecCopyable(params.To, t.VideoCodec) && params.OnVideoFrame == nil {
		return &trackRoute{outTrack: t}, nil
	}
	if params.NewVideoDecoder == nil || params.NewVideoEncoder == nil {
		return nil, fmt.Errorf("%w: video track %d needs transcoding to %s but no codec factory was configured",
			transcode.ErrUnsupportedConfig, t.TrackID, params.VideoCodec)
	}
	dec, err := params.NewVideoDecoder(t)
	if err != nil {
		return nil, err
	}
	enc, outTrack, err := params.NewVideoEncoder(t)
	if err != nil {
		return nil, err
	}
	stage := codecstage.New(transcode.TrackVideo, dec, enc, params.OnVideoFrame)
	return &trackRoute{stage: stage, outTrack: outTrack}, nil
}

func buildAudioRoute(params Params, t transcode.Track) (*trackRoute, error) {
	if audioCodecCopyable(params.To, t.AudioCodec) {
		return &trackRoute{outTrack: t}, nil
	}
	if params.NewAudioDecoder == nil || params.NewAudioEncoder == nil {
		return nil, fmt.Errorf("%w: audio track %d needs transcoding to %s but no codec factory was configured",
			transcode.ErrUnsupportedConfig, t.TrackID, params.AudioCodec)
	}
	dec, err := params.NewAudioDecoder(t)
	if err != nil {
		return nil, err
	}
	enc, outTrack, err := params.NewAudioEncoder(t)
	if err != nil {
		return nil, err
	}
	stage := codecstage.New(transcode.TrackAudio, dec, enc, nil)
	return &trackRoute{stage: stage, outTrack: outTrack}, nil
}

func videoCodecCopyable(to string, codec transcode.VideoCodec) bool {
	switch to {
	case "webm":
		return codec == transcode.VideoCodecVP8
	case "mp4":
		return codec == transcode.VideoCodecH264
	default:
		return false
	}
}

func audioCodecCopyable(to string, codec transcode.AudioCodec) bool {
	switch to {
	case "webm":
		return codec == transcode.AudioCodecOpus
	case "mp4":
		return codec == transcode.AudioCodecAAC
	default:
		return false
	}
}

// driveChunks walks the demuxed chunk stream in timestamp order,
// a single cooperative pass per spec.md's concurrency model: a copy
// track's chunk goes straight to the muxer; a transcode track's chunk
// is pushed into its Stage and its Stage is drained immediately
// afterward, rather than batching pushes ahead of their results - that
// keeps output ordering identical to input ordering without needing a
// reorder buffer, at the cost of not overlapping one track's encode
// with the next chunk's decode.
func driveChunks(
	ctx context.Context,
	chunks []transcode.Chunk,
	routes map[uint32]*trackRoute,
	muxer outputMuxer,
	prog *progress,
	onProgress func(State),
	logger *log.Logger,
) error {
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", transcode.ErrAborted, ctx.Err())
		default:
		}

		route, ok := routes[chunk.TrackID]
		if !ok {
			continue
		}

		if route.isCopy() {
			if err := writeChunk(muxer, chunk, prog, onProgress); err != nil {
				return err
			}
			continue
		}

		if err := route.stage.Push(ctx, chunk); err != nil {
			prog.recordTrackError(chunk.TrackID, err)
			logError(logger, "track %d: push: %v", chunk.TrackID, err)
			return err
		}
		encoded, err := route.stage.Next()
		if err != nil {
			prog.recordTrackError(chunk.TrackID, err)
			logError(logger, "track %d: %v", chunk.TrackID, err)
			return err
		}
		for _, out := range encoded {
			if err := writeChunk(muxer, out, prog, onProgress); err != nil {
				return err
			}
		}
	}
	return nil
}

// flushRoutes drains every transcode stage's trailing frames once no
// more input chunks will arrive, then closes it. Copy tracks have no
// stage and need no flush.
func flushRoutes(
	ctx context.Context,
	trackOrder []uint32,
	routes map[uint32]*trackRoute,
	muxer outputMuxer,
	prog *progress,
	onProgress func(State),
	logger *log.Logger,
) error {
	for _, trackID := range trackOrder {
		route := routes[trackID]
		if route.isCopy() {
			prog.trackDone()
			continue
		}
		encoded, err := route.stage.Flush(ctx)
		if err != nil {
			prog.recordTrackError(trackID, err)
			logError(logger, "track %d: flush: %v", trackID, err)
			return err
		}
		for _, out := range encoded {
			if err := writeChunk(muxer, out, prog, onProgress); err != nil {
				return err
			}
		}
		if err := route.stage.Close(); err != nil {
			prog.recordTrackError(trackID, err)
			logError(logger, "track %d: close: %v", trackID, err)
			return err
		}
		prog.trackDone()
		logInfo(logger, "track %d: done", trackID)
	}
	return nil
}

func writeChunk(muxer outputMuxer, chunk transcode.Chunk, prog *progress, onProgress func(State)) error {
	if err := muxer.WriteChunk(chunk); err != nil {
		return err
	}
	prog.addChunk(chunk.TimestampMicros + int64(chunk.DurationMicros))
	if onProgress != nil {
		onProgress(prog.snapshot())
	}
	return nil
}
