// Package codecstage runs one track's decode/transform/encode chain
// as a bounded-concurrency pipeline: pushed frames enter a worker,
// results drain to a channel, and backpressure is applied by capping
// how many frames may be in flight at once.
//
// The request/response-channel-plus-context shape is grounded on
// nvr/pkg/video/hls_muxer.go and path.go, which run their own
// goroutines behind channel-based request queues instead of exposing
// raw locks; this package borrows that shape for a worker pool rather
// than a request router.
package codecstage

import (
	"context"
	"fmt"
	"sync"

	"github.com/videopipe/transcodecore/pkg/transcode"
)

// Window sizes from spec.md §6 (track-kind-scoped in-flight caps).
const (
	VideoWindow = 8
	AudioWindow = 32
)

// Decoder turns one encoded transcode.Chunk into zero or more decoded
// transcode.Frame values (a decoder may need several chunks before it
// emits its first frame, and may emit more than one frame per chunk
// on flush).
type Decoder interface {
	Decode(ctx context.Context, chunk transcode.Chunk) ([]transcode.Frame, error)
	Flush(ctx context.Context) ([]transcode.Frame, error)
	Close() error
}

// Encoder turns one transcode.Frame into zero or more encoded
// transcode.Chunk values.
type Encoder interface {
	Encode(ctx context.Context, frame transcode.Frame) ([]transcode.Chunk, error)
	Flush(ctx context.Context) ([]transcode.Chunk, error)
	Close() error
}

// Transform is an optional per-frame filter (scale, pixel format
// conversion, resample) applied between decode and encode. A nil
// Transform means passthrough frames unmodified.
type Transform func(transcode.Frame) (transcode.Frame, error)

func windowFor(kind transcode.TrackKind) int {
	if kind == transcode.TrackAudio {
		return AudioWindow
	}
	return VideoWindow
}

// Stage runs one track's decode -> transform -> encode chain. Push
// enqueues a chunk and blocks only when the in-flight window is full;
// Results delivers encoded chunks in completion order, which with more
// than one push in flight need not be push order. Once an error occurs
// it latches: every subsequent Push or Flush returns that same error, per spec.md's
// "a stage's error is sticky" rule, mirroring how a closed
// nvr/pkg/video/path.go request channel rejects every request after
// shutdown rather than blocking forever.
type Stage struct {
	decoder   Decoder
	encoder   Encoder
	transform Transform
	kind      transcode.TrackKind

	sem    chan struct{} // bounds in-flight pushes
	out    chan stageResult
	wg     sync.WaitGroup

	mu     sync.Mutex
	err    error
	closed bool
}

type stageResult struct {
	chunks []transcode.Chunk
	err    error
}

// New constructs a Stage for one track. transform may be nil.
func New(kind transcode.TrackKind, decoder Decoder, encoder Encoder, transform Transform) *Stage {
	window := windowFor(kind)
	return &Stage{
		decoder:   decoder,
		encoder:   encoder,
		transform: transform,
		kind:      kind,
		sem:       make(chan struct{}, window),
		out:       make(chan stageResult, window),
	}
}

// Push submits one encoded input chunk for decode/transform/encode.
// It blocks until a window slot is free, or ctx is done, or the stage
// has latched an error.
func (s *Stage) Push(ctx context.Context, chunk transcode.Chunk) error {
	if err := s.latchedErr(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transcode.ErrClosed
	}
	s.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", transcode.ErrAborted, ctx.Err())
	}

	s.wg.Add(1)
	go s.process(ctx, chunk)
	return nil
}

func (s *Stage) process(ctx context.Context, chunk transcode.Chunk) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	frames, err := s.decoder.Decode(ctx, chunk)
	if err != nil {
		s.emit(stageResult{err: fmt.Errorf("%w: %v", transcode.ErrCodecFailure, err)})
		return
	}

	var out []transcode.Chunk
	for _, f := range frames {
		if s.transform != nil {
			transformed, terr := s.transform(f)
			if terr != nil {
				s.emit(stageResult{err: fmt.Errorf("%w: transform: %v", transcode.ErrCodecFailure, terr)})
				return
			}
			f = transformed
		}
		encoded, eerr := s.encoder.Encode(ctx, f)
		if eerr != nil {
			s.emit(stageResult{err: fmt.Errorf("%w: %v", transcode.ErrCodecFailure, eerr)})
			return
		}
		out = append(out, encoded...)
	}

	s.emit(stageResult{chunks: out})
}

func (s *Stage) emit(r stageResult) {
	if r.err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = r.err
		}
		s.mu.Unlock()
	}
	s.out <- r
}

func (s *Stage) latchedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Results returns the channel of completed chunk batches. Callers
// must drain it even after an error batch arrives, until Flush/Close
// has stopped producing, to avoid leaking a blocked process goroutine.
func (s *Stage) Results() <-chan stageResult {
	return s.out
}

// Next blocks for the next completed batch, or returns the latched
// error once one has occurred and no more results are pending.
func (s *Stage) Next() ([]transcode.Chunk, error) {
	r, ok := <-s.out
	if !ok {
		return nil, s.latchedErr()
	}
	return r.chunks, r.err
}

// Flush drains the decoder and encoder of any buffered frames once no
// more input chunks will be pushed, waits for all in-flight pushes to
// finish, and returns the final encoded chunks.
func (s *Stage) Flush(ctx context.Context) ([]transcode.Chunk, error) {
	if err := s.latchedErr(); err != nil {
		return nil, err
	}
	s.wg.Wait()

	frames, err := s.decoder.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder flush: %v", transcode.ErrCodecFailure, err)
	}
	var out []transcode.Chunk
	for _, f := range frames {
		if s.transform != nil {
			f, err = s.transform(f)
			if err != nil {
				return nil, fmt.Errorf("%w: transform: %v", transcode.ErrCodecFailure, err)
			}
		}
		encoded, err := s.encoder.Encode(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", transcode.ErrCodecFailure, err)
		}
		out = append(out, encoded...)
	}
	final, err := s.encoder.Flush(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: encoder flush: %v", transcode.ErrCodecFailure, err)
	}
	out = append(out, final...)
	return out, nil
}

// Close releases the decoder and encoder. A Close after Close is a
// no-op; a Push after Close returns transcode.ErrClosed. Callers must
// call Flush before Close - Close closes the Results channel, and a
// process goroutine still in flight would panic sending to it.
func (s *Stage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.out)
	decErr := s.decoder.Close()
	encErr := s.encoder.Close()
	if decErr != nil {
		return fmt.Errorf("%w: decoder close: %v", transcode.ErrCodecFailure, decErr)
	}
	if encErr != nil {
		return fmt.Errorf("%w: encoder close: %v", transcode.ErrCodecFailure, encErr)
	}
	return nil
}
