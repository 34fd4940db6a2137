package codecstage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/videopipe/transcodecore/pkg/transcode"
)

type fakeDecoder struct {
	mu     sync.Mutex
	closed bool
	fail   bool
}

func (d *fakeDecoder) Decode(_ context.Context, chunk transcode.Chunk) ([]transcode.Frame, error) {
	if d.fail {
		return nil, errors.New("boom")
	}
	return []transcode.Frame{transcode.NewFrame(chunk.TrackID, chunk.TimestampMicros, chunk.Data, nil)}, nil
}
func (d *fakeDecoder) Flush(_ context.Context) ([]transcode.Frame, error) { return nil, nil }
func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type fakeEncoder struct {
	mu     sync.Mutex
	closed bool
}

func (e *fakeEncoder) Encode(_ context.Context, f transcode.Frame) ([]transcode.Chunk, error) {
	return []transcode.Chunk{{TrackID: f.TrackID, Data: f.Data, TimestampMicros: f.PresentationMicros}}, nil
}
func (e *fakeEncoder) Flush(_ context.Context) ([]transcode.Chunk, error) { return nil, nil }
func (e *fakeEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func TestStagePushAndDrainRoundTrips(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{}
	s := New(transcode.TrackVideo, dec, enc, nil)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, transcode.Chunk{TrackID: 1, Data: []byte("a"), TimestampMicros: 100}))
	chunks, err := s.Next()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, []byte("a"), chunks[0].Data)

	final, err := s.Flush(ctx)
	require.NoError(t, err)
	require.Empty(t, final)
	require.NoError(t, s.Close())
	require.True(t, dec.closed)
	require.True(t, enc.closed)
}

func TestStageLatchesDecodeError(t *testing.T) {
	dec := &fakeDecoder{fail: true}
	enc := &fakeEncoder{}
	s := New(transcode.TrackAudio, dec, enc, nil)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, transcode.Chunk{TrackID: 1, Data: []byte("a")}))
	_, err := s.Next()
	require.Error(t, err)
	require.ErrorIs(t, err, transcode.ErrCodecFailure)
}

func TestStageTransformIsApplied(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{}
	called := false
	transform := func(f transcode.Frame) (transcode.Frame, error) {
		called = true
		f.Data = append([]byte{}, f.Data...)
		return f, nil
	}
	s := New(transcode.TrackVideo, dec, enc, transform)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, transcode.Chunk{TrackID: 1, Data: []byte("x")}))
	_, err := s.Next()
	require.NoError(t, err)
	require.True(t, called)

	_, err = s.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestStagePushAfterCloseFails(t *testing.T) {
	dec := &fakeDecoder{}
	enc := &fakeEncoder{}
	s := New(transcode.TrackVideo, dec, enc, nil)
	ctx := context.Background()
	_, err := s.Flush(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Push(ctx, transcode.Chunk{TrackID: 1})
	require.ErrorIs(t, err, transcode.ErrClosed)
}
