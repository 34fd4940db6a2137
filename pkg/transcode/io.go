package transcode

import (
	"context"
	"fmt"
	"io"
)

// SourceReader abstracts the input side of a conversion: a
// byte-range-addressable source the demuxer pulls from as it
// discovers where the next box/element lives, rather than a plain
// io.Reader the parser would have to buffer itself. Mirrors how the
// teacher's storage layer (pkg/storage) always exposes file access by
// explicit range rather than a bare stream.
type SourceReader interface {
	// ReadAt returns up to length bytes starting at offset. A short
	// final read is followed by io.EOF on the same call, matching
	// io.ReaderAt's "may return n < len(p) on EOF" allowance.
	ReadAt(ctx context.Context, offset uint64, length uint32) ([]byte, error)
	// Size reports the source's total byte length, when known. ok is
	// false for a source whose length isn't available up front (e.g.
	// a live append-only recording).
	Size() (size uint64, ok bool)
}

// OutputWriter abstracts the sink side: a sequential writer that also
// allows patching already-written bytes, since both isomux (stco) and
// webmmux (Duration) need to go back and fix up a value once the rest
// of the file is known.
type OutputWriter interface {
	Write(p []byte) (int, error)
	UpdateDataAt(offset int64, p []byte) error
	WrittenByteCount() int64
	Save() ([]byte, error)
	Remove() error
}

// MemorySource is the in-memory SourceReader every test and the CLI's
// file-reading path use: the whole input already resident in a byte
// slice.
type MemorySource struct {
	data []byte
}

// NewMemorySource wraps buf. The caller must not mutate buf afterwards.
func NewMemorySource(buf []byte) *MemorySource {
	return &MemorySource{data: buf}
}

func (s *MemorySource) ReadAt(_ context.Context, offset uint64, length uint32) ([]byte, error) {
	if offset >= uint64(len(s.data)) {
		return nil, io.EOF
	}
	end := offset + uint64(length)
	var err error
	if end >= uint64(len(s.data)) {
		end = uint64(len(s.data))
		err = io.EOF
	}
	return s.data[offset:end], err
}

func (s *MemorySource) Size() (uint64, bool) {
	return uint64(len(s.data)), true
}

// MemoryWriter is the in-memory OutputWriter implementation: a
// growable buffer supporting in-place patches, the same "buffer
// everything, patch a deferred offset" shape isomux/webmmux already
// build their own output with internally - this is the sink the
// pipeline controller hands a Muxer's Finalize to.
type MemoryWriter struct {
	buf      []byte
	removed  bool
}

// NewMemoryWriter returns an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{}
}

func (w *MemoryWriter) Write(p []byte) (int, error) {
	if w.removed {
		return 0, fmt.Errorf("%w: write to removed output", ErrWriterFailure)
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *MemoryWriter) UpdateDataAt(offset int64, p []byte) error {
	if w.removed {
		return fmt.Errorf("%w: patch on removed output", ErrWriterFailure)
	}
	if offset < 0 || offset+int64(len(p)) > int64(len(w.buf)) {
		return fmt.Errorf("%w: patch at %d..%d out of range (len %d)",
			ErrWriterFailure, offset, offset+int64(len(p)), len(w.buf))
	}
	copy(w.buf[offset:], p)
	return nil
}

func (w *MemoryWriter) WrittenByteCount() int64 {
	return int64(len(w.buf))
}

func (w *MemoryWriter) Save() ([]byte, error) {
	if w.removed {
		return nil, fmt.Errorf("%w: save on removed output", ErrWriterFailure)
	}
	return w.buf, nil
}

func (w *MemoryWriter) Remove() error {
	w.buf = nil
	w.removed = true
	return nil
}
