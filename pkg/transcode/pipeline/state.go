package pipeline

import "sync"

// State is a point-in-time snapshot of a conversion's progress,
// copied out to OnProgress rather than shared - callers never see a
// State that mutates under them mid-read.
type State struct {
	TracksTotal    int
	TracksDone     int
	ChunksWritten  int64
	BytesIn        int64
	DurationMicros int64
	// TrackErrors holds the first error recorded against each track
	// ID, if any. A track with no entry has not failed.
	TrackErrors map[uint32]error
}

// progress accumulates counters during a Convert call behind a mutex
// and a sync.Map error slot, matching spec.md's single-cooperative-
// goroutine model: the only concurrent writers are the codecstage
// Stages' own worker goroutines reporting a track's terminal error,
// everything else runs on the one goroutine driving Convert.
type progress struct {
	mu sync.Mutex
	st State

	trackErrs sync.Map // uint32 -> error
}

func newProgress(trackCount int) *progress {
	return &progress{st: State{TracksTotal: trackCount}}
}

func (p *progress) addChunk(durationMicros int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.ChunksWritten++
	if durationMicros > p.st.DurationMicros {
		p.st.DurationMicros = durationMicros
	}
}

func (p *progress) setBytesIn(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.BytesIn = n
}

func (p *progress) trackDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.TracksDone++
}

func (p *progress) recordTrackError(trackID uint32, err error) {
	p.trackErrs.LoadOrStore(trackID, err)
}

// snapshot copies the current counters and error slot into a fresh
// State safe for the caller to keep.
func (p *progress) snapshot() State {
	p.mu.Lock()
	st := p.st
	p.mu.Unlock()

	errs := make(map[uint32]error)
	p.trackErrs.Range(func(k, v interface{}) bool {
		errs[k.(uint32)] = v.(error)
		return true
	})
	st.TrackErrors = errs
	return st
}
