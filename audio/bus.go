package audio

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// FrameSource produces frames of interleaved 16-bit PCM samples.
//
// ReadFrame fills buf with up to len(buf) samples and returns the number
// of samples written. A source that has been fully consumed returns
// io.EOF; the bus then stops pulling from it.
type FrameSource interface {
	ReadFrame(buf []int16) (int, error)
}

// Bus is a signal-combining point in the audio graph. Attached sources
// are pull-mixed (summed with clipping protection) into each output
// frame, then scaled by the bus gain.
//
// Bus gain and topology are mutated only through explicit setters;
// callers are responsible for not issuing overlapping mutating calls.
type Bus struct {
	name    string
	mu      sync.Mutex
	gain    float64
	sources map[*Handle]FrameSource
	scratch []int16
}

// newBus creates a bus with unity gain and no sources.
func newBus(name string) *Bus {
	return &Bus{
		name:    name,
		gain:    1.0,
		sources: make(map[*Handle]FrameSource),
	}
}

// NewBus creates a standalone bus outside the process-wide graph, for
// temporary topologies such as the recording mix bus.
func NewBus(name string) *Bus {
	return newBus(name)
}

// Attach connects a source directly to this bus and returns its
// disposable handle.
func (b *Bus) Attach(src FrameSource) *Handle {
	return b.attach(src)
}

// Name returns the bus name within the graph.
func (b *Bus) Name() string {
	return b.name
}

// SetGain sets the linear output gain of the bus.
func (b *Bus) SetGain(gain float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gain = gain
}

// Gain returns the current linear output gain of the bus.
func (b *Bus) Gain() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.gain
}

// SourceCount returns the number of currently attached sources.
func (b *Bus) SourceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.sources)
}

// attach adds a source and returns its disposable handle.
func (b *Bus) attach(src FrameSource) *Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h := &Handle{bus: b}
	b.sources[h] = src

	logrus.WithFields(logrus.Fields{
		"function":     "Bus.attach",
		"bus":          b.name,
		"source_count": len(b.sources),
	}).Debug("Source attached to bus")

	return h
}

// detach removes the source associated with a handle. Detaching an
// already-detached handle is a no-op.
func (b *Bus) detach(h *Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.sources, h)
}

// ReadFrame mixes one frame from all attached sources into buf and
// returns the number of samples produced. Sources that report io.EOF are
// detached; other source errors skip that source for the frame. A bus
// with no live sources fills buf with silence.
func (b *Bus) ReadFrame(buf []int16) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range buf {
		buf[i] = 0
	}

	if cap(b.scratch) < len(buf) {
		b.scratch = make([]int16, len(buf))
	}
	scratch := b.scratch[:len(buf)]

	var exhausted []*Handle
	for h, src := range b.sources {
		n, err := src.ReadFrame(scratch)
		if err == io.EOF {
			exhausted = append(exhausted, h)
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Bus.ReadFrame",
				"bus":      b.name,
				"error":    err.Error(),
			}).Warn("Source read failed, skipping for this frame")
			continue
		}

		for i := 0; i < n; i++ {
			buf[i] = clampSample(float64(buf[i]) + float64(scratch[i]))
		}
	}

	for _, h := range exhausted {
		delete(b.sources, h)
		h.markDisposed()
	}

	if b.gain != 1.0 {
		for i := range buf {
			buf[i] = clampSample(float64(buf[i]) * b.gain)
		}
	}

	return len(buf), nil
}

// Handle is a disposable attachment of a source to a bus. Every attach
// operation returns one; the caller must invoke Dispose on all exit
// paths to release the graph connection.
type Handle struct {
	bus      *Bus
	mu       sync.Mutex
	disposed bool
}

// Dispose detaches the source from its bus. Dispose is idempotent;
// disposing an already-released handle is not an error.
func (h *Handle) Dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	h.mu.Unlock()

	h.bus.detach(h)
}

// Disposed reports whether the handle has been released.
func (h *Handle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.disposed
}

// markDisposed flags a handle whose source was detached by the bus
// itself (for example on io.EOF).
func (h *Handle) markDisposed() {
	h.mu.Lock()
	h.disposed = true
	h.mu.Unlock()
}
