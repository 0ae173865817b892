package audio

import "sync"

// defaultAnalyserSize is the rolling window length in samples.
const defaultAnalyserSize = 2048

// Analyser keeps a rolling time-domain window of a mono signal for
// level metering and waveform retrieval. It is safe for one writer and
// concurrent readers.
type Analyser struct {
	mu   sync.RWMutex
	ring []int16
	pos  int
	fill int
}

// NewAnalyser creates an analyser with the given window size in
// samples; size <= 0 uses the default.
func NewAnalyser(size int) *Analyser {
	if size <= 0 {
		size = defaultAnalyserSize
	}
	return &Analyser{ring: make([]int16, size)}
}

// Write appends samples to the rolling window.
func (a *Analyser) Write(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % len(a.ring)
		if a.fill < len(a.ring) {
			a.fill++
		}
	}
}

// Waveform returns a copy of the current window, oldest sample first.
func (a *Analyser) Waveform() []int16 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]int16, a.fill)
	start := a.pos - a.fill
	for i := 0; i < a.fill; i++ {
		idx := (start + i + len(a.ring)) % len(a.ring)
		out[i] = a.ring[idx]
	}
	return out
}

// LevelDB returns the RMS level of the window in decibels, floored at
// MinDB for silence.
func (a *Analyser) LevelDB() float64 {
	return LinearToDB(RMS(a.Waveform()))
}

// ReadLevelFrame returns the rolling window. It satisfies the level
// probe interface used by the quality monitor.
func (a *Analyser) ReadLevelFrame() []int16 {
	return a.Waveform()
}
