package quality

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/audio"
)

// DefaultSampleInterval is the reference sampling period.
const DefaultSampleInterval = 2 * time.Second

// halfScale normalizes an RMS level so that half of full scale maps to
// an audio level of 1.0.
const halfScale = 0.5

// StreamStats is one raw statistics snapshot for a receive stream,
// as reported by the externally supplied media link.
type StreamStats struct {
	StreamID        string
	BytesReceived   uint64
	PacketsReceived uint64
	PacketsLost     uint64
	JitterSec       float64
}

// StatsSource supplies raw transport statistics. A transient error is
// swallowed by the monitor and the previous metrics are retained.
type StatsSource interface {
	Stats() ([]StreamStats, error)
}

// LevelProbe supplies a rolling time-domain frame of the local signal
// for audio-level metering. May be nil if no probe is attached.
type LevelProbe interface {
	ReadLevelFrame() []int16
}

// snapshot remembers the byte counter of a stream between ticks so a
// bitrate delta can be derived.
type snapshot struct {
	bytesReceived uint64
	takenAt       time.Time
}

// Monitor samples transport statistics and local signal level on a
// fixed period while an active media link exists, deriving a Metrics
// snapshot per tick. Stop clears all state.
type Monitor struct {
	mu        sync.RWMutex
	source    StatsSource
	probe     LevelProbe
	threshold *Thresholds
	interval  time.Duration

	prev        map[string]snapshot
	metrics     Metrics
	sampleCount int

	callback func(Metrics)

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMonitor creates a quality monitor over the given statistics
// source. probe may be nil; nil thresholds use the defaults.
func NewMonitor(source StatsSource, probe LevelProbe, thresholds *Thresholds) *Monitor {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewMonitor",
		"interval": DefaultSampleInterval,
	}).Info("Creating quality monitor")

	return &Monitor{
		source:    source,
		probe:     probe,
		threshold: thresholds,
		interval:  DefaultSampleInterval,
		prev:      make(map[string]snapshot),
	}
}

// SetInterval overrides the sampling period. Takes effect on the next
// Start.
func (m *Monitor) SetInterval(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if interval > 0 {
		m.interval = interval
	}
}

// SetCallback registers a function invoked with every derived metrics
// snapshot. Pass nil to disable.
func (m *Monitor) SetCallback(callback func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callback = callback
}

// Start begins the sampling loop. Starting a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	interval := m.interval
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Monitor.Start",
		"interval": interval,
	}).Info("Quality sampling started")

	go m.run(m.stop, m.done, interval)
}

// Stop cancels the sampling loop and clears all state, including
// previous snapshots and derived metrics. Called when the media link is
// torn down.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stop
	done := m.done
	m.mu.Unlock()

	close(stop)
	<-done

	m.mu.Lock()
	m.prev = make(map[string]snapshot)
	m.metrics = Metrics{}
	m.sampleCount = 0
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Monitor.Stop",
	}).Info("Quality sampling stopped, state cleared")
}

// IsRunning reports whether the sampling loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.running
}

// Metrics returns the most recently derived snapshot.
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.metrics
}

// run is the sampling loop; every tick checks liveness.
func (m *Monitor) run(stop, done chan struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sample(time.Now())
		}
	}
}

// Sample performs one sampling tick at the given time and returns the
// derived metrics. Exposed so callers with their own scheduler (and
// tests) can drive the monitor directly.
func (m *Monitor) Sample(now time.Time) Metrics {
	stats, err := m.source.Stats()
	if err != nil {
		// Transient statistics failure: retain previous metrics, no
		// retry outside the normal cadence.
		logrus.WithFields(logrus.Fields{
			"function": "Monitor.Sample",
			"error":    err.Error(),
		}).Debug("Statistics fetch failed, retaining previous metrics")
		return m.Metrics()
	}

	m.mu.Lock()

	m.sampleCount++

	var (
		bitrate float64
		loss    float64
		jitter  float64
	)
	for _, s := range stats {
		prev, ok := m.prev[s.StreamID]
		m.prev[s.StreamID] = snapshot{bytesReceived: s.BytesReceived, takenAt: now}

		// A stream with no prior snapshot contributes nothing yet: the
		// first tick stays all-zero so consumers see the calibrating
		// state instead of a false reading.
		if !ok {
			continue
		}

		if now.After(prev.takenAt) {
			dt := now.Sub(prev.takenAt).Seconds()
			if dt > 0 && s.BytesReceived >= prev.bytesReceived {
				bitrate = float64(s.BytesReceived-prev.bytesReceived) * 8 / dt
			}
		}
		if denom := s.PacketsLost + s.PacketsReceived; denom > 0 {
			loss = float64(s.PacketsLost) / float64(denom) * 100
		}
		jitter = s.JitterSec
	}

	level := 0.0
	if m.probe != nil {
		if frame := m.probe.ReadLevelFrame(); len(frame) > 0 {
			level = audio.RMS(frame) / halfScale
			if level > 1 {
				level = 1
			}
		}
	}

	m.metrics = Metrics{
		BitrateBps:    bitrate,
		PacketLossPct: loss,
		JitterSec:     jitter,
		AudioLevel:    level,
		Band:          m.threshold.Classify(bitrate, loss, jitter),
		SampleCount:   m.sampleCount,
	}
	metrics := m.metrics
	callback := m.callback
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":    "Monitor.Sample",
		"bitrate_bps": metrics.BitrateBps,
		"loss_pct":    metrics.PacketLossPct,
		"jitter_sec":  metrics.JitterSec,
		"band":        metrics.Band.String(),
	}).Debug("Quality sample derived")

	if callback != nil {
		callback(metrics)
	}

	return metrics
}
