package quality

import (
	"errors"
	"testing"
	"time"
)

// scriptedSource returns a fixed stats snapshot, or an error.
type scriptedSource struct {
	stats []StreamStats
	err   error
}

func (s *scriptedSource) Stats() ([]StreamStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.stats, nil
}

// fixedProbe returns a constant level frame.
type fixedProbe struct {
	frame []int16
}

func (p *fixedProbe) ReadLevelFrame() []int16 {
	return p.frame
}

func TestSampleFirstTickHasZeroBitrate(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1", BytesReceived: 50000}}}
	m := NewMonitor(src, nil, nil)

	got := m.Sample(time.Now())
	// No prior snapshot for the stream: no bitrate can be derived yet.
	if got.BitrateBps != 0 {
		t.Errorf("first-sample bitrate = %v, want 0", got.BitrateBps)
	}
	if got.SampleCount != 1 {
		t.Errorf("SampleCount = %d, want 1", got.SampleCount)
	}
	if !got.Calibrating() {
		t.Error("first all-zero sample should report calibrating")
	}
}

func TestSampleDerivesBitrateFromDelta(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1", BytesReceived: 10000}}}
	m := NewMonitor(src, nil, nil)

	t0 := time.Now()
	m.Sample(t0)

	// 15000 more bytes over 2 seconds: 15000*8/2 = 60000 bps.
	src.stats = []StreamStats{{StreamID: "s1", BytesReceived: 25000}}
	got := m.Sample(t0.Add(2 * time.Second))

	if got.BitrateBps != 60000 {
		t.Errorf("bitrate = %v, want 60000", got.BitrateBps)
	}
	if got.Calibrating() {
		t.Error("a sample with nonzero bitrate is not calibrating")
	}
}

func TestSampleLossPercentage(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{
		StreamID:        "s1",
		PacketsReceived: 95,
		PacketsLost:     5,
	}}}
	m := NewMonitor(src, nil, nil)

	t0 := time.Now()
	m.Sample(t0)
	got := m.Sample(t0.Add(2 * time.Second))
	if got.PacketLossPct != 5 {
		t.Errorf("loss = %v%%, want 5%%", got.PacketLossPct)
	}
}

func TestSingleSampleReportsCalibrating(t *testing.T) {
	// Raw stats that would classify as poor on their own: the first
	// tick has no pair to diff against, so everything derived stays
	// zero and the consumer sees calibrating instead of a false band.
	src := &scriptedSource{stats: []StreamStats{{
		StreamID:        "s1",
		BytesReceived:   37500,
		PacketsReceived: 995,
		PacketsLost:     5,
		JitterSec:       0.02,
	}}}
	m := NewMonitor(src, nil, nil)

	t0 := time.Now()
	got := m.Sample(t0)
	if got.PacketLossPct != 0 || got.JitterSec != 0 || got.BitrateBps != 0 {
		t.Errorf("first sample derived %+v, want all-zero", got)
	}
	if !got.Calibrating() {
		t.Error("first sample over live stats should report calibrating")
	}

	// The second tick has a pair and reports for real.
	src.stats = []StreamStats{{
		StreamID:        "s1",
		BytesReceived:   75000,
		PacketsReceived: 1990,
		PacketsLost:     10,
		JitterSec:       0.02,
	}}
	got = m.Sample(t0.Add(2 * time.Second))
	if got.Calibrating() {
		t.Error("a sample pair should leave calibration")
	}
	if got.PacketLossPct != 0.5 {
		t.Errorf("loss = %v%%, want 0.5%%", got.PacketLossPct)
	}
	if got.JitterSec != 0.02 {
		t.Errorf("jitter = %v, want 0.02", got.JitterSec)
	}
	if got.BitrateBps != 150000 {
		t.Errorf("bitrate = %v, want 150000", got.BitrateBps)
	}
	if got.Band != BandExcellent {
		t.Errorf("band = %v, want excellent", got.Band)
	}
}

func TestSampleZeroPacketDenominator(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1"}}}
	m := NewMonitor(src, nil, nil)

	got := m.Sample(time.Now())
	if got.PacketLossPct != 0 {
		t.Errorf("loss = %v%% with zero packets, want 0", got.PacketLossPct)
	}
}

func TestSampleStatsErrorRetainsPreviousMetrics(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1", JitterSec: 0.07}}}
	m := NewMonitor(src, nil, nil)

	t0 := time.Now()
	m.Sample(t0)
	first := m.Sample(t0.Add(2 * time.Second))
	if first.JitterSec != 0.07 {
		t.Fatalf("jitter = %v, want 0.07", first.JitterSec)
	}

	src.err = errors.New("stats unavailable")
	got := m.Sample(t0.Add(4 * time.Second))

	if got != first {
		t.Errorf("metrics after stats error = %+v, want retained %+v", got, first)
	}
	if m.Metrics().SampleCount != first.SampleCount {
		t.Error("failed tick must not advance the sample count")
	}
}

func TestSampleAudioLevelNormalized(t *testing.T) {
	// A constant half-scale signal has RMS 0.5, which normalizes to the
	// full level of 1.0.
	frame := make([]int16, 512)
	for i := range frame {
		frame[i] = 16384
	}
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1"}}}
	m := NewMonitor(src, &fixedProbe{frame: frame}, nil)

	got := m.Sample(time.Now())
	if got.AudioLevel < 0.99 || got.AudioLevel > 1.0 {
		t.Errorf("level = %v, want ~1.0", got.AudioLevel)
	}
}

func TestSampleCallbackInvoked(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1"}}}
	m := NewMonitor(src, nil, nil)

	var received []Metrics
	m.SetCallback(func(metrics Metrics) {
		received = append(received, metrics)
	})

	m.Sample(time.Now())
	m.Sample(time.Now().Add(time.Second))

	if len(received) != 2 {
		t.Errorf("callback invoked %d times, want 2", len(received))
	}
}

func TestStopClearsState(t *testing.T) {
	src := &scriptedSource{stats: []StreamStats{{StreamID: "s1", BytesReceived: 1000, JitterSec: 0.02}}}
	m := NewMonitor(src, nil, nil)
	m.SetInterval(time.Hour) // the loop never ticks during the test

	m.Start()
	if !m.IsRunning() {
		t.Fatal("monitor should be running")
	}
	m.Sample(time.Now())

	m.Stop()
	if m.IsRunning() {
		t.Error("monitor should be stopped")
	}
	if got := m.Metrics(); got != (Metrics{}) {
		t.Errorf("metrics after Stop = %+v, want zero value", got)
	}

	// A fresh start re-enters calibration: the first sample has no
	// prior snapshot to diff against.
	src.stats = []StreamStats{{StreamID: "s1", BytesReceived: 2000}}
	got := m.Sample(time.Now())
	if got.BitrateBps != 0 {
		t.Errorf("bitrate after restart = %v, want 0", got.BitrateBps)
	}
	if got.SampleCount != 1 {
		t.Errorf("SampleCount after restart = %d, want 1", got.SampleCount)
	}

	m.Stop() // stopping an idle monitor is a no-op
}

func TestStartIdempotent(t *testing.T) {
	src := &scriptedSource{}
	m := NewMonitor(src, nil, nil)
	m.SetInterval(time.Hour)

	m.Start()
	m.Start()
	if !m.IsRunning() {
		t.Error("monitor should be running")
	}
	m.Stop()
}
