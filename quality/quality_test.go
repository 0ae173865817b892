package quality

import "testing"

func TestClassifyBands(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		bitrate float64
		loss    float64
		jitter  float64
		want    Band
	}{
		{"excellent", 150000, 0.5, 0.01, BandExcellent},
		{"good", 80000, 2, 0.04, BandGood},
		{"fair", 40000, 4, 0.08, BandFair},
		{"poor low bitrate", 10000, 0, 0, BandPoor},
		{"poor high loss", 200000, 50, 0, BandPoor},
		{"loss drags excellent to good", 150000, 2, 0.01, BandGood},
		{"jitter drags good to fair", 80000, 2, 0.08, BandFair},
	}

	for _, tt := range tests {
		if got := th.Classify(tt.bitrate, tt.loss, tt.jitter); got != tt.want {
			t.Errorf("%s: Classify(%v, %v, %v) = %v, want %v",
				tt.name, tt.bitrate, tt.loss, tt.jitter, got, tt.want)
		}
	}
}

func TestClassifyBoundariesAreStrict(t *testing.T) {
	th := DefaultThresholds()

	// Exactly at a boundary never qualifies for the higher band: the
	// comparisons are strictly greater (bitrate) and strictly less
	// (loss, jitter).
	if got := th.Classify(100000, 0.5, 0.01); got == BandExcellent {
		t.Error("bitrate exactly 100000 must not classify as excellent")
	}
	if got := th.Classify(150000, 1, 0.01); got == BandExcellent {
		t.Error("loss exactly 1%% must not classify as excellent")
	}
	if got := th.Classify(150000, 0.5, 0.03); got == BandExcellent {
		t.Error("jitter exactly 0.03s must not classify as excellent")
	}
	if got := th.Classify(64000, 2, 0.04); got == BandGood {
		t.Error("bitrate exactly 64000 must not classify as good")
	}
	if got := th.Classify(32000, 4, 0.08); got == BandFair {
		t.Error("bitrate exactly 32000 must not classify as fair")
	}
}

func TestClassifyMonotonic(t *testing.T) {
	th := DefaultThresholds()

	// Raising bitrate with everything else fixed never worsens the band.
	// Bands are ordered excellent < good < fair < poor numerically.
	prev := BandPoor
	for bitrate := 0.0; bitrate <= 200000; bitrate += 1000 {
		band := th.Classify(bitrate, 0.5, 0.01)
		if band > prev {
			t.Fatalf("band worsened from %v to %v at bitrate %v", prev, band, bitrate)
		}
		prev = band
	}
}

func TestBandString(t *testing.T) {
	tests := []struct {
		band Band
		want string
	}{
		{BandExcellent, "excellent"},
		{BandGood, "good"},
		{BandFair, "fair"},
		{BandPoor, "poor"},
	}
	for _, tt := range tests {
		if got := tt.band.String(); got != tt.want {
			t.Errorf("Band(%d).String() = %q, want %q", tt.band, got, tt.want)
		}
	}
}

func TestCalibrating(t *testing.T) {
	tests := []struct {
		name string
		m    Metrics
		want bool
	}{
		{"no samples all zero", Metrics{SampleCount: 0}, true},
		{"one sample all zero", Metrics{SampleCount: 1}, true},
		{"two samples all zero", Metrics{SampleCount: 2}, false},
		{"one sample with bitrate", Metrics{SampleCount: 1, BitrateBps: 100}, false},
		{"one sample with loss", Metrics{SampleCount: 1, PacketLossPct: 1}, false},
		{"one sample with jitter", Metrics{SampleCount: 1, JitterSec: 0.01}, false},
	}

	for _, tt := range tests {
		if got := tt.m.Calibrating(); got != tt.want {
			t.Errorf("%s: Calibrating() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
