// Package quality turns raw media-link statistics into a stable
// user-facing quality signal.
//
// A Monitor samples an externally supplied statistics source and a
// local signal-level probe on a fixed period, derives bitrate deltas,
// packet-loss ratio and jitter, and discretizes the result into a
// quality band. The classification uses simple top-down thresholds
// rather than complex algorithms, following the same philosophy as the
// rest of the engine: actionable metrics, cheap to compute every tick.
package quality

import "fmt"

// Band is the discretized classification of link health.
type Band int

const (
	// BandExcellent indicates optimal link quality.
	BandExcellent Band = iota
	// BandGood indicates good link quality with minor issues.
	BandGood
	// BandFair indicates acceptable link quality with noticeable issues.
	BandFair
	// BandPoor indicates poor link quality with significant problems.
	BandPoor
)

// String returns the string representation of a quality band.
func (b Band) String() string {
	switch b {
	case BandExcellent:
		return "excellent"
	case BandGood:
		return "good"
	case BandFair:
		return "fair"
	case BandPoor:
		return "poor"
	default:
		return fmt.Sprintf("unknown(%d)", int(b))
	}
}

// Thresholds defines the band classification table. Rows are evaluated
// top-down and the first row whose every comparison passes wins;
// bitrate is compared strictly greater-than, loss and jitter strictly
// less-than.
type Thresholds struct {
	ExcellentBitrateBps float64
	ExcellentLossPct    float64
	ExcellentJitterSec  float64

	GoodBitrateBps float64
	GoodLossPct    float64
	GoodJitterSec  float64

	FairBitrateBps float64
	FairLossPct    float64
	FairJitterSec  float64
}

// DefaultThresholds returns the reference classification table.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		ExcellentBitrateBps: 100000,
		ExcellentLossPct:    1,
		ExcellentJitterSec:  0.03,

		GoodBitrateBps: 64000,
		GoodLossPct:    3,
		GoodJitterSec:  0.05,

		FairBitrateBps: 32000,
		FairLossPct:    5,
		FairJitterSec:  0.10,
	}
}

// Classify maps derived metrics onto a band using the table, evaluated
// top-down with strict comparisons. A bitrate of exactly the excellent
// threshold does not qualify as excellent.
func (t *Thresholds) Classify(bitrateBps, lossPct, jitterSec float64) Band {
	switch {
	case bitrateBps > t.ExcellentBitrateBps && lossPct < t.ExcellentLossPct && jitterSec < t.ExcellentJitterSec:
		return BandExcellent
	case bitrateBps > t.GoodBitrateBps && lossPct < t.GoodLossPct && jitterSec < t.GoodJitterSec:
		return BandGood
	case bitrateBps > t.FairBitrateBps && lossPct < t.FairLossPct && jitterSec < t.FairJitterSec:
		return BandFair
	default:
		return BandPoor
	}
}

// Metrics is the derived link-quality snapshot, recomputed every
// sampling tick and never persisted across link changes.
type Metrics struct {
	BitrateBps    float64
	PacketLossPct float64
	JitterSec     float64
	AudioLevel    float64
	Band          Band

	// SampleCount is the number of sampling ticks taken since Start.
	SampleCount int
}

// Calibrating reports whether the consumer should show a calibrating
// state instead of the band: fewer than two samples taken and bitrate,
// loss and jitter all exactly zero. This suppresses false poor readings
// before the first real sample pair exists.
func (m Metrics) Calibrating() bool {
	return m.SampleCount < 2 &&
		m.BitrateBps == 0 && m.PacketLossPct == 0 && m.JitterSec == 0
}
