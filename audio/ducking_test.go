package audio

import (
	"math"
	"testing"
	"time"
)

func TestDuckingConfigDefaults(t *testing.T) {
	cfg := DuckingConfig{}.withDefaults()

	if cfg.ThresholdDB != DefaultThresholdDB {
		t.Errorf("ThresholdDB = %v, want %v", cfg.ThresholdDB, DefaultThresholdDB)
	}
	if cfg.ReduceDB != DefaultReduceDB {
		t.Errorf("ReduceDB = %v, want %v", cfg.ReduceDB, DefaultReduceDB)
	}
	if cfg.AttackMs != DefaultAttackMs {
		t.Errorf("AttackMs = %v, want %v", cfg.AttackMs, DefaultAttackMs)
	}
	if cfg.ReleaseMs != DefaultReleaseMs {
		t.Errorf("ReleaseMs = %v, want %v", cfg.ReleaseMs, DefaultReleaseMs)
	}
}

func TestDuckingConfigOverrides(t *testing.T) {
	cfg := DuckingConfig{
		ThresholdDB: -40,
		ReduceDB:    -12,
		AttackMs:    10,
		ReleaseMs:   500,
	}.withDefaults()

	if cfg.ThresholdDB != -40 || cfg.ReduceDB != -12 || cfg.AttackMs != 10 || cfg.ReleaseMs != 500 {
		t.Errorf("overrides not preserved: %+v", cfg)
	}
}

func TestAdvanceApproachesReducedGain(t *testing.T) {
	d := NewDucker(NewBus("in"), NewBus("out"))
	cfg := DuckingConfig{}.withDefaults()
	target := DBToLinear(cfg.ReduceDB)

	prev := d.CurrentGain()
	for i := 0; i < 200; i++ {
		// Loud speech, well above the -50 dB threshold.
		gain := d.advance(-20, 25*time.Millisecond, cfg)

		// Exponential approach: each step lies strictly between the
		// previous gain and the target until they coincide.
		if gain >= prev && math.Abs(prev-target) > 1e-9 {
			t.Fatalf("step %d: gain %v did not decrease from %v", i, gain, prev)
		}
		if gain < target-1e-12 {
			t.Fatalf("step %d: gain %v overshot target %v", i, gain, target)
		}
		prev = gain
	}

	if math.Abs(prev-target) > 0.001 {
		t.Errorf("gain %v did not converge to reduced target %v", prev, target)
	}
}

func TestAdvanceReleasesToUnity(t *testing.T) {
	d := NewDucker(NewBus("in"), NewBus("out"))
	cfg := DuckingConfig{}.withDefaults()

	// Drive the gain down first.
	for i := 0; i < 100; i++ {
		d.advance(-20, 25*time.Millisecond, cfg)
	}
	ducked := d.CurrentGain()
	if ducked >= 1.0 {
		t.Fatalf("gain %v should be reduced before release", ducked)
	}

	prev := ducked
	for i := 0; i < 400; i++ {
		// Silence, below threshold.
		gain := d.advance(MinDB, 25*time.Millisecond, cfg)
		if gain <= prev-1e-12 {
			t.Fatalf("step %d: gain %v did not rise from %v", i, gain, prev)
		}
		if gain > 1.0 {
			t.Fatalf("step %d: gain %v overshot unity", i, gain)
		}
		prev = gain
	}

	if math.Abs(prev-1.0) > 0.001 {
		t.Errorf("gain %v did not release back to unity", prev)
	}
}

func TestAdvanceNeverJumps(t *testing.T) {
	d := NewDucker(NewBus("in"), NewBus("out"))
	cfg := DuckingConfig{}.withDefaults()
	target := DBToLinear(cfg.ReduceDB)

	// A single step from unity with loud speech must not land on the
	// target directly.
	gain := d.advance(0, 25*time.Millisecond, cfg)
	if gain <= target || gain >= 1.0 {
		t.Errorf("single step gain %v should lie strictly between %v and 1.0", gain, target)
	}
}

func TestAdvanceThresholdIsStrict(t *testing.T) {
	d := NewDucker(NewBus("in"), NewBus("out"))
	cfg := DuckingConfig{}.withDefaults()

	// A level exactly at the threshold does not trigger ducking.
	gain := d.advance(cfg.ThresholdDB, 25*time.Millisecond, cfg)
	if gain != 1.0 {
		t.Errorf("gain = %v at threshold level, want 1.0", gain)
	}
}

func TestDuckerStartStop(t *testing.T) {
	input := NewBus("in")
	program := NewBus("out")
	d := NewDucker(input, program)

	if err := d.Start(DuckingConfig{Interval: time.Millisecond}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.IsRunning() {
		t.Error("ducker should report running")
	}
	if err := d.Start(DuckingConfig{}); err != ErrDuckerRunning {
		t.Errorf("second Start returned %v, want ErrDuckerRunning", err)
	}

	d.Stop()
	if d.IsRunning() {
		t.Error("ducker should be stopped")
	}
	if program.Gain() != 1.0 {
		t.Errorf("program gain = %v after Stop, want 1.0", program.Gain())
	}
	if d.CurrentGain() != 1.0 {
		t.Errorf("ducker gain = %v after Stop, want 1.0", d.CurrentGain())
	}

	// Stopping an idle engine is a no-op.
	d.Stop()
}
