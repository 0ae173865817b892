// Speech ducking for the program mix.
//
// The ducker is a continuous envelope follower over the speech-detection
// bus: each tick it measures the RMS level of the detection signal and
// smoothly moves the program gain between its normal and reduced values.
// Smoothing is an exponential approach to the target, never a jump, so
// gain changes stay click-free.
package audio

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Ducking parameter defaults. All are overridable per Start call.
const (
	// DefaultThresholdDB is the speech-detection level above which the
	// program mix is reduced.
	DefaultThresholdDB = -50.0
	// DefaultReduceDB is the attenuated program level during speech.
	DefaultReduceDB = -9.0
	// DefaultAttackMs is the attack time constant in milliseconds.
	DefaultAttackMs = 50.0
	// DefaultReleaseMs is the release time constant in milliseconds.
	DefaultReleaseMs = 300.0
	// defaultDuckInterval is the envelope sampling cadence.
	defaultDuckInterval = 25 * time.Millisecond
	// duckFrameSize is the fixed detection frame size in samples.
	duckFrameSize = 1024
)

// ErrDuckerRunning is returned when Start is called on a running ducker.
var ErrDuckerRunning = errors.New("ducking engine already running")

// DuckingConfig carries the tunable parameters of the ducking engine.
// Zero values fall back to the package defaults.
type DuckingConfig struct {
	ThresholdDB float64
	ReduceDB    float64
	AttackMs    float64
	ReleaseMs   float64
	Interval    time.Duration
}

// withDefaults fills unset fields with the package defaults.
func (c DuckingConfig) withDefaults() DuckingConfig {
	if c.ThresholdDB == 0 {
		c.ThresholdDB = DefaultThresholdDB
	}
	if c.ReduceDB == 0 {
		c.ReduceDB = DefaultReduceDB
	}
	if c.AttackMs <= 0 {
		c.AttackMs = DefaultAttackMs
	}
	if c.ReleaseMs <= 0 {
		c.ReleaseMs = DefaultReleaseMs
	}
	if c.Interval <= 0 {
		c.Interval = defaultDuckInterval
	}
	return c
}

// Ducker reactively attenuates a program bus in response to detected
// speech on an input bus. It runs indefinitely until Stop is called.
type Ducker struct {
	mu      sync.Mutex
	input   *Bus
	program *Bus
	config  DuckingConfig
	gain    float64
	running bool
	stop    chan struct{}
	done    chan struct{}
	frame   []int16
}

// NewDucker creates a ducking engine that reads the speech-detection
// signal from input and applies the resulting gain to program.
func NewDucker(input, program *Bus) *Ducker {
	return &Ducker{
		input:   input,
		program: program,
		gain:    1.0,
		frame:   make([]int16, duckFrameSize),
	}
}

// Start begins the envelope loop with the given configuration. Zero
// config fields use the package defaults. Start fails if the engine is
// already running.
func (d *Ducker) Start(cfg DuckingConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDuckerRunning
	}

	d.config = cfg.withDefaults()
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function":     "Ducker.Start",
		"threshold_db": d.config.ThresholdDB,
		"reduce_db":    d.config.ReduceDB,
		"attack_ms":    d.config.AttackMs,
		"release_ms":   d.config.ReleaseMs,
		"interval":     d.config.Interval,
	}).Info("Ducking engine started")

	go d.run(d.stop, d.done, d.config)

	return nil
}

// Stop halts the envelope loop and restores the program gain to normal.
// Stopping an idle engine is a no-op.
func (d *Ducker) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop := d.stop
	done := d.done
	d.mu.Unlock()

	close(stop)
	<-done

	d.mu.Lock()
	d.gain = 1.0
	d.mu.Unlock()
	d.program.SetGain(1.0)

	logrus.WithFields(logrus.Fields{
		"function": "Ducker.Stop",
	}).Info("Ducking engine stopped")
}

// IsRunning reports whether the envelope loop is active.
func (d *Ducker) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.running
}

// Config returns the effective configuration of the current or most
// recent run, with defaults filled in.
func (d *Ducker) Config() DuckingConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.config
}

// CurrentGain returns the gain currently applied to the program bus.
func (d *Ducker) CurrentGain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.gain
}

// run is the envelope loop. It checks liveness on every tick.
func (d *Ducker) run(stop, done chan struct{}, cfg DuckingConfig) {
	defer close(done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.tick(cfg)
		}
	}
}

// tick performs one envelope step: measure, choose target, approach.
func (d *Ducker) tick(cfg DuckingConfig) {
	d.mu.Lock()
	frame := d.frame
	d.mu.Unlock()

	if _, err := d.input.ReadFrame(frame); err != nil {
		// Transient read failure keeps the previous gain.
		return
	}

	levelDB := LinearToDB(RMS(frame))
	gain := d.advance(levelDB, cfg.Interval, cfg)
	d.program.SetGain(gain)
}

// advance moves the gain one step toward its target and returns the new
// value. When the detection level exceeds the threshold the target is
// the reduced gain reached with the attack time constant; otherwise the
// target is unity gain reached with the release time constant. The step
// is an exponential approach: the new gain always lies strictly between
// the previous gain and the target (until they coincide).
func (d *Ducker) advance(levelDB float64, dt time.Duration, cfg DuckingConfig) float64 {
	var (
		target float64
		tauMs  float64
	)
	if levelDB > cfg.ThresholdDB {
		target = DBToLinear(cfg.ReduceDB)
		tauMs = cfg.AttackMs
	} else {
		target = 1.0
		tauMs = cfg.ReleaseMs
	}

	alpha := 1.0 - math.Exp(-float64(dt.Milliseconds())/tauMs)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.gain += (target - d.gain) * alpha

	logrus.WithFields(logrus.Fields{
		"function": "Ducker.advance",
		"level_db": levelDB,
		"target":   target,
		"gain":     d.gain,
	}).Trace("Ducking envelope advanced")

	return d.gain
}
