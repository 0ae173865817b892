package record

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/audio"
)

// State describes the recording engine lifecycle.
type State uint8

const (
	// StateIdle means no recording has started.
	StateIdle State = iota
	// StateRecording means data is being captured.
	StateRecording
	// StatePaused means data emission is suspended but the graph is
	// intact.
	StatePaused
	// StateStopped means the recording finished and the artifact is
	// settled.
	StateStopped
)

// String returns the string representation of an engine state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ConsentFunc supplies the caller's recording consent decision. It may
// block (for example on a user prompt); a false result is a normal
// negative outcome, not an error.
type ConsentFunc func(ctx context.Context) (bool, error)

var (
	// ErrNotStarted is returned by Stop before any recording started.
	ErrNotStarted = errors.New("recording has not started")
	// ErrAlreadyStarted is returned by Start on a non-idle engine.
	ErrAlreadyStarted = errors.New("recording already started")
	// ErrConsentRequired is returned when no consent decision was
	// supplied.
	ErrConsentRequired = errors.New("recording requires a consent decision")
)

// defaultPumpInterval is the mix pump cadence.
const defaultPumpInterval = 20 * time.Millisecond

// defaultFrameSize is the interleaved stereo frame length per pump
// tick.
const defaultFrameSize = 2048

// Config describes the engine's graph endpoints and format.
type Config struct {
	// Master is the master output bus to tap.
	Master *audio.Bus
	// Mic is the live microphone input.
	Mic audio.FrameSource
	// Recorder is the underlying sink; nil uses the built-in WAV
	// recorder.
	Recorder Recorder
	// SampleRate is the context sample rate at record start.
	SampleRate uint32
	// FrameSize is the interleaved samples pulled per pump tick.
	FrameSize int
	// PumpInterval is the pump cadence.
	PumpInterval time.Duration
	// Time supplies wall-clock time; nil uses the real clock.
	Time TimeProvider
}

// Engine is the mix & record engine. It builds a temporary audio graph
// (master tap + microphone into a stereo mix bus feeding the recording
// sink and per-channel analysers), drives the underlying recorder, and
// exposes live level and waveform queries plus pause/resume/stop.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	state State
	tp    TimeProvider

	mix      *audio.Bus
	handles  []*audio.Handle
	left     *audio.Analyser
	right    *audio.Analyser
	recorder Recorder

	chunksMu sync.Mutex
	chunks   []Chunk

	startedAt time.Time
	artifact  *Artifact

	stop chan struct{}
	done chan struct{}

	// stopping marks a Stop in flight; settled closes once the artifact
	// is assembled so concurrent Stop calls can wait for it.
	stopping bool
	settled  chan struct{}
}

// NewEngine creates a recording engine over the given endpoints. No
// resources are allocated until Start obtains consent.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Master == nil {
		return nil, errors.New("master bus cannot be nil")
	}
	if cfg.SampleRate == 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = defaultFrameSize
	}
	if cfg.PumpInterval <= 0 {
		cfg.PumpInterval = defaultPumpInterval
	}

	tp := cfg.Time
	if tp == nil {
		tp = DefaultTimeProvider{}
	}

	return &Engine{
		cfg:   cfg,
		state: StateIdle,
		tp:    tp,
	}, nil
}

// CurrentState returns the engine lifecycle state.
func (e *Engine) CurrentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// StartedAt returns the wall-clock start of the current recording.
func (e *Engine) StartedAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.startedAt
}

// Start obtains the caller's consent decision and, if granted, builds
// the temporary graph and begins recording.
//
// Returns:
//   - bool: whether recording actually started; false with a nil error
//     means consent was declined, a normal negative outcome
//   - error: state or recorder failures
func (e *Engine) Start(ctx context.Context, consent ConsentFunc) (bool, error) {
	if consent == nil {
		return false, ErrConsentRequired
	}

	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return false, ErrAlreadyStarted
	}
	e.mu.Unlock()

	granted, err := consent(ctx)
	if err != nil {
		return false, fmt.Errorf("consent decision failed: %w", err)
	}
	if !granted {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Start",
		}).Info("Recording consent declined, no resources allocated")
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateIdle {
		return false, ErrAlreadyStarted
	}

	// Temporary graph: master tap + microphone -> stereo mix bus; the
	// mix bus feeds the recorder and the channel splitter analysers.
	e.mix = audio.NewBus("record-mix")
	e.handles = append(e.handles, e.mix.Attach(busTap{e.cfg.Master}))
	if e.cfg.Mic != nil {
		e.handles = append(e.handles, e.mix.Attach(e.cfg.Mic))
	}

	e.left = audio.NewAnalyser(0)
	e.right = audio.NewAnalyser(0)

	e.recorder = e.cfg.Recorder
	if e.recorder == nil {
		e.recorder = NewWAVRecorder(e.cfg.SampleRate, 2)
	}
	if err := e.recorder.Start(e.appendChunk); err != nil {
		e.disposeGraphLocked()
		return false, fmt.Errorf("failed to start recorder: %w", err)
	}

	e.startedAt = e.tp.Now()
	e.state = StateRecording
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	e.settled = make(chan struct{})

	logrus.WithFields(logrus.Fields{
		"function":    "Engine.Start",
		"sample_rate": e.cfg.SampleRate,
		"mime_type":   e.recorder.MimeType(),
	}).Info("Recording started")

	go e.pump(e.stop, e.done)

	return true, nil
}

// Pause suspends data emission without tearing down the graph. Pausing
// while already paused, or before recording, is a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRecording {
		return
	}
	e.state = StatePaused
	if err := e.recorder.Pause(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Pause",
			"error":    err.Error(),
		}).Warn("Recorder pause failed")
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Pause",
	}).Info("Recording paused")
}

// Resume continues a paused recording into the same artifact. Resuming
// while not paused is a no-op.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return
	}
	e.state = StateRecording
	if err := e.recorder.Resume(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Resume",
			"error":    err.Error(),
		}).Warn("Recorder resume failed")
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.Resume",
	}).Info("Recording resumed")
}

// Stop finishes the recording, disconnects the temporary graph and
// assembles all emitted chunks into one artifact. Stop is idempotent
// and safe to call concurrently: every call returns the same settled
// artifact. The reported
// duration is wall clock at stop minus wall clock at start; pause
// intervals are not excluded.
func (e *Engine) Stop() (*Artifact, error) {
	e.mu.Lock()
	if e.state == StateStopped {
		artifact := e.artifact
		e.mu.Unlock()
		return artifact, nil
	}
	if e.state == StateIdle {
		e.mu.Unlock()
		return nil, ErrNotStarted
	}
	if e.stopping {
		// Another Stop is already settling the artifact; wait for it
		// and return the same result.
		settled := e.settled
		e.mu.Unlock()
		<-settled

		e.mu.Lock()
		artifact := e.artifact
		e.mu.Unlock()
		return artifact, nil
	}
	e.stopping = true

	stop := e.stop
	done := e.done
	e.mu.Unlock()

	close(stop)
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.recorder.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Stop",
			"error":    err.Error(),
		}).Warn("Recorder stop failed, assembling available chunks")
	}

	e.disposeGraphLocked()

	e.artifact = e.assembleArtifact()
	e.state = StateStopped
	e.stopping = false
	close(e.settled)

	logrus.WithFields(logrus.Fields{
		"function":  "Engine.Stop",
		"bytes":     len(e.artifact.Bytes),
		"mime_type": e.artifact.MimeType,
		"duration":  e.artifact.Duration,
	}).Info("Recording stopped, artifact settled")

	return e.artifact, nil
}

// Levels returns the live per-channel level in decibels, computed from
// the splitter analysers and floored at the minimum displayable level.
func (e *Engine) Levels() (leftDB, rightDB float64) {
	e.mu.Lock()
	left, right := e.left, e.right
	e.mu.Unlock()

	if left == nil || right == nil {
		return audio.MinDB, audio.MinDB
	}
	return left.LevelDB(), right.LevelDB()
}

// Waveform returns the recent time-domain window of one channel
// (0 = left, 1 = right), or nil before recording starts.
func (e *Engine) Waveform(channel int) []int16 {
	e.mu.Lock()
	left, right := e.left, e.right
	e.mu.Unlock()

	switch {
	case channel == 0 && left != nil:
		return left.Waveform()
	case channel == 1 && right != nil:
		return right.Waveform()
	default:
		return nil
	}
}

// appendChunk collects a chunk emitted by the recorder.
func (e *Engine) appendChunk(c Chunk) {
	e.chunksMu.Lock()
	defer e.chunksMu.Unlock()

	e.chunks = append(e.chunks, c)
}

// assembleArtifact concatenates all emitted chunks into the final
// artifact. The MIME type is taken from the first non-empty chunk,
// falling back to the recorder default and then the generic audio
// type.
func (e *Engine) assembleArtifact() *Artifact {
	e.chunksMu.Lock()
	defer e.chunksMu.Unlock()

	var (
		total int
		mime  string
	)
	for _, c := range e.chunks {
		total += len(c.Data)
		if mime == "" && len(c.Data) > 0 && c.MimeType != "" {
			mime = c.MimeType
		}
	}
	if mime == "" {
		mime = e.recorder.MimeType()
	}
	if mime == "" {
		mime = genericMimeType
	}

	data := make([]byte, 0, total)
	for _, c := range e.chunks {
		data = append(data, c.Data...)
	}

	stoppedAt := e.tp.Now()
	return &Artifact{
		Bytes:      data,
		MimeType:   mime,
		CreatedAt:  e.startedAt,
		Duration:   stoppedAt.Sub(e.startedAt),
		SampleRate: e.cfg.SampleRate,
	}
}

// disposeGraphLocked disconnects every node of the temporary graph.
// Disposing already-disposed handles is harmless and swallowed.
func (e *Engine) disposeGraphLocked() {
	for _, h := range e.handles {
		h.Dispose()
	}
	e.handles = nil
}

// pump is the mix loop: it pulls one stereo frame per tick, feeds the
// channel splitter analysers, and forwards the frame to the recorder
// while recording. Liveness is checked every tick.
func (e *Engine) pump(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PumpInterval)
	defer ticker.Stop()

	frame := make([]int16, e.cfg.FrameSize)
	left := make([]int16, 0, e.cfg.FrameSize/2)
	right := make([]int16, 0, e.cfg.FrameSize/2)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := e.mix.ReadFrame(frame); err != nil {
				continue
			}

			// Channel splitter: even samples left, odd samples right.
			left = left[:0]
			right = right[:0]
			for i := 0; i+1 < len(frame); i += 2 {
				left = append(left, frame[i])
				right = append(right, frame[i+1])
			}
			e.left.Write(left)
			e.right.Write(right)

			e.mu.Lock()
			recording := e.state == StateRecording
			e.mu.Unlock()

			if recording {
				if err := e.recorder.WriteFrame(frame); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Engine.pump",
						"error":    err.Error(),
					}).Warn("Recorder write failed")
				}
			}
		}
	}
}

// busTap adapts a bus into a frame source so the mix bus can tap the
// master output.
type busTap struct {
	bus *audio.Bus
}

// ReadFrame implements audio.FrameSource.
func (t busTap) ReadFrame(buf []int16) (int, error) {
	return t.bus.ReadFrame(buf)
}
