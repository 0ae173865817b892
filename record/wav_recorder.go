package record

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/audio"
)

// Recorder is the underlying chunked recording sink driven by the mix
// engine. Implementations emit encoded data through the chunk handler
// supplied to Start; Stop must flush any buffered data before
// returning.
type Recorder interface {
	// Start begins a recording run, delivering encoded chunks to
	// onChunk.
	Start(onChunk func(Chunk)) error

	// WriteFrame feeds one frame of interleaved stereo PCM.
	WriteFrame(pcm []int16) error

	// Pause suspends data emission without ending the run.
	Pause() error

	// Resume continues a paused run.
	Resume() error

	// Stop ends the run and flushes remaining data.
	Stop() error

	// MimeType reports the recorder's default container MIME type.
	MimeType() string
}

// WAVRecorder is the built-in Recorder. It accumulates PCM16 frames and
// flushes a single WAV container chunk on Stop.
type WAVRecorder struct {
	mu         sync.Mutex
	sampleRate uint32
	channels   uint8
	samples    []int16
	onChunk    func(Chunk)
	started    bool
	paused     bool
}

// NewWAVRecorder creates a WAV recorder for the given stream format.
func NewWAVRecorder(sampleRate uint32, channels uint8) *WAVRecorder {
	return &WAVRecorder{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Start implements Recorder.
func (w *WAVRecorder) Start(onChunk func(Chunk)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return errors.New("wav recorder already started")
	}
	w.started = true
	w.paused = false
	w.onChunk = onChunk
	w.samples = w.samples[:0]

	logrus.WithFields(logrus.Fields{
		"function":    "WAVRecorder.Start",
		"sample_rate": w.sampleRate,
		"channels":    w.channels,
	}).Info("WAV recorder started")

	return nil
}

// WriteFrame implements Recorder. Frames written while paused are
// dropped.
func (w *WAVRecorder) WriteFrame(pcm []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return errors.New("wav recorder not started")
	}
	if w.paused {
		return nil
	}

	w.samples = append(w.samples, pcm...)
	return nil
}

// Pause implements Recorder.
func (w *WAVRecorder) Pause() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.paused = true
	return nil
}

// Resume implements Recorder.
func (w *WAVRecorder) Resume() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.paused = false
	return nil
}

// Stop implements Recorder, flushing all accumulated samples as one
// WAV container chunk. Stopping an already-stopped recorder is a no-op.
func (w *WAVRecorder) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return nil
	}
	w.started = false

	if w.onChunk != nil {
		w.onChunk(Chunk{
			Data:     audio.EncodeWAV(w.samples, w.sampleRate, w.channels),
			MimeType: w.MimeType(),
		})
	}

	logrus.WithFields(logrus.Fields{
		"function": "WAVRecorder.Stop",
		"samples":  len(w.samples),
	}).Info("WAV recorder stopped and flushed")

	return nil
}

// MimeType implements Recorder.
func (w *WAVRecorder) MimeType() string {
	return "audio/wav"
}
