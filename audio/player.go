// Program playback of manifest assets onto the master bus.
package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// crossfadeStep is the gain update cadence during a crossfade.
const crossfadeStep = 20 * time.Millisecond

// Player drives decoded asset buffers onto a program bus. Each playing
// asset is an independent source with its own gain; crossfades move a
// pair of gains along a smoothstep curve.
type Player struct {
	mu      sync.Mutex
	bus     *Bus
	playing map[string]*playback
	closed  bool
}

// playback tracks one playing asset.
type playback struct {
	src    *bufferSource
	handle *Handle
}

// NewPlayer creates a player that attaches its sources to bus.
func NewPlayer(bus *Bus) *Player {
	return &Player{
		bus:     bus,
		playing: make(map[string]*playback),
	}
}

// Play starts playback of a decoded buffer under the given asset id.
// Restarting an already-playing id replaces the previous source.
func (p *Player) Play(id string, buf *Buffer) error {
	if buf == nil || len(buf.Samples) == 0 {
		return fmt.Errorf("asset %q has no decoded audio", id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("player is closed")
	}

	if prev, ok := p.playing[id]; ok {
		prev.handle.Dispose()
		delete(p.playing, id)
	}

	src := newBufferSource(buf)
	p.playing[id] = &playback{
		src:    src,
		handle: p.bus.attach(src),
	}

	logrus.WithFields(logrus.Fields{
		"function": "Player.Play",
		"asset_id": id,
		"duration": buf.Duration(),
	}).Info("Asset playback started")

	return nil
}

// Stop halts playback of an asset. Stopping an id that is not playing
// is a no-op.
func (p *Player) Stop(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pb, ok := p.playing[id]
	if !ok {
		return
	}

	pb.handle.Dispose()
	delete(p.playing, id)

	logrus.WithFields(logrus.Fields{
		"function": "Player.Stop",
		"asset_id": id,
	}).Info("Asset playback stopped")
}

// SetGain sets the playback gain of an asset in decibels.
func (p *Player) SetGain(id string, gainDB float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pb, ok := p.playing[id]
	if !ok {
		return fmt.Errorf("asset %q is not playing", id)
	}

	pb.src.setGain(DBToLinear(gainDB))
	return nil
}

// IsPlaying reports whether the asset id currently has a live source.
func (p *Player) IsPlaying(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	pb, ok := p.playing[id]
	return ok && !pb.handle.Disposed()
}

// Crossfade fades the from asset out and the to asset in over the given
// duration using a smoothstep curve, then stops the from asset. The to
// asset must already be decoded; it starts at zero gain.
func (p *Player) Crossfade(fromID, toID string, buf *Buffer, duration time.Duration) error {
	if duration <= 0 {
		duration = time.Second
	}

	p.mu.Lock()
	from, ok := p.playing[fromID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("asset %q is not playing", fromID)
	}

	if err := p.Play(toID, buf); err != nil {
		return err
	}

	p.mu.Lock()
	to := p.playing[toID]
	p.mu.Unlock()
	to.src.setGain(0)

	logrus.WithFields(logrus.Fields{
		"function": "Player.Crossfade",
		"from":     fromID,
		"to":       toID,
		"duration": duration,
	}).Info("Crossfade started")

	go p.runCrossfade(fromID, from, to, duration)

	return nil
}

// runCrossfade steps both gains along the smoothstep curve.
func (p *Player) runCrossfade(fromID string, from, to *playback, duration time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(crossfadeStep)
	defer ticker.Stop()

	for range ticker.C {
		progress := float64(time.Since(start)) / float64(duration)
		gain := Smoothstep(progress)
		from.src.setGain(1 - gain)
		to.src.setGain(gain)

		if progress >= 1 {
			break
		}
	}

	p.Stop(fromID)
}

// Close stops all playback and rejects further use.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, pb := range p.playing {
		pb.handle.Dispose()
		delete(p.playing, id)
	}
	p.closed = true
}

// Smoothstep returns the smoothstep interpolation 3t^2 - 2t^3 for t
// clamped to [0,1]. Used as the crossfade gain curve.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// bufferSource plays a decoded buffer front to back with a mutable
// linear gain, reporting io.EOF once exhausted.
type bufferSource struct {
	mu   sync.Mutex
	buf  *Buffer
	pos  int
	gain float64
}

func newBufferSource(buf *Buffer) *bufferSource {
	return &bufferSource{buf: buf, gain: 1.0}
}

func (s *bufferSource) setGain(gain float64) {
	s.mu.Lock()
	s.gain = gain
	s.mu.Unlock()
}

// ReadFrame implements FrameSource.
func (s *bufferSource) ReadFrame(out []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.buf.Samples) {
		return 0, io.EOF
	}

	count := len(out)
	if remaining := len(s.buf.Samples) - s.pos; remaining < count {
		count = remaining
	}

	for i := 0; i < count; i++ {
		out[i] = clampSample(float64(s.buf.Samples[s.pos+i]) * s.gain)
	}
	s.pos += count

	return count, nil
}
