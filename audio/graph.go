package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// State describes the lifecycle state of the process-wide audio graph.
type State uint8

const (
	// StateUninitialized means Init has not been called yet.
	StateUninitialized State = iota
	// StateSuspended means the graph exists but has not been resumed by a
	// user-triggered action.
	StateSuspended
	// StateRunning means the graph is processing audio.
	StateRunning
	// StateClosed means the graph has been shut down.
	StateClosed
)

// String returns the string representation of a graph state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Named auxiliary buses owned by the graph.
const (
	// BusMaster is the master output bus carrying the program mix.
	BusMaster = "master"
	// BusDuckingInput receives the speech-detection signal that drives
	// program ducking.
	BusDuckingInput = "ducking-input"
	// BusRemoteSpeech carries remote participant speech delivered by the
	// media link.
	BusRemoteSpeech = "remote-speech"
)

var (
	// ErrGraphClosed is returned for operations on a shut-down graph.
	ErrGraphClosed = errors.New("audio graph is closed")
	// ErrGraphNotInitialized is returned when no graph exists yet.
	ErrGraphNotInitialized = errors.New("audio graph is not initialized")
)

// Graph owns the process-wide audio processing context: a master output
// bus and the named auxiliary buses. Exactly one graph exists per
// process; it is created by Init and survives until Shutdown.
type Graph struct {
	mu         sync.RWMutex
	state      State
	sampleRate uint32
	buses      map[string]*Bus
}

var (
	graphMu      sync.Mutex
	defaultGraph *Graph
)

// Init creates the process-wide audio graph in the suspended state, or
// returns the existing graph if one is already alive. The caller must
// Resume the graph from a user-triggered action before audio flows.
//
// Parameters:
//   - sampleRate: processing sample rate in Hz (typically 48000)
//
// Returns:
//   - *Graph: the process-wide graph instance
//   - error: validation error for an invalid sample rate
func Init(sampleRate uint32) (*Graph, error) {
	if sampleRate == 0 {
		return nil, errors.New("sample rate must be positive")
	}

	graphMu.Lock()
	defer graphMu.Unlock()

	if defaultGraph != nil && defaultGraph.CurrentState() != StateClosed {
		logrus.WithFields(logrus.Fields{
			"function": "Init",
			"state":    defaultGraph.CurrentState().String(),
		}).Debug("Audio graph already initialized, reusing instance")
		return defaultGraph, nil
	}

	g := &Graph{
		state:      StateSuspended,
		sampleRate: sampleRate,
		buses: map[string]*Bus{
			BusMaster:       newBus(BusMaster),
			BusDuckingInput: newBus(BusDuckingInput),
			BusRemoteSpeech: newBus(BusRemoteSpeech),
		},
	}
	defaultGraph = g

	logrus.WithFields(logrus.Fields{
		"function":    "Init",
		"sample_rate": sampleRate,
	}).Info("Audio graph initialized in suspended state")

	return g, nil
}

// Get returns the process-wide graph, or nil if Init has not been
// called.
func Get() *Graph {
	graphMu.Lock()
	defer graphMu.Unlock()

	return defaultGraph
}

// Shutdown closes the process-wide graph and releases its buses. It is
// safe to call when no graph exists.
func Shutdown() {
	graphMu.Lock()
	g := defaultGraph
	graphMu.Unlock()

	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateClosed {
		return
	}
	g.state = StateClosed

	logrus.WithFields(logrus.Fields{
		"function": "Shutdown",
	}).Info("Audio graph shut down")
}

// CurrentState returns the lifecycle state of the graph.
func (g *Graph) CurrentState() State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state
}

// SampleRate returns the processing sample rate in Hz.
func (g *Graph) SampleRate() uint32 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.sampleRate
}

// Resume transitions the graph from suspended to running. The call must
// be driven by a user-triggered action; resuming an already-running
// graph is a no-op.
func (g *Graph) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateClosed:
		return ErrGraphClosed
	case StateRunning:
		return nil
	}

	g.state = StateRunning

	logrus.WithFields(logrus.Fields{
		"function": "Graph.Resume",
	}).Info("Audio graph resumed")

	return nil
}

// Bus returns the named bus, or an error if the graph is closed or the
// bus does not exist. Valid names are BusMaster, BusDuckingInput and
// BusRemoteSpeech.
func (g *Graph) Bus(name string) (*Bus, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.state == StateClosed {
		return nil, ErrGraphClosed
	}

	bus, ok := g.buses[name]
	if !ok {
		return nil, fmt.Errorf("unknown bus %q", name)
	}
	return bus, nil
}

// Master returns the master output bus.
func (g *Graph) Master() *Bus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.buses[BusMaster]
}

// Attach connects a source to the named bus and returns a disposable
// handle. The caller must invoke Dispose on all exit paths.
func (g *Graph) Attach(busName string, src FrameSource) (*Handle, error) {
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}

	bus, err := g.Bus(busName)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Graph.Attach",
		"bus":      busName,
	}).Debug("Attaching source to graph bus")

	return bus.attach(src), nil
}

// SetMasterGain sets the linear gain of the master bus. The master bus
// may be tapped by multiple readers concurrently, but gain mutation is
// the caller's responsibility to serialize.
func (g *Graph) SetMasterGain(gain float64) {
	g.Master().SetGain(gain)
}
