package navigator

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/asset"
	"github.com/abehlok2/Navigator-sub002/audio"
	"github.com/abehlok2/Navigator-sub002/config"
	"github.com/abehlok2/Navigator-sub002/quality"
	"github.com/abehlok2/Navigator-sub002/record"
	"github.com/abehlok2/Navigator-sub002/transport"
)

// Role identifies what a session endpoint does.
type Role uint8

const (
	// RoleFacilitator authors the manifest and drives remote playback.
	RoleFacilitator Role = iota
	// RoleExplorer receives the manifest and follows transport commands.
	RoleExplorer
	// RoleListener observes the session without a manifest of its own.
	RoleListener
)

// String returns a human-readable role name.
func (r Role) String() string {
	switch r {
	case RoleFacilitator:
		return "facilitator"
	case RoleExplorer:
		return "explorer"
	case RoleListener:
		return "listener"
	default:
		return "unknown"
	}
}

// Options configures a new Session.
type Options struct {
	// Role selects facilitator, explorer, or listener behavior.
	Role Role

	// PeerID is this endpoint's stable identity. Empty falls back to
	// the attached channel's id.
	PeerID transport.PeerID

	// SampleRate is the audio graph sample rate in Hz.
	SampleRate uint32

	// QualityInterval overrides the link-quality sampling interval.
	// Zero keeps the monitor default.
	QualityInterval time.Duration

	// Ducking supplies session-level ducking defaults. Zero fields in
	// an incoming audio.ducking command fall back to these before the
	// package defaults apply.
	Ducking audio.DuckingConfig

	// RecordPumpInterval and RecordFrameSize tune the recording pump.
	// Zero keeps the engine defaults.
	RecordPumpInterval time.Duration
	RecordFrameSize    int

	// TimeProvider supplies wall-clock time to the recording engine.
	// Nil uses the real clock.
	TimeProvider record.TimeProvider
}

// NewOptions creates an Options struct with default settings.
//
// Returns:
//   - *Options: Options with explorer role and 48 kHz audio.
func NewOptions() *Options {
	return &Options{
		Role:       RoleExplorer,
		SampleRate: 48000,
	}
}

// OptionsFromConfig maps a loaded configuration onto session options.
// The role and peer identity are runtime decisions and stay at their
// defaults.
//
// Parameters:
//   - cfg: A validated configuration, typically from config.Load
//
// Returns:
//   - *Options: Options carrying the configured tuning values
func OptionsFromConfig(cfg *config.Config) *Options {
	options := NewOptions()
	options.SampleRate = cfg.Audio.SampleRate
	options.QualityInterval = cfg.Quality.SampleInterval
	options.Ducking = audio.DuckingConfig{
		ThresholdDB: cfg.Ducking.ThresholdDB,
		ReduceDB:    cfg.Ducking.ReduceDB,
		AttackMs:    cfg.Ducking.AttackMs,
		ReleaseMs:   cfg.Ducking.ReleaseMs,
	}
	options.RecordPumpInterval = cfg.Record.PumpInterval
	options.RecordFrameSize = cfg.Record.FrameSize
	return options
}

// ErrNoChannel is returned by operations that require an attached
// control channel.
var ErrNoChannel = errors.New("no control channel attached")

// Session is a live Navigator session endpoint. It owns the audio
// graph wiring, the asset store and reconciler, the playback engine,
// and the ducking automation, and translates control-channel messages
// into local actions.
type Session struct {
	mu sync.RWMutex

	role    Role
	options *Options

	graph      *audio.Graph
	store      *asset.Store
	reconciler *asset.Reconciler
	player     *audio.Player
	ducker     *audio.Ducker
	speech     *audio.Analyser

	channel transport.Channel
	killed  bool
}

// New creates a Session from the given options, initializing the
// process-wide audio graph if necessary.
//
// Parameters:
//   - options: Session configuration (nil uses NewOptions defaults)
//
// Returns:
//   - *Session: The created session
//   - error: Any error during setup
func New(options *Options) (*Session, error) {
	if options == nil {
		options = NewOptions()
	}
	if options.SampleRate == 0 {
		options.SampleRate = 48000
	}

	graph, err := audio.Init(options.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio graph: %w", err)
	}

	duckInput, err := graph.Bus(audio.BusDuckingInput)
	if err != nil {
		return nil, err
	}

	store := asset.NewStore()
	s := &Session{
		role:       options.Role,
		options:    options,
		graph:      graph,
		store:      store,
		reconciler: asset.NewReconciler(store, nil, options.Role == RoleFacilitator),
		player:     audio.NewPlayer(graph.Master()),
		ducker:     audio.NewDucker(duckInput, graph.Master()),
		speech:     audio.NewAnalyser(0),
	}
	s.reconciler.AttachSender(s)

	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"role":        options.Role.String(),
		"sample_rate": options.SampleRate,
	}).Info("Navigator session created")

	return s, nil
}

// Role returns the session's role.
func (s *Session) Role() Role {
	return s.role
}

// PeerID returns this endpoint's stable identity: the configured peer
// id when one was set, otherwise the attached channel's id.
func (s *Session) PeerID() transport.PeerID {
	if s.options.PeerID != "" {
		return s.options.PeerID
	}
	if ch := s.currentChannel(); ch != nil {
		return ch.PeerID()
	}
	return ""
}

// Graph returns the audio graph the session was built on. Callers
// attach their remote-speech and microphone sources here.
func (s *Session) Graph() *audio.Graph {
	return s.graph
}

// Player returns the playback engine driving the master bus.
func (s *Session) Player() *audio.Player {
	return s.player
}

// Ducker returns the speech-ducking automation.
func (s *Session) Ducker() *audio.Ducker {
	return s.ducker
}

// Reconciler returns the asset reconciler.
func (s *Session) Reconciler() *asset.Reconciler {
	return s.reconciler
}

// OnRemoteFrame feeds a decoded remote-speech PCM frame into the
// session's speech analyser. The same frames should also reach the
// ducking-input bus through an attached source.
func (s *Session) OnRemoteFrame(samples []int16) {
	s.speech.Write(samples)
}

// SpeechLevelDB returns the current remote-speech level in dBFS.
func (s *Session) SpeechLevelDB() float64 {
	return s.speech.LevelDB()
}

// QualityMonitor builds a link-quality monitor for the given stats
// source, using the session's speech analyser as the level probe.
func (s *Session) QualityMonitor(source quality.StatsSource) *quality.Monitor {
	m := quality.NewMonitor(source, s.speech, nil)
	if s.options.QualityInterval > 0 {
		m.SetInterval(s.options.QualityInterval)
	}
	return m
}

// RecordEngine builds a mix-recording engine tapping the session's
// master bus, optionally mixing in a local microphone source. Pump
// tuning and the clock come from the session options.
func (s *Session) RecordEngine(mic audio.FrameSource) (*record.Engine, error) {
	return record.NewEngine(record.Config{
		Master:       s.graph.Master(),
		Mic:          mic,
		SampleRate:   s.graph.SampleRate(),
		FrameSize:    s.options.RecordFrameSize,
		PumpInterval: s.options.RecordPumpInterval,
		Time:         s.options.TimeProvider,
	})
}

// AttachChannel installs the control channel and registers handlers
// for every session message type. Any previously attached channel is
// replaced without being closed.
func (s *Session) AttachChannel(ch transport.Channel) {
	s.mu.Lock()
	s.channel = ch
	s.mu.Unlock()

	ch.RegisterHandler(transport.MessageAssetManifest, s.handleManifest)
	ch.RegisterHandler(transport.MessageAssetPresence, s.handlePresence)
	ch.RegisterHandler(transport.MessageAssetLoad, s.handleLoad)
	ch.RegisterHandler(transport.MessageAssetUnload, s.handleUnload)
	ch.RegisterHandler(transport.MessageTransportPlay, s.handlePlay)
	ch.RegisterHandler(transport.MessageTransportStop, s.handleStop)
	ch.RegisterHandler(transport.MessageTransportSetGain, s.handleSetGain)
	ch.RegisterHandler(transport.MessageTransportCrossfade, s.handleCrossfade)
	ch.RegisterHandler(transport.MessageAudioDucking, s.handleDucking)

	logrus.WithFields(logrus.Fields{
		"function": "Session.AttachChannel",
		"peer_id":  ch.PeerID(),
	}).Info("Control channel attached")
}

// currentChannel returns the attached channel, or nil.
func (s *Session) currentChannel() transport.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.channel
}

// SendPresence implements asset.PresenceSender. Presence reports are
// best-effort.
func (s *Session) SendPresence(have, missing []string) error {
	ch := s.currentChannel()
	if ch == nil {
		return ErrNoChannel
	}

	msg, err := transport.NewMessage(transport.MessageAssetPresence, transport.PresencePayload{
		Have:    have,
		Missing: missing,
	})
	if err != nil {
		return err
	}
	return ch.SendUnreliable(msg)
}

// ValidateDraft checks a draft manifest and returns all issues found.
// An empty result means the draft is broadcastable.
func (s *Session) ValidateDraft(draft []asset.Entry) asset.ValidationIssues {
	return asset.Validate(draft)
}

// DiffDraft compares a draft manifest against the currently applied
// manifest.
func (s *Session) DiffDraft(draft []asset.Entry) asset.DiffResult {
	return asset.Diff(s.reconciler.Entries(), draft)
}

// BroadcastManifest validates a draft, sends it to the peer, and
// applies it locally. Validation failures and an unavailable channel
// both leave the applied manifest unchanged.
//
// Parameters:
//   - draft: The manifest entries to broadcast
//
// Returns:
//   - error: Validation issues, ErrNoChannel, or a send failure
func (s *Session) BroadcastManifest(draft []asset.Entry) error {
	if issues := asset.Validate(draft); len(issues) > 0 {
		return fmt.Errorf("manifest validation failed: %w", issues.Err())
	}

	ch := s.currentChannel()
	if ch == nil {
		return fmt.Errorf("cannot broadcast manifest: %w", ErrNoChannel)
	}

	msg, err := transport.NewMessage(transport.MessageAssetManifest, draft)
	if err != nil {
		return err
	}
	if err := ch.Send(msg); err != nil {
		return fmt.Errorf("failed to send manifest: %w", err)
	}

	s.reconciler.Apply(draft)

	logrus.WithFields(logrus.Fields{
		"function": "Session.BroadcastManifest",
		"entries":  len(draft),
	}).Info("Manifest broadcast")

	return nil
}

// IngestFiles matches raw payloads against the applied manifest by
// content hash and loads the ones that match.
func (s *Session) IngestFiles(payloads []asset.Payload) asset.IngestReport {
	return s.reconciler.Ingest(payloads)
}

// Presence returns this endpoint's have/missing partition of the
// applied manifest.
func (s *Session) Presence() (have, missing []string) {
	return s.reconciler.Presence()
}

// PeerPresence returns the last reported have/missing partition for a
// peer. Unreported ids count as missing.
func (s *Session) PeerPresence(peer transport.PeerID) (have, missing []string) {
	return s.reconciler.RemotePresence(string(peer))
}

// OnLinkLost clears the remote presence view for a disconnected peer.
// The local store and manifest are unaffected.
func (s *Session) OnLinkLost(peer transport.PeerID) {
	s.reconciler.ClearPeer(string(peer))

	logrus.WithFields(logrus.Fields{
		"function": "Session.OnLinkLost",
		"peer_id":  peer,
	}).Info("Peer link lost, presence cleared")
}

// Play starts local playback of a loaded asset and relays the command
// to the peer.
func (s *Session) Play(id string) error {
	buf, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("asset %s is not loaded", id)
	}
	if err := s.player.Play(id, buf); err != nil {
		return err
	}
	return s.relay(transport.MessageTransportPlay, transport.PlayPayload{ID: id})
}

// StopPlayback stops local playback of an asset and relays the command
// to the peer.
func (s *Session) StopPlayback(id string) error {
	s.player.Stop(id)
	return s.relay(transport.MessageTransportStop, transport.PlayPayload{ID: id})
}

// SetAssetGain adjusts the playback gain of an asset locally and on
// the peer.
func (s *Session) SetAssetGain(id string, gainDB float64) error {
	if err := s.player.SetGain(id, gainDB); err != nil {
		return err
	}
	return s.relay(transport.MessageTransportSetGain, transport.GainPayload{ID: id, GainDB: gainDB})
}

// Crossfade fades from one playing asset to another locally and on the
// peer.
func (s *Session) Crossfade(fromID, toID string, duration time.Duration) error {
	buf, ok := s.store.Get(toID)
	if !ok {
		return fmt.Errorf("asset %s is not loaded", toID)
	}
	if err := s.player.Crossfade(fromID, toID, buf, duration); err != nil {
		return err
	}
	return s.relay(transport.MessageTransportCrossfade, transport.CrossfadePayload{
		FromID:     fromID,
		ToID:       toID,
		DurationMs: float64(duration) / float64(time.Millisecond),
	})
}

// SetDucking enables or disables speech ducking locally and on the
// peer. Zero-valued config fields keep the defaults.
func (s *Session) SetDucking(enabled bool, cfg audio.DuckingConfig) error {
	if err := s.applyDucking(enabled, cfg); err != nil {
		return err
	}
	return s.relay(transport.MessageAudioDucking, transport.DuckingPayload{
		Enabled:     enabled,
		ThresholdDB: cfg.ThresholdDB,
		ReduceDB:    cfg.ReduceDB,
		AttackMs:    cfg.AttackMs,
		ReleaseMs:   cfg.ReleaseMs,
	})
}

// relay sends a command message when a channel is attached; commands
// still take effect locally without one.
func (s *Session) relay(msgType transport.MessageType, payload interface{}) error {
	ch := s.currentChannel()
	if ch == nil {
		return nil
	}

	msg, err := transport.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	return ch.Send(msg)
}

func (s *Session) applyDucking(enabled bool, cfg audio.DuckingConfig) error {
	if !enabled {
		s.ducker.Stop()
		return nil
	}
	if s.ducker.IsRunning() {
		s.ducker.Stop()
	}
	return s.ducker.Start(s.duckingWithOptions(cfg))
}

// duckingWithOptions fills zero command fields from the session-level
// ducking defaults. Fields still unset fall through to the audio
// package defaults in Start.
func (s *Session) duckingWithOptions(cfg audio.DuckingConfig) audio.DuckingConfig {
	defaults := s.options.Ducking
	if cfg.ThresholdDB == 0 {
		cfg.ThresholdDB = defaults.ThresholdDB
	}
	if cfg.ReduceDB == 0 {
		cfg.ReduceDB = defaults.ReduceDB
	}
	if cfg.AttackMs <= 0 {
		cfg.AttackMs = defaults.AttackMs
	}
	if cfg.ReleaseMs <= 0 {
		cfg.ReleaseMs = defaults.ReleaseMs
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	return cfg
}

func (s *Session) handleManifest(msg *transport.Message, from transport.PeerID) error {
	var entries []asset.Entry
	if err := msg.DecodePayload(&entries); err != nil {
		return err
	}

	if issues := asset.Validate(entries); len(issues) > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleManifest",
			"peer_id":  from,
			"issues":   len(issues),
		}).Warn("Rejecting invalid manifest from peer")
		return issues.Err()
	}

	s.reconciler.Apply(entries)
	return nil
}

func (s *Session) handlePresence(msg *transport.Message, from transport.PeerID) error {
	var p transport.PresencePayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	s.reconciler.MergeRemote(string(from), p.Have, p.Missing)
	return nil
}

func (s *Session) handleLoad(msg *transport.Message, from transport.PeerID) error {
	var p transport.LoadPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	if p.Source == "" {
		logrus.WithFields(logrus.Fields{
			"function": "Session.handleLoad",
			"asset_id": p.ID,
		}).Debug("Load request without inline payload, ignoring")
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(p.Source)
	if err != nil {
		return fmt.Errorf("failed to decode inline payload for %s: %w", p.ID, err)
	}

	report := s.reconciler.Ingest([]asset.Payload{{Name: p.ID, Data: data}})
	for _, item := range report.Items {
		if item.Err != nil {
			return item.Err
		}
	}
	return nil
}

func (s *Session) handleUnload(msg *transport.Message, from transport.PeerID) error {
	var p transport.UnloadPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	s.player.Stop(p.ID)
	s.reconciler.RemoveBuffer(p.ID)
	return nil
}

func (s *Session) handlePlay(msg *transport.Message, from transport.PeerID) error {
	var p transport.PlayPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	buf, ok := s.store.Get(p.ID)
	if !ok {
		return fmt.Errorf("asset %s is not loaded", p.ID)
	}
	return s.player.Play(p.ID, buf)
}

func (s *Session) handleStop(msg *transport.Message, from transport.PeerID) error {
	var p transport.PlayPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	s.player.Stop(p.ID)
	return nil
}

func (s *Session) handleSetGain(msg *transport.Message, from transport.PeerID) error {
	var p transport.GainPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	return s.player.SetGain(p.ID, p.GainDB)
}

func (s *Session) handleCrossfade(msg *transport.Message, from transport.PeerID) error {
	var p transport.CrossfadePayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	buf, ok := s.store.Get(p.ToID)
	if !ok {
		return fmt.Errorf("asset %s is not loaded", p.ToID)
	}
	duration := time.Duration(p.DurationMs * float64(time.Millisecond))
	return s.player.Crossfade(p.FromID, p.ToID, buf, duration)
}

func (s *Session) handleDucking(msg *transport.Message, from transport.PeerID) error {
	var p transport.DuckingPayload
	if err := msg.DecodePayload(&p); err != nil {
		return err
	}
	return s.applyDucking(p.Enabled, audio.DuckingConfig{
		ThresholdDB: p.ThresholdDB,
		ReduceDB:    p.ReduceDB,
		AttackMs:    p.AttackMs,
		ReleaseMs:   p.ReleaseMs,
	})
}

// Kill releases all session resources: playback stops, ducking stops,
// the control channel closes, and the process-wide audio graph shuts
// down. Kill is idempotent.
func (s *Session) Kill() {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return
	}
	s.killed = true
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	s.ducker.Stop()
	s.player.Close()
	if ch != nil {
		if err := ch.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Session.Kill",
				"error":    err.Error(),
			}).Warn("Failed to close control channel")
		}
	}
	audio.Shutdown()

	logrus.WithFields(logrus.Fields{
		"function": "Session.Kill",
		"role":     s.role.String(),
	}).Info("Navigator session destroyed")
}
