package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies a control-channel message.
type MessageType string

// Control-channel message types. Manifest and command messages expect
// reliable delivery; presence is best-effort.
const (
	// MessageAssetManifest carries the full manifest entry list,
	// replacing any prior manifest.
	MessageAssetManifest MessageType = "asset.manifest"
	// MessageAssetPresence carries one peer's have/missing partition.
	MessageAssetPresence MessageType = "asset.presence"
	// MessageAssetLoad requests loading of one asset, optionally with
	// an inline-encoded payload.
	MessageAssetLoad MessageType = "asset.load"
	// MessageAssetUnload requests unloading of one asset.
	MessageAssetUnload MessageType = "asset.unload"
	// MessageTransportPlay starts playback of an asset.
	MessageTransportPlay MessageType = "transport.play"
	// MessageTransportStop stops playback of an asset.
	MessageTransportStop MessageType = "transport.stop"
	// MessageTransportSetGain adjusts the playback gain of an asset.
	MessageTransportSetGain MessageType = "transport.setGain"
	// MessageTransportCrossfade fades between two assets.
	MessageTransportCrossfade MessageType = "transport.crossfade"
	// MessageAudioDucking configures the speech-ducking automation.
	MessageAudioDucking MessageType = "audio.ducking"

	// MessageNoiseHandshake carries Noise handshake frames between
	// NoiseChannel endpoints.
	MessageNoiseHandshake MessageType = "noise.handshake"
	// MessageNoiseMessage carries an encrypted message envelope.
	MessageNoiseMessage MessageType = "noise.message"
)

// Message is the wire envelope for one control-channel message.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a message of the given type with a JSON-encoded
// payload. A nil payload produces an empty envelope body.
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	msg := &Message{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// DecodePayload unmarshals the message payload into dst.
func (m *Message) DecodePayload(dst interface{}) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", m.Type, err)
	}
	return nil
}

// Encode serializes the envelope for transmission.
func (m *Message) Encode() ([]byte, error) {
	if m.Type == "" {
		return nil, errors.New("message type is empty")
	}
	return json.Marshal(m)
}

// DecodeMessage parses a wire envelope.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, errors.New("message data is empty")
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.Type == "" {
		return nil, errors.New("message type is empty")
	}
	return &msg, nil
}

// PresencePayload is the body of an asset.presence message: the
// partition of manifest ids relative to the sender's store.
type PresencePayload struct {
	Have    []string `json:"have"`
	Missing []string `json:"missing"`
}

// LoadPayload is the body of an asset.load message. Source, when
// present, holds a base64-encoded inline payload.
type LoadPayload struct {
	ID     string `json:"id"`
	SHA256 string `json:"sha256,omitempty"`
	Bytes  int64  `json:"bytes,omitempty"`
	Source string `json:"source,omitempty"`
}

// UnloadPayload is the body of an asset.unload message.
type UnloadPayload struct {
	ID string `json:"id"`
}

// PlayPayload is the body of transport.play and transport.stop.
type PlayPayload struct {
	ID string `json:"id"`
}

// GainPayload is the body of a transport.setGain message.
type GainPayload struct {
	ID     string  `json:"id"`
	GainDB float64 `json:"gainDb"`
}

// CrossfadePayload is the body of a transport.crossfade message.
type CrossfadePayload struct {
	FromID     string  `json:"fromId"`
	ToID       string  `json:"toId"`
	DurationMs float64 `json:"duration"`
}

// DuckingPayload is the body of an audio.ducking message.
type DuckingPayload struct {
	Enabled     bool    `json:"enabled"`
	ThresholdDB float64 `json:"thresholdDb"`
	ReduceDB    float64 `json:"reduceDb"`
	AttackMs    float64 `json:"attackMs"`
	ReleaseMs   float64 `json:"releaseMs"`
}
