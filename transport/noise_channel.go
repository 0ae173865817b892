package transport

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
)

var (
	// ErrHandshakeIncomplete is returned when sending before the Noise
	// handshake has finished.
	ErrHandshakeIncomplete = errors.New("noise handshake not complete")
	// ErrHandshakeDone is returned when Handshake is called twice.
	ErrHandshakeDone = errors.New("noise handshake already complete")
)

// noiseSuite is the cipher suite used by NoiseChannel:
// Curve25519 key agreement, ChaCha20-Poly1305 AEAD, BLAKE2s hashing.
var noiseSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// KeyPair is a long-term Curve25519 static key pair for the Noise
// handshake.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair creates a fresh random Curve25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	var kp KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.Public[:], pub)

	return &kp, nil
}

// dhKey converts the pair into the flynn/noise representation.
func (kp *KeyPair) dhKey() noise.DHKey {
	return noise.DHKey{
		Private: kp.Private[:],
		Public:  kp.Public[:],
	}
}

// noiseFrame is the JSON body of noise.handshake and noise.message
// envelopes; Data is base64-encoded on the wire.
type noiseFrame struct {
	Data []byte `json:"data"`
}

// NoiseChannel wraps an existing Channel with Noise-XX encryption.
// After a successful Handshake every message envelope is encrypted
// before transmission and decrypted before dispatch. The wrapper
// assumes the underlying channel preserves ordering for reliable
// sends, since the Noise cipher states are nonce-sequential.
type NoiseChannel struct {
	underlying Channel
	keys       *KeyPair

	mu          sync.Mutex
	handlers    map[MessageType]Handler
	sendCipher  *noise.CipherState
	recvCipher  *noise.CipherState
	established bool

	hsFrames chan []byte
}

// NewNoiseChannel creates a Noise wrapper around an existing channel
// using the given static key pair. A nil key pair generates one.
func NewNoiseChannel(underlying Channel, keys *KeyPair) (*NoiseChannel, error) {
	if underlying == nil {
		return nil, errors.New("underlying channel cannot be nil")
	}

	if keys == nil {
		generated, err := GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		keys = generated
	}

	nc := &NoiseChannel{
		underlying: underlying,
		keys:       keys,
		handlers:   make(map[MessageType]Handler),
		hsFrames:   make(chan []byte, 4),
	}

	underlying.RegisterHandler(MessageNoiseHandshake, nc.handleHandshakeFrame)
	underlying.RegisterHandler(MessageNoiseMessage, nc.handleEncryptedMessage)

	logrus.WithFields(logrus.Fields{
		"function":   "NewNoiseChannel",
		"public_key": fmt.Sprintf("%x", keys.Public[:8]),
	}).Info("Noise channel created")

	return nc, nil
}

// Handshake runs the Noise-XX handshake over the underlying channel.
// Exactly one endpoint must be the initiator. The call blocks until
// the handshake completes or ctx is done.
func (nc *NoiseChannel) Handshake(ctx context.Context, initiator bool) error {
	nc.mu.Lock()
	if nc.established {
		nc.mu.Unlock()
		return ErrHandshakeDone
	}
	nc.mu.Unlock()

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   noiseSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: nc.keys.dhKey(),
	})
	if err != nil {
		return fmt.Errorf("failed to create handshake state: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NoiseChannel.Handshake",
		"initiator": initiator,
	}).Info("Starting Noise-XX handshake")

	var cs1, cs2 *noise.CipherState
	if initiator {
		// -> e
		frame, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return fmt.Errorf("handshake message 1 failed: %w", err)
		}
		if err := nc.sendHandshakeFrame(frame); err != nil {
			return err
		}

		// <- e, ee, s, es
		incoming, err := nc.waitHandshakeFrame(ctx)
		if err != nil {
			return err
		}
		if _, _, _, err := hs.ReadMessage(nil, incoming); err != nil {
			return fmt.Errorf("handshake message 2 failed: %w", err)
		}

		// -> s, se
		frame, cs1, cs2, err = hs.WriteMessage(nil, nil)
		if err != nil {
			return fmt.Errorf("handshake message 3 failed: %w", err)
		}
		if err := nc.sendHandshakeFrame(frame); err != nil {
			return err
		}
	} else {
		// <- e
		incoming, err := nc.waitHandshakeFrame(ctx)
		if err != nil {
			return err
		}
		if _, _, _, err := hs.ReadMessage(nil, incoming); err != nil {
			return fmt.Errorf("handshake message 1 failed: %w", err)
		}

		// -> e, ee, s, es
		frame, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return fmt.Errorf("handshake message 2 failed: %w", err)
		}
		if err := nc.sendHandshakeFrame(frame); err != nil {
			return err
		}

		// <- s, se
		incoming, err = nc.waitHandshakeFrame(ctx)
		if err != nil {
			return err
		}
		if _, cs1, cs2, err = hs.ReadMessage(nil, incoming); err != nil {
			return fmt.Errorf("handshake message 3 failed: %w", err)
		}
	}

	nc.mu.Lock()
	if initiator {
		nc.sendCipher, nc.recvCipher = cs1, cs2
	} else {
		nc.sendCipher, nc.recvCipher = cs2, cs1
	}
	nc.established = true
	nc.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "NoiseChannel.Handshake",
		"initiator": initiator,
	}).Info("Noise handshake complete")

	return nil
}

// Established reports whether the handshake has completed.
func (nc *NoiseChannel) Established() bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	return nc.established
}

// Send implements Channel, encrypting the envelope before reliable
// transmission.
func (nc *NoiseChannel) Send(msg *Message) error {
	wrapped, err := nc.encrypt(msg)
	if err != nil {
		return err
	}
	return nc.underlying.Send(wrapped)
}

// SendUnreliable implements Channel, encrypting the envelope before
// best-effort transmission.
func (nc *NoiseChannel) SendUnreliable(msg *Message) error {
	wrapped, err := nc.encrypt(msg)
	if err != nil {
		return err
	}
	return nc.underlying.SendUnreliable(wrapped)
}

// RegisterHandler implements Channel. Handlers receive decrypted
// envelopes.
func (nc *NoiseChannel) RegisterHandler(msgType MessageType, handler Handler) {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.handlers[msgType] = handler
}

// PeerID implements Channel.
func (nc *NoiseChannel) PeerID() PeerID {
	return nc.underlying.PeerID()
}

// Close implements Channel.
func (nc *NoiseChannel) Close() error {
	return nc.underlying.Close()
}

// encrypt serializes and encrypts one envelope.
func (nc *NoiseChannel) encrypt(msg *Message) (*Message, error) {
	plain, err := msg.Encode()
	if err != nil {
		return nil, err
	}

	nc.mu.Lock()
	defer nc.mu.Unlock()

	if !nc.established {
		return nil, ErrHandshakeIncomplete
	}

	sealed, err := nc.sendCipher.Encrypt(nil, nil, plain)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}

	return NewMessage(MessageNoiseMessage, noiseFrame{Data: sealed})
}

// sendHandshakeFrame transmits one handshake frame reliably.
func (nc *NoiseChannel) sendHandshakeFrame(frame []byte) error {
	msg, err := NewMessage(MessageNoiseHandshake, noiseFrame{Data: frame})
	if err != nil {
		return err
	}
	if err := nc.underlying.Send(msg); err != nil {
		return fmt.Errorf("failed to send handshake frame: %w", err)
	}
	return nil
}

// waitHandshakeFrame blocks for the next incoming handshake frame.
func (nc *NoiseChannel) waitHandshakeFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("handshake aborted: %w", ctx.Err())
	case frame := <-nc.hsFrames:
		return frame, nil
	}
}

// handleHandshakeFrame queues incoming handshake frames for the
// Handshake driver.
func (nc *NoiseChannel) handleHandshakeFrame(msg *Message, from PeerID) error {
	var frame noiseFrame
	if err := msg.DecodePayload(&frame); err != nil {
		return err
	}

	select {
	case nc.hsFrames <- frame.Data:
		return nil
	default:
		return errors.New("handshake frame queue full")
	}
}

// handleEncryptedMessage decrypts an incoming envelope and dispatches
// it to the registered handler for its inner type.
func (nc *NoiseChannel) handleEncryptedMessage(msg *Message, from PeerID) error {
	var frame noiseFrame
	if err := msg.DecodePayload(&frame); err != nil {
		return err
	}

	nc.mu.Lock()
	if !nc.established {
		nc.mu.Unlock()
		return ErrHandshakeIncomplete
	}
	plain, err := nc.recvCipher.Decrypt(nil, nil, frame.Data)
	nc.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to decrypt message: %w", err)
	}

	inner, err := DecodeMessage(plain)
	if err != nil {
		return err
	}

	nc.mu.Lock()
	handler := nc.handlers[inner.Type]
	nc.mu.Unlock()

	if handler == nil {
		logrus.WithFields(logrus.Fields{
			"function": "NoiseChannel.handleEncryptedMessage",
			"type":     inner.Type,
		}).Debug("No handler registered for decrypted message")
		return nil
	}
	return handler(inner, from)
}
