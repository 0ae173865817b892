package transport

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PeerID is a stable peer identifier. It survives reconnects: presence
// and remote state are keyed by PeerID, never by the currently
// connected transport.
type PeerID string

// NewPeerID generates a fresh random peer identifier.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// Handler processes one incoming control message from a peer.
type Handler func(msg *Message, from PeerID) error

// Channel is the externally supplied control-channel abstraction.
// Send expects reliable delivery; SendUnreliable is best-effort and
// must never fail merely because delivery is uncertain.
type Channel interface {
	// Send transmits a message with reliable delivery expectations.
	Send(msg *Message) error

	// SendUnreliable transmits a message best-effort.
	SendUnreliable(msg *Message) error

	// RegisterHandler installs the handler for a message type,
	// replacing any previous one.
	RegisterHandler(msgType MessageType, handler Handler)

	// PeerID returns this endpoint's stable peer identifier.
	PeerID() PeerID

	// Close shuts the channel down.
	Close() error
}

// ErrChannelClosed is returned by Send on a closed channel.
var ErrChannelClosed = errors.New("control channel is closed")

// PipeEndpoint is one side of an in-memory channel pair.
type PipeEndpoint struct {
	peerID   PeerID
	mu       sync.RWMutex
	handlers map[MessageType]Handler
	peer     *PipeEndpoint
	closed   bool
}

// Pipe creates two connected in-memory channel endpoints with fresh
// peer ids. Delivery is synchronous and in order.
func Pipe() (*PipeEndpoint, *PipeEndpoint) {
	a := &PipeEndpoint{peerID: NewPeerID(), handlers: make(map[MessageType]Handler)}
	b := &PipeEndpoint{peerID: NewPeerID(), handlers: make(map[MessageType]Handler)}
	a.peer = b
	b.peer = a

	logrus.WithFields(logrus.Fields{
		"function": "Pipe",
		"peer_a":   a.peerID,
		"peer_b":   b.peerID,
	}).Debug("In-memory channel pair created")

	return a, b
}

// PeerID implements Channel.
func (p *PipeEndpoint) PeerID() PeerID {
	return p.peerID
}

// Send implements Channel with reliable semantics: sending on a closed
// pipe is an error.
func (p *PipeEndpoint) Send(msg *Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return ErrChannelClosed
	}
	return p.peer.dispatch(msg, p.peerID)
}

// SendUnreliable implements Channel with best-effort semantics: a
// closed pipe silently drops the message.
func (p *PipeEndpoint) SendUnreliable(msg *Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil
	}
	// Best effort: delivery failures are not reported.
	if err := p.peer.dispatch(msg, p.peerID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "PipeEndpoint.SendUnreliable",
			"type":     msg.Type,
			"error":    err.Error(),
		}).Debug("Best-effort delivery failed, dropping")
	}
	return nil
}

// RegisterHandler implements Channel.
func (p *PipeEndpoint) RegisterHandler(msgType MessageType, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[msgType] = handler
}

// Close implements Channel. Closing is idempotent.
func (p *PipeEndpoint) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}

// dispatch routes an incoming message to the registered handler.
// Messages with no handler are dropped.
func (p *PipeEndpoint) dispatch(msg *Message, from PeerID) error {
	p.mu.RLock()
	closed := p.closed
	handler := p.handlers[msg.Type]
	p.mu.RUnlock()

	if closed {
		return ErrChannelClosed
	}
	if handler == nil {
		logrus.WithFields(logrus.Fields{
			"function": "PipeEndpoint.dispatch",
			"type":     msg.Type,
		}).Debug("No handler registered, message dropped")
		return nil
	}
	return handler(msg, from)
}
