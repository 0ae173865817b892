package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/audio"
)

// Store is a content-addressable cache mapping asset id to decoded
// audio buffer. Buffers are owned exclusively by the store; ids that
// disappear from a newly applied manifest are garbage-collected by the
// reconciler.
type Store struct {
	mu      sync.RWMutex
	buffers map[string]*audio.Buffer
}

// NewStore creates an empty asset store.
func NewStore() *Store {
	return &Store{
		buffers: make(map[string]*audio.Buffer),
	}
}

// HashPayload computes the lowercase hex SHA-256 digest of raw payload
// bytes. Hashing is deterministic: the same byte sequence always yields
// the same digest.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Put inserts or replaces the decoded buffer for an asset id.
func (s *Store) Put(id string, buf *audio.Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffers[id] = buf

	logrus.WithFields(logrus.Fields{
		"function": "Store.Put",
		"asset_id": id,
		"samples":  len(buf.Samples),
	}).Debug("Buffer cached")
}

// Get returns the decoded buffer for an asset id.
func (s *Store) Get(id string) (*audio.Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, ok := s.buffers[id]
	return buf, ok
}

// Has reports whether a buffer is cached for the asset id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.buffers[id]
	return ok
}

// Remove drops the buffer for an asset id. Removing an unknown id is a
// no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.buffers, id)
}

// IDs returns the cached asset ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.buffers))
	for id := range s.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of cached buffers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.buffers)
}
