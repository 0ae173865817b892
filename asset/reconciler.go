package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/abehlok2/Navigator-sub002/audio"
)

// PresenceSender delivers this peer's presence set over the control
// channel. Delivery is best-effort: failures are swallowed, because
// presence is resent on the next change anyway.
type PresenceSender interface {
	SendPresence(have, missing []string) error
}

// DecodeFunc turns a raw payload into a playable buffer. The default is
// audio.DecodeBuffer; tests inject cheaper decoders.
type DecodeFunc func(name string, payload []byte) (*audio.Buffer, error)

// Progress tracks ingestion progress for one manifest entry. Loaded is
// never greater than Total.
type Progress struct {
	Loaded int64
	Total  int64
}

// Complete reports whether the asset is fully loaded.
func (p Progress) Complete() bool {
	return p.Total > 0 && p.Loaded >= p.Total
}

// Payload is one externally supplied binary blob offered for ingestion,
// for example a user-dropped file.
type Payload struct {
	Name string
	Data []byte
}

// IngestItem records the per-item outcome of an ingestion batch.
type IngestItem struct {
	Name      string
	MatchedID string
	Err       error
}

// IngestReport summarizes an ingestion batch. Item failures never abort
// sibling items.
type IngestReport struct {
	Items []IngestItem
}

// Matched returns the number of payloads that were matched and stored.
func (r IngestReport) Matched() int {
	n := 0
	for _, item := range r.Items {
		if item.Err == nil {
			n++
		}
	}
	return n
}

// Reconciler holds the canonical ordered manifest for one peer and
// keeps the local store, progress records and presence partition
// consistent with it. Manifest application is last-write-wins: a newer
// manifest fully supersedes an older one.
type Reconciler struct {
	mu        sync.RWMutex
	store     *Store
	decode    DecodeFunc
	authoring bool
	sender    PresenceSender

	entries  []Entry
	byID     map[string]Entry
	progress map[string]Progress
	lastHave map[string]bool

	// Remote presence views keyed by stable peer id, never by the
	// currently connected transport.
	remote map[string]map[string]bool
}

// NewReconciler creates a reconciler over the given store. authoring
// marks the facilitator side, which validates and broadcasts manifests
// but does not self-report presence.
func NewReconciler(store *Store, decode DecodeFunc, authoring bool) *Reconciler {
	if decode == nil {
		decode = audio.DecodeBuffer
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewReconciler",
		"authoring": authoring,
	}).Info("Creating manifest reconciler")

	return &Reconciler{
		store:     store,
		decode:    decode,
		authoring: authoring,
		byID:      make(map[string]Entry),
		progress:  make(map[string]Progress),
		lastHave:  make(map[string]bool),
		remote:    make(map[string]map[string]bool),
	}
}

// AttachSender wires the control-channel presence sender. Pass nil to
// detach; presence changes are then kept local.
func (r *Reconciler) AttachSender(sender PresenceSender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sender = sender
}

// Apply replaces the current manifest with a new one. Any cached
// buffer, progress record or presence bit, local or remote, whose id is
// not in the new manifest is garbage-collected; a peer must re-report
// an id under the new manifest before it counts as present again.
// Progress for surviving and new entries
// is initialized to full when the buffer is already cached, zero
// otherwise. Presence is recomputed and broadcast if it changed.
func (r *Reconciler) Apply(entries []Entry) {
	r.mu.Lock()

	logrus.WithFields(logrus.Fields{
		"function":    "Reconciler.Apply",
		"entry_count": len(entries),
	}).Info("Applying manifest")

	r.entries = make([]Entry, len(entries))
	copy(r.entries, entries)

	r.byID = make(map[string]Entry, len(entries))
	for _, e := range entries {
		r.byID[e.ID] = e
	}

	// Garbage-collect everything keyed by an id the new manifest no
	// longer contains.
	for _, id := range r.store.IDs() {
		if _, ok := r.byID[id]; !ok {
			r.store.Remove(id)
			logrus.WithFields(logrus.Fields{
				"function": "Reconciler.Apply",
				"asset_id": id,
			}).Debug("Stale buffer garbage-collected")
		}
	}
	for id := range r.progress {
		if _, ok := r.byID[id]; !ok {
			delete(r.progress, id)
		}
	}
	for id := range r.lastHave {
		if _, ok := r.byID[id]; !ok {
			delete(r.lastHave, id)
		}
	}
	for _, view := range r.remote {
		for id := range view {
			if _, ok := r.byID[id]; !ok {
				delete(view, id)
			}
		}
	}

	for _, e := range r.byID {
		if r.store.Has(e.ID) {
			r.progress[e.ID] = Progress{Loaded: e.Bytes, Total: e.Bytes}
		} else {
			r.progress[e.ID] = Progress{Loaded: 0, Total: e.Bytes}
		}
	}

	r.mu.Unlock()

	r.recomputePresence()
}

// Entries returns a copy of the current manifest in authoring order.
func (r *Reconciler) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Entry returns the manifest entry for an id.
func (r *Reconciler) Entry(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	return e, ok
}

// Progress returns the ingestion progress for a manifest id.
func (r *Reconciler) Progress(id string) (Progress, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.progress[id]
	return p, ok
}

// Presence partitions the current manifest ids into have and missing,
// in manifest order. The two sets are disjoint and together cover every
// manifest id.
func (r *Reconciler) Presence() (have, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.presenceLocked()
}

func (r *Reconciler) presenceLocked() (have, missing []string) {
	have = []string{}
	missing = []string{}
	for _, e := range r.entries {
		if r.store.Has(e.ID) {
			have = append(have, e.ID)
		} else {
			missing = append(missing, e.ID)
		}
	}
	return have, missing
}

// Ingest hashes and decodes a batch of payloads concurrently, matching
// each against the current manifest: first by content hash, then by
// literal id equality with the payload name (hash wins over name).
// Unmatched or undecodable payloads are reported per item and never
// abort the batch. The final store state does not depend on completion
// order.
func (r *Reconciler) Ingest(payloads []Payload) IngestReport {
	logrus.WithFields(logrus.Fields{
		"function":      "Reconciler.Ingest",
		"payload_count": len(payloads),
	}).Info("Ingesting payload batch")

	report := IngestReport{Items: make([]IngestItem, len(payloads))}

	var wg sync.WaitGroup
	for i, payload := range payloads {
		wg.Add(1)
		go func(i int, p Payload) {
			defer wg.Done()
			report.Items[i] = r.ingestOne(p)
		}(i, payload)
	}
	wg.Wait()

	return report
}

// ingestOne hashes, matches, decodes and stores a single payload.
func (r *Reconciler) ingestOne(p Payload) IngestItem {
	item := IngestItem{Name: p.Name}

	digest := HashPayload(p.Data)
	entry, ok := r.matchEntry(digest, p.Name)
	if !ok {
		item.Err = fmt.Errorf("payload %q matches no manifest entry (sha256 %s)", p.Name, digest)
		logrus.WithFields(logrus.Fields{
			"function": "Reconciler.ingestOne",
			"name":     p.Name,
			"sha256":   digest,
		}).Warn("Unmatched payload ignored")
		return item
	}
	item.MatchedID = entry.ID

	r.setProgress(entry.ID, Progress{Loaded: 0, Total: entry.Bytes})

	buf, err := r.decode(p.Name, p.Data)
	if err != nil {
		item.Err = fmt.Errorf("decode %q: %w", p.Name, err)
		logrus.WithFields(logrus.Fields{
			"function": "Reconciler.ingestOne",
			"name":     p.Name,
			"asset_id": entry.ID,
			"error":    err.Error(),
		}).Warn("Payload decode failed")
		return item
	}

	r.AddBuffer(entry.ID, buf)
	return item
}

// matchEntry looks up a manifest entry by content hash, falling back to
// literal id equality with the payload name.
func (r *Reconciler) matchEntry(digest, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if strings.EqualFold(e.SHA256, digest) {
			return e, true
		}
	}
	for _, e := range r.entries {
		if e.ID == name {
			return e, true
		}
	}
	return Entry{}, false
}

// AddBuffer stores a decoded buffer for a manifest id, marks its
// progress complete and recomputes presence with broadcast enabled.
// Ids outside the current manifest are rejected.
func (r *Reconciler) AddBuffer(id string, buf *audio.Buffer) error {
	r.mu.Lock()
	entry, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("asset %q is not in the current manifest", id)
	}
	r.mu.Unlock()

	r.store.Put(id, buf)
	r.setProgress(id, Progress{Loaded: entry.Bytes, Total: entry.Bytes})
	r.recomputePresence()
	return nil
}

// RemoveBuffer drops the cached buffer for a manifest id, resets its
// progress and recomputes presence.
func (r *Reconciler) RemoveBuffer(id string) {
	r.store.Remove(id)

	r.mu.Lock()
	if entry, ok := r.byID[id]; ok {
		r.progress[id] = Progress{Loaded: 0, Total: entry.Bytes}
	}
	r.mu.Unlock()

	r.recomputePresence()
}

// setProgress records progress for an id, clamping Loaded to Total.
func (r *Reconciler) setProgress(id string, p Progress) {
	if p.Loaded > p.Total {
		p.Loaded = p.Total
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		r.progress[id] = p
	}
}

// recomputePresence rebuilds the presence partition and broadcasts it
// when it changed. The authoring peer does not self-broadcast presence
// for its own manifest, and broadcast failures are swallowed.
func (r *Reconciler) recomputePresence() {
	r.mu.Lock()

	have, missing := r.presenceLocked()

	changed := len(r.lastHave) != len(have)+len(missing)
	newHave := make(map[string]bool, len(have)+len(missing))
	for _, id := range have {
		newHave[id] = true
		if !r.lastHave[id] {
			changed = true
		}
	}
	for _, id := range missing {
		newHave[id] = false
		if prev, ok := r.lastHave[id]; !ok || prev {
			changed = true
		}
	}
	r.lastHave = newHave

	sender := r.sender
	authoring := r.authoring
	r.mu.Unlock()

	if !changed || authoring || sender == nil {
		return
	}

	if err := sender.SendPresence(have, missing); err != nil {
		// Fire and forget: presence is resent on the next change.
		logrus.WithFields(logrus.Fields{
			"function": "Reconciler.recomputePresence",
			"error":    err.Error(),
		}).Warn("Presence broadcast failed, will resend on next change")
	}
}

// MergeRemote folds an incoming presence set into the view of one other
// peer's state, keyed by that peer's stable id. Ids outside the current
// local manifest are ignored, protecting against stale messages that
// reference a superseded manifest.
func (r *Reconciler) MergeRemote(peerID string, have, missing []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	view, ok := r.remote[peerID]
	if !ok {
		view = make(map[string]bool)
		r.remote[peerID] = view
	}

	ignored := 0
	for _, id := range have {
		if _, known := r.byID[id]; known {
			view[id] = true
		} else {
			ignored++
		}
	}
	for _, id := range missing {
		if _, known := r.byID[id]; known {
			view[id] = false
		} else {
			ignored++
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Reconciler.MergeRemote",
		"peer_id":  peerID,
		"have":     len(have),
		"missing":  len(missing),
		"ignored":  ignored,
	}).Debug("Remote presence merged")
}

// RemotePresence returns the tracked presence partition for a peer, in
// manifest order. Ids with no report yet count as missing.
func (r *Reconciler) RemotePresence(peerID string) (have, missing []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	have = []string{}
	missing = []string{}
	view := r.remote[peerID]
	for _, e := range r.entries {
		if view != nil && view[e.ID] {
			have = append(have, e.ID)
		} else {
			missing = append(missing, e.ID)
		}
	}
	return have, missing
}

// ClearPeer resets the remote presence for a disconnected peer to
// all-missing. Receipt is never assumed across a link loss.
func (r *Reconciler) ClearPeer(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.remote, peerID)

	logrus.WithFields(logrus.Fields{
		"function": "Reconciler.ClearPeer",
		"peer_id":  peerID,
	}).Info("Remote presence cleared for disconnected peer")
}
