// Package asset implements manifest distribution and presence
// reconciliation for Navigator sessions.
//
// A facilitator authors an ordered manifest of audio asset descriptors
// and broadcasts it over the control channel. Every peer reconciles the
// manifest against its local content-addressed store, partitions the
// manifest ids into have/missing presence sets, and reports presence
// back. Dropped or opened files are ingested by content hash, so a
// renamed file still matches its manifest entry.
//
// The package is transport-agnostic: presence broadcasting goes through
// the narrow PresenceSender interface supplied by the session layer.
package asset
