// Package transport defines the control-channel message contracts used
// to coordinate Navigator sessions.
//
// The media link itself is supplied externally; this package only
// carries structured control messages (manifest distribution, presence
// reports, transport commands, ducking automation) over an abstract
// Channel with reliable and best-effort send primitives. An in-memory
// Pipe implementation connects two endpoints for local sessions and
// tests, and NoiseChannel wraps any Channel with Noise-XX encryption.
package transport
