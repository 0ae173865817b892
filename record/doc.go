// Package record captures the session's multi-source audio graph into
// a durable artifact with live metering.
//
// The engine taps the master output bus, combines it with the live
// microphone input on a stereo mix bus, and feeds both a chunked
// recorder sink and a channel splitter whose two mono analysers answer
// live level and waveform queries. Recording requires an explicit
// consent decision before any resource is allocated, supports
// pause/resume into the same artifact, and finishes with an idempotent
// Stop that assembles every emitted chunk into one immutable artifact.
package record
