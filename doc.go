// Package navigator implements a peer-to-peer audio session engine for
// guided listening sessions. A facilitator authors an asset manifest,
// distributes it to explorers over an externally supplied control
// channel, and drives playback, crossfades, and speech ducking on the
// remote peer. Both sides reconcile asset presence by content hash,
// monitor link quality, and can capture a consent-gated mixdown
// recording of the session.
//
// The control channel is abstract: any ordered message transport can
// implement transport.Channel. The media link (voice) is outside this
// package; it only consumes decoded PCM frames through the audio
// graph.
//
// Basic usage:
//
//	opts := navigator.NewOptions()
//	opts.Role = navigator.RoleFacilitator
//	session, err := navigator.New(opts)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Kill()
//
//	session.AttachChannel(channel)
//	if err := session.BroadcastManifest(entries); err != nil {
//		log.Fatal(err)
//	}
package navigator
