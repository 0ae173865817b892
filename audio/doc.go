// Package audio implements the session audio graph for Navigator.
//
// The package owns a single process-wide processing graph with a master
// output bus and named auxiliary buses, and builds the reactive pieces
// that run on top of it: RMS/decibel level math, payload decoding into
// playable buffers, speech-triggered ducking of the program mix, and a
// player that drives manifest assets onto the master bus.
//
// The graph must be explicitly initialized and resumed before any bus
// produces audio:
//
//	graph, err := audio.Init(48000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Resume must be driven by a user-triggered action.
//	if err := graph.Resume(); err != nil {
//	    log.Fatal(err)
//	}
//
//	handle, err := graph.Attach(audio.BusRemoteSpeech, source)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer handle.Dispose()
package audio
