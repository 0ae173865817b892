package record

import (
	"testing"

	"github.com/abehlok2/Navigator-sub002/audio"
)

func TestWAVRecorderLifecycle(t *testing.T) {
	w := NewWAVRecorder(48000, 2)

	if err := w.WriteFrame([]int16{1, 2}); err == nil {
		t.Error("WriteFrame before Start should fail")
	}

	var chunks []Chunk
	if err := w.Start(func(c Chunk) { chunks = append(chunks, c) }); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(nil); err == nil {
		t.Error("second Start should fail")
	}

	if err := w.WriteFrame([]int16{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	// Frames written while paused are dropped.
	w.Pause()
	if err := w.WriteFrame([]int16{9, 9}); err != nil {
		t.Fatalf("WriteFrame while paused failed: %v", err)
	}
	w.Resume()
	if err := w.WriteFrame([]int16{5, 6}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("flushed %d chunks, want 1", len(chunks))
	}
	if chunks[0].MimeType != "audio/wav" {
		t.Errorf("chunk mime = %q, want audio/wav", chunks[0].MimeType)
	}

	buf, err := audio.DecodeBuffer("x.wav", chunks[0].Data)
	if err != nil {
		t.Fatalf("flushed chunk does not decode: %v", err)
	}
	want := []int16{1, 2, 3, 4, 5, 6}
	if len(buf.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d (paused frames dropped)", len(buf.Samples), len(want))
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Samples[i], want[i])
		}
	}

	// Stopping again is a no-op and flushes nothing new.
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Errorf("second Stop flushed extra chunks: %d", len(chunks))
	}
}
