package record

import (
	"fmt"
	"strings"
	"time"
)

// genericMimeType is the hard-coded fallback when neither the emitted
// chunks nor the recorder report a MIME type.
const genericMimeType = "audio/webm"

// Chunk is one piece of encoded recording data emitted by a Recorder.
type Chunk struct {
	Data     []byte
	MimeType string
}

// Artifact is the immutable result of a finished recording.
type Artifact struct {
	Bytes      []byte
	MimeType   string
	CreatedAt  time.Time
	Duration   time.Duration
	SampleRate uint32
}

// Filename generates the export name for the artifact:
// session-mix-<ISO8601 timestamp with ':' and '.' replaced by '-'> plus
// a container extension derived from the MIME type.
func (a *Artifact) Filename() string {
	stamp := a.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return fmt.Sprintf("session-mix-%s.%s", stamp, extensionFromMime(a.MimeType))
}

// extensionFromMime maps a MIME type onto a container file extension.
func extensionFromMime(mime string) string {
	base := mime
	if i := strings.Index(base, ";"); i >= 0 {
		base = base[:i]
	}
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	}
	if i := strings.Index(base, "/"); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return "bin"
}
