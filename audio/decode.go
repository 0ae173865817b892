// Decoding of asset payloads into playable PCM buffers.
//
// Two formats are understood: WAV (PCM16) containers for dropped or
// opened files, and raw Opus packets for frames delivered inline over
// the control channel or the media link. Opus decoding uses the pure-Go
// pion/opus decoder.
package audio

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// Buffer holds decoded audio samples for one asset.
type Buffer struct {
	Samples    []int16
	SampleRate uint32
	Channels   uint8
}

// Duration returns the playback duration of the buffer in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	return float64(len(b.Samples)) / float64(b.Channels) / float64(b.SampleRate)
}

// DecodeBuffer decodes a binary payload into a playable buffer. The
// container is detected from the payload itself; name is used only for
// diagnostics and as a fallback format hint.
//
// Parameters:
//   - name: original file or asset name (diagnostics, extension hint)
//   - payload: raw file bytes
//
// Returns:
//   - *Buffer: decoded PCM buffer
//   - error: unsupported or malformed payload
func DecodeBuffer(name string, payload []byte) (*Buffer, error) {
	logrus.WithFields(logrus.Fields{
		"function":     "DecodeBuffer",
		"name":         name,
		"payload_size": len(payload),
	}).Debug("Decoding asset payload")

	switch {
	case isWAV(payload):
		return decodeWAV(payload)
	case strings.HasSuffix(strings.ToLower(name), ".opus"):
		return DecodeOpusPacket(payload)
	default:
		return nil, fmt.Errorf("unsupported audio payload %q", name)
	}
}

// DecodeOpusPacket decodes a single raw Opus packet into a PCM buffer
// using the pion/opus decoder. The sample rate is derived from the
// packet's encoded bandwidth.
func DecodeOpusPacket(packet []byte) (*Buffer, error) {
	if len(packet) == 0 {
		return nil, fmt.Errorf("empty opus packet")
	}

	decoder := opus.NewDecoder()

	// 120ms at 48kHz stereo is the largest frame Opus permits.
	out := make([]byte, 5760*2*2)
	bandwidth, isStereo, err := decoder.Decode(packet, out)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DecodeOpusPacket",
			"error":    err.Error(),
		}).Error("Opus decode failed")
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	channels := uint8(1)
	if isStereo {
		channels = 2
	}

	sampleCount := len(out) / 2
	pcm := make([]int16, sampleCount)
	for i := 0; i < sampleCount; i++ {
		pcm[i] = int16(out[i*2]) | int16(out[i*2+1])<<8
	}

	buf := &Buffer{
		Samples:    pcm,
		SampleRate: uint32(bandwidth.SampleRate()),
		Channels:   channels,
	}

	logrus.WithFields(logrus.Fields{
		"function":    "DecodeOpusPacket",
		"sample_rate": buf.SampleRate,
		"channels":    buf.Channels,
		"samples":     len(buf.Samples),
	}).Debug("Opus packet decoded")

	return buf, nil
}

// isWAV reports whether the payload starts with a RIFF/WAVE header.
func isWAV(payload []byte) bool {
	return len(payload) >= 12 &&
		string(payload[0:4]) == "RIFF" &&
		string(payload[8:12]) == "WAVE"
}

// decodeWAV parses a PCM16 WAV container.
//
// Chunk layout: [RIFF size WAVE][fmt chunk][... other chunks][data chunk].
// Only uncompressed 16-bit PCM is accepted.
func decodeWAV(payload []byte) (*Buffer, error) {
	if len(payload) < 12 {
		return nil, fmt.Errorf("wav payload too short")
	}

	var (
		sampleRate uint32
		channels   uint16
		bitsPer    uint16
		data       []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(payload) {
		chunkID := string(payload[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(payload[pos+4 : pos+8]))
		body := pos + 8
		if body+chunkSize > len(payload) {
			return nil, fmt.Errorf("wav chunk %q truncated", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, fmt.Errorf("wav fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(payload[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format code %d (PCM required)", format)
			}
			channels = binary.LittleEndian.Uint16(payload[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(payload[body+4 : body+8])
			bitsPer = binary.LittleEndian.Uint16(payload[body+14 : body+16])
			haveFmt = true
		case "data":
			data = payload[body : body+chunkSize]
		}

		// Chunks are word-aligned.
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++
		}
	}

	if !haveFmt || data == nil {
		return nil, fmt.Errorf("wav payload missing fmt or data chunk")
	}
	if bitsPer != 16 {
		return nil, fmt.Errorf("unsupported wav bit depth %d (16 required)", bitsPer)
	}
	if channels == 0 || channels > 2 {
		return nil, fmt.Errorf("unsupported wav channel count %d", channels)
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   uint8(channels),
	}, nil
}

// EncodeWAV renders PCM16 samples into a WAV container. Used by the
// built-in recorder and by tests that need well-formed payloads.
func EncodeWAV(samples []int16, sampleRate uint32, channels uint8) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	byteRate := sampleRate * uint32(channels) * 2
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels)*2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(s))
	}

	return buf
}
