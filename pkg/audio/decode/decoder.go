// ABOUTME: Decoder interface definition and codec registry
// ABOUTME: Common interface for all audio decoders plus format sniffing
package decode

import (
	"bytes"
	"fmt"

	"github.com/castvox/castvox-go/pkg/audio"
)

// Decoder decodes a complete encoded payload to a float buffer
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) (*audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}

// New creates a decoder for the format's codec
func New(format audio.Format) (Decoder, error) {
	switch format.Codec {
	case "pcm":
		return NewPCM(format)
	case "mp3":
		return NewMP3(format)
	case "vorbis":
		return NewVorbis(format)
	case "opus":
		return NewOpus(format)
	case "flac":
		return NewFLAC(format)
	case "wav":
		return NewWAV(format)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", format.Codec)
	}
}

// Sniff identifies a container codec from its leading bytes
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("OpusHead")) {
			return "opus"
		}
		return "vorbis"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}

// Asset decodes a compressed asset file, detecting its format from content
func Asset(data []byte) (*audio.Buffer, error) {
	codec := Sniff(data)
	if codec == "" {
		return nil, fmt.Errorf("unrecognized audio container (%d bytes)", len(data))
	}

	dec, err := New(audio.Format{Codec: codec})
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	buf, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s decode failed: %w", codec, err)
	}
	return buf, nil
}
