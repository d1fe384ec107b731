// ABOUTME: WAV file writer for captured renders
// ABOUTME: Wraps raw 16-bit PCM in a RIFF/WAVE container via go-audio
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes raw signed 16-bit little-endian PCM as a WAV file
func WriteWAV(w io.WriteSeeker, raw []byte, sampleRate, channels int) error {
	if channels < 1 {
		channels = 1
	}

	samples := make([]int, len(raw)/2/channels*channels)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}
	return nil
}
