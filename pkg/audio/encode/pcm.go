// ABOUTME: 16-bit PCM sample packing
// ABOUTME: Writes float samples as signed 16-bit little-endian bytes for the audio device
package encode

import (
	"encoding/binary"

	"github.com/castvox/castvox-go/pkg/audio"
)

// PutInt16 writes samples into dst as 16-bit little-endian PCM.
// dst must hold at least 2*len(samples) bytes.
func PutInt16(dst []byte, samples []float32) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.SampleToInt16(s)))
	}
}
