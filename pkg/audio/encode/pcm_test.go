// ABOUTME: Unit tests for PCM and WAV encoding
// ABOUTME: Tests 16-bit packing, clipping and WAV container output
package encode

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestPutInt16(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"silence", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"clips high", 2.0, 32767},
		{"clips low", -2.0, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make([]byte, 2)
			PutInt16(out, []float32{tt.in})
			if got := int16(binary.LittleEndian.Uint16(out)); got != tt.want {
				t.Errorf("PutInt16(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteWAV(t *testing.T) {
	raw := make([]byte, 0, 8)
	for _, s := range []int16{100, -100, 2000, -2000} {
		raw = binary.LittleEndian.AppendUint16(raw, uint16(s))
	}
	// trailing odd byte is dropped
	raw = append(raw, 0x7f)

	path := filepath.Join(t.TempDir(), "render.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := WriteWAV(f, raw, 24000, 1); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("expected RIFF header")
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to decode written wav: %v", err)
	}
	if dec.SampleRate != 24000 {
		t.Errorf("expected 24000Hz, got %d", dec.SampleRate)
	}
	if len(buf.Data) != 4 || buf.Data[2] != 2000 || buf.Data[3] != -2000 {
		t.Errorf("unexpected samples: %v", buf.Data)
	}
}
