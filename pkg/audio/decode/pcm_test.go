// ABOUTME: Tests for raw PCM decoder
// ABOUTME: Tests frame counts, normalization range, purity and truncation
package decode

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/castvox/castvox-go/pkg/audio"
)

func pcmBytes(samples ...int16) []byte {
	raw := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	return raw
}

func TestDecodeMono(t *testing.T) {
	raw := pcmBytes(0, 16384, -16384, -32768, 32767)

	buf := Decode(raw, 24000, 1)

	if buf.SampleRate != 24000 {
		t.Errorf("expected sample rate 24000, got %d", buf.SampleRate)
	}
	if buf.NumChannels() != 1 {
		t.Fatalf("expected 1 channel, got %d", buf.NumChannels())
	}

	want := []float32{0, 0.5, -0.5, -1.0, 32767.0 / 32768.0}
	if buf.Frames() != len(want) {
		t.Fatalf("expected %d frames, got %d", len(want), buf.Frames())
	}
	for i, w := range want {
		if buf.Data[0][i] != w {
			t.Errorf("sample %d: expected %v, got %v", i, w, buf.Data[0][i])
		}
	}
}

func TestDecodeStereoDeinterleaves(t *testing.T) {
	raw := pcmBytes(16384, -16384, 8192, -8192)

	buf := Decode(raw, 24000, 2)

	if buf.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", buf.Frames())
	}
	if buf.Data[0][0] != 0.5 || buf.Data[0][1] != 0.25 {
		t.Errorf("unexpected left channel: %v", buf.Data[0])
	}
	if buf.Data[1][0] != -0.5 || buf.Data[1][1] != -0.25 {
		t.Errorf("unexpected right channel: %v", buf.Data[1])
	}
}

func TestDecodeFrameCountAndRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	tests := []struct {
		name     string
		bytes    int
		channels int
	}{
		{"empty", 0, 1},
		{"mono", 4800, 1},
		{"stereo", 4800, 2},
		{"odd byte", 4801, 1},
		{"partial stereo frame", 4802, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := make([]byte, tt.bytes)
			rng.Read(raw)

			buf := Decode(raw, 24000, tt.channels)

			wantFrames := tt.bytes / 2 / tt.channels
			if buf.Frames() != wantFrames {
				t.Fatalf("expected %d frames, got %d", wantFrames, buf.Frames())
			}
			for ch := range buf.Data {
				for i, s := range buf.Data[ch] {
					if s < -1.0 || s >= 1.0 {
						t.Fatalf("channel %d sample %d out of range: %v", ch, i, s)
					}
				}
			}
		})
	}
}

func TestDecodeIsPure(t *testing.T) {
	raw := make([]byte, 1000)
	rand.New(rand.NewSource(42)).Read(raw)
	orig := append([]byte(nil), raw...)

	a := Decode(raw, 24000, 1)
	b := Decode(raw, 24000, 1)

	if string(raw) != string(orig) {
		t.Fatal("decode mutated its input")
	}
	for i := range a.Data[0] {
		if a.Data[0][i] != b.Data[0][i] {
			t.Fatalf("sample %d differs between calls: %v vs %v", i, a.Data[0][i], b.Data[0][i])
		}
	}
}

func TestDecodeZeroChannelsTreatedAsMono(t *testing.T) {
	buf := Decode(pcmBytes(1, 2, 3), 24000, 0)
	if buf.NumChannels() != 1 || buf.Frames() != 3 {
		t.Errorf("expected 1 channel of 3 frames, got %d of %d", buf.NumChannels(), buf.Frames())
	}
}

func TestNewPCM(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "pcm"})
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	buf, err := decoder.Decode(pcmBytes(0, 100))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.SampleRate != audio.SpeechSampleRate {
		t.Errorf("expected default rate %d, got %d", audio.SpeechSampleRate, buf.SampleRate)
	}
	if buf.Frames() != 2 {
		t.Errorf("expected 2 frames, got %d", buf.Frames())
	}
}

func TestNewPCM_InvalidCodec(t *testing.T) {
	decoder, err := NewPCM(audio.Format{Codec: "opus"})
	if err == nil {
		t.Fatal("expected error for invalid codec, got nil")
	}
	if decoder != nil {
		t.Fatal("expected decoder to be nil for invalid codec")
	}

	expectedError := "invalid codec for PCM decoder: opus"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestNewPCM_UnsupportedBitDepth(t *testing.T) {
	_, err := NewPCM(audio.Format{Codec: "pcm", BitDepth: 24})
	if err == nil {
		t.Fatal("expected error for unsupported bit depth")
	}

	expectedError := "unsupported bit depth: 24 (supported: 16)"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}
