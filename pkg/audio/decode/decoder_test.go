// ABOUTME: Tests for the decoder registry and asset decoding
// ABOUTME: Tests container sniffing, codec dispatch and WAV asset decoding
package decode

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/castvox/castvox-go/pkg/audio"
)

// wavFile builds a canonical 16-bit PCM WAV file
func wavFile(sampleRate, channels int, samples []int16) []byte {
	buf := new(bytes.Buffer)
	dataSize := uint32(len(samples) * 2)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"vorbis", append([]byte("OggS\x00\x02"), []byte("\x01vorbis")...), "vorbis"},
		{"opus", append([]byte("OggS\x00\x02"), []byte("OpusHead\x01\x02")...), "opus"},
		{"flac", []byte("fLaC\x00\x00"), "flac"},
		{"wav", wavFile(8000, 1, []int16{0}), "wav"},
		{"mp3 id3", []byte("ID3\x04\x00"), "mp3"},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{"riff but not wave", []byte("RIFF\x00\x00\x00\x00AVI "), ""},
		{"unknown", []byte("hello"), ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestNewDispatchesByCodec(t *testing.T) {
	codecs := []string{"pcm", "mp3", "vorbis", "opus", "flac", "wav"}
	for _, codec := range codecs {
		t.Run(codec, func(t *testing.T) {
			dec, err := New(audio.Format{Codec: codec})
			if err != nil {
				t.Fatalf("failed to create %s decoder: %v", codec, err)
			}
			if err := dec.Close(); err != nil {
				t.Errorf("close failed: %v", err)
			}
		})
	}

	if _, err := New(audio.Format{Codec: "aac"}); err == nil {
		t.Error("expected error for unsupported codec")
	}
}

func TestConstructorsRejectWrongCodec(t *testing.T) {
	constructors := map[string]func(audio.Format) (Decoder, error){
		"MP3":    NewMP3,
		"Vorbis": NewVorbis,
		"Opus":   NewOpus,
		"FLAC":   NewFLAC,
		"WAV":    NewWAV,
	}

	for name, ctor := range constructors {
		t.Run(name, func(t *testing.T) {
			dec, err := ctor(audio.Format{Codec: "pcm"})
			if err == nil {
				t.Fatal("expected error for wrong codec")
			}
			if dec != nil {
				t.Error("expected nil decoder on error")
			}
			if !strings.Contains(err.Error(), "invalid codec for "+name+" decoder") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAssetDecodesWAV(t *testing.T) {
	data := wavFile(44100, 2, []int16{16384, -16384, 0, 8192})

	buf, err := Asset(data)
	if err != nil {
		t.Fatalf("asset decode failed: %v", err)
	}

	if buf.SampleRate != 44100 {
		t.Errorf("expected 44100Hz, got %d", buf.SampleRate)
	}
	if buf.NumChannels() != 2 || buf.Frames() != 2 {
		t.Fatalf("expected 2 channels x 2 frames, got %d x %d", buf.NumChannels(), buf.Frames())
	}
	if buf.Data[0][0] != 0.5 || buf.Data[1][0] != -0.5 || buf.Data[1][1] != 0.25 {
		t.Errorf("unexpected samples: %v", buf.Data)
	}
}

func TestAssetRejectsUnknownContainer(t *testing.T) {
	if _, err := Asset([]byte("<html>not found</html>")); err == nil {
		t.Error("expected error for unrecognized container")
	}
}

func TestAssetReportsCodecOnFailure(t *testing.T) {
	_, err := Asset([]byte("fLaC garbage"))
	if err == nil {
		t.Fatal("expected error for corrupt flac")
	}
	if !strings.HasPrefix(err.Error(), "flac decode failed") {
		t.Errorf("expected codec in error, got %v", err)
	}
}

func TestOpusChannels(t *testing.T) {
	head := append([]byte("OggS....OpusHead"), 0x01, 0x02)
	if got := opusChannels(head); got != 2 {
		t.Errorf("expected 2 channels, got %d", got)
	}
	if got := opusChannels([]byte("OggS")); got != 0 {
		t.Errorf("expected 0 without header, got %d", got)
	}
}
