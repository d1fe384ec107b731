// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, decoded float buffers and sample conversions
package audio

import "time"

const (
	// SpeechSampleRate is the rate of raw speech payloads from the synthesis service
	SpeechSampleRate = 24000

	// Int16Scale maps signed 16-bit samples into [-1.0, 1.0)
	Int16Scale = 32768.0
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer holds decoded audio as one float32 slice per channel
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NewBuffer allocates a silent buffer
func NewBuffer(channels, frames, sampleRate int) *Buffer {
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Data: data}
}

// FromInterleaved splits interleaved samples into a per-channel buffer
func FromInterleaved(samples []float32, channels, sampleRate int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	frames := len(samples) / channels
	buf := NewBuffer(channels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			buf.Data[ch][i] = samples[i*channels+ch]
		}
	}
	return buf
}

// NumChannels returns the channel count
func (b *Buffer) NumChannels() int {
	return len(b.Data)
}

// Frames returns the number of sample frames
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length at the buffer's own rate
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Interleaved flattens the buffer into frame-major order
func (b *Buffer) Interleaved() []float32 {
	channels := b.NumChannels()
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = b.Data[ch][i]
		}
	}
	return out
}

// SampleFromInt16 converts an int16 sample to float32 in [-1.0, 1.0)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / Int16Scale
}

// SampleToInt16 converts a float32 sample to int16 with clipping
func SampleToInt16(sample float32) int16 {
	if sample >= 1 {
		return 32767
	}
	if sample <= -1 {
		return -32768
	}
	return int16(sample * Int16Scale)
}

// SampleFromInt scales a signed integer sample of the given bit depth to float32
func SampleFromInt(sample int, bitDepth int) float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float32(float64(sample) / float64(int64(1)<<(bitDepth-1)))
}
