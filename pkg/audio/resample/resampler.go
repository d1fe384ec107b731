// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts decoded float buffers to the playback context rate
package resample

import "github.com/castvox/castvox-go/pkg/audio"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts interleaved input samples to the output rate.
// Returns the number of samples written to output.
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) == 0 {
		return 0
	}

	inputFrames := len(input) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx >= inputFrames {
			break
		}

		frac := float32(r.position - float64(inputIdx))
		next := inputIdx + 1
		if next >= inputFrames {
			next = inputFrames - 1
		}

		for ch := 0; ch < r.channels; ch++ {
			s1 := input[inputIdx*r.channels+ch]
			s2 := input[next*r.channels+ch]
			output[outIdx*r.channels+ch] = s1*(1-frac) + s2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Carry the fractional position into the next chunk
	r.position -= float64(inputFrames)
	if r.position < 0 {
		r.position = 0
	}

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := inputFrames * r.outputRate / r.inputRate
	return outputFrames * r.channels
}

// Buffer resamples a whole buffer to outputRate. A buffer already at the
// target rate is returned unchanged.
func Buffer(buf *audio.Buffer, outputRate int) *audio.Buffer {
	if buf == nil || buf.SampleRate == outputRate || buf.SampleRate <= 0 || outputRate <= 0 {
		return buf
	}

	channels := buf.NumChannels()
	r := New(buf.SampleRate, outputRate, channels)
	input := buf.Interleaved()
	output := make([]float32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, output)

	out := audio.FromInterleaved(output[:n], channels, outputRate)
	return out
}
