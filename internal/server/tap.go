// ABOUTME: Spectrum tap between the engine analyser and the waveform renderer
// ABOUTME: Keeps the bins the renderer read so one analyser pull feeds every frame kind
package server

import "github.com/castvox/castvox-go/pkg/visualizer"

// spectrumTap remembers the last spectrum pulled through it. The analyser
// smooths on every read, so the tick reads it exactly once.
type spectrumTap struct {
	src  visualizer.FrequencySource
	bins []byte
}

func (t *spectrumTap) FrequencyBinCount() int {
	return t.src.FrequencyBinCount()
}

func (t *spectrumTap) ByteFrequencyData(dst []byte) {
	t.src.ByteFrequencyData(dst)
	t.bins = append(t.bins[:0], dst...)
}

// last returns the bins of the most recent read
func (t *spectrumTap) last() []byte {
	return t.bins
}
