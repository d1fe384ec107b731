// ABOUTME: Analyser node exposing frequency-domain energy of its input
// ABOUTME: Blackman-windowed FFT with temporal smoothing, scaled to bytes
package graph

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultFFTSize     = 256
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Analyser passes audio through unchanged and records it for spectrum reads
type Analyser struct {
	node
	fftSize   int
	smoothing float64
	minDb     float64
	maxDb     float64
	ring      []float64
	write     int
	fft       *fourier.FFT
	window    []float64
	windowed  []float64
	coeffs    []complex128
	smoothed  []float64
}

func newAnalyser(fftSize int) (*Analyser, error) {
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two in [32, 32768], got %d", fftSize)
	}

	window := make([]float64, fftSize)
	for i := range window {
		x := 2 * math.Pi * float64(i) / float64(fftSize)
		window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}

	return &Analyser{
		fftSize:   fftSize,
		smoothing: DefaultSmoothing,
		minDb:     DefaultMinDecibels,
		maxDb:     DefaultMaxDecibels,
		ring:      make([]float64, fftSize),
		fft:       fourier.NewFFT(fftSize),
		window:    window,
		windowed:  make([]float64, fftSize),
		coeffs:    make([]complex128, fftSize/2+1),
		smoothed:  make([]float64, fftSize/2),
	}, nil
}

// FFTSize returns the analysis window length
func (a *Analyser) FFTSize() int {
	return a.fftSize
}

// FrequencyBinCount returns the number of bins ByteFrequencyData fills
func (a *Analyser) FrequencyBinCount() int {
	return a.fftSize / 2
}

// ByteFrequencyData writes the smoothed spectrum of the latest window into
// dst, one byte per bin, mapping [minDb, maxDb] onto [0, 255]
func (a *Analyser) ByteFrequencyData(dst []byte) {
	c := a.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	n := a.fftSize
	for i := 0; i < n; i++ {
		a.windowed[i] = a.ring[(a.write+i)%n] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)

	scale := 255 / (a.maxDb - a.minDb)
	for k := 0; k < len(a.smoothed) && k < len(dst); k++ {
		mag := cmplx.Abs(a.coeffs[k]) / float64(n)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}

		v := scale * (db - a.minDb)
		switch {
		case v <= 0:
			dst[k] = 0
		case v >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
}

func (a *Analyser) process(frames int) {
	a.mixInputs(frames)

	channels := float64(len(a.out))
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := range a.out {
			sum += float64(a.out[ch][i])
		}
		a.ring[a.write] = sum / channels
		a.write = (a.write + 1) % a.fftSize
	}
}
