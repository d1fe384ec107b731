// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for playback backends that pull rendered frames
package output

// Source renders interleaved float32 frames on demand
type Source interface {
	// Render fills dst with interleaved samples; len(dst) is a whole number of frames
	Render(dst []float32)
}

// Output represents an audio output device
type Output interface {
	// Open starts pulling audio from src at the given format
	Open(sampleRate, channels int, src Source) error

	// Close stops playback and releases output resources
	Close() error
}
