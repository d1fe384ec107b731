// ABOUTME: Audio output package for playing rendered audio
// ABOUTME: Provides Output interface with oto and headless implementations
// Package output plays audio pulled from a Source.
//
// Oto drives the system audio device; the device thread calls Render
// whenever it needs more frames. Discard renders on a ticker and drops
// the result, which keeps playback timing intact on machines without
// sound hardware.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(24000, 2, graphContext)
//	defer out.Close()
package output
