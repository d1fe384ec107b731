// ABOUTME: Audio encoder package for device output and file export
// ABOUTME: Provides 16-bit PCM packing and WAV export
// Package encode converts float audio into byte formats.
//
// PutInt16 produces signed 16-bit little-endian bytes for the audio
// device. WriteWAV wraps a captured raw speech render in a WAV
// container so it can be saved to disk.
//
// Example:
//
//	f, _ := os.Create("render.wav")
//	err := encode.WriteWAV(f, raw, 24000, 1)
package encode
