// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the fundamental audio types used throughout castvox.
//
// This package defines:
//   - Format: describes an encoded stream (codec, sample rate, channels, bit depth)
//   - Buffer: decoded audio held as one float32 slice per channel
//
// Samples are normalized to [-1.0, 1.0). Conversions to and from signed
// integer PCM are provided for device output and file export.
//
// Example:
//
//	buf := audio.NewBuffer(1, 24000, audio.SpeechSampleRate)
//	fmt.Println(buf.Duration()) // 1s
//
//	s := audio.SampleFromInt16(-32768) // -1.0
package audio
