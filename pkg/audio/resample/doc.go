// ABOUTME: Sample rate conversion package
// ABOUTME: Provides linear interpolation resampling for decoded buffers
// Package resample converts audio between sample rates.
//
// Decoded assets arrive at their file's native rate (44.1kHz, 48kHz) and
// are brought to the playback context rate before being scheduled.
//
// Example:
//
//	loop := resample.Buffer(decoded, 24000)
package resample
