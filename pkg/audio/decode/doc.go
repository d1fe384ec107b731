// ABOUTME: Audio decoder package for raw speech and compressed assets
// ABOUTME: Provides the raw PCM decoder and asset decoders for MP3, Vorbis, Opus, FLAC, WAV
// Package decode turns audio bytes into normalized float buffers.
//
// Decode handles the raw speech payloads returned by the synthesis
// service: interleaved signed 16-bit little-endian PCM with a known rate
// and channel count. It is pure and never fails; a trailing partial frame
// is dropped.
//
// Compressed assets (ambience loops, catalog samples, recorded clone
// samples) go through Asset, which sniffs the container and dispatches to
// the matching Decoder: MP3, Ogg Vorbis, Ogg Opus, FLAC or WAV.
//
// Example:
//
//	buf := decode.Decode(raw, 24000, 1)
//	loop, err := decode.Asset(oggBytes)
package decode
