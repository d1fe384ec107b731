// ABOUTME: Error values for the playback engine
// ABOUTME: Sentinel errors returned by session and level operations
package engine

import "errors"

var (
	ErrCannotPlay     = errors.New("cannot play audio")
	ErrTornDown       = errors.New("audio engine torn down")
	ErrNoVoice        = errors.New("no voice buffer")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrNoMute         = errors.New("channel has no mute")
)
