// ABOUTME: Error values for the audio graph
// ABOUTME: Sentinel errors returned by context and node operations
package graph

import "errors"

var (
	ErrClosed         = errors.New("audio context closed")
	ErrForeignNode    = errors.New("node belongs to a different context")
	ErrAlreadyStarted = errors.New("source already started")
	ErrNotStarted     = errors.New("source not started")
	ErrAlreadyStopped = errors.New("source already stopped")
	ErrNoBuffer       = errors.New("source has no buffer")
)
