// ABOUTME: Error values for collaborator calls
// ABOUTME: Sentinel errors wrapped by every collaborator implementation
package collab

import "errors"

var (
	ErrNoAudio         = errors.New("no audio in response")
	ErrNoMatch         = errors.New("no matching voice")
	ErrEmptyResponse   = errors.New("empty response")
	ErrEmptyText       = errors.New("text is empty")
	ErrSampleTooLarge  = errors.New("voice sample too large")
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNoVideo         = errors.New("video generation produced no video")
	ErrMissingAPIKey   = errors.New("api key not configured")
)
