// ABOUTME: Studio error taxonomy
// ABOUTME: Maps failures of each user action to the message shown for it
package studio

import (
	"errors"

	"github.com/castvox/castvox-go/internal/collab"
)

var (
	ErrEmptyText       = errors.New("text is empty")
	ErrRenderFailed    = errors.New("render failed")
	ErrSynthesis       = errors.New("speech synthesis failed")
	ErrRecommend       = errors.New("voice recommendation failed")
	ErrScript          = errors.New("script generation failed")
	ErrClone           = errors.New("voice matching failed")
	ErrLipSync         = errors.New("lip-sync failed")
	ErrSuperseded      = errors.New("superseded by a newer request")
	ErrBusy            = errors.New("already loading")
	ErrClosed          = errors.New("studio closed")
	ErrNothingRendered = errors.New("nothing rendered yet")
	ErrNoStore         = errors.New("no project store configured")
	ErrNoCollaborator  = errors.New("collaborator not configured")
)

// UserMessage returns the inline message for a failed action. Superseded
// and closed requests have nothing to show and yield an empty string.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrSuperseded), errors.Is(err, ErrClosed):
		return ""
	case errors.Is(err, ErrEmptyText):
		return "enter some text first"
	case errors.Is(err, collab.ErrMissingAPIKey):
		return "no API key configured"
	case errors.Is(err, collab.ErrSampleTooLarge):
		return "sample is larger than 15 MB"
	case errors.Is(err, ErrBusy):
		return "still loading"
	case errors.Is(err, ErrNothingRendered):
		return "render something first"
	case errors.Is(err, ErrSynthesis):
		return ErrSynthesis.Error()
	case errors.Is(err, ErrRecommend):
		return ErrRecommend.Error()
	case errors.Is(err, ErrScript):
		return ErrScript.Error()
	case errors.Is(err, ErrClone):
		return ErrClone.Error()
	case errors.Is(err, ErrLipSync):
		return ErrLipSync.Error()
	default:
		return ErrRenderFailed.Error()
	}
}
