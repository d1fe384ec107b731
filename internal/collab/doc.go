// ABOUTME: External generative collaborators
// ABOUTME: Speech synthesis, casting recommendations, scripts, clone matching and lip-sync
// Package collab defines the boundary to the generative services the studio
// depends on, with explicit result types and defaulting rules applied at
// decode time. Gemini implements every interface; Tone is an offline
// synthesizer for demos and tests.
package collab
