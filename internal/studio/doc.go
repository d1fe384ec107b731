// ABOUTME: Package studio orchestrates renders, previews and saved work
// ABOUTME: Ties collaborators, ambience, mixer and the playback engine together
// Package studio runs the render flow: synthesize speech and fetch the
// ambience bed in parallel, decode, then hand both to the playback engine
// at the mixer's current levels. Only the newest render may start a
// session; older completions are dropped.
package studio
