// ABOUTME: Playback engine for studio and preview sessions
// ABOUTME: Owns the audio context, per-channel gains and the session state machine
// Package engine manages live playback sessions on top of the audio graph.
//
// An Engine lazily opens one graph context and output device on the first
// session. Every session builds fresh nodes:
//
//	voice source    -> voice gain    -+
//	ambience source -> ambience gain -+-> master gain -> analyser -> output
//	                   sfx gain      -+
//
// Starting a session always releases the previous one first, so at most one
// voice source is ever audible. Channel levels persist across sessions and
// are reapplied to each new session's gains.
//
// Session states move Idle -> Starting -> Playing -> Ended or Stopped.
// After Teardown the engine rejects all further work and late callbacks
// are dropped.
package engine
