// ABOUTME: Pull-based audio node graph
// ABOUTME: Provides the render context, buffer sources, gains and analyser taps
// Package graph implements a small audio processing graph.
//
// A Context owns a sample clock and a destination node. Nodes are created
// from the context and wired with Connect; the output device pulls
// interleaved frames through Context.Render, which walks the graph from
// the destination back to its sources.
//
// Node types:
//   - BufferSource: plays a decoded buffer once or looped, at a playback rate
//   - Gain: scales its input by an automatable Param
//   - Analyser: passes audio through and exposes byte frequency data
//
// Callbacks registered on sources (OnStarted, OnEnded) run on the render
// goroutine after the context lock is released, so they may call back into
// the graph.
//
// Example:
//
//	ctx := graph.NewContext(24000, 2)
//	src, _ := ctx.NewBufferSource(buf)
//	gain, _ := ctx.NewGain(0.8)
//	src.Connect(gain)
//	gain.Connect(ctx.Destination())
//	src.Start(ctx.CurrentTime() + 0.1)
package graph
