// ABOUTME: Audio-reactive waveform visualizer
// ABOUTME: Turns analyser frequency data into drawable strokes on a frame loop
// Package visualizer renders the studio's live waveform.
//
// A Renderer reads frequency bins from a FrequencySource and produces a
// Frame of strokes: a primary voice line shaped by the spectrum and a
// softer glow line, both tinted by a palette that cycles faster as the
// audio gets louder. When nothing is playing the frame is a faint baseline.
//
// A Driver owns the loop. It asks a FrameScheduler for one frame at a time
// and stops asking as soon as playback stops or the driver is closed, so no
// frame request outlives its owner. Surfaces receive the frame scaled to
// their device pixel ratio.
package visualizer
