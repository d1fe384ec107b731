// ABOUTME: Studio console program wiring
// ABOUTME: Connects the bubbletea model to the waveform driver and engine session events
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/castvox/castvox-go/pkg/engine"
	"github.com/castvox/castvox-go/pkg/visualizer"
)

// Config is what Run needs beyond the model options
type Config struct {
	Options
	Spectrum visualizer.FrequencySource
	Events   <-chan engine.SessionEvent
	FPS      int
}

// Run starts the console and blocks until the user quits
func Run(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	canvas := NewCanvas(76, waveRows)
	renderer := visualizer.NewRenderer(cfg.Spectrum)
	renderer.SetBaselineColor(visualizer.RGB{R: 0x52, G: 0x52, B: 0x5B})
	frames := visualizer.NewFrameScheduler()
	driver := visualizer.NewDriver(renderer, canvas, frames)
	defer driver.Close()

	cfg.Options.Visual = driver
	cfg.Options.Canvas = canvas
	p := tea.NewProgram(NewModel(ctx, cfg.Options), tea.WithAltScreen(), tea.WithContext(ctx))

	driver.OnFrame(func(f visualizer.Frame) {
		p.Send(FrameMsg{Intensity: f.Intensity, Playing: f.Playing})
	})
	go frames.Run(ctx, cfg.FPS)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-cfg.Events:
				if !ok {
					return
				}
				p.Send(SessionMsg(ev))
			}
		}
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
