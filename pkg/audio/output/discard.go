// ABOUTME: Headless audio output that renders in real time without a device
// ABOUTME: Keeps the graph clock moving for servers and machines without sound hardware
package output

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Discard pulls frames at the configured rate and drops them
type Discard struct {
	mu       sync.Mutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewDiscard creates a headless output
func NewDiscard() Output {
	return &Discard{interval: 10 * time.Millisecond}
}

// Open starts the render loop
func (d *Discard) Open(sampleRate, channels int, src Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return fmt.Errorf("output already open")
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	frames := int(time.Duration(sampleRate) * d.interval / time.Second)
	if frames < 1 {
		frames = 1
	}
	go d.run(ctx, src, make([]float32, frames*channels))
	return nil
}

func (d *Discard) run(ctx context.Context, src Source, buf []float32) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			src.Render(buf)
		}
	}
}

// Close stops the render loop
func (d *Discard) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
