// ABOUTME: Audio output tests
// ABOUTME: Verifies Output implementations and the byte adapter over a Source
package output

import (
	"encoding/binary"
	"sync/atomic"
	"testing"
	"time"
)

type constSource struct {
	value float32
	calls atomic.Int64
}

func (s *constSource) Render(dst []float32) {
	s.calls.Add(1)
	for i := range dst {
		dst[i] = s.value
	}
}

func TestOtoImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
}

func TestDiscardImplementsOutput(t *testing.T) {
	var _ Output = (*Discard)(nil)
}

func TestSourceReaderEncodesFrames(t *testing.T) {
	src := &constSource{value: 0.5}
	r := &sourceReader{src: src, channels: 2}

	// 9 bytes holds two whole stereo frames
	p := make([]byte, 9)
	n, err := r.Read(p)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes, got %d", n)
	}
	for i := 0; i < 4; i++ {
		if got := int16(binary.LittleEndian.Uint16(p[i*2:])); got != 16384 {
			t.Errorf("sample %d: expected 16384, got %d", i, got)
		}
	}
}

func TestSourceReaderSilentAfterClose(t *testing.T) {
	src := &constSource{value: 0.5}
	r := &sourceReader{src: src, channels: 1}
	r.close()

	p := make([]byte, 4)
	if _, err := r.Read(p); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if src.calls.Load() != 0 {
		t.Error("expected closed reader not to pull from its source")
	}
	for _, b := range p {
		if b != 0 {
			t.Fatalf("expected silence, got %v", p)
		}
	}
}

func TestDiscardPullsUntilClosed(t *testing.T) {
	src := &constSource{}
	out := NewDiscard()

	if err := out.Open(24000, 2, src); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := out.Open(24000, 2, src); err == nil {
		t.Error("expected error opening twice")
	}

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if src.calls.Load() == 0 {
		t.Fatal("expected discard output to render")
	}

	if err := out.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	after := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if src.calls.Load() != after {
		t.Error("expected rendering to stop after close")
	}

	if err := out.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}
