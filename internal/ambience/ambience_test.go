// ABOUTME: Tests for the ambience loader
// ABOUTME: Tests option lookup, HTTP download, caching and failure handling
package ambience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/castvox/castvox-go/pkg/audio/encode"
)

// wavBytes encodes a short 8 kHz mono ramp as a WAV file
func wavBytes(t *testing.T) []byte {
	t.Helper()
	raw := make([]byte, 0, 1600)
	for i := 0; i < 800; i++ {
		s := int16(i * 20)
		raw = append(raw, byte(s), byte(s>>8))
	}

	path := filepath.Join(t.TempDir(), "loop.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create wav: %v", err)
	}
	if err := encode.WriteWAV(f, raw, 8000, 1); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read wav: %v", err)
	}
	return data
}

func testFetcher(t *testing.T, srv *httptest.Server) *Fetcher {
	t.Helper()
	f, err := NewFetcher(t.TempDir(),
		WithHTTPClient(srv.Client()),
		WithOptions([]Option{
			{ID: None, Name: "None"},
			{ID: "cafe", Name: "Cafe", URL: srv.URL + "/coffee_shop.wav"},
			{ID: "office", Name: "Office", URL: srv.URL + "/missing.ogg"},
		}),
	)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestOptionsAreFixed(t *testing.T) {
	ids := IDs()
	want := []string{"none", "cafe", "office", "nature"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, ids[i])
		}
	}
	if Options[1].URL != "https://actions.google.com/sounds/v1/ambiences/coffee_shop.ogg" {
		t.Errorf("unexpected cafe url %s", Options[1].URL)
	}
}

func TestLoadNone(t *testing.T) {
	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	for _, id := range []string{"", "none"} {
		buf, err := f.Load(context.Background(), id, 24000)
		if err != nil || buf != nil {
			t.Errorf("expected no buffer for %q, got %v (%v)", id, buf, err)
		}
	}
}

func TestLoadUnknown(t *testing.T) {
	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	if _, err := f.Load(context.Background(), "jungle", 24000); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestLoadDecodesAndResamples(t *testing.T) {
	data := wavBytes(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(data)
	}))
	defer srv.Close()

	f := testFetcher(t, srv)
	buf, err := f.Load(context.Background(), "cafe", 24000)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if buf.SampleRate != 24000 {
		t.Errorf("expected 24000 Hz, got %d", buf.SampleRate)
	}
	if frames := buf.Frames(); frames < 2390 || frames > 2410 {
		t.Errorf("expected about 2400 frames, got %d", frames)
	}

	// Second load is served from the cache
	if _, err := f.Load(context.Background(), "CAFE", 24000); err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected one download, got %d", hits.Load())
	}
}

func TestLoadHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := testFetcher(t, srv)
	if _, err := f.Load(context.Background(), "office", 24000); !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}

	entries, _ := os.ReadDir(f.cacheDir)
	if len(entries) != 0 {
		t.Errorf("expected nothing cached after a failure, got %d entries", len(entries))
	}
}

func TestLoadUndecodable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not audio"))
	}))
	defer srv.Close()

	f := testFetcher(t, srv)
	_, err := f.Load(context.Background(), "cafe", 24000)
	if err == nil || errors.Is(err, ErrFetch) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	f := testFetcher(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Fetch(ctx, srv.URL+"/a.ogg"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	f, err := NewFetcher(dir)
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	if err := f.Cleanup(); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("cache directory still exists")
	}
}
