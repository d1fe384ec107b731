// ABOUTME: Fixed ambience beds and their loader
// ABOUTME: Fetches loops over HTTP with an on-disk cache and decodes them to the context rate
package ambience

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/castvox/castvox-go/internal/version"
	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/decode"
	"github.com/castvox/castvox-go/pkg/audio/resample"
)

// None is the id of the silent option
const None = "none"

var (
	// ErrUnknown is returned for an ambience id outside the fixed set
	ErrUnknown = errors.New("unknown ambience")

	// ErrFetch is returned when the loop cannot be downloaded
	ErrFetch = errors.New("ambience fetch failed")
)

// Option is one selectable ambience bed
type Option struct {
	ID   string
	Name string
	URL  string
}

// Options is the fixed ambience set
var Options = []Option{
	{ID: None, Name: "None"},
	{ID: "cafe", Name: "Cafe", URL: "https://actions.google.com/sounds/v1/ambiences/coffee_shop.ogg"},
	{ID: "office", Name: "Office", URL: "https://actions.google.com/sounds/v1/ambiences/office_ambience.ogg"},
	{ID: "nature", Name: "Nature", URL: "https://actions.google.com/sounds/v1/ambiences/rain_on_roof.ogg"},
}

// IDs returns the option ids in display order
func IDs() []string {
	ids := make([]string, len(Options))
	for i, o := range Options {
		ids[i] = o.ID
	}
	return ids
}

// Loader resolves an ambience id to a playable buffer
type Loader interface {
	Load(ctx context.Context, id string, sampleRate int) (*audio.Buffer, error)
}

// Fetcher downloads and decodes ambience loops
type Fetcher struct {
	cacheDir string
	client   *http.Client
	options  []Option
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithOptions replaces the ambience table
func WithOptions(options []Option) FetcherOption {
	return func(f *Fetcher) { f.options = options }
}

// NewFetcher creates a fetcher caching under cacheDir, or a temp
// directory when cacheDir is empty
func NewFetcher(cacheDir string, opts ...FetcherOption) (*Fetcher, error) {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "castvox-ambience")
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	f := &Fetcher{
		cacheDir: cacheDir,
		client:   &http.Client{},
		options:  Options,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Lookup finds an option by id
func (f *Fetcher) Lookup(id string) (Option, error) {
	if id == "" {
		id = None
	}
	for _, o := range f.options {
		if strings.EqualFold(o.ID, id) {
			return o, nil
		}
	}
	return Option{}, fmt.Errorf("%w: %q", ErrUnknown, id)
}

// Load returns the decoded loop for id at sampleRate. The silent option
// yields a nil buffer and no error.
func (f *Fetcher) Load(ctx context.Context, id string, sampleRate int) (*audio.Buffer, error) {
	opt, err := f.Lookup(id)
	if err != nil {
		return nil, err
	}
	if opt.URL == "" {
		return nil, nil
	}

	data, err := f.Fetch(ctx, opt.URL)
	if err != nil {
		return nil, err
	}

	buf, err := decode.Asset(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ambience %s: %w", opt.ID, err)
	}
	log.Debug("ambience loaded", "id", opt.ID, "rate", buf.SampleRate, "duration", buf.Duration())
	return resample.Buffer(buf, sampleRate), nil
}

// Fetch returns the bytes at url, from the cache when present
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	cachePath := f.cachePath(url)
	if data, err := os.ReadFile(cachePath); err == nil {
		log.Debug("ambience cache hit", "path", cachePath)
		return data, nil
	}

	log.Debug("downloading ambience", "url", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	// Write to a temp file first so a partial download never becomes a hit
	tmp := cachePath + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Debug("failed to cache ambience", "err", err)
		return data, nil
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		log.Debug("failed to cache ambience", "err", err)
	}
	return data, nil
}

func (f *Fetcher) cachePath(url string) string {
	hash := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], extension(url)))
}

// extension extracts file extension from URL
func extension(url string) string {
	url = strings.Split(url, "?")[0]
	ext := filepath.Ext(url)
	if ext == "" {
		ext = ".bin"
	}
	return ext
}

// Cleanup removes the cache directory
func (f *Fetcher) Cleanup() error {
	return os.RemoveAll(f.cacheDir)
}
