// ABOUTME: Tests for the CLI helpers
// ABOUTME: Covers MIME sniffing, listing output and config file creation
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/internal/config"
	"github.com/castvox/castvox-go/internal/protocol"
	"github.com/castvox/castvox-go/internal/store"
	"github.com/castvox/castvox-go/internal/studio"
)

func TestSampleMIME(t *testing.T) {
	wav := append([]byte("RIFF\x00\x00\x00\x00WAVE"), make([]byte, 8)...)

	tests := []struct {
		name string
		path string
		data []byte
		want string
	}{
		{"wav", "a.bin", wav, "audio/wav"},
		{"mp3 id3", "a.bin", []byte("ID3\x03\x00"), "audio/mpeg"},
		{"flac", "a.bin", []byte("fLaC\x00"), "audio/flac"},
		{"ogg opus", "a.bin", []byte("OggS\x00\x02OpusHead"), "audio/ogg"},
		{"ogg vorbis", "a.bin", []byte("OggS\x00\x02\x01vorbis"), "audio/ogg"},
		{"unknown falls back to webm", "a.bin", []byte("????"), "audio/webm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sampleMIME(tt.path, tt.data); got != tt.want {
				t.Errorf("sampleMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageMIME(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"face.png", "image/png"},
		{"face.JPG", "image/jpeg"},
		{"face", "image/png"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := imageMIME(tt.path); got != tt.want {
				t.Errorf("imageMIME(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFilterByNameKeepsMatchOrder(t *testing.T) {
	all := catalog.All()
	if len(all) < 3 {
		t.Fatalf("catalog has %d voices", len(all))
	}
	matches := []catalog.Voice{all[2], all[0]}
	got := filterByName(all[:2], matches)
	if len(got) != 1 || got[0].Name != all[0].Name {
		t.Errorf("filterByName() = %v, want only %s", got, all[0].Name)
	}
}

func TestWriteVoices(t *testing.T) {
	var buf bytes.Buffer
	v := catalog.First()
	if err := writeVoices(&buf, []catalog.Voice{v}); err != nil {
		t.Fatalf("writeVoices() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row", len(lines))
	}
	if !strings.HasPrefix(lines[1], v.Name) {
		t.Errorf("row = %q, want it to start with %s", lines[1], v.Name)
	}
}

func TestWriteProjects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var empty bytes.Buffer
	if err := writeProjects(&empty, nil, now); err != nil {
		t.Fatal(err)
	}
	if got := empty.String(); got != "no saved projects\n" {
		t.Errorf("empty listing = %q", got)
	}

	p := store.NewProject("Selamat pagi semuanya, apa kabar?", "Kore", "")
	p.CreatedAt = now.Add(-2 * time.Hour).UnixMilli()

	var buf bytes.Buffer
	if err := writeProjects(&buf, []store.Project{p}, now); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{p.ID, p.Title, "Kore", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing %q missing %q", out, want)
		}
	}
}

func TestWriteClonesShowsSampleSize(t *testing.T) {
	now := time.Now()
	c := store.NewClone(1, "AAAA", "Kore", catalog.Analysis{Gender: "Female"})

	var buf bytes.Buffer
	if err := writeClones(&buf, []store.Clone{c}, now); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "3 B") || !strings.Contains(out, c.Name) {
		t.Errorf("listing = %q, want name and 3 B sample", out)
	}
}

func TestMixerLine(t *testing.T) {
	got := mixerLine(protocol.MixerState{Channels: []protocol.ChannelLevel{
		{Channel: "voice", Volume: 1},
		{Channel: "ambience", Volume: 0.4, Muted: true},
	}})
	want := "mixer voice 100%, ambience 40% (muted)"
	if got != want {
		t.Errorf("mixerLine() = %q, want %q", got, want)
	}
}

func TestRecommendationMarkdown(t *testing.T) {
	v := catalog.First()
	md := recommendationMarkdown(collab.Recommendation{
		VoiceNames:        []string{v.Name, "NoSuchVoice"},
		SystemInstruction: "Speak warmly.",
		SampleText:        "Halo!",
	})
	for _, want := range []string{"**" + v.Name + "**", "## Persona", "Speak warmly.", "> Halo!"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "NoSuchVoice") {
		t.Error("unknown voices should be skipped")
	}

	none := recommendationMarkdown(collab.Recommendation{})
	if !strings.Contains(none, "castvox voices") {
		t.Errorf("empty recommendation = %q", none)
	}
}

func TestUserError(t *testing.T) {
	err := userError(studio.ErrEmptyText)
	if !errors.Is(err, studio.ErrEmptyText) {
		t.Errorf("userError() lost the cause: %v", err)
	}
	if !strings.HasPrefix(err.Error(), "enter some text first") {
		t.Errorf("userError() = %q", err)
	}

	plain := errors.New("boom")
	if got := userError(plain); !strings.HasPrefix(got.Error(), "render failed") {
		t.Errorf("userError(plain) = %q", got)
	}
}

func TestIgnoreCancel(t *testing.T) {
	if err := ignoreCancel(context.Canceled); err != nil {
		t.Errorf("ignoreCancel(Canceled) = %v", err)
	}
	if err := ignoreCancel(os.ErrClosed); !errors.Is(err, os.ErrClosed) {
		t.Errorf("ignoreCancel() = %v", err)
	}
}

func TestEnsureConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates defaults", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "castvox.yaml")
		if _, err := ensureConfigFile(path); err != nil {
			t.Fatalf("ensureConfigFile() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != config.DefaultYAML {
			t.Error("new file should hold the default settings")
		}
	})

	t.Run("keeps existing", func(t *testing.T) {
		path := filepath.Join(dir, "mine.yml")
		if err := os.WriteFile(path, []byte("debug: true\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := ensureConfigFile(path); err != nil {
			t.Fatal(err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != "debug: true\n" {
			t.Errorf("existing file was rewritten: %q", data)
		}
	})

	t.Run("rejects other formats", func(t *testing.T) {
		if _, err := ensureConfigFile(filepath.Join(dir, "castvox.toml")); err == nil {
			t.Error("expected an error for .toml")
		}
	})
}
