// ABOUTME: Local persistence for saved projects and voice clones
// ABOUTME: Keeps each collection as one file under a fixed key in the data directory
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/castvox/castvox-go/internal/catalog"
)

const (
	// ProjectsKey names the projects collection
	ProjectsKey = "bp_projects"

	// ClonesKey names the voice clone collection
	ClonesKey = "bp_clones"

	titleLength = 20
)

// ErrNotFound is returned when no entry has the requested id
var ErrNotFound = errors.New("not found")

// Project is a saved studio script
type Project struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Text              string `json:"text"`
	VoiceName         string `json:"voiceName"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
	CreatedAt         int64  `json:"createdAt"` // unix milliseconds
}

// Created returns the creation time
func (p Project) Created() time.Time { return time.UnixMilli(p.CreatedAt) }

// Clone is a recorded sample matched against the catalog
type Clone struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	OriginalSampleBase64 string           `json:"originalSampleBase64"`
	MatchedVoiceName     string           `json:"matchedVoiceName"`
	Analysis             catalog.Analysis `json:"analysis"`
	CreatedAt            int64            `json:"createdAt"`
}

// Created returns the creation time
func (c Clone) Created() time.Time { return time.UnixMilli(c.CreatedAt) }

// Title shortens a script to a project title
func Title(text string) string {
	r := []rune(text)
	if len(r) <= titleLength {
		return text
	}
	return string(r[:titleLength]) + "..."
}

// NewProject builds a project with a fresh id
func NewProject(text, voiceName, systemInstruction string) Project {
	return Project{
		ID:                uuid.NewString(),
		Title:             Title(text),
		Text:              text,
		VoiceName:         voiceName,
		SystemInstruction: systemInstruction,
		CreatedAt:         time.Now().UnixMilli(),
	}
}

// NewClone builds the n-th clone with a fresh id
func NewClone(n int, sampleBase64, matchedVoice string, analysis catalog.Analysis) Clone {
	return Clone{
		ID:                   uuid.NewString(),
		Name:                 fmt.Sprintf("Kloning Vokal #%d", n),
		OriginalSampleBase64: sampleBase64,
		MatchedVoiceName:     matchedVoice,
		Analysis:             analysis,
		CreatedAt:            time.Now().UnixMilli(),
	}
}

// Store reads and writes the collections. Projects are plain JSON; clones
// carry whole audio samples and are zstd compressed.
type Store struct {
	dir string
	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates the data directory if needed
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Store{dir: dir, enc: enc, dec: dec}, nil
}

// Dir returns the data directory
func (s *Store) Dir() string {
	return s.dir
}

// Close releases the codecs
func (s *Store) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

// Projects lists saved projects, newest first
func (s *Store) Projects() ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var projects []Project
	err := s.read(ProjectsKey, false, &projects)
	return projects, err
}

// Project returns one project by id
func (s *Store) Project(id string) (Project, error) {
	projects, err := s.Projects()
	if err != nil {
		return Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
}

// SaveProject replaces the project with the same id in place, or adds it
// at the front
func (s *Store) SaveProject(p Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []Project
	if err := s.read(ProjectsKey, false, &projects); err != nil {
		return err
	}
	replaced := false
	for i := range projects {
		if projects[i].ID == p.ID {
			projects[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append([]Project{p}, projects...)
	}

	log.Debug("saving project", "id", p.ID, "replaced", replaced)
	return s.write(ProjectsKey, false, projects)
}

// DeleteProject removes a project
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []Project
	if err := s.read(ProjectsKey, false, &projects); err != nil {
		return err
	}
	kept := projects[:0]
	for _, p := range projects {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(projects) {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return s.write(ProjectsKey, false, kept)
}

// Clones lists saved clones, newest first
func (s *Store) Clones() ([]Clone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var clones []Clone
	err := s.read(ClonesKey, true, &clones)
	return clones, err
}

// Clone returns one clone by id
func (s *Store) Clone(id string) (Clone, error) {
	clones, err := s.Clones()
	if err != nil {
		return Clone{}, err
	}
	for _, c := range clones {
		if c.ID == id {
			return c, nil
		}
	}
	return Clone{}, fmt.Errorf("clone %s: %w", id, ErrNotFound)
}

// AddClone adds a clone at the front. A clone whose id is already stored
// is left as it was.
func (s *Store) AddClone(c Clone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clones []Clone
	if err := s.read(ClonesKey, true, &clones); err != nil {
		return err
	}
	for _, existing := range clones {
		if existing.ID == c.ID {
			return nil
		}
	}
	return s.write(ClonesKey, true, append([]Clone{c}, clones...))
}

// DeleteClone removes a clone
func (s *Store) DeleteClone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clones []Clone
	if err := s.read(ClonesKey, true, &clones); err != nil {
		return err
	}
	kept := clones[:0]
	for _, c := range clones {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(clones) {
		return fmt.Errorf("clone %s: %w", id, ErrNotFound)
	}
	return s.write(ClonesKey, true, kept)
}

func (s *Store) path(key string, compressed bool) string {
	name := key + ".json"
	if compressed {
		name += ".zst"
	}
	return filepath.Join(s.dir, name)
}

// read decodes a collection; a missing file is an empty collection
func (s *Store) read(key string, compressed bool, v any) error {
	data, err := os.ReadFile(s.path(key, compressed))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	if compressed {
		data, err = s.dec.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", key, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// write replaces a collection via a temp file and rename
func (s *Store) write(key string, compressed bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if compressed {
		data = s.enc.EncodeAll(data, nil)
	}

	path := s.path(key, compressed)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}
	return nil
}
