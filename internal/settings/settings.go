// Package settings persists the app settings document at
// <vault>/.karta/settings.json and reloads it when edited externally.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/apperr"
)

const tmpPrefix = ".settings-tmp-"

// ColorTheme holds the five UI colors clients render with.
type ColorTheme struct {
	ViewportBG string `json:"viewport_bg"`
	PanelBG    string `json:"panel_bg"`
	FocalHL    string `json:"focal_hl"`
	PanelHL    string `json:"panel_hl"`
	TextColor  string `json:"text_color"`
}

// Settings is the persisted app settings document.
type Settings struct {
	Version               float32    `json:"version"`
	SaveLastViewedContext bool       `json:"save_last_viewed_context"`
	LastViewedContextID   *uuid.UUID `json:"last_viewed_context_id,omitempty"`
	VaultPath             string     `json:"vault_path,omitempty"`
	ColorTheme            ColorTheme `json:"color_theme"`
}

// Default returns the settings written on first run.
func Default() Settings {
	return Settings{
		Version:               1,
		SaveLastViewedContext: true,
		ColorTheme: ColorTheme{
			ViewportBG: "#1e1e2e",
			PanelBG:    "#181825",
			FocalHL:    "#f9e2af",
			PanelHL:    "#89b4fa",
			TextColor:  "#cdd6f4",
		},
	}
}

// Store owns the settings file: it keeps the current document in memory
// and writes every change atomically.
type Store struct {
	mu   sync.Mutex
	path string
	cur  Settings
}

// NewStore loads the settings at path, writing the defaults when the
// file does not exist yet.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.cur = Default()
		if err := s.write(s.cur); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperr.Filesystem("read settings", err)
	default:
		if err := json.Unmarshal(data, &s.cur); err != nil {
			return nil, apperr.Serialization("decode settings", err)
		}
	}
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Get returns the current settings.
func (s *Store) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Set replaces the settings and persists them.
func (s *Store) Set(v Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Version == 0 {
		v.Version = s.cur.Version
	}
	if err := s.write(v); err != nil {
		return s.cur, err
	}
	s.cur = v
	return v, nil
}

// Reload re-reads the file and reports whether the document changed.
// Used by the watcher after an external edit; a missing or unparseable
// file leaves the current settings in place.
func (s *Store) Reload() (Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.cur, false, nil
		}
		return s.cur, false, apperr.Filesystem("read settings", err)
	}
	var next Settings
	if err := json.Unmarshal(data, &next); err != nil {
		return s.cur, false, apperr.Serialization("decode settings", err)
	}

	prev, _ := json.Marshal(s.cur)
	if cur, _ := json.Marshal(next); bytes.Equal(prev, cur) {
		return s.cur, false, nil
	}
	s.cur = next
	return next, true, nil
}

// write persists v atomically: tmp file, fsync, rename.
func (s *Store) write(v Settings) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperr.Serialization("encode settings", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperr.Filesystem("mkdir", err)
	}
	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return apperr.Filesystem("create temp", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return apperr.Filesystem("write temp", err)
	}
	if err := tmp.Sync(); err != nil {
		return apperr.Filesystem("fsync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Filesystem("close temp", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperr.Filesystem("rename", err)
	}
	success = true
	return nil
}
