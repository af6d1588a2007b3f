package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"photogrammetry-studio/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// FileStore persists settings in a single file on disk. Files ending in
// .json are written as JSON, anything else as YAML.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed settings store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing.
func (s *FileStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}

		return domain.Settings{}, err
	}

	var cfg domain.Settings
	if s.isJSON() {
		err = json.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("parse settings %s: %w", s.path, err)
	}

	return withDefaults(cfg), nil
}

// Save writes settings and creates parent directories.
func (s *FileStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if s.isJSON() {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o644)
}

func (s *FileStore) isJSON() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".json")
}
