// Package config loads and persists clipmix settings as TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"clipmix/internal/domain"
)

// Store defines persistence operations for app settings.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// TOMLStore persists settings in a single TOML file on disk.
type TOMLStore struct {
	path string
}

// NewTOMLStore creates a TOML-backed settings store.
func NewTOMLStore(path string) *TOMLStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &TOMLStore{path: expandPath(path)}
}

// Path returns the resolved settings file location.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load reads settings from disk or returns defaults when missing. Fields left
// out of the file keep their default values.
func (s *TOMLStore) Load() (domain.Settings, error) {
	cfg := DefaultSettings()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return domain.Settings{}, fmt.Errorf("read config: %w", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parse config %s: %w", s.path, err)
	}

	return Normalize(cfg), nil
}

// Save writes settings as TOML and creates parent directories.
func (s *TOMLStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(Normalize(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Encode renders settings as TOML for display.
func Encode(cfg domain.Settings) ([]byte, error) {
	return toml.Marshal(cfg)
}

func expandPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func trim(value string) string {
	return strings.TrimSpace(value)
}

func lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
