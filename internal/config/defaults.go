package config

import (
	"os"
	"path/filepath"

	"clipmix/internal/domain"
)

const (
	defaultFFprobePath = "ffprobe"
	defaultFontURL     = "https://github.com/google/fonts/raw/main/ofl/inter/Inter%5Bopsz,wght%5D.ttf"
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	base := filepath.Join(homeDir, ".clipmix")

	return domain.Settings{
		FFprobePath:         defaultFFprobePath,
		CacheDir:            filepath.Join(base, "cache"),
		WorkDir:             os.TempDir(),
		BackgroundTrackPath: filepath.Join(base, "assets", "bgm.json"),
		FontURL:             defaultFontURL,
		OutputDir:           filepath.Join(homeDir, "Videos", "clipmix"),
		LogLevel:            defaultLogLevel,
		LogFormat:           defaultLogFormat,
	}
}

// DefaultPath returns the settings file location used when none is given.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clipmix", "config.toml")
	}
	return filepath.Join(".clipmix", "config.toml")
}

// Normalize trims every field, expands a leading ~ in paths and fills blank
// fields from DefaultSettings. FFmpegPath and EngineDownloadURL may stay empty.
func Normalize(cfg domain.Settings) domain.Settings {
	defaults := DefaultSettings()

	cfg.FFmpegPath = expandPath(cfg.FFmpegPath)
	cfg.EngineDownloadURL = trim(cfg.EngineDownloadURL)
	cfg.FFprobePath = orDefault(expandPath(cfg.FFprobePath), defaults.FFprobePath)
	cfg.CacheDir = orDefault(expandPath(cfg.CacheDir), defaults.CacheDir)
	cfg.WorkDir = orDefault(expandPath(cfg.WorkDir), defaults.WorkDir)
	cfg.BackgroundTrackPath = orDefault(expandPath(cfg.BackgroundTrackPath), defaults.BackgroundTrackPath)
	cfg.FontURL = orDefault(trim(cfg.FontURL), defaults.FontURL)
	cfg.OutputDir = orDefault(expandPath(cfg.OutputDir), defaults.OutputDir)
	cfg.LogLevel = orDefault(lower(cfg.LogLevel), defaults.LogLevel)
	cfg.LogFormat = orDefault(lower(cfg.LogFormat), defaults.LogFormat)
	return cfg
}
