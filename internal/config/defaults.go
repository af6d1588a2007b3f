package config

import (
	"os"
	"path/filepath"

	"photogrammetry-studio/internal/domain"
)

// Engine names accepted in Settings.Engine.
const (
	EngineSimulated = "simulated"
	EngineCommand   = "command"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		OutputDir:  filepath.Join(homeDir, "Documents", "Models"),
		Filename:   domain.DefaultFilename,
		FileFormat: string(domain.FileFormatUSDZ),
		Detail:     string(domain.DetailMedium),
		Engine:     EngineSimulated,
		LogLevel:   "info",
	}
}

// DefaultPath is where settings live when no path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "photogrammetry-studio", "settings.yaml")
}

// withDefaults fills fields a hand-edited file may leave blank.
func withDefaults(cfg domain.Settings) domain.Settings {
	def := DefaultSettings()
	if cfg.FileFormat == "" {
		cfg.FileFormat = def.FileFormat
	}
	if cfg.Detail == "" {
		cfg.Detail = def.Detail
	}
	if cfg.Engine == "" {
		cfg.Engine = def.Engine
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return cfg
}
