package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photogrammetry-studio/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.Filename != domain.DefaultFilename {
		t.Fatalf("filename = %q, want %q", cfg.Filename, domain.DefaultFilename)
	}
	if cfg.Engine != EngineSimulated {
		t.Fatalf("engine = %q, want %q", cfg.Engine, EngineSimulated)
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
	if cfg.FileFormat != "usdz" || cfg.Detail != "medium" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

// TestFileStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestFileStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.yaml")
	store := NewFileStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestFileStoreSaveAndLoadRoundTrip checks persisted settings fidelity in both encodings.
func TestFileStoreSaveAndLoadRoundTrip(t *testing.T) {
	want := domain.Settings{
		InputDir:           "/photos/chair",
		OutputDir:          "/out",
		Filename:           "chair",
		FileFormat:         "obj",
		Detail:             "full",
		SampleOrdering:     "sequential",
		FeatureSensitivity: "high",
		Engine:             EngineCommand,
		EnginePath:         "/usr/local/bin/reconstruct",
		LogLevel:           "debug",
	}

	for _, name := range []string{"settings.yaml", "settings.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg", name)
			store := NewFileStore(path)

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got != want {
				t.Fatalf("settings = %+v, want %+v", got, want)
			}
		})
	}
}

// TestFileStoreWritesYAMLKeys checks the on-disk YAML layout.
func TestFileStoreWritesYAMLKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	if err := NewFileStore(path).Save(domain.Settings{InputDir: "/in", Detail: "raw"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "input_dir: /in") {
		t.Fatalf("unexpected yaml:\n%s", data)
	}
	if strings.Contains(string(data), "sample_ordering") {
		t.Fatalf("empty hints should be omitted:\n%s", data)
	}
}

// TestFileStoreLoadFillsBlankFields checks partially edited files.
func TestFileStoreLoadFillsBlankFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("input_dir: /photos\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.InputDir != "/photos" || got.Engine != EngineSimulated || got.Detail != "medium" {
		t.Fatalf("settings = %+v", got)
	}
	if got.Filename != "" {
		t.Fatalf("filename = %q, want blank (validator substitutes the default)", got.Filename)
	}
}

// TestFileStoreLoadInvalidContent checks parse error handling.
func TestFileStoreLoadInvalidContent(t *testing.T) {
	for name, content := range map[string]string{
		"settings.json": "{not-json",
		"settings.yaml": "input_dir: [unterminated",
	} {
		path := filepath.Join(t.TempDir(), name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := NewFileStore(path).Load(); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}
