package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/engine"
)

// Check item ids, also used by the fix actions.
const (
	ItemEngine    = "engine"
	ItemInputDir  = "input_dir"
	ItemOutputDir = "output_dir"
)

// Checker validates the engine and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkEngine(settings),
		c.checkInputDir(settings.InputDir),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkEngine verifies the configured engine can be started.
func (c *Checker) checkEngine(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemEngine,
		Name: "Reconstruction engine",
	}

	switch strings.TrimSpace(settings.Engine) {
	case "", config.EngineSimulated:
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Simulated engine in use. Generated files are placeholders."
		item.Hint = "Configure an engine helper to produce real models."
		return item
	case config.EngineCommand:
	default:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown engine: %s", settings.Engine)
		item.Hint = "Reset the engine to the simulated one or configure a helper."
		item.Fixable = true
		return item
	}

	if strings.TrimSpace(settings.EnginePath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Engine helper path is empty."
		item.Hint = "Set the path of the reconstruction helper or switch back to the simulated engine."
		item.Fixable = true
		return item
	}

	path, err := c.lookPath(settings.EnginePath)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Engine helper not found: %s", settings.EnginePath)
		item.Hint = "Install the helper or switch back to the simulated engine."
		item.Fixable = true
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", path)
	return item
}

// checkInputDir validates the photo directory and counts its images.
func (c *Checker) checkInputDir(inputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemInputDir,
		Name: "Input directory",
	}

	if strings.TrimSpace(inputDir) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "Input directory is not set."
		item.Hint = "Choose the folder holding the photos to reconstruct."
		return item
	}

	info, err := c.stat(inputDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, fs.ErrNotExist) {
			item.Message = fmt.Sprintf("Input directory does not exist: %s", inputDir)
		} else {
			item.Message = fmt.Sprintf("Cannot access input directory: %s", inputDir)
		}
		item.Hint = "Choose an existing folder of photos."
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Input is not a directory: %s", inputDir)
		item.Hint = "Choose the folder, not a single photo."
		return item
	}

	entries, err := c.readDir(inputDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read input directory: %s", inputDir)
		item.Hint = "Check permissions for the input directory."
		return item
	}

	images := 0
	for _, entry := range entries {
		if !entry.IsDir() && engine.IsImageFile(entry.Name()) {
			images++
		}
	}
	if images == 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("No photos found in directory: %s", inputDir)
		item.Hint = "Add JPEG, HEIC, TIFF or PNG photos to this directory."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("%d photos in %s", images, inputDir)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemOutputDir,
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where model files can be written."
		return item
	}

	info, err := c.stat(outputDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, fs.ErrNotExist) {
			item.Message = fmt.Sprintf("Output directory does not exist: %s", outputDir)
			item.Hint = "Create it from here or choose another location."
			item.Fixable = true
		} else {
			item.Message = fmt.Sprintf("Cannot access output directory: %s", outputDir)
			item.Hint = "Choose a writable location or adjust filesystem permissions."
		}
		return item
	}
	if !info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output is not a directory: %s", outputDir)
		item.Hint = "Choose a directory for model export."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for model export."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		createTemp: createTemp,
		remove:     remove,
	}
}
