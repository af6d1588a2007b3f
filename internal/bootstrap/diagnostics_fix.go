package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/diagnostics"
	"photogrammetry-studio/internal/domain"
)

// FixDiagnostic applies the remediation for one fixable diagnostic item.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case diagnostics.ItemEngine:
		settings, settingsChanged = resetEngine(settings)
	case diagnostics.ItemOutputDir:
		fixErr = createOutputDir(settings.OutputDir)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(a.applyOverrides(settings))
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(a.applyOverrides(settings))
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// resetEngine switches back to the simulated engine.
func resetEngine(settings domain.Settings) (domain.Settings, bool) {
	if settings.Engine == config.EngineSimulated && settings.EnginePath == "" {
		return settings, false
	}
	settings.Engine = config.EngineSimulated
	settings.EnginePath = ""
	return settings, true
}

func createOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
