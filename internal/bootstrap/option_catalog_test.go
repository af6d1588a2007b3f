package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"photogrammetry-studio/internal/domain"
)

// TestGetOptionCatalogMarksSelection verifies current settings are highlighted.
func TestGetOptionCatalogMarksSelection(t *testing.T) {
	settings := photoSettings(t)
	settings.FileFormat = "obj"
	settings.Detail = "full"
	app := newTestApp(t, settings, 1, time.Millisecond)

	catalog := app.GetOptionCatalog()
	if len(catalog.Formats) != len(domain.FileFormats) || len(catalog.Details) != len(domain.Details) {
		t.Fatalf("catalog sizes = %d formats, %d details", len(catalog.Formats), len(catalog.Details))
	}
	assertSelected(t, catalog.Formats, "obj")
	assertSelected(t, catalog.Details, "full")
	assertSelected(t, catalog.SampleOrderings, "")
	assertSelected(t, catalog.FeatureSensitivities, "")
}

// TestGetOptionCatalogFlagsExistingOutputs verifies overwrite hints.
func TestGetOptionCatalogFlagsExistingOutputs(t *testing.T) {
	settings := photoSettings(t)
	existing := filepath.Join(settings.OutputDir, "chair.usda")
	if err := os.WriteFile(existing, []byte("#usda 1.0"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	app := newTestApp(t, settings, 1, time.Millisecond)

	for _, choice := range app.GetOptionCatalog().Formats {
		switch choice.ID {
		case "usda":
			if choice.ExistingPath != existing {
				t.Fatalf("usda existing path = %q, want %q", choice.ExistingPath, existing)
			}
		default:
			if choice.ExistingPath != "" {
				t.Fatalf("%s unexpectedly marked existing", choice.ID)
			}
		}
	}
}

// TestCatalogIsNotMutated verifies marking works on copies.
func TestCatalogIsNotMutated(t *testing.T) {
	_ = markSelected(detailCatalog, "raw")
	for _, choice := range detailCatalog {
		if choice.Selected {
			t.Fatalf("package catalog mutated: %+v", choice)
		}
	}
}

func assertSelected(t *testing.T, choices []domain.OptionChoice, id string) {
	t.Helper()
	for _, choice := range choices {
		if choice.Selected != (choice.ID == id) {
			t.Fatalf("choice %q selected=%v, want selection %q", choice.ID, choice.Selected, id)
		}
	}
}
