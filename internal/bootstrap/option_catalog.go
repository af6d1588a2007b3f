package bootstrap

import (
	"os"
	"path/filepath"
	"strings"

	"photogrammetry-studio/internal/domain"
)

var formatCatalog = []domain.OptionChoice{
	{ID: string(domain.FileFormatUSDZ), Name: "USDZ", Description: "Packaged USD with textures, ready for AR Quick Look."},
	{ID: string(domain.FileFormatUSDA), Name: "USDA", Description: "Plain-text USD, handy for inspection and diffing."},
	{ID: string(domain.FileFormatOBJ), Name: "OBJ", Description: "Wavefront mesh with material files."},
}

var detailCatalog = []domain.OptionChoice{
	{ID: string(domain.DetailPreview), Name: "Preview", Description: "Fastest, low polygon count for checking coverage."},
	{ID: string(domain.DetailReduced), Name: "Reduced", Description: "Web and mobile friendly."},
	{ID: string(domain.DetailMedium), Name: "Medium", Description: "Balanced size and fidelity."},
	{ID: string(domain.DetailFull), Name: "Full", Description: "High fidelity for interactive use."},
	{ID: string(domain.DetailRaw), Name: "Raw", Description: "Unsimplified mesh for post-production."},
}

var sampleOrderingCatalog = []domain.OptionChoice{
	{ID: "", Name: "Engine default", Description: "Let the engine decide."},
	{ID: string(domain.SampleOrderingUnordered), Name: "Unordered", Description: "Photos were taken in no particular order."},
	{ID: string(domain.SampleOrderingSequential), Name: "Sequential", Description: "Neighbouring photos overlap, e.g. walking around the object."},
}

var featureSensitivityCatalog = []domain.OptionChoice{
	{ID: "", Name: "Engine default", Description: "Let the engine decide."},
	{ID: string(domain.FeatureSensitivityNormal), Name: "Normal", Description: "Suits most textured objects."},
	{ID: string(domain.FeatureSensitivityHigh), Name: "High", Description: "Low-contrast or smooth surfaces; slower."},
}

// GetOptionCatalog returns the picker entries with the current selection marked.
func (a *App) GetOptionCatalog() domain.OptionCatalog {
	settings := a.catalogSettings()
	catalog := domain.OptionCatalog{
		Formats:              markSelected(formatCatalog, settings.FileFormat),
		Details:              markSelected(detailCatalog, settings.Detail),
		SampleOrderings:      markSelected(sampleOrderingCatalog, settings.SampleOrdering),
		FeatureSensitivities: markSelected(featureSensitivityCatalog, settings.FeatureSensitivity),
	}
	markExistingOutputs(catalog.Formats, settings.OutputDir, settings.Filename)
	return catalog
}

// catalogSettings loads settings for the catalog, falling back to the cached copy.
func (a *App) catalogSettings() domain.Settings {
	if a.Store != nil {
		if settings, err := a.Store.Load(); err == nil {
			return normalizeSettings(settings)
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return normalizeSettings(a.Settings)
}

func markSelected(choices []domain.OptionChoice, selected string) []domain.OptionChoice {
	out := make([]domain.OptionChoice, len(choices))
	copy(out, choices)
	for i := range out {
		out[i].Selected = out[i].ID == selected
	}
	return out
}

// markExistingOutputs flags formats whose artifact would overwrite a file.
func markExistingOutputs(formats []domain.OptionChoice, outputDir, filename string) {
	if strings.TrimSpace(outputDir) == "" {
		return
	}
	if strings.TrimSpace(filename) == "" {
		filename = domain.DefaultFilename
	}
	for i := range formats {
		candidate := filepath.Join(outputDir, filename+"."+formats[i].ID)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		formats[i].ExistingPath = candidate
	}
}
