package domain

import "path/filepath"

// DefaultFilename replaces an empty output filename.
const DefaultFilename = "modelFile"

// Configuration is the validated, immutable description of one job.
// Values are built by the validate package and must not be modified afterwards.
type Configuration struct {
	Input              string              `json:"input"`
	Output             string              `json:"output"`
	Filename           string              `json:"filename"`
	Format             FileFormat          `json:"format"`
	SampleOrdering     *SampleOrdering     `json:"sampleOrdering,omitempty"`
	FeatureSensitivity *FeatureSensitivity `json:"featureSensitivity,omitempty"`
	Detail             Detail              `json:"detail"`
	Geometry           *Bounds             `json:"geometry,omitempty"`
}

// OutputPath is the artifact location: output/filename.<ext>.
func (c Configuration) OutputPath() string {
	return filepath.Join(c.Output, c.Filename+"."+c.Format.Extension())
}
