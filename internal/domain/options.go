package domain

import "fmt"

// FileFormat is the container written by the engine.
type FileFormat string

const (
	FileFormatUSDZ FileFormat = "usdz"
	FileFormatUSDA FileFormat = "usda"
	FileFormatOBJ  FileFormat = "obj"
)

// FileFormats lists supported output containers in presentation order.
var FileFormats = []FileFormat{FileFormatUSDZ, FileFormatUSDA, FileFormatOBJ}

// Extension returns the filename extension, without the dot.
func (f FileFormat) Extension() string {
	return string(f)
}

// Detail is the requested output quality tier.
type Detail string

const (
	DetailPreview Detail = "preview"
	DetailReduced Detail = "reduced"
	DetailMedium  Detail = "medium"
	DetailFull    Detail = "full"
	DetailRaw     Detail = "raw"
)

// Details lists quality tiers from coarsest to finest.
var Details = []Detail{DetailPreview, DetailReduced, DetailMedium, DetailFull, DetailRaw}

// SampleOrdering hints how the photos were captured.
type SampleOrdering string

const (
	SampleOrderingUnordered  SampleOrdering = "unordered"
	SampleOrderingSequential SampleOrdering = "sequential"
)

// SampleOrderings lists the concrete ordering hints.
var SampleOrderings = []SampleOrdering{SampleOrderingUnordered, SampleOrderingSequential}

// FeatureSensitivity hints how hard the engine should look for landmarks.
type FeatureSensitivity string

const (
	FeatureSensitivityNormal FeatureSensitivity = "normal"
	FeatureSensitivityHigh   FeatureSensitivity = "high"
)

// FeatureSensitivities lists the concrete sensitivity hints.
var FeatureSensitivities = []FeatureSensitivity{FeatureSensitivityNormal, FeatureSensitivityHigh}

// Bounds is an axis-aligned bounding box hint for the reconstructed geometry.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Valid reports whether Min <= Max on every axis.
func (b Bounds) Valid() bool {
	for i := range b.Min {
		if b.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// String formats the box as minX,minY,minZ,maxX,maxY,maxZ.
func (b Bounds) String() string {
	return fmt.Sprintf("%g,%g,%g,%g,%g,%g", b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}
