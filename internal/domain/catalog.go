package domain

// OptionChoice is one entry of a picker in the settings panel.
type OptionChoice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
	// ExistingPath is set for formats whose output file is already on disk.
	ExistingPath string `json:"existingPath,omitempty"`
}

// OptionCatalog lists every configurable reconstruction option.
type OptionCatalog struct {
	Formats              []OptionChoice `json:"formats"`
	Details              []OptionChoice `json:"details"`
	SampleOrderings      []OptionChoice `json:"sampleOrderings"`
	FeatureSensitivities []OptionChoice `json:"featureSensitivities"`
}
