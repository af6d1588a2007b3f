package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"photogrammetry-studio/internal/domain"
)

// forbiddenFilenameChars may not appear in an output filename.
const forbiddenFilenameChars = "/\\:\x00"

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// Raw is the unvalidated form state. Empty enum strings select the default
// (format, detail) or leave the hint unset (ordering, sensitivity).
type Raw struct {
	Input              string         `json:"input"`
	Output             string         `json:"output"`
	Filename           string         `json:"filename"`
	Format             string         `json:"format"`
	Detail             string         `json:"detail"`
	SampleOrdering     string         `json:"sampleOrdering"`
	FeatureSensitivity string         `json:"featureSensitivity"`
	Geometry           *domain.Bounds `json:"geometry,omitempty"`
}

// fields is the normalized form checked by struct tags.
type fields struct {
	Filename           string `validate:"filename"`
	Input              string `validate:"required,dir"`
	Output             string `validate:"required,dir"`
	Format             string `validate:"oneof=usdz usda obj"`
	Detail             string `validate:"oneof=preview reduced medium full raw"`
	SampleOrdering     string `validate:"omitempty,oneof=unordered sequential"`
	FeatureSensitivity string `validate:"omitempty,oneof=normal high"`
}

type fieldRule struct {
	name    string
	err     error
	message string
}

// rules is ordered by precedence: a bad filename wins over every other field.
var rules = []fieldRule{
	{name: "Filename", err: ErrInvalidFilename, message: "The filename is invalid. Please check the filename."},
	{name: "Input", err: ErrInvalidInput, message: "The input is invalid. Please check the input."},
	{name: "Output", err: ErrInvalidOutput, message: "The output is invalid. Please check the output."},
	{name: "Format", err: ErrInvalidFileFormat, message: "The file format is not supported."},
	{name: "Detail", err: ErrInvalidOption, message: "The detail level is not supported."},
	{name: "SampleOrdering", err: ErrInvalidOption, message: "The sample ordering is not supported."},
	{name: "FeatureSensitivity", err: ErrInvalidOption, message: "The feature sensitivity is not supported."},
}

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v, err := newValidator()
		if err != nil {
			panic(fmt.Sprintf("validate: %v", err))
		}
		validateInst = v
	})
	return validateInst
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	err := v.RegisterValidation("filename", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), forbiddenFilenameChars)
	})
	if err != nil {
		return nil, fmt.Errorf("register filename tag: %w", err)
	}
	return v, nil
}

// Configuration turns raw form input into an immutable configuration.
// Directory checks stat the filesystem; the result is a best-effort
// pre-check and the paths may change before the engine opens them.
func Configuration(raw Raw) (domain.Configuration, error) {
	f := normalize(raw)

	if err := validatorInstance().Struct(f); err != nil {
		return domain.Configuration{}, toError(err)
	}
	if raw.Geometry != nil && !raw.Geometry.Valid() {
		return domain.Configuration{}, &Error{
			Field:   "geometry",
			Message: "The bounding box is invalid. Each minimum must not exceed its maximum.",
			Err:     ErrInvalidOption,
		}
	}

	cfg := domain.Configuration{
		Input:    f.Input,
		Output:   f.Output,
		Filename: f.Filename,
		Format:   domain.FileFormat(f.Format),
		Detail:   domain.Detail(f.Detail),
	}
	if f.SampleOrdering != "" {
		ordering := domain.SampleOrdering(f.SampleOrdering)
		cfg.SampleOrdering = &ordering
	}
	if f.FeatureSensitivity != "" {
		sensitivity := domain.FeatureSensitivity(f.FeatureSensitivity)
		cfg.FeatureSensitivity = &sensitivity
	}
	if raw.Geometry != nil {
		bounds := *raw.Geometry
		cfg.Geometry = &bounds
	}
	return cfg, nil
}

// normalize trims input, resolves absolute paths and applies defaults.
func normalize(raw Raw) fields {
	f := fields{
		Filename:           strings.TrimSpace(raw.Filename),
		Input:              normalizePath(raw.Input),
		Output:             normalizePath(raw.Output),
		Format:             strings.ToLower(strings.TrimSpace(raw.Format)),
		Detail:             strings.ToLower(strings.TrimSpace(raw.Detail)),
		SampleOrdering:     strings.ToLower(strings.TrimSpace(raw.SampleOrdering)),
		FeatureSensitivity: strings.ToLower(strings.TrimSpace(raw.FeatureSensitivity)),
	}
	if f.Filename == "" {
		f.Filename = domain.DefaultFilename
	}
	if f.Format == "" {
		f.Format = string(domain.FileFormatUSDZ)
	}
	if f.Detail == "" {
		f.Detail = string(domain.DetailMedium)
	}
	return f
}

func normalizePath(raw string) string {
	path := strings.TrimSpace(raw)
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// toError picks the highest-precedence failing field.
func toError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Message: "Unknown error. Please check parameters.", Err: err}
	}

	failed := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		failed[fe.StructField()] = true
	}
	for _, rule := range rules {
		if failed[rule.name] {
			return &Error{
				Field:   strings.ToLower(rule.name[:1]) + rule.name[1:],
				Message: rule.message,
				Err:     rule.err,
			}
		}
	}
	return &Error{Message: "Unknown error. Please check parameters.", Err: err}
}
