package domain

// JobPhase tracks the lifecycle of a single reconstruction job.
type JobPhase string

const (
	JobPhaseIdle       JobPhase = "idle"
	JobPhaseSubmitting JobPhase = "submitting"
	JobPhaseRunning    JobPhase = "running"
	JobPhaseCancelling JobPhase = "cancelling"
	JobPhaseCompleted  JobPhase = "completed"
	JobPhaseCancelled  JobPhase = "cancelled"
	JobPhaseFailed     JobPhase = "failed"
)

// Active reports whether the phase holds an engine session or is about to.
func (p JobPhase) Active() bool {
	switch p {
	case JobPhaseSubmitting, JobPhaseRunning, JobPhaseCancelling:
		return true
	default:
		return false
	}
}

// Terminal reports whether the phase is a job outcome.
func (p JobPhase) Terminal() bool {
	switch p {
	case JobPhaseCompleted, JobPhaseCancelled, JobPhaseFailed:
		return true
	default:
		return false
	}
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	InputDir           string `json:"inputDir" yaml:"input_dir"`
	OutputDir          string `json:"outputDir" yaml:"output_dir"`
	Filename           string `json:"filename" yaml:"filename"`
	FileFormat         string `json:"fileFormat" yaml:"file_format"`
	Detail             string `json:"detail" yaml:"detail"`
	SampleOrdering     string `json:"sampleOrdering,omitempty" yaml:"sample_ordering,omitempty"`
	FeatureSensitivity string `json:"featureSensitivity,omitempty" yaml:"feature_sensitivity,omitempty"`
	Engine             string `json:"engine" yaml:"engine"`
	EnginePath         string `json:"enginePath,omitempty" yaml:"engine_path,omitempty"`
	LogLevel           string `json:"logLevel" yaml:"log_level"`
}

// Job is a snapshot of the controller's job state.
type Job struct {
	ID          string   `json:"id,omitempty"`
	Phase       JobPhase `json:"phase"`
	Progress    float64  `json:"progress"`
	Cancelling  bool     `json:"cancelling"`
	LastOutcome JobPhase `json:"lastOutcome,omitempty"`
	LastError   string   `json:"lastError,omitempty"`
}

// Processing reports whether a job currently occupies the controller.
func (j Job) Processing() bool {
	return j.Phase.Active()
}
