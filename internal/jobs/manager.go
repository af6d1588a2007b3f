package jobs

import (
	"errors"
	"fmt"
	"sync"

	"photogrammetry-studio/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// Manager tracks the single allowed active job and its transitions.
type Manager struct {
	mu       sync.RWMutex
	current  domain.Job
	previous domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Phase: domain.JobPhaseIdle,
		},
	}
}

// Begin claims the controller for a new job and moves it to submitting.
func (m *Manager) Begin(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase.Active() {
		return ErrJobAlreadyRunning
	}

	m.previous = m.current
	m.current = domain.Job{
		ID:          jobID,
		Phase:       domain.JobPhaseSubmitting,
		LastOutcome: m.previous.LastOutcome,
		LastError:   m.previous.LastError,
	}
	return nil
}

// Abort drops a job that never reached the engine and restores the
// snapshot taken by Begin.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase != domain.JobPhaseSubmitting {
		return
	}
	m.current = m.previous
}

// Transition validates and applies state transitions for current job.
func (m *Manager) Transition(phase domain.JobPhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(phase)
}

// SetProgress stores the latest completion fraction of the running job.
func (m *Manager) SetProgress(fraction float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase == domain.JobPhaseRunning || m.current.Phase == domain.JobPhaseCancelling {
		m.current.Progress = fraction
	}
}

// RequestCancel moves a running job to cancelling. It reports false when the
// job is not running, including when a cancel was already requested.
func (m *Manager) RequestCancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Phase != domain.JobPhaseRunning {
		return false
	}
	m.current.Phase = domain.JobPhaseCancelling
	m.current.Cancelling = true
	return true
}

// Finish records the outcome of the active job and returns to idle. The
// returned snapshot is the job as it ended.
func (m *Manager) Finish(outcome domain.JobPhase, cause error) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !outcome.Terminal() {
		return m.current, fmt.Errorf("%s is not an outcome", outcome)
	}
	if err := m.transitionLocked(outcome); err != nil {
		return m.current, err
	}

	ended := m.current
	m.current = domain.Job{
		Phase:       domain.JobPhaseIdle,
		LastOutcome: outcome,
	}
	if cause != nil {
		ended.LastError = cause.Error()
		m.current.LastError = cause.Error()
	}
	return ended, nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears job metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Phase: domain.JobPhaseIdle}
}

// IsActive reports whether a job occupies the manager.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Phase.Active()
}

func (m *Manager) transitionLocked(phase domain.JobPhase) error {
	if m.current.ID == "" && phase != domain.JobPhaseIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if phase == m.current.Phase {
		return nil
	}
	if !isValidTransition(m.current.Phase, phase) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Phase, phase)
	}
	m.current.Phase = phase
	return nil
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobPhase) bool {
	switch from {
	case domain.JobPhaseIdle:
		return to == domain.JobPhaseSubmitting
	case domain.JobPhaseSubmitting:
		return to == domain.JobPhaseRunning || to == domain.JobPhaseFailed || to == domain.JobPhaseIdle
	case domain.JobPhaseRunning:
		return to == domain.JobPhaseCancelling || to.Terminal()
	case domain.JobPhaseCancelling:
		return to.Terminal()
	case domain.JobPhaseCompleted, domain.JobPhaseFailed, domain.JobPhaseCancelled:
		return to == domain.JobPhaseSubmitting || to == domain.JobPhaseIdle
	default:
		return false
	}
}
