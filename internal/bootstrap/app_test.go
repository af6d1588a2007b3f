package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/diagnostics"
	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/engine"
	"photogrammetry-studio/internal/history"
	"photogrammetry-studio/internal/jobs"
	"photogrammetry-studio/internal/logging"
	"photogrammetry-studio/internal/validate"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	mu       sync.Mutex
	settings domain.Settings
	saves    int
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

// Save records the settings in memory.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.saves++
	return nil
}

// fakeHistory keeps summaries in memory.
type fakeHistory struct {
	mu      sync.Mutex
	records []history.Record
}

func (h *fakeHistory) RecordJob(s jobs.Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]history.Record{{
		ID:       s.JobID,
		Outcome:  s.Outcome,
		Artifact: s.Artifact,
		Error:    s.Error,
	}}, h.records...)
	return nil
}

func (h *fakeHistory) Recent(limit int) ([]history.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit > len(h.records) {
		limit = len(h.records)
	}
	return append([]history.Record(nil), h.records[:limit]...), nil
}

func (h *fakeHistory) Close() error { return nil }

// newTestApp wires an App around in-memory collaborators and a fast simulated engine.
func newTestApp(t *testing.T, settings domain.Settings, steps int, tick time.Duration) *App {
	t.Helper()
	app := &App{
		Store:   &fakeStore{settings: settings},
		History: &fakeHistory{},
		checker: diagnostics.NewChecker(),
		logger:  zerolog.Nop(),
		events:  jobs.NewEventBus(100),
		engines: func(domain.Settings) (engine.Engine, error) {
			return engine.NewSimulated(engine.SimulatedOptions{Steps: steps, Tick: tick}), nil
		},
	}
	app.wire()
	t.Cleanup(func() { app.Shutdown(context.Background()) })
	return app
}

// photoSettings creates an input directory with one photo and an output directory.
func photoSettings(t *testing.T) domain.Settings {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "photos")
	output := filepath.Join(root, "out")
	for _, dir := range []string{input, output} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(input, "IMG_0001.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	return domain.Settings{
		InputDir:   input,
		OutputDir:  output,
		Filename:   "chair",
		FileFormat: "usdz",
		Detail:     "preview",
		Engine:     config.EngineSimulated,
	}
}

// TestRunGenerationEnforcesSingleRunningJob checks single-job guard.
func TestRunGenerationEnforcesSingleRunningJob(t *testing.T) {
	app := newTestApp(t, photoSettings(t), 1000, 10*time.Millisecond)

	if _, err := app.RunGeneration(); err != nil {
		t.Fatalf("start first job: %v", err)
	}
	if _, err := app.RunGeneration(); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second start error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	if !app.CancelGeneration() {
		t.Fatal("expected cancel to be issued")
	}
	if app.CancelGeneration() {
		t.Fatal("expected repeated cancel to be a no-op")
	}
	waitForOutcome(t, app, domain.JobPhaseCancelled)
}

// TestRunGenerationPublishesProgressAndResultEvents checks event flow.
func TestRunGenerationPublishesProgressAndResultEvents(t *testing.T) {
	settings := photoSettings(t)
	app := newTestApp(t, settings, 3, time.Millisecond)

	if _, err := app.RunGeneration(); err != nil {
		t.Fatalf("start job: %v", err)
	}

	waitForOutcome(t, app, domain.JobPhaseCompleted)
	events := app.JobEvents(0)
	if len(events) == 0 {
		t.Fatal("expected events")
	}

	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeLog)
	assertEventTypeExists(t, events, jobs.EventTypeProgress)
	result := assertEventTypeExists(t, events, jobs.EventTypeResult)
	if want := filepath.Join(settings.OutputDir, "chair.usdz"); result.OutputPath != want {
		t.Fatalf("result path = %q, want %q", result.OutputPath, want)
	}

	progress := assertEventTypeExists(t, events, jobs.EventTypeProgress)
	started := false
	for _, event := range events {
		if event.Type == jobs.EventTypeStatus && event.Message == "Job started" {
			started = true
			if event.Seq > progress.Seq {
				t.Fatalf("job started seq %d after first progress seq %d", event.Seq, progress.Seq)
			}
		}
	}
	if !started {
		t.Fatal("job started status not published")
	}

	records, err := app.JobHistory(10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].Outcome != domain.JobPhaseCompleted {
		t.Fatalf("history = %+v, want one completed job", records)
	}
}

// TestRunGenerationValidationFailureLogsOnce checks error path emissions.
func TestRunGenerationValidationFailureLogsOnce(t *testing.T) {
	settings := photoSettings(t)
	settings.InputDir = filepath.Join(t.TempDir(), "missing")
	app := newTestApp(t, settings, 1, time.Millisecond)

	_, err := app.RunGeneration()
	if !errors.Is(err, validate.ErrInvalidInput) {
		t.Fatalf("error = %v, want %v", err, validate.ErrInvalidInput)
	}

	entries := app.LogEntries()
	if len(entries) != 1 || entries[0].Severity != logging.SeverityError {
		t.Fatalf("entries = %+v, want one error", entries)
	}
	if entries[0].Message != "Error: The input is invalid. Please check the input." {
		t.Fatalf("message = %q", entries[0].Message)
	}
	log := assertEventTypeExists(t, app.JobEvents(0), jobs.EventTypeLog)
	if log.Severity != string(logging.SeverityError) {
		t.Fatalf("log event severity = %q, want error", log.Severity)
	}
	if app.CurrentJob().Phase != domain.JobPhaseIdle {
		t.Fatalf("phase = %s, want idle", app.CurrentJob().Phase)
	}

	app.ClearLog()
	if len(app.LogEntries()) != 0 {
		t.Fatal("expected empty log after clear")
	}
}

// TestRunGenerationUnknownEngineFailsSession checks engine selection errors.
func TestRunGenerationUnknownEngineFailsSession(t *testing.T) {
	settings := photoSettings(t)
	settings.Engine = "quantum"
	app := newTestApp(t, settings, 1, time.Millisecond)
	app.engines = nil

	_, err := app.RunGeneration()
	var sessionErr *engine.SessionError
	if !errors.As(err, &sessionErr) {
		t.Fatalf("error = %v, want session error", err)
	}
	if got := app.CurrentJob().LastOutcome; got != domain.JobPhaseFailed {
		t.Fatalf("last outcome = %s, want failed", got)
	}
}

// TestApplyOverridesPrefersFlags verifies launcher flags beat persisted settings.
func TestApplyOverridesPrefersFlags(t *testing.T) {
	app := &App{overrides: domain.Settings{Engine: config.EngineCommand, EnginePath: "/opt/reconstruct"}}
	got := app.applyOverrides(domain.Settings{Engine: config.EngineSimulated, Detail: "raw"})
	if got.Engine != config.EngineCommand || got.EnginePath != "/opt/reconstruct" || got.Detail != "raw" {
		t.Fatalf("settings = %+v", got)
	}
}

// TestNormalizeSettings verifies trimming and defaults.
func TestNormalizeSettings(t *testing.T) {
	got := normalizeSettings(domain.Settings{
		InputDir:       "  /photos ",
		FileFormat:     " OBJ",
		SampleOrdering: "Sequential ",
	})
	if got.InputDir != "/photos" || got.FileFormat != "obj" || got.SampleOrdering != "sequential" {
		t.Fatalf("settings = %+v", got)
	}
	if got.Detail != "medium" || got.Engine != config.EngineSimulated || got.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

// TestNewLoadsDefaultsAndOpensHistory checks first launch wiring.
func TestNewLoadsDefaultsAndOpensHistory(t *testing.T) {
	root := t.TempDir()
	app, err := New(Options{
		SettingsPath: filepath.Join(root, "cfg", "settings.yaml"),
		EnginePath:   "/opt/reconstruct",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Shutdown(context.Background())

	if app.Settings.Engine != config.EngineSimulated {
		t.Fatalf("engine = %q, want simulated", app.Settings.Engine)
	}
	if app.Settings.EnginePath != "/opt/reconstruct" {
		t.Fatalf("engine path override not applied: %+v", app.Settings)
	}
	if _, err := os.Stat(filepath.Join(root, "cfg", "history.db")); err != nil {
		t.Fatalf("history database not created: %v", err)
	}
	records, err := app.JobHistory(0)
	if err != nil || len(records) != 0 {
		t.Fatalf("history = %+v, %v", records, err)
	}
	if len(app.GetDiagnostics().Items) == 0 {
		t.Fatal("expected startup diagnostics")
	}
}

// waitForOutcome waits for the active job and checks its outcome.
func waitForOutcome(t *testing.T, app *App, want domain.JobPhase) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Controller.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	job := app.CurrentJob()
	if job.Phase != domain.JobPhaseIdle || job.LastOutcome != want {
		t.Fatalf("job = %+v, want idle with outcome %s", job, want)
	}
}

// assertEventTypeExists verifies at least one event of given type exists and returns the first.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) jobs.Event {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return event
		}
	}
	t.Fatalf("event type %s not found", want)
	return jobs.Event{}
}
