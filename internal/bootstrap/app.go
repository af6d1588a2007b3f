package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"photogrammetry-studio/internal/config"
	"photogrammetry-studio/internal/diagnostics"
	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/engine"
	"photogrammetry-studio/internal/history"
	"photogrammetry-studio/internal/jobs"
	"photogrammetry-studio/internal/logging"
	"photogrammetry-studio/internal/validate"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

const historyLimit = 50

// Options configures App construction. Zero values pick the defaults.
type Options struct {
	SettingsPath string
	HistoryPath  string
	// Engine and EnginePath override the persisted settings for this run.
	Engine     string
	EnginePath string
	Assets     fs.FS
	Logger     *zerolog.Logger
}

// historyStore isolates job history persistence.
type historyStore interface {
	RecordJob(jobs.Summary) error
	Recent(limit int) ([]history.Record, error)
	Close() error
}

// App wires configuration, the job controller, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Controller  *jobs.Controller
	Console     *logging.Console
	History     historyStore
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      zerolog.Logger
	overrides   domain.Settings
	engines     func(domain.Settings) (engine.Engine, error)

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New(opts Options) (*App, error) {
	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		settingsPath = config.DefaultPath()
	}
	store := config.NewFileStore(settingsPath)
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	app := &App{
		Store:     store,
		assets:    opts.Assets,
		checker:   diagnostics.NewChecker(),
		logger:    logger,
		overrides: domain.Settings{Engine: opts.Engine, EnginePath: opts.EnginePath},
		events:    jobs.NewEventBus(1000),
	}
	app.Settings = app.applyOverrides(settings)
	app.Diagnostics = app.checker.Run(app.Settings)

	historyPath := opts.HistoryPath
	if historyPath == "" {
		historyPath = filepath.Join(filepath.Dir(settingsPath), "history.db")
	}
	if err := os.MkdirAll(filepath.Dir(historyPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare history directory: %w", err)
	}
	hist, err := history.Open(historyPath)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	app.History = hist

	app.wire()
	app.logger.Info().
		Str("settings", settingsPath).
		Str("history", historyPath).
		Str("engine", app.Settings.Engine).
		Msg("Application initialised")
	return app, nil
}

// wire builds the console and controller around the App's collaborators.
func (a *App) wire() {
	a.Console = logging.NewConsole(
		logging.WithSink(a.logger),
		logging.WithListener(a.publishLog),
	)
	a.Controller = jobs.NewController(jobs.Options{
		Engine:   engineSelector{app: a},
		Handler:  &eventPublisher{app: a},
		Log:      a.Console,
		OnStart:  a.jobStarted,
		OnFinish: a.jobFinished,
		Logger:   &a.logger,
	})
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Photogrammetry Studio",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown abandons any running job and releases the history database.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Close history")
		}
	}
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = a.applyOverrides(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(a.applyOverrides(normalized))
	return normalized, nil
}

// PickInputDirectory opens a native directory picker for the photo folder.
func (a *App) PickInputDirectory() (string, error) {
	return a.pickDirectory("Select photo directory")
}

// PickOutputDirectory opens a native directory picker for model exports.
func (a *App) PickOutputDirectory() (string, error) {
	return a.pickDirectory("Select output directory")
}

// PickEngineHelper opens a native file dialog for the reconstruction helper.
func (a *App) PickEngineHelper() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select reconstruction helper",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

func (a *App) pickDirectory(title string) (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: title,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns environment checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(a.applyOverrides(settings)), nil
}

// RunGeneration starts a reconstruction job from the persisted settings.
func (a *App) RunGeneration() (domain.Job, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.Job{}, err
	}

	return a.Controller.RunGeneration(context.Background(), rawFromSettings(settings))
}

// CancelGeneration asks the engine to stop the running job.
func (a *App) CancelGeneration() bool {
	job := a.Controller.Current()
	if !a.Controller.CancelGeneration() {
		return false
	}
	a.publishStatus(job.ID, domain.JobPhaseCancelling, "Cancellation requested")
	return true
}

// CurrentJob returns current job metadata and phase.
func (a *App) CurrentJob() domain.Job {
	return a.Controller.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LogEntries returns the job log shown in the console panel.
func (a *App) LogEntries() []logging.Entry {
	return a.Console.Entries()
}

// ClearLog empties the console panel.
func (a *App) ClearLog() {
	a.Console.Clear()
}

// JobHistory returns recently finished jobs, newest first.
func (a *App) JobHistory(limit int) ([]history.Record, error) {
	if a.History == nil {
		return nil, nil
	}
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	return a.History.Recent(limit)
}

// jobStarted announces the job before any of its events.
func (a *App) jobStarted(job domain.Job) {
	a.publishStatus(job.ID, job.Phase, "Job started")
}

// jobFinished persists the summary and announces the outcome.
func (a *App) jobFinished(summary jobs.Summary) {
	if a.History != nil {
		if err := a.History.RecordJob(summary); err != nil {
			a.logger.Error().Err(err).Str("job", summary.JobID).Msg("Record job history")
		}
	}

	event := jobs.Event{
		JobID:      summary.JobID,
		Type:       jobs.EventTypeStatus,
		Phase:      summary.Outcome,
		Message:    "Job " + string(summary.Outcome),
		OutputPath: summary.Artifact,
	}
	if summary.Outcome == domain.JobPhaseFailed {
		event.Type = jobs.EventTypeError
		event.Message = summary.Error
	}
	a.publishEvent(event)
}

// publishLog mirrors console entries to UI subscribers.
func (a *App) publishLog(entry logging.Entry) {
	var jobID string
	if a.Controller != nil {
		jobID = a.Controller.Current().ID
	}
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeLog,
		Severity: string(entry.Severity),
		Message:  entry.Message,
	})
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, phase domain.JobPhase, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Phase:   phase,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// applyOverrides layers launcher flags over persisted settings.
func (a *App) applyOverrides(settings domain.Settings) domain.Settings {
	if a.overrides.Engine != "" {
		settings.Engine = a.overrides.Engine
	}
	if a.overrides.EnginePath != "" {
		settings.EnginePath = a.overrides.EnginePath
	}
	return settings
}

// currentEngine builds the gateway selected by the latest settings.
func (a *App) currentEngine() (engine.Engine, error) {
	a.mu.Lock()
	settings := a.Settings
	build := a.engines
	a.mu.Unlock()

	if build == nil {
		build = a.buildEngine
	}
	return build(settings)
}

func (a *App) buildEngine(settings domain.Settings) (engine.Engine, error) {
	switch strings.TrimSpace(settings.Engine) {
	case "", config.EngineSimulated:
		return engine.NewSimulated(engine.SimulatedOptions{Logger: &a.logger}), nil
	case config.EngineCommand:
		return engine.NewCommand(engine.CommandOptions{Path: settings.EnginePath, Logger: &a.logger}), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", settings.Engine)
	}
}

// engineSelector resolves the configured engine for every new session.
type engineSelector struct {
	app *App
}

func (s engineSelector) CreateSession(ctx context.Context, input string, cfg engine.SessionConfig) (engine.Session, error) {
	eng, err := s.app.currentEngine()
	if err != nil {
		return nil, &engine.SessionError{Input: input, Err: err}
	}
	return eng.CreateSession(ctx, input, cfg)
}

// rawFromSettings maps persisted settings to validator input.
func rawFromSettings(settings domain.Settings) validate.Raw {
	return validate.Raw{
		Input:              settings.InputDir,
		Output:             settings.OutputDir,
		Filename:           settings.Filename,
		Format:             settings.FileFormat,
		Detail:             settings.Detail,
		SampleOrdering:     settings.SampleOrdering,
		FeatureSensitivity: settings.FeatureSensitivity,
	}
}

// normalizeSettings trims user inputs and applies defaults for empty choices.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.InputDir = strings.TrimSpace(settings.InputDir)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Filename = strings.TrimSpace(settings.Filename)
	settings.FileFormat = strings.ToLower(strings.TrimSpace(settings.FileFormat))
	settings.Detail = strings.ToLower(strings.TrimSpace(settings.Detail))
	settings.SampleOrdering = strings.ToLower(strings.TrimSpace(settings.SampleOrdering))
	settings.FeatureSensitivity = strings.ToLower(strings.TrimSpace(settings.FeatureSensitivity))
	settings.Engine = strings.ToLower(strings.TrimSpace(settings.Engine))
	settings.EnginePath = strings.TrimSpace(settings.EnginePath)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	def := config.DefaultSettings()
	if settings.FileFormat == "" {
		settings.FileFormat = def.FileFormat
	}
	if settings.Detail == "" {
		settings.Detail = def.Detail
	}
	if settings.Engine == "" {
		settings.Engine = def.Engine
	}
	if settings.LogLevel == "" {
		settings.LogLevel = def.LogLevel
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
