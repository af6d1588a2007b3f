package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photogrammetry-studio/internal/domain"
	"photogrammetry-studio/internal/engine"
	"photogrammetry-studio/internal/logging"
	"photogrammetry-studio/internal/validate"
)

// ErrStreamEnded is recorded when the engine stream closes before a
// completion or cancellation event.
var ErrStreamEnded = errors.New("event stream ended before processing finished")

// ErrClosed is returned by RunGeneration after Close.
var ErrClosed = errors.New("controller closed")

// Summary describes a finished job that reached the engine.
type Summary struct {
	JobID         string
	Configuration domain.Configuration
	Outcome       domain.JobPhase
	Error         string
	Artifact      string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Options wires a Controller to its collaborators.
type Options struct {
	Engine  engine.Engine
	Handler OutputHandler
	Log     logging.Loggable
	// OnStart runs on the caller's goroutine once the job is running,
	// before any event of the job is dispatched.
	OnStart func(domain.Job)
	// OnFinish runs on the consumer goroutine after the job returned to idle.
	OnFinish func(Summary)
	Logger   *zerolog.Logger
}

// Controller runs at most one reconstruction job at a time. Job state lives
// in a Manager; the active session is guarded by mu. Each job's events are
// consumed by one goroutine, which is the only caller of the OutputHandler.
type Controller struct {
	engine   engine.Engine
	handler  OutputHandler
	log      logging.Loggable
	onStart  func(domain.Job)
	onFinish func(Summary)
	plog     zerolog.Logger
	state    *Manager
	newID    func() string
	now      func() time.Time

	mu      sync.Mutex
	session engine.Session
	stop    context.CancelFunc
	done    chan struct{}
	closed  bool
}

// NewController builds a controller. Engine and Log are required.
func NewController(opts Options) *Controller {
	handler := opts.Handler
	if handler == nil {
		handler = NopHandler{}
	}
	plog := zerolog.Nop()
	if opts.Logger != nil {
		plog = opts.Logger.With().Str("component", "jobs").Logger()
	}
	return &Controller{
		engine:   opts.Engine,
		handler:  handler,
		log:      opts.Log,
		onStart:  opts.OnStart,
		onFinish: opts.OnFinish,
		plog:     plog,
		state:    NewManager(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// RunGeneration validates raw, opens an engine session and submits the
// request. ctx bounds session creation and submission only; the job itself
// runs until the engine finishes, it is cancelled, or Close is called.
func (c *Controller) RunGeneration(ctx context.Context, raw validate.Raw) (domain.Job, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return c.state.Current(), ErrClosed
	}

	jobID := c.newID()
	if err := c.state.Begin(jobID); err != nil {
		c.log.Error("Processing is already running. Please wait or cancel it first.")
		return c.state.Current(), err
	}

	cfg, err := validate.Configuration(raw)
	if err != nil {
		c.log.Error(validationMessage(err))
		c.state.Abort()
		return c.state.Current(), err
	}

	session, err := c.engine.CreateSession(ctx, cfg.Input, engine.SessionConfigFor(cfg))
	if err != nil {
		c.plog.Debug().Err(err).Str("job", jobID).Msg("Session creation failed")
		c.log.Error("Failed to make session. Please check the minimum execution environment.")
		c.state.Finish(domain.JobPhaseFailed, err)
		return c.state.Current(), err
	}

	req := engine.RequestFor(cfg)
	c.log.Log("Start to processing...")
	c.log.Log(fmt.Sprintf("Request: %s", req))

	if err := session.Submit(ctx, req); err != nil {
		c.log.Error(fmt.Sprintf("Failed to submit the request. %v", err))
		session.Cancel()
		c.state.Finish(domain.JobPhaseFailed, err)
		return c.state.Current(), err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		session.Cancel()
		c.state.Finish(domain.JobPhaseCancelled, ErrClosed)
		return c.state.Current(), ErrClosed
	}
	if err := c.state.Transition(domain.JobPhaseRunning); err != nil {
		c.mu.Unlock()
		session.Cancel()
		c.log.Error(fmt.Sprintf("Failed to start processing. %v", err))
		c.state.Finish(domain.JobPhaseFailed, err)
		return c.state.Current(), err
	}
	jobCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.session = session
	c.stop = stop
	c.done = done
	c.mu.Unlock()

	c.plog.Info().Str("job", jobID).Str("output", req.OutputPath).Msg("Job started")

	run := &jobRun{
		id:        jobID,
		cfg:       cfg,
		session:   session,
		startedAt: c.now(),
	}
	started := c.state.Current()
	if c.onStart != nil {
		c.onStart(started)
	}
	go c.consume(jobCtx, run, done)

	return started, nil
}

// CancelGeneration asks the engine to stop the running job. It reports
// whether a cancel was issued; it is a no-op unless a job is running and no
// cancel is pending. The job stays active until the engine acknowledges.
func (c *Controller) CancelGeneration() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || !c.state.RequestCancel() {
		return false
	}
	c.session.Cancel()
	c.log.Log("Cancel to processing...")
	return true
}

// IsProcessing reports whether a job occupies the controller.
func (c *Controller) IsProcessing() bool {
	return c.state.IsActive()
}

// IsCancelling reports whether a cancel is pending acknowledgement.
func (c *Controller) IsCancelling() bool {
	return c.state.Current().Cancelling
}

// Progress returns the last reported completion fraction of the active job.
func (c *Controller) Progress() float64 {
	return c.state.Current().Progress
}

// Current returns a snapshot of the job state.
func (c *Controller) Current() domain.Job {
	return c.state.Current()
}

// Wait blocks until the active job, if any, has returned to idle.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons the active job and waits for its consumer to exit.
// Later RunGeneration calls fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	stop := c.stop
	done := c.done
	c.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

type jobRun struct {
	id         string
	cfg        domain.Configuration
	session    engine.Session
	startedAt  time.Time
	artifact   string
	requestErr error
}

// consume forwards events until a terminal event, a stream failure or stop.
func (c *Controller) consume(ctx context.Context, run *jobRun, done chan struct{}) {
	defer close(done)

	stream := run.session.Events()
	outcome := domain.JobPhaseFailed
	var cause error

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				run.session.Cancel()
				c.log.Warning("Processing was abandoned.")
				outcome, cause = domain.JobPhaseCancelled, ErrClosed
			case errors.Is(err, io.EOF):
				c.log.Error("Processing ended unexpectedly.")
				cause = ErrStreamEnded
			default:
				c.log.Error(fmt.Sprintf("Processing failed. %v", err))
				cause = err
			}
			break
		}

		if terminal, ok := c.dispatch(run, event); ok {
			outcome = terminal
			if outcome == domain.JobPhaseCompleted {
				cause = run.requestErr
			}
			break
		}
	}

	// Nobody reads past this point; release producers still emitting.
	if d, ok := stream.(interface{ Detach() }); ok {
		d.Detach()
	}
	c.finish(run, outcome, cause)
}

// dispatch translates one event. It returns the job outcome for terminal events.
func (c *Controller) dispatch(run *jobRun, event engine.Event) (domain.JobPhase, bool) {
	switch ev := event.(type) {
	case engine.InputComplete:
		c.log.Log("Data ingestion is completed. Beginning processing...")
		c.handler.HandleInputComplete()

	case engine.RequestError:
		run.requestErr = ev.Err
		c.log.Error(fmt.Sprintf("Request %s had an error: %v", ev.Request, ev.Err))
		c.handler.HandleRequestError(ev.Request, ev.Err)

	case engine.RequestComplete:
		switch result := ev.Result.(type) {
		case engine.ModelFile:
			run.artifact = result.Path
			c.log.Log(fmt.Sprintf("modelFile available at %s", result.Path))
		default:
			c.log.Warning(fmt.Sprintf("Unexpected result, %s", resultKind(ev.Result)))
		}
		c.handler.HandleRequestComplete(ev.Request, ev.Result)

	case engine.RequestProgress:
		c.state.SetProgress(ev.Fraction)
		c.handler.HandleRequestProgress(ev.Request, ev.Fraction)

	case engine.ProcessingComplete:
		c.log.Log("Processing was completed.")
		c.handler.HandleProcessingComplete()
		return domain.JobPhaseCompleted, true

	case engine.ProcessingCancelled:
		c.log.Warning("Processing was cancelled.")
		c.handler.HandleProcessingCancelled()
		return domain.JobPhaseCancelled, true

	case engine.InvalidSample:
		c.log.Warning(fmt.Sprintf("Sample id=%d is invalid. %s", ev.ID, ev.Reason))
		c.handler.HandleInvalidSample(ev.ID, ev.Reason)

	case engine.SkippedSample:
		c.log.Warning(fmt.Sprintf("Sample id=%d was skipped by processing.", ev.ID))
		c.handler.HandleSkippedSample(ev.ID)

	case engine.AutomaticDownsampling:
		c.log.Warning("Automatic downsampling was applied.")
		c.handler.HandleAutomaticDownsampling()

	default:
		c.log.Error(fmt.Sprintf("Unhandled message: %s", eventKind(event)))
	}
	return "", false
}

func (c *Controller) finish(run *jobRun, outcome domain.JobPhase, cause error) {
	c.mu.Lock()
	c.session = nil
	c.stop = nil
	ended, err := c.state.Finish(outcome, cause)
	c.mu.Unlock()

	if err != nil {
		c.plog.Error().Err(err).Str("job", run.id).Msg("Job state out of sync, resetting")
		c.state.Reset()
	}

	c.plog.Info().
		Str("job", run.id).
		Str("outcome", string(outcome)).
		Float64("progress", ended.Progress).
		Msg("Job finished")

	if c.onFinish == nil {
		return
	}
	summary := Summary{
		JobID:         run.id,
		Configuration: run.cfg,
		Outcome:       outcome,
		Artifact:      run.artifact,
		StartedAt:     run.startedAt,
		FinishedAt:    c.now(),
	}
	if cause != nil {
		summary.Error = cause.Error()
	}
	c.onFinish(summary)
}

func validationMessage(err error) string {
	var verr *validate.Error
	if errors.As(err, &verr) && verr.Message != "" {
		return verr.Message
	}
	return fmt.Sprintf("Unknown error. %v", err)
}

func eventKind(event engine.Event) string {
	if event == nil {
		return "<nil>"
	}
	if kind := event.Kind(); kind != "" {
		return kind
	}
	return fmt.Sprintf("%T", event)
}

func resultKind(result engine.Result) string {
	if result == nil {
		return "<nil>"
	}
	if kind := result.ResultKind(); kind != "" {
		return kind
	}
	return fmt.Sprintf("%T", result)
}
