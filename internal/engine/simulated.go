package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SimulatedOptions tunes the in-process engine.
type SimulatedOptions struct {
	// Steps is the number of progress events per request.
	Steps int
	// Tick is the delay between progress events.
	Tick time.Duration
	// MaxSamples triggers automatic downsampling when exceeded.
	MaxSamples int
	Logger     *zerolog.Logger
}

// Simulated stands in for the platform engine. It classifies the input
// photos, reports progress on a timer and writes a placeholder artifact.
type Simulated struct {
	opts SimulatedOptions
	log  zerolog.Logger
}

// NewSimulated builds a simulated engine, filling unset options.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.Steps <= 0 {
		opts.Steps = 10
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 200
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("engine", "simulated").Logger()
	}
	return &Simulated{opts: opts, log: log}
}

// CreateSession scans the input directory and prepares a session.
func (e *Simulated) CreateSession(ctx context.Context, input string, cfg SessionConfig) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SessionError{Input: input, Err: err}
	}

	samples, err := scanSamples(input)
	if err != nil {
		return nil, &SessionError{Input: input, Err: err}
	}
	if countImages(samples) == 0 {
		return nil, &SessionError{Input: input, Err: ErrNoSamples}
	}

	e.log.Debug().
		Str("input", input).
		Int("samples", len(samples)).
		Msg("Simulated session created")

	return &simulatedSession{
		opts:    e.opts,
		log:     e.log,
		cfg:     cfg,
		samples: samples,
		pipe:    NewPipe(len(samples) + e.opts.Steps + 4),
		cancel:  make(chan struct{}),
	}, nil
}

type simulatedSession struct {
	opts    SimulatedOptions
	log     zerolog.Logger
	cfg     SessionConfig
	samples []sample
	pipe    *Pipe

	mu         sync.Mutex
	submitted  bool
	active     bool
	cancel     chan struct{}
	cancelOnce sync.Once
}

func (s *simulatedSession) Submit(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return &SubmitError{Request: req, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.cancel:
		return &SubmitError{Request: req, Err: ErrSessionCancelled}
	default:
	}
	if s.submitted {
		return &SubmitError{Request: req, Err: ErrAlreadySubmitted}
	}
	info, err := os.Stat(filepath.Dir(req.OutputPath))
	if err != nil {
		return &SubmitError{Request: req, Err: err}
	}
	if !info.IsDir() {
		return &SubmitError{Request: req, Err: fmt.Errorf("%s is not a directory", filepath.Dir(req.OutputPath))}
	}

	s.submitted = true
	s.active = true
	go s.run(req)
	return nil
}

func (s *simulatedSession) Events() Stream {
	return s.pipe
}

func (s *simulatedSession) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

func (s *simulatedSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *simulatedSession) run(req Request) {
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		s.pipe.Close()
	}()

	valid := 0
	for _, smp := range s.samples {
		var ok bool
		switch smp.status {
		case sampleInvalid:
			ok = s.pipe.Emit(InvalidSample{ID: smp.id, Reason: smp.reason})
		case sampleSkipped:
			ok = s.pipe.Emit(SkippedSample{ID: smp.id})
		default:
			valid++
			ok = true
		}
		if !ok {
			return
		}
	}
	if !s.pipe.Emit(InputComplete{}) {
		return
	}

	if valid == 0 {
		s.pipe.Emit(RequestError{Request: req, Err: ErrNoSamples})
		s.pipe.Emit(ProcessingComplete{})
		return
	}
	if valid > s.opts.MaxSamples {
		s.pipe.Emit(AutomaticDownsampling{})
	}

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for step := 1; step <= s.opts.Steps; step++ {
		select {
		case <-s.cancel:
			s.log.Debug().Int("step", step).Msg("Simulated session cancelled")
			s.pipe.Emit(ProcessingCancelled{})
			return
		case <-s.pipe.Detached():
			return
		case <-ticker.C:
		}
		fraction := float64(step) / float64(s.opts.Steps)
		if fraction > 1 {
			fraction = 1
		}
		if !s.pipe.Emit(RequestProgress{Request: req, Fraction: fraction}) {
			return
		}
	}

	if err := writePlaceholder(req, valid); err != nil {
		s.pipe.Emit(RequestError{Request: req, Err: err})
	} else {
		s.pipe.Emit(RequestComplete{Request: req, Result: ModelFile{Path: req.OutputPath}})
	}
	s.pipe.Emit(ProcessingComplete{})
}

// writePlaceholder stands in for the reconstructed model.
func writePlaceholder(req Request, samples int) error {
	content := fmt.Sprintf("simulated reconstruction\nsamples: %d\ndetail: %s\n", samples, req.Detail)
	if req.Geometry != nil {
		content += fmt.Sprintf("bounds: %s\n", req.Geometry)
	}
	return os.WriteFile(req.OutputPath, []byte(content), 0o644)
}
