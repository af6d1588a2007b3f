package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const stderrTailBytes = 4096

// CommandOptions configures an external reconstruction helper.
type CommandOptions struct {
	// Path is the helper executable, resolved through PATH when relative.
	Path string
	// Args are passed before the generated arguments.
	Args   []string
	Logger *zerolog.Logger
}

// Command drives a helper process that writes one JSON event per stdout line.
type Command struct {
	opts     CommandOptions
	log      zerolog.Logger
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
}

// NewCommand builds a gateway for the helper at opts.Path.
func NewCommand(opts CommandOptions) *Command {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("engine", "command").Logger()
	}
	return &Command{
		opts:     opts,
		log:      log,
		lookPath: exec.LookPath,
		stat:     os.Stat,
	}
}

// CreateSession checks the helper and input directory; nothing runs until Submit.
func (e *Command) CreateSession(ctx context.Context, input string, cfg SessionConfig) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SessionError{Input: input, Err: err}
	}

	info, err := e.stat(input)
	if err != nil {
		return nil, &SessionError{Input: input, Err: err}
	}
	if !info.IsDir() {
		return nil, &SessionError{Input: input, Err: fmt.Errorf("%s is not a directory", input)}
	}

	if strings.TrimSpace(e.opts.Path) == "" {
		return nil, &SessionError{Input: input, Err: errors.New("engine helper path is not configured")}
	}
	path, err := e.lookPath(e.opts.Path)
	if err != nil {
		return nil, &SessionError{Input: input, Err: fmt.Errorf("engine helper not found: %w", err)}
	}

	return &commandSession{
		path:  path,
		args:  append([]string(nil), e.opts.Args...),
		input: input,
		cfg:   cfg,
		log:   e.log,
		pipe:  NewPipe(64),
	}, nil
}

type commandSession struct {
	path  string
	args  []string
	input string
	cfg   SessionConfig
	log   zerolog.Logger
	pipe  *Pipe

	mu        sync.Mutex
	cmd       *exec.Cmd
	active    bool
	cancelled bool
}

func (s *commandSession) Submit(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return &SubmitError{Request: req, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return &SubmitError{Request: req, Err: ErrSessionCancelled}
	}
	if s.cmd != nil {
		return &SubmitError{Request: req, Err: ErrAlreadySubmitted}
	}

	args := append(append([]string(nil), s.args...), buildArgs(s.input, s.cfg, req)...)
	cmd := exec.Command(s.path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SubmitError{Request: req, Err: err}
	}
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return &SubmitError{Request: req, Err: err}
	}
	s.log.Debug().Str("command", s.path).Strs("args", args).Msg("Engine helper started")

	s.cmd = cmd
	s.active = true
	go s.read(cmd, stdout, stderr, req)
	return nil
}

func (s *commandSession) Events() Stream {
	return s.pipe
}

// Cancel interrupts the helper, which is expected to report processingCancelled.
func (s *commandSession) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return
	}
	s.cancelled = true
	if s.cmd == nil || s.cmd.Process == nil || !s.active {
		return
	}
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		s.log.Debug().Err(err).Msg("Interrupt failed, killing engine helper")
		_ = s.cmd.Process.Kill()
	}
}

func (s *commandSession) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *commandSession) read(cmd *exec.Cmd, stdout io.Reader, stderr *tailBuffer, req Request) {
	terminal := false
	detached := false

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := decodeEvent(line, req)
		if err != nil {
			s.log.Debug().Err(err).Str("line", string(line)).Msg("Ignoring non-event output")
			continue
		}
		switch event.(type) {
		case ProcessingComplete, ProcessingCancelled:
			terminal = true
		}
		if !s.pipe.Emit(event) {
			detached = true
			_ = cmd.Process.Kill()
			break
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil && !detached {
		// The helper blocks on a full stdout pipe once we stop reading.
		_ = cmd.Process.Kill()
	}
	if detached || scanErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	s.mu.Lock()
	s.active = false
	cancelled := s.cancelled
	s.mu.Unlock()

	s.log.Debug().Err(waitErr).Bool("terminal", terminal).Msg("Engine helper exited")

	switch {
	case terminal || detached:
		s.pipe.Close()
	case scanErr != nil:
		s.pipe.Fail(fmt.Errorf("read engine output: %w", scanErr))
	case cancelled:
		s.pipe.Emit(ProcessingCancelled{})
		s.pipe.Close()
	case waitErr != nil:
		s.pipe.Fail(fmt.Errorf("engine helper failed: %w: %s", waitErr, strings.TrimSpace(stderr.String())))
	default:
		s.pipe.Close()
	}
}

// buildArgs builds the helper arguments for one request.
func buildArgs(input string, cfg SessionConfig, req Request) []string {
	args := []string{
		input,
		req.OutputPath,
		"--detail", string(req.Detail),
	}
	if cfg.SampleOrdering != nil {
		args = append(args, "--sample-ordering", string(*cfg.SampleOrdering))
	}
	if cfg.FeatureSensitivity != nil {
		args = append(args, "--feature-sensitivity", string(*cfg.FeatureSensitivity))
	}
	if req.Geometry != nil {
		args = append(args, "--bounds", req.Geometry.String())
	}
	return args
}

type wireEvent struct {
	Type     string          `json:"type"`
	Error    string          `json:"error,omitempty"`
	Fraction float64         `json:"fraction,omitempty"`
	ID       int             `json:"id,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}

type wireResult struct {
	Kind string `json:"kind"`
	Path string `json:"path,omitempty"`
}

// decodeEvent maps one JSON line to an Event. Unknown types are kept as
// Unrecognized so the consumer decides what to do with them.
func decodeEvent(line []byte, req Request) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, err
	}
	if w.Type == "" {
		return nil, errors.New("event without type")
	}

	switch w.Type {
	case KindInputComplete:
		return InputComplete{}, nil
	case KindRequestError:
		return RequestError{Request: req, Err: errors.New(w.Error)}, nil
	case KindRequestComplete:
		return RequestComplete{Request: req, Result: decodeResult(w.Result)}, nil
	case KindRequestProgress:
		return RequestProgress{Request: req, Fraction: clampFraction(w.Fraction)}, nil
	case KindProcessingComplete:
		return ProcessingComplete{}, nil
	case KindProcessingCancelled:
		return ProcessingCancelled{}, nil
	case KindInvalidSample:
		return InvalidSample{ID: w.ID, Reason: w.Reason}, nil
	case KindSkippedSample:
		return SkippedSample{ID: w.ID}, nil
	case KindAutomaticDownsampling:
		return AutomaticDownsampling{}, nil
	default:
		return Unrecognized{Type: w.Type, Raw: append([]byte(nil), line...)}, nil
	}
}

func decodeResult(raw json.RawMessage) Result {
	if len(raw) == 0 {
		return OpaqueResult{}
	}
	var r wireResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return OpaqueResult{Payload: append([]byte(nil), raw...)}
	}
	if r.Kind == "modelFile" && r.Path != "" {
		return ModelFile{Path: r.Path}
	}
	return OpaqueResult{Kind: r.Kind, Payload: append([]byte(nil), raw...)}
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
