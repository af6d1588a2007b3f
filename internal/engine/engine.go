// Package engine defines the contract of a photogrammetry engine and ships
// the gateways the app can drive: an in-process simulation and an external
// helper process speaking line-delimited JSON.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"photogrammetry-studio/internal/domain"
)

var (
	// ErrNoSamples is returned when the input directory holds no usable photos.
	ErrNoSamples = errors.New("no image samples found")
	// ErrAlreadySubmitted is returned when a session receives a second request.
	ErrAlreadySubmitted = errors.New("session already has a request")
	// ErrSessionCancelled is returned when submitting to a cancelled session.
	ErrSessionCancelled = errors.New("session was cancelled")
)

// Engine creates reconstruction sessions over an input directory.
type Engine interface {
	CreateSession(ctx context.Context, input string, cfg SessionConfig) (Session, error)
}

// Session is one engine run. Events must be consumed by a single goroutine;
// Cancel may be called from any goroutine and more than once.
type Session interface {
	Submit(ctx context.Context, req Request) error
	Events() Stream
	Cancel()
	IsActive() bool
}

// Stream is a lazy, non-restartable sequence of events. Next returns io.EOF
// once the engine has nothing more to say.
type Stream interface {
	Next(ctx context.Context) (Event, error)
}

// SessionConfig carries the optional capture hints. Nil means engine default.
type SessionConfig struct {
	SampleOrdering     *domain.SampleOrdering
	FeatureSensitivity *domain.FeatureSensitivity
}

// Request asks the engine for one model file.
type Request struct {
	OutputPath string
	Detail     domain.Detail
	Geometry   *domain.Bounds
}

func (r Request) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "modelFile(url: %s, detail: %s", r.OutputPath, r.Detail)
	if r.Geometry != nil {
		fmt.Fprintf(&b, ", bounds: %s", r.Geometry)
	}
	b.WriteString(")")
	return b.String()
}

// SessionConfigFor extracts the session hints from a configuration.
func SessionConfigFor(cfg domain.Configuration) SessionConfig {
	return SessionConfig{
		SampleOrdering:     cfg.SampleOrdering,
		FeatureSensitivity: cfg.FeatureSensitivity,
	}
}

// RequestFor builds the engine request from a configuration.
func RequestFor(cfg domain.Configuration) Request {
	return Request{
		OutputPath: cfg.OutputPath(),
		Detail:     cfg.Detail,
		Geometry:   cfg.Geometry,
	}
}

// SessionError reports that the engine refused to open a session.
type SessionError struct {
	Input string
	Err   error
}

func (e *SessionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("create session for %s: %v", e.Input, e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SubmitError reports that the engine rejected a request.
type SubmitError struct {
	Request Request
	Err     error
}

func (e *SubmitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("submit %s: %v", e.Request, e.Err)
}

// Unwrap exposes the cause for errors.Is / errors.As.
func (e *SubmitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
