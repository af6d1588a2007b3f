package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"photogrammetry-studio/internal/domain"
)

func drain(t *testing.T, stream Stream) ([]Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []Event
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func kinds(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind())
	}
	return out
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func fastSimulated(steps int) *Simulated {
	return NewSimulated(SimulatedOptions{Steps: steps, Tick: time.Millisecond})
}

func TestSimulatedCompletesAndWritesArtifact(t *testing.T) {
	input := t.TempDir()
	output := t.TempDir()
	writeFile(t, input, "a.png", "png")
	writeFile(t, input, "b.png", "png")
	writeFile(t, input, "notes.txt", "hello")
	writeFile(t, input, ".DS_Store", "")

	session, err := fastSimulated(2).CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)

	req := Request{OutputPath: filepath.Join(output, "model.usdz"), Detail: domain.DetailMedium}
	require.NoError(t, session.Submit(context.Background(), req))

	events, err := drain(t, session.Events())
	require.NoError(t, err)
	require.Equal(t, []string{
		KindSkippedSample,
		KindInputComplete,
		KindRequestProgress,
		KindRequestProgress,
		KindRequestComplete,
		KindProcessingComplete,
	}, kinds(events))

	require.Equal(t, SkippedSample{ID: 3}, events[0])
	require.Equal(t, 1.0, events[3].(RequestProgress).Fraction)
	require.Equal(t, ModelFile{Path: req.OutputPath}, events[4].(RequestComplete).Result)

	data, err := os.ReadFile(req.OutputPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "samples: 2")
	require.False(t, session.IsActive())
}

func TestSimulatedReportsInvalidSamples(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "broken.jpg", "not a jpeg")
	writeFile(t, input, "ok.png", "png")

	session, err := fastSimulated(1).CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	require.NoError(t, session.Submit(context.Background(), Request{
		OutputPath: filepath.Join(t.TempDir(), "m.obj"),
		Detail:     domain.DetailPreview,
	}))

	events, err := drain(t, session.Events())
	require.NoError(t, err)
	require.Equal(t, KindInvalidSample, events[0].Kind())
	invalid := events[0].(InvalidSample)
	require.Equal(t, 1, invalid.ID)
	require.NotEmpty(t, invalid.Reason)
	require.Equal(t, KindProcessingComplete, events[len(events)-1].Kind())
}

func TestSimulatedCancelEndsWithProcessingCancelled(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "a.png", "png")

	eng := NewSimulated(SimulatedOptions{Steps: 1000, Tick: 5 * time.Millisecond})
	session, err := eng.CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	require.NoError(t, session.Submit(context.Background(), Request{
		OutputPath: filepath.Join(t.TempDir(), "m.usdz"),
		Detail:     domain.DetailFull,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		ev, err := session.Events().Next(ctx)
		require.NoError(t, err)
		if ev.Kind() == KindRequestProgress {
			break
		}
	}
	session.Cancel()
	session.Cancel()

	events, err := drain(t, session.Events())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, KindProcessingCancelled, events[len(events)-1].Kind())
}

func TestSimulatedCreateSessionErrors(t *testing.T) {
	eng := fastSimulated(1)

	_, err := eng.CreateSession(context.Background(), filepath.Join(t.TempDir(), "missing"), SessionConfig{})
	var sessionErr *SessionError
	require.ErrorAs(t, err, &sessionErr)

	empty := t.TempDir()
	writeFile(t, empty, "readme.md", "no photos")
	_, err = eng.CreateSession(context.Background(), empty, SessionConfig{})
	require.ErrorIs(t, err, ErrNoSamples)
}

func TestSimulatedSubmitErrors(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "a.png", "png")
	eng := fastSimulated(1)

	session, err := eng.CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	err = session.Submit(context.Background(), Request{OutputPath: filepath.Join(t.TempDir(), "nope", "m.usdz")})
	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)

	session, err = eng.CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	session.Cancel()
	err = session.Submit(context.Background(), Request{OutputPath: filepath.Join(t.TempDir(), "m.usdz")})
	require.ErrorIs(t, err, ErrSessionCancelled)

	session, err = eng.CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	req := Request{OutputPath: filepath.Join(t.TempDir(), "m.usdz")}
	require.NoError(t, session.Submit(context.Background(), req))
	require.ErrorIs(t, session.Submit(context.Background(), req), ErrAlreadySubmitted)
	_, err = drain(t, session.Events())
	require.NoError(t, err)
}

func TestSimulatedDownsamplesLargeInputs(t *testing.T) {
	input := t.TempDir()
	writeFile(t, input, "a.png", "png")
	writeFile(t, input, "b.png", "png")

	eng := NewSimulated(SimulatedOptions{Steps: 1, Tick: time.Millisecond, MaxSamples: 1})
	session, err := eng.CreateSession(context.Background(), input, SessionConfig{})
	require.NoError(t, err)
	require.NoError(t, session.Submit(context.Background(), Request{OutputPath: filepath.Join(t.TempDir(), "m.usda")}))

	events, err := drain(t, session.Events())
	require.NoError(t, err)
	require.Contains(t, kinds(events), KindAutomaticDownsampling)
}
