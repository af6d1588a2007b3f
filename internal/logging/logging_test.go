package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerKeepsMessagesVerbatim(t *testing.T) {
	t.Parallel()

	log := NewLogger()
	log.Log("started")
	log.Warning("sample skipped")
	log.Error("boom")

	require.Equal(t, []Entry{
		{Severity: SeverityLog, Message: "started"},
		{Severity: SeverityWarning, Message: "sample skipped"},
		{Severity: SeverityError, Message: "boom"},
	}, log.Entries())
	require.Equal(t, 1, log.Count(SeverityError))
}

func TestLoggerClearStartsFreshSequence(t *testing.T) {
	t.Parallel()

	log := NewLogger()
	log.Log("one")
	log.Log("two")
	log.Clear()
	require.Empty(t, log.Entries())

	log.Error("three")
	entries := log.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "three", entries[0].Message)
}

func TestConsolePrefixesAndMirrors(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	sink, err := New(Options{Level: "debug", Writer: buf})
	require.NoError(t, err)

	var heard []Entry
	console := NewConsole(WithSink(sink), WithListener(func(e Entry) { heard = append(heard, e) }))
	console.Log("Start to processing...")
	console.Warning("Processing was cancelled.")
	console.Error("Unhandled message: cameraPoses")

	want := []Entry{
		{Severity: SeverityLog, Message: "Log: Start to processing..."},
		{Severity: SeverityWarning, Message: "Warning: Processing was cancelled."},
		{Severity: SeverityError, Message: "Error: Unhandled message: cameraPoses"},
	}
	require.Equal(t, want, console.Entries())
	require.Equal(t, want, heard)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "job", entry["source"])

	console.Clear()
	require.Empty(t, console.Entries())
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	require.Error(t, err)
}

func TestNewRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "WARN", Writer: buf})
	require.NoError(t, err)

	log.Info().Msg("hidden")
	require.Empty(t, strings.TrimSpace(buf.String()))
	log.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestLoggablesAreSwappable(t *testing.T) {
	t.Parallel()

	for _, l := range []Loggable{NewLogger(), NewConsole()} {
		l.Log("x")
		l.Warning("y")
		l.Error("z")
	}
}
