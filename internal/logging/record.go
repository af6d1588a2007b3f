package logging

import (
	"sync"

	"github.com/rs/zerolog"
)

// Severity classifies a user-facing log entry.
type Severity string

const (
	SeverityLog     Severity = "log"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Entry is one line of the job log.
type Entry struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Loggable receives the job controller's user-facing messages.
type Loggable interface {
	Log(message string)
	Warning(message string)
	Error(message string)
}

// record is an ordered, clearable list of entries.
type record struct {
	mu      sync.RWMutex
	entries []Entry
}

func (r *record) append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *record) snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

func (r *record) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Logger stores messages verbatim. It is the in-memory double used in tests.
type Logger struct {
	record
}

// NewLogger returns an empty Logger.
func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) Log(message string)     { l.append(Entry{Severity: SeverityLog, Message: message}) }
func (l *Logger) Warning(message string) { l.append(Entry{Severity: SeverityWarning, Message: message}) }
func (l *Logger) Error(message string)   { l.append(Entry{Severity: SeverityError, Message: message}) }

// Entries returns a copy of the record.
func (l *Logger) Entries() []Entry { return l.snapshot() }

// Clear empties the record.
func (l *Logger) Clear() { l.clear() }

// Count returns how many entries have the given severity.
func (l *Logger) Count(severity Severity) int {
	n := 0
	for _, entry := range l.snapshot() {
		if entry.Severity == severity {
			n++
		}
	}
	return n
}

// Console prefixes every message with its severity label, records it and
// mirrors it to a zerolog sink.
type Console struct {
	record
	sink     zerolog.Logger
	onAppend func(Entry)
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithSink mirrors entries to the given process logger.
func WithSink(sink zerolog.Logger) ConsoleOption {
	return func(c *Console) { c.sink = sink }
}

// WithListener calls fn after every appended entry.
func WithListener(fn func(Entry)) ConsoleOption {
	return func(c *Console) { c.onAppend = fn }
}

// NewConsole builds a Console. Without WithSink entries are not mirrored.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{sink: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Console) Log(message string) {
	c.add(SeverityLog, "Log: "+message, c.sink.Info())
}

func (c *Console) Warning(message string) {
	c.add(SeverityWarning, "Warning: "+message, c.sink.Warn())
}

func (c *Console) Error(message string) {
	c.add(SeverityError, "Error: "+message, c.sink.Error())
}

// Entries returns a copy of the record.
func (c *Console) Entries() []Entry { return c.snapshot() }

// Clear empties the record.
func (c *Console) Clear() { c.clear() }

func (c *Console) add(severity Severity, message string, event *zerolog.Event) {
	entry := Entry{Severity: severity, Message: message}
	c.append(entry)
	event.Str("source", "job").Msg(message)
	if c.onAppend != nil {
		c.onAppend(entry)
	}
}
