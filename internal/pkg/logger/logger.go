package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
)

// StdLogger is the operational logger, backed by log/slog text output.
// Debug and Info are emitted only in verbose mode; Warn and Error always are.
type StdLogger struct {
	logger *slog.Logger
}

// NewStd creates a StdLogger writing to stderr.
func NewStd(verbose bool) *StdLogger {
	return New(os.Stderr, verbose)
}

// New creates a StdLogger writing to w.
func New(w io.Writer, verbose bool) *StdLogger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &StdLogger{logger: slog.New(handler).With("component", "deskgate")}
}

func (l *StdLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(slog.LevelDebug, msg, nil, fields)
}

func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	l.log(slog.LevelInfo, msg, nil, fields)
}

func (l *StdLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(slog.LevelWarn, msg, nil, fields)
}

func (l *StdLogger) Error(msg string, err error, fields map[string]interface{}) {
	l.log(slog.LevelError, msg, err, fields)
}

// Slog exposes the underlying slog.Logger for libraries that accept one.
func (l *StdLogger) Slog() *slog.Logger {
	return l.logger
}

func (l *StdLogger) log(level slog.Level, msg string, err error, fields map[string]interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(fields)+1)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}

// Entry is one captured log line.
type Entry struct {
	Level  string
	Msg    string
	Err    error
	Fields map[string]interface{}
}

// Memory records log calls in memory, for tests.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory builds an empty in-memory logger.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Debug(msg string, fields map[string]interface{}) { m.add("debug", msg, nil, fields) }
func (m *Memory) Info(msg string, fields map[string]interface{})  { m.add("info", msg, nil, fields) }
func (m *Memory) Warn(msg string, fields map[string]interface{})  { m.add("warn", msg, nil, fields) }
func (m *Memory) Error(msg string, err error, fields map[string]interface{}) {
	m.add("error", msg, err, fields)
}

// Entries returns a copy of everything logged so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Count returns how many entries were logged at level.
func (m *Memory) Count(level string) int {
	n := 0
	for _, e := range m.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (m *Memory) add(level, msg string, err error, fields map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Msg: msg, Err: err, Fields: fields})
}
