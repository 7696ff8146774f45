package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// LogLevel is the severity of a log line.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel parses a log.level setting. "warning" is accepted as an
// alias of "warn".
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
}

// Logger is the printf-style logger passed through the service, the loader
// and the scanner.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

const logTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// sink is shared by a logger and every logger derived from it, so lines from
// concurrent root scans never interleave.
type sink struct {
	mu     sync.Mutex
	level  LogLevel
	out    io.Writer
	clock  Clock
	closer io.Closer
}

type field struct {
	key   string
	value interface{}
}

// DefaultLogger writes one line per message:
//
//	2024-05-01T10:00:00.000Z WARN  Class X does not occur in the dump check=3f2a class=X
//
// Fields follow the message in key order. Values containing spaces, quotes or
// '=' are quoted.
type DefaultLogger struct {
	sink   *sink
	fields []field
}

// LoggerOption configures a DefaultLogger.
type LoggerOption func(*sink)

// LogClock stamps lines with c instead of the wall clock.
func LogClock(c Clock) LoggerOption {
	return func(s *sink) {
		s.clock = c
	}
}

// NewDefaultLogger creates a logger writing lines at level and above to out.
func NewDefaultLogger(level LogLevel, out io.Writer, opts ...LoggerOption) *DefaultLogger {
	s := &sink{level: level, out: out, clock: NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return &DefaultLogger{sink: s}
}

// NewFileLogger creates a logger appending to logPath, creating parent
// directories as needed. Close releases the file.
func NewFileLogger(level LogLevel, logPath string, opts ...LoggerOption) (*DefaultLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l := NewDefaultLogger(level, file, opts...)
	l.sink.closer = file
	return l, nil
}

// SetLevel changes the level of this logger and all loggers derived from it.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// Close closes the log file of a file logger. It is a no-op otherwise.
func (l *DefaultLogger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.closer == nil {
		return nil
	}
	err := l.sink.closer.Close()
	l.sink.closer = nil
	l.sink.out = io.Discard
	return err
}

func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *DefaultLogger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *DefaultLogger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

// WithField returns a logger that appends key=value to every line.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger that appends fields to every line. A key that
// is already set is overridden.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.key] = f.value
	}
	for k, v := range fields {
		merged[k] = v
	}

	out := make([]field, 0, len(merged))
	for k, v := range merged {
		out = append(out, field{key: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return &DefaultLogger{sink: l.sink, fields: out}
}

func (l *DefaultLogger) log(level LogLevel, msg string, args []interface{}) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}

	var b strings.Builder
	b.WriteString(s.clock.Now().Format(logTimeFormat))
	fmt.Fprintf(&b, " %-5s ", level)
	if len(args) > 0 {
		fmt.Fprintf(&b, msg, args...)
	} else {
		b.WriteString(msg)
	}
	for _, f := range l.fields {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(logfmtValue(f.value))
	}
	b.WriteByte('\n')
	_, _ = io.WriteString(s.out, b.String())
}

func logfmtValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

// NullLogger discards everything.
type NullLogger struct{}

func (l *NullLogger) Debug(msg string, args ...interface{})           {}
func (l *NullLogger) Info(msg string, args ...interface{})            {}
func (l *NullLogger) Warn(msg string, args ...interface{})            {}
func (l *NullLogger) Error(msg string, args ...interface{})           {}
func (l *NullLogger) WithField(key string, value interface{}) Logger  { return l }
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }
