package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogEntry is a captured WARN or ERROR record shown in the console's
// notification panel.
type LogEntry struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Project string
	Err     string
}

// ringBuffer keeps the most recent entries.
type ringBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	head    int
	count   int

	warnCount  int
	errorCount int
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{entries: make([]LogEntry, size)}
}

func (rb *ringBuffer) add(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = entry
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}

	if entry.Level >= slog.LevelError {
		rb.errorCount++
	} else {
		rb.warnCount++
	}
}

func (rb *ringBuffer) all() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	size := len(rb.entries)
	out := make([]LogEntry, rb.count)
	for i := range rb.count {
		out[i] = rb.entries[(rb.head-rb.count+i+size)%size]
	}
	return out
}

func (rb *ringBuffer) counts() (warn, err int) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.warnCount, rb.errorCount
}

func (rb *ringBuffer) clearCounts() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.warnCount = 0
	rb.errorCount = 0
}

// captureHandler copies WARN and ERROR records into a ring buffer before
// passing them on. Attributes added with With are remembered so the
// project and error of a record survive into the entry.
type captureHandler struct {
	inner  slog.Handler
	buffer *ringBuffer
	attrs  []slog.Attr
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		entry := LogEntry{Time: r.Time, Level: r.Level, Message: r.Message}
		visit := func(a slog.Attr) bool {
			switch a.Key {
			case "project":
				entry.Project = a.Value.String()
			case "error":
				entry.Err = a.Value.String()
			}
			return true
		}
		for _, a := range h.attrs {
			visit(a)
		}
		r.Attrs(visit)
		h.buffer.add(entry)
	}
	return h.inner.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{
		inner:  h.inner.WithAttrs(attrs),
		buffer: h.buffer,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{
		inner:  h.inner.WithGroup(name),
		buffer: h.buffer,
		attrs:  h.attrs,
	}
}

var (
	// Log is the global structured logger
	Log *slog.Logger
	// LogPath is the path to the current log file
	LogPath string

	logWriter    *lumberjack.Logger
	captured     *ringBuffer
	debugEnabled bool
)

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger writes JSON logs to logPath, rotated by lumberjack. An empty
// path selects ~/.config/studio/studio.log.
func InitLogger(level LogLevel, logPath string) {
	if logPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			homeDir = os.TempDir()
		}
		logDir := filepath.Join(homeDir, ".config", "studio")
		_ = os.MkdirAll(logDir, 0755)
		logPath = filepath.Join(logDir, "studio.log")
	}
	LogPath = logPath

	logWriter = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	initWithWriter(level, logWriter)
}

// InitWithWriter sends logs to w instead of a file. Used by `studio serve`
// when logging to stderr and by tests.
func InitWithWriter(level LogLevel, w io.Writer) {
	LogPath = ""
	initWithWriter(level, w)
}

func initWithWriter(level LogLevel, w io.Writer) {
	debugEnabled = level == LevelDebug
	captured = newRingBuffer(100)

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	Log = slog.New(&captureHandler{inner: jsonHandler, buffer: captured})
	slog.SetDefault(Log)
}

// Close closes the log file
func Close() {
	if logWriter != nil {
		logWriter.Close()
	}
}

func getLogger() *slog.Logger {
	if Log != nil {
		return Log
	}
	return slog.Default()
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	getLogger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	getLogger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	getLogger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	getLogger().Error(msg, args...)
}

// With creates a new logger with additional attributes
func With(args ...any) *slog.Logger {
	return getLogger().With(args...)
}

// GetCounts returns the number of warnings and errors since the last clear.
func GetCounts() (warn, err int) {
	if captured == nil {
		return 0, 0
	}
	return captured.counts()
}

// ClearCounts resets the warning and error counters.
func ClearCounts() {
	if captured != nil {
		captured.clearCounts()
	}
}

// GetEntries returns the captured entries, oldest first.
func GetEntries() []LogEntry {
	if captured == nil {
		return nil
	}
	return captured.all()
}

// IsDebugEnabled returns true if debug mode is active.
func IsDebugEnabled() bool {
	return debugEnabled
}

// Format renders the entry on one line.
func (e LogEntry) Format() string {
	levelStr := "WARN"
	if e.Level >= slog.LevelError {
		levelStr = "ERROR"
	}
	line := fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), levelStr, e.Message)
	if e.Project != "" {
		line += " [" + e.Project + "]"
	}
	if e.Err != "" {
		line += ": " + e.Err
	}
	return line
}
