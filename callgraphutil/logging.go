package callgraphutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogLevel represents different levels of logging detail
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelSilent:
		return "silent"
	case LogLevelInfo:
		return "info"
	case LogLevelDebug:
		return "debug"
	case LogLevelTrace:
		return "trace"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ParseLogLevel parses a level name, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "quiet", "off", "none":
		return LogLevelSilent
	case "debug", "verbose":
		return LogLevelDebug
	case "trace", "all":
		return LogLevelTrace
	default:
		return LogLevelInfo
	}
}

// Logger writes leveled, symbol prefixed lines for analysis progress.
type Logger struct {
	level  LogLevel
	writer io.Writer
	prefix string
}

type loggerKey struct{}

// NewLogger creates a new logger with the specified level and output
func NewLogger(level LogLevel, writer io.Writer) *Logger {
	if writer == nil {
		writer = os.Stderr
	}
	return &Logger{
		level:  level,
		writer: writer,
	}
}

// Level returns the logger's level.
func (l *Logger) Level() LogLevel { return l.level }

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool { return level != LogLevelSilent && l.level >= level }

// WithPrefix returns a new logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = l.prefix + " " + prefix
	}
	return &Logger{
		level:  l.level,
		writer: l.writer,
		prefix: newPrefix,
	}
}

// Info logs informational messages (always visible except silent mode)
func (l *Logger) Info(format string, args ...any) {
	if l.Enabled(LogLevelInfo) {
		l.log("•", format, args...)
	}
}

// Debug logs debug messages (visible in debug and trace modes)
func (l *Logger) Debug(format string, args ...any) {
	if l.Enabled(LogLevelDebug) {
		l.log("→", format, args...)
	}
}

// Trace logs detailed trace messages (visible only in trace mode)
func (l *Logger) Trace(format string, args ...any) {
	if l.Enabled(LogLevelTrace) {
		l.log("·", format, args...)
	}
}

// Progress logs progress information with timing
func (l *Logger) Progress(operation string, current, total int, elapsed time.Duration) {
	if !l.Enabled(LogLevelInfo) {
		return
	}
	if total > 0 {
		percent := float64(current) / float64(total) * 100
		l.log("▸", "%s: %d/%d (%.1f%%) [%v]", operation, current, total, percent, elapsed.Truncate(time.Millisecond))
	} else {
		l.log("▸", "%s: %d processed [%v]", operation, current, elapsed.Truncate(time.Millisecond))
	}
}

// Step logs a completed processing step with context
func (l *Logger) Step(step string, details ...string) {
	if l.Enabled(LogLevelInfo) {
		msg := step
		if len(details) > 0 {
			msg += ": " + strings.Join(details, ", ")
		}
		l.log("✓", "%s", msg)
	}
}

// Warning logs warning messages
func (l *Logger) Warning(format string, args ...any) {
	if l.Enabled(LogLevelInfo) {
		l.log("⚠", format, args...)
	}
}

// Error logs error messages (always visible except silent mode)
func (l *Logger) Error(format string, args ...any) {
	if l.Enabled(LogLevelInfo) {
		l.log("✗", format, args...)
	}
}

func (l *Logger) log(symbol, format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	prefix := ""
	if l.prefix != "" {
		prefix = "[" + l.prefix + "] "
	}
	fmt.Fprintf(l.writer, "%s %s%s\n", symbol, prefix, message)
	if f, ok := l.writer.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves a logger from the context, returning a silent
// logger if none exists
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return NewLogger(LogLevelSilent, io.Discard)
}

// ProgressTracker reports progress of an operation over a known number of
// items, batching updates so large inputs do not flood the log.
type ProgressTracker struct {
	name      string
	total     int
	current   int
	startTime time.Time
	logger    *Logger
	lastLog   time.Time
	interval  time.Duration
	batchSize int
	lastBatch int
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(ctx context.Context, name string, total int) *ProgressTracker {
	logger := FromContext(ctx)

	// fewer updates for larger inputs
	batchSize := 1
	interval := 1 * time.Second
	switch {
	case total > 1000:
		batchSize = total / 10
		interval = 3 * time.Second
	case total > 100:
		batchSize = total / 20
		interval = 2 * time.Second
	}

	now := time.Now()
	pt := &ProgressTracker{
		name:      name,
		total:     total,
		startTime: now,
		logger:    logger,
		lastLog:   now,
		interval:  interval,
		batchSize: batchSize,
	}

	if total > 10 {
		logger.Info("starting %s (%d items)", name, total)
	}

	return pt
}

// Update records one processed item.
func (pt *ProgressTracker) Update(message string) {
	pt.current++

	now := time.Now()
	done := pt.current >= pt.total
	due := now.Sub(pt.lastLog) >= pt.interval || pt.current-pt.lastBatch >= pt.batchSize

	switch {
	case done:
		pt.finish(now)
	case due && pt.total > 10:
		pt.logger.Progress(pt.name, pt.current, pt.total, now.Sub(pt.startTime))
		pt.lastLog = now
		pt.lastBatch = pt.current
	}

	pt.logger.Debug("%s (%d/%d): %s", pt.name, pt.current, pt.total, message)
}

// Complete marks the operation as finished
func (pt *ProgressTracker) Complete() {
	if pt.current < pt.total {
		pt.current = pt.total
		pt.finish(time.Now())
	}
}

func (pt *ProgressTracker) finish(now time.Time) {
	pt.logger.Step(pt.name+" complete", fmt.Sprintf("%d items in %v", pt.current, now.Sub(pt.startTime).Truncate(10*time.Millisecond)))
	pt.lastLog = now
	pt.lastBatch = pt.current
}
