package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ANSI color codes for console output
const (
	colorReset      = "\033[0m"
	colorGreen      = "\033[32m"
	colorCyan       = "\033[36m"
	colorBrightRed  = "\033[91m"
	colorBrightYell = "\033[93m"
	colorBrightGray = "\033[90m"
)

// ServiceNameWidth is the console column width of the service name.
const ServiceNameWidth = 20

// Level is the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel reads a level name such as "debug" or "WARN".
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO", "":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// LogEntry represents a single log entry
type LogEntry struct {
	Time    time.Time
	Service string
	Level   string
	Message string
	Fields  map[string]string
	TraceID string
}

// Logger writes leveled entries to the console and fans every entry out to
// subscribers. The console level does not filter subscribers.
type Logger struct {
	serviceName string
	version     string

	mu          sync.RWMutex
	out         io.Writer
	level       Level
	console     bool
	color       bool
	subscribers []chan LogEntry
}

// New creates a logger writing to stderr. REDB_LOG_LEVEL sets the initial
// console level.
func New(serviceName, version string) *Logger {
	level, _ := ParseLevel(os.Getenv("REDB_LOG_LEVEL"))
	return &Logger{
		serviceName: serviceName,
		version:     version,
		out:         os.Stderr,
		level:       level,
		console:     true,
		color:       isTerminal(os.Stderr),
	}
}

func isTerminal(f *os.File) bool {
	if os.Getenv("TERM") == "dumb" || os.Getenv("NO_COLOR") != "" {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// SetOutput redirects console output. Colors are turned off.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.color = false
	l.mu.Unlock()
}

// SetLevel sets the minimum level written to the console.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Subscribe returns a channel receiving every entry. Entries are dropped
// when the channel is full.
func (l *Logger) Subscribe() <-chan LogEntry {
	ch := make(chan LogEntry, 100)

	l.mu.Lock()
	l.subscribers = append(l.subscribers, ch)
	l.mu.Unlock()

	return ch
}

// DisableConsoleOutput stops console output; subscribers still receive entries.
func (l *Logger) DisableConsoleOutput() {
	l.mu.Lock()
	l.console = false
	l.mu.Unlock()
}

// EnableConsoleOutput resumes console output.
func (l *Logger) EnableConsoleOutput() {
	l.mu.Lock()
	l.console = true
	l.mu.Unlock()
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	entry := LogEntry{
		Time:    time.Now(),
		Service: l.serviceName,
		Level:   level.String(),
		Message: message,
		Fields:  fields,
		TraceID: fields["trace_id"],
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.console && level >= l.level {
		fmt.Fprintln(l.out, l.format(entry, level))
	}
	for _, ch := range l.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (l *Logger) format(e LogEntry, level Level) string {
	color, reset := "", ""
	if l.color {
		reset = colorReset
		switch level {
		case LevelDebug:
			color = colorBrightGray
		case LevelInfo:
			color = colorGreen
		case LevelWarn:
			color = colorBrightYell
		default:
			color = colorBrightRed
		}
	}
	return fmt.Sprintf("[%s] [%s] %s%-5s%s %s%s",
		e.Time.Format("2006-01-02 15:04:05.000"),
		formatServiceName(e.Service),
		color, e.Level, reset,
		e.Message, formatFields(e.Fields))
}

// formatServiceName truncates or pads a service name to ServiceNameWidth.
func formatServiceName(name string) string {
	if len(name) > ServiceNameWidth {
		return name[:ServiceNameWidth-1] + "…"
	}
	return fmt.Sprintf("%-*s", ServiceNameWidth, name)
}

// formatFields renders fields as sorted key=value pairs
func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}

func sprintf(message string, args []interface{}) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

// Debug logs a debug message, formatting it when args are given.
func (l *Logger) Debug(message string, args ...interface{}) {
	l.log(LevelDebug, sprintf(message, args), nil)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Info logs an info message, formatting it when args are given.
func (l *Logger) Info(message string, args ...interface{}) {
	l.log(LevelInfo, sprintf(message, args), nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warn logs a warning, formatting it when args are given.
func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(LevelWarn, sprintf(message, args), nil)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Error logs an error, formatting it when args are given.
func (l *Logger) Error(message string, args ...interface{}) {
	l.log(LevelError, sprintf(message, args), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...), nil)
}

// WithFields returns a context attaching fields to every entry.
func (l *Logger) WithFields(fields map[string]string) *LogContext {
	return &LogContext{logger: l, fields: fields}
}

// LogContext provides field-based logging
type LogContext struct {
	logger *Logger
	fields map[string]string
}

// With returns a copy of the context carrying one more field
func (c *LogContext) With(key, value string) *LogContext {
	fields := make(map[string]string, len(c.fields)+1)
	for k, v := range c.fields {
		fields[k] = v
	}
	fields[key] = value
	return &LogContext{logger: c.logger, fields: fields}
}

func (c *LogContext) Debug(message string) { c.logger.log(LevelDebug, message, c.fields) }
func (c *LogContext) Info(message string)  { c.logger.log(LevelInfo, message, c.fields) }
func (c *LogContext) Warn(message string)  { c.logger.log(LevelWarn, message, c.fields) }
func (c *LogContext) Error(message string) { c.logger.log(LevelError, message, c.fields) }
