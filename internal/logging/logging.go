// Package logging provides the leveled, structured logger shared by the
// service. Output is JSON in production and key=value text otherwise.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Level represents the severity of a log entry
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a configured level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s)
	default:
		return LevelInfo
	}
}

// Fields carries structured key/value context for a log entry.
type Fields map[string]any

// Logger provides structured logging
type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
	json     bool
}

// Entry represents a structured log entry
type Entry struct {
	Level     Level  `json:"level"`
	Time      string `json:"time"`
	Message   string `json:"msg"`
	Fields    Fields `json:"fields,omitempty"`
	Error     string `json:"error,omitempty"`
	Caller    string `json:"caller,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// New creates a Logger writing to out.
func New(out io.Writer, level Level, jsonOutput bool) *Logger {
	if out == nil {
		out = os.Stdout
	}
	return &Logger{output: out, minLevel: level, json: jsonOutput}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(os.Stdout, LevelInfo, false)
)

// Configure replaces the process-wide logger.
func Configure(out io.Writer, level Level, format string) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = New(out, level, format == "json")
}

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

func (l *Logger) enabled(level Level) bool {
	return levelRank[level] >= levelRank[l.minLevel]
}

// caller returns the file and line number of the caller
func caller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level Level, msg string, fields Fields, err error) {
	if !l.enabled(level) {
		return
	}

	entry := Entry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Caller:  caller(3),
	}
	if rid, ok := fields["request_id"].(string); ok {
		entry.RequestID = rid
		rest := make(Fields, len(fields))
		for k, v := range fields {
			if k != "request_id" {
				rest[k] = v
			}
		}
		fields = rest
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	if err != nil {
		entry.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.json {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	// Plain text, keys sorted so lines are stable.
	fmt.Fprintf(l.output, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	if entry.RequestID != "" {
		fmt.Fprintf(l.output, " rid=%s", entry.RequestID)
	}
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(l.output, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(l.output, " error=%q", entry.Error)
	}
	fmt.Fprintln(l.output)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields Fields) { l.log(LevelDebug, msg, fields, nil) }

// Info logs an info message
func (l *Logger) Info(msg string, fields Fields) { l.log(LevelInfo, msg, fields, nil) }

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields Fields) { l.log(LevelWarn, msg, fields, nil) }

// Error logs an error message
func (l *Logger) Error(msg string, fields Fields, err error) { l.log(LevelError, msg, fields, err) }

// Debug logs through the default logger.
func Debug(msg string, fields Fields) { Default().log(LevelDebug, msg, fields, nil) }

// Info logs through the default logger.
func Info(msg string, fields Fields) { Default().log(LevelInfo, msg, fields, nil) }

// Warn logs through the default logger.
func Warn(msg string, fields Fields) { Default().log(LevelWarn, msg, fields, nil) }

// Error logs through the default logger.
func Error(msg string, fields Fields, err error) { Default().log(LevelError, msg, fields, err) }
