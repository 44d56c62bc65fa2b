// Package logging provides the bot's structured JSON logger, the
// correlation and chat-user context plumbing, and the audit trail.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// LogLevel names a severity. Levels outside this set are treated as info.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

func levelRank(level LogLevel) int {
	switch level {
	case LevelDebug:
		return 0
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// Logger writes one JSON object per line. Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	output  io.Writer
	level   LogLevel
	service string
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *Logger) {
		l.output = w
	}
}

// WithLevel sets the minimum level that gets written.
func WithLevel(level LogLevel) LoggerOption {
	return func(l *Logger) {
		l.level = level
	}
}

// WithService sets the service tag stamped on every entry.
func WithService(service string) LoggerOption {
	return func(l *Logger) {
		l.service = service
	}
}

// NewLogger returns a logger writing info and above to stdout unless
// options say otherwise.
func NewLogger(opts ...LoggerOption) *Logger {
	logger := &Logger{
		output:  os.Stdout,
		level:   LevelInfo,
		service: "paketku",
	}

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

type logEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         LogLevel               `json:"level"`
	Service       string                 `json:"service"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) write(level LogLevel, message, correlationID string, fields map[string]interface{}) {
	entry := logEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Service:       l.service,
		Message:       message,
		CorrelationID: correlationID,
		Fields:        fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.output, string(data))
}

func (l *Logger) enabled(level LogLevel) bool {
	return levelRank(level) >= levelRank(l.level)
}

func (l *Logger) log(level LogLevel, message string, fields []interface{}) {
	if !l.enabled(level) {
		return
	}
	correlationID, fieldMap := parseFields(fields)
	l.write(level, message, correlationID, fieldMap)
}

// logWithContext is the context-aware path: the correlation ID and the
// chat user stamped on ctx flow into the entry without callers having
// to repeat them in the field list.
func (l *Logger) logWithContext(ctx context.Context, level LogLevel, message string, fields []interface{}) {
	if !l.enabled(level) {
		return
	}
	correlationID, fieldMap := parseFields(fields)
	if correlationID == "" {
		correlationID = GetCorrelationID(ctx)
	}
	if chatUserID, ok := ChatUser(ctx); ok {
		if _, set := fieldMap["chat_user_id"]; !set {
			fieldMap["chat_user_id"] = chatUserID
		}
	}
	l.write(level, message, correlationID, fieldMap)
}

// Debug logs at debug level. Fields are key/value pairs.
func (l *Logger) Debug(message string, fields ...interface{}) {
	l.log(LevelDebug, message, fields)
}

// Info logs at info level. Fields are key/value pairs.
func (l *Logger) Info(message string, fields ...interface{}) {
	l.log(LevelInfo, message, fields)
}

// Warn logs at warn level. Fields are key/value pairs.
func (l *Logger) Warn(message string, fields ...interface{}) {
	l.log(LevelWarn, message, fields)
}

// Error logs at error level. Fields are key/value pairs.
func (l *Logger) Error(message string, fields ...interface{}) {
	l.log(LevelError, message, fields)
}

// DebugWithContext logs at debug level with correlation ID and chat user
// taken from ctx.
func (l *Logger) DebugWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.logWithContext(ctx, LevelDebug, message, fields)
}

// InfoWithContext logs at info level with correlation ID and chat user
// taken from ctx.
func (l *Logger) InfoWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.logWithContext(ctx, LevelInfo, message, fields)
}

// WarnWithContext logs at warn level with correlation ID and chat user
// taken from ctx.
func (l *Logger) WarnWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.logWithContext(ctx, LevelWarn, message, fields)
}

// ErrorWithContext logs at error level with correlation ID and chat user
// taken from ctx.
func (l *Logger) ErrorWithContext(ctx context.Context, message string, fields ...interface{}) {
	l.logWithContext(ctx, LevelError, message, fields)
}

// parseFields turns a key1, value1, key2, value2 list into a field map.
// A "correlation_id" pair is lifted onto the entry itself rather than
// kept as a field. Non-string keys are dropped.
func parseFields(fields []interface{}) (string, map[string]interface{}) {
	correlationID := ""
	fieldMap := make(map[string]interface{})

	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if key == "correlation_id" {
			if id, ok := fields[i+1].(string); ok {
				correlationID = id
			}
			continue
		}
		fieldMap[key] = fields[i+1]
	}

	return correlationID, fieldMap
}
