// Package logger provides structured logging for mdversion.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with component and operation helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool
	Output     io.Writer
	WithCaller bool
}

// New creates a structured logger writing JSON lines, or console output when Pretty is set.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "mdversion").
		Logger()
	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// WithCorrelationID returns a child logger carrying the request correlation id.
func (l *Logger) WithCorrelationID(id string) *Logger {
	if id == "" {
		return l
	}
	return &Logger{zlog: l.zlog.With().Str("correlation_id", id).Logger()}
}

// LogRequest logs one served HTTP request.
func (l *Logger) LogRequest(method, path string, status int, duration time.Duration, correlationID string) {
	event := l.zlog.Info()
	if status >= 500 {
		event = l.zlog.Error()
	} else if status >= 400 {
		event = l.zlog.Warn()
	}
	event.
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration", duration).
		Str("correlation_id", correlationID).
		Msg("request")
}

// LogOperation logs a use case outcome against a document identity.
func (l *Logger) LogOperation(op, docType, name string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.
		Str("operation", op).
		Str("doc_type", docType).
		Str("doc_name", name).
		Dur("duration", duration).
		Msg("operation")
}
