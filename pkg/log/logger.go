// Package log provides structured logging on top of github.com/rs/zerolog.
//
// Components obtain a named Logger once and attach context with With:
//
//	logger := log.GetLoggerWithName("loader").With(log.PathKey, path)
//	logger.Info("Table loaded", log.RowsKey, n)
//
// Fields are passed as alternating key/value pairs. Error treats a leading error
// value specially and records it under zerolog's error field.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Standard field keys.
const (
	ComponentKey  = "component"
	ModelNameKey  = "model"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	PredsKey      = "predictions"
	DurationMsKey = "duration_ms"
	PathKey       = "path"
	URLKey        = "url"
	RowsKey       = "rows"
	TableKey      = "table"
	FilterKey     = "filter"
	RequestIDKey  = "request_id"
)

// Operation and phase values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationLoad     = "load"
	OperationFetch    = "fetch"
	OperationEvaluate = "evaluate"
	OperationQuery    = "query"

	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseEvaluation = "evaluation"
)

// Logger is the structured logging interface used across the module.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	// With returns a child logger that always carries the given fields.
	With(fields ...interface{}) Logger
}

// LoggerProvider hands out named loggers sharing one output and level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level zerolog.Level)
}

// ZerologProvider is a LoggerProvider backed by zerolog.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing human-readable output to stderr.
func NewZerologProvider(level zerolog.Level) *ZerologProvider {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return NewZerologProviderWithWriter(out, level)
}

// NewZerologProviderWithWriter creates a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level zerolog.Level) *ZerologProvider {
	return &ZerologProvider{
		base: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// GetLogger returns an unnamed logger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base}
}

// GetLoggerWithName returns a logger tagged with the component name.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel changes the minimum level for loggers created afterwards.
func (p *ZerologProvider) SetLevel(level zerolog.Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(level)
}

// Zerolog exposes the underlying zerolog.Logger.
func (p *ZerologProvider) Zerolog() *zerolog.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	l := p.base
	return &l
}

type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...interface{}) {
	ev := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			fields = fields[1:]
		}
	}
	ev.Fields(fields).Msg(msg)
}

func (l *zerologLogger) With(fields ...interface{}) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(fields).Logger()}
}

var (
	globalMu       sync.RWMutex
	globalProvider = NewZerologProvider(zerolog.InfoLevel)
)

// SetupLogger configures the process-wide provider with a console writer at level.
func SetupLogger(level string) {
	SetProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetupJSONLogger configures the process-wide provider to emit JSON lines to w.
func SetupJSONLogger(w io.Writer, level string) {
	SetProvider(NewZerologProviderWithWriter(w, ToLogLevel(level)))
}

// SetProvider replaces the process-wide provider.
func SetProvider(p *ZerologProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

// Provider returns the process-wide provider.
func Provider() *ZerologProvider {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalProvider
}

// GetLogger returns the process-wide zerolog logger for event-style logging.
func GetLogger() *zerolog.Logger {
	return Provider().Zerolog()
}

// GetLoggerWithName returns a named Logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	return Provider().GetLoggerWithName(name)
}

// LogError logs err at error level with msg.
func LogError(err error, msg string) {
	GetLogger().Error().Err(err).Msg(msg)
}

// ToLogLevel parses a level name, falling back to info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}
