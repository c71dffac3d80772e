// Package log provides structured logging for the pipeline, backed by
// zerolog. Components obtain a named logger once at construction time and
// attach structured key/value context to every message:
//
//	logger := log.GetLoggerWithName("forest").With(
//		log.ModelNameKey, "RandomForestRegressor",
//		log.ComponentKey, "forest",
//	)
//	logger.Info("Training started", log.SamplesKey, n, log.FeaturesKey, p)
package log

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Shared structured-logging keys. Using the same keys everywhere keeps the
// output greppable across stages.
const (
	ComponentKey  = "component"
	ModelNameKey  = "model"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	StageKey      = "stage"
	RunIDKey      = "run_id"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	RowsKey       = "rows"
	ColumnsKey    = "columns"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
	SeedKey       = "seed"
	URLKey        = "url"
	PathKey       = "path"
	AttemptKey    = "attempt"
)

// Common values for OperationKey and PhaseKey.
const (
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationLoad    = "load"
	OperationClean   = "clean"
	OperationSplit   = "split"
	OperationReport  = "report"

	PhaseTraining  = "training"
	PhaseInference = "inference"
	PhasePipeline  = "pipeline"
)

// Logger is the minimal structured logging interface used by pipeline
// components. Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

// SetupLogger configures the process-wide log level. Accepted levels are
// "debug", "info", "warn", "error" and "disabled"; anything else falls
// back to info.
func SetupLogger(level string) {
	mu.Lock()
	defer mu.Unlock()

	var lvl zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	case "disabled":
		lvl = zerolog.Disabled
	default:
		lvl = zerolog.InfoLevel
	}
	root = root.Level(lvl)
}

// GetLogger returns the underlying zerolog logger for callers that want
// the full zerolog API.
func GetLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// GetLoggerWithName returns a Logger scoped to the given component name.
func GetLoggerWithName(name string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &zerologAdapter{logger: root.With().Str("logger", name).Logger()}
}

// LogError logs err at error level with an accompanying message.
func LogError(err error, msg string) {
	mu.RLock()
	defer mu.RUnlock()
	root.Error().Err(err).Msg(msg)
}

type zerologAdapter struct {
	logger zerolog.Logger
}

func (a *zerologAdapter) Debug(msg string, fields ...interface{}) {
	a.emit(a.logger.Debug(), msg, fields)
}

func (a *zerologAdapter) Info(msg string, fields ...interface{}) {
	a.emit(a.logger.Info(), msg, fields)
}

func (a *zerologAdapter) Warn(msg string, fields ...interface{}) {
	a.emit(a.logger.Warn(), msg, fields)
}

func (a *zerologAdapter) Error(msg string, fields ...interface{}) {
	a.emit(a.logger.Error(), msg, fields)
}

func (a *zerologAdapter) With(fields ...interface{}) Logger {
	ctx := a.logger.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologAdapter{logger: ctx.Logger()}
}

func (a *zerologAdapter) emit(ev *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, fields[i+1])
	}
	ev.Msg(msg)
}
