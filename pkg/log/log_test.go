package log

import (
	"testing"
)

func TestGetLoggerWithName(t *testing.T) {
	logger := GetLoggerWithName("test")
	if logger == nil {
		t.Fatal("GetLoggerWithName returned nil")
	}

	// With must return an independent logger carrying the extra context.
	child := logger.With(ComponentKey, "unit", SamplesKey, 42)
	if child == nil {
		t.Fatal("With returned nil")
	}

	// Odd or non-string keys are skipped rather than panicking.
	child.Info("message", "dangling")
	child.Info("message", 123, "value")
	child.Debug("debug", RowsKey, 1)
	child.Warn("warn")
	child.Error("error", StageKey, "fit")
}

func TestSetupLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "disabled", "bogus"} {
		SetupLogger(level)
		GetLoggerWithName("lvl").Info("still usable", "level", level)
	}
	SetupLogger("info")
}
