package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDimensionError(t *testing.T) {
	err := NewDimensionError("RMSE", 3, 2, 0)

	if !strings.Contains(err.Error(), "expected 3, got 2") {
		t.Errorf("message = %q, missing dimensions", err.Error())
	}
	if !strings.HasPrefix(err.Error(), "orfcast: ") {
		t.Errorf("message = %q, missing orfcast prefix", err.Error())
	}

	var dimErr *DimensionError
	wrapped := fmt.Errorf("evaluating: %w", err)
	if !errors.As(wrapped, &dimErr) {
		t.Error("errors.As failed through a wrapping layer")
	}
	if dimErr.Axis != 0 {
		t.Errorf("Axis = %d, want 0", dimErr.Axis)
	}
}

func TestModelError_UnwrapsSentinel(t *testing.T) {
	err := NewModelError("LinearRegression.Fit", "empty data", ErrEmptyData)

	if !errors.Is(err, ErrEmptyData) {
		t.Error("errors.Is(err, ErrEmptyData) = false")
	}
	if errors.Is(err, ErrSingularMatrix) {
		t.Error("errors.Is matched the wrong sentinel")
	}

	wrapped := Wrap(err, "pipeline stage")
	if !errors.Is(wrapped, ErrEmptyData) {
		t.Error("sentinel lost through Wrap")
	}
	var modelErr *ModelError
	if !errors.As(wrapped, &modelErr) {
		t.Error("type lost through Wrap")
	}
}

func TestNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForest", "Predict")
	want := "orfcast: RandomForest: Predict called before Fit"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestAcquisitionError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAcquisitionError("https://example.com/data.zip", cause)

	if !errors.Is(err, cause) {
		t.Error("cause lost in AcquisitionError")
	}
	if !strings.Contains(err.Error(), "example.com") {
		t.Errorf("message = %q, missing URL", err.Error())
	}
}

func TestSchemaError(t *testing.T) {
	err := NewSchemaError("Project", "PI")
	if !strings.Contains(err.Error(), `"PI"`) {
		t.Errorf("message = %q, missing column name", err.Error())
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatal("errors.As failed")
	}
	if schemaErr.Op != "Project" {
		t.Errorf("Op = %q, want Project", schemaErr.Op)
	}
}

func TestTrainingError(t *testing.T) {
	err := NewTrainingError("RandomForest", 10, 4)
	if !strings.Contains(err.Error(), "at least 10 rows, got 4") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRecover(t *testing.T) {
	fail := func() (err error) {
		defer Recover(&err, "Model.Fit")
		panic("index out of range")
	}

	err := fail()
	if err == nil {
		t.Fatal("Recover did not convert the panic")
	}
	if !strings.Contains(err.Error(), "Model.Fit") {
		t.Errorf("message = %q, missing operation", err.Error())
	}
	if !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("message = %q, missing panic value", err.Error())
	}
}

func TestRecover_NoPanic(t *testing.T) {
	ok := func() (err error) {
		defer Recover(&err, "Model.Fit")
		return nil
	}
	if err := ok(); err != nil {
		t.Errorf("Recover overwrote a nil error: %v", err)
	}
}

func TestWrap_NilPassthrough(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) != nil")
	}
}
