// Package errors defines the typed errors shared by every stage of the
// modeling pipeline.
//
// Two families live here:
//
//   - estimator errors raised by model implementations (DimensionError,
//     ValueError, NotFittedError, ModelError)
//   - pipeline errors raised by the acquisition, cleaning and training
//     stages (AcquisitionError, NoDataFileError, SchemaError,
//     TrainingError, ConfigurationError)
//
// All types support Go 1.13+ errors.Is/errors.As and are created through
// github.com/cockroachdb/errors so wrapped errors carry stack traces that
// can be surfaced with %+v.
package errors

import (
	"fmt"

	cockroach "github.com/cockroachdb/errors"
)

// Sentinel errors for common failure causes. Use errors.Is to test for
// them through any number of wrapping layers.
var (
	// ErrEmptyData indicates an operation received a zero-length matrix or vector.
	ErrEmptyData = cockroach.New("empty data")

	// ErrSingularMatrix indicates a linear system could not be solved.
	ErrSingularMatrix = cockroach.New("singular matrix")

	// ErrNotImplemented indicates a requested capability does not exist.
	ErrNotImplemented = cockroach.New("not implemented")
)

// DimensionError reports a shape mismatch between two inputs, for example
// predicted and observed vectors of different lengths.
type DimensionError struct {
	Op       string // Operation that detected the mismatch
	Expected int    // Expected dimension
	Got      int    // Actual dimension
	Axis     int    // Axis on which the mismatch occurred (0 = rows, 1 = columns)
}

// NewDimensionError creates a DimensionError for the given operation.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("orfcast: %s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

// ValueError reports an input whose value (not shape) is invalid.
type ValueError struct {
	Op      string // Operation that rejected the value
	Message string // Human-readable description
}

// NewValueError creates a ValueError for the given operation.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("orfcast: %s: %s", e.Op, e.Message)
}

// NotFittedError reports use of an estimator before Fit succeeded.
type NotFittedError struct {
	ModelName string // Estimator type name
	Method    string // Method that was called prematurely
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("orfcast: %s: %s called before Fit", e.ModelName, e.Method)
}

// ModelError wraps a lower-level failure with estimator context.
type ModelError struct {
	Op      string // Operation, e.g. "LinearRegression.Fit"
	Message string // Short description of the failure
	Err     error  // Underlying cause, may be a sentinel
}

// NewModelError creates a ModelError wrapping err.
func NewModelError(op, message string, err error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: err}
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("orfcast: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("orfcast: %s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ModelError) Unwrap() error { return e.Err }

// AcquisitionError reports a failure while downloading or expanding the
// source archive. Fatal: the pipeline has nothing to work on.
type AcquisitionError struct {
	URL string // Archive URL that was being fetched
	Err error  // Underlying network or archive failure
}

// NewAcquisitionError creates an AcquisitionError wrapping err.
func NewAcquisitionError(url string, err error) *AcquisitionError {
	return &AcquisitionError{URL: url, Err: err}
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("orfcast: acquisition of %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AcquisitionError) Unwrap() error { return e.Err }

// NoDataFileError reports that an expanded archive contained neither a
// spreadsheet nor a CSV file.
type NoDataFileError struct {
	Dir string // Directory that was searched
}

// NewNoDataFileError creates a NoDataFileError for the searched directory.
func NewNoDataFileError(dir string) *NoDataFileError {
	return &NoDataFileError{Dir: dir}
}

func (e *NoDataFileError) Error() string {
	return fmt.Sprintf("orfcast: no spreadsheet or CSV file found under %s", e.Dir)
}

// SchemaError reports a required column missing from the working dataset.
type SchemaError struct {
	Op     string // Stage that required the column
	Column string // Missing column name
}

// NewSchemaError creates a SchemaError for the given stage and column.
func NewSchemaError(op, column string) *SchemaError {
	return &SchemaError{Op: op, Column: column}
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("orfcast: %s: required column %q is absent", e.Op, e.Column)
}

// TrainingError reports that a training set is too small for a model's
// protocol (for example k-fold training with fewer than k rows).
type TrainingError struct {
	Model  string // Model name
	Needed int    // Minimum rows required by the protocol
	Got    int    // Rows actually available
}

// NewTrainingError creates a TrainingError.
func NewTrainingError(model string, needed, got int) *TrainingError {
	return &TrainingError{Model: model, Needed: needed, Got: got}
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("orfcast: %s: training requires at least %d rows, got %d",
		e.Model, e.Needed, e.Got)
}

// ConfigurationError reports hyperparameter settings that cannot produce a
// valid training run, such as an empty grid-search range.
type ConfigurationError struct {
	Op      string // Component that rejected the configuration
	Message string // Description of the invalid setting
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(op, message string) *ConfigurationError {
	return &ConfigurationError{Op: op, Message: message}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("orfcast: %s: invalid configuration: %s", e.Op, e.Message)
}

// Recover converts a panic inside an estimator method into an error,
// preserving the panic value and a stack trace. Use it as the first
// deferred call of every exported Fit/Predict:
//
//	func (m *Model) Fit(X, y mat.Matrix) (err error) {
//		defer errors.Recover(&err, "Model.Fit")
//		...
//	}
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		*err = cockroach.Wrapf(cockroach.Newf("panic: %v", r), "orfcast: %s", op)
	}
}

// Wrap annotates err with a message, preserving the chain. Returns nil if
// err is nil.
func Wrap(err error, message string) error {
	return cockroach.Wrap(err, message)
}

// Wrapf annotates err with a formatted message, preserving the chain.
func Wrapf(err error, format string, args ...interface{}) error {
	return cockroach.Wrapf(err, format, args...)
}
