// Package errors defines the error taxonomy shared by every layer of the dashboard.
//
// Errors fall into a small number of kinds, each identified by a sentinel so that
// callers can classify failures with errors.Is regardless of how deeply they are
// wrapped:
//
//   - ErrNotFound: a file, table or column does not exist
//   - ErrDeserialization: content exists but cannot be decoded (CSV, model artifact)
//   - ErrEmptySelection: a filter selected zero rows, so no metrics can be computed
//   - ErrTransfer: fetching a remote artifact failed
//   - ErrEmptyData, ErrDimensionMismatch, ErrNotFitted, ErrSingularMatrix: numerical
//     and estimator failures
//
// Typed errors (NotFoundError, DimensionError and friends) carry the operation that
// failed plus kind-specific detail, and report their sentinel through an Is method.
// Wrapping helpers delegate to github.com/cockroachdb/errors so stack traces are
// attached where errors are created and printed with "%+v".
//
// Nothing in this package retries or recovers; errors propagate to the caller that
// renders them.
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

const prefix = "elasticity"

var (
	// ErrNotFound reports a missing file, table or column.
	ErrNotFound = errors.New("not found")
	// ErrDeserialization reports unreadable or malformed content.
	ErrDeserialization = errors.New("deserialization failed")
	// ErrEmptySelection reports a filter that matched no rows.
	ErrEmptySelection = errors.New("no data available for this selection")
	// ErrTransfer reports a failed remote fetch.
	ErrTransfer = errors.New("transfer failed")
	// ErrEmptyData reports an empty input where at least one value is required.
	ErrEmptyData = errors.New("empty data")
	// ErrDimensionMismatch reports inputs whose lengths or shapes disagree.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNotFitted reports use of an estimator before training.
	ErrNotFitted = errors.New("not fitted")
	// ErrSingularMatrix reports a rank deficient design matrix.
	ErrSingularMatrix = errors.New("singular matrix")
	// ErrNotAvailable reports an optional capability the current model lacks.
	ErrNotAvailable = errors.New("not available")
	// ErrInvalidValue reports an argument outside its accepted domain.
	ErrInvalidValue = errors.New("invalid value")
	// ErrNotImplemented reports an unsupported code path.
	ErrNotImplemented = errors.New("not implemented")
)

// New returns an error with a stack trace.
func New(msg string) error { return errors.NewWithDepth(1, msg) }

// Newf returns a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.NewWithDepthf(1, format, args...)
}

// Wrap annotates err with msg. It returns nil if err is nil.
func Wrap(err error, msg string) error { return errors.WrapWithDepth(1, err, msg) }

// Wrapf annotates err with a formatted message. It returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.WrapWithDepthf(1, err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap returns the next error in err's chain.
func Unwrap(err error) error { return errors.Unwrap(err) }

// NotFoundError is returned when a path or named resource does not exist.
type NotFoundError struct {
	Op       string
	Resource string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(op, resource string) *NotFoundError {
	return &NotFoundError{Op: op, Resource: resource}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s: %s not found", prefix, e.Op, e.Resource)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// DeserializationError is returned when content cannot be read or decoded.
type DeserializationError struct {
	Op       string
	Resource string
	Err      error
}

// NewDeserializationError creates a DeserializationError wrapping cause.
func NewDeserializationError(op, resource string, cause error) *DeserializationError {
	return &DeserializationError{Op: op, Resource: resource, Err: cause}
}

func (e *DeserializationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: cannot decode %s", prefix, e.Op, e.Resource)
	}
	return fmt.Sprintf("%s: %s: cannot decode %s: %v", prefix, e.Op, e.Resource, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

// Is matches ErrDeserialization.
func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

// TransferError is returned when a remote artifact cannot be fetched.
type TransferError struct {
	Op  string
	URL string
	Err error
}

// NewTransferError creates a TransferError wrapping cause.
func NewTransferError(op, url string, cause error) *TransferError {
	return &TransferError{Op: op, URL: url, Err: cause}
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %s: fetch %s: %v", prefix, e.Op, e.URL, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches ErrTransfer.
func (e *TransferError) Is(target error) bool { return target == ErrTransfer }

// EmptySelectionError signals that the applied filters matched no rows.
type EmptySelectionError struct {
	// Filters lists the applied filters as "column=value".
	Filters []string
}

// NewEmptySelectionError creates an EmptySelectionError.
func NewEmptySelectionError(filters ...string) *EmptySelectionError {
	return &EmptySelectionError{Filters: filters}
}

func (e *EmptySelectionError) Error() string {
	if len(e.Filters) == 0 {
		return fmt.Sprintf("%s: %v", prefix, ErrEmptySelection)
	}
	return fmt.Sprintf("%s: %v (%s)", prefix, ErrEmptySelection, strings.Join(e.Filters, ", "))
}

// Is matches ErrEmptySelection.
func (e *EmptySelectionError) Is(target error) bool { return target == ErrEmptySelection }

// ValueError reports an invalid argument value.
type ValueError struct {
	Op      string
	Message string
}

// NewValueError creates a ValueError.
func NewValueError(op, message string) *ValueError {
	return &ValueError{Op: op, Message: message}
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
}

// Is matches ErrInvalidValue.
func (e *ValueError) Is(target error) bool { return target == ErrInvalidValue }

// DimensionError reports mismatched lengths or shapes.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

// NewDimensionError creates a DimensionError.
func NewDimensionError(op string, expected, got, axis int) *DimensionError {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s: dimension mismatch on axis %d: expected %d, got %d",
		prefix, e.Op, e.Axis, e.Expected, e.Got)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NotFittedError reports use of an untrained estimator.
type NotFittedError struct {
	ModelName string
	Method    string
}

// NewNotFittedError creates a NotFittedError.
func NewNotFittedError(modelName, method string) *NotFittedError {
	return &NotFittedError{ModelName: modelName, Method: method}
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s: %s is not fitted yet, call Fit before %s", prefix, e.ModelName, e.Method)
}

// Is matches ErrNotFitted.
func (e *NotFittedError) Is(target error) bool { return target == ErrNotFitted }

// ModelError wraps a lower-level failure inside an estimator operation.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

// NewModelError creates a ModelError.
func NewModelError(op, message string, cause error) *ModelError {
	return &ModelError{Op: op, Message: message, Err: cause}
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ValidationError reports a configuration or input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
	Value  interface{}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Value: value}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s (got %v)", prefix, e.Field, e.Reason, e.Value)
}

// Is matches ErrInvalidValue.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidValue }

// Recover converts a panic in the calling function into an error stored in err.
// It must be deferred directly:
//
//	func (m *Model) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
//		defer errors.Recover(&err, "Model.Predict")
//		...
//	}
//
// gonum panics on shape violations, so estimators defer Recover around matrix code.
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		*err = errors.Wrapf(e, "%s: panic", op)
		return
	}
	*err = errors.Newf("%s: panic: %v", op, r)
}
