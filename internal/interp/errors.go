package interp

import (
	"errors"
	"fmt"
)

// RuntimeError is an error raised by kernel code during execution.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Method is the qualified name of the executing method, if known.
	Method string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeArithmetic indicates integer division or remainder by zero.
	ErrCodeArithmetic RuntimeErrorCode = "ARITHMETIC"

	// ErrCodeIndexOutOfBounds indicates an array access outside 0..len-1.
	ErrCodeIndexOutOfBounds RuntimeErrorCode = "INDEX_OUT_OF_BOUNDS"

	// ErrCodeNegativeArraySize indicates make with a negative length.
	ErrCodeNegativeArraySize RuntimeErrorCode = "NEGATIVE_ARRAY_SIZE"

	// ErrCodeUnsupported indicates a construct the runtime cannot execute.
	ErrCodeUnsupported RuntimeErrorCode = "UNSUPPORTED"

	// ErrCodeIllegalArgument indicates arguments that do not match the
	// method signature.
	ErrCodeIllegalArgument RuntimeErrorCode = "ILLEGAL_ARGUMENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s (method=%s)", e.Code, e.Message, e.Method)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrDatasetModified is returned by Instance.Verify when a field changed
// after the instance was frozen.
var ErrDatasetModified = errors.New("dataset modified after freeze")

func newError(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the runtime error code of err, or "" if err is not a
// RuntimeError. Uses errors.As to handle wrapped errors.
func ErrorCode(err error) RuntimeErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsArithmeticError returns true if err is an ARITHMETIC runtime error.
func IsArithmeticError(err error) bool {
	return ErrorCode(err) == ErrCodeArithmetic
}

// IsIndexError returns true if err is an INDEX_OUT_OF_BOUNDS runtime error.
func IsIndexError(err error) bool {
	return ErrorCode(err) == ErrCodeIndexOutOfBounds
}
