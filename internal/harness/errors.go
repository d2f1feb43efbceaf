package harness

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes harness errors.
type ErrorCode string

const (
	// ErrCodeInvalidKernelSignature is a setup error: a marked method has
	// parameters, an unsupported result type or malformed metadata, or the
	// suite declares no kernels. The suite cannot run.
	ErrCodeInvalidKernelSignature ErrorCode = "INVALID_KERNEL_SIGNATURE"

	// ErrCodeCompilationTimeout means a kernel did not reach the optimized
	// tier within the warm-up budget. It fails that kernel only.
	ErrCodeCompilationTimeout ErrorCode = "COMPILATION_TIMEOUT"
)

// HarnessError is an error raised by the harness itself, as opposed to an
// error raised by kernel code.
type HarnessError struct {
	Code ErrorCode

	// Kernel is the kernel name, empty for suite-level errors.
	Kernel string

	Message string

	// Pos is the source position of the offending declaration, if known.
	Pos string
}

// Error implements the error interface.
func (e *HarnessError) Error() string {
	msg := e.Message
	if e.Kernel != "" {
		msg = e.Kernel + ": " + msg
	}
	if e.Pos != "" {
		msg = e.Pos + ": " + msg
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func invalidSignature(kernel, pos, format string, args ...any) *HarnessError {
	return &HarnessError{
		Code:    ErrCodeInvalidKernelSignature,
		Kernel:  kernel,
		Message: fmt.Sprintf(format, args...),
		Pos:     pos,
	}
}

// Code returns the harness error code of err, or "" if err is not a
// HarnessError. Uses errors.As to handle wrapped errors.
func Code(err error) ErrorCode {
	var he *HarnessError
	if errors.As(err, &he) {
		return he.Code
	}
	return ""
}

// IsInvalidSignature returns true if err is an INVALID_KERNEL_SIGNATURE error.
func IsInvalidSignature(err error) bool {
	return Code(err) == ErrCodeInvalidKernelSignature
}

// IsCompilationTimeout returns true if err is a COMPILATION_TIMEOUT error.
func IsCompilationTimeout(err error) bool {
	return Code(err) == ErrCodeCompilationTimeout
}
