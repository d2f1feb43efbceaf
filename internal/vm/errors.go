package vm

import "errors"

var (
	// ErrArtifactInvalidated is returned when a compiled artifact is read
	// after its method was recompiled or deoptimized.
	ErrArtifactInvalidated = errors.New("compiled artifact invalidated")

	// ErrDiagnosticsLocked is returned by WhiteBox when the runtime was not
	// started with diagnostics unlocked.
	ErrDiagnosticsLocked = errors.New("whitebox API requires unlock_diagnostics")

	// ErrUnknownMethod is returned for a method name that was never loaded.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrNotCompiled is returned when no compiled code exists at the
	// requested level.
	ErrNotCompiled = errors.New("no compiled code at requested level")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("runtime closed")
)
