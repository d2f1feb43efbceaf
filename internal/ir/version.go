package ir

// Version constants for the IR and the runtime that executes it.
const (
	// IRVersion is the kernel IR schema version.
	IRVersion = "1"

	// RuntimeVersion is the vecverify runtime version recorded in compile logs.
	RuntimeVersion = "0.3.0"
)
