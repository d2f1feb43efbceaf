package simd

import (
	"os"
	"strconv"

	"golang.org/x/sys/cpu"
)

// Target describes the vector unit vectorized code is generated for.
type Target struct {
	// Name is the instruction set ("avx512", "avx2", "sse2", "neon",
	// "portable" or "scalar").
	Name string
	// Width is the vector register width in bytes. Zero disables
	// vectorization.
	Width int
}

// NoSimdEnv reports whether VECVERIFY_NO_SIMD requests scalar-only code.
func NoSimdEnv() bool {
	val := os.Getenv("VECVERIFY_NO_SIMD")
	if val == "" {
		return false
	}
	// Any non-empty value is considered true, but also parse as bool
	if b, err := strconv.ParseBool(val); err == nil {
		return b
	}
	return true
}

// Detect returns the widest vector unit of the host.
//
// Vector lanes are executed portably, so hosts without a recognised vector
// unit still get a 16-byte target.
func Detect() Target {
	if NoSimdEnv() {
		return Target{Name: "scalar", Width: 0}
	}
	switch {
	case cpu.X86.HasAVX512F:
		return Target{Name: "avx512", Width: 64}
	case cpu.X86.HasAVX2:
		return Target{Name: "avx2", Width: 32}
	case cpu.X86.HasSSE2:
		return Target{Name: "sse2", Width: 16}
	case cpu.ARM64.HasASIMD:
		return Target{Name: "neon", Width: 16}
	default:
		return Target{Name: "portable", Width: 16}
	}
}

// Resolve picks the target for a configured width. A positive width
// overrides detection; zero means detect; a negative width disables
// vectorization.
func Resolve(width int) Target {
	switch {
	case width < 0:
		return Target{Name: "scalar", Width: 0}
	case width > 0:
		return Target{Name: "fixed", Width: width}
	default:
		return Detect()
	}
}
