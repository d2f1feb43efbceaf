// Package ir provides the kernel intermediate representation for vecverify.
//
// Kernels are small numeric methods over the read-only fields of a suite
// instance. The frontend produces ir from Go-syntax source, the interpreter
// executes it directly (tier 0) and the compiler lowers it to an instruction
// graph (tiers 3 and 4).
//
// This package contains type definitions, validation and printing only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - int32 and int64 arithmetic wraps, shift counts are masked to the width
//   - Arrays are one-dimensional; Dims > 1 is representable only so that
//     kernel signatures can be rejected with a precise error
//   - Fields are never stored to; array stores target local arrays only
//   - Locals live in numbered slots, parameters first
package ir
