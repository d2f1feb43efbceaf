// Package interp holds the runtime values of kernels and the tier-0
// interpreter that executes them.
//
// The interpreter defines the reference semantics of kernel code:
//
//   - int32 and int64 arithmetic wraps on overflow
//   - shift counts are masked to the operand width (31 or 63)
//   - integer division and remainder truncate toward zero; a zero divisor
//     raises an ARITHMETIC runtime error
//   - float % is the IEEE remainder of truncated division (math.Mod)
//   - float-to-integer conversion saturates and maps NaN to zero
//   - min and max propagate NaN and order -0.0 below +0.0
//
// Compiled code reuses these semantics: it runs the same statement
// evaluator and only substitutes vectorized loops through loop hooks.
//
// Invocations are all-or-nothing: Invoke returns either a result or an
// error, never a partially computed value.
package interp
