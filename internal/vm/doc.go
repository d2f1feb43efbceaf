// Package vm is the tiered runtime that executes kernel methods.
//
// Every method starts in the interpreter (level 0). Invocation counters
// promote a method to profiled compiled code (level 3) and then to
// optimized code (level 4), where the SuperWord pass may vectorize its
// loops. Each method has at most one active compiled entry in the code
// cache.
//
// Compilation runs either synchronously on the invoking goroutine or, with
// background compilation enabled, on a broker goroutine fed by an unbounded
// FIFO queue. The WhiteBox API exposes the runtime's internals to the
// verification harness and is only available when diagnostics are
// unlocked.
//
// Thread-safety model:
//   - Invoke: safe from any goroutine
//   - WhiteBox methods: safe from any goroutine
//   - Close: call once when the runtime is no longer needed
package vm
