// Package store provides the SQLite-backed compile log of the tiered
// runtime.
//
// The log is append-only and records:
//   - Compilations: one row per installed compiled method, with its level,
//     graph fingerprint and per-loop vectorization decisions
//   - Deoptimizations: one row per discarded compiled method
//
// # Ordering
//
// Rows are stamped with the run id and a logical clock seq assigned by the
// runtime. Queries order by run_id, seq and id so results are identical
// across replays regardless of wall time.
//
// # Database Configuration
//
//   - path ":memory:" keeps the log in memory for the life of the Store
//   - WAL mode: Concurrent reads during writes (file databases)
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Harness verdicts never depend on the log; it is diagnostic output for
// `vecverify log`.
package store
