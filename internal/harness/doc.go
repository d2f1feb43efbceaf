// Package harness verifies the vectorizer kernel by kernel.
//
// For every kernel of a suite the harness proves two things: the optimized
// code computes the same result as the interpreter, and the optimizer
// actually emitted the vector instructions the kernel expects. A kernel that
// is correct but was never vectorized fails.
//
// # Pipeline
//
// Discover finds the kernels of a suite class. A Controller drives each
// kernel through the runtime's tiers with the diagnostic API:
//
//	UNCOMPILED  deoptimize, force interpreter-only, invoke: baseline result
//	WARMING     invoke, drain the compile queue, poll the level, repeated
//	            until the optimized level or the warm-up budget is spent
//	COMPILED    invoke once more: optimized result and compiled artifact
//	MEASURED    both results captured
//	FAILED      kernel error or COMPILATION_TIMEOUT
//
// Compare checks the two results under the kernel's tolerance and Inspect
// checks the artifact's instruction graph against the kernel's //vec:ir
// tags. Both always run. The verdicts are collected into a Report whose Err
// lists every failing kernel.
//
// # Kernel directives
//
//	//vec:kernel                         marks a kernel
//	//vec:ir AddVI AddVI@8 LoadVector>=2  expected-IR tags, Op[@VLEN][CMP N]
//	//vec:tolerance ulp=2                exact, ulp=N or abs=X[,rel=Y]
//
// # Determinism
//
// Kernels run one at a time and every kernel starts from a deoptimized
// method, so the same kernel always takes the same number of warm-up
// invocations and reaches the same code. Tests pin the vector width and the
// run id so reports can be compared against golden files.
package harness
