package vm

import (
	"context"
	"fmt"

	"github.com/roach88/vecverify/internal/compiler"
)

// WhiteBox is the diagnostic API the verification harness drives the
// runtime with.
type WhiteBox struct {
	r *Runtime
}

// WhiteBox returns the diagnostic API, or ErrDiagnosticsLocked unless the
// runtime was configured with UnlockDiagnostics.
func (r *Runtime) WhiteBox() (*WhiteBox, error) {
	if !r.cfg.UnlockDiagnostics {
		return nil, ErrDiagnosticsLocked
	}
	return &WhiteBox{r: r}, nil
}

// SetInterpreterOnly forces the method to run in the interpreter while on
// is true. Compiled code is kept but not used, and queued compilations are
// discarded.
func (wb *WhiteBox) SetInterpreterOnly(name string, on bool) error {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return err
	}
	if st.interpreterOnly != on {
		st.interpreterOnly = on
		st.epoch++
		clear(st.queued)
	}
	return nil
}

// CompilationLevel returns the level of the method's active code:
// LevelInterpreted when it has none or is forced to the interpreter.
func (wb *WhiteBox) CompilationLevel(name string) (int, error) {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return 0, err
	}
	if st.interpreterOnly {
		return compiler.LevelInterpreted, nil
	}
	return st.level(), nil
}

// CompiledArtifact returns a handle to the method's active code at level.
func (wb *WhiteBox) CompiledArtifact(name string, level int) (*Artifact, error) {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return nil, err
	}
	if st.code == nil || st.code.Level != level {
		return nil, fmt.Errorf("%s at level %d: %w", name, level, ErrNotCompiled)
	}
	return st.artifact, nil
}

// DeoptimizeMethod discards the method's compiled code and resets its
// invocation counter and profile. Outstanding artifacts become invalid.
func (wb *WhiteBox) DeoptimizeMethod(ctx context.Context, name string) error {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return err
	}
	wb.r.deoptimize(ctx, st, "whitebox")
	return nil
}

// DrainCompileQueue blocks until the compile broker is idle. It returns
// immediately when compilation is synchronous.
func (wb *WhiteBox) DrainCompileQueue(ctx context.Context) error {
	return wb.r.drain(ctx)
}

// CompileCount returns the number of compilations installed for the
// method since it was loaded.
func (wb *WhiteBox) CompileCount(name string) (int, error) {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return 0, err
	}
	return st.compiles, nil
}

// InvocationCount returns the method's invocation counter.
func (wb *WhiteBox) InvocationCount(name string) (int, error) {
	wb.r.mu.Lock()
	defer wb.r.mu.Unlock()

	st, err := wb.r.lookup(name)
	if err != nil {
		return 0, err
	}
	return st.counter, nil
}
