// Package compiler is the optimizing tier of the runtime. It lowers kernel
// methods to instruction graphs, runs the SuperWord loop vectorizer at the
// optimized level and produces executable code.
//
// Compiled code shares the interpreter's statement semantics; vectorized
// loops replace the interpreted loop through interp loop hooks.
package compiler

import (
	"fmt"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
)

// Options configures code generation.
type Options struct {
	// Width is the vector register width in bytes. Zero disables
	// vectorization.
	Width int

	// UseSuperWord enables the loop vectorizer at LevelOptimized.
	UseSuperWord bool

	// StrictFloatReductions keeps float and double add/mul reductions in
	// source order. When false they accumulate per lane and are combined
	// after the loop.
	StrictFloatReductions bool
}

// LoopReport records the vectorizer's decision for one loop.
type LoopReport struct {
	Loop       int
	Vectorized bool
	Elem       ir.Kind
	Lanes      int
	Reason     string
}

// String formats the report for logs.
func (r LoopReport) String() string {
	if r.Vectorized {
		return fmt.Sprintf("loop %d: vectorized %s x%d", r.Loop, r.Elem, r.Lanes)
	}
	return fmt.Sprintf("loop %d: scalar (%s)", r.Loop, r.Reason)
}

// Code is a compiled method.
type Code struct {
	Name   string
	Method *ir.Method
	Level  int
	Graph  *Graph
	Loops  []LoopReport

	hooks map[int]interp.LoopHook
}

// Compile compiles m at level. prof supplies trip counts for the vectorizer
// and may be nil.
func Compile(name string, m *ir.Method, level int, prof *interp.Profile, opts Options) (*Code, error) {
	if level != LevelProfiled && level != LevelOptimized {
		return nil, fmt.Errorf("compile %s: unsupported level %d", name, level)
	}
	for _, l := range m.Locals {
		if l.T.Dims > 1 {
			return nil, fmt.Errorf("compile %s: unsupported local type %s", name, l.T)
		}
	}

	code := &Code{Name: name, Method: m, Level: level, hooks: make(map[int]interp.LoopHook)}
	plans := make(map[int]*loopPlan)

	vectorize := level == LevelOptimized && opts.UseSuperWord && opts.Width > 0
	for _, loop := range innermostLoops(m.Body) {
		report := LoopReport{Loop: loop.ID}
		switch {
		case !vectorize && level == LevelProfiled:
			report.Reason = "profiled tier does not vectorize"
		case !vectorize && !opts.UseSuperWord:
			report.Reason = "superword disabled"
		case !vectorize:
			report.Reason = "no vector unit"
		default:
			plan, reason := analyzeLoop(loop, prof, opts)
			if plan == nil {
				report.Reason = reason
				break
			}
			plans[loop.ID] = plan
			code.hooks[loop.ID] = plan.hook()
			report.Vectorized = true
			report.Elem = plan.elem
			report.Lanes = plan.lanes
		}
		code.Loops = append(code.Loops, report)
	}

	code.Graph = lower(name, level, m, plans)
	return code, nil
}

// Invoke runs the compiled code. prof receives profiling data at
// LevelProfiled and is ignored at LevelOptimized.
func (c *Code) Invoke(inst *interp.Instance, args []interp.Value, prof *interp.Profile) (interp.Value, error) {
	opts := interp.Options{Name: c.Name, Loops: c.hooks}
	if c.Level == LevelProfiled {
		opts.Profile = prof
	}
	return interp.Invoke(c.Method, inst, args, opts)
}

// Vectorized reports whether any loop was vectorized.
func (c *Code) Vectorized() bool {
	return len(c.hooks) > 0
}

// innermostLoops returns the loops without nested loops, in source order.
func innermostLoops(stmts []ir.Stmt) []*ir.For {
	var out []*ir.For
	for _, s := range stmts {
		f, ok := s.(*ir.For)
		if !ok {
			continue
		}
		inner := innermostLoops(f.Body)
		if len(inner) == 0 {
			out = append(out, f)
		} else {
			out = append(out, inner...)
		}
	}
	return out
}
