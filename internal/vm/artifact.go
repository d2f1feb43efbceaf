package vm

import (
	"sync/atomic"

	"github.com/roach88/vecverify/internal/compiler"
)

// Artifact is a read-only handle to one compiled method in the code cache.
// It stays readable until the method is recompiled or deoptimized.
type Artifact struct {
	method    string
	level     int
	compileID int64
	graph     *compiler.Graph
	loops     []compiler.LoopReport
	valid     atomic.Bool
}

func newArtifact(method string, code *compiler.Code, compileID int64) *Artifact {
	a := &Artifact{
		method:    method,
		level:     code.Level,
		compileID: compileID,
		graph:     code.Graph,
		loops:     code.Loops,
	}
	a.valid.Store(true)
	return a
}

// Method returns the qualified method name.
func (a *Artifact) Method() string { return a.method }

// Level returns the compilation level.
func (a *Artifact) Level() int { return a.level }

// CompileID identifies the compilation; it changes on every recompile.
func (a *Artifact) CompileID() int64 { return a.compileID }

// Valid reports whether the artifact is still the method's active code.
func (a *Artifact) Valid() bool { return a.valid.Load() }

// Graph returns the instruction graph.
func (a *Artifact) Graph() (*compiler.Graph, error) {
	if !a.Valid() {
		return nil, ErrArtifactInvalidated
	}
	return a.graph, nil
}

// Loops returns the vectorizer's per-loop decisions.
func (a *Artifact) Loops() ([]compiler.LoopReport, error) {
	if !a.Valid() {
		return nil, ErrArtifactInvalidated
	}
	return a.loops, nil
}

func (a *Artifact) invalidate() {
	a.valid.Store(false)
}
