package store

import (
	"fmt"

	"github.com/roach88/vecverify/internal/ir"
)

// Compilation is one compiled method installed in the code cache.
type Compilation struct {
	RunID  string
	Seq    int64
	Method string
	Level  int

	Vectorized bool
	NodeCount  int
	GraphHash  string
	Loops      []LoopRecord

	RuntimeVersion string
}

// ID returns the content-addressed row id.
func (c Compilation) ID() string {
	return recordID(ir.DomainCompilation, c.RunID, c.Seq)
}

// LoopRecord is the vectorizer's decision for one loop.
type LoopRecord struct {
	Loop       int    `json:"loop"`
	Vectorized bool   `json:"vectorized"`
	Elem       string `json:"elem,omitempty"`
	Lanes      int    `json:"lanes,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Deoptimization is one compiled method discarded from the code cache.
type Deoptimization struct {
	RunID  string
	Seq    int64
	Method string
	Level  int
	Reason string
}

// ID returns the content-addressed row id.
func (d Deoptimization) ID() string {
	return recordID(ir.DomainDeoptimization, d.RunID, d.Seq)
}

// RunLog is the full compile log of one run in seq order.
type RunLog struct {
	RunID           string
	Compilations    []Compilation
	Deoptimizations []Deoptimization
}

func recordID(domain, runID string, seq int64) string {
	return ir.HashWithDomain(domain, fmt.Appendf(nil, "%s\x00%d", runID, seq))
}
