package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/vecverify/internal/ir"
)

// Compilation levels.
const (
	// LevelInterpreted is tier 0: no compiled code.
	LevelInterpreted = 0
	// LevelProfiled is tier 3: scalar compiled code that keeps profiling.
	LevelProfiled = 3
	// LevelOptimized is tier 4: optimized code, eligible for vectorization.
	LevelOptimized = 4
)

// NodeKind categorizes graph nodes.
type NodeKind int

const (
	// KindScalar is scalar arithmetic, constants and conversions.
	KindScalar NodeKind = iota
	// KindMemory is a scalar load, store, field load or allocation.
	KindMemory
	// KindControl is a loop, phi or return.
	KindControl
	// KindVector is an element-wise vector operation, load, store or
	// broadcast.
	KindVector
	// KindReduction folds a vector into a scalar.
	KindReduction
)

// String returns a human-readable name for the NodeKind.
func (k NodeKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMemory:
		return "memory"
	case KindControl:
		return "control"
	case KindVector:
		return "vector"
	case KindReduction:
		return "reduction"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is one instruction of a compiled method.
type Node struct {
	// ID is the node's index in Graph.Nodes.
	ID int

	Kind NodeKind

	// Op is the opcode name, e.g. "AddI", "LoadVector", "AddReductionVI".
	Op string

	// Elem is the element kind the node operates on (KindVoid if none).
	Elem ir.Kind

	// VLen is the number of vector lanes; zero for scalar nodes.
	VLen int

	Inputs []int

	// Loop is the ID of the source loop the node belongs to, or -1.
	Loop int

	// Label carries a constant value or a field or local name.
	Label string
}

// Graph is the instruction graph of one compiled method: the artifact the
// IR Inspector examines. A Graph is immutable once compiled.
type Graph struct {
	Method string
	Level  int
	Nodes  []*Node
}

// Count returns the number of nodes with opcode op.
func (g *Graph) Count(op string) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Op == op {
			n++
		}
	}
	return n
}

// CountVLen returns the number of nodes with opcode op and vlen lanes.
func (g *Graph) CountVLen(op string, vlen int) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Op == op && node.VLen == vlen {
			n++
		}
	}
	return n
}

// Ops returns the distinct opcodes of the graph in sorted order.
func (g *Graph) Ops() []string {
	seen := make(map[string]bool)
	var ops []string
	for _, node := range g.Nodes {
		if !seen[node.Op] {
			seen[node.Op] = true
			ops = append(ops, node.Op)
		}
	}
	slices.Sort(ops)
	return ops
}

// VectorNodes returns the vector and reduction nodes.
func (g *Graph) VectorNodes() []*Node {
	var out []*Node
	for _, node := range g.Nodes {
		if node.Kind == KindVector || node.Kind == KindReduction {
			out = append(out, node)
		}
	}
	return out
}

// String renders the graph one node per line:
//
//	  12 AddVI            int32   vlen=8  loop=0  (10, 11)
func (g *Graph) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s level=%d nodes=%d\n", g.Method, g.Level, len(g.Nodes))
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "%4d %-18s", n.ID, n.Op)
		if n.Elem != ir.KindVoid {
			fmt.Fprintf(&b, " %-7s", n.Elem)
		} else {
			b.WriteString("        ")
		}
		if n.VLen > 0 {
			fmt.Fprintf(&b, " vlen=%-2d", n.VLen)
		} else {
			b.WriteString("        ")
		}
		if n.Loop >= 0 {
			fmt.Fprintf(&b, " loop=%d", n.Loop)
		}
		if len(n.Inputs) > 0 {
			in := make([]string, len(n.Inputs))
			for i, id := range n.Inputs {
				in[i] = fmt.Sprint(id)
			}
			fmt.Fprintf(&b, " (%s)", strings.Join(in, ", "))
		}
		if n.Label != "" {
			fmt.Fprintf(&b, " %s", n.Label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fingerprint is a content hash of the graph.
func (g *Graph) Fingerprint() string {
	return ir.HashWithDomain(ir.DomainGraph, []byte(g.String()))
}

// builder appends nodes to a graph.
type builder struct {
	g    *Graph
	loop int
}

func (b *builder) add(kind NodeKind, op string, elem ir.Kind, vlen int, label string, inputs ...int) int {
	n := &Node{
		ID:     len(b.g.Nodes),
		Kind:   kind,
		Op:     op,
		Elem:   elem,
		VLen:   vlen,
		Inputs: inputs,
		Loop:   b.loop,
		Label:  label,
	}
	b.g.Nodes = append(b.g.Nodes, n)
	return n.ID
}
