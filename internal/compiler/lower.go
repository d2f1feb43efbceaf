package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/vecverify/internal/ir"
)

// lowerer emits the instruction graph of a method. Locals are tracked as
// SSA definitions; loops get a Phi for their variable and for every local
// assigned in the body.
type lowerer struct {
	b      builder
	m      *ir.Method
	defs   map[int]int
	fields map[int]int
	plans  map[int]*loopPlan
}

func lower(name string, level int, m *ir.Method, plans map[int]*loopPlan) *Graph {
	l := &lowerer{
		b:      builder{g: &Graph{Method: name, Level: level}, loop: -1},
		m:      m,
		defs:   make(map[int]int),
		fields: make(map[int]int),
		plans:  plans,
	}
	for i, p := range m.Params {
		l.defs[i] = l.b.add(KindControl, "Parm", p.T.Kind, 0, p.Name)
	}
	l.stmts(m.Body)
	return l.b.g
}

func (l *lowerer) stmts(stmts []ir.Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ir.Assign:
			l.defs[s.Dst.Slot] = l.expr(s.Value)
		case *ir.Store:
			arr := l.local(s.Array)
			idx := l.expr(s.Index)
			val := l.expr(s.Value)
			l.rangeCheck(arr, idx)
			l.b.add(KindMemory, "Store"+s.Array.T.Kind.Suffix(), s.Array.T.Kind, 0, "", arr, idx, val)
		case *ir.For:
			if p, ok := l.plans[s.ID]; ok {
				l.vectorLoop(s, p)
			} else {
				l.scalarLoop(s, "")
			}
		case *ir.Return:
			if s.Value == nil {
				l.b.add(KindControl, "Return", ir.KindVoid, 0, "")
			} else {
				l.b.add(KindControl, "Return", s.Value.Type().Kind, 0, "", l.expr(s.Value))
			}
		}
	}
}

// loopHead emits the loop node and its phis and returns the id of the
// induction-variable phi.
func (l *lowerer) loopHead(s *ir.For, label string, vlen int, start, end int) int {
	head := l.b.add(KindControl, "CountedLoop", ir.KindVoid, vlen, label, start, end)
	iv := l.b.add(KindControl, "Phi", ir.KindInt, 0, s.Var.Name, head, start)
	l.defs[s.Var.Slot] = iv

	assigned := assignedSlots(s.Body)
	slots := make([]int, 0, len(assigned))
	for slot := range assigned {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	for _, slot := range slots {
		if prev, ok := l.defs[slot]; ok && slot != s.Var.Slot {
			l.defs[slot] = l.b.add(KindControl, "Phi", l.m.Locals[slot].T.Kind, 0, l.m.Locals[slot].Name, head, prev)
		}
	}
	return iv
}

func (l *lowerer) scalarLoop(s *ir.For, label string) {
	start := l.expr(s.Start)
	end := l.expr(s.End)

	outer := l.b.loop
	l.b.loop = s.ID
	if label == "" {
		label = fmt.Sprintf("loop %d", s.ID)
	}
	head := l.loopHead(s, label, 0, start, end)
	l.stmts(s.Body)
	l.b.add(KindControl, "CountedLoopEnd", ir.KindVoid, 0, "", head)
	l.b.loop = outer
}

// vectorLoop emits the vector main loop and the scalar post-loop.
func (l *lowerer) vectorLoop(s *ir.For, p *loopPlan) {
	elem, vlen := p.elem, p.lanes
	start := l.expr(s.Start)
	end := l.expr(s.End)

	// Loop-invariant values are computed once and broadcast.
	arrays := make([]int, len(p.arrays))
	for k, e := range p.arrays {
		arrays[k] = l.expr(e)
		l.rangeCheck(arrays[k], end)
	}
	inv := make([]int, len(p.invariants))
	for k, e := range p.invariants {
		inv[k] = l.b.add(KindVector, "Replicate"+elem.Suffix(), elem, vlen, "", l.expr(e))
	}
	counts := make([]int, len(p.counts))
	for k, e := range p.counts {
		counts[k] = l.expr(e)
	}

	outer := l.b.loop
	l.b.loop = s.ID
	head := l.loopHead(s, fmt.Sprintf("loop %d vector main", s.ID), vlen, start, end)
	iv := l.defs[s.Var.Slot]

	type pending struct {
		op    string
		slot  int
		accum int
	}
	var after []pending
	for _, st := range p.steps {
		val := l.vexpr(st.value, p, arrays, inv, counts, iv)
		switch {
		case !st.reduce:
			l.b.add(KindVector, "StoreVector", elem, vlen, "", arrays[st.array], iv, val)
		case st.ordered:
			acc := l.defs[st.slot]
			l.defs[st.slot] = l.b.add(KindReduction, st.red.reductionOp(elem), elem, vlen, "ordered", acc, val)
		default:
			ident := l.b.add(KindVector, "Replicate"+elem.Suffix(), elem, vlen, "identity")
			phi := l.b.add(KindControl, "Phi", elem, vlen, l.m.Locals[st.slot].Name, head, ident)
			accum := l.b.add(KindVector, vectorOp(st.red.binaryName(), elem), elem, vlen, "", phi, val)
			after = append(after, pending{op: st.red.reductionOp(elem), slot: st.slot, accum: accum})
		}
	}
	l.b.add(KindControl, "CountedLoopEnd", ir.KindVoid, vlen, "", head)
	l.b.loop = outer

	for _, r := range after {
		l.defs[r.slot] = l.b.add(KindReduction, r.op, elem, vlen, "", l.defs[r.slot], r.accum)
	}

	l.scalarLoop(s, fmt.Sprintf("loop %d post", s.ID))
}

func (r redOp) binaryName() string {
	switch r {
	case redMin:
		return "Min"
	case redMax:
		return "Max"
	default:
		return r.binary().Name()
	}
}

// vectorOp names an element-wise vector opcode. Bitwise and min/max
// opcodes are untyped (AndV, MinV); arithmetic and shifts carry the
// element suffix (AddVI, LShiftVL).
func vectorOp(stem string, elem ir.Kind) string {
	switch stem {
	case "And", "Or", "Xor", "Min", "Max":
		return stem + "V"
	}
	return stem + "V" + elem.Suffix()
}

func (l *lowerer) vexpr(n *vnode, p *loopPlan, arrays, inv, counts []int, iv int) int {
	elem, vlen := p.elem, p.lanes
	switch n.op {
	case vLoad:
		return l.b.add(KindVector, "LoadVector", elem, vlen, "", arrays[n.ref], iv)
	case vInvariant:
		return inv[n.ref]
	case vNeg:
		return l.b.add(KindVector, vectorOp("Neg", elem), elem, vlen, "", l.vexpr(n.x, p, arrays, inv, counts, iv))
	case vAbs:
		return l.b.add(KindVector, vectorOp("Abs", elem), elem, vlen, "", l.vexpr(n.x, p, arrays, inv, counts, iv))
	case vPopCount:
		return l.b.add(KindVector, vectorOp("PopCount", elem), elem, vlen, "", l.vexpr(n.x, p, arrays, inv, counts, iv))
	case vNot:
		x := l.vexpr(n.x, p, arrays, inv, counts, iv)
		ones := l.b.add(KindVector, "Replicate"+elem.Suffix(), elem, vlen, "-1")
		return l.b.add(KindVector, "XorV", elem, vlen, "", x, ones)
	case vMinMax:
		x := l.vexpr(n.x, p, arrays, inv, counts, iv)
		y := l.vexpr(n.y, p, arrays, inv, counts, iv)
		stem := "Min"
		if n.isMax {
			stem = "Max"
		}
		return l.b.add(KindVector, vectorOp(stem, elem), elem, vlen, "", x, y)
	}

	x := l.vexpr(n.x, p, arrays, inv, counts, iv)
	if n.bin.IsShift() {
		cnt := l.b.add(KindVector, shiftCountOp(n.bin), ir.KindInt, vlen, "", counts[n.ref])
		return l.b.add(KindVector, vectorOp(n.bin.Name(), elem), elem, vlen, "", x, cnt)
	}
	y := l.vexpr(n.y, p, arrays, inv, counts, iv)
	return l.b.add(KindVector, vectorOp(n.bin.Name(), elem), elem, vlen, "", x, y)
}

func shiftCountOp(op ir.BinaryOp) string {
	if op == ir.OpShl {
		return "LShiftCntV"
	}
	return "RShiftCntV"
}

func (l *lowerer) local(r *ir.LocalRef) int {
	if id, ok := l.defs[r.Slot]; ok {
		return id
	}
	// A local read before assignment holds its zero value.
	id := l.b.add(KindScalar, "Con"+r.T.Kind.Suffix(), r.T.Kind, 0, "0")
	l.defs[r.Slot] = id
	return id
}

func (l *lowerer) rangeCheck(arr, idx int) {
	n := l.b.add(KindMemory, "LoadRange", ir.KindInt, 0, "", arr)
	l.b.add(KindControl, "RangeCheck", ir.KindVoid, 0, "", idx, n)
}

func (l *lowerer) expr(e ir.Expr) int {
	switch e := e.(type) {
	case *ir.Const:
		return l.b.add(KindScalar, "Con"+e.T.Kind.Suffix(), e.T.Kind, 0, ir.ExprString(e))
	case *ir.FieldRef:
		if id, ok := l.fields[e.Slot]; ok {
			return id
		}
		id := l.b.add(KindMemory, "LoadField", e.T.Kind, 0, e.Name)
		l.fields[e.Slot] = id
		return id
	case *ir.LocalRef:
		return l.local(e)
	case *ir.Index:
		arr := l.expr(e.Array)
		idx := l.expr(e.Index)
		l.rangeCheck(arr, idx)
		k := e.Type().Kind
		return l.b.add(KindMemory, "Load"+k.Suffix(), k, 0, "", arr, idx)
	case *ir.Len:
		return l.b.add(KindMemory, "LoadRange", ir.KindInt, 0, "", l.expr(e.Array))
	case *ir.Binary:
		x, y := l.expr(e.X), l.expr(e.Y)
		k := e.Type().Kind
		return l.b.add(KindScalar, e.Op.Name()+k.Suffix(), k, 0, "", x, y)
	case *ir.Unary:
		x := l.expr(e.X)
		k := e.Type().Kind
		switch e.Op {
		case ir.OpNot:
			ones := l.b.add(KindScalar, "Con"+k.Suffix(), k, 0, "-1")
			return l.b.add(KindScalar, "Xor"+k.Suffix(), k, 0, "", x, ones)
		case ir.OpAbs:
			return l.b.add(KindScalar, "Abs"+k.Suffix(), k, 0, "", x)
		case ir.OpPopCount:
			return l.b.add(KindScalar, "PopCount"+k.Suffix(), k, 0, "", x)
		}
		return l.b.add(KindScalar, "Neg"+k.Suffix(), k, 0, "", x)
	case *ir.MinMax:
		x, y := l.expr(e.X), l.expr(e.Y)
		k := e.Type().Kind
		op := "Min"
		if e.Max {
			op = "Max"
		}
		return l.b.add(KindScalar, op+k.Suffix(), k, 0, "", x, y)
	case *ir.Conv:
		from, to := e.X.Type().Kind, e.T.Kind
		return l.b.add(KindScalar, "Conv"+from.Suffix()+"2"+to.Suffix(), to, 0, "", l.expr(e.X))
	case *ir.MakeArray:
		return l.b.add(KindMemory, "AllocateArray", e.Elem, 0, "", l.expr(e.Len))
	default:
		return l.b.add(KindScalar, "Unknown", ir.KindVoid, 0, fmt.Sprintf("%T", e))
	}
}
