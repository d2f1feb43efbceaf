package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/simd"
)

// The SuperWord pass turns a counted loop into a vector main loop followed
// by a scalar post-loop. A loop qualifies when its body consists only of
//
//	X[i] = e                          X a local array, i the loop variable
//	acc op= e                         op one of + * & | ^
//	acc = min(acc, e), max(acc, e)
//
// and every e is built from same-index loads Y[i], loop invariants and
// element-wise operators of a single element kind. Loop invariants (any
// subexpression that reads neither i nor a variable assigned in the loop)
// are evaluated once and broadcast. Reading a stored array at any index
// other than i is never invariant. Local arrays only come from make, so
// a store target cannot alias another local or a field.

type redOp int

const (
	redAdd redOp = iota
	redMul
	redAnd
	redOr
	redXor
	redMin
	redMax
)

func (r redOp) binary() ir.BinaryOp {
	switch r {
	case redMul:
		return ir.OpMul
	case redAnd:
		return ir.OpAnd
	case redOr:
		return ir.OpOr
	case redXor:
		return ir.OpXor
	default:
		return ir.OpAdd
	}
}

// reductionOp is the graph opcode of the reduction, e.g. AddReductionVI,
// AndReductionV, MinReductionV.
func (r redOp) reductionOp(elem ir.Kind) string {
	switch r {
	case redAdd:
		return "AddReductionV" + elem.Suffix()
	case redMul:
		return "MulReductionV" + elem.Suffix()
	case redAnd:
		return "AndReductionV"
	case redOr:
		return "OrReductionV"
	case redXor:
		return "XorReductionV"
	case redMin:
		return "MinReductionV"
	default:
		return "MaxReductionV"
	}
}

type vop int

const (
	vLoad vop = iota
	vInvariant
	vBinary
	vNeg
	vNot
	vAbs
	vPopCount
	vMinMax
)

// vnode is a vector expression.
type vnode struct {
	op    vop
	bin   ir.BinaryOp
	isMax bool
	// index into loopPlan.arrays, .invariants or .counts
	ref  int
	x, y *vnode
}

// vstep is one statement of the vector loop body: a store when reduce is
// false, otherwise a reduction into slot.
type vstep struct {
	reduce  bool
	array   int
	slot    int
	red     redOp
	ordered bool
	value   *vnode
}

// loopPlan is a vectorized loop.
type loopPlan struct {
	loop  *ir.For
	elem  ir.Kind
	lanes int

	arrays     []ir.Expr
	invariants []ir.Expr
	counts     []ir.Expr
	steps      []vstep
}

// analyzer decides whether one loop can be vectorized.
type analyzer struct {
	loop     *ir.For
	assigned map[int]bool
	elem     ir.Kind
	plan     *loopPlan
	arrayIDs map[string]int
	reduced  map[int]bool
	// stored holds the slots of the arrays the loop stores into.
	stored map[int]bool
}

type rejection struct {
	reason string
}

func reject(format string, args ...any) *rejection {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

// analyzeLoop returns a plan for loop, or the reason it stays scalar.
func analyzeLoop(loop *ir.For, prof *interp.Profile, opts Options) (*loopPlan, string) {
	a := &analyzer{
		loop:     loop,
		assigned: assignedSlots(loop.Body),
		plan:     &loopPlan{loop: loop},
		arrayIDs: make(map[string]int),
		reduced:  make(map[int]bool),
		stored:   storedSlots(loop.Body),
	}
	if r := a.body(); r != nil {
		return nil, r.reason
	}
	if len(a.plan.steps) == 0 {
		return nil, "empty loop body"
	}

	lanes := opts.Width / a.elem.Size()
	if lanes < 2 {
		return nil, fmt.Sprintf("vector width %d bytes holds fewer than 2 %s lanes", opts.Width, a.elem)
	}
	if prof != nil {
		trips, ok := prof.MaxTrip(loop.ID)
		if !ok {
			return nil, "loop not reached while profiling"
		}
		if trips < int64(lanes) {
			return nil, fmt.Sprintf("profiled trip count %d is below %d lanes", trips, lanes)
		}
	}
	a.plan.elem = a.elem
	a.plan.lanes = lanes
	for i := range a.plan.steps {
		s := &a.plan.steps[i]
		s.ordered = s.reduce && opts.StrictFloatReductions && a.elem.IsFloat() && (s.red == redAdd || s.red == redMul)
	}
	return a.plan, ""
}

func (a *analyzer) setElem(k ir.Kind) *rejection {
	if !k.IsNumeric() {
		return reject("%s elements are not vectorized", k)
	}
	if a.elem == ir.KindVoid {
		a.elem = k
		return nil
	}
	if a.elem != k {
		return reject("mixed element kinds %s and %s", a.elem, k)
	}
	return nil
}

func (a *analyzer) body() *rejection {
	for _, s := range a.loop.Body {
		switch s := s.(type) {
		case *ir.Store:
			if a.assigned[s.Array.Slot] {
				return reject("store target %s is reassigned in the loop", s.Array.Name)
			}
			if !a.isLoopVar(s.Index) {
				return reject("store to %s[%s] is not at the loop index", s.Array.Name, ir.ExprString(s.Index))
			}
			if r := a.setElem(s.Array.T.Kind); r != nil {
				return r
			}
			v, r := a.vexpr(s.Value)
			if r != nil {
				return r
			}
			a.plan.steps = append(a.plan.steps, vstep{array: a.arrayRef(s.Array), value: v})

		case *ir.Assign:
			step, r := a.reduction(s)
			if r != nil {
				return r
			}
			a.plan.steps = append(a.plan.steps, *step)

		case *ir.For:
			return reject("nested loop %d", s.ID)
		case *ir.Return:
			return reject("return inside the loop")
		default:
			return reject("unsupported statement %T", s)
		}
	}
	return nil
}

func (a *analyzer) reduction(s *ir.Assign) (*vstep, *rejection) {
	acc := s.Dst
	if acc.Slot == a.loop.Var.Slot {
		return nil, reject("loop variable assigned")
	}
	if acc.T.IsArray() {
		return nil, reject("array local %s assigned in the loop", acc.Name)
	}
	if a.reduced[acc.Slot] {
		return nil, reject("%s is reduced more than once", acc.Name)
	}

	var op redOp
	var operand ir.Expr
	switch v := s.Value.(type) {
	case *ir.Binary:
		switch v.Op {
		case ir.OpAdd:
			op = redAdd
		case ir.OpMul:
			op = redMul
		case ir.OpAnd:
			op = redAnd
		case ir.OpOr:
			op = redOr
		case ir.OpXor:
			op = redXor
		default:
			return nil, reject("%s is not a reduction operator", v.Op)
		}
		switch {
		case isSlot(v.X, acc.Slot):
			operand = v.Y
		case isSlot(v.Y, acc.Slot):
			operand = v.X
		}
	case *ir.MinMax:
		op = redMin
		if v.Max {
			op = redMax
		}
		switch {
		case isSlot(v.X, acc.Slot):
			operand = v.Y
		case isSlot(v.Y, acc.Slot):
			operand = v.X
		}
	}
	if operand == nil {
		return nil, reject("scalar assignment to %s is not a reduction", acc.Name)
	}
	if r := a.setElem(acc.T.Kind); r != nil {
		return nil, r
	}
	val, r := a.vexpr(operand)
	if r != nil {
		return nil, r
	}
	a.reduced[acc.Slot] = true
	return &vstep{reduce: true, slot: acc.Slot, red: op, value: val}, nil
}

// vexpr converts a loop-variant expression into a vector expression.
func (a *analyzer) vexpr(e ir.Expr) (*vnode, *rejection) {
	if a.invariant(e) {
		if e.Type().Kind != a.elem || e.Type().IsArray() {
			return nil, reject("invariant %s has kind %s", ir.ExprString(e), e.Type())
		}
		a.plan.invariants = append(a.plan.invariants, e)
		return &vnode{op: vInvariant, ref: len(a.plan.invariants) - 1}, nil
	}

	switch e := e.(type) {
	case *ir.LocalRef:
		if e.Slot == a.loop.Var.Slot {
			return nil, reject("loop index used as a value")
		}
		return nil, reject("%s is assigned in the loop and read as a value", e.Name)

	case *ir.Index:
		if !a.isLoopVar(e.Index) {
			if a.isStored(e.Array) {
				return nil, reject("load %s from stored array", ir.ExprString(e))
			}
			return nil, reject("access %s is not at the loop index", ir.ExprString(e))
		}
		if !a.invariant(e.Array) {
			return nil, reject("array %s changes in the loop", ir.ExprString(e.Array))
		}
		if e.Type().Kind != a.elem {
			return nil, reject("mixed element kinds %s and %s", a.elem, e.Type().Kind)
		}
		return &vnode{op: vLoad, ref: a.arrayRef(e.Array)}, nil

	case *ir.Binary:
		if e.Type().Kind != a.elem {
			return nil, reject("mixed element kinds %s and %s", a.elem, e.Type().Kind)
		}
		switch e.Op {
		case ir.OpDiv:
			if a.elem.IsInteger() {
				return nil, reject("integer division is not vectorized")
			}
		case ir.OpRem:
			return nil, reject("remainder is not vectorized")
		}
		x, r := a.vexpr(e.X)
		if r != nil {
			return nil, r
		}
		if e.Op.IsShift() {
			if !a.invariant(e.Y) {
				return nil, reject("shift count %s is not loop invariant", ir.ExprString(e.Y))
			}
			a.plan.counts = append(a.plan.counts, e.Y)
			return &vnode{op: vBinary, bin: e.Op, x: x, ref: len(a.plan.counts) - 1}, nil
		}
		y, r := a.vexpr(e.Y)
		if r != nil {
			return nil, r
		}
		return &vnode{op: vBinary, bin: e.Op, x: x, y: y}, nil

	case *ir.Unary:
		x, r := a.vexpr(e.X)
		if r != nil {
			return nil, r
		}
		switch e.Op {
		case ir.OpNot:
			return &vnode{op: vNot, x: x}, nil
		case ir.OpAbs:
			return &vnode{op: vAbs, x: x}, nil
		case ir.OpPopCount:
			return &vnode{op: vPopCount, x: x}, nil
		}
		return &vnode{op: vNeg, x: x}, nil

	case *ir.MinMax:
		x, r := a.vexpr(e.X)
		if r != nil {
			return nil, r
		}
		y, r := a.vexpr(e.Y)
		if r != nil {
			return nil, r
		}
		return &vnode{op: vMinMax, isMax: e.Max, x: x, y: y}, nil

	case *ir.Conv:
		return nil, reject("conversion %s is not vectorized", ir.ExprString(e))

	default:
		return nil, reject("unsupported expression %s", ir.ExprString(e))
	}
}

// invariant reports whether e reads neither the loop variable nor any
// local assigned in the loop.
func (a *analyzer) invariant(e ir.Expr) bool {
	switch e := e.(type) {
	case *ir.Const, *ir.FieldRef:
		return true
	case *ir.LocalRef:
		return e.Slot != a.loop.Var.Slot && !a.assigned[e.Slot]
	case *ir.Index:
		return a.invariant(e.Array) && a.invariant(e.Index) && !a.isStored(e.Array)
	case *ir.Len:
		return a.invariant(e.Array)
	case *ir.Binary:
		return a.invariant(e.X) && a.invariant(e.Y)
	case *ir.Unary:
		return a.invariant(e.X)
	case *ir.MinMax:
		return a.invariant(e.X) && a.invariant(e.Y)
	case *ir.Conv:
		return a.invariant(e.X)
	default:
		// MakeArray allocates per iteration.
		return false
	}
}

// isStored reports whether the array e may be written by the loop.
func (a *analyzer) isStored(e ir.Expr) bool {
	switch e := e.(type) {
	case *ir.LocalRef:
		return a.stored[e.Slot]
	case *ir.FieldRef:
		return false
	default:
		return len(a.stored) > 0
	}
}

func (a *analyzer) isLoopVar(e ir.Expr) bool {
	return isSlot(e, a.loop.Var.Slot)
}

func isSlot(e ir.Expr, slot int) bool {
	l, ok := e.(*ir.LocalRef)
	return ok && l.Slot == slot
}

// arrayRef returns the plan index of an invariant array expression.
func (a *analyzer) arrayRef(e ir.Expr) int {
	key := ir.ExprString(e)
	if id, ok := a.arrayIDs[key]; ok {
		return id
	}
	a.plan.arrays = append(a.plan.arrays, e)
	id := len(a.plan.arrays) - 1
	a.arrayIDs[key] = id
	return id
}

// assignedSlots returns the locals assigned anywhere in stmts, including
// nested loop variables.
func assignedSlots(stmts []ir.Stmt) map[int]bool {
	out := make(map[int]bool)
	var walk func([]ir.Stmt)
	walk = func(list []ir.Stmt) {
		for _, s := range list {
			switch s := s.(type) {
			case *ir.Assign:
				out[s.Dst.Slot] = true
			case *ir.For:
				out[s.Var.Slot] = true
				walk(s.Body)
			}
		}
	}
	walk(stmts)
	return out
}

// storedSlots returns the array locals stored into anywhere in stmts.
func storedSlots(stmts []ir.Stmt) map[int]bool {
	out := make(map[int]bool)
	var walk func([]ir.Stmt)
	walk = func(list []ir.Stmt) {
		for _, s := range list {
			switch s := s.(type) {
			case *ir.Store:
				out[s.Array.Slot] = true
			case *ir.For:
				walk(s.Body)
			}
		}
	}
	walk(stmts)
	return out
}

// identity returns the neutral element of a reduction.
func identity[T simd.Lanes](op redOp) T {
	var zero T
	switch op {
	case redMul:
		return T(1)
	case redAnd:
		return laneOf[T](interp.Long(-1))
	case redMin:
		return maxLane[T]()
	case redMax:
		return minLane[T]()
	case redAdd:
		// -0.0 + x == x for every x, including +0.0.
		switch any(zero).(type) {
		case float32, float64:
			return laneOf[T](interp.Double(negZero))
		}
	}
	return zero
}

var negZero = math.Copysign(0, -1)
