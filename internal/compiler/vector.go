package compiler

import (
	"math"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/simd"
)

// hook returns the loop hook executing p.
func (p *loopPlan) hook() interp.LoopHook {
	switch p.elem {
	case ir.KindInt:
		return vectorLoop[int32](p)
	case ir.KindLong:
		return vectorLoop[int64](p)
	case ir.KindFloat:
		return vectorLoop[float32](p)
	default:
		return vectorLoop[float64](p)
	}
}

type vstate[T simd.Lanes] struct {
	arrays [][]T
	inv    []simd.Vec[T]
	counts []int
}

type vfunc[T simd.Lanes] func(st *vstate[T], i int) simd.Vec[T]

// vectorLoop builds the executable form of p: range-check predication, a
// vector main loop of p.lanes elements per step and a scalar post-loop.
func vectorLoop[T simd.Lanes](p *loopPlan) interp.LoopHook {
	lanes := p.lanes
	values := make([]vfunc[T], len(p.steps))
	for i, s := range p.steps {
		values[i] = compileVec[T](s.value, lanes)
	}

	return func(env *interp.Env, loop *ir.For, start, end int32) error {
		if int(end)-int(start) < lanes {
			_, err := env.RunIterations(loop, start, end)
			return err
		}

		st := &vstate[T]{
			arrays: make([][]T, len(p.arrays)),
			inv:    make([]simd.Vec[T], len(p.invariants)),
			counts: make([]int, len(p.counts)),
		}
		for k, e := range p.arrays {
			v, err := env.Eval(e)
			if err != nil {
				return err
			}
			a := v.Array()
			if a == nil || start < 0 || int(end) > a.Len() {
				// Some iteration would fail a range check: run the whole
				// loop scalar so the exception is raised precisely.
				_, err := env.RunIterations(loop, start, end)
				return err
			}
			st.arrays[k] = interp.Slice[T](a)
		}
		for k, e := range p.invariants {
			v, err := env.Eval(e)
			if err != nil {
				return err
			}
			st.inv[k] = simd.Set(laneOf[T](v), lanes)
		}
		for k, e := range p.counts {
			v, err := env.Eval(e)
			if err != nil {
				return err
			}
			st.counts[k] = int(v.Int32())
		}

		partial := make([]simd.Vec[T], len(p.steps))
		ordered := make([]T, len(p.steps))
		for k, s := range p.steps {
			if !s.reduce {
				continue
			}
			if s.ordered {
				ordered[k] = laneOf[T](env.Local(s.slot))
			} else {
				partial[k] = simd.Set(identity[T](s.red), lanes)
			}
		}

		i := int(start)
		for ; i+lanes <= int(end); i += lanes {
			for k, s := range p.steps {
				v := values[k](st, i)
				switch {
				case !s.reduce:
					simd.Store(v, st.arrays[s.array][i:i+lanes])
				case s.ordered:
					ordered[k] = foldOrdered(s.red, ordered[k], v)
				default:
					partial[k] = combineVec(s.red, partial[k], v)
				}
			}
		}

		for k, s := range p.steps {
			if !s.reduce {
				continue
			}
			if s.ordered {
				env.SetLocal(s.slot, valueOf(ordered[k]))
				continue
			}
			acc, err := combineValues(s.red, env.Local(s.slot), valueOf(reduceVec(s.red, partial[k])))
			if err != nil {
				return err
			}
			env.SetLocal(s.slot, acc)
		}

		_, err := env.RunIterations(loop, int32(i), end)
		return err
	}
}

func compileVec[T simd.Lanes](n *vnode, lanes int) vfunc[T] {
	switch n.op {
	case vLoad:
		ref := n.ref
		return func(st *vstate[T], i int) simd.Vec[T] {
			return simd.Load(st.arrays[ref][i : i+lanes])
		}
	case vInvariant:
		ref := n.ref
		return func(st *vstate[T], _ int) simd.Vec[T] {
			return st.inv[ref]
		}
	case vNeg:
		x := compileVec[T](n.x, lanes)
		return func(st *vstate[T], i int) simd.Vec[T] {
			return simd.Neg(x(st, i))
		}
	case vNot:
		x := compileVec[T](n.x, lanes)
		return func(st *vstate[T], i int) simd.Vec[T] {
			return integerUnary(x(st, i), simd.Not[int32], simd.Not[int64])
		}
	case vAbs:
		x := compileVec[T](n.x, lanes)
		return func(st *vstate[T], i int) simd.Vec[T] {
			return simd.Abs(x(st, i))
		}
	case vPopCount:
		x := compileVec[T](n.x, lanes)
		return func(st *vstate[T], i int) simd.Vec[T] {
			return integerUnary(x(st, i), simd.PopCount[int32], simd.PopCount[int64])
		}
	case vMinMax:
		x := compileVec[T](n.x, lanes)
		y := compileVec[T](n.y, lanes)
		if n.isMax {
			return func(st *vstate[T], i int) simd.Vec[T] {
				return simd.Max(x(st, i), y(st, i))
			}
		}
		return func(st *vstate[T], i int) simd.Vec[T] {
			return simd.Min(x(st, i), y(st, i))
		}
	}

	x := compileVec[T](n.x, lanes)
	if n.bin.IsShift() {
		ref := n.ref
		var shift func(simd.Vec[T], int) simd.Vec[T]
		switch n.bin {
		case ir.OpShl:
			shift = func(v simd.Vec[T], c int) simd.Vec[T] {
				return integerShift(v, c, simd.ShiftLeft[int32], simd.ShiftLeft[int64])
			}
		case ir.OpShr:
			shift = func(v simd.Vec[T], c int) simd.Vec[T] {
				return integerShift(v, c, simd.ShiftRight[int32], simd.ShiftRight[int64])
			}
		default:
			shift = func(v simd.Vec[T], c int) simd.Vec[T] {
				return integerShift(v, c, simd.ShiftRightLogical[int32], simd.ShiftRightLogical[int64])
			}
		}
		return func(st *vstate[T], i int) simd.Vec[T] {
			return shift(x(st, i), st.counts[ref])
		}
	}

	y := compileVec[T](n.y, lanes)
	var op func(a, b simd.Vec[T]) simd.Vec[T]
	switch n.bin {
	case ir.OpAdd:
		op = simd.Add[T]
	case ir.OpSub:
		op = simd.Sub[T]
	case ir.OpMul:
		op = simd.Mul[T]
	case ir.OpDiv:
		op = func(a, b simd.Vec[T]) simd.Vec[T] { return floatBinary(a, b, simd.Div[float32], simd.Div[float64]) }
	case ir.OpAnd:
		op = func(a, b simd.Vec[T]) simd.Vec[T] { return integerBinary(a, b, simd.And[int32], simd.And[int64]) }
	case ir.OpOr:
		op = func(a, b simd.Vec[T]) simd.Vec[T] { return integerBinary(a, b, simd.Or[int32], simd.Or[int64]) }
	default:
		op = func(a, b simd.Vec[T]) simd.Vec[T] { return integerBinary(a, b, simd.Xor[int32], simd.Xor[int64]) }
	}
	return func(st *vstate[T], i int) simd.Vec[T] {
		return op(x(st, i), y(st, i))
	}
}

// Type-switch helpers route integer-only and float-only operations to the
// matching instantiation.

func integerBinary[T simd.Lanes](a, b simd.Vec[T], op32 func(x, y simd.Vec[int32]) simd.Vec[int32], op64 func(x, y simd.Vec[int64]) simd.Vec[int64]) simd.Vec[T] {
	switch av := any(a).(type) {
	case simd.Vec[int32]:
		return any(op32(av, any(b).(simd.Vec[int32]))).(simd.Vec[T])
	case simd.Vec[int64]:
		return any(op64(av, any(b).(simd.Vec[int64]))).(simd.Vec[T])
	}
	panic("compiler: integer vector operation on floating-point lanes")
}

func integerUnary[T simd.Lanes](a simd.Vec[T], op32 func(simd.Vec[int32]) simd.Vec[int32], op64 func(simd.Vec[int64]) simd.Vec[int64]) simd.Vec[T] {
	switch av := any(a).(type) {
	case simd.Vec[int32]:
		return any(op32(av)).(simd.Vec[T])
	case simd.Vec[int64]:
		return any(op64(av)).(simd.Vec[T])
	}
	panic("compiler: integer vector operation on floating-point lanes")
}

func integerShift[T simd.Lanes](a simd.Vec[T], n int, op32 func(simd.Vec[int32], int) simd.Vec[int32], op64 func(simd.Vec[int64], int) simd.Vec[int64]) simd.Vec[T] {
	switch av := any(a).(type) {
	case simd.Vec[int32]:
		return any(op32(av, n)).(simd.Vec[T])
	case simd.Vec[int64]:
		return any(op64(av, n)).(simd.Vec[T])
	}
	panic("compiler: shift of floating-point lanes")
}

func floatBinary[T simd.Lanes](a, b simd.Vec[T], op32 func(x, y simd.Vec[float32]) simd.Vec[float32], op64 func(x, y simd.Vec[float64]) simd.Vec[float64]) simd.Vec[T] {
	switch av := any(a).(type) {
	case simd.Vec[float32]:
		return any(op32(av, any(b).(simd.Vec[float32]))).(simd.Vec[T])
	case simd.Vec[float64]:
		return any(op64(av, any(b).(simd.Vec[float64]))).(simd.Vec[T])
	}
	panic("compiler: float vector operation on integer lanes")
}

func integerReduce[T simd.Lanes](v simd.Vec[T], op32 func(simd.Vec[int32]) int32, op64 func(simd.Vec[int64]) int64) T {
	switch vv := any(v).(type) {
	case simd.Vec[int32]:
		return any(op32(vv)).(T)
	case simd.Vec[int64]:
		return any(op64(vv)).(T)
	}
	panic("compiler: integer reduction of floating-point lanes")
}

// combineVec folds v into the per-lane partial results.
func combineVec[T simd.Lanes](op redOp, acc, v simd.Vec[T]) simd.Vec[T] {
	switch op {
	case redAdd:
		return simd.Add(acc, v)
	case redMul:
		return simd.Mul(acc, v)
	case redAnd:
		return integerBinary(acc, v, simd.And[int32], simd.And[int64])
	case redOr:
		return integerBinary(acc, v, simd.Or[int32], simd.Or[int64])
	case redXor:
		return integerBinary(acc, v, simd.Xor[int32], simd.Xor[int64])
	case redMin:
		return simd.Min(acc, v)
	default:
		return simd.Max(acc, v)
	}
}

// reduceVec folds the lanes of v.
func reduceVec[T simd.Lanes](op redOp, v simd.Vec[T]) T {
	switch op {
	case redAdd:
		return simd.ReduceSum(v)
	case redMul:
		return simd.ReduceMul(v)
	case redAnd:
		return integerReduce(v, simd.ReduceAnd[int32], simd.ReduceAnd[int64])
	case redOr:
		return integerReduce(v, simd.ReduceOr[int32], simd.ReduceOr[int64])
	case redXor:
		return integerReduce(v, simd.ReduceXor[int32], simd.ReduceXor[int64])
	case redMin:
		return simd.ReduceMin(v)
	default:
		return simd.ReduceMax(v)
	}
}

// foldOrdered adds or multiplies the lanes of v into acc in index order,
// matching the scalar evaluation order bit for bit.
func foldOrdered[T simd.Lanes](op redOp, acc T, v simd.Vec[T]) T {
	for l := range v.NumLanes() {
		if op == redMul {
			acc *= v.Lane(l)
		} else {
			acc += v.Lane(l)
		}
	}
	return acc
}

func combineValues(op redOp, acc, x interp.Value) (interp.Value, error) {
	switch op {
	case redMin:
		return interp.MinMax(false, acc, x), nil
	case redMax:
		return interp.MinMax(true, acc, x), nil
	default:
		return interp.Binary(op.binary(), acc, x)
	}
}

func laneOf[T simd.Lanes](v interp.Value) T {
	var zero T
	switch any(zero).(type) {
	case int32:
		return any(v.Int32()).(T)
	case int64:
		return any(v.Int64()).(T)
	case float32:
		return any(v.Float32()).(T)
	default:
		return any(v.Float64()).(T)
	}
}

func valueOf[T simd.Lanes](x T) interp.Value {
	switch v := any(x).(type) {
	case int32:
		return interp.Int(v)
	case int64:
		return interp.Long(v)
	case float32:
		return interp.Float(v)
	default:
		return interp.Double(any(x).(float64))
	}
}

func maxLane[T simd.Lanes]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		return any(int32(math.MaxInt32)).(T)
	case int64:
		return any(int64(math.MaxInt64)).(T)
	case float32:
		return any(float32(math.Inf(1))).(T)
	default:
		return any(math.Inf(1)).(T)
	}
}

func minLane[T simd.Lanes]() T {
	var zero T
	switch any(zero).(type) {
	case int32:
		return any(int32(math.MinInt32)).(T)
	case int64:
		return any(int64(math.MinInt64)).(T)
	case float32:
		return any(float32(math.Inf(-1))).(T)
	default:
		return any(math.Inf(-1)).(T)
	}
}
