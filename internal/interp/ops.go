package interp

import (
	"math"

	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/simd"
)

// Binary applies op to two operands of the same kind (for shifts, y is the
// int32 count).
func Binary(op ir.BinaryOp, x, y Value) (Value, error) {
	switch x.T.Kind {
	case ir.KindInt:
		r, err := intOp(op, x.Int32(), y.Int32())
		return Int(r), err
	case ir.KindLong:
		if op.IsShift() {
			r, err := intOp(op, x.Int64(), int64(y.Int32()))
			return Long(r), err
		}
		r, err := intOp(op, x.Int64(), y.Int64())
		return Long(r), err
	case ir.KindFloat:
		r, err := floatOp(op, x.Float32(), y.Float32())
		return Float(r), err
	case ir.KindDouble:
		r, err := floatOp(op, x.Float64(), y.Float64())
		return Double(r), err
	default:
		return Value{}, newError(ErrCodeUnsupported, "operator %s on %s", op, x.T)
	}
}

func intOp[T simd.Integers](op ir.BinaryOp, x, y T) (T, error) {
	switch op {
	case ir.OpAdd:
		return x + y, nil
	case ir.OpSub:
		return x - y, nil
	case ir.OpMul:
		return x * y, nil
	case ir.OpDiv:
		if y == 0 {
			return 0, newError(ErrCodeArithmetic, "/ by zero")
		}
		// The most negative value divided by -1 wraps to itself.
		return x / y, nil
	case ir.OpRem:
		if y == 0 {
			return 0, newError(ErrCodeArithmetic, "/ by zero")
		}
		return x % y, nil
	case ir.OpAnd:
		return x & y, nil
	case ir.OpOr:
		return x | y, nil
	case ir.OpXor:
		return x ^ y, nil
	case ir.OpShl:
		return x << simd.ShiftCount[T](int(y)), nil
	case ir.OpShr:
		return x >> simd.ShiftCount[T](int(y)), nil
	case ir.OpUshr:
		return simd.ShiftRightLogicalLane(x, simd.ShiftCount[T](int(y))), nil
	default:
		return 0, newError(ErrCodeUnsupported, "operator %s", op)
	}
}

func floatOp[T simd.Floats](op ir.BinaryOp, x, y T) (T, error) {
	switch op {
	case ir.OpAdd:
		return x + y, nil
	case ir.OpSub:
		return x - y, nil
	case ir.OpMul:
		return x * y, nil
	case ir.OpDiv:
		return x / y, nil
	case ir.OpRem:
		return T(math.Mod(float64(x), float64(y))), nil
	default:
		return 0, newError(ErrCodeUnsupported, "operator %s on floating point", op)
	}
}

// Unary applies op to x.
func Unary(op ir.UnaryOp, x Value) Value {
	switch x.T.Kind {
	case ir.KindInt:
		return Int(unaryLane(op, x.Int32()))
	case ir.KindLong:
		return Long(unaryLane(op, x.Int64()))
	case ir.KindFloat:
		if op == ir.OpAbs {
			return Float(simd.AbsLane(x.Float32()))
		}
		return Float(-x.Float32())
	case ir.KindDouble:
		if op == ir.OpAbs {
			return Double(simd.AbsLane(x.Float64()))
		}
		return Double(-x.Float64())
	}
	return x
}

func unaryLane[T simd.Integers](op ir.UnaryOp, x T) T {
	switch op {
	case ir.OpNot:
		return ^x
	case ir.OpAbs:
		return simd.AbsLane(x)
	case ir.OpPopCount:
		return simd.PopCountLane(x)
	default:
		return -x
	}
}

// MinMax returns min(x, y) or max(x, y).
func MinMax(isMax bool, x, y Value) Value {
	switch x.T.Kind {
	case ir.KindInt:
		return Int(pick(isMax, x.Int32(), y.Int32()))
	case ir.KindLong:
		return Long(pick(isMax, x.Int64(), y.Int64()))
	case ir.KindFloat:
		return Float(pick(isMax, x.Float32(), y.Float32()))
	case ir.KindDouble:
		return Double(pick(isMax, x.Float64(), y.Float64()))
	}
	return x
}

func pick[T simd.Lanes](isMax bool, x, y T) T {
	if isMax {
		return simd.MaxLane(x, y)
	}
	return simd.MinLane(x, y)
}

// Convert converts a numeric value to kind k. Float-to-integer conversion
// truncates toward zero, saturates at the integer range and maps NaN to 0.
func Convert(x Value, k ir.Kind) Value {
	switch k {
	case ir.KindInt:
		switch x.T.Kind {
		case ir.KindInt, ir.KindLong:
			return Int(int32(x.Int64()))
		default:
			return Int(int32(floatToInt(x.Float64(), math.MinInt32, math.MaxInt32)))
		}
	case ir.KindLong:
		switch x.T.Kind {
		case ir.KindInt, ir.KindLong:
			return Long(x.Int64())
		default:
			return Long(floatToInt(x.Float64(), math.MinInt64, math.MaxInt64))
		}
	case ir.KindFloat:
		switch x.T.Kind {
		case ir.KindInt, ir.KindLong:
			return Float(float32(x.Int64()))
		default:
			return Float(float32(x.Float64()))
		}
	case ir.KindDouble:
		switch x.T.Kind {
		case ir.KindInt, ir.KindLong:
			return Double(float64(x.Int64()))
		default:
			return Double(x.Float64())
		}
	}
	return x
}

func floatToInt(f float64, lo, hi int64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	default:
		return int64(f)
	}
}
