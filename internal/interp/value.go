package interp

import (
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/vecverify/internal/ir"
)

// Value is a scalar or an array reference.
//
// Integer kinds and bool are held in bits (int32 sign-extended), float kinds
// in f (float32 values are exactly representable in float64).
type Value struct {
	T    ir.Type
	bits int64
	f    float64
	arr  *Array
}

// Int returns an int32 value.
func Int(v int32) Value { return Value{T: ir.Scalar(ir.KindInt), bits: int64(v)} }

// Long returns an int64 value.
func Long(v int64) Value { return Value{T: ir.Scalar(ir.KindLong), bits: v} }

// Float returns a float32 value.
func Float(v float32) Value { return Value{T: ir.Scalar(ir.KindFloat), f: float64(v)} }

// Double returns a float64 value.
func Double(v float64) Value { return Value{T: ir.Scalar(ir.KindDouble), f: v} }

// Bool returns a bool value.
func Bool(v bool) Value {
	var b int64
	if v {
		b = 1
	}
	return Value{T: ir.Scalar(ir.KindBool), bits: b}
}

// ArrayValue wraps an array.
func ArrayValue(a *Array) Value { return Value{T: ir.ArrayOf(a.Elem()), arr: a} }

// Zero returns the zero value of t. Arrays are nil references.
func Zero(t ir.Type) Value { return Value{T: t} }

// ConstValue converts an IR constant.
func ConstValue(c *ir.Const) Value {
	switch c.T.Kind {
	case ir.KindInt:
		return Int(int32(c.Int))
	case ir.KindLong:
		return Long(c.Int)
	case ir.KindFloat:
		return Float(float32(c.Float))
	case ir.KindDouble:
		return Double(c.Float)
	case ir.KindBool:
		return Bool(c.Bool)
	default:
		return Zero(c.T)
	}
}

func (v Value) Int32() int32     { return int32(v.bits) }
func (v Value) Int64() int64     { return v.bits }
func (v Value) Float32() float32 { return float32(v.f) }
func (v Value) Float64() float64 { return v.f }
func (v Value) Bool() bool       { return v.bits != 0 }
func (v Value) Array() *Array    { return v.arr }

// IsArray reports whether v is an array reference.
func (v Value) IsArray() bool { return v.T.IsArray() }

// String formats v for reports: integers in decimal, floats in the
// shortest representation that round-trips, arrays by type and length.
func (v Value) String() string {
	if v.T.IsArray() {
		if v.arr == nil {
			return v.T.String() + "(nil)"
		}
		return fmt.Sprintf("%s(len=%d)", v.T, v.arr.Len())
	}
	switch v.T.Kind {
	case ir.KindInt, ir.KindLong:
		return strconv.FormatInt(v.bits, 10)
	case ir.KindFloat:
		return FormatFloat(v.f, 32)
	case ir.KindDouble:
		return FormatFloat(v.f, 64)
	case ir.KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return "void"
	}
}

// FormatFloat formats f with the shortest round-tripping precision of the
// given bit size.
func FormatFloat(f float64, bits int) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
