// Package simd provides the portable vector operations executed by
// vectorized loops.
//
// A Vec holds a fixed number of lanes chosen by the caller from the target
// vector width. Every operation has the lane semantics the interpreter uses
// for scalars: integer arithmetic wraps, shift counts are masked to the lane
// width, and floating-point min/max propagate NaN and order -0.0 below +0.0.
// Vectorized code is therefore bit-identical to scalar code except where a
// reduction reassociates floating-point arithmetic.
//
// Basic usage:
//
//	a := simd.Load(x[i : i+lanes])
//	b := simd.Load(y[i : i+lanes])
//	simd.Store(simd.Add(a, b), out[i:i+lanes])
package simd

// Floats is a constraint for floating-point lane types.
type Floats interface {
	~float32 | ~float64
}

// Integers is a constraint for integer lane types.
type Integers interface {
	~int32 | ~int64
}

// Lanes is a constraint for all types that can be stored in vector lanes.
type Lanes interface {
	Floats | Integers
}

// Vec is a vector of lanes.
//
// Vec instances should not be created directly; use Load, Set, or Zero instead.
type Vec[T Lanes] struct {
	data []T
}

// NumLanes returns the number of lanes in this vector.
func (v Vec[T]) NumLanes() int {
	return len(v.data)
}

// Lane returns lane i.
func (v Vec[T]) Lane(i int) T {
	return v.data[i]
}

// LaneBytes returns the size of one lane of T in bytes.
func LaneBytes[T Lanes]() int {
	var zero T
	switch any(zero).(type) {
	case int32, float32:
		return 4
	default:
		return 8
	}
}

// NumLanesFor returns how many lanes of T fit in width bytes.
func NumLanesFor[T Lanes](width int) int {
	return width / LaneBytes[T]()
}
