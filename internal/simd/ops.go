package simd

import (
	"math"
	"math/bits"
)

// Load creates a vector from every element of src.
func Load[T Lanes](src []T) Vec[T] {
	data := make([]T, len(src))
	copy(data, src)
	return Vec[T]{data: data}
}

// Store writes a vector's lanes to dst.
func Store[T Lanes](v Vec[T], dst []T) {
	n := min(len(dst), len(v.data))
	copy(dst[:n], v.data[:n])
}

// Set creates a vector with all lanes set to value (a broadcast).
func Set[T Lanes](value T, lanes int) Vec[T] {
	data := make([]T, lanes)
	for i := range data {
		data[i] = value
	}
	return Vec[T]{data: data}
}

// Zero creates a vector with all lanes set to zero.
func Zero[T Lanes](lanes int) Vec[T] {
	return Vec[T]{data: make([]T, lanes)}
}

func zip[T Lanes](a, b Vec[T], f func(x, y T) T) Vec[T] {
	n := min(len(a.data), len(b.data))
	result := make([]T, n)
	for i := range n {
		result[i] = f(a.data[i], b.data[i])
	}
	return Vec[T]{data: result}
}

func apply[T Lanes](v Vec[T], f func(x T) T) Vec[T] {
	result := make([]T, len(v.data))
	for i, x := range v.data {
		result[i] = f(x)
	}
	return Vec[T]{data: result}
}

// Add performs element-wise addition.
func Add[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x + y })
}

// Sub performs element-wise subtraction.
func Sub[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x - y })
}

// Mul performs element-wise multiplication.
func Mul[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x * y })
}

// Div performs element-wise division. Integer division is not vectorized.
func Div[T Floats](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x / y })
}

// Neg negates each lane.
func Neg[T Lanes](v Vec[T]) Vec[T] {
	return apply(v, func(x T) T { return -x })
}

// Min returns the element-wise minimum.
func Min[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, MinLane[T])
}

// Max returns the element-wise maximum.
func Max[T Lanes](a, b Vec[T]) Vec[T] {
	return zip(a, b, MaxLane[T])
}

// MinLane is the scalar minimum. For floats, NaN wins and -0.0 < +0.0.
func MinLane[T Lanes](a, b T) T {
	if isNaN(a) {
		return a
	}
	if isNaN(b) {
		return b
	}
	if a == b && a == 0 {
		// -0.0 == +0.0; pick the negative zero.
		if signBit(a) {
			return a
		}
		return b
	}
	if a < b {
		return a
	}
	return b
}

// MaxLane is the scalar maximum. For floats, NaN wins and +0.0 > -0.0.
func MaxLane[T Lanes](a, b T) T {
	if isNaN(a) {
		return a
	}
	if isNaN(b) {
		return b
	}
	if a == b && a == 0 {
		if signBit(a) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func isNaN[T Lanes](x T) bool {
	return x != x
}

func signBit[T Lanes](x T) bool {
	switch v := any(x).(type) {
	case float32:
		return math.Float32bits(v)>>31 != 0
	case float64:
		return math.Signbit(v)
	default:
		return x < 0
	}
}

// And performs element-wise bitwise AND.
func And[T Integers](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x & y })
}

// Or performs element-wise bitwise OR.
func Or[T Integers](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x | y })
}

// Xor performs element-wise bitwise XOR.
func Xor[T Integers](a, b Vec[T]) Vec[T] {
	return zip(a, b, func(x, y T) T { return x ^ y })
}

// Not performs element-wise bitwise NOT (ones complement).
func Not[T Integers](v Vec[T]) Vec[T] {
	return apply(v, func(x T) T { return ^x })
}

// ShiftCount masks a shift count to the lane width.
func ShiftCount[T Integers](bits int) uint {
	return uint(bits) & uint(LaneBytes[T]()*8-1)
}

// ShiftLeft shifts each lane left by bits, masked to the lane width.
func ShiftLeft[T Integers](v Vec[T], bits int) Vec[T] {
	n := ShiftCount[T](bits)
	return apply(v, func(x T) T { return x << n })
}

// ShiftRight shifts each lane right arithmetically (sign-extending).
func ShiftRight[T Integers](v Vec[T], bits int) Vec[T] {
	n := ShiftCount[T](bits)
	return apply(v, func(x T) T { return x >> n })
}

// ShiftRightLogical shifts each lane right, filling with zeros.
func ShiftRightLogical[T Integers](v Vec[T], bits int) Vec[T] {
	n := ShiftCount[T](bits)
	return apply(v, func(x T) T { return ShiftRightLogicalLane(x, n) })
}

// ShiftRightLogicalLane is the scalar logical right shift of x by an already
// masked count.
func ShiftRightLogicalLane[T Integers](x T, n uint) T {
	switch v := any(x).(type) {
	case int32:
		return T(int32(uint32(v) >> n))
	case int64:
		return T(int64(uint64(v) >> n))
	default:
		return x >> n
	}
}

// Abs computes the absolute value of each lane. Integer lanes wrap, so the
// minimum value maps to itself. Float lanes have their sign bit cleared,
// NaN included.
func Abs[T Lanes](v Vec[T]) Vec[T] {
	return apply(v, AbsLane[T])
}

// AbsLane is Abs of a single lane.
func AbsLane[T Lanes](x T) T {
	switch v := any(x).(type) {
	case float32:
		return any(math.Float32frombits(math.Float32bits(v) &^ (1 << 31))).(T)
	case float64:
		return any(math.Abs(v)).(T)
	}
	if x < 0 {
		return -x
	}
	return x
}

// PopCount counts the set bits of each lane.
func PopCount[T Integers](v Vec[T]) Vec[T] {
	return apply(v, PopCountLane[T])
}

// PopCountLane is PopCount of a single lane.
func PopCountLane[T Integers](x T) T {
	if v, ok := any(x).(int32); ok {
		return T(bits.OnesCount32(uint32(v)))
	}
	return T(bits.OnesCount64(uint64(x)))
}
