package simd

// Reductions fold lanes left to right, lane 0 first.

// ReduceSum sums all lanes.
func ReduceSum[T Lanes](v Vec[T]) T {
	var sum T
	for _, x := range v.data {
		sum += x
	}
	return sum
}

// ReduceMul multiplies all lanes.
func ReduceMul[T Lanes](v Vec[T]) T {
	var prod T = 1
	for _, x := range v.data {
		prod *= x
	}
	return prod
}

// ReduceMin returns the minimum value across all lanes.
func ReduceMin[T Lanes](v Vec[T]) T {
	if len(v.data) == 0 {
		var zero T
		return zero
	}
	m := v.data[0]
	for _, x := range v.data[1:] {
		m = MinLane(m, x)
	}
	return m
}

// ReduceMax returns the maximum value across all lanes.
func ReduceMax[T Lanes](v Vec[T]) T {
	if len(v.data) == 0 {
		var zero T
		return zero
	}
	m := v.data[0]
	for _, x := range v.data[1:] {
		m = MaxLane(m, x)
	}
	return m
}

// ReduceAnd ANDs all lanes; the identity is all ones.
func ReduceAnd[T Integers](v Vec[T]) T {
	var acc T = ^T(0)
	for _, x := range v.data {
		acc &= x
	}
	return acc
}

// ReduceOr ORs all lanes.
func ReduceOr[T Integers](v Vec[T]) T {
	var acc T
	for _, x := range v.data {
		acc |= x
	}
	return acc
}

// ReduceXor XORs all lanes.
func ReduceXor[T Integers](v Vec[T]) T {
	var acc T
	for _, x := range v.data {
		acc ^= x
	}
	return acc
}
