package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/simd"
)

// Array is a one-dimensional typed array. Its backing slice is one of
// []int32, []int64, []float32, []float64 or []bool.
type Array struct {
	elem ir.Kind
	data any
}

// NewArray allocates a zeroed array.
func NewArray(elem ir.Kind, n int) *Array {
	a := &Array{elem: elem}
	switch elem {
	case ir.KindInt:
		a.data = make([]int32, n)
	case ir.KindLong:
		a.data = make([]int64, n)
	case ir.KindFloat:
		a.data = make([]float32, n)
	case ir.KindDouble:
		a.data = make([]float64, n)
	case ir.KindBool:
		a.data = make([]bool, n)
	default:
		panic(fmt.Sprintf("interp: array of %s", elem))
	}
	return a
}

// ArrayOf wraps an existing slice without copying.
func ArrayOf[T simd.Lanes](s []T) *Array {
	var elem ir.Kind
	switch any(s).(type) {
	case []int32:
		elem = ir.KindInt
	case []int64:
		elem = ir.KindLong
	case []float32:
		elem = ir.KindFloat
	case []float64:
		elem = ir.KindDouble
	default:
		panic(fmt.Sprintf("interp: unsupported slice %T", s))
	}
	return &Array{elem: elem, data: any(s)}
}

// Slice returns the backing slice of a as []T. It panics if the element
// kind does not match T.
func Slice[T simd.Lanes](a *Array) []T {
	return a.data.([]T)
}

// Elem returns the element kind.
func (a *Array) Elem() ir.Kind { return a.elem }

// Len returns the number of elements.
func (a *Array) Len() int {
	switch d := a.data.(type) {
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []bool:
		return len(d)
	}
	return 0
}

// Get returns element i. The caller checks bounds.
func (a *Array) Get(i int) Value {
	switch d := a.data.(type) {
	case []int32:
		return Int(d[i])
	case []int64:
		return Long(d[i])
	case []float32:
		return Float(d[i])
	case []float64:
		return Double(d[i])
	case []bool:
		return Bool(d[i])
	}
	return Value{}
}

// Set stores v at element i. The caller checks bounds and kind.
func (a *Array) Set(i int, v Value) {
	switch d := a.data.(type) {
	case []int32:
		d[i] = v.Int32()
	case []int64:
		d[i] = v.Int64()
	case []float32:
		d[i] = v.Float32()
	case []float64:
		d[i] = v.Float64()
	case []bool:
		d[i] = v.Bool()
	}
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	c := NewArray(a.elem, a.Len())
	switch d := a.data.(type) {
	case []int32:
		copy(c.data.([]int32), d)
	case []int64:
		copy(c.data.([]int64), d)
	case []float32:
		copy(c.data.([]float32), d)
	case []float64:
		copy(c.data.([]float64), d)
	case []bool:
		copy(c.data.([]bool), d)
	}
	return c
}

// AppendBytes appends the little-endian encoding of every element. Floats
// are encoded by their bit patterns so NaN payloads and signed zeros count.
func (a *Array) AppendBytes(b []byte) []byte {
	switch d := a.data.(type) {
	case []int32:
		for _, x := range d {
			b = binary.LittleEndian.AppendUint32(b, uint32(x))
		}
	case []int64:
		for _, x := range d {
			b = binary.LittleEndian.AppendUint64(b, uint64(x))
		}
	case []float32:
		for _, x := range d {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(x))
		}
	case []float64:
		for _, x := range d {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(x))
		}
	case []bool:
		for _, x := range d {
			if x {
				b = append(b, 1)
			} else {
				b = append(b, 0)
			}
		}
	}
	return b
}
