package harness

import (
	"fmt"
	"math"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
)

// Mismatch describes where an optimized result differs from the baseline.
type Mismatch struct {
	// Index is the first differing element, or -1 for scalars, type
	// mismatches and length mismatches.
	Index int `json:"index"`

	Baseline  string `json:"baseline"`
	Optimized string `json:"optimized"`

	// Differing is the number of differing elements of an array result.
	Differing int `json:"differing,omitempty"`

	// Length is set when the array lengths differ; Baseline and Optimized
	// then hold the lengths.
	Length bool `json:"length,omitempty"`
}

// String formats the mismatch for reports.
func (m *Mismatch) String() string {
	switch {
	case m.Length:
		return fmt.Sprintf("length mismatch: baseline %s, optimized %s", m.Baseline, m.Optimized)
	case m.Index < 0:
		return fmt.Sprintf("baseline %s, optimized %s", m.Baseline, m.Optimized)
	case m.Differing > 1:
		return fmt.Sprintf("index %d: baseline %s, optimized %s (%d elements differ)", m.Index, m.Baseline, m.Optimized, m.Differing)
	default:
		return fmt.Sprintf("index %d: baseline %s, optimized %s", m.Index, m.Baseline, m.Optimized)
	}
}

// Compare compares an optimized result with the baseline under tol and
// returns nil when they agree. Integer kinds are always compared exactly.
func Compare(baseline, optimized interp.Value, tol Tolerance) *Mismatch {
	if baseline.T != optimized.T {
		return &Mismatch{Index: -1, Baseline: baseline.T.String(), Optimized: optimized.T.String()}
	}
	if !baseline.IsArray() {
		if equalElem(baseline, optimized, tol) {
			return nil
		}
		return &Mismatch{Index: -1, Baseline: baseline.String(), Optimized: optimized.String()}
	}

	ba, oa := baseline.Array(), optimized.Array()
	if ba == nil || oa == nil {
		if ba == nil && oa == nil {
			return nil
		}
		return &Mismatch{Index: -1, Baseline: baseline.String(), Optimized: optimized.String()}
	}
	if ba.Len() != oa.Len() {
		return &Mismatch{
			Index:     -1,
			Baseline:  fmt.Sprint(ba.Len()),
			Optimized: fmt.Sprint(oa.Len()),
			Length:    true,
		}
	}

	var m *Mismatch
	for i := range ba.Len() {
		x, y := ba.Get(i), oa.Get(i)
		if equalElem(x, y, tol) {
			continue
		}
		if m == nil {
			m = &Mismatch{Index: i, Baseline: x.String(), Optimized: y.String()}
		}
		m.Differing++
	}
	return m
}

func equalElem(x, y interp.Value, tol Tolerance) bool {
	switch x.T.Kind {
	case ir.KindFloat:
		return equalFloat(x.Float64(), y.Float64(), tol, 32)
	case ir.KindDouble:
		return equalFloat(x.Float64(), y.Float64(), tol, 64)
	default:
		return x.Int64() == y.Int64()
	}
}

// equalFloat compares two values of the given bit size. NaNs compare equal
// to each other under every policy.
func equalFloat(x, y float64, tol Tolerance, bits int) bool {
	xNaN, yNaN := math.IsNaN(x), math.IsNaN(y)
	if xNaN || yNaN {
		return xNaN && yNaN
	}

	switch tol.Mode {
	case ToleranceULP:
		return ulpDistance(x, y, bits) <= tol.ULP
	case ToleranceAbsRel:
		if x == y {
			return true
		}
		if math.IsInf(x, 0) || math.IsInf(y, 0) {
			return false
		}
		d := math.Abs(x - y)
		return d <= tol.Abs || d <= tol.Rel*math.Max(math.Abs(x), math.Abs(y))
	default:
		if bits == 32 {
			return math.Float32bits(float32(x)) == math.Float32bits(float32(y))
		}
		return math.Float64bits(x) == math.Float64bits(y)
	}
}

// ulpDistance counts the representable values between x and y. Signed
// zeros are zero ulps apart.
func ulpDistance(x, y float64, bits int) uint64 {
	var a, b int64
	if bits == 32 {
		a, b = ordered32(float32(x)), ordered32(float32(y))
	} else {
		a, b = ordered64(x), ordered64(y)
	}
	if a < b {
		a, b = b, a
	}
	return uint64(a) - uint64(b)
}

// ordered32 maps float32 bit patterns onto a monotonic integer line.
func ordered32(f float32) int64 {
	b := int64(int32(math.Float32bits(f)))
	if b < 0 {
		b = math.MinInt32 - b
	}
	return b
}

func ordered64(f float64) int64 {
	b := int64(math.Float64bits(f))
	if b < 0 {
		b = math.MinInt64 - b
	}
	return b
}
