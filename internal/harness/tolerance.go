package harness

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/vecverify/internal/ir"
)

// ToleranceMode selects how two floating-point values are compared.
type ToleranceMode int

const (
	// ToleranceExact requires bit-identical values. Any two NaNs are equal.
	ToleranceExact ToleranceMode = iota
	// ToleranceULP allows a distance of at most ULP units in the last place.
	ToleranceULP
	// ToleranceAbsRel allows |x-y| <= Abs or |x-y| <= Rel*max(|x|,|y|).
	ToleranceAbsRel
)

// String returns the directive spelling of the mode.
func (m ToleranceMode) String() string {
	switch m {
	case ToleranceExact:
		return "exact"
	case ToleranceULP:
		return "ulp"
	case ToleranceAbsRel:
		return "abs"
	default:
		return fmt.Sprintf("ToleranceMode(%d)", int(m))
	}
}

// Tolerance is a numeric comparison policy.
type Tolerance struct {
	Mode ToleranceMode
	ULP  uint64
	Abs  float64
	Rel  float64
}

// Exact is the policy of every integer kernel.
var Exact = Tolerance{Mode: ToleranceExact}

// String returns the policy in directive syntax, e.g. "ulp=1" or
// "abs=1e-05,rel=1e-05". ParseTolerance accepts the result.
func (t Tolerance) String() string {
	switch t.Mode {
	case ToleranceULP:
		return "ulp=" + strconv.FormatUint(t.ULP, 10)
	case ToleranceAbsRel:
		s := "abs=" + strconv.FormatFloat(t.Abs, 'g', -1, 64)
		if t.Rel != 0 {
			s += ",rel=" + strconv.FormatFloat(t.Rel, 'g', -1, 64)
		}
		return s
	default:
		return "exact"
	}
}

// MarshalText implements encoding.TextMarshaler so reports carry the
// directive spelling.
func (t Tolerance) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseTolerance parses "exact", "ulp=N" or "abs=X[,rel=Y]".
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	if s == "exact" {
		return Exact, nil
	}
	if v, ok := strings.CutPrefix(s, "ulp="); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Tolerance{}, fmt.Errorf("invalid tolerance %q: ulp must be a non-negative integer", s)
		}
		return Tolerance{Mode: ToleranceULP, ULP: n}, nil
	}
	if rest, ok := strings.CutPrefix(s, "abs="); ok {
		absStr, relStr, hasRel := strings.Cut(rest, ",")
		abs, err := parseBound(s, absStr)
		if err != nil {
			return Tolerance{}, err
		}
		t := Tolerance{Mode: ToleranceAbsRel, Abs: abs}
		if hasRel {
			v, ok := strings.CutPrefix(relStr, "rel=")
			if !ok {
				return Tolerance{}, fmt.Errorf("invalid tolerance %q: expected rel=Y after abs", s)
			}
			if t.Rel, err = parseBound(s, v); err != nil {
				return Tolerance{}, err
			}
		}
		return t, nil
	}
	return Tolerance{}, fmt.Errorf("invalid tolerance %q: want exact, ulp=N or abs=X[,rel=Y]", s)
}

func parseBound(spec, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid tolerance %q: %q is not a finite non-negative number", spec, v)
	}
	return f, nil
}

// Tolerances are the default policies for floating-point kernels without a
// //vec:tolerance directive. Integer kernels are always exact.
type Tolerances struct {
	FloatElementwise  Tolerance
	DoubleElementwise Tolerance
	FloatReduction    Tolerance
	DoubleReduction   Tolerance
}

// DefaultTolerances returns the built-in defaults: one ulp element-wise, and
// an absolute/relative bound sized to the element precision for reductions,
// which the vectorizer may reassociate.
func DefaultTolerances() Tolerances {
	return Tolerances{
		FloatElementwise:  Tolerance{Mode: ToleranceULP, ULP: 1},
		DoubleElementwise: Tolerance{Mode: ToleranceULP, ULP: 1},
		FloatReduction:    Tolerance{Mode: ToleranceAbsRel, Abs: 1e-5, Rel: 1e-5},
		DoubleReduction:   Tolerance{Mode: ToleranceAbsRel, Abs: 1e-12, Rel: 1e-12},
	}
}

// For returns the default policy for a kernel result type. A scalar result
// is a reduction; an array result is element-wise.
func (ts Tolerances) For(t ir.Type) Tolerance {
	switch {
	case t.Kind == ir.KindFloat && t.IsArray():
		return ts.FloatElementwise
	case t.Kind == ir.KindFloat:
		return ts.FloatReduction
	case t.Kind == ir.KindDouble && t.IsArray():
		return ts.DoubleElementwise
	case t.Kind == ir.KindDouble:
		return ts.DoubleReduction
	default:
		return Exact
	}
}
