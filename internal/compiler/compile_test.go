package compiler

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/frontend"
	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
)

const kernels = `
func AddInts() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = a[i] + b[i]
	}
	return res
}

func AndRed() int32 {
	acc := int32(-1)
	for i := 0; i < len(a); i++ {
		acc &= a[i]
	}
	return acc
}

func Shifts() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = (a[i] << 3) ^ ushr(b[i], k) + -a[i]
	}
	return res
}

func MinMax() int32 {
	lo := int32(1 << 30)
	hi := int32(-1 << 30)
	for i := 0; i < len(a); i++ {
		lo = min(lo, a[i])
		hi = max(b[i] * 2, hi)
	}
	return hi - lo
}

func SumFloats() float32 {
	var s float32
	for i := 0; i < len(x); i++ {
		s += x[i] * 0.5
	}
	return s
}

func ScaleFloats() []float32 {
	res := make([]float32, len(x))
	for i := 0; i < len(x); i++ {
		res[i] = max(x[i] / 3, -x[i]) * float32(k)
	}
	return res
}

func Overrun() []int32 {
	res := make([]int32, n)
	for i := 0; i < n; i++ {
		res[i] = a[i] + 1
	}
	return res
}

func IntDiv() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = a[i] / 3
	}
	return res
}

func Widen() []int64 {
	res := make([]int64, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = int64(a[i])
	}
	return res
}

func Iota() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = i
	}
	return res
}

func Offset() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a)-1; i++ {
		res[i] = a[i+1]
	}
	return res
}

func Temp() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		t := a[i] * 2
		res[i] = t
	}
	return res
}

func AbsPop() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = abs(a[i]) + popcount(b[i] ^ -1)
	}
	return res
}

func AbsFloats() []float32 {
	res := make([]float32, len(x))
	for i := 0; i < len(x); i++ {
		res[i] = abs(x[i] - 10)
	}
	return res
}

func PrefixFirst() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = a[i] + res[0]
	}
	return res
}

func ShiftByStored() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = b[i] << res[1]
	}
	return res
}

func Nested() []int32 {
	res := make([]int32, len(a))
	for j := 0; j < 2; j++ {
		for i := 0; i < len(a); i++ {
			res[i] = res[i] + a[i]
		}
	}
	return res
}
`

type fixture struct {
	class *ir.Class
	inst  *interp.Instance
}

func newFixture(t *testing.T, size int, n int32) *fixture {
	t.Helper()
	class, err := frontend.Compile(frontend.Source{
		Class: "K",
		Fields: []ir.Field{
			{Name: "a", T: ir.ArrayOf(ir.KindInt)},
			{Name: "b", T: ir.ArrayOf(ir.KindInt)},
			{Name: "x", T: ir.ArrayOf(ir.KindFloat)},
			{Name: "k", T: ir.Scalar(ir.KindInt)},
			{Name: "n", T: ir.Scalar(ir.KindInt)},
		},
		Code: kernels,
	})
	require.NoError(t, err)

	a := make([]int32, size)
	b := make([]int32, size)
	x := make([]float32, size)
	for i := range size {
		a[i] = int32(-25*i + 7)
		b[i] = int32(333*i + 9999)
		x[i] = float32(i)*0.1 + 1.0/3.0
	}
	inst := interp.NewInstance(class)
	require.NoError(t, inst.SetField("a", interp.ArrayValue(interp.ArrayOf(a))))
	require.NoError(t, inst.SetField("b", interp.ArrayValue(interp.ArrayOf(b))))
	require.NoError(t, inst.SetField("x", interp.ArrayValue(interp.ArrayOf(x))))
	require.NoError(t, inst.SetField("k", interp.Int(35)))
	require.NoError(t, inst.SetField("n", interp.Int(n)))
	inst.Freeze()
	return &fixture{class: class, inst: inst}
}

// profile interprets the method once with profiling and returns the
// profile and result.
func (f *fixture) profile(t *testing.T, name string) (*interp.Profile, interp.Value, error) {
	t.Helper()
	m := f.class.Method(name)
	require.NotNil(t, m, name)
	p := interp.NewProfile()
	v, err := interp.Invoke(m, f.inst, nil, interp.Options{Profile: p})
	return p, v, err
}

func (f *fixture) compile(t *testing.T, name string, level int, opts Options) (*Code, *interp.Profile) {
	t.Helper()
	p, _, _ := f.profile(t, name)
	code, err := Compile("K."+name, f.class.Method(name), level, p, opts)
	require.NoError(t, err)
	return code, p
}

var avx2 = Options{Width: 32, UseSuperWord: true}

func TestVectorizeElementwiseAdd(t *testing.T) {
	f := newFixture(t, 2345, 0)
	code, _ := f.compile(t, "AddInts", LevelOptimized, avx2)

	require.True(t, code.Vectorized())
	require.Len(t, code.Loops, 1)
	assert.Equal(t, LoopReport{Loop: 0, Vectorized: true, Elem: ir.KindInt, Lanes: 8}, code.Loops[0])

	g := code.Graph
	assert.Equal(t, 1, g.Count("AddVI"))
	assert.Equal(t, 1, g.CountVLen("AddVI", 8))
	assert.Equal(t, 0, g.CountVLen("AddVI", 4))
	assert.Equal(t, 2, g.Count("LoadVector"))
	assert.Equal(t, 1, g.Count("StoreVector"))
	assert.Equal(t, 1, g.Count("AddI"), "scalar post-loop")
	assert.Contains(t, g.Ops(), "CountedLoop")

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	res := interp.Slice[int32](got.Array())
	require.Len(t, res, 2345)
	for i, v := range res {
		require.Equal(t, int32(308*i+10006), v, "index %d", i)
	}
	require.NoError(t, f.inst.Verify())
}

func TestProfiledLevelStaysScalar(t *testing.T) {
	f := newFixture(t, 64, 0)
	code, p := f.compile(t, "AddInts", LevelProfiled, avx2)

	assert.False(t, code.Vectorized())
	assert.Empty(t, code.Graph.VectorNodes())
	assert.Equal(t, "profiled tier does not vectorize", code.Loops[0].Reason)

	before := p.Invocations()
	_, err := code.Invoke(f.inst, nil, p)
	require.NoError(t, err)
	assert.Equal(t, before+1, p.Invocations(), "tier 3 keeps profiling")
}

func TestVectorizeReductions(t *testing.T) {
	tests := []struct {
		name   string
		opcode string
		extra  string
	}{
		{"AndRed", "AndReductionV", "AndV"},
		{"MinMax", "MinReductionV", "MaxV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1000, 0)
			_, want, err := f.profile(t, tt.name)
			require.NoError(t, err)

			code, _ := f.compile(t, tt.name, LevelOptimized, avx2)
			require.True(t, code.Vectorized(), code.Loops)
			assert.Equal(t, 1, code.Graph.Count(tt.opcode))
			assert.GreaterOrEqual(t, code.Graph.Count(tt.extra), 1)

			got, err := code.Invoke(f.inst, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestVectorizeShiftsAndBitwise(t *testing.T) {
	f := newFixture(t, 333, 0)
	_, want, err := f.profile(t, "Shifts")
	require.NoError(t, err)

	code, _ := f.compile(t, "Shifts", LevelOptimized, Options{Width: 64, UseSuperWord: true})
	require.True(t, code.Vectorized(), code.Loops)
	assert.Equal(t, 1, code.Graph.CountVLen("LShiftVI", 16))
	assert.Equal(t, 1, code.Graph.Count("URShiftVI"))
	assert.Equal(t, 1, code.Graph.Count("XorV"))
	assert.Equal(t, 1, code.Graph.Count("NegVI"))
	assert.Equal(t, 1, code.Graph.Count("LShiftCntV"))

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, interp.Slice[int32](want.Array()), interp.Slice[int32](got.Array()))
}

func TestVectorizeAbsPopCount(t *testing.T) {
	f := newFixture(t, 300, 0)
	_, want, err := f.profile(t, "AbsPop")
	require.NoError(t, err)

	code, _ := f.compile(t, "AbsPop", LevelOptimized, avx2)
	require.True(t, code.Vectorized(), code.Loops)
	assert.Equal(t, 1, code.Graph.CountVLen("AbsVI", 8))
	assert.Equal(t, 1, code.Graph.CountVLen("PopCountVI", 8))
	assert.Equal(t, 1, code.Graph.Count("AbsI"), "scalar post-loop")
	assert.Equal(t, 1, code.Graph.Count("PopCountI"), "scalar post-loop")

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	res := interp.Slice[int32](got.Array())
	assert.Equal(t, interp.Slice[int32](want.Array()), res)
	assert.Equal(t, int32(25*3-7)+int32(32-bitsSet(int32(333*3+9999))), res[3])

	f = newFixture(t, 300, 0)
	_, want, err = f.profile(t, "AbsFloats")
	require.NoError(t, err)
	code, _ = f.compile(t, "AbsFloats", LevelOptimized, avx2)
	require.True(t, code.Vectorized(), code.Loops)
	assert.Equal(t, 1, code.Graph.Count("AbsVF"))

	got, err = code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, interp.Slice[float32](want.Array()), interp.Slice[float32](got.Array()))
}

func bitsSet(v int32) int {
	n := 0
	for u := uint32(v); u != 0; u &= u - 1 {
		n++
	}
	return n
}

func TestFloatElementwiseIsBitIdentical(t *testing.T) {
	f := newFixture(t, 517, 0)
	_, want, err := f.profile(t, "ScaleFloats")
	require.NoError(t, err)

	code, _ := f.compile(t, "ScaleFloats", LevelOptimized, avx2)
	require.True(t, code.Vectorized(), code.Loops)
	assert.Equal(t, 1, code.Graph.Count("DivVF"))
	assert.Equal(t, 1, code.Graph.Count("MulVF"))
	assert.Equal(t, 2, code.Graph.Count("ReplicateF"), "x/3 divisor and float32(k)")

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, interp.Slice[float32](want.Array()), interp.Slice[float32](got.Array()))
}

func TestFloatReductionOrdering(t *testing.T) {
	f := newFixture(t, 1031, 0)
	_, want, err := f.profile(t, "SumFloats")
	require.NoError(t, err)

	strict := avx2
	strict.StrictFloatReductions = true
	code, _ := f.compile(t, "SumFloats", LevelOptimized, strict)
	require.True(t, code.Vectorized())
	assert.Equal(t, 1, code.Graph.Count("AddReductionVF"))
	assert.Zero(t, code.Graph.Count("AddVF"), "ordered reduction folds in the loop")
	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, math.Float32bits(want.Float32()), math.Float32bits(got.Float32()))

	code, _ = f.compile(t, "SumFloats", LevelOptimized, avx2)
	assert.Equal(t, 1, code.Graph.Count("AddReductionVF"))
	assert.Equal(t, 1, code.Graph.Count("AddVF"))
	got, err = code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.InEpsilon(t, want.Float64(), got.Float64(), 1e-4)
}

func TestRangeCheckPredication(t *testing.T) {
	f := newFixture(t, 40, 48)
	_, _, wantErr := f.profile(t, "Overrun")
	require.Error(t, wantErr)

	code, _ := f.compile(t, "Overrun", LevelOptimized, avx2)
	require.True(t, code.Vectorized())
	_, err := code.Invoke(f.inst, nil, nil)
	require.Error(t, err)
	assert.Equal(t, interp.ErrCodeIndexOutOfBounds, interp.ErrorCode(err))
	assert.Contains(t, err.Error(), "Index 40 out of bounds for length 40")
}

func TestTripCountBelowLanes(t *testing.T) {
	f := newFixture(t, 1, 0)
	code, _ := f.compile(t, "AddInts", LevelOptimized, avx2)
	assert.False(t, code.Vectorized())
	assert.Contains(t, code.Loops[0].Reason, "profiled trip count 1 is below 8 lanes")
	assert.Zero(t, code.Graph.Count("AddVI"))
}

func TestShortRunsUseScalarPath(t *testing.T) {
	f := newFixture(t, 64, 0)
	code, _ := f.compile(t, "AddInts", LevelOptimized, avx2)
	require.True(t, code.Vectorized())

	short := newFixture(t, 5, 0)
	got, err := code.Invoke(short.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{10006, 10314, 10622, 10930, 11238}, interp.Slice[int32](got.Array()))
}

func TestRejectedLoops(t *testing.T) {
	tests := []struct {
		name   string
		reason string
	}{
		{"IntDiv", "integer division is not vectorized"},
		{"Widen", "conversion int64(a[i]) is not vectorized"},
		{"Iota", "loop index used as a value"},
		{"Offset", "access a[(i + 1)] is not at the loop index"},
		{"Temp", "scalar assignment to t is not a reduction"},
		{"PrefixFirst", "load res[0] from stored array"},
		{"ShiftByStored", "shift count res[1] is not loop invariant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100, 0)
			code, _ := f.compile(t, tt.name, LevelOptimized, avx2)
			require.Len(t, code.Loops, 1)
			assert.False(t, code.Loops[0].Vectorized)
			assert.Equal(t, tt.reason, code.Loops[0].Reason)
			assert.Empty(t, code.Graph.VectorNodes())
		})
	}
}

func TestLoadFromStoredArrayStaysScalar(t *testing.T) {
	f := newFixture(t, 64, 0)
	_, want, err := f.profile(t, "PrefixFirst")
	require.NoError(t, err)

	code, _ := f.compile(t, "PrefixFirst", LevelOptimized, avx2)
	require.False(t, code.Vectorized())
	assert.Equal(t, "load res[0] from stored array", code.Loops[0].Reason)

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	res := interp.Slice[int32](got.Array())
	assert.Equal(t, interp.Slice[int32](want.Array()), res)
	// res[0] is a[0] once iteration 0 has run.
	assert.Equal(t, int32(-25+7+7), res[1])
}

func TestInnerLoopOfNestVectorized(t *testing.T) {
	f := newFixture(t, 100, 0)
	_, want, err := f.profile(t, "Nested")
	require.NoError(t, err)

	code, _ := f.compile(t, "Nested", LevelOptimized, avx2)
	require.Len(t, code.Loops, 1)
	assert.Equal(t, 1, code.Loops[0].Loop)
	assert.True(t, code.Loops[0].Vectorized)

	got, err := code.Invoke(f.inst, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, interp.Slice[int32](want.Array()), interp.Slice[int32](got.Array()))
}

func TestSuperWordSwitches(t *testing.T) {
	f := newFixture(t, 100, 0)

	code, _ := f.compile(t, "AddInts", LevelOptimized, Options{Width: 32})
	assert.Equal(t, "superword disabled", code.Loops[0].Reason)

	code, _ = f.compile(t, "AddInts", LevelOptimized, Options{UseSuperWord: true})
	assert.Equal(t, "no vector unit", code.Loops[0].Reason)

	code, _ = f.compile(t, "AddInts", LevelOptimized, Options{Width: 4, UseSuperWord: true})
	assert.Contains(t, code.Loops[0].Reason, "fewer than 2 int32 lanes")

	_, err := Compile("K.AddInts", f.class.Method("AddInts"), 2, nil, avx2)
	assert.Error(t, err)
}

func TestGraphIsDeterministic(t *testing.T) {
	f := newFixture(t, 100, 0)
	c1, _ := f.compile(t, "MinMax", LevelOptimized, avx2)
	c2, _ := f.compile(t, "MinMax", LevelOptimized, avx2)

	if diff := cmp.Diff(c1.Graph, c2.Graph); diff != "" {
		t.Errorf("graphs differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, c1.Graph.Fingerprint(), c2.Graph.Fingerprint())

	c3, _ := f.compile(t, "MinMax", LevelProfiled, avx2)
	assert.NotEqual(t, c1.Graph.Fingerprint(), c3.Graph.Fingerprint())
}

func TestGraphString(t *testing.T) {
	f := newFixture(t, 100, 0)
	code, _ := f.compile(t, "AddInts", LevelOptimized, Options{Width: 16, UseSuperWord: true})
	s := code.Graph.String()
	assert.Contains(t, s, "graph K.AddInts level=4")
	assert.Regexp(t, `AddVI\s+int32\s+vlen=4\s+loop=0`, s)
	assert.Contains(t, s, "loop 0 vector main")
	assert.Contains(t, s, "loop 0 post")
}
