package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/ir"
)

var intFields = []ir.Field{
	{Name: "a", T: ir.ArrayOf(ir.KindInt)},
	{Name: "b", T: ir.ArrayOf(ir.KindInt)},
}

func compile(t *testing.T, code string) *ir.Class {
	t.Helper()
	c, err := Compile(Source{Class: "T", Fields: intFields, Code: code})
	require.NoError(t, err)
	return c
}

func compileErr(t *testing.T, code string) string {
	t.Helper()
	_, err := Compile(Source{Class: "T", File: "t.cue", Line: 10, Fields: intFields, Code: code})
	require.Error(t, err)
	return err.Error()
}

func TestCompileAddKernel(t *testing.T) {
	c := compile(t, `
//vec:kernel
//vec:ir AddVI
func AddInts() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = a[i] + b[i]
	}
	return res
}
`)
	require.Len(t, c.Methods, 1)
	m := c.Methods[0]
	assert.Equal(t, "AddInts", m.Name)
	assert.Equal(t, ir.ArrayOf(ir.KindInt), m.Result)
	assert.True(t, m.HasDirective(ir.DirectiveKernel))
	assert.Equal(t, []string{"AddVI"}, m.DirectiveArgs(ir.DirectiveIR))
	assert.Equal(t, 1, m.NumLoops)

	want := `//vec:kernel
//vec:ir AddVI
func AddInts() []int32 {
	res = make([]int32, len(a))
	for i := 0; i < len(a); i++ { // loop 0
		res[i] = (a[i] + b[i])
	}
	return res
}
`
	assert.Equal(t, want, ir.Print(m))
}

func TestCompileReductionAndCompoundOps(t *testing.T) {
	c := compile(t, `
//vec:kernel
func AndRed() int32 {
	acc := int32(-1)
	for i := 0; i < len(a); i++ {
		acc &= a[i] << 2
	}
	return acc
}

func helper() int64 {
	var s int64
	for i := 0; i < 3; i++ {
		s += int64(i)
		s++
	}
	return s
}
`)
	require.Len(t, c.Methods, 2)
	assert.Contains(t, ir.Print(c.Methods[0]), "acc = (acc & (a[i] << 2))")
	assert.Contains(t, ir.Print(c.Methods[1]), "s = (s + int64(i))")
	assert.Contains(t, ir.Print(c.Methods[1]), "s = (s + 1)")
	assert.False(t, c.Methods[1].HasDirective(ir.DirectiveKernel))
}

func TestUntypedConstants(t *testing.T) {
	c := compile(t, `
func f() float32 {
	x := float32(1) / 3
	return x * 2.5
}

func g() int32 {
	return 1 << 4 + 7 / 2
}

func h() float64 {
	return 1.5
}

func k() int32 {
	return max(a[0], 3, -1)
}
`)
	assert.Contains(t, ir.Print(c.Methods[0]), "return (x * 2.5)")
	assert.Contains(t, ir.Print(c.Methods[1]), "return 19")
	assert.Contains(t, ir.Print(c.Methods[2]), "return 1.5")
	assert.Contains(t, ir.Print(c.Methods[3]), "return max(max(a[0], 3), -1)")
}

func TestUshrBuiltin(t *testing.T) {
	c := compile(t, `
func f() int32 {
	return ushr(a[0], 28)
}
`)
	assert.Contains(t, ir.Print(c.Methods[0]), "return ushr(a[0], 28)")
}

func TestAbsPopCountBuiltins(t *testing.T) {
	c := compile(t, `
func f() int32 {
	return abs(a[0]) + popcount(b[0])
}

func g() int64 {
	return popcount(int64(a[0]))
}

func h() float64 {
	return abs(-2.5)
}
`)
	assert.Contains(t, ir.Print(c.Methods[0]), "return (abs(a[0]) + popcount(b[0]))")
	assert.Contains(t, ir.Print(c.Methods[1]), "return popcount(int64(a[0]))")
	assert.Contains(t, ir.Print(c.Methods[2]), "return abs(-2.5)")
}

func TestUnsignedConversionWraps(t *testing.T) {
	c := compile(t, `
func f() int32 {
	return int32(0xffffffff)
}

func g() int64 {
	return int64(0x8000000000000000)
}

func h() int32 {
	return int32(0x7fffffff)
}
`)
	assert.Contains(t, ir.Print(c.Methods[0]), "return -1")
	assert.Contains(t, ir.Print(c.Methods[1]), "return -9223372036854775808")
	assert.Contains(t, ir.Print(c.Methods[2]), "return 2147483647")

	assert.Contains(t, compileErr(t, "func f() int32 {\n\treturn 0xffffffff\n}"), "overflows int32")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "store into field",
			code: "func f() int32 {\n\ta[0] = 1\n\treturn 0\n}",
			want: "fields are read-only",
		},
		{
			name: "assign field",
			code: "func f() int32 {\n\ta = make([]int32, 1)\n\treturn 0\n}",
			want: "fields are read-only",
		},
		{
			name: "alias field array",
			code: "func f() []int32 {\n\tx := a\n\treturn x\n}",
			want: "must be initialised with make",
		},
		{
			name: "mismatched types",
			code: "func f() int32 {\n\tx := int64(1)\n\treturn a[0] + x\n}",
			want: "mismatched types int32 and int64",
		},
		{
			name: "overflow",
			code: "func f() int32 {\n\treturn 3000000000\n}",
			want: "overflows int32",
		},
		{
			name: "truncated",
			code: "func f() int32 {\n\treturn 1.5\n}",
			want: "truncated to integer",
		},
		{
			name: "loop variable assigned",
			code: "func f() int32 {\n\tfor i := 0; i < 4; i++ {\n\t\ti = 2\n\t}\n\treturn 0\n}",
			want: "cannot assign to loop variable i",
		},
		{
			name: "loop bound mutated",
			code: "func f() int32 {\n\tn := 4\n\tfor i := 0; i < n; i++ {\n\t\tn = 2\n\t}\n\treturn 0\n}",
			want: "loop bound must not change",
		},
		{
			name: "while loop",
			code: "func f() int32 {\n\tfor {\n\t}\n}",
			want: "loops must have the form",
		},
		{
			name: "missing return",
			code: "func f() int32 {\n\tx := 1\n\tx++\n}",
			want: "missing return",
		},
		{
			name: "undefined",
			code: "func f() int32 {\n\treturn c\n}",
			want: "undefined: c",
		},
		{
			name: "comparison",
			code: "func f() int32 {\n\treturn a[0] < 1\n}",
			want: "unsupported operator <",
		},
		{
			name: "float bitwise",
			code: "func f() float64 {\n\tx := 1.0\n\treturn x & x\n}",
			want: "operator & not defined on float64",
		},
		{
			name: "constant division by zero",
			code: "func f() int32 {\n\treturn a[0] / 0\n}",
			want: "division by zero",
		},
		{
			name: "unknown call",
			code: "func f() int32 {\n\treturn sqrt(1)\n}",
			want: "unsupported function sqrt",
		},
		{
			name: "popcount of float",
			code: "func f() float64 {\n\treturn popcount(1.5)\n}",
			want: "invalid argument for popcount: float64",
		},
		{
			name: "abs of array",
			code: "func f() int32 {\n\tx := abs(a)\n\treturn 0\n}",
			want: "invalid argument for abs: []int32",
		},
		{
			name: "abs arity",
			code: "func f() int32 {\n\treturn abs(a[0], a[1])\n}",
			want: "abs needs one argument",
		},
		{
			name: "conversion wider than unsigned",
			code: "func f() int32 {\n\treturn int32(0x1ffffffff)\n}",
			want: "overflows int32",
		},
		{
			name: "negative conversion overflow",
			code: "func f() int32 {\n\treturn int32(-0x80000001)\n}",
			want: "overflows int32",
		},
		{
			name: "type declaration",
			code: "type T int32",
			want: "only function declarations",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, compileErr(t, tt.code), tt.want)
		})
	}
}

func TestErrorPositionsMapToSuiteFile(t *testing.T) {
	msg := compileErr(t, "func f() int32 {\n\treturn c\n}")
	assert.Contains(t, msg, "t.cue:11:")
}

func TestErrorsAreCollectedPerMethod(t *testing.T) {
	_, err := Compile(Source{Class: "T", Fields: intFields, Code: `
func f() int32 { return c }
func g() int32 { return d }
`})
	var list ErrorList
	require.ErrorAs(t, err, &list)
	assert.Len(t, list, 2)
}

func TestSignaturesAreRepresentable(t *testing.T) {
	c := compile(t, `
//vec:kernel
func WithParam(n int32) int32 {
	return n
}

//vec:kernel
func Flag() bool {
	return true
}
`)
	require.Len(t, c.Methods, 2)
	assert.Len(t, c.Methods[0].Params, 1)
	assert.Equal(t, ir.Scalar(ir.KindBool), c.Methods[1].Result)
}

func TestCompileInit(t *testing.T) {
	class := &ir.Class{Name: "T"}

	m, err := CompileInit(class, "init$a", "t.cue", "333*i + 9999", ir.KindInt, true)
	require.NoError(t, err)
	require.Len(t, m.Params, 1)
	assert.Equal(t, "((333 * i) + 9999)", ir.ExprString(m.Body[0].(*ir.Return).Value))

	m, err = CompileInit(class, "init$f", "t.cue", "0.5 * float64(i)", ir.KindFloat, true)
	require.NoError(t, err)
	assert.Equal(t, "float32((0.5 * float64(i)))", ir.ExprString(m.Body[0].(*ir.Return).Value))

	m, err = CompileInit(class, "init$s", "t.cue", "-1", ir.KindLong, false)
	require.NoError(t, err)
	assert.Empty(t, m.Params)
	assert.Equal(t, "-1", ir.ExprString(m.Body[0].(*ir.Return).Value))

	_, err = CompileInit(class, "init$bad", "t.cue", "i +", ir.KindInt, true)
	assert.Error(t, err)
}
