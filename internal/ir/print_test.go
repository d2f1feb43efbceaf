package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrint(t *testing.T) {
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
	assert.Equal(t, want, Print(addClass().Methods[0]))
}

func TestExprString(t *testing.T) {
	x := &LocalRef{Name: "x", T: Scalar(KindInt)}
	tests := []struct {
		name string
		e    Expr
		want string
	}{
		{"ushr", &Binary{Op: OpUshr, X: x, Y: IntConst(3)}, "ushr(x, 3)"},
		{"not", &Unary{Op: OpNot, X: x}, "^x"},
		{"max", &MinMax{Max: true, X: x, Y: IntConst(0)}, "max(x, 0)"},
		{"conv", &Conv{X: x, T: Scalar(KindDouble)}, "float64(x)"},
		{"double", DoubleConst(2), "2.0"},
		{"float", FloatConst(0.5), "0.5"},
		{"nan", DoubleConst(math.NaN()), "float64(NaN)"},
		{"long", LongConst(-7), "-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExprString(tt.e))
		})
	}
}
