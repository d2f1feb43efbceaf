package ir

// Expr is a sealed interface over kernel expressions.
// Every expression has a static type assigned by the frontend.
type Expr interface {
	Type() Type
	exprNode()
}

// Const is a literal. Integer kinds use Int, floating kinds use Float
// (float32 constants are stored already rounded to binary32).
type Const struct {
	T     Type
	Int   int64
	Float float64
	Bool  bool
}

func (c *Const) Type() Type { return c.T }
func (*Const) exprNode()    {}

// IntConst returns an int32 constant.
func IntConst(v int32) *Const {
	return &Const{T: Scalar(KindInt), Int: int64(v)}
}

// LongConst returns an int64 constant.
func LongConst(v int64) *Const {
	return &Const{T: Scalar(KindLong), Int: v}
}

// FloatConst returns a float32 constant.
func FloatConst(v float32) *Const {
	return &Const{T: Scalar(KindFloat), Float: float64(v)}
}

// DoubleConst returns a float64 constant.
func DoubleConst(v float64) *Const {
	return &Const{T: Scalar(KindDouble), Float: v}
}

// FieldRef reads a field of the suite instance. Slot indexes Class.Fields.
type FieldRef struct {
	Name string
	T    Type
	Slot int
}

func (f *FieldRef) Type() Type { return f.T }
func (*FieldRef) exprNode()    {}

// LocalRef reads a local variable. Slot indexes Method.Locals.
type LocalRef struct {
	Name string
	T    Type
	Slot int
}

func (l *LocalRef) Type() Type { return l.T }
func (*LocalRef) exprNode()    {}

// Index loads one array element.
type Index struct {
	Array Expr
	Index Expr
}

func (x *Index) Type() Type { return x.Array.Type().Elem() }
func (*Index) exprNode()    {}

// Len is the length of an array, always int32.
type Len struct {
	Array Expr
}

func (*Len) Type() Type { return Scalar(KindInt) }
func (*Len) exprNode()  {}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUshr
)

// String returns the source spelling of the operator.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpRem:
		return "%"
	case OpAnd:
		return "&"
	case OpOr:
		return "|"
	case OpXor:
		return "^"
	case OpShl:
		return "<<"
	case OpShr:
		return ">>"
	case OpUshr:
		return ">>>"
	default:
		return "?"
	}
}

// Name returns the opcode stem used in instruction graphs ("Add", "LShift").
func (op BinaryOp) Name() string {
	switch op {
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpRem:
		return "Mod"
	case OpAnd:
		return "And"
	case OpOr:
		return "Or"
	case OpXor:
		return "Xor"
	case OpShl:
		return "LShift"
	case OpShr:
		return "RShift"
	case OpUshr:
		return "URShift"
	default:
		return "Unknown"
	}
}

// IsShift reports whether op is a shift.
func (op BinaryOp) IsShift() bool {
	return op == OpShl || op == OpShr || op == OpUshr
}

// IsBitwise reports whether op is only defined on integer kinds.
func (op BinaryOp) IsBitwise() bool {
	switch op {
	case OpAnd, OpOr, OpXor, OpShl, OpShr, OpUshr:
		return true
	}
	return false
}

// Binary applies op to X and Y. For shifts, Y is an int32 count and the
// result has the type of X; otherwise both operands share the result type.
type Binary struct {
	Op BinaryOp
	X  Expr
	Y  Expr
}

func (b *Binary) Type() Type { return b.X.Type() }
func (*Binary) exprNode()    {}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	// OpNeg is arithmetic negation.
	OpNeg UnaryOp = iota
	// OpNot is bitwise complement (^x in Go).
	OpNot
	// OpAbs is the abs builtin. Integer abs wraps, so abs of the minimum
	// value is the minimum value; float abs clears the sign bit.
	OpAbs
	// OpPopCount is the popcount builtin: the number of set bits, in the
	// operand's kind.
	OpPopCount
)

// String returns the source spelling of the operator.
func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "^"
	case OpAbs:
		return "abs"
	case OpPopCount:
		return "popcount"
	default:
		return "-"
	}
}

// IsCall reports whether op is spelled as a builtin call.
func (op UnaryOp) IsCall() bool {
	return op == OpAbs || op == OpPopCount
}

// Unary applies op to X.
type Unary struct {
	Op UnaryOp
	X  Expr
}

func (u *Unary) Type() Type { return u.X.Type() }
func (*Unary) exprNode()    {}

// MinMax is the min or max builtin. Floating kinds propagate NaN and order
// -0.0 below +0.0.
type MinMax struct {
	Max bool
	X   Expr
	Y   Expr
}

func (m *MinMax) Type() Type { return m.X.Type() }
func (*MinMax) exprNode()    {}

// Conv converts X to the scalar type T.
type Conv struct {
	X Expr
	T Type
}

func (c *Conv) Type() Type { return c.T }
func (*Conv) exprNode()    {}

// MakeArray allocates a zeroed array of Len elements.
type MakeArray struct {
	Elem Kind
	Len  Expr
}

func (m *MakeArray) Type() Type { return ArrayOf(m.Elem) }
func (*MakeArray) exprNode()    {}
