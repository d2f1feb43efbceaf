package frontend

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"math"

	"github.com/roach88/vecverify/internal/ir"
)

// operand is a checked expression. Untyped constants stay symbolic until
// their use fixes a type.
type operand struct {
	expr    ir.Expr
	untyped bool
	value   constant.Value
}

type scope struct {
	parent *scope
	names  map[string]*ir.LocalRef
}

func (s *scope) lookup(name string) *ir.LocalRef {
	for ; s != nil; s = s.parent {
		if l, ok := s.names[name]; ok {
			return l
		}
	}
	return nil
}

// funcCompiler checks and lowers one function body.
type funcCompiler struct {
	fset   *token.FileSet
	class  *ir.Class
	method *ir.Method
	scope  *scope

	// loopVars are the induction variables of the enclosing loops.
	loopVars map[int]bool
}

func newFuncCompiler(fset *token.FileSet, class *ir.Class, m *ir.Method) *funcCompiler {
	return &funcCompiler{
		fset:     fset,
		class:    class,
		method:   m,
		scope:    &scope{names: make(map[string]*ir.LocalRef)},
		loopVars: make(map[int]bool),
	}
}

func (fc *funcCompiler) errorf(n ast.Node, format string, args ...any) *Error {
	return fc.errorAt(n.Pos(), format, args...)
}

func (fc *funcCompiler) errorAt(pos token.Pos, format string, args ...any) *Error {
	return &Error{
		Pos: fc.fset.Position(pos).String(),
		Msg: fmt.Sprintf(format, args...),
	}
}

// declare allocates a new slot in the current scope.
func (fc *funcCompiler) declare(name string, t ir.Type, param bool) *ir.LocalRef {
	slot := len(fc.method.Locals)
	fc.method.Locals = append(fc.method.Locals, ir.Local{Name: name, T: t})
	if param {
		fc.method.Params = append(fc.method.Params, ir.Local{Name: name, T: t})
	}
	ref := &ir.LocalRef{Name: name, T: t, Slot: slot}
	if name != "_" {
		fc.scope.names[name] = ref
	}
	return ref
}

func (fc *funcCompiler) push() {
	fc.scope = &scope{parent: fc.scope, names: make(map[string]*ir.LocalRef)}
}

func (fc *funcCompiler) pop() {
	fc.scope = fc.scope.parent
}

func (fc *funcCompiler) typeExpr(e ast.Expr) (ir.Type, *Error) {
	switch t := e.(type) {
	case *ast.Ident:
		k, ok := ir.KindByName(t.Name)
		if !ok {
			return ir.Type{}, fc.errorf(e, "unsupported type %s", t.Name)
		}
		return ir.Scalar(k), nil
	case *ast.ArrayType:
		if t.Len != nil {
			return ir.Type{}, fc.errorf(e, "fixed-size arrays are not supported; use a slice")
		}
		elem, err := fc.typeExpr(t.Elt)
		if err != nil {
			return ir.Type{}, err
		}
		return ir.Type{Kind: elem.Kind, Dims: elem.Dims + 1}, nil
	case *ast.ParenExpr:
		return fc.typeExpr(t.X)
	default:
		return ir.Type{}, fc.errorf(e, "unsupported type expression")
	}
}

// ---- statements ----

func (fc *funcCompiler) block(list []ast.Stmt) ([]ir.Stmt, *Error) {
	var out []ir.Stmt
	for _, s := range list {
		stmts, err := fc.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (fc *funcCompiler) stmt(s ast.Stmt) ([]ir.Stmt, *Error) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		return fc.assign(s)
	case *ast.IncDecStmt:
		return fc.incDec(s)
	case *ast.DeclStmt:
		return fc.varDecl(s)
	case *ast.ForStmt:
		f, err := fc.forStmt(s)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{f}, nil
	case *ast.ReturnStmt:
		return fc.returnStmt(s)
	case *ast.BlockStmt:
		fc.push()
		defer fc.pop()
		return fc.block(s.List)
	case *ast.EmptyStmt:
		return nil, nil
	default:
		return nil, fc.errorf(s, "unsupported statement %T", s)
	}
}

func (fc *funcCompiler) assign(s *ast.AssignStmt) ([]ir.Stmt, *Error) {
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		return nil, fc.errorf(s, "multiple assignment is not supported")
	}
	lhs, rhs := s.Lhs[0], s.Rhs[0]

	if s.Tok == token.DEFINE {
		id, ok := lhs.(*ast.Ident)
		if !ok {
			return nil, fc.errorf(lhs, "cannot declare %T", lhs)
		}
		if _, exists := fc.scope.names[id.Name]; exists {
			return nil, fc.errorf(id, "no new variables on left side of :=")
		}
		op, err := fc.expr(rhs)
		if err != nil {
			return nil, err
		}
		value, err := fc.materialize(op, rhs)
		if err != nil {
			return nil, err
		}
		if err := fc.checkArrayLocalInit(id.Name, value, rhs); err != nil {
			return nil, err
		}
		dst := fc.declare(id.Name, value.Type(), false)
		return []ir.Stmt{&ir.Assign{Dst: dst, Value: value}}, nil
	}

	binOp, compound := compoundOps[s.Tok]
	if !compound && s.Tok != token.ASSIGN {
		return nil, fc.errorf(s, "unsupported assignment operator %s", s.Tok)
	}

	switch target := lhs.(type) {
	case *ast.Ident:
		dst, err := fc.assignableLocal(target)
		if err != nil {
			return nil, err
		}
		value, err := fc.assignValue(dst, dst.T, binOp, compound, rhs)
		if err != nil {
			return nil, err
		}
		if err := fc.checkArrayLocalInit(dst.Name, value, rhs); err != nil {
			return nil, err
		}
		return []ir.Stmt{&ir.Assign{Dst: dst, Value: value}}, nil

	case *ast.IndexExpr:
		arr, err := fc.storeTarget(target.X)
		if err != nil {
			return nil, err
		}
		idx, err := fc.index(target.Index)
		if err != nil {
			return nil, err
		}
		var current ir.Expr = &ir.Index{Array: arr, Index: idx}
		value, err := fc.assignValue(current, arr.T.Elem(), binOp, compound, rhs)
		if err != nil {
			return nil, err
		}
		return []ir.Stmt{&ir.Store{Array: arr, Index: idx, Value: value}}, nil

	default:
		return nil, fc.errorf(lhs, "cannot assign to %T", lhs)
	}
}

var compoundOps = map[token.Token]ir.BinaryOp{
	token.ADD_ASSIGN: ir.OpAdd,
	token.SUB_ASSIGN: ir.OpSub,
	token.MUL_ASSIGN: ir.OpMul,
	token.QUO_ASSIGN: ir.OpDiv,
	token.REM_ASSIGN: ir.OpRem,
	token.AND_ASSIGN: ir.OpAnd,
	token.OR_ASSIGN:  ir.OpOr,
	token.XOR_ASSIGN: ir.OpXor,
	token.SHL_ASSIGN: ir.OpShl,
	token.SHR_ASSIGN: ir.OpShr,
}

// assignValue checks rhs against the destination type, desugaring compound
// assignment into current op rhs.
func (fc *funcCompiler) assignValue(current ir.Expr, t ir.Type, op ir.BinaryOp, compound bool, rhs ast.Expr) (ir.Expr, *Error) {
	r, err := fc.expr(rhs)
	if err != nil {
		return nil, err
	}
	if compound {
		return fc.binary(op, operand{expr: current}, r, rhs)
	}
	return fc.convert(r, t, rhs)
}

func (fc *funcCompiler) assignableLocal(id *ast.Ident) (*ir.LocalRef, *Error) {
	if l := fc.scope.lookup(id.Name); l != nil {
		if fc.loopVars[l.Slot] {
			return nil, fc.errorf(id, "cannot assign to loop variable %s", id.Name)
		}
		return l, nil
	}
	if fc.class.FieldSlot(id.Name) >= 0 {
		return nil, fc.errorf(id, "cannot assign to field %s: fields are read-only", id.Name)
	}
	return nil, fc.errorf(id, "undefined: %s", id.Name)
}

// storeTarget resolves the array of an element store. Only local arrays may
// be stored to, which keeps the dataset read-only.
func (fc *funcCompiler) storeTarget(e ast.Expr) (*ir.LocalRef, *Error) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return nil, fc.errorf(e, "array store target must be a local array")
	}
	if l := fc.scope.lookup(id.Name); l != nil {
		if !l.T.IsArray() {
			return nil, fc.errorf(id, "%s is not an array", id.Name)
		}
		return l, nil
	}
	if fc.class.FieldSlot(id.Name) >= 0 {
		return nil, fc.errorf(id, "cannot store into field %s: fields are read-only", id.Name)
	}
	return nil, fc.errorf(id, "undefined: %s", id.Name)
}

// checkArrayLocalInit enforces that local arrays are only created by make,
// so a local can never alias a field.
func (fc *funcCompiler) checkArrayLocalInit(name string, value ir.Expr, at ast.Node) *Error {
	if !value.Type().IsArray() {
		return nil
	}
	if _, ok := value.(*ir.MakeArray); !ok {
		return fc.errorf(at, "local array %s must be initialised with make", name)
	}
	return nil
}

func (fc *funcCompiler) incDec(s *ast.IncDecStmt) ([]ir.Stmt, *Error) {
	id, ok := s.X.(*ast.Ident)
	if !ok {
		return nil, fc.errorf(s, "%s is only supported on local variables", s.Tok)
	}
	dst, err := fc.assignableLocal(id)
	if err != nil {
		return nil, err
	}
	if dst.T.IsArray() || !dst.T.Kind.IsNumeric() {
		return nil, fc.errorf(s, "invalid operation: %s%s (non-numeric type %s)", id.Name, s.Tok, dst.T)
	}
	op := ir.OpAdd
	if s.Tok == token.DEC {
		op = ir.OpSub
	}
	one, cerr := fc.constOf(constant.MakeInt64(1), dst.T, s)
	if cerr != nil {
		return nil, cerr
	}
	return []ir.Stmt{&ir.Assign{Dst: dst, Value: &ir.Binary{Op: op, X: dst, Y: one}}}, nil
}

func (fc *funcCompiler) varDecl(s *ast.DeclStmt) ([]ir.Stmt, *Error) {
	gd, ok := s.Decl.(*ast.GenDecl)
	if !ok || gd.Tok != token.VAR {
		return nil, fc.errorf(s, "only var declarations are supported")
	}
	var out []ir.Stmt
	for _, spec := range gd.Specs {
		vs := spec.(*ast.ValueSpec)
		if len(vs.Names) != 1 || len(vs.Values) > 1 {
			return nil, fc.errorf(vs, "declare one variable per var statement")
		}
		name := vs.Names[0].Name
		if _, exists := fc.scope.names[name]; exists {
			return nil, fc.errorf(vs, "%s redeclared in this block", name)
		}

		var value ir.Expr
		switch {
		case vs.Type != nil:
			t, err := fc.typeExpr(vs.Type)
			if err != nil {
				return nil, err
			}
			if len(vs.Values) == 1 {
				op, err := fc.expr(vs.Values[0])
				if err != nil {
					return nil, err
				}
				if value, err = fc.convert(op, t, vs.Values[0]); err != nil {
					return nil, err
				}
			} else {
				if t.IsArray() {
					return nil, fc.errorf(vs, "local array %s must be initialised with make", name)
				}
				value = zeroConst(t)
			}
		case len(vs.Values) == 1:
			op, err := fc.expr(vs.Values[0])
			if err != nil {
				return nil, err
			}
			if value, err = fc.materialize(op, vs.Values[0]); err != nil {
				return nil, err
			}
		default:
			return nil, fc.errorf(vs, "missing type or initializer for %s", name)
		}
		if err := fc.checkArrayLocalInit(name, value, vs); err != nil {
			return nil, err
		}
		dst := fc.declare(name, value.Type(), false)
		out = append(out, &ir.Assign{Dst: dst, Value: value})
	}
	return out, nil
}

func (fc *funcCompiler) forStmt(s *ast.ForStmt) (*ir.For, *Error) {
	init, ok := s.Init.(*ast.AssignStmt)
	if !ok || init.Tok != token.DEFINE || len(init.Lhs) != 1 || len(init.Rhs) != 1 {
		return nil, fc.errorf(s, "loops must have the form for i := start; i < end; i++")
	}
	id, ok := init.Lhs[0].(*ast.Ident)
	if !ok {
		return nil, fc.errorf(init, "loop variable must be an identifier")
	}

	startOp, err := fc.expr(init.Rhs[0])
	if err != nil {
		return nil, err
	}
	start, err := fc.convert(startOp, ir.Scalar(ir.KindInt), init.Rhs[0])
	if err != nil {
		return nil, err
	}

	cond, ok := s.Cond.(*ast.BinaryExpr)
	if !ok || cond.Op != token.LSS {
		return nil, fc.errorf(s, "loop condition must be %s < end", id.Name)
	}
	if cid, ok := cond.X.(*ast.Ident); !ok || cid.Name != id.Name {
		return nil, fc.errorf(cond, "loop condition must test %s", id.Name)
	}
	post, ok := s.Post.(*ast.IncDecStmt)
	if !ok || post.Tok != token.INC {
		return nil, fc.errorf(s, "loop post statement must be %s++", id.Name)
	}
	if pid, ok := post.X.(*ast.Ident); !ok || pid.Name != id.Name {
		return nil, fc.errorf(post, "loop post statement must increment %s", id.Name)
	}

	// The bound is evaluated before the loop variable is in scope.
	endOp, err := fc.expr(cond.Y)
	if err != nil {
		return nil, err
	}
	end, err := fc.convert(endOp, ir.Scalar(ir.KindInt), cond.Y)
	if err != nil {
		return nil, err
	}

	fc.push()
	defer fc.pop()
	v := fc.declare(id.Name, ir.Scalar(ir.KindInt), false)
	loop := &ir.For{ID: fc.method.NumLoops, Var: v, Start: start, End: end}
	fc.method.NumLoops++

	fc.loopVars[v.Slot] = true
	body, err := fc.block(s.Body.List)
	delete(fc.loopVars, v.Slot)
	if err != nil {
		return nil, err
	}
	if assigned := assignedSlots(body); exprUsesSlots(end, assigned) {
		return nil, fc.errorf(cond.Y, "loop bound must not change inside the loop")
	}
	loop.Body = body
	return loop, nil
}

func (fc *funcCompiler) returnStmt(s *ast.ReturnStmt) ([]ir.Stmt, *Error) {
	want := fc.method.Result
	if len(s.Results) == 0 {
		if !want.IsVoid() {
			return nil, fc.errorf(s, "not enough return values: want %s", want)
		}
		return []ir.Stmt{&ir.Return{}}, nil
	}
	if len(s.Results) > 1 {
		return nil, fc.errorf(s, "too many return values")
	}
	if want.IsVoid() {
		return nil, fc.errorf(s, "too many return values")
	}
	op, err := fc.expr(s.Results[0])
	if err != nil {
		return nil, err
	}
	value, err := fc.convert(op, want, s.Results[0])
	if err != nil {
		return nil, err
	}
	return []ir.Stmt{&ir.Return{Value: value}}, nil
}

// ---- expressions ----

func (fc *funcCompiler) expr(e ast.Expr) (operand, *Error) {
	switch e := e.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT, token.FLOAT:
			v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
			if v.Kind() == constant.Unknown {
				return operand{}, fc.errorf(e, "malformed constant %s", e.Value)
			}
			return operand{untyped: true, value: v}, nil
		default:
			return operand{}, fc.errorf(e, "unsupported literal %s", e.Value)
		}

	case *ast.Ident:
		switch e.Name {
		case "true", "false":
			return operand{expr: &ir.Const{T: ir.Scalar(ir.KindBool), Bool: e.Name == "true"}}, nil
		}
		if l := fc.scope.lookup(e.Name); l != nil {
			return operand{expr: l}, nil
		}
		if slot := fc.class.FieldSlot(e.Name); slot >= 0 {
			f := fc.class.Fields[slot]
			return operand{expr: &ir.FieldRef{Name: f.Name, T: f.T, Slot: slot}}, nil
		}
		return operand{}, fc.errorf(e, "undefined: %s", e.Name)

	case *ast.ParenExpr:
		return fc.expr(e.X)

	case *ast.IndexExpr:
		arr, err := fc.expr(e.X)
		if err != nil {
			return operand{}, err
		}
		if arr.untyped || !arr.expr.Type().IsArray() {
			return operand{}, fc.errorf(e.X, "cannot index non-array")
		}
		idx, err := fc.index(e.Index)
		if err != nil {
			return operand{}, err
		}
		return operand{expr: &ir.Index{Array: arr.expr, Index: idx}}, nil

	case *ast.UnaryExpr:
		x, err := fc.expr(e.X)
		if err != nil {
			return operand{}, err
		}
		return fc.unary(e, x)

	case *ast.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return operand{}, fc.errorf(e, "unsupported operator %s", e.Op)
		}
		x, err := fc.expr(e.X)
		if err != nil {
			return operand{}, err
		}
		y, err := fc.expr(e.Y)
		if err != nil {
			return operand{}, err
		}
		if x.untyped && y.untyped {
			return fc.foldBinary(e, x, y)
		}
		out, err := fc.binary(op, x, y, e)
		if err != nil {
			return operand{}, err
		}
		return operand{expr: out}, nil

	case *ast.CallExpr:
		return fc.call(e)

	default:
		return operand{}, fc.errorf(e, "unsupported expression %T", e)
	}
}

var binaryOps = map[token.Token]ir.BinaryOp{
	token.ADD: ir.OpAdd,
	token.SUB: ir.OpSub,
	token.MUL: ir.OpMul,
	token.QUO: ir.OpDiv,
	token.REM: ir.OpRem,
	token.AND: ir.OpAnd,
	token.OR:  ir.OpOr,
	token.XOR: ir.OpXor,
	token.SHL: ir.OpShl,
	token.SHR: ir.OpShr,
}

func (fc *funcCompiler) index(e ast.Expr) (ir.Expr, *Error) {
	op, err := fc.expr(e)
	if err != nil {
		return nil, err
	}
	return fc.convert(op, ir.Scalar(ir.KindInt), e)
}

func (fc *funcCompiler) unary(e *ast.UnaryExpr, x operand) (operand, *Error) {
	if x.untyped {
		switch e.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return operand{untyped: true, value: constant.UnaryOp(token.SUB, x.value, 0)}, nil
		case token.XOR:
			if x.value.Kind() != constant.Int {
				return operand{}, fc.errorf(e, "operator ^ not defined on untyped float")
			}
			return operand{untyped: true, value: constant.UnaryOp(token.XOR, x.value, 0)}, nil
		}
		return operand{}, fc.errorf(e, "unsupported operator %s", e.Op)
	}

	t := x.expr.Type()
	if t.IsArray() || !t.Kind.IsNumeric() {
		return operand{}, fc.errorf(e, "operator %s not defined on %s", e.Op, t)
	}
	switch e.Op {
	case token.ADD:
		return x, nil
	case token.SUB:
		return operand{expr: &ir.Unary{Op: ir.OpNeg, X: x.expr}}, nil
	case token.XOR:
		if !t.Kind.IsInteger() {
			return operand{}, fc.errorf(e, "operator ^ not defined on %s", t)
		}
		return operand{expr: &ir.Unary{Op: ir.OpNot, X: x.expr}}, nil
	default:
		return operand{}, fc.errorf(e, "unsupported operator %s", e.Op)
	}
}

func (fc *funcCompiler) foldBinary(e *ast.BinaryExpr, x, y operand) (operand, *Error) {
	switch e.Op {
	case token.SHL, token.SHR:
		n, ok := constant.Uint64Val(constant.ToInt(y.value))
		if !ok || x.value.Kind() != constant.Int {
			return operand{}, fc.errorf(e, "invalid constant shift")
		}
		return operand{untyped: true, value: constant.Shift(x.value, e.Op, uint(n))}, nil
	case token.QUO:
		if constant.Sign(y.value) == 0 {
			return operand{}, fc.errorf(e, "invalid operation: division by zero")
		}
		if x.value.Kind() == constant.Int && y.value.Kind() == constant.Int {
			return operand{untyped: true, value: constant.BinaryOp(x.value, token.QUO_ASSIGN, y.value)}, nil
		}
	case token.REM:
		if x.value.Kind() != constant.Int || y.value.Kind() != constant.Int {
			return operand{}, fc.errorf(e, "operator %% not defined on untyped float")
		}
		if constant.Sign(y.value) == 0 {
			return operand{}, fc.errorf(e, "invalid operation: division by zero")
		}
	case token.AND, token.OR, token.XOR:
		if x.value.Kind() != constant.Int || y.value.Kind() != constant.Int {
			return operand{}, fc.errorf(e, "operator %s not defined on untyped float", e.Op)
		}
	}
	return operand{untyped: true, value: constant.BinaryOp(x.value, e.Op, y.value)}, nil
}

// binary type-checks x op y, converting an untyped side to the other side's
// type. Shift counts are always int32.
func (fc *funcCompiler) binary(op ir.BinaryOp, x, y operand, at ast.Node) (ir.Expr, *Error) {
	if op.IsShift() {
		xe, err := fc.materialize(x, at)
		if err != nil {
			return nil, err
		}
		if xe.Type().IsArray() || !xe.Type().Kind.IsInteger() {
			return nil, fc.errorf(at, "shift of non-integer %s", xe.Type())
		}
		ye, err := fc.convert(y, ir.Scalar(ir.KindInt), at)
		if err != nil {
			return nil, err
		}
		return &ir.Binary{Op: op, X: xe, Y: ye}, nil
	}

	var xe, ye ir.Expr
	var err *Error
	switch {
	case x.untyped:
		ye = y.expr
		if xe, err = fc.convert(x, ye.Type(), at); err != nil {
			return nil, err
		}
	case y.untyped:
		xe = x.expr
		if ye, err = fc.convert(y, xe.Type(), at); err != nil {
			return nil, err
		}
	default:
		xe, ye = x.expr, y.expr
	}

	t := xe.Type()
	if t != ye.Type() {
		return nil, fc.errorf(at, "invalid operation: mismatched types %s and %s", t, ye.Type())
	}
	if t.IsArray() || !t.Kind.IsNumeric() {
		return nil, fc.errorf(at, "operator %s not defined on %s", op, t)
	}
	if op.IsBitwise() && !t.Kind.IsInteger() {
		return nil, fc.errorf(at, "operator %s not defined on %s", op, t)
	}
	if c, ok := ye.(*ir.Const); ok && (op == ir.OpDiv || op == ir.OpRem) && t.Kind.IsInteger() && c.Int == 0 {
		return nil, fc.errorf(at, "invalid operation: division by zero")
	}
	return &ir.Binary{Op: op, X: xe, Y: ye}, nil
}

func (fc *funcCompiler) call(e *ast.CallExpr) (operand, *Error) {
	if e.Ellipsis.IsValid() {
		return operand{}, fc.errorf(e, "variadic calls are not supported")
	}

	// Conversions T(x) to a numeric kind.
	if t, err := fc.typeExpr(e.Fun); err == nil {
		if len(e.Args) != 1 {
			return operand{}, fc.errorf(e, "conversion to %s needs exactly one argument", t)
		}
		if t.IsArray() || !t.Kind.IsNumeric() {
			return operand{}, fc.errorf(e, "cannot convert to %s", t)
		}
		x, err := fc.expr(e.Args[0])
		if err != nil {
			return operand{}, err
		}
		if x.untyped {
			if t.Kind.IsInteger() {
				x.value = wrapUnsigned(x.value, t.Kind)
			}
			c, err := fc.convert(x, t, e.Args[0])
			if err != nil {
				return operand{}, err
			}
			return operand{expr: c}, nil
		}
		xt := x.expr.Type()
		if xt.IsArray() || !xt.Kind.IsNumeric() {
			return operand{}, fc.errorf(e, "cannot convert %s to %s", xt, t)
		}
		if xt == t {
			return x, nil
		}
		return operand{expr: &ir.Conv{X: x.expr, T: t}}, nil
	}

	id, ok := e.Fun.(*ast.Ident)
	if !ok {
		return operand{}, fc.errorf(e, "unsupported call")
	}
	switch id.Name {
	case "len":
		if len(e.Args) != 1 {
			return operand{}, fc.errorf(e, "len needs one argument")
		}
		x, err := fc.expr(e.Args[0])
		if err != nil {
			return operand{}, err
		}
		if x.untyped || !x.expr.Type().IsArray() {
			return operand{}, fc.errorf(e.Args[0], "invalid argument for len")
		}
		return operand{expr: &ir.Len{Array: x.expr}}, nil

	case "make":
		if len(e.Args) != 2 {
			return operand{}, fc.errorf(e, "make needs a slice type and a length")
		}
		t, terr := fc.typeExpr(e.Args[0])
		if terr != nil {
			return operand{}, terr
		}
		if t.Dims != 1 || !t.Kind.IsNumeric() {
			return operand{}, fc.errorf(e.Args[0], "make supports one-dimensional slices only, got %s", t)
		}
		n, err := fc.expr(e.Args[1])
		if err != nil {
			return operand{}, err
		}
		length, err := fc.convert(n, ir.Scalar(ir.KindInt), e.Args[1])
		if err != nil {
			return operand{}, err
		}
		return operand{expr: &ir.MakeArray{Elem: t.Kind, Len: length}}, nil

	case "min", "max":
		if len(e.Args) < 2 {
			return operand{}, fc.errorf(e, "%s needs at least two arguments", id.Name)
		}
		acc, err := fc.expr(e.Args[0])
		if err != nil {
			return operand{}, err
		}
		for _, arg := range e.Args[1:] {
			next, err := fc.expr(arg)
			if err != nil {
				return operand{}, err
			}
			acc, err = fc.minMax(id.Name == "max", acc, next, e)
			if err != nil {
				return operand{}, err
			}
		}
		return acc, nil

	case "abs", "popcount":
		if len(e.Args) != 1 {
			return operand{}, fc.errorf(e, "%s needs one argument", id.Name)
		}
		x, err := fc.expr(e.Args[0])
		if err != nil {
			return operand{}, err
		}
		xe, err := fc.materialize(x, e.Args[0])
		if err != nil {
			return operand{}, err
		}
		op := ir.OpAbs
		if id.Name == "popcount" {
			op = ir.OpPopCount
		}
		t := xe.Type()
		if t.IsArray() || !t.Kind.IsNumeric() || (op == ir.OpPopCount && !t.Kind.IsInteger()) {
			return operand{}, fc.errorf(e.Args[0], "invalid argument for %s: %s", id.Name, t)
		}
		return operand{expr: &ir.Unary{Op: op, X: xe}}, nil

	case "ushr":
		if len(e.Args) != 2 {
			return operand{}, fc.errorf(e, "ushr needs a value and a shift count")
		}
		x, err := fc.expr(e.Args[0])
		if err != nil {
			return operand{}, err
		}
		n, err := fc.expr(e.Args[1])
		if err != nil {
			return operand{}, err
		}
		out, err := fc.binary(ir.OpUshr, x, n, e)
		if err != nil {
			return operand{}, err
		}
		return operand{expr: out}, nil

	default:
		return operand{}, fc.errorf(e, "call of unsupported function %s", id.Name)
	}
}

func (fc *funcCompiler) minMax(isMax bool, x, y operand, at ast.Node) (operand, *Error) {
	if x.untyped && y.untyped {
		if constant.Compare(x.value, token.LSS, y.value) == isMax {
			return y, nil
		}
		return x, nil
	}
	var xe, ye ir.Expr
	var err *Error
	switch {
	case x.untyped:
		ye = y.expr
		xe, err = fc.convert(x, ye.Type(), at)
	case y.untyped:
		xe = x.expr
		ye, err = fc.convert(y, xe.Type(), at)
	default:
		xe, ye = x.expr, y.expr
	}
	if err != nil {
		return operand{}, err
	}
	if xe.Type() != ye.Type() || xe.Type().IsArray() || !xe.Type().Kind.IsNumeric() {
		return operand{}, fc.errorf(at, "invalid arguments to min/max: %s and %s", xe.Type(), ye.Type())
	}
	return operand{expr: &ir.MinMax{Max: isMax, X: xe, Y: ye}}, nil
}

// ---- constants and conversion ----

// materialize gives an operand a concrete type, defaulting untyped
// constants to int32 or float64.
func (fc *funcCompiler) materialize(op operand, at ast.Node) (ir.Expr, *Error) {
	if !op.untyped {
		return op.expr, nil
	}
	if op.value.Kind() == constant.Float {
		return fc.constOf(op.value, ir.Scalar(ir.KindDouble), at)
	}
	return fc.constOf(op.value, ir.Scalar(ir.KindInt), at)
}

// convert checks op against t. Untyped constants must be representable;
// typed operands must already have type t.
func (fc *funcCompiler) convert(op operand, t ir.Type, at ast.Node) (ir.Expr, *Error) {
	if op.untyped {
		return fc.constOf(op.value, t, at)
	}
	if op.expr.Type() != t {
		return nil, fc.errorf(at, "cannot use value of type %s as %s", op.expr.Type(), t)
	}
	return op.expr, nil
}

func (fc *funcCompiler) constOf(v constant.Value, t ir.Type, at ast.Node) (*ir.Const, *Error) {
	if t.IsArray() {
		return nil, fc.errorf(at, "cannot use constant as %s", t)
	}
	switch t.Kind {
	case ir.KindInt, ir.KindLong:
		iv := constant.ToInt(v)
		if iv.Kind() != constant.Int {
			return nil, fc.errorf(at, "constant %s truncated to integer", v)
		}
		n, exact := constant.Int64Val(iv)
		if !exact || (t.Kind == ir.KindInt && (n < math.MinInt32 || n > math.MaxInt32)) {
			return nil, fc.errorf(at, "constant %s overflows %s", v, t)
		}
		return &ir.Const{T: t, Int: n}, nil
	case ir.KindFloat:
		f, _ := constant.Float32Val(constant.ToFloat(v))
		return &ir.Const{T: t, Float: float64(f)}, nil
	case ir.KindDouble:
		f, _ := constant.Float64Val(constant.ToFloat(v))
		return &ir.Const{T: t, Float: f}, nil
	default:
		return nil, fc.errorf(at, "cannot use constant as %s", t)
	}
}

// wrapUnsigned reinterprets a non-negative integer constant that fits the
// unsigned form of k as its two's complement value, so int32(0xffffffff)
// is -1. Other constants are returned unchanged.
func wrapUnsigned(v constant.Value, k ir.Kind) constant.Value {
	if v.Kind() != constant.Int || constant.Sign(v) < 0 {
		return v
	}
	u, exact := constant.Uint64Val(v)
	if !exact {
		return v
	}
	switch k {
	case ir.KindInt:
		if u > math.MaxInt32 && u <= math.MaxUint32 {
			return constant.MakeInt64(int64(int32(uint32(u))))
		}
	case ir.KindLong:
		if u > math.MaxInt64 {
			return constant.MakeInt64(int64(u))
		}
	}
	return v
}

func zeroConst(t ir.Type) *ir.Const {
	return &ir.Const{T: t}
}

// ---- slot analysis ----

func assignedSlots(stmts []ir.Stmt) map[int]bool {
	out := make(map[int]bool)
	var walk func([]ir.Stmt)
	walk = func(list []ir.Stmt) {
		for _, s := range list {
			switch s := s.(type) {
			case *ir.Assign:
				out[s.Dst.Slot] = true
			case *ir.For:
				out[s.Var.Slot] = true
				walk(s.Body)
			}
		}
	}
	walk(stmts)
	return out
}

func exprUsesSlots(e ir.Expr, slots map[int]bool) bool {
	switch e := e.(type) {
	case *ir.LocalRef:
		return slots[e.Slot]
	case *ir.Index:
		return exprUsesSlots(e.Array, slots) || exprUsesSlots(e.Index, slots)
	case *ir.Len:
		return exprUsesSlots(e.Array, slots)
	case *ir.Binary:
		return exprUsesSlots(e.X, slots) || exprUsesSlots(e.Y, slots)
	case *ir.Unary:
		return exprUsesSlots(e.X, slots)
	case *ir.MinMax:
		return exprUsesSlots(e.X, slots) || exprUsesSlots(e.Y, slots)
	case *ir.Conv:
		return exprUsesSlots(e.X, slots)
	case *ir.MakeArray:
		return exprUsesSlots(e.Len, slots)
	default:
		return false
	}
}
