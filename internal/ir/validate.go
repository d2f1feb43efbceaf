package ir

import "fmt"

// Validation error codes (E200-E299)
const (
	ErrDuplicateMethod = "E201" // two methods with the same name
	ErrDuplicateField  = "E202" // two fields with the same name
	ErrOperandMismatch = "E203" // binary operands of different types
	ErrOperatorKind    = "E204" // operator not defined for the operand kind
	ErrStoreTarget     = "E205" // array store into something other than a local array
	ErrArrayLocalInit  = "E206" // local array assigned from something other than make
	ErrReturnType      = "E207" // return value does not match the declared result
	ErrLoopVar         = "E208" // loop variable or bounds are not int32
	ErrUnsupportedType = "E209" // multi-dimensional or void value used in a body
	ErrIndexType       = "E210" // array index is not int32
	ErrSlotOutOfRange  = "E211" // local or field slot outside the declared range
	ErrAssignType      = "E212" // assignment value does not match the local type
)

// ValidationError represents an IR validation error.
type ValidationError struct {
	Method  string `json:"method,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Validate checks a class for structural errors.
// Returns all errors found (does not fail-fast).
//
// Signature rules for kernels (zero parameters, numeric result) are not
// checked here; the harness registry owns that contract.
func Validate(c *Class) []ValidationError {
	var errs []ValidationError

	seenField := make(map[string]bool)
	for _, f := range c.Fields {
		if seenField[f.Name] {
			errs = append(errs, ValidationError{Code: ErrDuplicateField, Message: fmt.Sprintf("duplicate field %q", f.Name)})
		}
		seenField[f.Name] = true
	}

	seenMethod := make(map[string]bool)
	for _, m := range c.Methods {
		if seenMethod[m.Name] {
			errs = append(errs, ValidationError{Code: ErrDuplicateMethod, Message: fmt.Sprintf("duplicate method %q", m.Name)})
		}
		seenMethod[m.Name] = true

		v := &validator{class: c, method: m}
		v.stmts(m.Body)
		errs = append(errs, v.errs...)
	}
	return errs
}

type validator struct {
	class  *Class
	method *Method
	errs   []ValidationError
}

func (v *validator) fail(code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Method:  v.method.Name,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) stmts(stmts []Stmt) {
	for _, s := range stmts {
		v.stmt(s)
	}
}

func (v *validator) stmt(s Stmt) {
	switch s := s.(type) {
	case *Assign:
		v.local(s.Dst)
		v.expr(s.Value)
		if s.Dst.T != s.Value.Type() {
			v.fail(ErrAssignType, "cannot assign %s to %s (%s)", s.Value.Type(), s.Dst.Name, s.Dst.T)
		}
		if s.Dst.T.IsArray() {
			if _, ok := s.Value.(*MakeArray); !ok {
				v.fail(ErrArrayLocalInit, "local array %s must be initialised with make", s.Dst.Name)
			}
		}
	case *Store:
		if s.Array == nil {
			v.fail(ErrStoreTarget, "array store without a local target")
			return
		}
		v.local(s.Array)
		if !s.Array.T.IsArray() {
			v.fail(ErrStoreTarget, "%s is not an array", s.Array.Name)
		}
		v.expr(s.Index)
		if s.Index.Type() != Scalar(KindInt) {
			v.fail(ErrIndexType, "index of %s has type %s, want int32", s.Array.Name, s.Index.Type())
		}
		v.expr(s.Value)
		if s.Value.Type() != s.Array.T.Elem() {
			v.fail(ErrAssignType, "cannot store %s into %s", s.Value.Type(), s.Array.T)
		}
	case *For:
		v.local(s.Var)
		v.expr(s.Start)
		v.expr(s.End)
		if s.Var.T != Scalar(KindInt) || s.Start.Type() != Scalar(KindInt) || s.End.Type() != Scalar(KindInt) {
			v.fail(ErrLoopVar, "loop %d must use int32 variable and bounds", s.ID)
		}
		v.stmts(s.Body)
	case *Return:
		if s.Value == nil {
			if !v.method.Result.IsVoid() {
				v.fail(ErrReturnType, "missing return value of type %s", v.method.Result)
			}
			return
		}
		v.expr(s.Value)
		if s.Value.Type() != v.method.Result {
			v.fail(ErrReturnType, "return %s from method declared %s", s.Value.Type(), v.method.Result)
		}
	}
}

func (v *validator) local(l *LocalRef) {
	if l.Slot < 0 || l.Slot >= len(v.method.Locals) {
		v.fail(ErrSlotOutOfRange, "local %s has slot %d of %d", l.Name, l.Slot, len(v.method.Locals))
	}
	if l.T.Dims > 1 {
		v.fail(ErrUnsupportedType, "local %s has unsupported type %s", l.Name, l.T)
	}
}

func (v *validator) expr(e Expr) {
	switch e := e.(type) {
	case *Const:
	case *FieldRef:
		if e.Slot < 0 || e.Slot >= len(v.class.Fields) {
			v.fail(ErrSlotOutOfRange, "field %s has slot %d of %d", e.Name, e.Slot, len(v.class.Fields))
		}
		if e.T.Dims > 1 {
			v.fail(ErrUnsupportedType, "field %s has unsupported type %s", e.Name, e.T)
		}
	case *LocalRef:
		v.local(e)
	case *Index:
		v.expr(e.Array)
		v.expr(e.Index)
		if !e.Array.Type().IsArray() {
			v.fail(ErrIndexType, "indexing non-array %s", ExprString(e.Array))
		}
		if e.Index.Type() != Scalar(KindInt) {
			v.fail(ErrIndexType, "index %s has type %s, want int32", ExprString(e.Index), e.Index.Type())
		}
	case *Len:
		v.expr(e.Array)
	case *Binary:
		v.expr(e.X)
		v.expr(e.Y)
		xt := e.X.Type()
		if e.Op.IsShift() {
			if !xt.Kind.IsInteger() || e.Y.Type() != Scalar(KindInt) {
				v.fail(ErrOperatorKind, "shift %s needs integer operand and int32 count", ExprString(e))
			}
			return
		}
		if xt != e.Y.Type() {
			v.fail(ErrOperandMismatch, "mismatched operands in %s: %s and %s", ExprString(e), xt, e.Y.Type())
			return
		}
		if xt.IsArray() || !xt.Kind.IsNumeric() {
			v.fail(ErrOperatorKind, "operator %s not defined on %s", e.Op, xt)
		} else if e.Op.IsBitwise() && !xt.Kind.IsInteger() {
			v.fail(ErrOperatorKind, "operator %s not defined on %s", e.Op, xt)
		}
	case *Unary:
		v.expr(e.X)
		if (e.Op == OpNot || e.Op == OpPopCount) && !e.X.Type().Kind.IsInteger() {
			v.fail(ErrOperatorKind, "operator %s not defined on %s", e.Op, e.X.Type())
		}
	case *MinMax:
		v.expr(e.X)
		v.expr(e.Y)
		if e.X.Type() != e.Y.Type() {
			v.fail(ErrOperandMismatch, "mismatched operands in %s", ExprString(e))
		}
	case *Conv:
		v.expr(e.X)
		if e.T.IsArray() || !e.T.Kind.IsNumeric() || !e.X.Type().Kind.IsNumeric() || e.X.Type().IsArray() {
			v.fail(ErrOperatorKind, "cannot convert %s to %s", e.X.Type(), e.T)
		}
	case *MakeArray:
		v.expr(e.Len)
		if e.Len.Type() != Scalar(KindInt) {
			v.fail(ErrIndexType, "make length has type %s, want int32", e.Len.Type())
		}
	}
}
