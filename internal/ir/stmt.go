package ir

import "strings"

// Stmt is a sealed interface over kernel statements.
type Stmt interface {
	stmtNode()
}

// Assign writes Value into a local slot. The frontend desugars compound
// assignments (acc += x) into Assign{acc, Binary{acc, x}}.
type Assign struct {
	Dst   *LocalRef
	Value Expr
}

func (*Assign) stmtNode() {}

// Store writes Value into Array[Index]. Array is always a local array.
type Store struct {
	Array *LocalRef
	Index Expr
	Value Expr
}

func (*Store) stmtNode() {}

// For is a counted loop: for Var := Start; Var < End; Var++ { Body }.
// End is evaluated once before the first iteration. ID is unique within the
// method and keys loop profiles.
type For struct {
	ID    int
	Var   *LocalRef
	Start Expr
	End   Expr
	Body  []Stmt
}

func (*For) stmtNode() {}

// Return ends the method. Value is nil for void methods.
type Return struct {
	Value Expr
}

func (*Return) stmtNode() {}

// Local describes one local slot.
type Local struct {
	Name string
	T    Type
}

// Directive is a //vec:<name> comment attached to a method.
type Directive struct {
	Name string
	Args []string
	Pos  string
}

// Directive names recognised on kernel methods.
const (
	DirectiveKernel    = "kernel"
	DirectiveIR        = "ir"
	DirectiveTolerance = "tolerance"
)

// Method is a compiled-from-source kernel or helper method.
type Method struct {
	Name string

	// Params occupy the first len(Params) local slots.
	Params []Local

	Result Type
	Body   []Stmt

	// Locals lists every slot, parameters first.
	Locals []Local

	// NumLoops is the number of For statements; loop IDs are 0..NumLoops-1.
	NumLoops int

	Directives []Directive

	// Pos is the source position of the declaration ("file:line:col").
	Pos string
}

// HasDirective reports whether the method carries //vec:<name>.
func (m *Method) HasDirective(name string) bool {
	for _, d := range m.Directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

// DirectiveArgs returns the arguments of every //vec:<name> line, in order.
func (m *Method) DirectiveArgs(name string) []string {
	var args []string
	for _, d := range m.Directives {
		if d.Name == name {
			args = append(args, d.Args...)
		}
	}
	return args
}

// Field is a read-only field of a suite class.
type Field struct {
	Name string
	T    Type
}

// Class is a suite: its fields form the dataset, its methods include the
// kernels. Methods keep declaration order.
type Class struct {
	Name    string
	Fields  []Field
	Methods []*Method
}

// Method returns the method with the given name, or nil.
func (c *Class) Method(name string) *Method {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// FieldSlot returns the slot of the named field, or -1.
func (c *Class) FieldSlot(name string) int {
	for i, f := range c.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// QualifiedName returns "Class.method", the key used by the runtime.
func QualifiedName(class, method string) string {
	return class + "." + method
}

// SplitQualifiedName splits "Class.method". ok is false when there is no dot.
func SplitQualifiedName(q string) (class, method string, ok bool) {
	i := strings.LastIndexByte(q, '.')
	if i <= 0 || i == len(q)-1 {
		return "", "", false
	}
	return q[:i], q[i+1:], true
}
