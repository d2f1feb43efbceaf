// Package frontend compiles kernel source written in Go syntax into ir.
//
// A suite's source is a list of top-level functions. Functions read the
// suite's fields by name, allocate local arrays with make, loop with counted
// for statements and return a scalar or an array:
//
//	//vec:kernel
//	//vec:ir AddVI
//	func AddInts() []int32 {
//		res := make([]int32, len(a))
//		for i := 0; i < len(a); i++ {
//			res[i] = a[i] + b[i]
//		}
//		return res
//	}
//
// Comment directives of the form //vec:<name> args... are attached to the
// method verbatim; the harness interprets them.
//
// Untyped constants follow Go rules: they take the type of the other operand
// and default to int32 or float64 when nothing fixes their type.
package frontend

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/roach88/vecverify/internal/ir"
)

// Source is one unit of kernel source.
type Source struct {
	// Class is the suite name; methods become Class.method in the runtime.
	Class string

	// File and Line locate Code for error positions. Line is the line of
	// File on which Code starts (1 if Code is a whole file).
	File string
	Line int

	// Fields are the suite's dataset fields, visible to every method.
	Fields []ir.Field

	// Code is the Go-syntax source, without a package clause.
	Code string
}

// Error is a compile error with a source position.
type Error struct {
	Pos string
	Msg string
}

func (e *Error) Error() string {
	if e.Pos == "" {
		return e.Msg
	}
	return e.Pos + ": " + e.Msg
}

// ErrorList collects every error found in a source unit.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s (and %d more errors)\n%s", l[0].Error(), len(l)-1, strings.Join(msgs[1:], "\n"))
}

// Compile parses and type-checks src and returns the suite class.
// Errors in one method do not stop other methods from being checked.
func Compile(src Source) (*ir.Class, error) {
	fset := token.NewFileSet()
	file, err := parseSource(fset, src)
	if err != nil {
		return nil, err
	}

	class := &ir.Class{Name: src.Class, Fields: append([]ir.Field(nil), src.Fields...)}
	var errs ErrorList
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok {
			errs = append(errs, &Error{Pos: fset.Position(decl.Pos()).String(), Msg: "only function declarations are allowed in kernel source"})
			continue
		}
		m, err := compileFunc(fset, class, fd)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		class.Methods = append(class.Methods, m)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if verrs := ir.Validate(class); len(verrs) > 0 {
		for _, ve := range verrs {
			errs = append(errs, &Error{Pos: src.File, Msg: ve.Error()})
		}
		return nil, errs
	}
	return class, nil
}

// CompileInit compiles a field initializer into a helper method.
//
// The method is named name, returns elem, and takes an int32 parameter i when
// indexed is true (array fields are initialised element by element). A
// numeric result of a different kind is converted to elem.
func CompileInit(class *ir.Class, name, file, expr string, elem ir.Kind, indexed bool) (*ir.Method, error) {
	fset := token.NewFileSet()
	e, err := parser.ParseExprFrom(fset, file, expr, 0)
	if err != nil {
		return nil, &Error{Pos: file, Msg: fmt.Sprintf("field %s: %v", name, err)}
	}

	m := &ir.Method{Name: name, Result: ir.Scalar(elem), Pos: file}
	fc := newFuncCompiler(fset, class, m)
	if indexed {
		fc.declare("i", ir.Scalar(ir.KindInt), true)
	}

	op, ferr := fc.expr(e)
	if ferr != nil {
		return nil, ferr
	}
	var value ir.Expr
	if op.untyped {
		value, ferr = fc.convert(op, ir.Scalar(elem), e)
		if ferr != nil {
			return nil, ferr
		}
	} else {
		value = op.expr
		if value.Type().IsArray() || !value.Type().Kind.IsNumeric() {
			return nil, fc.errorf(e, "initializer of %s has type %s", name, value.Type())
		}
		if value.Type().Kind != elem {
			value = &ir.Conv{X: value, T: ir.Scalar(elem)}
		}
	}
	m.Body = []ir.Stmt{&ir.Return{Value: value}}
	return m, nil
}

func parseSource(fset *token.FileSet, src Source) (*ast.File, error) {
	line := src.Line
	if line <= 0 {
		line = 1
	}
	file := src.File
	if file == "" {
		file = src.Class + ".go"
	}
	// The line directive maps positions back into the suite file.
	text := fmt.Sprintf("package %s\n//line %s:%d\n%s", "kernels", file, line, src.Code)
	f, err := parser.ParseFile(fset, file, text, parser.ParseComments)
	if err != nil {
		return nil, &Error{Msg: err.Error()}
	}
	return f, nil
}

func compileFunc(fset *token.FileSet, class *ir.Class, fd *ast.FuncDecl) (*ir.Method, *Error) {
	m := &ir.Method{
		Name: fd.Name.Name,
		Pos:  fset.Position(fd.Pos()).String(),
	}
	fc := newFuncCompiler(fset, class, m)

	if fd.Recv != nil {
		return nil, fc.errorf(fd, "methods with receivers are not supported")
	}
	if fd.Type.TypeParams != nil {
		return nil, fc.errorf(fd, "generic functions are not supported")
	}
	m.Directives = parseDirectives(fset, fd.Doc)

	for _, p := range fd.Type.Params.List {
		t, err := fc.typeExpr(p.Type)
		if err != nil {
			return nil, err
		}
		if len(p.Names) == 0 {
			fc.declare("_", t, true)
			continue
		}
		for _, n := range p.Names {
			fc.declare(n.Name, t, true)
		}
	}

	m.Result = ir.Void
	if fd.Type.Results != nil {
		if len(fd.Type.Results.List) != 1 || len(fd.Type.Results.List[0].Names) > 1 {
			return nil, fc.errorf(fd.Type.Results, "at most one result is supported")
		}
		t, err := fc.typeExpr(fd.Type.Results.List[0].Type)
		if err != nil {
			return nil, err
		}
		m.Result = t
	}

	if fd.Body == nil {
		return nil, fc.errorf(fd, "function %s has no body", m.Name)
	}
	body, err := fc.block(fd.Body.List)
	if err != nil {
		return nil, err
	}
	m.Body = body
	if !m.Result.IsVoid() {
		if len(body) == 0 {
			return nil, fc.errorf(fd.Body, "missing return")
		}
		if _, ok := body[len(body)-1].(*ir.Return); !ok {
			return nil, fc.errorAt(fd.Body.Rbrace, "missing return")
		}
	}
	return m, nil
}

// parseDirectives extracts //vec:name args... lines from a doc comment.
func parseDirectives(fset *token.FileSet, doc *ast.CommentGroup) []ir.Directive {
	if doc == nil {
		return nil
	}
	var out []ir.Directive
	for _, c := range doc.List {
		text, ok := strings.CutPrefix(c.Text, "//vec:")
		if !ok {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		out = append(out, ir.Directive{
			Name: fields[0],
			Args: fields[1:],
			Pos:  fset.Position(c.Pos()).String(),
		})
	}
	return out
}
