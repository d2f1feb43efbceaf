package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Print renders a method in Go syntax. Output is deterministic and is used
// for IR dumps and golden files.
func Print(m *Method) string {
	var b strings.Builder
	for _, d := range m.Directives {
		b.WriteString("//vec:")
		b.WriteString(d.Name)
		for _, a := range d.Args {
			b.WriteByte(' ')
			b.WriteString(a)
		}
		b.WriteByte('\n')
	}
	b.WriteString("func ")
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", p.Name, p.T)
	}
	b.WriteByte(')')
	if !m.Result.IsVoid() {
		b.WriteByte(' ')
		b.WriteString(m.Result.String())
	}
	b.WriteString(" {\n")
	printStmts(&b, m.Body, 1)
	b.WriteString("}\n")
	return b.String()
}

func printStmts(b *strings.Builder, stmts []Stmt, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, s := range stmts {
		b.WriteString(indent)
		switch s := s.(type) {
		case *Assign:
			fmt.Fprintf(b, "%s = %s\n", s.Dst.Name, ExprString(s.Value))
		case *Store:
			fmt.Fprintf(b, "%s[%s] = %s\n", s.Array.Name, ExprString(s.Index), ExprString(s.Value))
		case *For:
			fmt.Fprintf(b, "for %s := %s; %s < %s; %s++ { // loop %d\n",
				s.Var.Name, ExprString(s.Start), s.Var.Name, ExprString(s.End), s.Var.Name, s.ID)
			printStmts(b, s.Body, depth+1)
			b.WriteString(indent)
			b.WriteString("}\n")
		case *Return:
			if s.Value == nil {
				b.WriteString("return\n")
			} else {
				fmt.Fprintf(b, "return %s\n", ExprString(s.Value))
			}
		default:
			fmt.Fprintf(b, "<unknown stmt %T>\n", s)
		}
	}
}

// ExprString renders an expression in Go syntax, fully parenthesized.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case *Const:
		return constString(e)
	case *FieldRef:
		return e.Name
	case *LocalRef:
		return e.Name
	case *Index:
		return fmt.Sprintf("%s[%s]", ExprString(e.Array), ExprString(e.Index))
	case *Len:
		return fmt.Sprintf("len(%s)", ExprString(e.Array))
	case *Binary:
		if e.Op == OpUshr {
			return fmt.Sprintf("ushr(%s, %s)", ExprString(e.X), ExprString(e.Y))
		}
		return fmt.Sprintf("(%s %s %s)", ExprString(e.X), e.Op, ExprString(e.Y))
	case *Unary:
		if e.Op.IsCall() {
			return fmt.Sprintf("%s(%s)", e.Op, ExprString(e.X))
		}
		return fmt.Sprintf("%s%s", e.Op, ExprString(e.X))
	case *MinMax:
		name := "min"
		if e.Max {
			name = "max"
		}
		return fmt.Sprintf("%s(%s, %s)", name, ExprString(e.X), ExprString(e.Y))
	case *Conv:
		return fmt.Sprintf("%s(%s)", e.T, ExprString(e.X))
	case *MakeArray:
		return fmt.Sprintf("make([]%s, %s)", e.Elem, ExprString(e.Len))
	default:
		return fmt.Sprintf("<unknown expr %T>", e)
	}
}

func constString(c *Const) string {
	switch c.T.Kind {
	case KindBool:
		return strconv.FormatBool(c.Bool)
	case KindInt, KindLong:
		return strconv.FormatInt(c.Int, 10)
	case KindFloat, KindDouble:
		bits := 64
		if c.T.Kind == KindFloat {
			bits = 32
		}
		if math.IsNaN(c.Float) || math.IsInf(c.Float, 0) {
			return fmt.Sprintf("%s(%v)", c.T, c.Float)
		}
		s := strconv.FormatFloat(c.Float, 'g', -1, bits)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	default:
		return "<void>"
	}
}
