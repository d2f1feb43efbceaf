package harness

import (
	"strings"

	"github.com/roach88/vecverify/internal/ir"
)

// Kernel is one verified operation of a suite: a zero-argument method
// returning a numeric scalar or one-dimensional numeric array. Kernels are
// built by Discover and never modified afterwards.
type Kernel struct {
	// Name is the method name.
	Name string

	// Method is the qualified "Suite.Name" the runtime knows the method by.
	Method string

	Result ir.Type

	// Tags are the expected-IR assertions, in directive order.
	Tags []Tag

	Tolerance Tolerance

	// Pos is the source position of the declaration.
	Pos string
}

// Reduction reports whether the kernel produces a scalar.
func (k *Kernel) Reduction() bool {
	return !k.Result.IsArray()
}

// Discover returns the kernels of class in declaration order. A method is a
// kernel iff it carries //vec:kernel. Floating-point kernels without a
// //vec:tolerance directive get their policy from defaults.
//
// Any malformed kernel, and a class without kernels, is an
// INVALID_KERNEL_SIGNATURE error.
func Discover(class *ir.Class, defaults Tolerances) ([]*Kernel, error) {
	var kernels []*Kernel
	for _, m := range class.Methods {
		if !m.HasDirective(ir.DirectiveKernel) {
			for _, d := range m.Directives {
				if d.Name == ir.DirectiveIR || d.Name == ir.DirectiveTolerance {
					return nil, invalidSignature(m.Name, d.Pos, "//vec:%s without //vec:kernel", d.Name)
				}
			}
			continue
		}
		k, err := newKernel(class, m, defaults)
		if err != nil {
			return nil, err
		}
		kernels = append(kernels, k)
	}
	if len(kernels) == 0 {
		return nil, invalidSignature("", "", "no kernels found in suite %s", class.Name)
	}
	return kernels, nil
}

func newKernel(class *ir.Class, m *ir.Method, defaults Tolerances) (*Kernel, error) {
	if len(m.Params) > 0 {
		return nil, invalidSignature(m.Name, m.Pos, "kernel takes %d parameters, want none", len(m.Params))
	}
	if m.Result.Dims > 1 || !m.Result.Kind.IsNumeric() {
		return nil, invalidSignature(m.Name, m.Pos, "unsupported result type %s: want a numeric scalar or one-dimensional numeric array", m.Result)
	}

	k := &Kernel{
		Name:      m.Name,
		Method:    ir.QualifiedName(class.Name, m.Name),
		Result:    m.Result,
		Tolerance: defaults.For(m.Result),
		Pos:       m.Pos,
	}

	explicit := false
	for _, d := range m.Directives {
		switch d.Name {
		case ir.DirectiveIR:
			if len(d.Args) == 0 {
				return nil, invalidSignature(m.Name, d.Pos, "//vec:ir needs at least one tag")
			}
			for _, arg := range d.Args {
				tag, err := ParseTag(arg)
				if err != nil {
					return nil, invalidSignature(m.Name, d.Pos, "%v", err)
				}
				k.Tags = append(k.Tags, tag)
			}
		case ir.DirectiveTolerance:
			if explicit {
				return nil, invalidSignature(m.Name, d.Pos, "duplicate //vec:tolerance")
			}
			tol, err := ParseTolerance(strings.Join(d.Args, ""))
			if err != nil {
				return nil, invalidSignature(m.Name, d.Pos, "%v", err)
			}
			if m.Result.Kind.IsInteger() && tol.Mode != ToleranceExact {
				return nil, invalidSignature(m.Name, d.Pos, "tolerance %s on %s kernel: integer kernels are exact", tol, m.Result)
			}
			k.Tolerance = tol
			explicit = true
		}
	}
	return k, nil
}
