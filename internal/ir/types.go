package ir

import (
	"fmt"
	"strings"
)

// Kind is the element kind of a value.
type Kind int

const (
	// KindVoid is the result kind of methods that return nothing.
	KindVoid Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindInt is a 32-bit two's complement integer.
	KindInt
	// KindLong is a 64-bit two's complement integer.
	KindLong
	// KindFloat is an IEEE 754 binary32 value.
	KindFloat
	// KindDouble is an IEEE 754 binary64 value.
	KindDouble
)

// String returns the Go spelling of the kind, as used in kernel source.
func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int32"
	case KindLong:
		return "int64"
	case KindFloat:
		return "float32"
	case KindDouble:
		return "float64"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Suffix returns the opcode suffix for the kind (I, L, F, D, Z).
func (k Kind) Suffix() string {
	switch k {
	case KindInt:
		return "I"
	case KindLong:
		return "L"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindBool:
		return "Z"
	default:
		return ""
	}
}

// Size returns the storage size of one element in bytes.
func (k Kind) Size() int {
	switch k {
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 4
	case KindLong, KindDouble:
		return 8
	default:
		return 0
	}
}

// IsNumeric reports whether k is an integer or floating-point kind.
func (k Kind) IsNumeric() bool {
	return k.IsInteger() || k.IsFloat()
}

// IsInteger reports whether k is int32 or int64.
func (k Kind) IsInteger() bool {
	return k == KindInt || k == KindLong
}

// IsFloat reports whether k is float32 or float64.
func (k Kind) IsFloat() bool {
	return k == KindFloat || k == KindDouble
}

// KindByName maps a Go type name to a Kind. "int" is accepted as an alias of
// int32 so kernel source reads naturally.
func KindByName(name string) (Kind, bool) {
	switch name {
	case "bool":
		return KindBool, true
	case "int", "int32":
		return KindInt, true
	case "int64":
		return KindLong, true
	case "float32":
		return KindFloat, true
	case "float64":
		return KindDouble, true
	default:
		return KindVoid, false
	}
}

// Type is a scalar or array type. Dims counts array dimensions.
type Type struct {
	Kind Kind
	Dims int
}

// Void is the type of methods without a result.
var Void = Type{Kind: KindVoid}

// Scalar returns the scalar type of kind k.
func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// ArrayOf returns the one-dimensional array type with element kind k.
func ArrayOf(k Kind) Type {
	return Type{Kind: k, Dims: 1}
}

// IsArray reports whether t has at least one dimension.
func (t Type) IsArray() bool {
	return t.Dims > 0
}

// IsVoid reports whether t is the void type.
func (t Type) IsVoid() bool {
	return t.Kind == KindVoid && t.Dims == 0
}

// Elem returns the element type of an array type.
func (t Type) Elem() Type {
	if t.Dims == 0 {
		return t
	}
	return Type{Kind: t.Kind, Dims: t.Dims - 1}
}

// String returns the Go spelling of the type ("[]int32", "float64").
func (t Type) String() string {
	return strings.Repeat("[]", t.Dims) + t.Kind.String()
}

// ParseType parses a Go type spelling such as "[]float32" or "int64".
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	dims := 0
	for strings.HasPrefix(s, "[]") {
		dims++
		s = s[2:]
	}
	k, ok := KindByName(s)
	if !ok {
		return Type{}, fmt.Errorf("unknown type %q", s)
	}
	return Type{Kind: k, Dims: dims}, nil
}
