package interp

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/roach88/vecverify/internal/ir"
)

// Instance is one instance of a suite class: the field values form the
// dataset every kernel of the suite reads.
//
// Fields are set once, then the instance is frozen. Verify detects any
// later modification.
type Instance struct {
	class  *ir.Class
	fields []Value
	frozen string
}

// NewInstance creates an instance with zero-valued fields.
func NewInstance(class *ir.Class) *Instance {
	fields := make([]Value, len(class.Fields))
	for i, f := range class.Fields {
		fields[i] = Zero(f.T)
	}
	return &Instance{class: class, fields: fields}
}

// Class returns the instance's class.
func (in *Instance) Class() *ir.Class { return in.class }

// Field returns the value in field slot i.
func (in *Instance) Field(i int) Value { return in.fields[i] }

// FieldByName returns the named field.
func (in *Instance) FieldByName(name string) (Value, bool) {
	slot := in.class.FieldSlot(name)
	if slot < 0 {
		return Value{}, false
	}
	return in.fields[slot], true
}

// SetField assigns a field before the instance is frozen.
func (in *Instance) SetField(name string, v Value) error {
	if in.frozen != "" {
		return fmt.Errorf("set field %s: instance is frozen", name)
	}
	slot := in.class.FieldSlot(name)
	if slot < 0 {
		return fmt.Errorf("set field %s: no such field in %s", name, in.class.Name)
	}
	want := in.class.Fields[slot].T
	if v.T != want {
		return fmt.Errorf("set field %s: cannot use %s as %s", name, v.T, want)
	}
	if want.IsArray() && v.Array() == nil {
		return fmt.Errorf("set field %s: nil array", name)
	}
	in.fields[slot] = v
	return nil
}

// Freeze records the dataset fingerprint. It returns the fingerprint.
func (in *Instance) Freeze() string {
	in.frozen = in.Fingerprint()
	return in.frozen
}

// Frozen reports whether Freeze has been called.
func (in *Instance) Frozen() bool { return in.frozen != "" }

// Verify returns ErrDatasetModified if any field differs from the frozen
// fingerprint.
func (in *Instance) Verify() error {
	if in.frozen == "" {
		return nil
	}
	if got := in.Fingerprint(); got != in.frozen {
		return fmt.Errorf("%w: %s", ErrDatasetModified, in.class.Name)
	}
	return nil
}

// Fingerprint hashes every field's name, type and contents.
func (in *Instance) Fingerprint() string {
	var b []byte
	for i, f := range in.class.Fields {
		b = append(b, f.Name...)
		b = append(b, 0)
		b = append(b, f.T.String()...)
		b = append(b, 0)
		v := in.fields[i]
		if v.IsArray() {
			if v.Array() != nil {
				b = binary.LittleEndian.AppendUint32(b, uint32(v.Array().Len()))
				b = v.Array().AppendBytes(b)
			}
			continue
		}
		switch f.T.Kind {
		case ir.KindFloat:
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v.Float32()))
		case ir.KindDouble:
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v.Float64()))
		default:
			b = binary.LittleEndian.AppendUint64(b, uint64(v.Int64()))
		}
	}
	return ir.HashWithDomain(ir.DomainDataset, b)
}
