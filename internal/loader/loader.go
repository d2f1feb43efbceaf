// Package loader reads CUE suite files into loaded suite classes and their
// frozen datasets.
//
// A suite file declares the suite name, its dataset fields and the kernel
// source:
//
//	suite: "AddI"
//	fields: {
//		a: {type: "[]int32", len: 2345, init: "-25*i"}
//		b: {type: "[]int32", len: 2345, init: "333*i + 9999"}
//	}
//	source: """
//		//vec:kernel
//		//vec:ir AddVI
//		func AddInts() []int32 { ... }
//		"""
//
// Array fields are initialised element by element from init, a Go
// expression in the element index i. Scalar fields take init as a constant
// expression. A missing init leaves the zero value.
package loader

import (
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuetoken "cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/vecverify/internal/frontend"
	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
)

// MaxFieldLen bounds array field lengths.
const MaxFieldLen = 1 << 24

// Suite is a loaded suite: its class and the frozen dataset instance the
// kernels run against.
type Suite struct {
	Name     string
	File     string
	Class    *ir.Class
	Instance *interp.Instance

	// Fingerprint is the dataset fingerprint recorded at freeze time.
	Fingerprint string
}

// Error is a suite loading error.
type Error struct {
	Field   string
	Message string
	Pos     cuetoken.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads one suite file from disk.
func LoadFile(file string) (*Suite, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return Load(file, data)
}

// LoadFS loads every *.cue file in dir of fsys, sorted by file name.
func LoadFS(fsys fs.FS, dir string) ([]*Suite, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list suites: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".cue") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		file := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read suite: %w", err)
		}
		s, err := Load(file, data)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Load compiles suite source data. file names the source in errors.
func Load(file string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(file))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name, err := requiredString(v, "suite")
	if err != nil {
		return nil, err
	}
	name = norm.NFC.String(name)
	if !token.IsIdentifier(name) {
		return nil, &Error{Field: "suite", Message: fmt.Sprintf("suite name %q is not an identifier", name), Pos: v.LookupPath(cue.ParsePath("suite")).Pos()}
	}

	specs, err := parseFields(v)
	if err != nil {
		return nil, err
	}

	sourceVal := v.LookupPath(cue.ParsePath("source"))
	code, err := requiredString(v, "source")
	if err != nil {
		return nil, err
	}
	// Identifiers that differ only in Unicode normalization name the same
	// field or kernel.
	code = norm.NFC.String(code)

	fields := make([]ir.Field, len(specs))
	for i, f := range specs {
		fields[i] = ir.Field{Name: f.name, T: f.t}
	}
	src := frontend.Source{
		Class:  name,
		File:   file,
		Fields: fields,
		Code:   code,
	}
	// The multi-line string body starts on the line after the opening quotes.
	if pos := sourceVal.Pos(); pos.IsValid() {
		src.Line = pos.Line() + 1
	}
	class, err := frontend.Compile(src)
	if err != nil {
		return nil, err
	}

	inst := interp.NewInstance(class)
	for _, f := range specs {
		value, err := f.build(class, file)
		if err != nil {
			return nil, err
		}
		if err := inst.SetField(f.name, value); err != nil {
			return nil, &Error{Field: "fields." + f.name, Message: err.Error(), Pos: f.pos}
		}
	}

	return &Suite{
		Name:        name,
		File:        file,
		Class:       class,
		Instance:    inst,
		Fingerprint: inst.Freeze(),
	}, nil
}

type fieldSpec struct {
	name string
	t    ir.Type
	len  int
	init string
	pos  cuetoken.Pos
}

func parseFields(v cue.Value) ([]fieldSpec, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil // a suite without a dataset is valid
	}
	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []fieldSpec
	for iter.Next() {
		label := "fields." + iter.Label()
		fv := iter.Value()
		f := fieldSpec{name: norm.NFC.String(iter.Label()), pos: fv.Pos()}
		if !token.IsIdentifier(f.name) {
			return nil, &Error{Field: label, Message: "field name is not an identifier", Pos: f.pos}
		}

		typ, err := requiredString(fv, "type")
		if err != nil {
			return nil, prefixField(err, label)
		}
		f.t, err = ir.ParseType(typ)
		if err != nil {
			return nil, &Error{Field: label + ".type", Message: err.Error(), Pos: f.pos}
		}
		if f.t.Dims > 1 || !f.t.Kind.IsNumeric() {
			return nil, &Error{Field: label + ".type", Message: fmt.Sprintf("unsupported field type %s", f.t), Pos: f.pos}
		}

		lenVal := fv.LookupPath(cue.ParsePath("len"))
		switch {
		case f.t.IsArray() && !lenVal.Exists():
			return nil, &Error{Field: label + ".len", Message: "len is required for array fields", Pos: f.pos}
		case !f.t.IsArray() && lenVal.Exists():
			return nil, &Error{Field: label + ".len", Message: "len is only valid for array fields", Pos: lenVal.Pos()}
		case lenVal.Exists():
			n, err := lenVal.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if n < 0 || n > MaxFieldLen {
				return nil, &Error{Field: label + ".len", Message: fmt.Sprintf("len %d out of range [0, %d]", n, MaxFieldLen), Pos: lenVal.Pos()}
			}
			f.len = int(n)
		}

		if initVal := fv.LookupPath(cue.ParsePath("init")); initVal.Exists() {
			f.init, err = initVal.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
		}
		specs = append(specs, f)
	}
	return specs, nil
}

// build evaluates the field's initializer with the interpreter.
func (f fieldSpec) build(class *ir.Class, file string) (interp.Value, error) {
	label := "fields." + f.name
	if !f.t.IsArray() {
		if f.init == "" {
			return interp.Zero(f.t), nil
		}
		m, err := frontend.CompileInit(class, f.name, file, f.init, f.t.Kind, false)
		if err != nil {
			return interp.Value{}, &Error{Field: label + ".init", Message: err.Error(), Pos: f.pos}
		}
		v, err := interp.Invoke(m, interp.NewInstance(class), nil, interp.Options{Name: label})
		if err != nil {
			return interp.Value{}, &Error{Field: label + ".init", Message: err.Error(), Pos: f.pos}
		}
		return v, nil
	}

	arr := interp.NewArray(f.t.Kind, f.len)
	if f.init == "" {
		return interp.ArrayValue(arr), nil
	}
	m, err := frontend.CompileInit(class, f.name, file, f.init, f.t.Kind, true)
	if err != nil {
		return interp.Value{}, &Error{Field: label + ".init", Message: err.Error(), Pos: f.pos}
	}
	scratch := interp.NewInstance(class)
	for i := range f.len {
		v, err := interp.Invoke(m, scratch, []interp.Value{interp.Int(int32(i))}, interp.Options{Name: label})
		if err != nil {
			return interp.Value{}, &Error{Field: label + ".init", Message: fmt.Sprintf("element %d: %v", i, err), Pos: f.pos}
		}
		arr.Set(i, v)
	}
	return interp.ArrayValue(arr), nil
}

func requiredString(v cue.Value, key string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(key))
	if !sv.Exists() {
		return "", &Error{Field: key, Message: key + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func prefixField(err error, label string) error {
	if e, ok := err.(*Error); ok {
		return &Error{Field: label + "." + e.Field, Message: e.Message, Pos: e.Pos}
	}
	return err
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
