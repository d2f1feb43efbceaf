package loader

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
)

const addSuite = `suite: "AddI"
fields: {
	a: {type: "[]int32", len: 2345, init: "-25*i"}
	b: {type: "[]int32", len: 2345, init: "333*i + 9999"}
	x: {type: "[]float32", len: 4, init: "float32(i) / 2"}
	n: {type: "int64", init: "1 << 40"}
	z: {type: "[]float64", len: 3}
}
source: """
	//vec:kernel
	//vec:ir AddVI
	func AddInts() []int32 {
		res := make([]int32, len(a))
		for i := 0; i < len(a); i++ {
			res[i] = a[i] + b[i]
		}
		return res
	}
	"""
`

func TestLoad(t *testing.T) {
	s, err := Load("add.cue", []byte(addSuite))
	require.NoError(t, err)

	assert.Equal(t, "AddI", s.Name)
	assert.Equal(t, "add.cue", s.File)
	require.Len(t, s.Class.Fields, 5)
	assert.Equal(t, ir.Field{Name: "a", T: ir.ArrayOf(ir.KindInt)}, s.Class.Fields[0])
	assert.Equal(t, ir.Field{Name: "n", T: ir.Scalar(ir.KindLong)}, s.Class.Fields[3])

	m := s.Class.Method("AddInts")
	require.NotNil(t, m)
	assert.True(t, m.HasDirective(ir.DirectiveKernel))
	assert.Equal(t, []string{"AddVI"}, m.DirectiveArgs(ir.DirectiveIR))

	a, _ := s.Instance.FieldByName("a")
	b, _ := s.Instance.FieldByName("b")
	as, bs := interp.Slice[int32](a.Array()), interp.Slice[int32](b.Array())
	require.Len(t, as, 2345)
	for _, i := range []int{0, 1, 1000, 2344} {
		assert.Equal(t, int32(-25*i), as[i])
		assert.Equal(t, int32(333*i+9999), bs[i])
	}

	x, _ := s.Instance.FieldByName("x")
	assert.Equal(t, []float32{0, 0.5, 1, 1.5}, interp.Slice[float32](x.Array()))
	n, _ := s.Instance.FieldByName("n")
	assert.Equal(t, int64(1)<<40, n.Int64())
	z, _ := s.Instance.FieldByName("z")
	assert.Equal(t, []float64{0, 0, 0}, interp.Slice[float64](z.Array()))

	assert.True(t, s.Instance.Frozen())
	assert.Equal(t, s.Instance.Fingerprint(), s.Fingerprint)
	assert.NoError(t, s.Instance.Verify())
}

func TestLoad_SourcePositions(t *testing.T) {
	src := `suite: "Bad"
source: """
	func K() int32 {
		return undefined
	}
	"""
`
	_, err := Load("bad.cue", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.cue:4:")
	assert.Contains(t, err.Error(), "undefined")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing suite", `source: "func K() int32 { return 1 }"`, "suite is required"},
		{"missing source", `suite: "S"`, "source is required"},
		{"bad suite name", `suite: "not ok", source: ""`, "is not an identifier"},
		{"bad type", `suite: "S", fields: a: {type: "[]string", len: 1}, source: ""`, `fields.a.type: unknown type "string"`},
		{"2d field", `suite: "S", fields: a: {type: "[][]int32", len: 1}, source: ""`, "unsupported field type [][]int32"},
		{"missing len", `suite: "S", fields: a: {type: "[]int32"}, source: ""`, "len is required"},
		{"scalar len", `suite: "S", fields: a: {type: "int32", len: 3}, source: ""`, "len is only valid for array fields"},
		{"negative len", `suite: "S", fields: a: {type: "[]int32", len: -1}, source: ""`, "out of range"},
		{"missing type", `suite: "S", fields: a: {len: 1}, source: ""`, "fields.a.type: type is required"},
		{"bad init", `suite: "S", fields: a: {type: "[]int32", len: 2, init: "i +"}, source: ""`, "fields.a.init"},
		{"init error", `suite: "S", fields: a: {type: "[]int32", len: 2, init: "1 / (1 - i)"}, source: ""`, "element 1"},
		{"cue syntax", `suite: "S`, "cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("s.cue", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.cue")
	require.NoError(t, os.WriteFile(path, []byte(addSuite), 0o644))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.File)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"suites/b.cue":     {Data: []byte(`suite: "B", source: "func K() int32 { return 2 }"`)},
		"suites/a.cue":     {Data: []byte(`suite: "A", source: "func K() int32 { return 1 }"`)},
		"suites/notes.txt": {Data: []byte("ignored")},
	}

	suites, err := LoadFS(fsys, "suites")
	require.NoError(t, err)
	require.Len(t, suites, 2)
	assert.Equal(t, "A", suites[0].Name)
	assert.Equal(t, "suites/a.cue", suites[0].File)
	assert.Equal(t, "B", suites[1].Name)
}
