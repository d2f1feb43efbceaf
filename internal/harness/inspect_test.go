package harness

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/compiler"
	"github.com/roach88/vecverify/internal/ir"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		in   string
		want Tag
		str  string
	}{
		{"AddVI", Tag{Op: "AddVI", Cmp: CmpGreater}, "AddVI"},
		{"AddVI@8", Tag{Op: "AddVI", VLen: 8, Cmp: CmpGreater}, "AddVI@8"},
		{"AndReductionV>=1", Tag{Op: "AndReductionV", Cmp: CmpGreaterEqual, N: 1}, "AndReductionV>=1"},
		{"LoadVector=0", Tag{Op: "LoadVector", Cmp: CmpEqual, N: 0}, "LoadVector=0"},
		{"StoreVector<=2", Tag{Op: "StoreVector", Cmp: CmpLessEqual, N: 2}, "StoreVector<=2"},
		{"MulVF@16<3", Tag{Op: "MulVF", VLen: 16, Cmp: CmpLess, N: 3}, "MulVF@16<3"},
		{"AddVI>0", Tag{Op: "AddVI", Cmp: CmpGreater}, "AddVI"},
		{"AddVI>2", Tag{Op: "AddVI", Cmp: CmpGreater, N: 2}, "AddVI>2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.str, got.String())
		})
	}
}

func TestParseTag_Errors(t *testing.T) {
	for _, in := range []string{"", "addVI", "AddVI@", "AddVI@0", "AddVI@x", "AddVI==1", "AddVI>", "AddVI>-1", "Add VI", "AddVI=1@8"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTag(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "want Op[@VLEN][CMP N]")
		})
	}
}

func TestTag_Holds(t *testing.T) {
	tests := []struct {
		tag   string
		count int
		holds bool
	}{
		{"AddVI", 0, false},
		{"AddVI", 1, true},
		{"AddVI>=2", 1, false},
		{"AddVI>=2", 2, true},
		{"AddVI=0", 0, true},
		{"AddVI=0", 1, false},
		{"AddVI<=1", 1, true},
		{"AddVI<=1", 2, false},
		{"AddVI<1", 0, true},
		{"AddVI<1", 1, false},
	}
	for _, tt := range tests {
		tag, err := ParseTag(tt.tag)
		require.NoError(t, err)
		assert.Equal(t, tt.holds, tag.Holds(tt.count), "%s with %d nodes", tt.tag, tt.count)
	}
}

// fakeGraph counts opcodes by name and by name@vlen.
type fakeGraph map[string]int

func (g fakeGraph) Count(op string) int { return g[op] }

func (g fakeGraph) CountVLen(op string, vlen int) int {
	return g[op+"@"+strconv.Itoa(vlen)]
}

func TestInspect(t *testing.T) {
	g := fakeGraph{"AddVI": 2, "AddVI@8": 2, "LoadVector": 4}
	tags := mustTags(t, "AddVI", "AddVI@16", "AndReductionV", "LoadVector>=4", "StoreVector=0")

	results := Inspect(g, tags)
	assert.Equal(t, []TagResult{
		{Tag: "AddVI", Observed: 2, Holds: true},
		{Tag: "AddVI@16", Observed: 0, Holds: false},
		{Tag: "AndReductionV", Observed: 0, Holds: false},
		{Tag: "LoadVector>=4", Observed: 4, Holds: true},
		{Tag: "StoreVector=0", Observed: 0, Holds: true},
	}, results)

	missing := Missing(results)
	require.Len(t, missing, 2)
	assert.Equal(t, "AddVI@16 (observed 0)", missing[0].String())
	assert.Equal(t, "AndReductionV (observed 0)", missing[1].String())
}

func TestInspect_CompilerGraph(t *testing.T) {
	g := &compiler.Graph{
		Method: "K.AddInts",
		Level:  compiler.LevelOptimized,
		Nodes: []*compiler.Node{
			{ID: 0, Kind: compiler.KindVector, Op: "LoadVector", Elem: ir.KindInt, VLen: 8, Loop: 0},
			{ID: 1, Kind: compiler.KindVector, Op: "LoadVector", Elem: ir.KindInt, VLen: 8, Loop: 0},
			{ID: 2, Kind: compiler.KindVector, Op: "AddVI", Elem: ir.KindInt, VLen: 8, Loop: 0, Inputs: []int{0, 1}},
			{ID: 3, Kind: compiler.KindScalar, Op: "AddI", Elem: ir.KindInt, Loop: 0},
		},
	}

	results := Inspect(g, mustTags(t, "AddVI@8", "AddVI@4=0", "LoadVector=2", "AddI"))
	assert.Empty(t, Missing(results))
}

func TestInspect_NoTags(t *testing.T) {
	assert.Empty(t, Inspect(fakeGraph{}, nil))
}

func mustTags(t *testing.T, specs ...string) []Tag {
	t.Helper()
	tags := make([]Tag, len(specs))
	for i, s := range specs {
		tag, err := ParseTag(s)
		require.NoError(t, err)
		tags[i] = tag
	}
	return tags
}
