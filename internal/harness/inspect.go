package harness

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/samber/lo"
)

// Graph is the query interface the inspector needs from a compiled
// artifact's instruction graph. *compiler.Graph implements it.
type Graph interface {
	// Count returns the number of nodes with opcode op.
	Count(op string) int
	// CountVLen returns the number of nodes with opcode op and vlen lanes.
	CountVLen(op string, vlen int) int
}

// Comparison operators of an IR tag.
const (
	CmpGreater      = ">"
	CmpGreaterEqual = ">="
	CmpEqual        = "="
	CmpLessEqual    = "<="
	CmpLess         = "<"
)

// tagPattern is Op[@VLEN][CMP N].
var tagPattern = regexp.MustCompile(`^([A-Z][A-Za-z0-9]*)(?:@([1-9][0-9]*))?(?:(>=|<=|>|<|=)([0-9]+))?$`)

// Tag is one expected-IR assertion: the number of nodes with opcode Op
// (and VLen lanes when VLen > 0) compared to N with Cmp.
//
//	AddVI              at least one AddVI node
//	AddVI@8            at least one AddVI node with 8 lanes
//	AndReductionV>=1   at least one AndReductionV node
//	LoadVector=0       no LoadVector node
type Tag struct {
	Op   string
	VLen int
	Cmp  string
	N    int
}

// ParseTag parses one tag. A tag without a comparison means ">0".
func ParseTag(s string) (Tag, error) {
	m := tagPattern.FindStringSubmatch(s)
	if m == nil {
		return Tag{}, fmt.Errorf("invalid IR tag %q: want Op[@VLEN][CMP N]", s)
	}
	t := Tag{Op: m[1], Cmp: CmpGreater}
	if m[2] != "" {
		v, err := strconv.Atoi(m[2])
		if err != nil {
			return Tag{}, fmt.Errorf("invalid IR tag %q: %w", s, err)
		}
		t.VLen = v
	}
	if m[3] != "" {
		n, err := strconv.Atoi(m[4])
		if err != nil {
			return Tag{}, fmt.Errorf("invalid IR tag %q: %w", s, err)
		}
		t.Cmp, t.N = m[3], n
	}
	return t, nil
}

// String returns the canonical spelling; the default comparison is omitted.
func (t Tag) String() string {
	s := t.Op
	if t.VLen > 0 {
		s += "@" + strconv.Itoa(t.VLen)
	}
	if t.Cmp != CmpGreater || t.N != 0 {
		s += t.Cmp + strconv.Itoa(t.N)
	}
	return s
}

// Observe counts the nodes of g the tag refers to.
func (t Tag) Observe(g Graph) int {
	if t.VLen > 0 {
		return g.CountVLen(t.Op, t.VLen)
	}
	return g.Count(t.Op)
}

// Holds reports whether an observed count satisfies the tag.
func (t Tag) Holds(count int) bool {
	switch t.Cmp {
	case CmpGreaterEqual:
		return count >= t.N
	case CmpEqual:
		return count == t.N
	case CmpLessEqual:
		return count <= t.N
	case CmpLess:
		return count < t.N
	default:
		return count > t.N
	}
}

// TagResult is the outcome of one tag check.
type TagResult struct {
	Tag      string `json:"tag"`
	Observed int    `json:"observed"`
	Holds    bool   `json:"holds"`
}

// String formats a failed check for reports.
func (r TagResult) String() string {
	return fmt.Sprintf("%s (observed %d)", r.Tag, r.Observed)
}

// Inspect checks every tag against g and returns one result per tag, in
// tag order.
func Inspect(g Graph, tags []Tag) []TagResult {
	results := make([]TagResult, len(tags))
	for i, t := range tags {
		n := t.Observe(g)
		results[i] = TagResult{Tag: t.String(), Observed: n, Holds: t.Holds(n)}
	}
	return results
}

// Missing returns the failed checks of results.
func Missing(results []TagResult) []TagResult {
	return lo.Filter(results, func(r TagResult, _ int) bool { return !r.Holds })
}
