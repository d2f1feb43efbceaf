package testutil

// FixedRunID generates the same run id every time, so repeated runs of a
// suite produce byte-identical reports and compile logs.
//
// Unlike vm.FixedGenerator, which hands out ids in sequence and panics when
// they run out, FixedRunID never runs out.
//
// Thread-safety: FixedRunID is stateless and safe for concurrent use.
type FixedRunID struct {
	id string
}

// NewFixedRunID creates a generator for id. An empty id generates
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed run id.
//
// Implements vm.RunIDGenerator.
func (g *FixedRunID) Generate() string {
	return g.id
}
