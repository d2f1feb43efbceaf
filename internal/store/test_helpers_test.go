package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/vecverify/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCompilation creates a test compilation with minimal required fields.
func createTestCompilation(runID, method string, seq int64, level int) Compilation {
	return Compilation{
		RunID:          runID,
		Seq:            seq,
		Method:         method,
		Level:          level,
		NodeCount:      12,
		GraphHash:      "graph-hash",
		RuntimeVersion: ir.RuntimeVersion,
	}
}
