package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/loader"
	"github.com/roach88/vecverify/internal/vm"
)

// RunID is the run id of runtimes created by NewRuntime.
const RunID = "test-run-00000000-0000-0000-0000-000000000001"

// Config returns the default runtime settings with the vector width pinned
// to 32 bytes, so results do not depend on the host's vector unit.
func Config() vm.Config {
	cfg := vm.DefaultConfig()
	cfg.VectorWidth = 32
	return cfg
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRuntime starts a runtime with a discarded log and a fixed run id. Extra
// options are applied after the defaults. The runtime is closed when the
// test ends.
func NewRuntime(t *testing.T, cfg vm.Config, opts ...vm.Option) *vm.Runtime {
	t.Helper()

	base := []vm.Option{
		vm.WithLogger(DiscardLogger()),
		vm.WithRunIDGenerator(NewFixedRunID(RunID)),
	}
	rt, err := vm.New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

// LoadSuite loads suite source, failing the test on error.
func LoadSuite(t *testing.T, file, src string) *loader.Suite {
	t.Helper()

	s, err := loader.Load(file, []byte(src))
	require.NoError(t, err)
	return s
}
