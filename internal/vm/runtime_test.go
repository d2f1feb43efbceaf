package vm

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vecverify/internal/compiler"
	"github.com/roach88/vecverify/internal/frontend"
	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/store"
)

const addSource = `
func AddInts() []int32 {
	res := make([]int32, len(a))
	for i := 0; i < len(a); i++ {
		res[i] = a[i] + b[i]
	}
	return res
}

func First() int32 {
	return a[0] / b[0]
}
`

func loadAdd(t *testing.T, n int) (*ir.Class, *interp.Instance) {
	t.Helper()
	class, err := frontend.Compile(frontend.Source{
		Class:  "AddI",
		Fields: []ir.Field{{Name: "a", T: ir.ArrayOf(ir.KindInt)}, {Name: "b", T: ir.ArrayOf(ir.KindInt)}},
		Code:   addSource,
	})
	require.NoError(t, err)

	a, b := make([]int32, n), make([]int32, n)
	for i := range n {
		a[i] = int32(-25 * i)
		b[i] = int32(333*i + 9999)
	}
	inst := interp.NewInstance(class)
	require.NoError(t, inst.SetField("a", interp.ArrayValue(interp.ArrayOf(a))))
	require.NoError(t, inst.SetField("b", interp.ArrayValue(interp.ArrayOf(b))))
	inst.Freeze()
	return class, inst
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.VectorWidth = 32
	return cfg
}

func newTestRuntime(t *testing.T, cfg Config, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRunIDGenerator(NewFixedGenerator("run-1")),
	}, opts...)
	r, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTierPromotion(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 100)
	r := newTestRuntime(t, testConfig())
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	levelAfter := map[int]int{1: 0, 3: 0, 4: 3, 15: 3, 16: 4, 20: 4}
	for n := 1; n <= 20; n++ {
		v, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
		require.Equal(t, int32(308*99+9999), interp.Slice[int32](v.Array())[99])

		if want, ok := levelAfter[n]; ok {
			got, err := wb.CompilationLevel("AddI.AddInts")
			require.NoError(t, err)
			assert.Equal(t, want, got, "level after %d invocations", n)
		}
	}

	count, err := wb.CompileCount("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	art, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
	require.NoError(t, err)
	g, err := art.Graph()
	require.NoError(t, err)
	assert.Equal(t, 1, g.CountVLen("AddVI", 8))
	assert.Equal(t, "AddI.AddInts", art.Method())
	assert.Equal(t, compiler.LevelOptimized, art.Level())

	_, err = wb.CompiledArtifact("AddI.AddInts", compiler.LevelProfiled)
	assert.ErrorIs(t, err, ErrNotCompiled)
}

func TestDeoptimizeInvalidatesArtifact(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	log, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	r := newTestRuntime(t, testConfig(), WithStore(log))
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	for range 16 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
	}
	art, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
	require.NoError(t, err)
	require.True(t, art.Valid())

	require.NoError(t, wb.DeoptimizeMethod(ctx, "AddI.AddInts"))
	assert.False(t, art.Valid())
	_, err = art.Graph()
	assert.ErrorIs(t, err, ErrArtifactInvalidated)
	_, err = art.Loops()
	assert.ErrorIs(t, err, ErrArtifactInvalidated)

	level, err := wb.CompilationLevel("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, compiler.LevelInterpreted, level)
	calls, err := wb.InvocationCount("AddI.AddInts")
	require.NoError(t, err)
	assert.Zero(t, calls, "deoptimization resets the counter")

	runLog, err := log.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, runLog.Compilations, 2)
	assert.Equal(t, 3, runLog.Compilations[0].Level)
	assert.Equal(t, 4, runLog.Compilations[1].Level)
	assert.True(t, runLog.Compilations[1].Vectorized)
	assert.Equal(t, []store.LoopRecord{{Loop: 0, Vectorized: true, Elem: "int32", Lanes: 8}}, runLog.Compilations[1].Loops)
	require.Len(t, runLog.Deoptimizations, 1)
	assert.Equal(t, store.Deoptimization{RunID: "run-1", Seq: 3, Method: "AddI.AddInts", Level: 4, Reason: "whitebox"}, runLog.Deoptimizations[0])
}

func TestRecompileInvalidatesPreviousArtifact(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	r := newTestRuntime(t, testConfig())
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	for range 4 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
	}
	tier3, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelProfiled)
	require.NoError(t, err)

	for range 12 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
	}
	tier4, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
	require.NoError(t, err)

	assert.False(t, tier3.Valid())
	assert.True(t, tier4.Valid())
	assert.Greater(t, tier4.CompileID(), tier3.CompileID())
}

func TestInterpreterOnly(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	r := newTestRuntime(t, testConfig())
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	require.NoError(t, wb.SetInterpreterOnly("AddI.AddInts", true))
	for range 40 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
	}
	level, err := wb.CompilationLevel("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, compiler.LevelInterpreted, level)
	count, err := wb.CompileCount("AddI.AddInts")
	require.NoError(t, err)
	assert.Zero(t, count)

	// The counter kept running, so the next invocation compiles straight
	// to the optimized tier.
	require.NoError(t, wb.SetInterpreterOnly("AddI.AddInts", false))
	_, err = r.Invoke(ctx, "AddI.AddInts", inst)
	require.NoError(t, err)
	level, err = wb.CompilationLevel("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, compiler.LevelOptimized, level)
}

func TestBackgroundCompilation(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	cfg := testConfig()
	cfg.BackgroundCompilation = true
	r := newTestRuntime(t, cfg)
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	for range 16 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
		require.NoError(t, wb.DrainCompileQueue(ctx))
	}
	level, err := wb.CompilationLevel("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, compiler.LevelOptimized, level)

	art, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
	require.NoError(t, err)
	g, err := art.Graph()
	require.NoError(t, err)
	assert.Equal(t, 1, g.Count("AddVI"))
}

func TestBackgroundCompilation_ConcurrentInvokers(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	cfg := testConfig()
	cfg.BackgroundCompilation = true
	r := newTestRuntime(t, cfg)
	require.NoError(t, r.Load(class))
	wb, err := r.WhiteBox()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				_, err := r.Invoke(ctx, "AddI.AddInts", inst)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, wb.DrainCompileQueue(ctx))

	level, err := wb.CompilationLevel("AddI.AddInts")
	require.NoError(t, err)
	assert.Equal(t, compiler.LevelOptimized, level)
	count, err := wb.CompileCount("AddI.AddInts")
	require.NoError(t, err)
	assert.LessOrEqual(t, count, 2)
	require.NoError(t, inst.Verify())
}

func TestDiagnosticsLocked(t *testing.T) {
	cfg := testConfig()
	cfg.UnlockDiagnostics = false
	r := newTestRuntime(t, cfg)

	_, err := r.WhiteBox()
	assert.ErrorIs(t, err, ErrDiagnosticsLocked)
}

func TestInvokeErrors(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 4)
	r := newTestRuntime(t, testConfig())
	require.NoError(t, r.Load(class))

	_, err := r.Invoke(ctx, "AddI.Missing", inst)
	assert.ErrorIs(t, err, ErrUnknownMethod)

	v, err := r.Invoke(ctx, "AddI.First", inst)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.Int32())

	assert.Error(t, r.Load(class), "duplicate load")

	require.NoError(t, r.Close())
	_, err = r.Invoke(ctx, "AddI.AddInts", inst)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestKernelErrorsSurfaceAtEveryTier(t *testing.T) {
	ctx := context.Background()
	class, err := frontend.Compile(frontend.Source{
		Class:  "Div",
		Fields: []ir.Field{{Name: "d", T: ir.ArrayOf(ir.KindInt)}},
		Code: `
func Quot() int32 {
	s := int32(0)
	for i := 0; i < len(d); i++ {
		s += 100 / d[i]
	}
	return s
}`,
	})
	require.NoError(t, err)
	inst := interp.NewInstance(class)
	require.NoError(t, inst.SetField("d", interp.ArrayValue(interp.ArrayOf([]int32{1, 2, 0, 4}))))
	inst.Freeze()

	r := newTestRuntime(t, testConfig())
	require.NoError(t, r.Load(class))
	for range 20 {
		_, err := r.Invoke(ctx, "Div.Quot", inst)
		require.Error(t, err)
		assert.True(t, interp.IsArithmeticError(err), err.Error())
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Tier3Threshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Tier4Threshold = 2
	assert.Error(t, cfg.Validate())

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNegativeWidthDisablesVectorization(t *testing.T) {
	ctx := context.Background()
	class, inst := loadAdd(t, 64)
	cfg := testConfig()
	cfg.VectorWidth = -1
	r := newTestRuntime(t, cfg)
	require.NoError(t, r.Load(class))
	assert.Equal(t, "scalar", r.Target().Name)

	wb, err := r.WhiteBox()
	require.NoError(t, err)
	for range 16 {
		_, err := r.Invoke(ctx, "AddI.AddInts", inst)
		require.NoError(t, err)
	}
	art, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
	require.NoError(t, err)
	g, err := art.Graph()
	require.NoError(t, err)
	assert.Empty(t, g.VectorNodes())
	assert.Equal(t, []string{"AddI.AddInts", "AddI.First"}, r.Methods())
}

func TestSharedClock(t *testing.T) {
	ctx := context.Background()
	clock := NewClock()

	for _, run := range []string{"run-a", "run-b"} {
		class, inst := loadAdd(t, 100)
		r := newTestRuntime(t, testConfig(), WithClock(clock), WithRunIDGenerator(NewFixedGenerator(run)))
		require.NoError(t, r.Load(class))
		for range 16 {
			_, err := r.Invoke(ctx, "AddI.AddInts", inst)
			require.NoError(t, err)
		}
		wb, err := r.WhiteBox()
		require.NoError(t, err)
		art, err := wb.CompiledArtifact("AddI.AddInts", compiler.LevelOptimized)
		require.NoError(t, err)
		assert.Equal(t, clock.Last(), art.CompileID())
	}
	assert.Equal(t, int64(4), clock.Last())
}
