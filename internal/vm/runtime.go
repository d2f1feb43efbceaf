package vm

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/vecverify/internal/compiler"
	"github.com/roach88/vecverify/internal/interp"
	"github.com/roach88/vecverify/internal/ir"
	"github.com/roach88/vecverify/internal/simd"
	"github.com/roach88/vecverify/internal/store"
)

// Config holds the runtime settings.
type Config struct {
	// UnlockDiagnostics enables the WhiteBox API.
	UnlockDiagnostics bool

	// Tier3Threshold is the invocation count at which a method is compiled
	// at LevelProfiled; Tier4Threshold promotes it to LevelOptimized.
	Tier3Threshold int
	Tier4Threshold int

	// BackgroundCompilation compiles on a broker goroutine instead of the
	// invoking goroutine.
	BackgroundCompilation bool

	// VectorWidth is the vector register width in bytes. Zero detects the
	// host; a negative width disables vectorization.
	VectorWidth int

	UseSuperWord          bool
	StrictFloatReductions bool
}

// DefaultConfig returns the runtime defaults.
func DefaultConfig() Config {
	return Config{
		UnlockDiagnostics: true,
		Tier3Threshold:    4,
		Tier4Threshold:    16,
		UseSuperWord:      true,
	}
}

// Validate checks the tier thresholds.
func (c Config) Validate() error {
	if c.Tier3Threshold < 1 {
		return fmt.Errorf("tier3 invocation threshold must be at least 1, got %d", c.Tier3Threshold)
	}
	if c.Tier4Threshold < c.Tier3Threshold {
		return fmt.Errorf("tier4 invocation threshold %d is below tier3 threshold %d", c.Tier4Threshold, c.Tier3Threshold)
	}
	return nil
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithStore records compilations and deoptimizations in s.
func WithStore(s *store.Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithClock sets the logical clock that stamps compile log rows.
func WithClock(c *Clock) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

// WithRunIDGenerator sets the generator of the run id. Default:
// UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(r *Runtime) {
		r.runIDs = g
	}
}

// Runtime executes kernel methods with tiered compilation.
type Runtime struct {
	cfg    Config
	target simd.Target
	copts  compiler.Options
	logger *slog.Logger
	store  *store.Store
	clock  *Clock
	runIDs RunIDGenerator
	runID  string

	mu      sync.Mutex
	methods map[string]*methodState
	closed  bool

	// Background compilation only.
	queue   *compileQueue
	pending int
	idle    *sync.Cond
	done    chan struct{}
}

// methodState is the per-method tiering state. Guarded by Runtime.mu.
type methodState struct {
	name    string
	method  *ir.Method
	profile *interp.Profile

	// counter counts invocations since load or the last deoptimization.
	counter int

	// epoch advances on every deoptimization and interpreter-only switch;
	// queued compile tasks from an older epoch are discarded.
	epoch int64

	interpreterOnly bool
	code            *compiler.Code
	artifact        *Artifact
	compiles        int
	queued          map[int]bool
	notCompilable   map[int]bool
}

func (st *methodState) level() int {
	if st.code == nil {
		return compiler.LevelInterpreted
	}
	return st.code.Level
}

// New creates a runtime. Call Close when done.
func New(cfg Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:     cfg,
		target:  simd.Resolve(cfg.VectorWidth),
		logger:  slog.Default(),
		clock:   NewClock(),
		runIDs:  UUIDv7Generator{},
		methods: make(map[string]*methodState),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.runID = r.runIDs.Generate()
	r.copts = compiler.Options{
		Width:                 r.target.Width,
		UseSuperWord:          cfg.UseSuperWord,
		StrictFloatReductions: cfg.StrictFloatReductions,
	}
	r.idle = sync.NewCond(&r.mu)

	r.logger.Debug("runtime starting",
		"run_id", r.runID,
		"target", r.target.Name,
		"vector_width", r.target.Width,
		"background_compilation", cfg.BackgroundCompilation,
	)

	if cfg.BackgroundCompilation {
		r.queue = newCompileQueue()
		r.done = make(chan struct{})
		go r.runBroker()
	}
	return r, nil
}

// RunID returns the id stamped on this runtime's compile log rows.
func (r *Runtime) RunID() string { return r.runID }

// Target returns the vector unit code is generated for.
func (r *Runtime) Target() simd.Target { return r.target }

// Config returns the runtime settings.
func (r *Runtime) Config() Config { return r.cfg }

// Load registers every method of class under "Class.method".
func (r *Runtime) Load(class *ir.Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range class.Methods {
		if _, ok := r.methods[ir.QualifiedName(class.Name, m.Name)]; ok {
			return fmt.Errorf("load %s: method %s already loaded", class.Name, ir.QualifiedName(class.Name, m.Name))
		}
	}
	for _, m := range class.Methods {
		name := ir.QualifiedName(class.Name, m.Name)
		r.methods[name] = &methodState{
			name:          name,
			method:        m,
			profile:       interp.NewProfile(),
			queued:        make(map[int]bool),
			notCompilable: make(map[int]bool),
		}
	}
	return nil
}

// Methods returns the loaded method names in sorted order.
func (r *Runtime) Methods() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke runs the named method on inst with the code the tier policy
// selects. Kernel-body errors are returned as *interp.RuntimeError.
func (r *Runtime) Invoke(ctx context.Context, name string, inst *interp.Instance, args ...interp.Value) (interp.Value, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return interp.Value{}, ErrClosed
	}
	st, ok := r.methods[name]
	if !ok {
		r.mu.Unlock()
		return interp.Value{}, fmt.Errorf("invoke %s: %w", name, ErrUnknownMethod)
	}
	st.counter++
	if !st.interpreterOnly {
		r.applyPolicy(ctx, st)
	}
	code := st.code
	if st.interpreterOnly {
		code = nil
	}
	m, prof := st.method, st.profile
	r.mu.Unlock()

	if code == nil {
		return interp.Invoke(m, inst, args, interp.Options{Name: name, Profile: prof})
	}
	return code.Invoke(inst, args, prof)
}

// targetLevel maps an invocation count to the level the method should run
// at.
func (r *Runtime) targetLevel(counter int) int {
	switch {
	case counter >= r.cfg.Tier4Threshold:
		return compiler.LevelOptimized
	case counter >= r.cfg.Tier3Threshold:
		return compiler.LevelProfiled
	default:
		return compiler.LevelInterpreted
	}
}

// applyPolicy requests a compilation when the method's counter crossed a
// threshold. Called with r.mu held.
func (r *Runtime) applyPolicy(ctx context.Context, st *methodState) {
	level := r.targetLevel(st.counter)
	if level <= st.level() || st.notCompilable[level] || st.queued[level] {
		return
	}

	if r.cfg.BackgroundCompilation {
		st.queued[level] = true
		r.pending++
		if !r.queue.Enqueue(compileTask{method: st.name, level: level, epoch: st.epoch}) {
			r.pending--
			delete(st.queued, level)
		}
		return
	}

	code, err := compiler.Compile(st.name, st.method, level, st.profile, r.copts)
	if err != nil {
		r.compileFailed(st, level, err)
		return
	}
	r.install(ctx, st, code)
}

func (r *Runtime) compileFailed(st *methodState, level int, err error) {
	st.notCompilable[level] = true
	r.logger.Warn("compilation failed",
		"method", st.name,
		"level", level,
		"error", err,
	)
}

// install makes code the method's active entry. Called with r.mu held.
func (r *Runtime) install(ctx context.Context, st *methodState, code *compiler.Code) {
	seq := r.clock.Next()
	if st.artifact != nil {
		st.artifact.invalidate()
	}
	st.code = code
	st.artifact = newArtifact(st.name, code, seq)
	st.compiles++

	r.logger.Debug("method compiled",
		"method", st.name,
		"level", code.Level,
		"compile_id", seq,
		"vectorized", code.Vectorized(),
		"nodes", len(code.Graph.Nodes),
	)
	for _, l := range code.Loops {
		r.logger.Debug("loop decision", "method", st.name, "compile_id", seq, "loop", l.String())
	}

	if r.store == nil {
		return
	}
	rec := store.Compilation{
		RunID:          r.runID,
		Seq:            seq,
		Method:         st.name,
		Level:          code.Level,
		Vectorized:     code.Vectorized(),
		NodeCount:      len(code.Graph.Nodes),
		GraphHash:      code.Graph.Fingerprint(),
		RuntimeVersion: ir.RuntimeVersion,
	}
	for _, l := range code.Loops {
		lr := store.LoopRecord{Loop: l.Loop, Vectorized: l.Vectorized, Reason: l.Reason}
		if l.Vectorized {
			lr.Elem = l.Elem.String()
			lr.Lanes = l.Lanes
		}
		rec.Loops = append(rec.Loops, lr)
	}
	// The compile log is diagnostic: log and continue.
	if err := r.store.WriteCompilation(ctx, rec); err != nil {
		r.logger.Warn("compile log write failed", "method", st.name, "error", err)
	}
}

// deoptimize discards the method's compiled code and resets its counters
// and profile. Called with r.mu held.
func (r *Runtime) deoptimize(ctx context.Context, st *methodState, reason string) {
	st.epoch++
	st.counter = 0
	st.profile.Reset()
	clear(st.queued)
	clear(st.notCompilable)

	if st.code == nil {
		return
	}
	level := st.code.Level
	st.artifact.invalidate()
	st.code = nil
	st.artifact = nil

	seq := r.clock.Next()
	r.logger.Debug("method deoptimized",
		"method", st.name,
		"level", level,
		"seq", seq,
		"reason", reason,
	)
	if r.store == nil {
		return
	}
	d := store.Deoptimization{RunID: r.runID, Seq: seq, Method: st.name, Level: level, Reason: reason}
	if err := r.store.WriteDeoptimization(ctx, d); err != nil {
		r.logger.Warn("compile log write failed", "method", st.name, "error", err)
	}
}

// Close stops the compile broker after it finishes queued tasks.
// Close is idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.queue != nil {
		r.queue.Close()
		<-r.done
	}
	r.logger.Debug("runtime stopped", "run_id", r.runID)
	return nil
}

func (r *Runtime) lookup(name string) (*methodState, error) {
	st, ok := r.methods[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownMethod)
	}
	return st, nil
}
