package interp

import (
	"errors"

	"github.com/roach88/vecverify/internal/ir"
)

// LoopHook executes a whole loop in place of the interpreter. start and end
// are the loop bounds, already evaluated once. Compiled code installs hooks
// for the loops it vectorized.
type LoopHook func(env *Env, loop *ir.For, start, end int32) error

// Options configures one invocation.
type Options struct {
	// Name is the qualified method name used in runtime errors.
	Name string

	// Profile, when set, receives the invocation count and per-loop trip
	// counts.
	Profile *Profile

	// Loops maps loop IDs to hooks that replace interpretation of the loop.
	Loops map[int]LoopHook
}

// Env is the state of one method activation.
type Env struct {
	method *ir.Method
	inst   *Instance
	locals []Value
	opts   Options
	ret    Value
}

// Instance returns the receiver instance.
func (env *Env) Instance() *Instance { return env.inst }

// Local returns the value in local slot i.
func (env *Env) Local(i int) Value { return env.locals[i] }

// SetLocal assigns local slot i.
func (env *Env) SetLocal(i int, v Value) { env.locals[i] = v }

// Invoke executes m on inst.
func Invoke(m *ir.Method, inst *Instance, args []Value, opts Options) (Value, error) {
	if opts.Profile != nil {
		opts.Profile.RecordInvocation()
	}
	env := &Env{
		method: m,
		inst:   inst,
		locals: make([]Value, len(m.Locals)),
		opts:   opts,
	}
	for i, l := range m.Locals {
		env.locals[i] = Zero(l.T)
	}
	if len(args) != len(m.Params) {
		return Value{}, env.wrap(newError(ErrCodeIllegalArgument, "%s takes %d arguments, got %d", m.Name, len(m.Params), len(args)))
	}
	for i, a := range args {
		if a.T != m.Params[i].T {
			return Value{}, env.wrap(newError(ErrCodeIllegalArgument, "argument %d: cannot use %s as %s", i, a.T, m.Params[i].T))
		}
		env.locals[i] = a
	}

	returned, err := env.exec(m.Body)
	if err != nil {
		return Value{}, env.wrap(err)
	}
	if !returned {
		if !m.Result.IsVoid() {
			return Value{}, env.wrap(newError(ErrCodeUnsupported, "%s: missing return", m.Name))
		}
		return Zero(ir.Void), nil
	}
	return env.ret, nil
}

func (env *Env) wrap(err error) error {
	var re *RuntimeError
	if errors.As(err, &re) && re.Method == "" {
		re.Method = env.opts.Name
		if re.Method == "" {
			re.Method = env.method.Name
		}
	}
	return err
}

// exec runs stmts and reports whether a return statement executed.
func (env *Env) exec(stmts []ir.Stmt) (bool, error) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *ir.Assign:
			v, err := env.Eval(s.Value)
			if err != nil {
				return false, err
			}
			env.locals[s.Dst.Slot] = v

		case *ir.Store:
			arr := env.locals[s.Array.Slot].Array()
			idx, err := env.Eval(s.Index)
			if err != nil {
				return false, err
			}
			v, err := env.Eval(s.Value)
			if err != nil {
				return false, err
			}
			i, err := checkIndex(arr, idx.Int32())
			if err != nil {
				return false, err
			}
			arr.Set(i, v)

		case *ir.For:
			returned, err := env.loop(s)
			if err != nil || returned {
				return returned, err
			}

		case *ir.Return:
			if s.Value == nil {
				env.ret = Zero(ir.Void)
				return true, nil
			}
			v, err := env.Eval(s.Value)
			if err != nil {
				return false, err
			}
			env.ret = v
			return true, nil

		default:
			return false, newError(ErrCodeUnsupported, "statement %T", s)
		}
	}
	return false, nil
}

func (env *Env) loop(s *ir.For) (bool, error) {
	startV, err := env.Eval(s.Start)
	if err != nil {
		return false, err
	}
	endV, err := env.Eval(s.End)
	if err != nil {
		return false, err
	}
	start, end := startV.Int32(), endV.Int32()
	if env.opts.Profile != nil {
		env.opts.Profile.RecordTrip(s.ID, max(int64(end)-int64(start), 0))
	}
	if hook, ok := env.opts.Loops[s.ID]; ok {
		return false, hook(env, s, start, end)
	}
	return env.RunIterations(s, start, end)
}

// RunIterations interprets iterations from..to-1 of loop. It reports
// whether the body executed a return statement.
func (env *Env) RunIterations(loop *ir.For, from, to int32) (bool, error) {
	for i := from; i < to; i++ {
		env.locals[loop.Var.Slot] = Int(i)
		returned, err := env.exec(loop.Body)
		if err != nil || returned {
			return returned, err
		}
	}
	return false, nil
}

// Eval evaluates an expression.
func (env *Env) Eval(e ir.Expr) (Value, error) {
	switch e := e.(type) {
	case *ir.Const:
		return ConstValue(e), nil

	case *ir.FieldRef:
		return env.inst.Field(e.Slot), nil

	case *ir.LocalRef:
		return env.locals[e.Slot], nil

	case *ir.Index:
		av, err := env.Eval(e.Array)
		if err != nil {
			return Value{}, err
		}
		iv, err := env.Eval(e.Index)
		if err != nil {
			return Value{}, err
		}
		i, err := checkIndex(av.Array(), iv.Int32())
		if err != nil {
			return Value{}, err
		}
		return av.Array().Get(i), nil

	case *ir.Len:
		av, err := env.Eval(e.Array)
		if err != nil {
			return Value{}, err
		}
		if av.Array() == nil {
			return Value{}, newError(ErrCodeUnsupported, "len of nil array")
		}
		return Int(int32(av.Array().Len())), nil

	case *ir.Binary:
		x, err := env.Eval(e.X)
		if err != nil {
			return Value{}, err
		}
		y, err := env.Eval(e.Y)
		if err != nil {
			return Value{}, err
		}
		return Binary(e.Op, x, y)

	case *ir.Unary:
		x, err := env.Eval(e.X)
		if err != nil {
			return Value{}, err
		}
		return Unary(e.Op, x), nil

	case *ir.MinMax:
		x, err := env.Eval(e.X)
		if err != nil {
			return Value{}, err
		}
		y, err := env.Eval(e.Y)
		if err != nil {
			return Value{}, err
		}
		return MinMax(e.Max, x, y), nil

	case *ir.Conv:
		x, err := env.Eval(e.X)
		if err != nil {
			return Value{}, err
		}
		return Convert(x, e.T.Kind), nil

	case *ir.MakeArray:
		n, err := env.Eval(e.Len)
		if err != nil {
			return Value{}, err
		}
		if n.Int32() < 0 {
			return Value{}, newError(ErrCodeNegativeArraySize, "%d", n.Int32())
		}
		return ArrayValue(NewArray(e.Elem, int(n.Int32()))), nil

	default:
		return Value{}, newError(ErrCodeUnsupported, "expression %T", e)
	}
}

func checkIndex(a *Array, i int32) (int, error) {
	if a == nil {
		return 0, newError(ErrCodeUnsupported, "index of nil array")
	}
	if i < 0 || int(i) >= a.Len() {
		return 0, newError(ErrCodeIndexOutOfBounds, "Index %d out of bounds for length %d", i, a.Len())
	}
	return int(i), nil
}
