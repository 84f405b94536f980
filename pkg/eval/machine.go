// Package eval implements Lurk evaluation as an explicit continuation
// machine over content-addressed pointers.
package eval

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lurk-zk/pkg/zstore"
)

var (
	// ErrExplicitFail is returned when a program evaluates (fail).
	ErrExplicitFail = errors.New("explicit fail encountered")
	ErrStepLimit    = errors.New("step limit exceeded")
	ErrInvalidEnv   = errors.New("environment pointer must be tagged Env")
)

// Machine evaluates expressions against a store. It holds no per-evaluation
// state and may be shared between goroutines.
type Machine struct {
	store      *zstore.Store
	builtins   map[zstore.Digest]builtin
	coroutines map[zstore.Digest]*Coroutine
	logger     *zap.Logger
	stepLimit  uint64
}

type Option func(*Machine) error

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) error {
		m.logger = l
		return nil
	}
}

// WithLang enables the coroutines of l. The store must have been created
// by l.NewStore.
func WithLang(l *Lang) Option {
	return func(m *Machine) error {
		cs, err := l.resolve(m.store)
		if err != nil {
			return err
		}
		m.coroutines = cs
		return nil
	}
}

// WithStepLimit aborts evaluations running more than n steps. Zero means
// unlimited.
func WithStepLimit(n uint64) Option {
	return func(m *Machine) error {
		m.stepLimit = n
		return nil
	}
}

func NewMachine(store *zstore.Store, opts ...Option) (*Machine, error) {
	m := &Machine{
		store:      store,
		builtins:   make(map[zstore.Digest]builtin, len(builtinNames)),
		coroutines: map[zstore.Digest]*Coroutine{},
		logger:     zap.NewNop(),
	}
	for b, name := range builtinNames {
		m.builtins[store.Digests().MustBuiltin(name)] = builtin(b)
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Store returns the machine's store.
func (m *Machine) Store() *zstore.Store {
	return m.store
}

// Eval evaluates expr in env. The result is in evaluation form (nil and t
// carry internal tags); its Flatten is the persisted form. A returned error
// means the evaluation aborted: explicit fail, a step limit, or a digest
// with no preimage.
func (m *Machine) Eval(expr, env zstore.ZPtr) (zstore.ZPtr, *Record, error) {
	start := time.Now()
	rec := &Record{}
	if env.Tag != zstore.TagEnv {
		return zstore.ZPtr{}, rec, fmt.Errorf("%w: have %s", ErrInvalidEnv, env.Tag)
	}
	rec.call(FuncLurkMain)
	rec.call(FuncPreallocateSymbols)
	rec.call(FuncIngress)
	st := &state{m: m, store: m.store, rec: rec}
	res, err := st.run(m.store.Ingress(expr), env)
	evalSteps.Observe(float64(rec.Steps))
	if err != nil {
		evaluations.WithLabelValues(outcomeAborted).Inc()
		m.logger.Warn("evaluation aborted",
			zap.Error(err),
			zap.Uint64("steps", rec.Steps),
			zap.Duration("elapsed", time.Since(start)))
		return zstore.ZPtr{}, rec, err
	}
	rec.call(FuncEgress)
	outcome := outcomeValue
	if res.Tag == zstore.TagErr {
		outcome = outcomeErr
	}
	evaluations.WithLabelValues(outcome).Inc()
	m.logger.Debug("evaluation finished",
		zap.String("tag", res.Tag.String()),
		zap.Uint64("steps", rec.Steps),
		zap.Uint32("depth", rec.Depth),
		zap.Duration("elapsed", time.Since(start)))
	return res, rec, nil
}

// state is the per-evaluation register file.
type state struct {
	m     *Machine
	store *zstore.Store
	k     continuation
	rec   *Record
}

func (st *state) run(expr, env zstore.ZPtr) (zstore.ZPtr, error) {
	out := evalIn(expr, env)
	for {
		st.rec.Steps++
		if st.m.stepLimit > 0 && st.rec.Steps > st.m.stepLimit {
			return zstore.ZPtr{}, fmt.Errorf("%w: %d", ErrStepLimit, st.m.stepLimit)
		}
		var err error
		if out.eval {
			out, err = st.eval(out.expr, out.env)
		} else {
			// Every construct returns an Err unchanged, so the whole
			// continuation can be dropped.
			if out.val.Tag == zstore.TagErr || st.k.empty() {
				return out.val, nil
			}
			out, err = st.resume(st.k.pop(), out.val)
		}
		if err != nil {
			return zstore.ZPtr{}, err
		}
		st.rec.observeDepth(len(st.k))
	}
}

func (st *state) errVal(kind zstore.EvalErr) (outcome, error) {
	return value(st.store.Err(kind)), nil
}

func (st *state) emptyEnv() zstore.ZPtr {
	return st.store.EmptyEnv()
}

func (st *state) nilPtr() zstore.ZPtr {
	return st.store.Nil()
}

// Constructors below record the store hash each one performs.

func (st *state) cons(car, cdr zstore.ZPtr) zstore.ZPtr {
	st.rec.call(FuncHash4)
	return st.store.Cons(car, cdr)
}

func (st *state) strCons(char, tail zstore.ZPtr) zstore.ZPtr {
	st.rec.call(FuncHash4)
	return st.store.StrCons(char, tail)
}

func (st *state) list(elems []zstore.ZPtr) zstore.ZPtr {
	for range elems {
		st.rec.call(FuncHash4)
	}
	return st.store.List(elems...)
}

func (st *state) extendEnv(sym, val, env zstore.ZPtr) zstore.ZPtr {
	st.rec.call(FuncHash5)
	return st.store.ExtendEnv(sym, val, env)
}

func (st *state) fun(params, body, env zstore.ZPtr) zstore.ZPtr {
	st.rec.call(FuncHash5)
	return st.store.Fun(params, body, env)
}

func (st *state) fix(body, binds, env zstore.ZPtr) zstore.ZPtr {
	st.rec.call(FuncHash5)
	return st.store.Fix(body, binds, env)
}

func isSymbolLike(p zstore.ZPtr) bool {
	switch p.Tag {
	case zstore.TagSym, zstore.TagBuiltin, zstore.TagCoroutine:
		return true
	}
	return false
}

// eval dispatches on the expression's tag.
func (st *state) eval(expr, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEval)
	switch expr.Tag {
	case zstore.TagSym, zstore.TagBuiltin, zstore.TagCoroutine:
		val, err := st.lookup(expr, env)
		if err != nil {
			return outcome{}, err
		}
		if val.Tag == zstore.TagFix {
			// fixed points are closed terms
			return evalIn(val, st.emptyEnv()), nil
		}
		return value(val), nil
	case zstore.TagCons:
		head, rest, err := st.store.Fetch4(expr.Digest)
		if err != nil {
			return outcome{}, err
		}
		switch head.Tag {
		case zstore.TagBuiltin:
			return st.evalBuiltin(head, rest, env)
		case zstore.TagCoroutine:
			return st.evalCoroutine(head, rest, env)
		}
		st.k.push(frame{op: opApplyHead, y: rest, env: env})
		return evalIn(head, env), nil
	case zstore.TagFix:
		body, binds, mutualEnv, err := st.store.Fetch5(expr.Digest)
		if err != nil {
			return outcome{}, err
		}
		menv := zstore.ZPtr{Tag: zstore.TagEnv, Digest: mutualEnv}
		ext, _, err := st.extendWithMutuals(binds, binds, menv, menv)
		if err != nil {
			return outcome{}, err
		}
		if ext.Tag == zstore.TagErr {
			return value(ext), nil
		}
		return evalIn(body, ext), nil
	case zstore.TagEnv:
		return st.evalEnvLiteral(expr, env, nil)
	}
	return value(expr), nil
}

// lookup walks env front to back; the first binding of sym wins.
func (st *state) lookup(sym, env zstore.ZPtr) (zstore.ZPtr, error) {
	for !env.Digest.IsZero() {
		st.rec.call(FuncEnvLookup)
		key, val, tail, err := st.store.Fetch5(env.Digest)
		if err != nil {
			return zstore.ZPtr{}, err
		}
		if key == sym {
			return val, nil
		}
		env = zstore.ZPtr{Tag: zstore.TagEnv, Digest: tail}
	}
	st.rec.call(FuncEnvLookup)
	return st.store.Err(zstore.UnboundVar), nil
}

// evalEnvLiteral evaluates each binding of an Env value in order. acc holds
// already evaluated (sym, val) pairs, flattened.
func (st *state) evalEnvLiteral(node, env zstore.ZPtr, acc []zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalEnvLiteral)
	if node.Digest.IsZero() {
		return value(st.buildEnv(acc)), nil
	}
	sym, val, tail, err := st.store.Fetch5(node.Digest)
	if err != nil {
		return outcome{}, err
	}
	if !isSymbolLike(sym) {
		return st.errVal(zstore.IllegalBindingVar)
	}
	st.k.push(frame{
		op:  opEnvLiteral,
		x:   sym,
		y:   zstore.ZPtr{Tag: zstore.TagEnv, Digest: tail},
		env: env,
		acc: acc,
	})
	return evalIn(val, env), nil
}

// buildEnv turns flattened (sym, val) pairs into an environment whose head
// is the first pair.
func (st *state) buildEnv(pairs []zstore.ZPtr) zstore.ZPtr {
	out := st.emptyEnv()
	for i := len(pairs) - 2; i >= 0; i -= 2 {
		out = st.extendEnv(pairs[i], pairs[i+1], out)
	}
	return out
}

// begin evaluates a body list, returning the last value.
func (st *state) begin(body, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalBegin)
	switch body.Tag {
	case zstore.TagNil:
		return value(body), nil
	case zstore.TagCons:
		head, rest, err := st.store.Fetch4(body.Digest)
		if err != nil {
			return outcome{}, err
		}
		if rest.Tag == zstore.TagNil {
			return evalIn(head, env), nil
		}
		st.k.push(frame{op: opBegin, y: rest, env: env})
		return evalIn(head, env), nil
	}
	return st.errVal(zstore.InvalidForm)
}

// evalList evaluates each element of a list in order.
func (st *state) evalList(rest, env zstore.ZPtr, acc []zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalList)
	switch rest.Tag {
	case zstore.TagNil:
		return value(st.list(acc)), nil
	case zstore.TagCons:
		head, tail, err := st.store.Fetch4(rest.Digest)
		if err != nil {
			return outcome{}, err
		}
		st.k.push(frame{op: opList, y: tail, env: env, acc: acc})
		return evalIn(head, env), nil
	}
	return st.errVal(zstore.InvalidForm)
}

// openComm resolves a commitment to its payload.
func (st *state) openComm(p zstore.ZPtr) (zstore.ZPtr, bool) {
	st.rec.call(FuncOpenComm)
	_, payload, ok := st.store.FetchComm(p.Digest)
	return payload, ok
}

// resume hands val to the frame f.
func (st *state) resume(f frame, val zstore.ZPtr) (outcome, error) {
	switch f.op {
	case opApplyHead:
		head := val
		if head.Tag == zstore.TagComm || head.Tag == zstore.TagBigNum {
			payload, ok := st.openComm(head)
			if !ok {
				return st.errVal(zstore.CantOpen)
			}
			head = payload
		}
		return st.apply(head, f.y, f.env)
	case opApplyArg:
		return st.resumeApplyArg(f, val)
	case opApplyRest:
		ext := st.extendEnv(f.x, val, f.z)
		fun := st.fun(st.nilPtr(), f.y, ext)
		return st.apply(fun, st.nilPtr(), f.env)
	case opApplyOversat:
		switch f.y.Tag {
		case zstore.TagNil:
			return value(val), nil
		case zstore.TagCons:
			return st.apply(val, f.y, f.env)
		}
		return st.errVal(zstore.ArgsNotList)
	case opBegin:
		return st.begin(f.y, f.env)
	case opList:
		return st.evalList(f.y, f.env, append(f.acc, val))
	case opLet:
		ext := st.extendEnv(f.x, val, f.env)
		if f.y.Tag != zstore.TagNil {
			return st.let(f.y, f.z, ext)
		}
		return st.begin(f.z, ext)
	case opLetrecBinding:
		return st.letrecBindings(f.acc, f.z, f.x)
	case opIf3:
		if val.Tag == zstore.TagNil {
			return value(val), nil
		}
		return evalIn(f.x, f.env), nil
	case opIf4:
		if val.Tag == zstore.TagNil {
			return evalIn(f.y, f.env), nil
		}
		return evalIn(f.x, f.env), nil
	case opBinopFst:
		st.k.push(frame{op: opBinopSnd, builtin: f.builtin, x: val, env: f.env})
		return evalIn(f.y, f.env), nil
	case opBinopSnd:
		return st.binop(f.builtin, f.x, val, f.env)
	case opBindSym:
		if !isSymbolLike(val) {
			return st.errVal(zstore.IllegalBindingVar)
		}
		st.k.push(frame{op: opBindVal, x: val, z: f.z, env: f.env})
		return evalIn(f.y, f.env), nil
	case opBindVal:
		st.k.push(frame{op: opBindEnv, x: f.x, y: val})
		return evalIn(f.z, f.env), nil
	case opBindEnv:
		if val.Tag != zstore.TagEnv {
			return st.errVal(zstore.NotEnv)
		}
		return value(st.extendEnv(f.x, f.y, val)), nil
	case opEvalTwice:
		return evalIn(val, st.emptyEnv()), nil
	case opEvalEnvArg:
		st.k.push(frame{op: opEvalWithEnv, x: val})
		return evalIn(f.y, f.env), nil
	case opEvalWithEnv:
		if val.Tag != zstore.TagEnv {
			return st.errVal(zstore.NotEnv)
		}
		return evalIn(f.x, val), nil
	case opEnvBuiltin:
		if val.Tag != zstore.TagCons {
			return st.errVal(zstore.NotCons)
		}
		sym, v, err := st.store.Fetch4(val.Digest)
		if err != nil {
			return outcome{}, err
		}
		if !isSymbolLike(sym) {
			return st.errVal(zstore.IllegalBindingVar)
		}
		return st.envBuiltin(f.y, f.env, append(f.acc, sym, v))
	case opEnvLiteral:
		return st.evalEnvLiteral(f.y, f.env, append(f.acc, f.x, val))
	case opCarCdr:
		return st.carCdr(f.builtin, val)
	case opUnop:
		return st.unop(f.builtin, val)
	case opOpening:
		return st.opening(f.builtin, val)
	case opCoroutine:
		return st.callCoroutine(f.x, val, f.env)
	}
	return outcome{}, fmt.Errorf("eval: unknown continuation op %s", f.op)
}
