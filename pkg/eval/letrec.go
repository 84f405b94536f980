package eval

import "lurk-zk/pkg/zstore"

// binding destructures (sym expr).
func (st *state) binding(bind zstore.ZPtr) (zstore.ZPtr, zstore.ZPtr, *zstore.EvalErr, error) {
	sym, expr, ok, err := st.twoArgs(bind)
	if err != nil {
		return zstore.ZPtr{}, zstore.ZPtr{}, nil, err
	}
	if !ok {
		kind := zstore.InvalidForm
		return zstore.ZPtr{}, zstore.ZPtr{}, &kind, nil
	}
	if !isSymbolLike(sym) {
		kind := zstore.IllegalBindingVar
		return zstore.ZPtr{}, zstore.ZPtr{}, &kind, nil
	}
	return sym, expr, nil, nil
}

// let binds sequentially; each expression sees the previous bindings.
func (st *state) let(binds, body, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalLet)
	switch binds.Tag {
	case zstore.TagNil:
		return st.begin(body, env)
	case zstore.TagCons:
	default:
		return st.errVal(zstore.InvalidForm)
	}
	bind, rest, err := st.store.Fetch4(binds.Digest)
	if err != nil {
		return outcome{}, err
	}
	sym, expr, kind, err := st.binding(bind)
	if err != nil {
		return outcome{}, err
	}
	if kind != nil {
		return st.errVal(*kind)
	}
	st.k.push(frame{op: opLet, x: sym, y: rest, z: body, env: env})
	return evalIn(expr, env), nil
}

// letrec binds every name to a fixed point closing over all of binds, then
// forces each fixed point once so that errors surface before the body runs.
func (st *state) letrec(binds, body, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalLetrec)
	ext, fixes, err := st.extendWithMutuals(binds, binds, env, env)
	if err != nil {
		return outcome{}, err
	}
	if ext.Tag == zstore.TagErr {
		return value(ext), nil
	}
	return st.letrecBindings(fixes, body, ext)
}

// extendWithMutuals prepends one Fix per binding to extEnv. Each Fix
// carries mutualBinds and mutualEnv so that it can rebuild the group when
// forced. The returned fixes are in declaration order. A malformed binding
// yields an Err pointer in place of the environment.
func (st *state) extendWithMutuals(binds, mutualBinds, mutualEnv, extEnv zstore.ZPtr) (zstore.ZPtr, []zstore.ZPtr, error) {
	st.rec.call(FuncExtendEnvWithMutuals)
	var fixes []zstore.ZPtr
	for binds.Tag == zstore.TagCons {
		bind, rest, err := st.store.Fetch4(binds.Digest)
		if err != nil {
			return zstore.ZPtr{}, nil, err
		}
		sym, expr, kind, err := st.binding(bind)
		if err != nil {
			return zstore.ZPtr{}, nil, err
		}
		if kind != nil {
			return st.store.Err(*kind), nil, nil
		}
		fix := st.fix(expr, mutualBinds, mutualEnv)
		extEnv = st.extendEnv(sym, fix, extEnv)
		fixes = append(fixes, fix)
		binds = rest
	}
	if binds.Tag != zstore.TagNil {
		return st.store.Err(zstore.InvalidForm), nil, nil
	}
	return extEnv, fixes, nil
}

func (st *state) letrecBindings(fixes []zstore.ZPtr, body, extEnv zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalLetrecBindings)
	if len(fixes) == 0 {
		return st.begin(body, extEnv)
	}
	st.k.push(frame{op: opLetrecBinding, acc: fixes[1:], z: body, x: extEnv})
	return evalIn(fixes[0], st.emptyEnv()), nil
}
