package eval

import "lurk-zk/pkg/zstore"

// apply binds args one at a time. Arguments are unevaluated expressions and
// are evaluated in argsEnv. Missing arguments yield the partially applied
// function; extra arguments are applied to the body's result.
func (st *state) apply(head, args, argsEnv zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncApply)
	if head.Tag != zstore.TagFun {
		return st.errVal(zstore.ApplyNonFunc)
	}
	params, body, funEnv, err := st.store.Fetch5(head.Digest)
	if err != nil {
		return outcome{}, err
	}
	env := zstore.ZPtr{Tag: zstore.TagEnv, Digest: funEnv}
	switch params.Tag {
	case zstore.TagNil:
		switch args.Tag {
		case zstore.TagNil:
			return st.begin(body, env)
		case zstore.TagCons:
			st.k.push(frame{op: opApplyOversat, y: args, env: argsEnv})
			return st.begin(body, env)
		}
		return st.errVal(zstore.ArgsNotList)
	case zstore.TagCons:
	default:
		return st.errVal(zstore.ParamsNotList)
	}

	param, restParams, err := st.store.Fetch4(params.Digest)
	if err != nil {
		return outcome{}, err
	}
	if param == st.store.Rest() {
		return st.applyRest(restParams, body, env, args, argsEnv)
	}

	switch args.Tag {
	case zstore.TagNil:
		return value(head), nil
	case zstore.TagCons:
		if !isSymbolLike(param) {
			return st.errVal(zstore.IllegalBindingVar)
		}
		arg, restArgs, err := st.store.Fetch4(args.Digest)
		if err != nil {
			return outcome{}, err
		}
		st.k.push(frame{op: opApplyArg, x: head, y: restArgs, env: argsEnv})
		return evalIn(arg, argsEnv), nil
	}
	return st.errVal(zstore.ArgsNotList)
}

// applyRest collects every remaining argument into the variable following
// &rest, which must be the last parameter.
func (st *state) applyRest(restParams, body, env, args, argsEnv zstore.ZPtr) (outcome, error) {
	switch restParams.Tag {
	case zstore.TagNil:
		return st.errVal(zstore.ParamInvalidRest)
	case zstore.TagCons:
	default:
		return st.errVal(zstore.ParamsNotList)
	}
	restParam, tail, err := st.store.Fetch4(restParams.Digest)
	if err != nil {
		return outcome{}, err
	}
	if !isSymbolLike(restParam) {
		return st.errVal(zstore.IllegalBindingVar)
	}
	if tail.Tag != zstore.TagNil {
		return st.errVal(zstore.ParamInvalidRest)
	}
	st.k.push(frame{op: opApplyRest, x: restParam, y: body, z: env, env: argsEnv})
	return st.evalList(args, argsEnv, nil)
}

// resumeApplyArg binds the evaluated first argument and continues with the
// remaining parameters.
func (st *state) resumeApplyArg(f frame, val zstore.ZPtr) (outcome, error) {
	params, body, funEnv, err := st.store.Fetch5(f.x.Digest)
	if err != nil {
		return outcome{}, err
	}
	param, restParams, err := st.store.Fetch4(params.Digest)
	if err != nil {
		return outcome{}, err
	}
	ext := st.extendEnv(param, val, zstore.ZPtr{Tag: zstore.TagEnv, Digest: funEnv})
	return st.apply(st.fun(restParams, body, ext), f.y, f.env)
}
