package eval

import (
	"fmt"

	"go.uber.org/zap"

	"lurk-zk/pkg/zstore"
)

type builtin uint8

const (
	bLet builtin = iota
	bLetrec
	bLambda
	bCons
	bStrcons
	bTypeEq
	bTypeEqq
	bApply
	bList
	bAdd
	bSub
	bMul
	bDiv
	bMod
	bNumEq
	bLess
	bGreater
	bLessEq
	bGreaterEq
	bEval
	bQuote
	bBegin
	bCurrentEnv
	bEmptyEnv
	bFail
	bBind
	bEnv
	bBreakpoint
	bIf
	bEq
	bEqq
	bHide
	bCommit
	bOpen
	bSecret
	bCar
	bCdr
	bU64
	bChar
	bAtom
	bEmit
	bBigNum
	bComm
	numBuiltins
)

var builtinNames = [numBuiltins]string{
	bLet:        "let",
	bLetrec:     "letrec",
	bLambda:     "lambda",
	bCons:       "cons",
	bStrcons:    "strcons",
	bTypeEq:     "type-eq",
	bTypeEqq:    "type-eqq",
	bApply:      "apply",
	bList:       "list",
	bAdd:        "+",
	bSub:        "-",
	bMul:        "*",
	bDiv:        "/",
	bMod:        "%",
	bNumEq:      "=",
	bLess:       "<",
	bGreater:    ">",
	bLessEq:     "<=",
	bGreaterEq:  ">=",
	bEval:       "eval",
	bQuote:      "quote",
	bBegin:      "begin",
	bCurrentEnv: "current-env",
	bEmptyEnv:   "empty-env",
	bFail:       "fail",
	bBind:       "bind",
	bEnv:        "env",
	bBreakpoint: "breakpoint",
	bIf:         "if",
	bEq:         "eq",
	bEqq:        "eqq",
	bHide:       "hide",
	bCommit:     "commit",
	bOpen:       "open",
	bSecret:     "secret",
	bCar:        "car",
	bCdr:        "cdr",
	bU64:        "u64",
	bChar:       "char",
	bAtom:       "atom",
	bEmit:       "emit",
	bBigNum:     "bignum",
	bComm:       "comm",
}

func (b builtin) String() string {
	if b < numBuiltins {
		return builtinNames[b]
	}
	return fmt.Sprintf("builtin(%d)", uint8(b))
}

func (b builtin) isNumeric() bool {
	return b >= bAdd && b <= bGreaterEq
}

// oneArg destructures (e).
func (st *state) oneArg(rest zstore.ZPtr) (zstore.ZPtr, bool, error) {
	if rest.Tag != zstore.TagCons {
		return zstore.ZPtr{}, false, nil
	}
	e, tail, err := st.store.Fetch4(rest.Digest)
	if err != nil || tail.Tag != zstore.TagNil {
		return zstore.ZPtr{}, false, err
	}
	return e, true, nil
}

// twoArgs destructures (a b).
func (st *state) twoArgs(rest zstore.ZPtr) (zstore.ZPtr, zstore.ZPtr, bool, error) {
	if rest.Tag != zstore.TagCons {
		return zstore.ZPtr{}, zstore.ZPtr{}, false, nil
	}
	a, tail, err := st.store.Fetch4(rest.Digest)
	if err != nil || tail.Tag != zstore.TagCons {
		return zstore.ZPtr{}, zstore.ZPtr{}, false, err
	}
	b, tail, err := st.store.Fetch4(tail.Digest)
	if err != nil || tail.Tag != zstore.TagNil {
		return zstore.ZPtr{}, zstore.ZPtr{}, false, err
	}
	return a, b, true, nil
}

func (st *state) evalBuiltin(head, rest, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalBuiltinExpr)
	b, ok := st.m.builtins[head.Digest]
	if !ok {
		return outcome{}, fmt.Errorf("eval: unknown builtin digest %s", head.Digest)
	}
	switch b {
	case bLet, bLetrec, bLambda:
		if rest.Tag != zstore.TagCons {
			return st.errVal(zstore.InvalidForm)
		}
		fst, body, err := st.store.Fetch4(rest.Digest)
		if err != nil {
			return outcome{}, err
		}
		if body.Tag != zstore.TagCons {
			return st.errVal(zstore.InvalidForm)
		}
		switch b {
		case bLet:
			return st.let(fst, body, env)
		case bLetrec:
			return st.letrec(fst, body, env)
		}
		return value(st.fun(fst, body, env)), nil

	case bCons, bStrcons, bTypeEq, bTypeEqq, bApply, bHide, bEq, bEqq:
		fst, snd, ok, err := st.twoArgs(rest)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return st.errVal(zstore.InvalidForm)
		}
		switch b {
		case bCons, bStrcons:
			st.rec.call(FuncEvalBinopMisc)
		case bApply:
			st.rec.call(FuncEvalApplyBuiltin)
		case bHide:
			st.rec.call(FuncEvalHide)
		case bEq, bEqq:
			st.rec.call(FuncEqual)
		}
		switch b {
		case bTypeEqq, bEqq:
			// the first operand is compared unevaluated
			st.k.push(frame{op: opBinopSnd, builtin: b, x: fst, env: env})
			return evalIn(snd, env), nil
		case bEq:
			// the second operand is evaluated first
			st.k.push(frame{op: opBinopFst, builtin: b, y: fst, env: env})
			return evalIn(snd, env), nil
		}
		st.k.push(frame{op: opBinopFst, builtin: b, y: snd, env: env})
		return evalIn(fst, env), nil

	case bList:
		return st.evalList(rest, env, nil)

	case bAdd, bSub, bMul, bDiv, bMod, bNumEq, bLess, bGreater, bLessEq, bGreaterEq:
		fst, snd, ok, err := st.twoArgs(rest)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return st.errVal(zstore.InvalidForm)
		}
		st.rec.call(FuncEvalBinopNum)
		st.k.push(frame{op: opBinopFst, builtin: b, y: snd, env: env})
		return evalIn(fst, env), nil

	case bEval:
		return st.evalEval(rest, env)

	case bQuote:
		e, ok, err := st.oneArg(rest)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return st.errVal(zstore.InvalidForm)
		}
		return value(e), nil

	case bBegin:
		return st.begin(rest, env)

	case bCurrentEnv, bEmptyEnv, bFail:
		if rest.Tag != zstore.TagNil {
			return st.errVal(zstore.InvalidForm)
		}
		switch b {
		case bCurrentEnv:
			return value(env), nil
		case bEmptyEnv:
			return value(st.emptyEnv()), nil
		}
		return outcome{}, ErrExplicitFail

	case bBind:
		return st.bind(rest, env)

	case bEnv:
		return st.envBuiltin(rest, env, nil)

	case bBreakpoint:
		st.m.logger.Debug("breakpoint", zap.String("env", st.store.Fmt(env)))
		switch rest.Tag {
		case zstore.TagNil:
			return value(st.nilPtr()), nil
		case zstore.TagCons:
			e, tail, err := st.store.Fetch4(rest.Digest)
			if err != nil {
				return outcome{}, err
			}
			if tail.Tag != zstore.TagNil {
				return st.errVal(zstore.InvalidForm)
			}
			return evalIn(e, env), nil
		}
		return st.errVal(zstore.InvalidForm)

	case bIf:
		return st.evalIf(rest, env)

	case bCar, bCdr, bU64, bChar, bAtom, bEmit, bBigNum, bComm, bCommit, bOpen, bSecret:
		e, ok, err := st.oneArg(rest)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			return st.errVal(zstore.InvalidForm)
		}
		f := frame{builtin: b}
		switch b {
		case bCar, bCdr:
			st.rec.call(FuncCarCdr)
			f.op = opCarCdr
		case bCommit, bOpen, bSecret:
			st.rec.call(FuncEvalOpeningUnop)
			f.op = opOpening
		default:
			st.rec.call(FuncEvalUnop)
			f.op = opUnop
		}
		st.k.push(f)
		return evalIn(e, env), nil
	}
	return outcome{}, fmt.Errorf("eval: unhandled builtin %s", b)
}

func (st *state) evalEval(rest, env zstore.ZPtr) (outcome, error) {
	if rest.Tag != zstore.TagCons {
		return st.errVal(zstore.InvalidForm)
	}
	e, tail, err := st.store.Fetch4(rest.Digest)
	if err != nil {
		return outcome{}, err
	}
	switch tail.Tag {
	case zstore.TagNil:
		// evaluated twice, the second time like a fixed point
		st.k.push(frame{op: opEvalTwice})
		return evalIn(e, env), nil
	case zstore.TagCons:
		envExpr, tail, err := st.store.Fetch4(tail.Digest)
		if err != nil {
			return outcome{}, err
		}
		if tail.Tag != zstore.TagNil {
			return st.errVal(zstore.InvalidForm)
		}
		st.k.push(frame{op: opEvalEnvArg, y: envExpr, env: env})
		return evalIn(e, env), nil
	}
	return st.errVal(zstore.NotEnv)
}

func (st *state) evalIf(rest, env zstore.ZPtr) (outcome, error) {
	if rest.Tag != zstore.TagCons {
		return st.errVal(zstore.InvalidForm)
	}
	cond, rest, err := st.store.Fetch4(rest.Digest)
	if err != nil {
		return outcome{}, err
	}
	if rest.Tag != zstore.TagCons {
		return st.errVal(zstore.InvalidForm)
	}
	then, rest, err := st.store.Fetch4(rest.Digest)
	if err != nil {
		return outcome{}, err
	}
	switch rest.Tag {
	case zstore.TagNil:
		st.k.push(frame{op: opIf3, x: then, env: env})
		return evalIn(cond, env), nil
	case zstore.TagCons:
		els, rest, err := st.store.Fetch4(rest.Digest)
		if err != nil {
			return outcome{}, err
		}
		if rest.Tag != zstore.TagNil {
			return st.errVal(zstore.InvalidForm)
		}
		st.k.push(frame{op: opIf4, x: then, y: els, env: env})
		return evalIn(cond, env), nil
	}
	return st.errVal(zstore.InvalidForm)
}

// bind evaluates (bind sym val env) into a new head binding.
func (st *state) bind(rest, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalBindBuiltin)
	args, tail, err := st.store.FetchList(rest)
	if err != nil {
		return outcome{}, err
	}
	if len(args) != 3 || tail.Tag != zstore.TagNil {
		return st.errVal(zstore.InvalidForm)
	}
	st.k.push(frame{op: opBindSym, y: args[1], z: args[2], env: env})
	return evalIn(args[0], env), nil
}

// envBuiltin evaluates (env b1 ... bn) where each bi yields (sym . val).
func (st *state) envBuiltin(rest, env zstore.ZPtr, acc []zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalEnvBuiltin)
	switch rest.Tag {
	case zstore.TagNil:
		return value(st.buildEnv(acc)), nil
	case zstore.TagCons:
		head, tail, err := st.store.Fetch4(rest.Digest)
		if err != nil {
			return outcome{}, err
		}
		st.k.push(frame{op: opEnvBuiltin, y: tail, env: env, acc: acc})
		return evalIn(head, env), nil
	}
	return st.errVal(zstore.InvalidForm)
}

func (st *state) carCdr(b builtin, val zstore.ZPtr) (outcome, error) {
	var car, cdr zstore.ZPtr
	switch val.Tag {
	case zstore.TagCons:
		a, d, err := st.store.Fetch4(val.Digest)
		if err != nil {
			return outcome{}, err
		}
		car, cdr = a, d
	case zstore.TagNil:
		car, cdr = st.nilPtr(), st.nilPtr()
	case zstore.TagStr:
		if val.Digest.IsZero() {
			car, cdr = st.nilPtr(), val
			break
		}
		a, d, err := st.store.Fetch4(val.Digest)
		if err != nil {
			return outcome{}, err
		}
		car, cdr = a, d
	default:
		return st.errVal(zstore.NotCons)
	}
	if b == bCar {
		return value(car), nil
	}
	return value(cdr), nil
}

func (st *state) unop(b builtin, val zstore.ZPtr) (outcome, error) {
	switch b {
	case bAtom:
		return value(st.store.Bool(val.Tag != zstore.TagCons)), nil
	case bEmit:
		st.rec.Emitted = append(st.rec.Emitted, val)
		st.m.logger.Debug("emit", zap.String("value", st.store.Fmt(val)))
		return value(val), nil
	case bU64:
		switch val.Tag {
		case zstore.TagU64:
			return value(val), nil
		case zstore.TagChar:
			return value(st.store.U64(val.Digest[0].Uint64())), nil
		}
		return st.errVal(zstore.CantCastToU64)
	case bChar:
		switch val.Tag {
		case zstore.TagChar:
			return value(val), nil
		case zstore.TagU64:
			return value(st.store.Char(rune(uint32(val.Digest[0].Uint64())))), nil
		}
		return st.errVal(zstore.CantCastToChar)
	case bBigNum:
		switch val.Tag {
		case zstore.TagBigNum:
			return value(val), nil
		case zstore.TagComm:
			return value(zstore.ZPtr{Tag: zstore.TagBigNum, Digest: val.Digest}), nil
		}
		return st.errVal(zstore.CantCastToBigNum)
	case bComm:
		switch val.Tag {
		case zstore.TagBigNum:
			return value(zstore.ZPtr{Tag: zstore.TagComm, Digest: val.Digest}), nil
		case zstore.TagComm:
			return value(val), nil
		}
		return st.errVal(zstore.CantCastToComm)
	}
	return outcome{}, fmt.Errorf("eval: %s is not a unary operator", b)
}

func (st *state) opening(b builtin, val zstore.ZPtr) (outcome, error) {
	if b == bCommit {
		st.rec.call(FuncEgress)
		st.rec.call(FuncHash3)
		return value(st.store.Commit(val)), nil
	}
	if val.Tag != zstore.TagComm && val.Tag != zstore.TagBigNum {
		return st.errVal(zstore.CantOpen)
	}
	secret, payload, ok := st.store.FetchComm(val.Digest)
	if !ok {
		return st.errVal(zstore.CantOpen)
	}
	if b == bOpen {
		st.rec.call(FuncIngress)
		return value(payload), nil
	}
	return value(st.store.BigNum(secret)), nil
}

func (st *state) evalCoroutine(head, rest, env zstore.ZPtr) (outcome, error) {
	st.rec.call(FuncEvalCoroutineExpr)
	st.k.push(frame{op: opCoroutine, x: head, env: env})
	return st.evalList(rest, env, nil)
}

func (st *state) callCoroutine(head, args, env zstore.ZPtr) (outcome, error) {
	c, ok := st.m.coroutines[head.Digest]
	if !ok {
		return outcome{}, fmt.Errorf("eval: no coroutine bound to %s", st.store.Fmt(head))
	}
	elems, _, err := st.store.FetchList(args)
	if err != nil {
		return outcome{}, err
	}
	if len(elems) != c.Arity {
		return st.errVal(zstore.InvalidForm)
	}
	var cenv zstore.ZPtr
	if c.UsesEnv {
		cenv = env
	}
	res, err := c.Fn(st.store, elems, cenv)
	if err != nil {
		return outcome{}, fmt.Errorf("coroutine %s: %w", c.Name, err)
	}
	return value(res), nil
}
