package eval

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"lurk-zk/pkg/zstore"
)

// binop applies a two-operand builtin to evaluated operands.
func (st *state) binop(b builtin, a, c, env zstore.ZPtr) (outcome, error) {
	switch b {
	case bCons:
		return value(st.cons(a, c)), nil
	case bStrcons:
		if a.Tag != zstore.TagChar {
			return st.errVal(zstore.NotChar)
		}
		if c.Tag != zstore.TagStr {
			return st.errVal(zstore.NotString)
		}
		return value(st.strCons(a, c)), nil
	case bTypeEq, bTypeEqq:
		return value(st.store.Bool(st.coerceIfSym(a) == st.coerceIfSym(c))), nil
	case bApply:
		return st.apply(a, c, env)
	case bEq, bEqq:
		return value(st.store.Bool(st.equalInner(a, c))), nil
	case bHide:
		if a.Tag != zstore.TagBigNum {
			return st.errVal(zstore.NotBigNum)
		}
		st.rec.call(FuncHash3)
		return value(st.store.Hide(a.Digest, c)), nil
	}
	if b.isNumeric() {
		return st.arith(b, a, c)
	}
	return outcome{}, fmt.Errorf("eval: %s is not a binary operator", b)
}

// coerceIfSym folds nil and t back into Sym for type comparisons.
func (st *state) coerceIfSym(p zstore.ZPtr) zstore.Tag {
	st.rec.call(FuncCoerceIfSym)
	return p.Tag.Persisted()
}

// equalInner compares two values structurally. Content addressing makes
// this a tag and digest comparison.
func (st *state) equalInner(a, c zstore.ZPtr) bool {
	st.rec.call(FuncEqualInner)
	if a.Tag != c.Tag {
		return false
	}
	st.rec.call(FuncDigestEqual)
	return a.Digest == c.Digest
}

func (st *state) arith(b builtin, a, c zstore.ZPtr) (outcome, error) {
	if a.Tag != c.Tag {
		return st.errVal(zstore.InvalidArg)
	}
	switch a.Tag {
	case zstore.TagNum:
		return st.numOp(b, a.Digest[0], c.Digest[0])
	case zstore.TagU64:
		return st.u64Op(b, a.Digest[0].Uint64(), c.Digest[0].Uint64())
	case zstore.TagBigNum:
		return st.bigNumOp(b, a.Digest, c.Digest)
	}
	return st.errVal(zstore.InvalidArg)
}

func (st *state) numOp(b builtin, x, y fr.Element) (outcome, error) {
	var z fr.Element
	switch b {
	case bAdd:
		z.Add(&x, &y)
	case bSub:
		z.Sub(&x, &y)
	case bMul:
		z.Mul(&x, &y)
	case bDiv:
		if y.IsZero() {
			return st.errVal(zstore.DivByZero)
		}
		z.Div(&x, &y)
	case bMod:
		return st.errVal(zstore.NotU64)
	default:
		return value(st.store.Bool(compare(b, x.Cmp(&y)))), nil
	}
	return value(st.store.Num(z)), nil
}

func (st *state) u64Op(b builtin, x, y uint64) (outcome, error) {
	var z uint64
	switch b {
	case bAdd:
		st.rec.call(FuncU64Add)
		z = x + y
	case bSub:
		st.rec.call(FuncU64Sub)
		z = x - y
	case bMul:
		st.rec.call(FuncU64Mul)
		z = x * y
	case bDiv, bMod:
		st.rec.call(FuncU64IsZero)
		if y == 0 {
			return st.errVal(zstore.DivByZero)
		}
		st.rec.call(FuncU64DivRem)
		if b == bDiv {
			z = x / y
		} else {
			z = x % y
		}
	default:
		st.rec.call(FuncU64LessThan)
		cmp := 0
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
		return value(st.store.Bool(compare(b, cmp))), nil
	}
	return value(st.store.U64(z)), nil
}

func (st *state) bigNumOp(b builtin, x, y zstore.Digest) (outcome, error) {
	switch b {
	case bAdd, bSub, bMul, bDiv, bMod:
		return st.errVal(zstore.InvalidArg)
	}
	st.rec.call(FuncBigNumLessThan)
	cmp := 0
	for i := range x {
		if cmp = x[i].Cmp(&y[i]); cmp != 0 {
			break
		}
	}
	return value(st.store.Bool(compare(b, cmp))), nil
}

// compare maps a three-way comparison onto a comparison builtin.
func compare(b builtin, cmp int) bool {
	switch b {
	case bNumEq:
		return cmp == 0
	case bLess:
		return cmp < 0
	case bGreater:
		return cmp > 0
	case bLessEq:
		return cmp <= 0
	case bGreaterEq:
		return cmp >= 0
	}
	return false
}
