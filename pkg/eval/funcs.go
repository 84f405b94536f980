package eval

import "lurk-zk/pkg/zstore"

// FuncID identifies one of the evaluator's functions.
type FuncID uint8

const (
	FuncLurkMain FuncID = iota
	FuncPreallocateSymbols
	FuncEval
	FuncEvalBuiltinExpr
	FuncEvalBindBuiltin
	FuncEvalEnvBuiltin
	FuncEvalEnvLiteral
	FuncEvalApplyBuiltin
	FuncEvalCoroutineExpr
	FuncEvalOpeningUnop
	FuncEvalHide
	FuncEvalUnop
	FuncEvalBinopNum
	FuncEvalBinopMisc
	FuncEvalBegin
	FuncEvalList
	FuncCoerceIfSym
	FuncOpenComm
	FuncEqual
	FuncEqualInner
	FuncCarCdr
	FuncEvalLet
	FuncEvalLetrec
	FuncExtendEnvWithMutuals
	FuncEvalLetrecBindings
	FuncApply
	FuncEnvLookup
	FuncIngress
	FuncEgress
	FuncHash3
	FuncHash4
	FuncHash5
	FuncU64Add
	FuncU64Sub
	FuncU64Mul
	FuncU64DivRem
	FuncU64LessThan
	FuncU64IsZero
	FuncDigestEqual
	FuncBigNumLessThan
	numFuncs
)

// FuncInfo is the per-function metadata read by a constraint compiler.
// Sizes are counted in field elements.
type FuncInfo struct {
	ID         FuncID
	Name       string
	InputSize  int
	OutputSize int
	Partial    bool
}

const (
	dsz = zstore.DigestSize
	zsz = zstore.ZPtrSize
)

var funcs = [numFuncs]FuncInfo{
	{FuncLurkMain, "lurk_main", 3 * dsz, zsz, true},
	{FuncPreallocateSymbols, "preallocate_symbols", 0, 0, false},
	{FuncEval, "eval", 3, 2, true},
	{FuncEvalBuiltinExpr, "eval_builtin_expr", 4, 2, true},
	{FuncEvalBindBuiltin, "eval_bind_builtin", 3, 2, true},
	{FuncEvalEnvBuiltin, "eval_env_builtin", 3, 2, true},
	{FuncEvalEnvLiteral, "eval_env_literal", 2, 2, true},
	{FuncEvalApplyBuiltin, "eval_apply_builtin", 5, 2, true},
	{FuncEvalCoroutineExpr, "eval_coroutine_expr", 4, 2, true},
	{FuncEvalOpeningUnop, "eval_opening_unop", 4, 2, true},
	{FuncEvalHide, "eval_hide", 3, 2, true},
	{FuncEvalUnop, "eval_unop", 4, 2, true},
	{FuncEvalBinopNum, "eval_binop_num", 6, 2, true},
	{FuncEvalBinopMisc, "eval_binop_misc", 6, 2, true},
	{FuncEvalBegin, "eval_begin", 3, 2, true},
	{FuncEvalList, "eval_list", 3, 2, true},
	{FuncCoerceIfSym, "coerce_if_sym", 1, 1, false},
	{FuncOpenComm, "open_comm", 1, 2, false},
	{FuncEqual, "equal", 4, 2, true},
	{FuncEqualInner, "equal_inner", 4, 1, false},
	{FuncCarCdr, "car_cdr", 3, 4, true},
	{FuncEvalLet, "eval_let", 5, 2, true},
	{FuncEvalLetrec, "eval_letrec", 5, 2, true},
	{FuncExtendEnvWithMutuals, "extend_env_with_mutuals", 5, 2, false},
	{FuncEvalLetrecBindings, "eval_letrec_bindings", 2, 2, true},
	{FuncApply, "apply", 5, 2, true},
	{FuncEnvLookup, "env_lookup", 1 + dsz + 1, 2, false},
	{FuncIngress, "ingress", zsz, 2, false},
	{FuncEgress, "egress", 2, 1 + dsz, false},
	{FuncHash3, "hash3", zstore.Hash3Size, dsz, false},
	{FuncHash4, "hash4", zstore.Hash4Size, dsz, false},
	{FuncHash5, "hash5", zstore.Hash5Size, dsz, false},
	{FuncU64Add, "u64_add", 2, 1, false},
	{FuncU64Sub, "u64_sub", 2, 1, false},
	{FuncU64Mul, "u64_mul", 2, 1, false},
	{FuncU64DivRem, "u64_divrem", 2, 2, false},
	{FuncU64LessThan, "u64_lessthan", 2, 1, false},
	{FuncU64IsZero, "u64_iszero", 1, 1, false},
	{FuncDigestEqual, "digest_equal", 2, 1, false},
	{FuncBigNumLessThan, "big_num_lessthan", 2, 1, false},
}

// Funcs returns the metadata of every evaluator function in a stable order.
func Funcs() []FuncInfo {
	out := make([]FuncInfo, len(funcs))
	copy(out, funcs[:])
	return out
}

// Info returns the metadata of id.
func (id FuncID) Info() FuncInfo {
	return funcs[id]
}

func (id FuncID) String() string {
	if id < numFuncs {
		return funcs[id].Name
	}
	return "unknown"
}
