package eval

import (
	"fmt"

	"lurk-zk/pkg/zstore"
)

// op names the work left to do once the value of a pending evaluation is
// known.
type op uint8

const (
	opApplyHead op = iota
	opApplyArg
	opApplyRest
	opApplyOversat
	opBegin
	opList
	opLet
	opLetrecBinding
	opIf3
	opIf4
	opBinopFst
	opBinopSnd
	opBindSym
	opBindVal
	opBindEnv
	opEvalTwice
	opEvalEnvArg
	opEvalWithEnv
	opEnvBuiltin
	opEnvLiteral
	opCarCdr
	opUnop
	opOpening
	opCoroutine
)

var opNames = [...]string{
	opApplyHead:     "apply-head",
	opApplyArg:      "apply-arg",
	opApplyRest:     "apply-rest",
	opApplyOversat:  "apply-oversat",
	opBegin:         "begin",
	opList:          "list",
	opLet:           "let",
	opLetrecBinding: "letrec-binding",
	opIf3:           "if3",
	opIf4:           "if4",
	opBinopFst:      "binop-fst",
	opBinopSnd:      "binop-snd",
	opBindSym:       "bind-sym",
	opBindVal:       "bind-val",
	opBindEnv:       "bind-env",
	opEvalTwice:     "eval-twice",
	opEvalEnvArg:    "eval-env-arg",
	opEvalWithEnv:   "eval-with-env",
	opEnvBuiltin:    "env-builtin",
	opEnvLiteral:    "env-literal",
	opCarCdr:        "car-cdr",
	opUnop:          "unop",
	opOpening:       "opening",
	opCoroutine:     "coroutine",
}

func (o op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// frame is one pending evaluation step. The meaning of x, y and z depends
// on op; acc collects values for the list-shaped ops.
type frame struct {
	op      op
	builtin builtin
	x, y, z zstore.ZPtr
	env     zstore.ZPtr
	acc     []zstore.ZPtr
}

// continuation is the explicit stack replacing native recursion.
type continuation []frame

func (k *continuation) push(f frame) {
	*k = append(*k, f)
}

func (k *continuation) pop() frame {
	old := *k
	f := old[len(old)-1]
	old[len(old)-1] = frame{}
	*k = old[:len(old)-1]
	return f
}

func (k continuation) empty() bool {
	return len(k) == 0
}

// outcome is what a step produces: either a value handed to the next frame
// or an expression to evaluate next, in tail position.
type outcome struct {
	val  zstore.ZPtr
	expr zstore.ZPtr
	env  zstore.ZPtr
	eval bool
}

func value(v zstore.ZPtr) outcome {
	return outcome{val: v}
}

func evalIn(expr, env zstore.ZPtr) outcome {
	return outcome{expr: expr, env: env, eval: true}
}
