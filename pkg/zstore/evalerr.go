package zstore

import "fmt"

// EvalErr is the kind carried by an Err-tagged pointer.
type EvalErr uint32

const (
	InvalidForm EvalErr = iota
	IllegalBindingVar
	NotCons
	NotEnv
	NotBigNum
	NotChar
	NotString
	NotU64
	DivByZero
	InvalidArg
	ApplyNonFunc
	ParamsNotList
	ArgsNotList
	ParamInvalidRest
	CantCastToU64
	CantCastToChar
	CantCastToBigNum
	CantCastToComm
	CantOpen
	UnboundVar
	evalErrCount
)

var evalErrNames = [...]string{
	InvalidForm:       "InvalidForm",
	IllegalBindingVar: "IllegalBindingVar",
	NotCons:           "NotCons",
	NotEnv:            "NotEnv",
	NotBigNum:         "NotBigNum",
	NotChar:           "NotChar",
	NotString:         "NotString",
	NotU64:            "NotU64",
	DivByZero:         "DivByZero",
	InvalidArg:        "InvalidArg",
	ApplyNonFunc:      "ApplyNonFunc",
	ParamsNotList:     "ParamsNotList",
	ArgsNotList:       "ArgsNotList",
	ParamInvalidRest:  "ParamInvalidRest",
	CantCastToU64:     "CantCastToU64",
	CantCastToChar:    "CantCastToChar",
	CantCastToBigNum:  "CantCastToBigNum",
	CantCastToComm:    "CantCastToComm",
	CantOpen:          "CantOpen",
	UnboundVar:        "UnboundVar",
}

func (e EvalErr) String() string {
	if e < evalErrCount {
		return evalErrNames[e]
	}
	return fmt.Sprintf("EvalErr(%d)", uint32(e))
}

// ErrKind extracts the kind from an Err pointer.
func ErrKind(p ZPtr) (EvalErr, bool) {
	if p.Tag != TagErr || !p.Digest[0].IsUint64() {
		return 0, false
	}
	return EvalErr(p.Digest[0].Uint64()), true
}
