package zstore

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Tag identifies the runtime type of a value.
type Tag uint16

// Persisted tags. The numeric values are part of every digest and must not
// be reordered.
const (
	TagNum Tag = iota
	TagU64
	TagChar
	TagStr
	TagKey
	TagSym
	TagBuiltin
	TagCoroutine
	TagCons
	TagFun
	TagFix
	TagEnv
	TagComm
	TagBigNum
	TagErr
	tagCount
)

// Internal tags only exist while evaluating. They are hashed as TagSym.
const (
	TagNil Tag = 256 + iota
	TagTrue
)

var tagNames = [...]string{
	TagNum:       "Num",
	TagU64:       "U64",
	TagChar:      "Char",
	TagStr:       "Str",
	TagKey:       "Key",
	TagSym:       "Sym",
	TagBuiltin:   "Builtin",
	TagCoroutine: "Coroutine",
	TagCons:      "Cons",
	TagFun:       "Fun",
	TagFix:       "Fix",
	TagEnv:       "Env",
	TagComm:      "Comm",
	TagBigNum:    "BigNum",
	TagErr:       "Err",
}

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "Nil"
	case TagTrue:
		return "True"
	}
	if t < tagCount {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(%d)", uint16(t))
}

// IsInternal reports whether t is one of the evaluation-only tags.
func (t Tag) IsInternal() bool {
	return t == TagNil || t == TagTrue
}

// Valid reports whether t is a persisted tag.
func (t Tag) Valid() bool {
	return t < tagCount
}

// Persisted maps internal tags to the tag they are stored under.
func (t Tag) Persisted() Tag {
	if t.IsInternal() {
		return TagSym
	}
	return t
}

// IsSymbolic reports whether values of this tag are symbol paths.
func (t Tag) IsSymbolic() bool {
	switch t {
	case TagSym, TagKey, TagBuiltin, TagCoroutine, TagNil, TagTrue:
		return true
	}
	return false
}

// Element returns the field encoding of the persisted tag.
func (t Tag) Element() fr.Element {
	var e fr.Element
	e.SetUint64(uint64(t.Persisted()))
	return e
}

// TagFromElement decodes a persisted tag.
func TagFromElement(e fr.Element) (Tag, error) {
	if !e.IsUint64() || e.Uint64() >= uint64(tagCount) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTag, e.String())
	}
	return Tag(e.Uint64()), nil
}
