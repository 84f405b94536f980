package proofs

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"lurk-zk/pkg/zstore"
)

const (
	// DepthWidth is the number of byte elements encoding the depth.
	DepthWidth = 4
	// PublicValuesSize is flatten(expr) ++ env digest ++ flatten(result) ++
	// depth bytes.
	PublicValuesSize = 2*zstore.ZPtrSize + zstore.DigestSize + DepthWidth
)

// NewPublicValues lays out the public values of an evaluation. Depth is
// encoded little endian, one byte per element.
func NewPublicValues(expr, env, result zstore.ZPtr, depth uint32) []fr.Element {
	pv := make([]fr.Element, 0, PublicValuesSize)
	pv = append(pv, expr.Flatten()...)
	pv = append(pv, env.Digest[:]...)
	pv = append(pv, result.Flatten()...)
	for i := 0; i < DepthWidth; i++ {
		pv = append(pv, fr.NewElement(uint64(depth>>(8*i))&0xff))
	}
	return pv
}

// SplitPublicValues recovers expr, env and result from public values. The
// pointers come back in persisted form.
func SplitPublicValues(pv []fr.Element) (expr, env, result zstore.ZPtr, err error) {
	if len(pv) != PublicValuesSize {
		err = fmt.Errorf("%w: have %d public values, want %d", ErrMalformed, len(pv), PublicValuesSize)
		return
	}
	if expr, err = zstore.ZPtrFromFlat(pv[:zstore.ZPtrSize]); err != nil {
		return
	}
	rest := pv[zstore.ZPtrSize:]
	env = zstore.ZPtr{Tag: zstore.TagEnv}
	copy(env.Digest[:], rest[:zstore.DigestSize])
	rest = rest[zstore.DigestSize:]
	result, err = zstore.ZPtrFromFlat(rest[:zstore.ZPtrSize])
	return
}

// DepthFromPublicValues decodes the trailing depth bytes. A byte element
// above 255 means the public values were built wrong.
func DepthFromPublicValues(pv []fr.Element) (uint32, error) {
	if len(pv) < DepthWidth {
		return 0, fmt.Errorf("%w: have %d public values", ErrMalformed, len(pv))
	}
	var depth uint32
	for i, e := range pv[len(pv)-DepthWidth:] {
		if !e.IsUint64() || e.Uint64() > 0xff {
			return 0, fmt.Errorf("%w: depth element %d is %s", ErrDepthByte, i, e.String())
		}
		depth |= uint32(e.Uint64()) << (8 * i)
	}
	return depth, nil
}

func equalValues(a, b []fr.Element) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}
