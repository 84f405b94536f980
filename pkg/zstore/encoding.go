package zstore

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// EncodeElements concatenates canonical big-endian encodings.
func EncodeElements(elems []fr.Element) []byte {
	out := make([]byte, 0, len(elems)*fr.Bytes)
	for i := range elems {
		b := elems[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// DecodeElements parses exactly want canonical elements.
func DecodeElements(b []byte, want int) ([]fr.Element, error) {
	if len(b) != want*fr.Bytes {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrMalformed, len(b), want*fr.Bytes)
	}
	out := make([]fr.Element, want)
	for i := range out {
		if err := out[i].SetBytesCanonical(b[i*fr.Bytes : (i+1)*fr.Bytes]); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, err)
		}
	}
	return out, nil
}
