package zstore

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/fxamacker/cbor/v2"
)

const (
	// DigestSize is the number of field elements in a hash output.
	DigestSize = 1
	// ZPtrSize is the flattened width of a pointer: padded tag then digest.
	ZPtrSize = 2 * DigestSize

	Hash3Size = 3 * DigestSize
	Hash4Size = 2 * ZPtrSize
	Hash5Size = 2*ZPtrSize + DigestSize
)

var (
	ErrInvalidTag     = errors.New("invalid tag")
	ErrUnknownDigest  = errors.New("digest has no known preimage")
	ErrDigestMismatch = errors.New("preimage does not hash to its digest")
	ErrMalformed      = errors.New("malformed encoding")
)

// Digest is a fixed-width hash output.
type Digest [DigestSize]fr.Element

// ZeroDigest is the digest of the empty string and the empty environment.
var ZeroDigest Digest

func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// Bytes returns the canonical big-endian encoding.
func (d Digest) Bytes() []byte {
	out := make([]byte, 0, DigestSize*fr.Bytes)
	for i := range d {
		b := d[i].Bytes()
		out = append(out, b[:]...)
	}
	return out
}

func (d Digest) String() string {
	return hex.EncodeToString(d.Bytes())
}

func (d Digest) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(d.Bytes())
}

func (d *Digest) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := DigestFromBytes(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DigestFromBytes parses a canonical big-endian encoding.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize*fr.Bytes {
		return d, fmt.Errorf("%w: digest length %d", ErrMalformed, len(b))
	}
	for i := range d {
		if err := d[i].SetBytesCanonical(b[i*fr.Bytes : (i+1)*fr.Bytes]); err != nil {
			return d, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	return d, nil
}

// DigestFromUint64 places v in the first limb.
func DigestFromUint64(v uint64) Digest {
	var d Digest
	d[0].SetUint64(v)
	return d
}

// DigestFromElement places e in the first limb.
func DigestFromElement(e fr.Element) Digest {
	var d Digest
	d[0] = e
	return d
}

// ZPtr is a (tag, digest) pair identifying any value.
type ZPtr struct {
	Tag    Tag
	Digest Digest
}

// Egress returns p with internal tags rewritten to their persisted form.
func (p ZPtr) Egress() ZPtr {
	return ZPtr{Tag: p.Tag.Persisted(), Digest: p.Digest}
}

// Flatten returns the padded tag followed by the digest.
func (p ZPtr) Flatten() []fr.Element {
	out := make([]fr.Element, ZPtrSize)
	out[0] = p.Tag.Element()
	copy(out[DigestSize:], p.Digest[:])
	return out
}

// Equal compares the persisted forms of two pointers.
func (p ZPtr) Equal(o ZPtr) bool {
	return p.Egress() == o.Egress()
}

func (p ZPtr) String() string {
	return fmt.Sprintf("%s:%s", p.Tag, p.Digest)
}

// ZPtrFromFlat decodes a flattened pointer. Symbol pointers are not ingressed.
func ZPtrFromFlat(flat []fr.Element) (ZPtr, error) {
	if len(flat) != ZPtrSize {
		return ZPtr{}, fmt.Errorf("%w: pointer width %d", ErrMalformed, len(flat))
	}
	for i := 1; i < DigestSize; i++ {
		if !flat[i].IsZero() {
			return ZPtr{}, fmt.Errorf("%w: nonzero tag padding", ErrMalformed)
		}
	}
	tag, err := TagFromElement(flat[0])
	if err != nil {
		return ZPtr{}, err
	}
	var d Digest
	copy(d[:], flat[DigestSize:])
	return ZPtr{Tag: tag, Digest: d}, nil
}

type zptrWire struct {
	_      struct{} `cbor:",toarray"`
	Tag    uint16
	Digest Digest
}

func (p ZPtr) MarshalCBOR() ([]byte, error) {
	e := p.Egress()
	return cbor.Marshal(zptrWire{Tag: uint16(e.Tag), Digest: e.Digest})
}

func (p *ZPtr) UnmarshalCBOR(data []byte) error {
	var w zptrWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	if !Tag(w.Tag).Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTag, w.Tag)
	}
	*p = ZPtr{Tag: Tag(w.Tag), Digest: w.Digest}
	return nil
}

// Hash domain separators keep preimages of different arity apart.
var (
	domain3 = fr.NewElement(3)
	domain4 = fr.NewElement(4)
	domain5 = fr.NewElement(5)
)

// HashElements computes MiMC over the canonical encodings of elems, prefixed
// with the arity domain separator.
func HashElements(domain fr.Element, elems []fr.Element) Digest {
	h := mimc.NewMiMC()
	h.Write(domain.Marshal())
	for i := range elems {
		h.Write(elems[i].Marshal())
	}
	var d Digest
	d[0].SetBytes(h.Sum(nil))
	return d
}

// Hash3 hashes a three element preimage.
func Hash3(p Preimage3) Digest { return HashElements(domain3, p[:]) }

// Hash4 hashes a four element preimage.
func Hash4(p Preimage4) Digest { return HashElements(domain4, p[:]) }

// Hash5 hashes a five element preimage.
func Hash5(p Preimage5) Digest { return HashElements(domain5, p[:]) }

// Domain3 is the separator used by Hash3, exposed for circuits.
func Domain3() fr.Element { return domain3 }
