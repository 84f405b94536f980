package zstore

import (
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Preimages, one per arity bucket.
type (
	Preimage3 [Hash3Size]fr.Element
	Preimage4 [Hash4Size]fr.Element
	Preimage5 [Hash5Size]fr.Element
)

// Store is an append-only, content-addressed arena of preimages. Readers
// may run concurrently; interning is serialized.
type Store struct {
	mu      sync.RWMutex
	hashes3 map[Digest]Preimage3
	hashes4 map[Digest]Preimage4
	hashes5 map[Digest]Preimage5
	comms   map[Digest]struct{}

	digests *Digests
}

// NewStore returns a store with the builtin symbol table interned. The
// given names are registered as coroutine symbols.
func NewStore(coroutines ...string) *Store {
	s := &Store{
		hashes3: make(map[Digest]Preimage3),
		hashes4: make(map[Digest]Preimage4),
		hashes5: make(map[Digest]Preimage5),
		comms:   make(map[Digest]struct{}),
	}
	s.digests = newDigests(s, coroutines)
	return s
}

// Digests returns the precomputed symbol table.
func (s *Store) Digests() *Digests {
	return s.digests
}

// Stats reports the number of entries per bucket.
type Stats struct {
	Hashes3, Hashes4, Hashes5, Comms int
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Hashes3: len(s.hashes3),
		Hashes4: len(s.hashes4),
		Hashes5: len(s.hashes5),
		Comms:   len(s.comms),
	}
}

func (s *Store) Intern3(p Preimage3) Digest {
	d := Hash3(p)
	s.mu.Lock()
	if _, ok := s.hashes3[d]; !ok {
		s.hashes3[d] = p
	}
	s.mu.Unlock()
	return d
}

func (s *Store) Intern4(p Preimage4) Digest {
	d := Hash4(p)
	s.mu.Lock()
	if _, ok := s.hashes4[d]; !ok {
		s.hashes4[d] = p
	}
	s.mu.Unlock()
	return d
}

func (s *Store) Intern5(p Preimage5) Digest {
	d := Hash5(p)
	s.mu.Lock()
	if _, ok := s.hashes5[d]; !ok {
		s.hashes5[d] = p
	}
	s.mu.Unlock()
	return d
}

// InternComm records a commitment digest whose preimage is not known.
func (s *Store) InternComm(d Digest) {
	s.mu.Lock()
	s.comms[d] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) Resolve3(d Digest) (Preimage3, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.hashes3[d]
	return p, ok
}

func (s *Store) Resolve4(d Digest) (Preimage4, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.hashes4[d]
	return p, ok
}

func (s *Store) Resolve5(d Digest) (Preimage5, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.hashes5[d]
	return p, ok
}

// HasComm reports whether d is a known commitment, opaque or not.
func (s *Store) HasComm(d Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hashes3[d]; ok {
		return true
	}
	_, ok := s.comms[d]
	return ok
}

func (s *Store) Load3(d Digest) (Preimage3, error) {
	p, ok := s.Resolve3(d)
	if !ok {
		return p, fmt.Errorf("%w: hash3 %s", ErrUnknownDigest, d)
	}
	return p, nil
}

func (s *Store) Load4(d Digest) (Preimage4, error) {
	p, ok := s.Resolve4(d)
	if !ok {
		return p, fmt.Errorf("%w: hash4 %s", ErrUnknownDigest, d)
	}
	return p, nil
}

func (s *Store) Load5(d Digest) (Preimage5, error) {
	p, ok := s.Resolve5(d)
	if !ok {
		return p, fmt.Errorf("%w: hash5 %s", ErrUnknownDigest, d)
	}
	return p, nil
}

// Ingress rewrites symbol pointers naming nil or t to their internal tags.
func (s *Store) Ingress(p ZPtr) ZPtr {
	if p.Tag != TagSym {
		return p
	}
	switch p.Digest {
	case s.digests.nilDigest:
		return ZPtr{Tag: TagNil, Digest: p.Digest}
	case s.digests.tDigest:
		return ZPtr{Tag: TagTrue, Digest: p.Digest}
	}
	return p
}

func (s *Store) ptrAt(flat []fr.Element) (ZPtr, error) {
	p, err := ZPtrFromFlat(flat)
	if err != nil {
		return ZPtr{}, err
	}
	return s.Ingress(p), nil
}

func concat(parts ...[]fr.Element) []fr.Element {
	var out []fr.Element
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (s *Store) intern4Ptrs(a, b ZPtr) Digest {
	var p Preimage4
	copy(p[:], concat(a.Flatten(), b.Flatten()))
	return s.Intern4(p)
}

func (s *Store) intern5Ptrs(a, b ZPtr, d Digest) Digest {
	var p Preimage5
	copy(p[:], concat(a.Flatten(), b.Flatten(), d[:]))
	return s.Intern5(p)
}

// Fetch4 decodes a two-pointer preimage (Cons, Str, symbol nodes).
func (s *Store) Fetch4(d Digest) (ZPtr, ZPtr, error) {
	p, err := s.Load4(d)
	if err != nil {
		return ZPtr{}, ZPtr{}, err
	}
	a, err := s.ptrAt(p[:ZPtrSize])
	if err != nil {
		return ZPtr{}, ZPtr{}, err
	}
	b, err := s.ptrAt(p[ZPtrSize:])
	if err != nil {
		return ZPtr{}, ZPtr{}, err
	}
	return a, b, nil
}

// Fetch5 decodes a two-pointer-plus-digest preimage (Fun, Fix, Env).
func (s *Store) Fetch5(d Digest) (ZPtr, ZPtr, Digest, error) {
	p, err := s.Load5(d)
	if err != nil {
		return ZPtr{}, ZPtr{}, Digest{}, err
	}
	a, err := s.ptrAt(p[:ZPtrSize])
	if err != nil {
		return ZPtr{}, ZPtr{}, Digest{}, err
	}
	b, err := s.ptrAt(p[ZPtrSize : 2*ZPtrSize])
	if err != nil {
		return ZPtr{}, ZPtr{}, Digest{}, err
	}
	var tail Digest
	copy(tail[:], p[2*ZPtrSize:])
	return a, b, tail, nil
}

// FetchComm returns the secret and payload behind a commitment digest.
func (s *Store) FetchComm(d Digest) (Digest, ZPtr, bool) {
	p, ok := s.Resolve3(d)
	if !ok {
		return Digest{}, ZPtr{}, false
	}
	var secret Digest
	copy(secret[:], p[:DigestSize])
	payload, err := s.ptrAt(p[DigestSize:])
	if err != nil {
		return Digest{}, ZPtr{}, false
	}
	return secret, payload, true
}

// Atoms.

func (s *Store) Num(e fr.Element) ZPtr {
	return ZPtr{Tag: TagNum, Digest: DigestFromElement(e)}
}

func (s *Store) NumUint64(v uint64) ZPtr {
	return ZPtr{Tag: TagNum, Digest: DigestFromUint64(v)}
}

func (s *Store) U64(v uint64) ZPtr {
	return ZPtr{Tag: TagU64, Digest: DigestFromUint64(v)}
}

// Char stores the code point as its 32-bit pattern.
func (s *Store) Char(r rune) ZPtr {
	return ZPtr{Tag: TagChar, Digest: DigestFromUint64(uint64(uint32(r)))}
}

func (s *Store) BigNum(d Digest) ZPtr {
	return ZPtr{Tag: TagBigNum, Digest: d}
}

func (s *Store) Err(kind EvalErr) ZPtr {
	return ZPtr{Tag: TagErr, Digest: DigestFromUint64(uint64(kind))}
}

func (s *Store) Nil() ZPtr {
	return ZPtr{Tag: TagNil, Digest: s.digests.nilDigest}
}

func (s *Store) True() ZPtr {
	return ZPtr{Tag: TagTrue, Digest: s.digests.tDigest}
}

// Bool returns t or nil.
func (s *Store) Bool(b bool) ZPtr {
	if b {
		return s.True()
	}
	return s.Nil()
}

// EmptyEnv is the zero environment pointer.
func (s *Store) EmptyEnv() ZPtr {
	return ZPtr{Tag: TagEnv}
}

// Composites.

func (s *Store) Cons(car, cdr ZPtr) ZPtr {
	return ZPtr{Tag: TagCons, Digest: s.intern4Ptrs(car, cdr)}
}

func (s *Store) Str(str string) ZPtr {
	out := ZPtr{Tag: TagStr}
	runes := []rune(str)
	for i := len(runes) - 1; i >= 0; i-- {
		out = s.StrCons(s.Char(runes[i]), out)
	}
	return out
}

// StrCons prepends a character pointer to a string pointer.
func (s *Store) StrCons(char, tail ZPtr) ZPtr {
	return ZPtr{Tag: TagStr, Digest: s.intern4Ptrs(char, tail)}
}

func (s *Store) Fun(params, body, env ZPtr) ZPtr {
	return ZPtr{Tag: TagFun, Digest: s.intern5Ptrs(params, body, env.Digest)}
}

func (s *Store) Fix(body, binds, env ZPtr) ZPtr {
	return ZPtr{Tag: TagFix, Digest: s.intern5Ptrs(body, binds, env.Digest)}
}

// ExtendEnv prepends a binding. Existing nodes are never modified.
func (s *Store) ExtendEnv(sym, val, env ZPtr) ZPtr {
	return ZPtr{Tag: TagEnv, Digest: s.intern5Ptrs(sym, val, env.Digest)}
}

// Hide commits to payload under secret.
func (s *Store) Hide(secret Digest, payload ZPtr) ZPtr {
	return ZPtr{Tag: TagComm, Digest: s.Intern3(CommPreimage(secret, payload))}
}

// Commit hides payload under the zero secret.
func (s *Store) Commit(payload ZPtr) ZPtr {
	return s.Hide(ZeroDigest, payload)
}

// CommPreimage lays out secret ++ payload tag ++ payload digest.
func CommPreimage(secret Digest, payload ZPtr) Preimage3 {
	var p Preimage3
	copy(p[:], concat(secret[:], payload.Flatten()))
	return p
}

// List builds a proper list.
func (s *Store) List(elems ...ZPtr) ZPtr {
	return s.ListWithTail(elems, s.Nil())
}

// ListWithTail builds an improper list ending in tail.
func (s *Store) ListWithTail(elems []ZPtr, tail ZPtr) ZPtr {
	out := tail
	for i := len(elems) - 1; i >= 0; i-- {
		out = s.Cons(elems[i], out)
	}
	return out
}

// FetchList flattens a list, returning its elements and the terminating
// pointer (nil for proper lists).
func (s *Store) FetchList(p ZPtr) ([]ZPtr, ZPtr, error) {
	var out []ZPtr
	for p.Tag == TagCons {
		car, cdr, err := s.Fetch4(p.Digest)
		if err != nil {
			return nil, ZPtr{}, err
		}
		out = append(out, car)
		p = cdr
	}
	return out, p, nil
}

// FetchString decodes a string pointer.
func (s *Store) FetchString(p ZPtr) (string, error) {
	if p.Tag != TagStr {
		return "", fmt.Errorf("%w: expected Str, have %s", ErrInvalidTag, p.Tag)
	}
	var runes []rune
	for !p.Digest.IsZero() {
		char, tail, err := s.Fetch4(p.Digest)
		if err != nil {
			return "", err
		}
		runes = append(runes, rune(char.Digest[0].Uint64()))
		p = tail
	}
	return string(runes), nil
}
