package zstore

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/go-multierror"
)

// resolver is the read side shared by Store and ZDag.
type resolver interface {
	Resolve3(Digest) (Preimage3, bool)
	Resolve4(Digest) (Preimage4, bool)
	Resolve5(Digest) (Preimage5, bool)
}

// children decodes the sub-pointers of p. ok is false when p is composite
// and its preimage cannot be resolved. Commitments are leaves.
func children(r resolver, p ZPtr) (out []ZPtr, ok bool) {
	p = p.Egress()
	switch p.Tag {
	case TagCons, TagStr, TagSym, TagKey, TagBuiltin, TagCoroutine:
		if p.Digest.IsZero() {
			return nil, true
		}
		pre, found := r.Resolve4(p.Digest)
		if !found {
			return nil, false
		}
		a, errA := ZPtrFromFlat(pre[:ZPtrSize])
		b, errB := ZPtrFromFlat(pre[ZPtrSize:])
		if errA != nil || errB != nil {
			return nil, false
		}
		return []ZPtr{a, b}, true
	case TagFun, TagFix, TagEnv:
		if p.Tag == TagEnv && p.Digest.IsZero() {
			return nil, true
		}
		pre, found := r.Resolve5(p.Digest)
		if !found {
			return nil, false
		}
		a, errA := ZPtrFromFlat(pre[:ZPtrSize])
		b, errB := ZPtrFromFlat(pre[ZPtrSize : 2*ZPtrSize])
		if errA != nil || errB != nil {
			return nil, false
		}
		var tail Digest
		copy(tail[:], pre[2*ZPtrSize:])
		return []ZPtr{a, b, {Tag: TagEnv, Digest: tail}}, true
	}
	return nil, true
}

// ZDag is the subgraph of a store reachable from a set of roots.
type ZDag struct {
	hashes4 map[Digest]Preimage4
	hashes5 map[Digest]Preimage5
	comms   map[Digest]struct{}
}

func NewZDag() *ZDag {
	return &ZDag{
		hashes4: make(map[Digest]Preimage4),
		hashes5: make(map[Digest]Preimage5),
		comms:   make(map[Digest]struct{}),
	}
}

// Resolve3 always fails: commitment preimages are never published.
func (z *ZDag) Resolve3(Digest) (Preimage3, bool) {
	return Preimage3{}, false
}

func (z *ZDag) Resolve4(d Digest) (Preimage4, bool) {
	p, ok := z.hashes4[d]
	return p, ok
}

func (z *ZDag) Resolve5(d Digest) (Preimage5, bool) {
	p, ok := z.hashes5[d]
	return p, ok
}

// Len is the number of recorded entries, commitments included.
func (z *ZDag) Len() int {
	return len(z.hashes4) + len(z.hashes5) + len(z.comms)
}

// PopulateWith records every preimage reachable from root through store.
func (z *ZDag) PopulateWith(root ZPtr, store *Store) error {
	return z.PopulateWithMany([]ZPtr{root}, store)
}

// PopulateWithMany records every preimage reachable from roots.
func (z *ZDag) PopulateWithMany(roots []ZPtr, store *Store) error {
	seen := make(map[ZPtr]struct{})
	stack := make([]ZPtr, 0, len(roots))
	for _, r := range roots {
		stack = append(stack, r.Egress())
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if p.Tag == TagComm {
			z.comms[p.Digest] = struct{}{}
			continue
		}
		kids, ok := children(store, p)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDigest, p)
		}
		switch len(kids) {
		case 2:
			pre, _ := store.Resolve4(p.Digest)
			z.hashes4[p.Digest] = pre
		case 3:
			pre, _ := store.Resolve5(p.Digest)
			z.hashes5[p.Digest] = pre
		}
		stack = append(stack, kids...)
	}
	return nil
}

// PopulateZStore replays every entry into target. Existing entries are
// kept; each preimage is rehashed so a tampered dag is rejected.
func (z *ZDag) PopulateZStore(target *Store) error {
	for d, pre := range z.hashes4 {
		if got := target.Intern4(pre); got != d {
			return fmt.Errorf("%w: %s", ErrDigestMismatch, d)
		}
	}
	for d, pre := range z.hashes5 {
		if got := target.Intern5(pre); got != d {
			return fmt.Errorf("%w: %s", ErrDigestMismatch, d)
		}
	}
	for d := range z.comms {
		target.InternComm(d)
	}
	return nil
}

// IsFlawed reports whether some composite reachable from p has no preimage
// in the dag. Commitments are allowed to be opaque.
func (z *ZDag) IsFlawed(p ZPtr) bool {
	return check(z, p, true) != nil
}

// Check lists every digest reachable from p that lacks a preimage.
func (z *ZDag) Check(p ZPtr) error {
	return check(z, p, false)
}

// IsFlawed is the store-side counterpart of ZDag.IsFlawed.
func (s *Store) IsFlawed(p ZPtr) bool {
	return check(s, p, true) != nil
}

func check(r resolver, root ZPtr, stopEarly bool) error {
	var result *multierror.Error
	seen := make(map[ZPtr]struct{})
	stack := []ZPtr{root.Egress()}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		kids, ok := children(r, p)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrUnknownDigest, p))
			if stopEarly {
				break
			}
			continue
		}
		stack = append(stack, kids...)
	}
	return result.ErrorOrNil()
}

type zdagEntry struct {
	_        struct{} `cbor:",toarray"`
	Digest   Digest
	Preimage []byte
}

type zdagWire struct {
	Hashes4 []zdagEntry `cbor:"1,keyasint"`
	Hashes5 []zdagEntry `cbor:"2,keyasint"`
	Comms   []Digest    `cbor:"3,keyasint"`
}

func sortedKeys[V any](m map[Digest]V) []Digest {
	keys := make([]Digest, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// MarshalCBOR encodes entries sorted by digest so equal dags encode equally.
func (z *ZDag) MarshalCBOR() ([]byte, error) {
	var w zdagWire
	for _, d := range sortedKeys(z.hashes4) {
		pre := z.hashes4[d]
		w.Hashes4 = append(w.Hashes4, zdagEntry{Digest: d, Preimage: EncodeElements(pre[:])})
	}
	for _, d := range sortedKeys(z.hashes5) {
		pre := z.hashes5[d]
		w.Hashes5 = append(w.Hashes5, zdagEntry{Digest: d, Preimage: EncodeElements(pre[:])})
	}
	w.Comms = sortedKeys(z.comms)
	return cbor.Marshal(w)
}

func (z *ZDag) UnmarshalCBOR(data []byte) error {
	var w zdagWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	out := NewZDag()
	for _, e := range w.Hashes4 {
		elems, err := DecodeElements(e.Preimage, Hash4Size)
		if err != nil {
			return err
		}
		var pre Preimage4
		copy(pre[:], elems)
		out.hashes4[e.Digest] = pre
	}
	for _, e := range w.Hashes5 {
		elems, err := DecodeElements(e.Preimage, Hash5Size)
		if err != nil {
			return err
		}
		var pre Preimage5
		copy(pre[:], elems)
		out.hashes5[e.Digest] = pre
	}
	for _, d := range w.Comms {
		out.comms[d] = struct{}{}
	}
	*z = *out
	return nil
}
