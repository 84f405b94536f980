package eval

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"lurk-zk/pkg/zstore"
)

// Record summarizes one evaluation: how often each function ran, what was
// emitted and how deep the continuation stack grew.
type Record struct {
	Calls   [numFuncs]uint64
	Emitted []zstore.ZPtr
	Depth   uint32
	Steps   uint64
}

func (r *Record) call(id FuncID) {
	r.Calls[id]++
}

func (r *Record) observeDepth(n int) {
	if uint32(n) > r.Depth {
		r.Depth = uint32(n)
	}
}

// CallCount returns the number of invocations of the named function.
func (r *Record) CallCount(name string) uint64 {
	for _, f := range funcs {
		if f.Name == name {
			return r.Calls[f.ID]
		}
	}
	return 0
}

// Digest binds the record into a single field element. Emitted values are
// hashed in order, followed by the call counts and step count.
func (r *Record) Digest() fr.Element {
	h := mimc.NewMiMC()
	write := func(e fr.Element) {
		h.Write(e.Marshal())
	}
	for _, p := range r.Emitted {
		for _, e := range p.Flatten() {
			write(e)
		}
	}
	for _, c := range r.Calls {
		write(fr.NewElement(c))
	}
	write(fr.NewElement(r.Steps))
	write(fr.NewElement(uint64(r.Depth)))
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
