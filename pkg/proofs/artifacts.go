package proofs

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"

	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/zstore"
)

var ErrNotCallable = errors.New("callable must be a function or a commitment")

var encMode cbor.EncMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
}

// Encode serializes an artifact as deterministic CBOR.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode parses an artifact written by Encode.
func Decode[T any](data []byte) (*T, error) {
	var v T
	if err := cbor.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &v, nil
}

// LurkData is a pointer together with the DAG it reaches.
type LurkData struct {
	_    struct{} `cbor:",toarray"`
	ZPtr zstore.ZPtr
	ZDag *zstore.ZDag
}

func NewLurkData(p zstore.ZPtr, store *zstore.Store) (*LurkData, error) {
	dag := zstore.NewZDag()
	if err := dag.PopulateWith(p, store); err != nil {
		return nil, err
	}
	return &LurkData{ZPtr: p.Egress(), ZDag: dag}, nil
}

// IsFlawed reports whether the DAG misses part of the value.
func (d *LurkData) IsFlawed() bool {
	if d.ZDag == nil {
		return zstore.NewZDag().IsFlawed(d.ZPtr)
	}
	return d.ZDag.IsFlawed(d.ZPtr)
}

// Populate replays the DAG into store and returns the pointer in
// evaluation form.
func (d *LurkData) Populate(store *zstore.Store) (zstore.ZPtr, error) {
	if d.ZDag != nil {
		if err := d.ZDag.PopulateZStore(store); err != nil {
			return zstore.ZPtr{}, err
		}
	}
	return store.Ingress(d.ZPtr), nil
}

// CachedProof carries a proof and the fully specified Lurk data of its
// public values, for local persistence and inspection.
type CachedProof struct {
	_           struct{} `cbor:",toarray"`
	CryptoProof CryptoProof
	Expr        zstore.ZPtr
	Env         zstore.ZPtr
	Result      zstore.ZPtr
	ZDag        *zstore.ZDag
}

// NewCachedProof collects the Lurk data named by pv from store.
func NewCachedProof(cp *CryptoProof, pv []fr.Element, store *zstore.Store) (*CachedProof, error) {
	expr, env, result, err := SplitPublicValues(pv)
	if err != nil {
		return nil, err
	}
	dag := zstore.NewZDag()
	if err := dag.PopulateWithMany([]zstore.ZPtr{expr, env, result}, store); err != nil {
		return nil, err
	}
	return &CachedProof{CryptoProof: *cp, Expr: expr, Env: env, Result: result, ZDag: dag}, nil
}

func (c *CachedProof) IntoMachineProof() *MachineProof {
	return c.CryptoProof.IntoMachineProof(c.Expr, c.Env, c.Result)
}

func (c *CachedProof) Verify(m Machine) error {
	return c.CryptoProof.Verify(m, c.Expr, c.Env, c.Result)
}

// PopulateZStore replays the carried data so the expression, environment
// and result can be printed or evaluated again.
func (c *CachedProof) PopulateZStore(store *zstore.Store) error {
	if c.ZDag == nil {
		return nil
	}
	return c.ZDag.PopulateZStore(store)
}

// ProtocolProof is a proof submitted against a protocol: the verifier
// already knows the protocol function, the prover supplies the arguments.
type ProtocolProof struct {
	_           struct{} `cbor:",toarray"`
	CryptoProof CryptoProof
	Args        LurkData
}

func NewProtocolProof(cp *CryptoProof, args zstore.ZPtr, store *zstore.Store) (*ProtocolProof, error) {
	ld, err := NewLurkData(args, store)
	if err != nil {
		return nil, err
	}
	return &ProtocolProof{CryptoProof: *cp, Args: *ld}, nil
}

// CallableData is either a committed function or a plain one. Exactly one
// field is set.
type CallableData struct {
	Comm *comm.CommData `cbor:"1,keyasint,omitempty"`
	Fun  *LurkData      `cbor:"2,keyasint,omitempty"`
}

// NewCallableData captures callable from store.
func NewCallableData(callable zstore.ZPtr, store *zstore.Store) (*CallableData, error) {
	switch callable.Tag {
	case zstore.TagComm:
		cd, err := comm.FromComm(callable, store)
		if err != nil {
			return nil, err
		}
		return &CallableData{Comm: cd}, nil
	case zstore.TagFun:
		ld, err := NewLurkData(callable, store)
		if err != nil {
			return nil, err
		}
		return &CallableData{Fun: ld}, nil
	}
	return nil, fmt.Errorf("%w: have %s", ErrNotCallable, callable.Tag)
}

// ZPtr returns the callable's pointer without touching a store.
func (c *CallableData) ZPtr() (zstore.ZPtr, error) {
	switch {
	case c.Comm != nil:
		return c.Comm.Commit(), nil
	case c.Fun != nil:
		return c.Fun.ZPtr, nil
	}
	return zstore.ZPtr{}, ErrNotCallable
}

// Populate makes the callable usable in store and returns its pointer.
func (c *CallableData) Populate(store *zstore.Store) (zstore.ZPtr, error) {
	switch {
	case c.Comm != nil:
		if err := c.Comm.PopulateZStore(store); err != nil {
			return zstore.ZPtr{}, err
		}
		return c.Comm.Commit(), nil
	case c.Fun != nil:
		return c.Fun.Populate(store)
	}
	return zstore.ZPtr{}, ErrNotCallable
}

// ChainProof proves a state transition and carries the new state in full
// so others can continue the chain.
type ChainProof struct {
	_               struct{} `cbor:",toarray"`
	CryptoProof     CryptoProof
	CallArgs        zstore.ZPtr
	NextChainResult LurkData
	NextCallable    CallableData
}

// OpaqueChainProof is the compact transition record kept in history.
type OpaqueChainProof struct {
	_               struct{} `cbor:",toarray"`
	CryptoProof     CryptoProof
	CallArgs        zstore.ZPtr
	NextChainResult zstore.ZPtr
	NextCallable    zstore.ZPtr
}

// Opaque drops the state payloads.
func (c *ChainProof) Opaque() (*OpaqueChainProof, error) {
	next, err := c.NextCallable.ZPtr()
	if err != nil {
		return nil, err
	}
	return &OpaqueChainProof{
		CryptoProof:     c.CryptoProof,
		CallArgs:        c.CallArgs,
		NextChainResult: c.NextChainResult.ZPtr,
		NextCallable:    next,
	}, nil
}

// Verify checks that applying callable to the call arguments produced
// (next_result . next_callable). store must know enough to intern the
// expression and result conses; only digests are needed.
func (o *OpaqueChainProof) Verify(m Machine, callable zstore.ZPtr, store *zstore.Store) error {
	expr := store.Cons(store.Ingress(callable), store.Ingress(o.CallArgs))
	result := store.Cons(store.Ingress(o.NextChainResult), store.Ingress(o.NextCallable))
	return o.CryptoProof.Verify(m, expr, store.EmptyEnv(), result)
}
