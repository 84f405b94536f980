// Package proofs defines the transferable proof artifacts: cryptographic
// proofs detached from their public values, plus the Lurk data needed to
// reconstruct and inspect them.
package proofs

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"lurk-zk/pkg/zstore"
)

var (
	ErrMalformed       = errors.New("malformed proof")
	ErrNoShards        = errors.New("machine proof has no shards")
	ErrShardMismatch   = errors.New("shards disagree on public values")
	ErrDepthByte       = errors.New("depth element exceeds one byte")
	ErrVersionMismatch = errors.New("verifier version mismatch")
)

// ShardProof is one shard of a machine proof with its public values
// attached.
type ShardProof struct {
	Proof        []byte
	Claim        fr.Element
	PublicValues []fr.Element
}

// MachineProof is what a Machine produces and verifies.
type MachineProof struct {
	Shards []ShardProof
}

// Machine is a proving backend for evaluation claims.
type Machine interface {
	// Version identifies the verifier; proofs from another version are
	// rejected before verification.
	Version() string
	Prove(pv []fr.Element, recordDigest fr.Element) (*MachineProof, error)
	Verify(mp *MachineProof) error
}

// CryptoShardProof is a shard without public values.
type CryptoShardProof struct {
	_     struct{} `cbor:",toarray"`
	Proof []byte
	Claim zstore.Digest
}

// CryptoProof is a machine proof stripped of its public values, which the
// containing artifact can reconstruct. Depth is the only part of the public
// values not derivable from Lurk data.
type CryptoProof struct {
	_               struct{} `cbor:",toarray"`
	ShardProofs     []CryptoShardProof
	VerifierVersion string
	Depth           uint32
}

// NewCryptoProof detaches the public values from mp. All shards must carry
// the same public values.
func NewCryptoProof(mp *MachineProof, version string) (*CryptoProof, error) {
	if mp == nil || len(mp.Shards) == 0 {
		return nil, ErrNoShards
	}
	pv := mp.Shards[0].PublicValues
	if len(pv) != PublicValuesSize {
		return nil, fmt.Errorf("%w: have %d public values, want %d", ErrMalformed, len(pv), PublicValuesSize)
	}
	shards := make([]CryptoShardProof, len(mp.Shards))
	for i, sp := range mp.Shards {
		if !equalValues(sp.PublicValues, pv) {
			return nil, fmt.Errorf("%w: shard %d", ErrShardMismatch, i)
		}
		shards[i] = CryptoShardProof{Proof: sp.Proof, Claim: zstore.DigestFromElement(sp.Claim)}
	}
	depth, err := DepthFromPublicValues(pv)
	if err != nil {
		return nil, err
	}
	return &CryptoProof{ShardProofs: shards, VerifierVersion: version, Depth: depth}, nil
}

// IntoMachineProof reattaches public values built from expr, env and
// result.
func (c *CryptoProof) IntoMachineProof(expr, env, result zstore.ZPtr) *MachineProof {
	pv := NewPublicValues(expr, env, result, c.Depth)
	shards := make([]ShardProof, len(c.ShardProofs))
	for i, sp := range c.ShardProofs {
		shards[i] = ShardProof{
			Proof:        sp.Proof,
			Claim:        sp.Claim[0],
			PublicValues: append([]fr.Element(nil), pv...),
		}
	}
	return &MachineProof{Shards: shards}
}

// HasVersion reports whether c was produced by verifier version v.
func (c *CryptoProof) HasVersion(v string) bool {
	return c.VerifierVersion == v
}

// Verify checks c against the claimed evaluation of expr in env to result.
func (c *CryptoProof) Verify(m Machine, expr, env, result zstore.ZPtr) error {
	if !c.HasVersion(m.Version()) {
		return fmt.Errorf("%w: have %q, want %q", ErrVersionMismatch, c.VerifierVersion, m.Version())
	}
	if len(c.ShardProofs) == 0 {
		return ErrNoShards
	}
	return m.Verify(c.IntoMachineProof(expr, env, result))
}
