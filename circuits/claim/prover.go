package claim

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// ProvingKeys holds Groth16 keys for the claim circuit
type ProvingKeys struct {
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
	CCS constraint.ConstraintSystem
}

var (
	cachedKeys *ProvingKeys
	keysMutex  sync.Mutex
)

// Compile builds the constraint system.
func Compile() (constraint.ConstraintSystem, error) {
	var c Circuit
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &c)
	if err != nil {
		return nil, fmt.Errorf("claim circuit compilation failed: %w", err)
	}
	return ccs, nil
}

// Setup performs trusted setup for the claim circuit (cached)
func Setup() (*ProvingKeys, error) {
	keysMutex.Lock()
	defer keysMutex.Unlock()

	if cachedKeys != nil {
		return cachedKeys, nil
	}

	ccs, err := Compile()
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("groth16 setup failed: %w", err)
	}

	cachedKeys = &ProvingKeys{PK: pk, VK: vk, CCS: ccs}
	return cachedKeys, nil
}

// WriteTo persists the three artifacts in order: ccs, pk, vk.
func (k *ProvingKeys) WriteTo(ccsW, pkW, vkW io.Writer) error {
	if _, err := k.CCS.WriteTo(ccsW); err != nil {
		return fmt.Errorf("write ccs: %w", err)
	}
	if _, err := k.PK.WriteTo(pkW); err != nil {
		return fmt.Errorf("write pk: %w", err)
	}
	if _, err := k.VK.WriteTo(vkW); err != nil {
		return fmt.Errorf("write vk: %w", err)
	}
	return nil
}

// ReadKeys loads artifacts written by WriteTo.
func ReadKeys(ccsR, pkR, vkR io.Reader) (*ProvingKeys, error) {
	ccs := groth16.NewCS(ecc.BN254)
	if _, err := ccs.ReadFrom(ccsR); err != nil {
		return nil, fmt.Errorf("read ccs: %w", err)
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if _, err := pk.ReadFrom(pkR); err != nil {
		return nil, fmt.Errorf("read pk: %w", err)
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(vkR); err != nil {
		return nil, fmt.Errorf("read vk: %w", err)
	}
	return &ProvingKeys{PK: pk, VK: vk, CCS: ccs}, nil
}

// ComputeClaim computes MiMC(public_values..., record_digest) natively.
// This must match what the circuit computes.
func ComputeClaim(pv []fr.Element, recordDigest fr.Element) (fr.Element, error) {
	if len(pv) != NumPublicValues {
		return fr.Element{}, fmt.Errorf("claim: have %d public values, want %d", len(pv), NumPublicValues)
	}
	h := mimc.NewMiMC()
	for i := range pv {
		h.Write(pv[i].Marshal())
	}
	h.Write(recordDigest.Marshal())
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out, nil
}

func assignment(pv []fr.Element, claim fr.Element) *Circuit {
	c := &Circuit{Claim: claim.BigInt(new(big.Int))}
	for i := range c.PublicValues {
		c.PublicValues[i] = pv[i].BigInt(new(big.Int))
	}
	return c
}

// Prove generates a proof that claim binds pv to recordDigest. It returns
// the serialized proof and the claim.
func Prove(keys *ProvingKeys, pv []fr.Element, recordDigest fr.Element) ([]byte, fr.Element, error) {
	claim, err := ComputeClaim(pv, recordDigest)
	if err != nil {
		return nil, fr.Element{}, err
	}
	w := assignment(pv, claim)
	w.RecordDigest = recordDigest.BigInt(new(big.Int))

	fullWitness, err := frontend.NewWitness(w, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fr.Element{}, fmt.Errorf("witness creation failed: %w", err)
	}
	proof, err := groth16.Prove(keys.CCS, keys.PK, fullWitness)
	if err != nil {
		return nil, fr.Element{}, fmt.Errorf("proof generation failed: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fr.Element{}, fmt.Errorf("proof serialization failed: %w", err)
	}
	return buf.Bytes(), claim, nil
}
