package opening

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"lurk-zk/pkg/zstore"
)

// ProverResult contains proving metrics and the proof artifact
type ProverResult struct {
	Proof       []byte
	ProvingTime time.Duration
	Constraints int
}

// ProvingKeys holds Groth16 keys for the opening circuit
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
		return nil, fmt.Errorf("opening circuit compilation failed: %w", err)
	}
	return ccs, nil
}

// Setup performs trusted setup for the opening circuit (cached)
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

// Statement is the public side of an opening: the commitment and the
// payload it opens to.
type Statement struct {
	Comm    zstore.Digest
	Payload zstore.ZPtr
}

// NewStatement derives the commitment digest from secret and payload.
func NewStatement(secret zstore.Digest, payload zstore.ZPtr) Statement {
	return Statement{
		Comm:    zstore.Hash3(zstore.CommPreimage(secret, payload)),
		Payload: payload.Egress(),
	}
}

func (s Statement) assignment() *Circuit {
	flat := s.Payload.Flatten()
	return &Circuit{
		Comm:          s.Comm[0].BigInt(new(big.Int)),
		PayloadTag:    flat[0].BigInt(new(big.Int)),
		PayloadDigest: flat[zstore.DigestSize].BigInt(new(big.Int)),
	}
}

// Prove generates an opening proof for secret against st.
func Prove(keys *ProvingKeys, secret zstore.Digest, st Statement) (*ProverResult, error) {
	start := time.Now()
	if keys == nil {
		var err error
		if keys, err = Setup(); err != nil {
			return nil, err
		}
	}

	assignment := st.assignment()
	assignment.Secret = secret[0].BigInt(new(big.Int))

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}

	proof, err := groth16.Prove(keys.CCS, keys.PK, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("proof generation failed: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("proof serialization failed: %w", err)
	}

	return &ProverResult{
		Proof:       buf.Bytes(),
		ProvingTime: time.Since(start),
		Constraints: keys.CCS.GetNbConstraints(),
	}, nil
}

// Verify verifies an opening proof with the cached keys
func Verify(keys *ProvingKeys, proofBytes []byte, st Statement) error {
	if keys == nil {
		var err error
		if keys, err = Setup(); err != nil {
			return err
		}
	}
	return VerifyWithVK(keys.VK, proofBytes, st)
}
