package claim

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// Verify checks a claim proof against public values using vk only.
func Verify(vk groth16.VerifyingKey, proofBytes []byte, pv []fr.Element, claim fr.Element) error {
	if len(pv) != NumPublicValues {
		return fmt.Errorf("claim: have %d public values, want %d", len(pv), NumPublicValues)
	}
	pubWitness, err := frontend.NewWitness(assignment(pv, claim), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("proof deserialization failed: %w", err)
	}

	if err := groth16.Verify(proof, vk, pubWitness); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// CircuitID is the first 16 hex characters of the VK hash. Proofs made
// under a different setup carry a different id.
func CircuitID(vk groth16.VerifyingKey) (string, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return "", err
	}
	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:])[:16], nil
}

// ReadVerifyingKey reads a key written by ProvingKeys.WriteTo.
func ReadVerifyingKey(r io.Reader) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("read vk: %w", err)
	}
	return vk, nil
}
