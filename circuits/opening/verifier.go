package opening

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
)

// VerifyWithVK verifies an opening proof against an explicit verifying key.
// Only public values are assigned; the secret never leaves the prover.
func VerifyWithVK(vk groth16.VerifyingKey, proofBytes []byte, st Statement) error {
	pubWitness, err := frontend.NewWitness(st.assignment(), ecc.BN254.ScalarField(), frontend.PublicOnly())
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

// VerifyingKeyBytes serializes vk for distribution.
func VerifyingKeyBytes(vk groth16.VerifyingKey) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadVerifyingKey deserializes a key written by VerifyingKeyBytes.
func ReadVerifyingKey(b []byte) (groth16.VerifyingKey, error) {
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("failed to deserialize VK: %w", err)
	}
	return vk, nil
}

// ComputeVKHash computes the SHA256 hash of raw VK bytes
func ComputeVKHash(vkBytes []byte) string {
	hash := sha256.Sum256(vkBytes)
	return hex.EncodeToString(hash[:])
}
