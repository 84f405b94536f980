package claim

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/test"
)

func samplePublicValues() []fr.Element {
	pv := make([]fr.Element, NumPublicValues)
	for i := 0; i < NumPublicValues-depthWidth; i++ {
		pv[i].SetUint64(uint64(1000 + i))
	}
	// depth 300, little endian
	pv[NumPublicValues-depthWidth].SetUint64(300 & 0xff)
	pv[NumPublicValues-depthWidth+1].SetUint64(300 >> 8)
	return pv
}

func TestComputeClaimDeterministic(t *testing.T) {
	pv := samplePublicValues()
	record := fr.NewElement(77)
	a, err := ComputeClaim(pv, record)
	if err != nil {
		t.Fatalf("ComputeClaim failed: %v", err)
	}
	b, _ := ComputeClaim(pv, record)
	if !a.Equal(&b) {
		t.Fatal("claim is not deterministic")
	}
	c, _ := ComputeClaim(pv, fr.NewElement(78))
	if a.Equal(&c) {
		t.Fatal("claim does not depend on the record digest")
	}
	if _, err := ComputeClaim(pv[:3], record); err == nil {
		t.Fatal("expected an error for short public values")
	}
}

func TestCircuitSolved(t *testing.T) {
	assert := test.NewAssert(t)
	pv := samplePublicValues()
	record := fr.NewElement(77)
	claim, err := ComputeClaim(pv, record)
	assert.NoError(err)

	good := assignment(pv, claim)
	good.RecordDigest = record.BigInt(new(big.Int))
	assert.NoError(test.IsSolved(&Circuit{}, good, ecc.BN254.ScalarField()))

	wrongRecord := assignment(pv, claim)
	wrongRecord.RecordDigest = big.NewInt(78)
	assert.Error(test.IsSolved(&Circuit{}, wrongRecord, ecc.BN254.ScalarField()))
}

func TestCircuitRejectsWideDepthLimb(t *testing.T) {
	assert := test.NewAssert(t)
	pv := samplePublicValues()
	pv[NumPublicValues-1].SetUint64(256)
	record := fr.NewElement(5)
	claim, err := ComputeClaim(pv, record)
	assert.NoError(err)

	w := assignment(pv, claim)
	w.RecordDigest = record.BigInt(new(big.Int))
	assert.Error(test.IsSolved(&Circuit{}, w, ecc.BN254.ScalarField()))
}

func TestProveVerifyRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping groth16 setup in short mode")
	}
	keys, err := Setup()
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Logf("Claim circuit has %d constraints", keys.CCS.GetNbConstraints())

	pv := samplePublicValues()
	proof, claim, err := Prove(keys, pv, fr.NewElement(99))
	if err != nil {
		t.Fatalf("Prove failed: %v", err)
	}
	if err := Verify(keys.VK, proof, pv, claim); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	tampered := append([]fr.Element(nil), pv...)
	tampered[0].SetUint64(1)
	if err := Verify(keys.VK, proof, tampered, claim); err == nil {
		t.Error("Expected verification to fail for different public values")
	}

	id, err := CircuitID(keys.VK)
	if err != nil {
		t.Fatalf("CircuitID failed: %v", err)
	}
	if len(id) != 16 {
		t.Errorf("circuit id %q has length %d", id, len(id))
	}
}
