package microchain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/blake2b"

	"lurk-zk/pkg/zstore"
)

// Attestation is a BIP-340 Schnorr signature by the chain operator over a
// transition's public values.
type Attestation struct {
	Signature []byte // 64 bytes (R || s)
}

// transitionMessage hashes public values into the 32-byte signed message.
func transitionMessage(pv []fr.Element) [32]byte {
	return blake2b.Sum256(zstore.EncodeElements(pv))
}

func attest(key *btcec.PrivateKey, pv []fr.Element) (*Attestation, error) {
	msg := transitionMessage(pv)
	sig, err := schnorr.Sign(key, msg[:])
	if err != nil {
		return nil, fmt.Errorf("schnorr sign failed: %w", err)
	}
	return &Attestation{Signature: sig.Serialize()}, nil
}

// Verify checks the attestation against pv and the operator's x-only key.
func (a *Attestation) Verify(pub *btcec.PublicKey, pv []fr.Element) error {
	if len(a.Signature) != schnorr.SignatureSize {
		return fmt.Errorf("%w: invalid signature size %d", ErrBadAttestation, len(a.Signature))
	}
	sig, err := schnorr.ParseSignature(a.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadAttestation, err)
	}
	msg := transitionMessage(pv)
	if !sig.Verify(msg[:], pub) {
		return ErrBadAttestation
	}
	return nil
}

// GenerateOperatorKey creates a fresh operator key.
func GenerateOperatorKey() (*btcec.PrivateKey, error) {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	key, _ := btcec.PrivKeyFromBytes(seed[:])
	return key, nil
}

// LoadOperatorKey reads a hex-encoded private key from path.
func LoadOperatorKey(path string) (*btcec.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("operator key %s: want 32 hex-encoded bytes", path)
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return key, nil
}

// ParseOperatorPubKey parses a 32-byte x-only or 33-byte compressed key.
func ParseOperatorPubKey(b []byte) (*btcec.PublicKey, error) {
	if pk, err := schnorr.ParsePubKey(b); err == nil {
		return pk, nil
	}
	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pk, nil
}
