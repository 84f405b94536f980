// Package prover proves Lurk evaluations with a groth16 backend over the
// claim circuit.
package prover

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"go.uber.org/zap"

	"lurk-zk/circuits/claim"
	"lurk-zk/pkg/proofs"
)

const versionPrefix = "lurk-groth16/"

var ErrVerifierOnly = errors.New("machine has no proving key")

// Groth16Machine implements proofs.Machine. Each proof is a single shard.
type Groth16Machine struct {
	keys    *claim.ProvingKeys
	vk      groth16.VerifyingKey
	version string
}

var _ proofs.Machine = (*Groth16Machine)(nil)

// NewGroth16Machine proves and verifies with keys.
func NewGroth16Machine(keys *claim.ProvingKeys) (*Groth16Machine, error) {
	m, err := NewVerifier(keys.VK)
	if err != nil {
		return nil, err
	}
	m.keys = keys
	return m, nil
}

// NewVerifier verifies only.
func NewVerifier(vk groth16.VerifyingKey) (*Groth16Machine, error) {
	id, err := claim.CircuitID(vk)
	if err != nil {
		return nil, fmt.Errorf("prover: hash verifying key: %w", err)
	}
	return &Groth16Machine{vk: vk, version: versionPrefix + id}, nil
}

func (m *Groth16Machine) Version() string {
	return m.version
}

func (m *Groth16Machine) Prove(pv []fr.Element, recordDigest fr.Element) (*proofs.MachineProof, error) {
	if m.keys == nil {
		return nil, ErrVerifierOnly
	}
	proof, c, err := claim.Prove(m.keys, pv, recordDigest)
	if err != nil {
		return nil, err
	}
	return &proofs.MachineProof{Shards: []proofs.ShardProof{{
		Proof:        proof,
		Claim:        c,
		PublicValues: append([]fr.Element(nil), pv...),
	}}}, nil
}

func (m *Groth16Machine) Verify(mp *proofs.MachineProof) error {
	if len(mp.Shards) == 0 {
		return proofs.ErrNoShards
	}
	for i, sp := range mp.Shards {
		if err := claim.Verify(m.vk, sp.Proof, sp.PublicValues, sp.Claim); err != nil {
			return fmt.Errorf("shard %d: %w", i, err)
		}
	}
	return nil
}

const (
	ccsFile = "claim.ccs"
	pkFile  = "claim.pk"
	vkFile  = "claim.vk"
)

// LoadOrSetup reads claim circuit keys from dir, running setup and writing
// them there when any file is missing.
func LoadOrSetup(dir string, logger *zap.Logger) (*claim.ProvingKeys, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := []string{
		filepath.Join(dir, ccsFile),
		filepath.Join(dir, pkFile),
		filepath.Join(dir, vkFile),
	}
	if allExist(paths) {
		keys, err := readKeys(paths)
		if err == nil {
			logger.Debug("loaded claim keys", zap.String("dir", dir))
			return keys, nil
		}
		logger.Warn("stored claim keys unreadable, running setup", zap.String("dir", dir), zap.Error(err))
	}

	keys, err := claim.Setup()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prover: create keys dir: %w", err)
	}
	if err := writeKeys(keys, paths); err != nil {
		return nil, err
	}
	logger.Info("wrote claim keys",
		zap.String("dir", dir),
		zap.Int("constraints", keys.CCS.GetNbConstraints()))
	return keys, nil
}

// LoadVerifyingKey reads only the verifying key from dir.
func LoadVerifyingKey(dir string) (groth16.VerifyingKey, error) {
	f, err := os.Open(filepath.Join(dir, vkFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return claim.ReadVerifyingKey(f)
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func readKeys(paths []string) (*claim.ProvingKeys, error) {
	files := make([]*os.File, 0, len(paths))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return claim.ReadKeys(files[0], files[1], files[2])
}

func writeKeys(keys *claim.ProvingKeys, paths []string) error {
	files := make([]*os.File, 0, len(paths))
	for _, p := range paths {
		f, err := os.Create(p)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return fmt.Errorf("prover: create %s: %w", p, err)
		}
		files = append(files, f)
	}
	werr := keys.WriteTo(files[0], files[1], files[2])
	for _, f := range files {
		if err := f.Close(); err != nil && werr == nil {
			werr = err
		}
	}
	return werr
}
