package seal

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/drand/tlock"

	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/zstore"
)

// NetworkInfo contains timing parameters for a drand network.
type NetworkInfo struct {
	ChainHash   []byte
	GenesisTime int64 // Unix timestamp of round 1
	Period      int64 // Seconds between rounds
	Endpoints   []string
}

// QuicknetInfo returns the drand quicknet parameters: 3 second rounds.
func QuicknetInfo() NetworkInfo {
	chainHash, _ := hex.DecodeString("52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971")
	return NetworkInfo{
		ChainHash:   chainHash,
		GenesisTime: 1692803367,
		Period:      3,
		Endpoints:   []string{"https://api.drand.sh"},
	}
}

func (n NetworkInfo) ChainHashHex() string {
	return hex.EncodeToString(n.ChainHash)
}

// RoundAt returns the first round emitted at or after t.
func (n NetworkInfo) RoundAt(t time.Time) uint64 {
	target := t.Unix()
	if target <= n.GenesisTime {
		return 1
	}
	elapsed := target - n.GenesisTime
	return uint64(elapsed/n.Period) + 1
}

// RoundTime returns the approximate time round becomes available.
func (n NetworkInfo) RoundTime(round uint64) time.Time {
	if round <= 1 {
		return time.Unix(n.GenesisTime, 0)
	}
	return time.Unix(n.GenesisTime+int64(round-1)*n.Period, 0)
}

// Dial connects to the first endpoint.
func (n NetworkInfo) Dial() (tlock.Network, error) {
	if len(n.Endpoints) == 0 {
		return nil, fmt.Errorf("no drand endpoints provided")
	}
	network, err := NewNetwork(n.Endpoints[0], n.ChainHashHex())
	if err != nil {
		return nil, fmt.Errorf("failed to create network client for %s: %w", n.Endpoints[0], err)
	}
	return network, nil
}

// Capsule is a timelocked opening bound to the commitment it opens.
type Capsule struct {
	_          struct{} `cbor:",toarray"`
	Round      uint64
	ChainHash  []byte
	Comm       zstore.Digest
	Ciphertext []byte
}

// Validate checks the capsule header against the expected network and
// round before any decryption is attempted.
func (c *Capsule) Validate(chainHash []byte, round uint64) error {
	if !bytes.Equal(c.ChainHash, chainHash) {
		return fmt.Errorf("%w: have %x, want %x", ErrNetworkMismatch, c.ChainHash, chainHash)
	}
	if c.Round != round {
		return fmt.Errorf("%w: have %d, want %d", ErrRoundMismatch, c.Round, round)
	}
	h, err := ParseHeader(c.Ciphertext)
	if err != nil {
		return err
	}
	hRound, hChain, err := h.Timelock()
	if err != nil {
		return err
	}
	if hRound != c.Round {
		return fmt.Errorf("%w: stanza has %d, capsule has %d", ErrRoundMismatch, hRound, c.Round)
	}
	if hChain != hex.EncodeToString(c.ChainHash) {
		return fmt.Errorf("%w: stanza has %s", ErrNetworkMismatch, hChain)
	}
	return nil
}

// Timelock encrypts cd so that it opens once round is emitted.
func Timelock(ctx context.Context, network tlock.Network, round uint64, cd *comm.CommData) (*Capsule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plain, err := cd.Encode()
	if err != nil {
		return nil, err
	}
	chainHash, err := hex.DecodeString(network.ChainHash())
	if err != nil {
		return nil, fmt.Errorf("invalid chain hash: %w", err)
	}

	var buf bytes.Buffer
	if err := tlock.New(network).Strict().Encrypt(&buf, bytes.NewReader(plain), round); err != nil {
		return nil, fmt.Errorf("tlock encryption failed: %w", err)
	}
	return &Capsule{
		Round:      round,
		ChainHash:  chainHash,
		Comm:       cd.Hash(),
		Ciphertext: buf.Bytes(),
	}, nil
}

// Unlock decrypts c once its round has been emitted and checks that the
// opening matches the capsule's commitment.
func Unlock(ctx context.Context, network tlock.Network, c *Capsule) (*comm.CommData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var plain bytes.Buffer
	if err := tlock.New(network).Strict().Decrypt(&plain, bytes.NewReader(c.Ciphertext)); err != nil {
		return nil, fmt.Errorf("tlock decryption failed: %w", err)
	}
	cd, err := decode(plain.Bytes())
	if err != nil {
		return nil, err
	}
	if cd.Hash() != c.Comm {
		return nil, fmt.Errorf("%w: have %s, want %s", ErrCommMismatch, cd.Hash(), c.Comm)
	}
	return cd, nil
}
