//go:build js && wasm

package seal

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/drand/drand/v2/common"
	"github.com/drand/drand/v2/crypto"
	"github.com/drand/kyber"
	"github.com/drand/tlock"
)

var _ tlock.Network = (*StaticNetwork)(nil)

// ChainInfo is the body of a drand /info response.
type ChainInfo struct {
	PublicKey   string `json:"public_key"`
	Period      int64  `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
	SchemeID    string `json:"schemeID"`
}

// StaticNetwork serves tlock from pre-fetched chain info, since the
// browser build cannot block on HTTP.
type StaticNetwork struct {
	chainHash   string
	scheme      *crypto.Scheme
	pubKey      kyber.Point
	genesisTime int64
	period      time.Duration
	beacon      *common.Beacon
}

func NewNetwork(endpoint, chainHash string) (tlock.Network, error) {
	return nil, fmt.Errorf("cannot reach %s from wasm: use NewNetworkFromChainInfo", endpoint)
}

// NewNetworkFromChainInfo builds a network from a drand /info JSON body.
func NewNetworkFromChainInfo(chainInfoJSON, chainHash string) (*StaticNetwork, error) {
	var info ChainInfo
	if err := json.Unmarshal([]byte(chainInfoJSON), &info); err != nil {
		return nil, fmt.Errorf("failed to parse chain info: %w", err)
	}
	scheme, err := crypto.SchemeFromName(info.SchemeID)
	if err != nil {
		return nil, fmt.Errorf("unknown scheme: %s: %w", info.SchemeID, err)
	}
	pubKeyBytes, err := hex.DecodeString(info.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	pubKey := scheme.KeyGroup.Point()
	if err := pubKey.UnmarshalBinary(pubKeyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	return &StaticNetwork{
		chainHash:   chainHash,
		scheme:      scheme,
		pubKey:      pubKey,
		genesisTime: info.GenesisTime,
		period:      time.Duration(info.Period) * time.Second,
	}, nil
}

// SetBeacon supplies the signature of round for decryption.
func (n *StaticNetwork) SetBeacon(round uint64, signatureHex string) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	n.beacon = &common.Beacon{Round: round, Signature: sig}
	return nil
}

func (n *StaticNetwork) ChainHash() string { return n.chainHash }

func (n *StaticNetwork) Current(t time.Time) uint64 {
	genesis := time.Unix(n.genesisTime, 0)
	if t.Before(genesis) || n.period == 0 {
		return 0
	}
	return uint64(t.Sub(genesis) / n.period)
}

func (n *StaticNetwork) PublicKey() kyber.Point { return n.pubKey }

func (n *StaticNetwork) Scheme() crypto.Scheme { return *n.scheme }

func (n *StaticNetwork) Signature(round uint64) ([]byte, error) {
	if n.beacon != nil && n.beacon.Round == round {
		return n.beacon.Signature, nil
	}
	return nil, fmt.Errorf("beacon for round %d not supplied", round)
}

func (n *StaticNetwork) SwitchChainHash(h string) error {
	n.chainHash = h
	return nil
}

func (n *StaticNetwork) Request(ctx context.Context, round uint64) (common.Beacon, error) {
	if n.beacon != nil && n.beacon.Round == round {
		return *n.beacon, nil
	}
	return common.Beacon{}, fmt.Errorf("beacon for round %d not supplied", round)
}
