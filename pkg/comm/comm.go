// Package comm carries commitments together with everything needed to open
// them elsewhere: the secret, the payload and the payload's DAG.
package comm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"lurk-zk/pkg/zstore"
)

var (
	ErrFlawedPayload = errors.New("commitment payload is not fully specified")
	ErrNotComm       = errors.New("pointer is not a commitment")
)

// CommData is a commitment opening. Secret and Payload determine the
// commitment digest; ZDag holds the payload's reachable preimages.
type CommData struct {
	_       struct{} `cbor:",toarray"`
	Secret  zstore.Digest
	Payload zstore.ZPtr
	ZDag    *zstore.ZDag
}

// Hash computes Hash3(secret ++ flatten(payload)).
func Hash(secret zstore.Digest, payload zstore.ZPtr) zstore.Digest {
	return zstore.Hash3(zstore.CommPreimage(secret, payload))
}

// New captures payload and everything it reaches in store.
func New(secret zstore.Digest, payload zstore.ZPtr, store *zstore.Store) (*CommData, error) {
	dag := zstore.NewZDag()
	if err := dag.PopulateWith(payload, store); err != nil {
		return nil, fmt.Errorf("comm: collect payload: %w", err)
	}
	return &CommData{Secret: secret, Payload: payload.Egress(), ZDag: dag}, nil
}

// FromComm looks up the opening of c in store.
func FromComm(c zstore.ZPtr, store *zstore.Store) (*CommData, error) {
	if c.Tag != zstore.TagComm && c.Tag != zstore.TagBigNum {
		return nil, fmt.Errorf("%w: have %s", ErrNotComm, c.Tag)
	}
	secret, payload, ok := store.FetchComm(c.Digest)
	if !ok {
		return nil, fmt.Errorf("%w: %s", zstore.ErrUnknownDigest, c.Digest)
	}
	return New(secret, payload, store)
}

func (c *CommData) Hash() zstore.Digest {
	return Hash(c.Secret, c.Payload)
}

// Commit returns the Comm pointer for c.
func (c *CommData) Commit() zstore.ZPtr {
	return zstore.ZPtr{Tag: zstore.TagComm, Digest: c.Hash()}
}

// PopulateZStore replays the payload DAG into store and registers the
// opening so the commitment can be opened there.
func (c *CommData) PopulateZStore(store *zstore.Store) error {
	if c.ZDag != nil {
		if err := c.ZDag.PopulateZStore(store); err != nil {
			return err
		}
	}
	store.Hide(c.Secret, store.Ingress(c.Payload))
	return nil
}

// PayloadIsFlawed reports whether the payload reaches a digest that the
// carried DAG cannot resolve.
func (c *CommData) PayloadIsFlawed() bool {
	if c.ZDag == nil {
		return zstore.NewZDag().IsFlawed(c.Payload)
	}
	return c.ZDag.IsFlawed(c.Payload)
}

// Encode serializes c as CBOR.
func (c *CommData) Encode() ([]byte, error) {
	return cbor.Marshal(c)
}

// Decode parses CBOR written by Encode.
func Decode(data []byte) (*CommData, error) {
	var c CommData
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("comm: decode: %w", err)
	}
	if c.ZDag == nil {
		c.ZDag = zstore.NewZDag()
	}
	return &c, nil
}
