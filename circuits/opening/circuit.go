// Package opening proves knowledge of the secret behind a Lurk commitment
// without revealing it.
package opening

import (
	"math/big"

	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"lurk-zk/pkg/zstore"
)

// Circuit proves knowledge of secret such that:
// Comm = MiMC(domain3, secret, payload_tag, payload_digest)
//
// This is the hash3 preimage layout used by hide, so Comm is exactly the
// digest of the Comm pointer.
type Circuit struct {
	// Public Inputs
	Comm          frontend.Variable `gnark:",public"`
	PayloadTag    frontend.Variable `gnark:",public"`
	PayloadDigest frontend.Variable `gnark:",public"`

	// Secret Witness
	Secret frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	domain := zstore.Domain3()
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(domain.BigInt(new(big.Int)))
	h.Write(c.Secret)
	h.Write(c.PayloadTag)
	h.Write(c.PayloadDigest)
	api.AssertIsEqual(h.Sum(), c.Comm)
	return nil
}
