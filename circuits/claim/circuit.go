// Package claim binds the public values of a Lurk evaluation to the digest
// of its evaluation record.
package claim

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

const (
	// NumPublicValues is flatten(expr) ++ env digest ++ flatten(result) ++
	// four depth bytes.
	NumPublicValues = 9
	depthWidth      = 4
)

// Circuit proves knowledge of a record digest such that:
// Claim = MiMC(public_values..., record_digest)
//
// The depth limbs are range checked to one byte each.
type Circuit struct {
	// Public Inputs
	PublicValues [NumPublicValues]frontend.Variable `gnark:",public"`
	Claim        frontend.Variable                  `gnark:",public"`

	// Secret Witness
	RecordDigest frontend.Variable
}

func (c *Circuit) Define(api frontend.API) error {
	for _, v := range c.PublicValues[NumPublicValues-depthWidth:] {
		api.ToBinary(v, 8)
	}

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.PublicValues[:]...)
	h.Write(c.RecordDigest)
	api.AssertIsEqual(h.Sum(), c.Claim)
	return nil
}
