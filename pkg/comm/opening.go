package comm

import (
	"fmt"

	"github.com/consensys/gnark/backend/groth16"

	"lurk-zk/circuits/opening"
	"lurk-zk/pkg/zstore"
)

// Statement returns the public side of c's opening.
func (c *CommData) Statement() opening.Statement {
	return opening.NewStatement(c.Secret, c.Payload)
}

// ProveOpening proves that c.Commit() opens to c.Payload without revealing
// the secret. A nil keys runs the cached setup.
func ProveOpening(keys *opening.ProvingKeys, c *CommData) (*opening.ProverResult, error) {
	if c.PayloadIsFlawed() {
		return nil, ErrFlawedPayload
	}
	res, err := opening.Prove(keys, c.Secret, c.Statement())
	if err != nil {
		return nil, fmt.Errorf("comm: prove opening of %s: %w", c.Hash(), err)
	}
	return res, nil
}

// VerifyOpening checks an opening proof of comm against payload.
func VerifyOpening(vk groth16.VerifyingKey, proof []byte, comm, payload zstore.ZPtr) error {
	if comm.Tag != zstore.TagComm {
		return fmt.Errorf("%w: have %s", ErrNotComm, comm.Tag)
	}
	st := opening.Statement{Comm: comm.Digest, Payload: payload.Egress()}
	return opening.VerifyWithVK(vk, proof, st)
}
