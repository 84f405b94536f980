// Package microchain runs a chain of proven state transitions. Each step
// applies the current callable to caller-supplied arguments and must return
// (next-result . next-callable).
package microchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/prover"
	"lurk-zk/pkg/zstore"
)

var (
	ErrBadTransition  = errors.New("callable must return (next-result . next-callable)")
	ErrBadAttestation = errors.New("operator attestation invalid")
	ErrBrokenLink     = errors.New("transition does not continue the chain")
)

// Genesis is the chain's initial state.
type Genesis struct {
	_        struct{} `cbor:",toarray"`
	Callable proofs.CallableData
	Result   proofs.LurkData
}

// Transition is one recorded step of the history.
type Transition struct {
	_           struct{} `cbor:",toarray"`
	Callable    zstore.ZPtr
	Proof       proofs.OpaqueChainProof
	Attestation Attestation
}

// Chain is safe for concurrent use; steps are serialized.
type Chain struct {
	mu       sync.Mutex
	prover   *prover.Prover
	key      *btcec.PrivateKey
	logger   *zap.Logger
	genesis  *Genesis
	callable zstore.ZPtr
	result   zstore.ZPtr
	history  []Transition
}

type Option func(*Chain)

func WithLogger(l *zap.Logger) Option {
	return func(c *Chain) { c.logger = l }
}

// New starts a chain at (result, callable). The callable is a function or
// a commitment to one.
func New(p *prover.Prover, key *btcec.PrivateKey, callable, result zstore.ZPtr, opts ...Option) (*Chain, error) {
	store := p.Store()
	cd, err := proofs.NewCallableData(callable, store)
	if err != nil {
		return nil, err
	}
	rd, err := proofs.NewLurkData(result, store)
	if err != nil {
		return nil, err
	}
	c := &Chain{
		prover:   p,
		key:      key,
		logger:   zap.NewNop(),
		genesis:  &Genesis{Callable: *cd, Result: *rd},
		callable: callable,
		result:   result,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Genesis returns the initial state.
func (c *Chain) Genesis() *Genesis {
	return c.genesis
}

// State returns the current result and callable.
func (c *Chain) State() (result, callable zstore.ZPtr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.callable
}

// History returns a copy of the recorded transitions.
func (c *Chain) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transition(nil), c.history...)
}

// Step applies the current callable to args, proves the transition and
// advances the chain.
func (c *Chain) Step(args zstore.ZPtr) (*proofs.ChainProof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	store := c.prover.Store()
	expr := store.Cons(c.callable, args)
	proved, err := c.prover.Prove(expr, store.EmptyEnv())
	if err != nil {
		return nil, err
	}
	if proved.Result.Tag != zstore.TagCons {
		return nil, fmt.Errorf("%w: have %s", ErrBadTransition, store.Fmt(proved.Result))
	}
	nextResult, nextCallable, err := store.Fetch4(proved.Result.Digest)
	if err != nil {
		return nil, err
	}
	next, err := proofs.NewCallableData(nextCallable, store)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadTransition, err)
	}
	nr, err := proofs.NewLurkData(nextResult, store)
	if err != nil {
		return nil, err
	}
	cp := &proofs.ChainProof{
		CryptoProof:     *proved.CryptoProof,
		CallArgs:        args.Egress(),
		NextChainResult: *nr,
		NextCallable:    *next,
	}
	opaque, err := cp.Opaque()
	if err != nil {
		return nil, err
	}
	att, err := attest(c.key, proved.PublicValues)
	if err != nil {
		return nil, err
	}

	c.history = append(c.history, Transition{
		Callable:    c.callable.Egress(),
		Proof:       *opaque,
		Attestation: *att,
	})
	c.result, c.callable = nextResult, nextCallable
	c.logger.Info("chain advanced",
		zap.Int("height", len(c.history)),
		zap.String("result", store.Fmt(nextResult)))
	return cp, nil
}

// VerifyHistory checks that history continues genesis link by link, then
// verifies every proof and attestation in parallel.
func VerifyHistory(ctx context.Context, m proofs.Machine, pub *btcec.PublicKey, genesis *Genesis, history []Transition) error {
	prev, err := genesis.Callable.ZPtr()
	if err != nil {
		return err
	}
	for i, t := range history {
		if !t.Callable.Equal(prev) {
			return fmt.Errorf("%w: step %d", ErrBrokenLink, i)
		}
		prev = t.Proof.NextCallable
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range history {
		t := &history[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			store := zstore.NewStore()
			if err := t.Proof.Verify(m, t.Callable, store); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			pv := t.publicValues(store)
			if err := t.Attestation.Verify(pub, pv); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *Transition) publicValues(store *zstore.Store) []fr.Element {
	expr := store.Cons(store.Ingress(t.Callable), store.Ingress(t.Proof.CallArgs))
	result := store.Cons(store.Ingress(t.Proof.NextChainResult), store.Ingress(t.Proof.NextCallable))
	return proofs.NewPublicValues(expr, store.EmptyEnv(), result, t.Proof.CryptoProof.Depth)
}

// EncodeHistory serializes transitions for sharing.
func EncodeHistory(history []Transition) ([]byte, error) {
	return proofs.Encode(history)
}

// DecodeHistory parses transitions written by EncodeHistory.
func DecodeHistory(data []byte) ([]Transition, error) {
	h, err := proofs.Decode[[]Transition](data)
	if err != nil {
		return nil, err
	}
	return *h, nil
}
