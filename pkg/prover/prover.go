package prover

import (
	"context"
	"fmt"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"go.uber.org/zap"

	"lurk-zk/pkg/cache"
	"lurk-zk/pkg/eval"
	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/zstore"
)

// Prover evaluates expressions and proves the outcome.
type Prover struct {
	machine *eval.Machine
	backend proofs.Machine
	cache   *cache.Cache
	logger  *zap.Logger
}

type Option func(*Prover)

func WithCache(c *cache.Cache) Option {
	return func(p *Prover) { p.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Prover) { p.logger = l }
}

func New(machine *eval.Machine, backend proofs.Machine, opts ...Option) *Prover {
	p := &Prover{machine: machine, backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Prover) Store() *zstore.Store {
	return p.machine.Store()
}

func (p *Prover) Backend() proofs.Machine {
	return p.backend
}

// Proved is the outcome of a proven evaluation.
type Proved struct {
	Result       zstore.ZPtr
	Record       *eval.Record
	PublicValues []fr.Element
	CryptoProof  *proofs.CryptoProof
}

// Prove evaluates expr in env and proves the result. Error values are
// proven like any other result; a Go error means nothing was proven.
func (p *Prover) Prove(expr, env zstore.ZPtr) (*Proved, error) {
	start := time.Now()
	res, rec, err := p.machine.Eval(expr, env)
	if err != nil {
		return nil, err
	}
	pv := proofs.NewPublicValues(expr, env, res, rec.Depth)
	mp, err := p.backend.Prove(pv, rec.Digest())
	observe(opProve, err)
	if err != nil {
		return nil, fmt.Errorf("prover: %w", err)
	}
	cp, err := proofs.NewCryptoProof(mp, p.backend.Version())
	if err != nil {
		return nil, err
	}
	p.logger.Info("proved evaluation",
		zap.String("result", p.Store().Fmt(res)),
		zap.Uint32("depth", rec.Depth),
		zap.Uint64("steps", rec.Steps),
		zap.Duration("elapsed", time.Since(start)))
	return &Proved{Result: res, Record: rec, PublicValues: pv, CryptoProof: cp}, nil
}

// Evaluate returns a cached proof of evaluating expr in env, proving it
// first when the cache has none.
func (p *Prover) Evaluate(ctx context.Context, expr, env zstore.ZPtr) (*proofs.CachedProof, error) {
	var key cache.Key
	if p.cache != nil {
		key = cache.KeyFor(expr, env, p.backend.Version())
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			observe(opCacheHit, nil)
			p.logger.Debug("using cached proof", zap.Stringer("key", key))
			return cached, nil
		}
	}

	proved, err := p.Prove(expr, env)
	if err != nil {
		return nil, err
	}
	cached, err := proofs.NewCachedProof(proved.CryptoProof, proved.PublicValues, p.Store())
	if err != nil {
		return nil, err
	}
	if kind, ok := zstore.ErrKind(proved.Result); ok && kind == zstore.CantOpen {
		// the opening may become known later
		p.logger.Debug("not caching unopened commitment", zap.Stringer("key", key))
		return cached, nil
	}
	if p.cache != nil {
		if err := p.cache.Put(ctx, key, cached); err != nil {
			return nil, err
		}
	}
	return cached, nil
}

// Verify checks a cached proof against the backend.
func (p *Prover) Verify(c *proofs.CachedProof) error {
	err := c.Verify(p.backend)
	observe(opVerify, err)
	return err
}
