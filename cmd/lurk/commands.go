package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"go.uber.org/zap"

	"lurk-zk/circuits/opening"
	"lurk-zk/pkg/cache"
	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/eval"
	"lurk-zk/pkg/microchain"
	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/prover"
	"lurk-zk/pkg/reader"
	"lurk-zk/pkg/seal"
	"lurk-zk/pkg/zstore"
)

var errUsage = errors.New("invalid arguments")

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

// source returns the -e text or the contents of the single file argument.
func source(fs *flag.FlagSet, expr string) (string, error) {
	if expr != "" {
		return expr, nil
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: want -e expr or one file", errUsage)
	}
	b, err := os.ReadFile(fs.Arg(0))
	return string(b), err
}

func singleArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%w: want %s", errUsage, what)
	}
	return fs.Arg(0), nil
}

func (e *cliEnv) machine(store *zstore.Store) (*eval.Machine, error) {
	return eval.NewMachine(store,
		eval.WithLogger(e.logger.Named("eval")),
		eval.WithStepLimit(e.cfg.StepLimit))
}

// evalValue reads and evaluates one expression in the empty environment.
func (e *cliEnv) evalValue(store *zstore.Store, src string) (zstore.ZPtr, error) {
	expr, err := reader.Read(store, src)
	if err != nil {
		return zstore.ZPtr{}, err
	}
	m, err := e.machine(store)
	if err != nil {
		return zstore.ZPtr{}, err
	}
	res, _, err := m.Eval(expr, store.EmptyEnv())
	return res, err
}

func (e *cliEnv) prover(store *zstore.Store, withCache bool) (*prover.Prover, func(), error) {
	keys, err := prover.LoadOrSetup(e.cfg.KeysDir, e.logger.Named("keys"))
	if err != nil {
		return nil, nil, err
	}
	backend, err := prover.NewGroth16Machine(keys)
	if err != nil {
		return nil, nil, err
	}
	m, err := e.machine(store)
	if err != nil {
		return nil, nil, err
	}
	opts := []prover.Option{prover.WithLogger(e.logger.Named("prover"))}
	closeFn := func() {}
	if withCache {
		if err := os.MkdirAll(filepath.Dir(e.cfg.CachePath), 0o755); err != nil {
			return nil, nil, err
		}
		c, err := cache.Open(e.cfg.CachePath, e.cfg.CacheEntries, cache.WithLogger(e.logger.Named("cache")))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, prover.WithCache(c))
		closeFn = func() { c.Close() }
	}
	return prover.New(m, backend, opts...), closeFn, nil
}

func writeArtifact(path string, v any) error {
	b, err := proofs.Encode(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func readCommData(path string) (*comm.CommData, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return comm.Decode(b)
}

func runEval(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	expr := fs.String("e", "", "expression text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	src, err := source(fs, *expr)
	if err != nil {
		return err
	}
	store := zstore.NewStore()
	exprs, err := reader.ReadAll(store, src)
	if err != nil {
		return err
	}
	m, err := env.machine(store)
	if err != nil {
		return err
	}
	for _, x := range exprs {
		res, rec, err := m.Eval(x, store.EmptyEnv())
		if err != nil {
			return err
		}
		fmt.Printf("[%d iterations] => %s\n", rec.Steps, store.Fmt(res))
		for _, v := range rec.Emitted {
			fmt.Printf("  emitted %s\n", store.Fmt(v))
		}
	}
	return nil
}

func runProve(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("prove", flag.ContinueOnError)
	expr := fs.String("e", "", "expression text")
	out := fs.String("o", "", "output proof file")
	noCache := fs.Bool("no-cache", false, "bypass the proof cache")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	src, err := source(fs, *expr)
	if err != nil {
		return err
	}
	store := zstore.NewStore()
	x, err := reader.Read(store, src)
	if err != nil {
		return err
	}
	p, closeFn, err := env.prover(store, !*noCache)
	if err != nil {
		return err
	}
	defer closeFn()

	cached, err := p.Evaluate(context.Background(), x, store.EmptyEnv())
	if err != nil {
		return err
	}
	if err := writeArtifact(*out, cached); err != nil {
		return err
	}
	fmt.Printf("%s => %s (depth %d)\n", store.Fmt(x), store.Fmt(store.Ingress(cached.Result)), cached.CryptoProof.Depth)
	return nil
}

func runVerify(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := singleArg(fs, "a proof file")
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cached, err := proofs.Decode[proofs.CachedProof](b)
	if err != nil {
		return err
	}
	vk, err := prover.LoadVerifyingKey(env.cfg.KeysDir)
	if err != nil {
		return err
	}
	verifier, err := prover.NewVerifier(vk)
	if err != nil {
		return err
	}
	store := zstore.NewStore()
	if err := cached.PopulateZStore(store); err != nil {
		return err
	}
	if err := cached.Verify(verifier); err != nil {
		return err
	}
	fmt.Printf("verified: %s => %s\n", store.Fmt(store.Ingress(cached.Expr)), store.Fmt(store.Ingress(cached.Result)))
	return nil
}

func runCommit(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	expr := fs.String("e", "", "expression text")
	secretHex := fs.String("secret", "", "hex secret; random when empty")
	out := fs.String("o", "", "output comm file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	src, err := source(fs, *expr)
	if err != nil {
		return err
	}
	secret, err := parseSecret(*secretHex)
	if err != nil {
		return err
	}
	store := zstore.NewStore()
	payload, err := env.evalValue(store, src)
	if err != nil {
		return err
	}
	cd, err := comm.New(secret, payload, store)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, mustEncode(cd), 0o600); err != nil {
		return err
	}
	fmt.Printf("%s\n", store.Fmt(cd.Commit()))
	return nil
}

func parseSecret(h string) (zstore.Digest, error) {
	if h == "" {
		var e fr.Element
		if _, err := e.SetRandom(); err != nil {
			return zstore.Digest{}, err
		}
		return zstore.DigestFromElement(e), nil
	}
	var b []byte
	if _, err := fmt.Sscanf(h, "%x", &b); err != nil {
		return zstore.Digest{}, fmt.Errorf("invalid secret: %w", err)
	}
	return zstore.DigestFromBytes(b)
}

func mustEncode(cd *comm.CommData) []byte {
	b, err := cd.Encode()
	if err != nil {
		panic(err)
	}
	return b
}

func runOpen(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	prove := fs.Bool("prove", false, "also prove the opening without revealing the secret")
	out := fs.String("o", "", "opening proof output (with -prove)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := singleArg(fs, "a comm file")
	if err != nil {
		return err
	}
	cd, err := readCommData(path)
	if err != nil {
		return err
	}
	if cd.PayloadIsFlawed() {
		return comm.ErrFlawedPayload
	}
	store := zstore.NewStore()
	if err := cd.PopulateZStore(store); err != nil {
		return err
	}
	fmt.Printf("%s => %s\n", store.Fmt(cd.Commit()), store.Fmt(store.Ingress(cd.Payload)))
	if !*prove {
		return nil
	}

	keys, err := opening.Setup()
	if err != nil {
		return err
	}
	res, err := comm.ProveOpening(keys, cd)
	if err != nil {
		return err
	}
	if err := comm.VerifyOpening(keys.VK, res.Proof, cd.Commit(), cd.Payload); err != nil {
		return err
	}
	env.logger.Info("opening proved",
		zap.Int("constraints", res.Constraints),
		zap.Duration("elapsed", res.ProvingTime))
	if *out != "" {
		return os.WriteFile(*out, res.Proof, 0o644)
	}
	return nil
}

func runSeal(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	var recipients stringList
	fs.Var(&recipients, "r", "age X25519 recipient (repeatable)")
	out := fs.String("o", "", "output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := singleArg(fs, "a comm file")
	if err != nil {
		return err
	}
	cd, err := readCommData(path)
	if err != nil {
		return err
	}
	rs := make([]age.Recipient, 0, len(recipients))
	for _, r := range recipients {
		parsed, err := age.ParseX25519Recipient(r)
		if err != nil {
			return err
		}
		rs = append(rs, parsed)
	}
	sealed, err := seal.SealForRecipients(cd, rs...)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = os.Stdout.Write(sealed)
		return err
	}
	return os.WriteFile(*out, sealed, 0o644)
}

func runUnseal(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("unseal", flag.ContinueOnError)
	identityFile := fs.String("i", "", "age identity file")
	out := fs.String("o", "", "output comm file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := singleArg(fs, "a sealed file")
	if err != nil {
		return err
	}
	idBytes, err := os.ReadFile(*identityFile)
	if err != nil {
		return err
	}
	ids, err := age.ParseIdentities(bytes.NewReader(idBytes))
	if err != nil {
		return err
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cd, err := seal.Open(sealed, ids...)
	if err != nil {
		return err
	}
	return finishOpening(cd, *out)
}

func finishOpening(cd *comm.CommData, out string) error {
	store := zstore.NewStore()
	if err := cd.PopulateZStore(store); err != nil {
		return err
	}
	fmt.Printf("%s => %s\n", store.Fmt(cd.Commit()), store.Fmt(store.Ingress(cd.Payload)))
	if out == "" {
		return nil
	}
	return os.WriteFile(out, mustEncode(cd), 0o600)
}

func (e *cliEnv) network() seal.NetworkInfo {
	info := seal.QuicknetInfo()
	if !bytes.Equal(info.ChainHash, e.cfg.ChainHashBytes()) {
		info = seal.NetworkInfo{ChainHash: e.cfg.ChainHashBytes()}
	}
	info.Endpoints = []string{e.cfg.Drand.Endpoint}
	return info
}

func runTimelock(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("timelock", flag.ContinueOnError)
	in := fs.Duration("in", time.Hour, "unlock delay")
	out := fs.String("o", "", "output capsule file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return fmt.Errorf("%w: -o is required", errUsage)
	}
	path, err := singleArg(fs, "a comm file")
	if err != nil {
		return err
	}
	cd, err := readCommData(path)
	if err != nil {
		return err
	}
	info := env.network()
	network, err := info.Dial()
	if err != nil {
		return err
	}
	round := network.Current(time.Now().Add(*in))
	capsule, err := seal.Timelock(context.Background(), network, round, cd)
	if err != nil {
		return err
	}
	if err := writeArtifact(*out, capsule); err != nil {
		return err
	}
	fields := []zap.Field{zap.Uint64("round", round), zap.Stringer("comm", capsule.Comm)}
	if info.Period > 0 {
		fields = append(fields, zap.Time("unlocks_at", info.RoundTime(round)))
	}
	env.logger.Info("timelocked opening", fields...)
	fmt.Printf("round %d\n", round)
	return nil
}

func runUnlock(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("unlock", flag.ContinueOnError)
	out := fs.String("o", "", "output comm file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := singleArg(fs, "a capsule file")
	if err != nil {
		return err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	capsule, err := proofs.Decode[seal.Capsule](b)
	if err != nil {
		return err
	}
	if err := capsule.Validate(env.cfg.ChainHashBytes(), capsule.Round); err != nil {
		return err
	}
	network, err := env.network().Dial()
	if err != nil {
		return err
	}
	cd, err := seal.Unlock(context.Background(), network, capsule)
	if err != nil {
		return err
	}
	return finishOpening(cd, *out)
}

func runChain(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("chain", flag.ContinueOnError)
	callableSrc := fs.String("callable", "", "expression evaluating to the initial callable")
	initSrc := fs.String("init", "nil", "expression evaluating to the initial result")
	out := fs.String("o", "", "history output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *callableSrc == "" {
		return fmt.Errorf("%w: -callable is required", errUsage)
	}
	store := zstore.NewStore()
	callable, err := env.evalValue(store, *callableSrc)
	if err != nil {
		return err
	}
	initial, err := env.evalValue(store, *initSrc)
	if err != nil {
		return err
	}

	key, err := microchain.LoadOperatorKey(env.cfg.Chain.KeyFile)
	if errors.Is(err, os.ErrNotExist) {
		env.logger.Warn("operator key missing, using an ephemeral key", zap.String("path", env.cfg.Chain.KeyFile))
		key, err = microchain.GenerateOperatorKey()
	}
	if err != nil {
		return err
	}

	p, closeFn, err := env.prover(store, false)
	if err != nil {
		return err
	}
	defer closeFn()
	chain, err := microchain.New(p, key, callable, initial, microchain.WithLogger(env.logger.Named("chain")))
	if err != nil {
		return err
	}
	for _, a := range fs.Args() {
		callArgs, err := reader.Read(store, a)
		if err != nil {
			return err
		}
		cp, err := chain.Step(callArgs)
		if err != nil {
			return err
		}
		fmt.Printf("%s => %s\n", store.Fmt(callArgs), store.Fmt(store.Ingress(cp.NextChainResult.ZPtr)))
	}

	history := chain.History()
	if err := microchain.VerifyHistory(context.Background(), p.Backend(), key.PubKey(), chain.Genesis(), history); err != nil {
		return err
	}
	if *out == "" {
		return nil
	}
	data, err := microchain.EncodeHistory(history)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}
