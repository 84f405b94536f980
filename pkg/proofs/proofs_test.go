package proofs

import (
	"errors"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lurk-zk/circuits/claim"
	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/zstore"
)

// hashMachine "proves" by revealing the record digest; verification
// recomputes the claim natively.
type hashMachine struct {
	version string
	shards  int
}

func (m hashMachine) Version() string { return m.version }

func (m hashMachine) Prove(pv []fr.Element, record fr.Element) (*MachineProof, error) {
	c, err := claim.ComputeClaim(pv, record)
	if err != nil {
		return nil, err
	}
	mp := &MachineProof{}
	for i := 0; i < m.shards; i++ {
		mp.Shards = append(mp.Shards, ShardProof{
			Proof:        record.Marshal(),
			Claim:        c,
			PublicValues: append([]fr.Element(nil), pv...),
		})
	}
	return mp, nil
}

func (m hashMachine) Verify(mp *MachineProof) error {
	for _, sp := range mp.Shards {
		var record fr.Element
		if err := record.SetBytesCanonical(sp.Proof); err != nil {
			return err
		}
		c, err := claim.ComputeClaim(sp.PublicValues, record)
		if err != nil {
			return err
		}
		if !c.Equal(&sp.Claim) {
			return errors.New("claim mismatch")
		}
	}
	return nil
}

func TestPublicValuesLayout(t *testing.T) {
	s := zstore.NewStore()
	expr := s.List(s.NumUint64(1))
	env := s.ExtendEnv(s.UserSym("x"), s.NumUint64(2), s.EmptyEnv())
	result := s.Nil()

	pv := NewPublicValues(expr, env, result, 0x01020304)
	require.Len(t, pv, PublicValuesSize)
	assert.Equal(t, fr.NewElement(4), pv[PublicValuesSize-4])
	assert.Equal(t, fr.NewElement(1), pv[PublicValuesSize-1])

	gotExpr, gotEnv, gotResult, err := SplitPublicValues(pv)
	require.NoError(t, err)
	assert.Equal(t, expr, gotExpr)
	assert.Equal(t, env, gotEnv)
	assert.True(t, result.Equal(gotResult))

	depth, err := DepthFromPublicValues(pv)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), depth)

	pv[PublicValuesSize-2] = fr.NewElement(256)
	_, err = DepthFromPublicValues(pv)
	assert.ErrorIs(t, err, ErrDepthByte)

	_, _, _, err = SplitPublicValues(pv[:3])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCryptoProofRoundTrip(t *testing.T) {
	s := zstore.NewStore()
	expr, env, result := s.NumUint64(3), s.EmptyEnv(), s.NumUint64(3)
	pv := NewPublicValues(expr, env, result, 7)
	m := hashMachine{version: "test/1", shards: 2}

	mp, err := m.Prove(pv, fr.NewElement(99))
	require.NoError(t, err)
	cp, err := NewCryptoProof(mp, m.Version())
	require.NoError(t, err)
	assert.Equal(t, uint32(7), cp.Depth)
	assert.Len(t, cp.ShardProofs, 2)

	require.NoError(t, cp.Verify(m, expr, env, result))
	assert.Error(t, cp.Verify(m, expr, env, s.NumUint64(4)))

	other := hashMachine{version: "test/2", shards: 1}
	assert.ErrorIs(t, cp.Verify(other, expr, env, result), ErrVersionMismatch)
}

func TestNewCryptoProofRejects(t *testing.T) {
	_, err := NewCryptoProof(&MachineProof{}, "v")
	assert.ErrorIs(t, err, ErrNoShards)

	s := zstore.NewStore()
	pv := NewPublicValues(s.Nil(), s.EmptyEnv(), s.Nil(), 1)
	other := NewPublicValues(s.True(), s.EmptyEnv(), s.Nil(), 1)
	mp := &MachineProof{Shards: []ShardProof{{PublicValues: pv}, {PublicValues: other}}}
	_, err = NewCryptoProof(mp, "v")
	assert.ErrorIs(t, err, ErrShardMismatch)

	bad := append([]fr.Element(nil), pv...)
	bad[PublicValuesSize-1] = fr.NewElement(1000)
	_, err = NewCryptoProof(&MachineProof{Shards: []ShardProof{{PublicValues: bad}}}, "v")
	assert.ErrorIs(t, err, ErrDepthByte)
}

func TestCachedProofEncoding(t *testing.T) {
	s := zstore.NewStore()
	expr := s.List(s.UserSym("f"), s.Str("arg"))
	env := s.ExtendEnv(s.UserSym("f"), s.NumUint64(1), s.EmptyEnv())
	result := s.Cons(s.NumUint64(1), s.Nil())
	pv := NewPublicValues(expr, env, result, 3)
	m := hashMachine{version: "test/1", shards: 1}
	mp, err := m.Prove(pv, fr.NewElement(5))
	require.NoError(t, err)
	cp, err := NewCryptoProof(mp, m.Version())
	require.NoError(t, err)

	cached, err := NewCachedProof(cp, pv, s)
	require.NoError(t, err)
	data, err := Encode(cached)
	require.NoError(t, err)
	again, err := Encode(cached)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	back, err := Decode[CachedProof](data)
	require.NoError(t, err)
	require.NoError(t, back.Verify(m))

	fresh := zstore.NewStore()
	require.NoError(t, back.PopulateZStore(fresh))
	assert.Equal(t, s.Fmt(expr), fresh.Fmt(fresh.Ingress(back.Expr)))
	assert.Equal(t, s.Fmt(result), fresh.Fmt(fresh.Ingress(back.Result)))

	_, err = Decode[CachedProof]([]byte{0x01})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestChainProofs(t *testing.T) {
	s := zstore.NewStore()
	fun := s.Fun(s.List(s.UserSym("x")), s.List(s.UserSym("x")), s.EmptyEnv())
	cd, err := comm.New(zstore.DigestFromUint64(1), fun, s)
	require.NoError(t, err)
	callable := s.Hide(cd.Secret, fun)

	args := s.List(s.NumUint64(10))
	nextResult := s.NumUint64(10)
	expr := s.Cons(callable, args)
	result := s.Cons(nextResult, callable)
	pv := NewPublicValues(expr, s.EmptyEnv(), result, 2)
	m := hashMachine{version: "test/1", shards: 1}
	mp, err := m.Prove(pv, fr.NewElement(1))
	require.NoError(t, err)
	cp, err := NewCryptoProof(mp, m.Version())
	require.NoError(t, err)

	next, err := NewCallableData(callable, s)
	require.NoError(t, err)
	require.NotNil(t, next.Comm)
	nr, err := NewLurkData(nextResult, s)
	require.NoError(t, err)
	chain := &ChainProof{CryptoProof: *cp, CallArgs: args, NextChainResult: *nr, NextCallable: *next}

	data, err := Encode(chain)
	require.NoError(t, err)
	back, err := Decode[ChainProof](data)
	require.NoError(t, err)

	opaque, err := back.Opaque()
	require.NoError(t, err)
	assert.Equal(t, callable, opaque.NextCallable)

	verifier := zstore.NewStore()
	require.NoError(t, opaque.Verify(m, callable, verifier))
	assert.Error(t, opaque.Verify(m, nextResult, verifier))

	ptr, err := back.NextCallable.Populate(verifier)
	require.NoError(t, err)
	_, payload, ok := verifier.FetchComm(ptr.Digest)
	require.True(t, ok)
	assert.Equal(t, fun, payload)
}

func TestCallableData(t *testing.T) {
	s := zstore.NewStore()
	_, err := NewCallableData(s.NumUint64(1), s)
	assert.ErrorIs(t, err, ErrNotCallable)

	fun := s.Fun(s.Nil(), s.List(s.NumUint64(1)), s.EmptyEnv())
	cd, err := NewCallableData(fun, s)
	require.NoError(t, err)
	require.NotNil(t, cd.Fun)
	p, err := cd.ZPtr()
	require.NoError(t, err)
	assert.Equal(t, fun, p)

	_, err = (&CallableData{}).ZPtr()
	assert.ErrorIs(t, err, ErrNotCallable)
}

func TestProtocolProof(t *testing.T) {
	s := zstore.NewStore()
	args := s.List(s.Str("vote"), s.Key("yes"))
	pp, err := NewProtocolProof(&CryptoProof{VerifierVersion: "v"}, args, s)
	require.NoError(t, err)
	assert.False(t, pp.Args.IsFlawed())
	data, err := Encode(pp)
	require.NoError(t, err)
	back, err := Decode[ProtocolProof](data)
	require.NoError(t, err)
	got, err := back.Args.Populate(zstore.NewStore())
	require.NoError(t, err)
	assert.True(t, args.Equal(got))
}
