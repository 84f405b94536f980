package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/zstore"
)

func sampleProof(t *testing.T, s *zstore.Store, version string) *proofs.CachedProof {
	t.Helper()
	expr := s.List(s.UserSym("f"), s.NumUint64(1))
	pv := proofs.NewPublicValues(expr, s.EmptyEnv(), s.NumUint64(2), 5)
	cp := &proofs.CryptoProof{
		ShardProofs:     []proofs.CryptoShardProof{{Proof: []byte{1, 2, 3}, Claim: zstore.DigestFromUint64(9)}},
		VerifierVersion: version,
		Depth:           5,
	}
	p, err := proofs.NewCachedProof(cp, pv, s)
	require.NoError(t, err)
	return p
}

func TestKeyFor(t *testing.T) {
	s := zstore.NewStore()
	a := KeyFor(s.NumUint64(1), s.EmptyEnv(), "v1")
	assert.Equal(t, a, KeyFor(s.NumUint64(1), s.EmptyEnv(), "v1"))
	assert.NotEqual(t, a, KeyFor(s.NumUint64(1), s.EmptyEnv(), "v2"))
	assert.NotEqual(t, a, KeyFor(s.NumUint64(2), s.EmptyEnv(), "v1"))
	env := s.ExtendEnv(s.UserSym("x"), s.NumUint64(1), s.EmptyEnv())
	assert.NotEqual(t, a, KeyFor(s.NumUint64(1), env, "v1"))
	assert.Len(t, a.String(), 64)
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "proofs.db")
	c, err := Open(path, 4)
	require.NoError(t, err)

	s := zstore.NewStore()
	p := sampleProof(t, s, "v1")
	key := KeyFor(p.Expr, p.Env, "v1")

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, key, p))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Expr, got.Expr)
	require.NoError(t, c.Close())

	// a fresh handle reads from disk
	c, err = Open(path, 4)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Result, got.Result)
	assert.Equal(t, uint32(5), got.CryptoProof.Depth)
	assert.False(t, got.ZDag.IsFlawed(got.Expr))
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	c, err := Open(filepath.Join(t.TempDir(), "proofs.db"), 2)
	require.NoError(t, err)
	defer c.Close()

	s := zstore.NewStore()
	old := sampleProof(t, s, "v1")
	cur := sampleProof(t, s, "v2")
	require.NoError(t, c.Put(ctx, KeyFor(old.Expr, old.Env, "v1"), old))
	require.NoError(t, c.Put(ctx, KeyFor(cur.Expr, cur.Env, "v2"), cur))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := c.Prune(ctx, "v2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, ok, err := c.Get(ctx, KeyFor(old.Expr, old.Env, "v1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
