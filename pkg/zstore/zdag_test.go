package zstore

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleValue(s *Store) ZPtr {
	inner := s.List(s.Str("abc"), s.Key("k"), s.True())
	env := s.ExtendEnv(s.UserSym("x"), inner, s.EmptyEnv())
	fun := s.Fun(s.List(s.UserSym("y")), s.List(s.UserSym("y")), env)
	return s.Cons(fun, s.Commit(s.NumUint64(9)))
}

func TestZDagReplay(t *testing.T) {
	src := NewStore()
	root := sampleValue(src)
	dag := NewZDag()
	require.NoError(t, dag.PopulateWith(root, src))
	assert.False(t, dag.IsFlawed(root))
	assert.Greater(t, dag.Len(), 5)

	dst := NewStore()
	require.NoError(t, dag.PopulateZStore(dst))
	assert.False(t, dst.IsFlawed(root))
	assert.Equal(t, src.Fmt(root), dst.Fmt(root))

	// commitments are leaves: known as digests, not openable
	_, tail, err := dst.Fetch4(root.Digest)
	require.NoError(t, err)
	assert.True(t, dst.HasComm(tail.Digest))
	_, _, ok := dst.FetchComm(tail.Digest)
	assert.False(t, ok)
}

func TestZDagUnknownRoot(t *testing.T) {
	s := NewStore()
	dag := NewZDag()
	err := dag.PopulateWith(ZPtr{Tag: TagCons, Digest: DigestFromUint64(3)}, s)
	assert.ErrorIs(t, err, ErrUnknownDigest)
}

func TestZDagFlawed(t *testing.T) {
	src := NewStore()
	root := src.Cons(src.NumUint64(1), src.NumUint64(2))
	dag := NewZDag()
	require.NoError(t, dag.PopulateWith(src.NumUint64(1), src))
	assert.True(t, dag.IsFlawed(root))
	err := dag.Check(root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDigest)

	// atoms and empty composites are never flawed
	assert.False(t, dag.IsFlawed(src.NumUint64(1)))
	assert.False(t, dag.IsFlawed(src.Str("")))
	assert.False(t, dag.IsFlawed(src.EmptyEnv()))
	assert.False(t, dag.IsFlawed(ZPtr{Tag: TagComm, Digest: DigestFromUint64(8)}))
}

func TestZDagRejectsTampering(t *testing.T) {
	src := NewStore()
	root := src.Cons(src.NumUint64(1), src.NumUint64(2))
	dag := NewZDag()
	require.NoError(t, dag.PopulateWith(root, src))
	pre := dag.hashes4[root.Digest]
	pre[1].SetUint64(99)
	dag.hashes4[root.Digest] = pre
	assert.ErrorIs(t, dag.PopulateZStore(NewStore()), ErrDigestMismatch)
}

func TestZDagCBOR(t *testing.T) {
	src := NewStore()
	root := sampleValue(src)
	dag := NewZDag()
	require.NoError(t, dag.PopulateWith(root, src))

	data, err := cbor.Marshal(dag)
	require.NoError(t, err)
	var back ZDag
	require.NoError(t, cbor.Unmarshal(data, &back))
	assert.Equal(t, dag.Len(), back.Len())
	assert.False(t, back.IsFlawed(root))

	again, err := cbor.Marshal(&back)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestZDagMany(t *testing.T) {
	s := NewStore()
	a := s.List(s.NumUint64(1))
	b := s.List(s.NumUint64(2), a)
	dag := NewZDag()
	require.NoError(t, dag.PopulateWithMany([]ZPtr{a, b}, s))
	assert.False(t, dag.IsFlawed(a))
	assert.False(t, dag.IsFlawed(b))
}
