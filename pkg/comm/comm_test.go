package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lurk-zk/circuits/opening"
	"lurk-zk/pkg/zstore"
)

func sample(t *testing.T) (*zstore.Store, *CommData) {
	t.Helper()
	s := zstore.NewStore()
	payload := s.List(s.NumUint64(1), s.Str("two"), s.Cons(s.Key("k"), s.Nil()))
	cd, err := New(zstore.DigestFromUint64(123), payload, s)
	require.NoError(t, err)
	return s, cd
}

func TestCommitMatchesHide(t *testing.T) {
	s, cd := sample(t)
	assert.Equal(t, s.Hide(cd.Secret, s.Ingress(cd.Payload)), cd.Commit())
	assert.False(t, cd.PayloadIsFlawed())
}

func TestFromComm(t *testing.T) {
	s, cd := sample(t)
	c := s.Hide(cd.Secret, s.Ingress(cd.Payload))
	got, err := FromComm(c, s)
	require.NoError(t, err)
	assert.Equal(t, cd.Hash(), got.Hash())

	_, err = FromComm(s.NumUint64(1), s)
	assert.ErrorIs(t, err, ErrNotComm)
	_, err = FromComm(zstore.ZPtr{Tag: zstore.TagComm, Digest: zstore.DigestFromUint64(5)}, s)
	assert.ErrorIs(t, err, zstore.ErrUnknownDigest)
}

func TestPopulateOpensInFreshStore(t *testing.T) {
	src, cd := sample(t)
	data, err := cd.Encode()
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cd.Hash(), back.Hash())
	assert.False(t, back.PayloadIsFlawed())

	dst := zstore.NewStore()
	require.NoError(t, back.PopulateZStore(dst))
	secret, payload, ok := dst.FetchComm(back.Hash())
	require.True(t, ok)
	assert.Equal(t, cd.Secret, secret)
	assert.Equal(t, src.Fmt(src.Ingress(cd.Payload)), dst.Fmt(payload))
}

func TestFlawedPayload(t *testing.T) {
	s := zstore.NewStore()
	payload := s.Cons(s.NumUint64(1), s.NumUint64(2))
	cd := &CommData{Secret: zstore.ZeroDigest, Payload: payload, ZDag: zstore.NewZDag()}
	assert.True(t, cd.PayloadIsFlawed())

	_, err := ProveOpening(nil, cd)
	assert.ErrorIs(t, err, ErrFlawedPayload)

	data, err := cd.Encode()
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, back.PayloadIsFlawed())
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestOpeningProof(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping groth16 setup in short mode")
	}
	keys, err := opening.Setup()
	require.NoError(t, err)

	_, cd := sample(t)
	res, err := ProveOpening(keys, cd)
	require.NoError(t, err)
	require.NoError(t, VerifyOpening(keys.VK, res.Proof, cd.Commit(), cd.Payload))

	other := zstore.NewStore().NumUint64(2)
	assert.Error(t, VerifyOpening(keys.VK, res.Proof, cd.Commit(), other))
	assert.ErrorIs(t, VerifyOpening(keys.VK, res.Proof, other, cd.Payload), ErrNotComm)
}
