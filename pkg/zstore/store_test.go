package zstore

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternIsIdempotent(t *testing.T) {
	s := NewStore()
	before := s.Stats()
	a := s.Cons(s.NumUint64(1), s.Nil())
	mid := s.Stats()
	b := s.Cons(s.NumUint64(1), s.Nil())
	assert.Equal(t, a, b)
	assert.Equal(t, mid, s.Stats())
	assert.Equal(t, before.Hashes4+1, mid.Hashes4)
}

func TestDigestsDependOnStructure(t *testing.T) {
	s := NewStore()
	one, two := s.NumUint64(1), s.NumUint64(2)
	assert.NotEqual(t, s.Cons(one, two).Digest, s.Cons(two, one).Digest)
	// same children under another tag share the digest, not the pointer
	assert.Equal(t, s.Cons(one, two).Digest, s.StrCons(one, two).Digest)
	assert.NotEqual(t, s.Cons(one, two), s.StrCons(one, two))
	// the tag is hashed along with the digest
	assert.NotEqual(t, s.Cons(one, two).Digest, s.Cons(s.U64(1), two).Digest)
}

func TestIngressEgress(t *testing.T) {
	s := NewStore()
	nilSym := ZPtr{Tag: TagSym, Digest: s.Digests().Nil()}
	tSym := ZPtr{Tag: TagSym, Digest: s.Digests().T()}

	assert.Equal(t, TagNil, s.Ingress(nilSym).Tag)
	assert.Equal(t, TagTrue, s.Ingress(tSym).Tag)
	assert.Equal(t, nilSym, s.Nil().Egress())
	assert.Equal(t, tSym, s.True().Egress())
	assert.True(t, s.Nil().Equal(nilSym))

	user := s.UserSym("x")
	assert.Equal(t, user, s.Ingress(user))

	// children come back in evaluation form
	car, cdr, err := s.Fetch4(s.Cons(s.True(), s.Nil()).Digest)
	require.NoError(t, err)
	assert.Equal(t, s.True(), car)
	assert.Equal(t, s.Nil(), cdr)
}

func TestInternalTagsNeverPersisted(t *testing.T) {
	for tag := TagNum; tag < tagCount; tag++ {
		assert.True(t, tag.Valid())
		assert.False(t, tag.IsInternal())
	}
	for _, tag := range []Tag{TagNil, TagTrue} {
		assert.True(t, tag.IsInternal())
		assert.Equal(t, TagSym, tag.Persisted())
		back, err := TagFromElement(tag.Persisted().Element())
		require.NoError(t, err)
		assert.Equal(t, TagSym, back)
	}
	_, err := TagFromElement(fr.NewElement(uint64(TagNil)))
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestLoadUnknownDigest(t *testing.T) {
	s := NewStore()
	_, _, err := s.Fetch4(DigestFromUint64(12345))
	assert.ErrorIs(t, err, ErrUnknownDigest)
	_, _, _, err = s.Fetch5(DigestFromUint64(12345))
	assert.ErrorIs(t, err, ErrUnknownDigest)
	_, _, ok := s.FetchComm(DigestFromUint64(12345))
	assert.False(t, ok)
}

func TestStrings(t *testing.T) {
	s := NewStore()
	for _, str := range []string{"", "a", "hello", "λx"} {
		p := s.Str(str)
		got, err := s.FetchString(p)
		require.NoError(t, err)
		assert.Equal(t, str, got)
	}
	assert.True(t, s.Str("").Digest.IsZero())
	assert.Equal(t, s.Str("ab"), s.StrCons(s.Char('a'), s.Str("b")))
}

func TestLists(t *testing.T) {
	s := NewStore()
	elems := []ZPtr{s.NumUint64(1), s.Str("two"), s.Key("three")}
	l := s.List(elems...)
	got, tail, err := s.FetchList(l)
	require.NoError(t, err)
	assert.Equal(t, elems, got)
	assert.Equal(t, s.Nil(), tail)

	dotted := s.ListWithTail(elems[:1], s.NumUint64(9))
	got, tail, err = s.FetchList(dotted)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, s.NumUint64(9), tail)
}

func TestSymbols(t *testing.T) {
	s := NewStore("my-coroutine")
	assert.Equal(t, TagNil, s.Symbol("nil").Tag)
	assert.Equal(t, TagTrue, s.Symbol("t").Tag)
	assert.Equal(t, s.Rest(), s.Symbol("&rest"))
	assert.Equal(t, TagBuiltin, s.Symbol("car").Tag)
	assert.Equal(t, TagCoroutine, s.Symbol("my-coroutine").Tag)
	assert.Equal(t, TagSym, s.Symbol("foo").Tag)

	for _, name := range []string{"foo", "car", "nil", "my-coroutine"} {
		got, err := s.SymbolName(s.Symbol(name))
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}
	path, err := s.SymbolPath(s.Symbol("car"))
	require.NoError(t, err)
	assert.Equal(t, []string{"lurk", "builtin", "car"}, path)

	// a fresh store derives identical symbol digests
	other := NewStore()
	assert.Equal(t, s.Digests().MustBuiltin("cons"), other.Digests().MustBuiltin("cons"))
	assert.Equal(t, s.Key("k"), other.Key("k"))
	assert.NotEqual(t, s.Key("k"), other.UserSym("k"))
	assert.Panics(t, func() { s.Digests().MustBuiltin("no-such-builtin") })
}

func TestCommitments(t *testing.T) {
	s := NewStore()
	payload := s.List(s.NumUint64(1), s.NumUint64(2))
	secret := DigestFromUint64(77)
	c := s.Hide(secret, payload)
	assert.Equal(t, TagComm, c.Tag)
	assert.Equal(t, Hash3(CommPreimage(secret, payload)), c.Digest)

	gotSecret, gotPayload, ok := s.FetchComm(c.Digest)
	require.True(t, ok)
	assert.Equal(t, secret, gotSecret)
	assert.Equal(t, payload, gotPayload)

	assert.Equal(t, s.Hide(ZeroDigest, payload), s.Commit(payload))
	assert.NotEqual(t, c, s.Commit(payload))
	assert.True(t, s.HasComm(c.Digest))
}

func TestEnvironments(t *testing.T) {
	s := NewStore()
	x, y := s.UserSym("x"), s.UserSym("y")
	env := s.ExtendEnv(x, s.NumUint64(1), s.EmptyEnv())
	env = s.ExtendEnv(y, s.NumUint64(2), env)
	sym, val, tail, err := s.Fetch5(env.Digest)
	require.NoError(t, err)
	assert.Equal(t, y, sym)
	assert.Equal(t, s.NumUint64(2), val)
	assert.False(t, tail.IsZero())
	assert.True(t, s.EmptyEnv().Digest.IsZero())
}

func TestZPtrCBOR(t *testing.T) {
	s := NewStore()
	for _, p := range []ZPtr{s.NumUint64(5), s.Str("x"), s.UserSym("y"), s.Err(CantOpen)} {
		data, err := cbor.Marshal(p)
		require.NoError(t, err)
		var back ZPtr
		require.NoError(t, cbor.Unmarshal(data, &back))
		assert.Equal(t, p, back)
	}

	// internal tags leave as Sym
	data, err := cbor.Marshal(s.Nil())
	require.NoError(t, err)
	var back ZPtr
	require.NoError(t, cbor.Unmarshal(data, &back))
	assert.Equal(t, TagSym, back.Tag)
	assert.Equal(t, s.Nil(), s.Ingress(back))
}

func TestFlattenRoundTrip(t *testing.T) {
	s := NewStore()
	p := s.Cons(s.NumUint64(1), s.Nil())
	flat := p.Flatten()
	require.Len(t, flat, ZPtrSize)
	back, err := ZPtrFromFlat(flat)
	require.NoError(t, err)
	assert.Equal(t, p, back)

	_, err = ZPtrFromFlat(flat[:1])
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeElements(t *testing.T) {
	p := NewStore().Str("abc")
	flat := p.Flatten()
	back, err := DecodeElements(EncodeElements(flat), len(flat))
	require.NoError(t, err)
	assert.Equal(t, flat, back)
	_, err = DecodeElements(EncodeElements(flat), len(flat)+1)
	assert.Error(t, err)
}

func TestFmt(t *testing.T) {
	s := NewStore()
	quote, _ := s.BuiltinSym("quote")
	cases := []struct {
		p    ZPtr
		want string
	}{
		{s.NumUint64(42), "42"},
		{s.U64(7), "7u64"},
		{s.Char('a'), "'a'"},
		{s.Str("hi"), `"hi"`},
		{s.Key("k"), ":k"},
		{s.Nil(), "nil"},
		{s.True(), "t"},
		{s.List(s.NumUint64(1), s.NumUint64(2)), "(1 2)"},
		{s.Cons(s.NumUint64(1), s.NumUint64(2)), "(1 . 2)"},
		{s.List(quote, s.UserSym("x")), "'x"},
		{s.Err(DivByZero), "<Err DivByZero>"},
		{ZPtr{Tag: TagCons, Digest: DigestFromUint64(1)}, "<Opaque Cons>"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, s.Fmt(c.p))
	}
}
