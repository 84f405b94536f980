package seal

import (
	"context"
	"os"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lurk-zk/pkg/comm"
	"lurk-zk/pkg/zstore"
)

func sampleComm(t *testing.T) *comm.CommData {
	t.Helper()
	s := zstore.NewStore()
	payload := s.List(s.Str("sealed"), s.NumUint64(42))
	cd, err := comm.New(zstore.DigestFromUint64(7), payload, s)
	require.NoError(t, err)
	return cd
}

func TestSealOpen(t *testing.T) {
	alice, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	bob, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	eve, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	cd := sampleComm(t)
	sealed, err := SealForRecipients(cd, alice.Recipient(), bob.Recipient())
	require.NoError(t, err)
	assert.Contains(t, string(sealed), "BEGIN AGE ENCRYPTED FILE")

	for _, id := range []age.Identity{alice, bob} {
		got, err := Open(sealed, id)
		require.NoError(t, err)
		assert.Equal(t, cd.Hash(), got.Hash())
	}
	_, err = Open(sealed, eve)
	assert.Error(t, err)

	h, err := ParseHeader(sealed)
	require.NoError(t, err)
	require.Len(t, h.Stanzas, 2)
	assert.Equal(t, "X25519", h.Stanzas[0].Type)
	_, _, err = h.Timelock()
	assert.ErrorIs(t, err, ErrNoStanza)
}

func TestSealRejectsFlawedPayload(t *testing.T) {
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	s := zstore.NewStore()
	cd := &comm.CommData{
		Secret:  zstore.ZeroDigest,
		Payload: s.Cons(s.NumUint64(1), s.NumUint64(2)),
		ZDag:    zstore.NewZDag(),
	}
	sealed, err := SealForRecipients(cd, id.Recipient())
	require.NoError(t, err)
	_, err = Open(sealed, id)
	assert.ErrorIs(t, err, comm.ErrFlawedPayload)

	_, err = SealForRecipients(cd)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestParseHeader(t *testing.T) {
	raw := []byte("age-encryption.org/v1\n-> tlock 1234 52db9b\nYm9keQ\n--- mac\npayload")
	h, err := ParseHeader(raw)
	require.NoError(t, err)
	round, chain, err := h.Timelock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), round)
	assert.Equal(t, "52db9b", chain)

	_, err = ParseHeader([]byte("no header here"))
	assert.Error(t, err)

	h, err = ParseHeader([]byte("age-encryption.org/v1\n-> tlock x y\n--- mac\n"))
	require.NoError(t, err)
	_, _, err = h.Timelock()
	assert.Error(t, err)
}

func TestCapsuleValidate(t *testing.T) {
	info := QuicknetInfo()
	c := &Capsule{
		Round:      1234,
		ChainHash:  info.ChainHash,
		Ciphertext: []byte("age-encryption.org/v1\n-> tlock 1234 " + info.ChainHashHex() + "\nYm9keQ\n--- mac\n"),
	}
	require.NoError(t, c.Validate(info.ChainHash, 1234))
	assert.ErrorIs(t, c.Validate(info.ChainHash, 1235), ErrRoundMismatch)
	assert.ErrorIs(t, c.Validate([]byte{1}, 1234), ErrNetworkMismatch)

	c.Ciphertext = []byte("age-encryption.org/v1\n-> tlock 99 " + info.ChainHashHex() + "\nYm9keQ\n--- mac\n")
	assert.ErrorIs(t, c.Validate(info.ChainHash, 1234), ErrRoundMismatch)
}

func TestRounds(t *testing.T) {
	info := QuicknetInfo()
	genesis := time.Unix(info.GenesisTime, 0)
	assert.Equal(t, uint64(1), info.RoundAt(genesis.Add(-time.Hour)))
	assert.Equal(t, uint64(1), info.RoundAt(genesis))
	assert.Equal(t, uint64(2), info.RoundAt(genesis.Add(3*time.Second)))
	assert.Equal(t, uint64(11), info.RoundAt(genesis.Add(31*time.Second)))
	assert.Equal(t, genesis.Add(30*time.Second), info.RoundTime(11))
	assert.Equal(t, genesis, info.RoundTime(0))
}

func TestTimelockNetwork(t *testing.T) {
	if os.Getenv("LURK_NETWORK_TESTS") != "1" {
		t.Skip("set LURK_NETWORK_TESTS=1 to reach drand")
	}
	ctx := context.Background()
	info := QuicknetInfo()
	network, err := info.Dial()
	require.NoError(t, err)

	// a past round decrypts immediately
	round := info.RoundAt(time.Now().Add(-time.Minute))
	cd := sampleComm(t)
	c, err := Timelock(ctx, network, round, cd)
	require.NoError(t, err)
	require.NoError(t, c.Validate(info.ChainHash, round))

	got, err := Unlock(ctx, network, c)
	require.NoError(t, err)
	assert.Equal(t, cd.Hash(), got.Hash())

	c.Comm = zstore.DigestFromUint64(1)
	_, err = Unlock(ctx, network, c)
	assert.ErrorIs(t, err, ErrCommMismatch)
}
