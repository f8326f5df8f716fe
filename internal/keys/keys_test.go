package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/spray/internal/ledger"
)

func randomSeed(t *testing.T) Seed {
	var seed Seed
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	return seed
}

func TestDeriveDeterministic(t *testing.T) {
	seed := randomSeed(t)
	first := Derive(seed, 64)
	second := Derive(seed, 64)
	require.Len(t, first, 64)
	for i := range first {
		require.Equal(t, first[i].Address(), second[i].Address(), "key %d differs between derivations", i)
	}
}

func TestDerivePrefixStable(t *testing.T) {
	seed := randomSeed(t)
	short := Derive(seed, 5)
	long := Derive(seed, 21)
	for i := range short {
		require.Equal(t, short[i].Address(), long[i].Address(), "longer derivation must extend the shorter one")
	}
}

func TestDeriveDistinct(t *testing.T) {
	seed := randomSeed(t)
	pairs := Derive(seed, 128)
	seen := make(map[ledger.Address]struct{}, len(pairs))
	for _, p := range pairs {
		_, dup := seen[p.Address()]
		require.False(t, dup, "duplicate derived address")
		seen[p.Address()] = struct{}{}
	}
}

func TestSequenceLength(t *testing.T) {
	seed := randomSeed(t)
	pairs, extra := Sequence(seed, 5)
	require.Len(t, pairs, 5)
	require.Equal(t, uint64(5), extra)
}

func TestSignVerifies(t *testing.T) {
	seed := randomSeed(t)
	pair := Derive(seed, 1)[0]
	tx := &ledger.Transaction{
		Source: pair.Address(),
		Transfers: []ledger.Transfer{
			{To: Derive(seed, 2)[1].Address(), Lamports: 100},
		},
	}
	var anchor ledger.Anchor
	_, err := rand.Read(anchor[:])
	require.NoError(t, err)

	pair.Sign(tx, anchor)
	require.Equal(t, anchor, tx.Anchor, "sign must bind the anchor")
	require.True(t, pair.Verify(tx.Message(), tx.Signature))

	// a fresh anchor invalidates the old signature and produces a new one
	old := tx.Signature
	var next ledger.Anchor
	_, err = rand.Read(next[:])
	require.NoError(t, err)
	pair.Sign(tx, next)
	require.NotEqual(t, old, tx.Signature)
	require.True(t, pair.Verify(tx.Message(), tx.Signature))
}

func TestNewPairAddress(t *testing.T) {
	pub, prv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	pair := NewPair(prv)
	require.Equal(t, ledger.Address(pub), pair.Address())
}
