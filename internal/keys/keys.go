package keys

import (
	"crypto/ed25519"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/spray/internal/ledger"
)

const SeedSize = 32

type Seed [SeedSize]byte

// Pair is an account identity with local signing capability.
type Pair struct {
	private ed25519.PrivateKey
	addr    ledger.Address
}

// NewPair wraps an ed25519 private key as an account keypair.
func NewPair(private ed25519.PrivateKey) *Pair {
	p := &Pair{private: private}
	copy(p.addr[:], private.Public().(ed25519.PublicKey))
	return p
}

// FromSeed derives a keypair from a 32-byte ed25519 seed.
func FromSeed(seed []byte) *Pair {
	return NewPair(ed25519.NewKeyFromSeed(seed))
}

// Address returns the account's public identity.
func (p *Pair) Address() ledger.Address {
	return p.addr
}

// PrivateSeed returns the 32-byte ed25519 seed of the keypair, the form the
// keystore persists.
func (p *Pair) PrivateSeed() []byte {
	return p.private.Seed()
}

// Sign anchors the transaction and signs its canonical message bytes.
// Re-signing with a fresh anchor replaces the previous signature, which is
// what the retry rounds rely on.
func (p *Pair) Sign(tx *ledger.Transaction, anchor ledger.Anchor) {
	tx.Anchor = anchor
	sig := ed25519.Sign(p.private, tx.Message())
	copy(tx.Signature[:], sig)
}

// Verify checks sig over msg against the pair's public key.
func (p *Pair) Verify(msg []byte, sig ledger.Signature) bool {
	return ed25519.Verify(p.private.Public().(ed25519.PublicKey), msg, sig[:])
}

// Derive deterministically produces count keypairs from seed. Each key's
// ed25519 seed is the blake2b hash of the seed concatenated with the key's
// index, so the same (seed, count) always yields the same sequence and a
// longer sequence is a strict extension of a shorter one.
func Derive(seed Seed, count uint64) []*Pair {
	pairs := make([]*Pair, count)
	var buf [SeedSize + 8]byte
	copy(buf[:SeedSize], seed[:])
	for i := uint64(0); i < count; i++ {
		binary.LittleEndian.PutUint64(buf[SeedSize:], i)
		h := blake2b.Sum256(buf[:])
		pairs[i] = FromSeed(h[:])
	}
	return pairs
}

// Sequence derives the full keypair sequence a funding tree targeting count
// leaves requires, and reports how many of those keys need extra fee
// lamports funded.
func Sequence(seed Seed, count uint64) ([]*Pair, uint64) {
	total, extra := TreeSize(count)
	return Derive(seed, total), extra
}
