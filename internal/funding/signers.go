package funding

import (
	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/internal/ledger"
)

// SignerGroup abstracts over how many keypairs must sign one transaction.
// Funding transfers need a single signer; the same engine can drive batches
// whose transactions carry several, so the arity is picked when the batch
// is built rather than baked into the engine.
type SignerGroup interface {
	// Signers returns every keypair that must sign the transaction.
	Signers() []*keys.Pair
	// ID is the identity used to recognise a verified transaction across
	// retry rounds.
	ID() ledger.Address
}

// SingleSigner is a SignerGroup for transactions authorized by one source.
type SingleSigner struct {
	pair *keys.Pair
}

func NewSingleSigner(pair *keys.Pair) SingleSigner {
	return SingleSigner{pair: pair}
}

func (s SingleSigner) Signers() []*keys.Pair {
	return []*keys.Pair{s.pair}
}

func (s SingleSigner) ID() ledger.Address {
	return s.pair.Address()
}

// MultiSigner is a SignerGroup for transactions that require co-signing.
// The first pair's identity is used for dedup.
type MultiSigner struct {
	pairs []*keys.Pair
}

func NewMultiSigner(pairs []*keys.Pair) MultiSigner {
	return MultiSigner{pairs: pairs}
}

func (m MultiSigner) Signers() []*keys.Pair {
	return m.pairs
}

func (m MultiSigner) ID() ledger.Address {
	return m.pairs[0].Address()
}
