package keys

import "github.com/eigerco/spray/internal/ledger"

// TreeSize computes how many accounts a funding tree needs to fan out to
// count leaves with at most ledger.MaxTransfersPerTx destinations per
// transaction. It returns the full tree size and the number of accounts
// that need extra lamports funded to cover the fees of their own onward
// transfers. count of zero yields (0, 0).
func TreeSize(count uint64) (total, extra uint64) {
	delta := uint64(1)
	for total < count {
		extra += delta
		total += delta
		delta *= ledger.MaxTransfersPerTx
	}
	return total, extra
}
