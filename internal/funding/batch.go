package funding

import (
	"github.com/eigerco/spray/internal/ledger"
)

// MaxBatchLen bounds how many transactions go into one submission batch.
// Assumes 4MB network buffers and 512 byte packets.
const MaxBatchLen = 4 * 1024 * 1024 / 512

// Entry is one transaction of a submission batch together with its signer
// group. The transaction is rebuilt unsigned here and signed fresh every
// retry round.
type Entry struct {
	Signer SignerGroup
	Tx     *ledger.Transaction
}

// Batch is an ordered set of entries submitted and verified together.
type Batch []*Entry

// BuildBatches turns a wave's assignments into unsigned transactions and
// groups them into batches of at most MaxBatchLen. Pure and deterministic
// given the assignment order.
func BuildBatches(assignments []Assignment) []Batch {
	entries := make([]*Entry, len(assignments))
	for i, a := range assignments {
		transfers := make([]ledger.Transfer, len(a.Transfers))
		copy(transfers, a.Transfers)
		entries[i] = &Entry{
			Signer: NewSingleSigner(a.Source),
			Tx: &ledger.Transaction{
				Source:    a.Source.Address(),
				Transfers: transfers,
			},
		}
	}
	return chunkEntries(entries, MaxBatchLen)
}

func chunkEntries(entries []*Entry, size int) []Batch {
	if len(entries) == 0 {
		return nil
	}
	batches := make([]Batch, 0, (len(entries)+size-1)/size)
	for len(entries) > size {
		batches = append(batches, Batch(entries[:size]))
		entries = entries[size:]
	}
	return append(batches, Batch(entries))
}
