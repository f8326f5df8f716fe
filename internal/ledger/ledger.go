package ledger

import (
	"context"
	"encoding/binary"
)

// MaxTransfersPerTx is fixed by the ledger protocol: a single transaction
// carries at most four transfer instructions, applied all or nothing.
const MaxTransfersPerTx = 4

const (
	AddressSize   = 32
	AnchorSize    = 32
	SignatureSize = 64
)

type Address [AddressSize]byte

// Anchor is a short-lived confirmation token proving a transaction was
// built against a recent ledger state. Transactions are signed over it.
type Anchor [AnchorSize]byte

type Signature [SignatureSize]byte

// ConfirmationLevel selects how settled ledger state must be before it is
// reported back to the caller.
type ConfirmationLevel uint8

const (
	Processed ConfirmationLevel = iota
	Confirmed
	Finalized
)

// Transfer moves Lamports from a transaction's source to To.
type Transfer struct {
	To       Address
	Lamports uint64
}

// Transaction is a bounded-fanout transfer authorized by Source. Transfers
// must not exceed MaxTransfersPerTx.
type Transaction struct {
	Source    Address
	Transfers []Transfer
	Anchor    Anchor
	Signature Signature
}

// Message returns the canonical byte representation covered by the
// transaction signature: source, anchor, then each transfer in order.
func (t *Transaction) Message() []byte {
	msg := make([]byte, 0, AddressSize+AnchorSize+len(t.Transfers)*(AddressSize+8))
	msg = append(msg, t.Source[:]...)
	msg = append(msg, t.Anchor[:]...)
	for _, tr := range t.Transfers {
		msg = append(msg, tr.To[:]...)
		msg = binary.LittleEndian.AppendUint64(msg, tr.Lamports)
	}
	return msg
}

// Clone returns a deep copy of the transaction, so a submission batch can
// be assembled without aliasing the entries that are still being retried.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.Transfers = make([]Transfer, len(t.Transfers))
	copy(cp.Transfers, t.Transfers)
	return &cp
}

// Client is the ledger access the funding pipeline consumes. Implementations
// are expected to distinguish transient lookup failures (wrapped in
// RetryableError) from structural submission failures, which are fatal.
type Client interface {
	// LatestAnchor returns the most recent confirmation anchor at the
	// given level.
	LatestAnchor(ctx context.Context, level ConfirmationLevel) (Anchor, error)
	// SubmitBatch atomically submits a batch of signed transactions.
	SubmitBatch(ctx context.Context, txs []*Transaction) error
	// Balance reports the spendable lamports of an account at the given
	// confirmation level.
	Balance(ctx context.Context, addr Address, level ConfirmationLevel) (uint64, error)
}
