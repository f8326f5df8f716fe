package funding

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eigerco/spray/internal/ledger"
)

// fakeClient is a scriptable ledger.Client. Unset functions fall back to an
// instantly confirming ledger.
type fakeClient struct {
	anchorFn  func(ctx context.Context, level ledger.ConfirmationLevel) (ledger.Anchor, error)
	submitFn  func(ctx context.Context, txs []*ledger.Transaction) error
	balanceFn func(ctx context.Context, addr ledger.Address, level ledger.ConfirmationLevel) (uint64, error)

	anchors  atomic.Int64
	submits  atomic.Int64
	balances atomic.Int64
}

func (f *fakeClient) LatestAnchor(ctx context.Context, level ledger.ConfirmationLevel) (ledger.Anchor, error) {
	f.anchors.Add(1)
	if f.anchorFn != nil {
		return f.anchorFn(ctx, level)
	}
	return ledger.Anchor{1}, nil
}

func (f *fakeClient) SubmitBatch(ctx context.Context, txs []*ledger.Transaction) error {
	f.submits.Add(1)
	if f.submitFn != nil {
		return f.submitFn(ctx, txs)
	}
	return nil
}

func (f *fakeClient) Balance(ctx context.Context, addr ledger.Address, level ledger.ConfirmationLevel) (uint64, error) {
	f.balances.Add(1)
	if f.balanceFn != nil {
		return f.balanceFn(ctx, addr, level)
	}
	return 0, nil
}

// ledgerSim applies submitted transfers to an in-memory balance table, so a
// full funding run can be driven end to end.
type ledgerSim struct {
	mu       sync.Mutex
	balances map[ledger.Address]uint64
	submits  [][]*ledger.Transaction
}

func newLedgerSim() *ledgerSim {
	return &ledgerSim{balances: make(map[ledger.Address]uint64)}
}

func (s *ledgerSim) LatestAnchor(ctx context.Context, level ledger.ConfirmationLevel) (ledger.Anchor, error) {
	return ledger.Anchor{42}, nil
}

func (s *ledgerSim) SubmitBatch(ctx context.Context, txs []*ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, txs)
	for _, tx := range txs {
		var total uint64
		for _, tr := range tx.Transfers {
			total += tr.Lamports
		}
		// all or nothing: skip the whole transaction if the source was
		// already drained by an earlier (retried) copy
		if s.balances[tx.Source] < total {
			continue
		}
		s.balances[tx.Source] -= total
		for _, tr := range tx.Transfers {
			s.balances[tr.To] += tr.Lamports
		}
	}
	return nil
}

func (s *ledgerSim) Balance(ctx context.Context, addr ledger.Address, level ledger.ConfirmationLevel) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[addr], nil
}

func (s *ledgerSim) setBalance(addr ledger.Address, lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[addr] = lamports
}

func (s *ledgerSim) balanceOf(addr ledger.Address) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[addr]
}
