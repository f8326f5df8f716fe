package funding

import (
	"fmt"

	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/internal/ledger"
)

// Policy carries the lamport amounts the planner must keep aside.
type Policy struct {
	// LamportsPerAccount is the balance every leaf account must end up
	// holding.
	LamportsPerAccount uint64
	// MaxFee is the fee reserve kept in every funding account so it can
	// pay for its own onward transfers.
	MaxFee uint64
}

// Assignment pairs one funding source with at most
// ledger.MaxTransfersPerTx destinations, all receiving the same amount.
type Assignment struct {
	Source    *keys.Pair
	Transfers []ledger.Transfer
}

// Wave is one level of the funding tree: the assignments to execute plus
// the uniform per-destination amount and the accounts they will fund.
type Wave struct {
	Assignments []Assignment
	PerDest     uint64
	// Funded are the destinations of this wave, in consumption order. They
	// become the sources of the next wave.
	Funded []*keys.Pair
	// Remaining is what is left of the waiting list after this wave.
	Remaining []*keys.Pair
}

// PlanWave computes the next wave. funded are the current sources, all
// holding fundedBalance lamports; notFunded is the waiting list, drained
// from its tail in groups of up to ledger.MaxTransfersPerTx, one group per
// source. The per-destination amount is computed once for the wave so that
// every destination can cover its own reserve and fee; integer rounding
// loss stays with the source.
func PlanWave(funded []*keys.Pair, fundedBalance uint64, notFunded []*keys.Pair, policy Policy) (Wave, error) {
	if fundedBalance <= policy.LamportsPerAccount+policy.MaxFee {
		return Wave{}, fmt.Errorf("%w: balance %d, need more than %d",
			ErrInsufficientFunds, fundedBalance, policy.LamportsPerAccount+policy.MaxFee)
	}
	perDest := (fundedBalance - policy.LamportsPerAccount - policy.MaxFee) / ledger.MaxTransfersPerTx

	wave := Wave{PerDest: perDest, Remaining: notFunded}
	for _, source := range funded {
		if len(wave.Remaining) == 0 {
			break
		}
		take := ledger.MaxTransfersPerTx
		if take > len(wave.Remaining) {
			take = len(wave.Remaining)
		}
		start := len(wave.Remaining) - take
		dests := wave.Remaining[start:]
		wave.Remaining = wave.Remaining[:start]

		transfers := make([]ledger.Transfer, len(dests))
		for i, d := range dests {
			transfers[i] = ledger.Transfer{To: d.Address(), Lamports: perDest}
		}
		wave.Assignments = append(wave.Assignments, Assignment{Source: source, Transfers: transfers})
		wave.Funded = append(wave.Funded, dests...)
	}
	return wave, nil
}
