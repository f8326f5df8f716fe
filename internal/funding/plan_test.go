package funding

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/internal/ledger"
)

func testPairs(t *testing.T, n int) []*keys.Pair {
	t.Helper()
	var seed keys.Seed
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	return keys.Derive(seed, uint64(n))
}

func TestPlanWaveAmount(t *testing.T) {
	pairs := testPairs(t, 5)
	source, dests := pairs[0], pairs[1:]

	wave, err := PlanWave([]*keys.Pair{source}, 1_000_000, dests,
		Policy{LamportsPerAccount: 10_000, MaxFee: 5_000})
	require.NoError(t, err)

	require.Len(t, wave.Assignments, 1)
	require.Empty(t, wave.Remaining)
	require.Equal(t, uint64(246_250), wave.PerDest)
	require.Len(t, wave.Assignments[0].Transfers, 4)
	for _, tr := range wave.Assignments[0].Transfers {
		require.Equal(t, uint64(246_250), tr.Lamports)
	}
}

func TestPlanWaveFanoutBound(t *testing.T) {
	for _, dests := range []int{1, 3, 4, 5, 17, 64, 100} {
		pairs := testPairs(t, dests+8)
		funded := pairs[:8]
		wave, err := PlanWave(funded, 1_000_000, pairs[8:],
			Policy{LamportsPerAccount: 100, MaxFee: 10})
		require.NoError(t, err)
		for _, a := range wave.Assignments {
			require.LessOrEqual(t, len(a.Transfers), ledger.MaxTransfersPerTx,
				"assignment exceeds fanout for %d dests", dests)
		}
		consumed := 0
		for _, a := range wave.Assignments {
			consumed += len(a.Transfers)
		}
		require.Equal(t, len(wave.Funded), consumed)
		require.Equal(t, dests, consumed+len(wave.Remaining), "no destination may be lost")
	}
}

func TestPlanWaveNoOverAllocation(t *testing.T) {
	pairs := testPairs(t, 5)
	policy := Policy{LamportsPerAccount: 10_000, MaxFee: 5_000}
	for _, balance := range []uint64{15_001, 20_000, 99_999, 1_000_000, 123_456_789} {
		wave, err := PlanWave(pairs[:1], balance, pairs[1:], policy)
		require.NoError(t, err)
		require.LessOrEqual(t,
			wave.PerDest*ledger.MaxTransfersPerTx+policy.LamportsPerAccount+policy.MaxFee,
			balance, "over-allocated at balance %d", balance)
	}
}

func TestPlanWaveInsufficientBalance(t *testing.T) {
	pairs := testPairs(t, 2)
	policy := Policy{LamportsPerAccount: 10_000, MaxFee: 5_000}

	_, err := PlanWave(pairs[:1], 15_000, pairs[1:], policy)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = PlanWave(pairs[:1], 14_000, pairs[1:], policy)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestPlanWaveDrainsFromTail(t *testing.T) {
	pairs := testPairs(t, 9)
	source, waiting := pairs[0], pairs[1:]

	wave, err := PlanWave([]*keys.Pair{source}, 1_000_000, waiting,
		Policy{LamportsPerAccount: 100, MaxFee: 10})
	require.NoError(t, err)

	// one source takes the last four of the waiting list
	require.Len(t, wave.Funded, 4)
	require.Len(t, wave.Remaining, 4)
	for i, d := range wave.Funded {
		require.Equal(t, waiting[4+i].Address(), d.Address())
	}
	for i, d := range wave.Remaining {
		require.Equal(t, waiting[i].Address(), d.Address())
	}
}

func TestPlanWaveMultipleSources(t *testing.T) {
	pairs := testPairs(t, 13)
	funded := pairs[:3]

	wave, err := PlanWave(funded, 1_000_000, pairs[3:],
		Policy{LamportsPerAccount: 100, MaxFee: 10})
	require.NoError(t, err)

	require.Len(t, wave.Assignments, 3)
	require.Len(t, wave.Funded, 10)
	require.Empty(t, wave.Remaining)
	// the last source gets the short group
	require.Len(t, wave.Assignments[0].Transfers, 4)
	require.Len(t, wave.Assignments[1].Transfers, 4)
	require.Len(t, wave.Assignments[2].Transfers, 2)
}
