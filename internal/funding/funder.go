package funding

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/spray/internal/keys"
)

// Funder expands funding wave by wave through the fanout tree: each wave's
// destinations become the next wave's sources. A wave is fully confirmed
// before the next one is planned; work inside a wave runs in parallel.
type Funder struct {
	engine *Engine
	policy Policy
	log    zerolog.Logger
}

// Stats summarises a completed run.
type Stats struct {
	Accounts int           `json:"accounts"`
	Waves    int           `json:"waves"`
	Rounds   uint64        `json:"rounds"`
	Duration time.Duration `json:"duration"`
}

func NewFunder(engine *Engine, policy Policy, log zerolog.Logger) *Funder {
	return &Funder{engine: engine, policy: policy, log: log}
}

// Run funds every keypair in dests from source, which holds sourceBalance
// lamports. Because each source is spent into at most
// ledger.MaxTransfersPerTx destinations per wave, a source is always either
// still full or fully drained, which is what makes retrying safe.
func (f *Funder) Run(ctx context.Context, source *keys.Pair, dests []*keys.Pair, sourceBalance uint64) (Stats, error) {
	start := time.Now()
	stats := Stats{Accounts: len(dests)}

	funded := []*keys.Pair{source}
	fundedBalance := sourceBalance
	notFunded := dests

	for len(notFunded) > 0 {
		wave, err := PlanWave(funded, fundedBalance, notFunded, f.policy)
		if err != nil {
			return stats, fmt.Errorf("plan wave %d: %w", stats.Waves, err)
		}
		for _, batch := range BuildBatches(wave.Assignments) {
			if err := f.engine.Fund(ctx, batch, wave.PerDest); err != nil {
				return stats, fmt.Errorf("fund wave %d: %w", stats.Waves, err)
			}
		}
		f.log.Info().
			Int("funded", len(wave.Funded)).
			Int("left", len(wave.Remaining)).
			Msg("wave complete")

		funded = wave.Funded
		fundedBalance = wave.PerDest
		notFunded = wave.Remaining
		stats.Waves++
	}

	stats.Rounds = f.engine.Rounds()
	stats.Duration = time.Since(start)
	return stats, nil
}
