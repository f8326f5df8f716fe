package funding

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eigerco/spray/internal/ledger"
)

const (
	defaultWorkers          = 16
	defaultSettleDelay      = time.Second
	defaultAnchorRetryDelay = time.Second
	defaultPassDelay        = 100 * time.Millisecond

	// multiPassLimit is the batch size below which verification runs three
	// passes instead of one. Small batches are cheap to re-check; large
	// ones would pay too much latency for the extra confidence.
	multiPassLimit = 1000

	// breakerThreshold is the failure count a verification pass must exceed,
	// while also exceeding the verified count, before the pass is cut short.
	breakerThreshold = 100

	progressInterval = 2 * time.Second
)

// Config tunes the submit/verify/retry engine. The zero value gets sane
// defaults from NewEngine.
type Config struct {
	// Workers bounds the parallel signing and verification fan-out.
	Workers int
	// SettleDelay is how long to wait after submission before verifying.
	SettleDelay time.Duration
	// AnchorRetryDelay is the backoff between anchor fetch attempts.
	AnchorRetryDelay time.Duration
	// PassDelay is the pause between verification passes.
	PassDelay time.Duration
	// MaxRounds aborts a batch after this many sign/submit/verify rounds.
	// Zero retries forever, matching the original tool; set it when an
	// external watchdog is not available.
	MaxRounds int
	// Limiter optionally throttles balance queries.
	Limiter *rate.Limiter
	// Log receives progress output. The zero logger is silent.
	Log zerolog.Logger
}

// Engine drives submission batches through sign, submit, settle, verify and
// retry until every entry is confirmed. Entries recycle to unsigned on every
// retry round; submissions are all or nothing, so re-submitting an already
// applied transaction is a harmless no-op.
type Engine struct {
	client ledger.Client
	cfg    Config
	log    zerolog.Logger

	rounds atomic.Uint64
}

func NewEngine(client ledger.Client, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.AnchorRetryDelay <= 0 {
		cfg.AnchorRetryDelay = defaultAnchorRetryDelay
	}
	if cfg.PassDelay <= 0 {
		cfg.PassDelay = defaultPassDelay
	}
	return &Engine{client: client, cfg: cfg, log: cfg.Log}
}

// Rounds reports how many sign/submit/verify rounds the engine has run in
// total, across all batches.
func (e *Engine) Rounds() uint64 {
	return e.rounds.Load()
}

// Fund drives one batch to full confirmation. It returns early only on a
// fatal submission error, context cancellation, or when MaxRounds is set
// and exhausted.
func (e *Engine) Fund(ctx context.Context, batch Batch, perDest uint64) error {
	rounds := 0
	for len(batch) > 0 {
		if e.cfg.MaxRounds > 0 && rounds >= e.cfg.MaxRounds {
			return fmt.Errorf("%w: %d entries unverified after %d rounds", ErrRetriesExhausted, len(batch), rounds)
		}
		stage := "transferring"
		if rounds > 0 {
			stage = "retrying"
		}
		e.log.Info().
			Str("stage", stage).
			Uint64("lamports", perDest).
			Int("accounts", len(batch)*ledger.MaxTransfersPerTx).
			Int("txs", len(batch)).
			Msg("funding transfers")

		anchor, err := e.latestAnchor(ctx)
		if err != nil {
			return err
		}
		// re-sign retained entries against the fresh anchor
		if err := e.sign(ctx, batch, anchor); err != nil {
			return err
		}
		if err := e.submit(ctx, batch); err != nil {
			return fmt.Errorf("submit batch: %w", err)
		}
		// give the ledger time to process before checking balances
		if err := sleepCtx(ctx, e.cfg.SettleDelay); err != nil {
			return err
		}
		batch = e.verify(ctx, batch, perDest)
		if err := ctx.Err(); err != nil {
			return err
		}
		rounds++
		e.rounds.Add(1)
	}
	e.log.Info().Msg("transferred")
	return nil
}

// latestAnchor blocks until the ledger yields a confirmation anchor,
// backing off between attempts. It only gives up when ctx is cancelled.
func (e *Engine) latestAnchor(ctx context.Context) (ledger.Anchor, error) {
	for {
		anchor, err := e.client.LatestAnchor(ctx, ledger.Processed)
		if err == nil {
			return anchor, nil
		}
		e.log.Info().Err(err).Msg("couldn't get latest anchor")
		if err := sleepCtx(ctx, e.cfg.AnchorRetryDelay); err != nil {
			return ledger.Anchor{}, err
		}
	}
}

func (e *Engine) sign(ctx context.Context, batch Batch, anchor ledger.Anchor) error {
	start := time.Now()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for _, entry := range batch {
		g.Go(func() error {
			for _, pair := range entry.Signer.Signers() {
				pair.Sign(entry.Tx, anchor)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	e.log.Debug().Int("txs", len(batch)).Dur("took", time.Since(start)).Msg("signed")
	return nil
}

func (e *Engine) submit(ctx context.Context, batch Batch) error {
	start := time.Now()
	outbound := make([]*ledger.Transaction, len(batch))
	for i, entry := range batch {
		outbound[i] = entry.Tx.Clone()
	}
	if err := e.client.SubmitBatch(ctx, outbound); err != nil {
		return err
	}
	e.log.Debug().Int("txs", len(batch)).Dur("took", time.Since(start)).Msg("submitted")
	return nil
}

// verify runs up to three balance-check passes over the batch and returns
// the entries still unconfirmed. The verified tally carries across passes;
// the failed tally restarts each pass. Once failures exceed
// breakerThreshold and outnumber verifications, workers stop issuing new
// queries for the rest of the pass; the entries they skip simply stay in
// the working set for the next retry round.
func (e *Engine) verify(ctx context.Context, batch Batch, perDest uint64) Batch {
	starting := len(batch)
	var verified atomic.Uint64
	var tooManyFailures atomic.Bool

	passes := 1
	if starting < multiPassLimit {
		passes = 3
	}

	var progressMu sync.Mutex
	lastProgress := time.Now()

	for pass := 0; pass < passes; pass++ {
		var failed atomic.Uint64
		done := make([]atomic.Bool, len(batch))

		g, _ := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.Workers)
		for i, entry := range batch {
			g.Go(func() error {
				if tooManyFailures.Load() || ctx.Err() != nil {
					return nil
				}
				if e.cfg.Limiter != nil {
					if err := e.cfg.Limiter.Wait(ctx); err != nil {
						return nil
					}
				}
				if e.verifyTransfer(ctx, entry.Tx, perDest) {
					done[i].Store(true)
					verified.Add(1)
				} else {
					failed.Add(1)
				}

				v := verified.Load()
				f := failed.Load()
				var remaining uint64
				if total := v + f; uint64(starting) > total {
					remaining = uint64(starting) - total
				}
				if f > breakerThreshold && f > v && tooManyFailures.CompareAndSwap(false, true) {
					e.log.Warn().
						Uint64("remaining", remaining).
						Uint64("verified", v).
						Uint64("failed", f).
						Msg("too many failed transfers")
				}
				if remaining > 0 {
					progressMu.Lock()
					if time.Since(lastProgress) > progressInterval {
						e.log.Info().
							Uint64("remaining", remaining).
							Uint64("verified", v).
							Uint64("failed", f).
							Msg("verifying transfers")
						lastProgress = time.Now()
					}
					progressMu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		next := make(Batch, 0, len(batch))
		for i, entry := range batch {
			if !done[i].Load() {
				next = append(next, entry)
			}
		}
		batch = next
		if len(batch) == 0 {
			break
		}
		e.log.Info().
			Int("remaining", len(batch)).
			Uint64("verified", verified.Load()).
			Uint64("failed", failed.Load()).
			Msg("looping verifications")
		if sleepCtx(ctx, e.cfg.PassDelay) != nil {
			break
		}
	}
	return batch
}

// verifyTransfer checks whether the transaction's transfers landed. The
// ledger applies a transaction all or nothing, so the first recipient whose
// balance can be read decides the whole transaction. Query failures count
// as not-verified and fold into the normal retry round.
func (e *Engine) verifyTransfer(ctx context.Context, tx *ledger.Transaction, amount uint64) bool {
	for _, tr := range tx.Transfers {
		balance, err := e.client.Balance(ctx, tr.To, ledger.Processed)
		if err != nil {
			e.log.Error().Err(err).Msg("failed to get balance")
			continue
		}
		return balance >= amount
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
