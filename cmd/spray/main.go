// spray funds a population of freshly derived accounts from one seed
// account, preparing test populations for throughput benchmarks.
//
// go run main.go -addr 127.0.0.1:9955 -source-key <hex seed> -seed <hex> -count 1000
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/eigerco/spray/internal/funding"
	"github.com/eigerco/spray/internal/keys"
	"github.com/eigerco/spray/internal/keystore"
	"github.com/eigerco/spray/internal/ledger"
	"github.com/eigerco/spray/internal/report"
	"github.com/eigerco/spray/pkg/authtoken"
	"github.com/eigerco/spray/pkg/db/pebble"
	"github.com/eigerco/spray/pkg/log"
	"github.com/eigerco/spray/pkg/rpc"
)

func main() {
	addr := flag.String("addr", "", "ledger RPC endpoint (host:port)")
	sourceKey := flag.String("source-key", "", "hex ed25519 seed of the funded source account")
	seedHex := flag.String("seed", "", "hex derivation seed for the account population")
	count := flag.Uint64("count", 0, "number of leaf accounts to fund")
	lamports := flag.Uint64("lamports", 10_000, "lamports every leaf account ends up with")
	maxFee := flag.Uint64("max-fee", 5_000, "fee reserve per funding account")
	workers := flag.Int("workers", 0, "parallel sign/verify workers (0 = default)")
	maxRounds := flag.Int("max-rounds", 0, "abort a batch after this many retry rounds (0 = retry forever)")
	queryRate := flag.Float64("query-rate", 0, "balance queries per second during verification (0 = unlimited)")
	storePath := flag.String("keystore", "", "persist derived keypairs to this pebble directory")
	loglevel := flag.String("loglevel", "info", "log level")
	reportURL := flag.String("report-url", "", "optional endpoint to POST the run summary to")
	tokenURL := flag.String("token-url", "", "OAuth token endpoint for report uploads")
	clientID := flag.String("client-id", "", "OAuth client id for report uploads")
	clientSecret := flag.String("client-secret", "", "OAuth client secret for report uploads")
	flag.Parse()

	level, err := log.ParseLogLevel(*loglevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Init(log.Options{LogLevel: level, Type: log.ConsoleLogger})

	if *addr == "" || *sourceKey == "" || *seedHex == "" || *count == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options{
		addr:         *addr,
		sourceKey:    *sourceKey,
		seedHex:      *seedHex,
		count:        *count,
		lamports:     *lamports,
		maxFee:       *maxFee,
		workers:      *workers,
		maxRounds:    *maxRounds,
		queryRate:    *queryRate,
		storePath:    *storePath,
		reportURL:    *reportURL,
		tokenURL:     *tokenURL,
		clientID:     *clientID,
		clientSecret: *clientSecret,
	}); err != nil {
		log.Root.Fatal().Err(err).Msg("funding run failed")
	}
}

type options struct {
	addr         string
	sourceKey    string
	seedHex      string
	count        uint64
	lamports     uint64
	maxFee       uint64
	workers      int
	maxRounds    int
	queryRate    float64
	storePath    string
	reportURL    string
	tokenURL     string
	clientID     string
	clientSecret string
}

func run(ctx context.Context, opts options) error {
	source, err := parsePair(opts.sourceKey)
	if err != nil {
		return fmt.Errorf("parse source key: %w", err)
	}
	seed, err := parseSeed(opts.seedHex)
	if err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	pairs, extra := keys.Sequence(seed, opts.count)
	log.Keys.Info().
		Int("total", len(pairs)).
		Uint64("extra", extra).
		Msg("derived funding tree")

	if opts.storePath != "" {
		kv, err := pebble.NewPersistent(opts.storePath)
		if err != nil {
			return fmt.Errorf("open keystore: %w", err)
		}
		defer kv.Close() //nolint:errcheck
		if err := keystore.New(kv).PutAll(pairs); err != nil {
			return fmt.Errorf("persist keypairs: %w", err)
		}
		log.Keys.Info().Str("path", opts.storePath).Msg("keypairs persisted")
	}

	client, err := rpc.Dial(ctx, rpc.Config{Addr: opts.addr, Log: log.RPC})
	if err != nil {
		return err
	}
	defer client.Close() //nolint:errcheck

	balance, err := client.Balance(ctx, source.Address(), ledger.Confirmed)
	if err != nil {
		return fmt.Errorf("source balance: %w", err)
	}
	log.Funding.Info().Uint64("balance", balance).Msg("source account")

	cfg := funding.Config{
		Workers:   opts.workers,
		MaxRounds: opts.maxRounds,
		Log:       log.Funding,
	}
	if opts.queryRate > 0 {
		cfg.Limiter = rate.NewLimiter(rate.Limit(opts.queryRate), 1)
	}
	engine := funding.NewEngine(client, cfg)
	funder := funding.NewFunder(engine, funding.Policy{
		LamportsPerAccount: opts.lamports,
		MaxFee:             opts.maxFee,
	}, log.Funding)

	stats, err := funder.Run(ctx, source, pairs, balance)
	if err != nil {
		return err
	}
	log.Funding.Info().
		Int("accounts", stats.Accounts).
		Int("waves", stats.Waves).
		Uint64("rounds", stats.Rounds).
		Dur("took", stats.Duration).
		Msg("population funded")

	if opts.reportURL != "" {
		uploadSummary(ctx, opts, stats)
	}
	return nil
}

func uploadSummary(ctx context.Context, opts options, stats funding.Stats) {
	var tokens report.TokenProvider
	if opts.tokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     opts.clientID,
			ClientSecret: opts.clientSecret,
			TokenURL:     opts.tokenURL,
		}
		t, err := authtoken.New(cc.TokenSource(ctx), log.Root)
		if err != nil {
			log.Root.Warn().Err(err).Msg("report upload skipped")
			return
		}
		tokens = t
	}
	uploader := report.NewUploader(opts.reportURL, tokens, log.Root)
	err := uploader.Upload(ctx, report.Summary{
		Accounts:        stats.Accounts,
		Waves:           stats.Waves,
		Rounds:          stats.Rounds,
		DurationSeconds: stats.Duration.Seconds(),
		LamportsPerLeaf: opts.lamports,
	})
	if err != nil {
		// a lost report never fails the run
		log.Root.Warn().Err(err).Msg("failed to upload run summary")
	}
}

func parseSeed(s string) (keys.Seed, error) {
	var seed keys.Seed
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, err
	}
	if len(raw) != keys.SeedSize {
		return seed, fmt.Errorf("seed must be %d bytes, got %d", keys.SeedSize, len(raw))
	}
	copy(seed[:], raw)
	return seed, nil
}

func parsePair(s string) (*keys.Pair, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != keys.SeedSize {
		return nil, fmt.Errorf("key seed must be %d bytes, got %d", keys.SeedSize, len(raw))
	}
	return keys.FromSeed(raw), nil
}
