package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"anchorid/internal/anchor"
	"anchorid/internal/checkpoint"
	"anchorid/internal/events"
	"anchorid/internal/identity/builder"
	"anchorid/internal/identity/keys"
	"anchorid/internal/pipeline"
	"anchorid/internal/platform/config"
	"anchorid/internal/platform/httpclient"
	"anchorid/internal/platform/httpserver"
	"anchorid/internal/platform/logger"
	"anchorid/internal/platform/metrics"
	platformredis "anchorid/internal/platform/redis"
	"anchorid/internal/poller"
	"anchorid/internal/settlement"
	httptransport "anchorid/internal/transport/http"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in the internal packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "anchorid:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	// Configuration is a precondition, not a stage: refuse to start with any
	// required value missing.
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	store, closeStore, err := buildCheckpointStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	defer closeStore()

	sink, closeSink, err := buildEventSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("event sink: %w", err)
	}
	defer closeSink()

	async := events.NewAsyncSink(256)
	worker := events.NewWorker(async, sink, log)
	publisher := events.NewPublisher(async, log)

	crypto := keys.NewECDSA()
	httpc := httpclient.New(log)

	custodial, err := settlement.NewClient(cfg.Custodial, httpc)
	if err != nil {
		return fmt.Errorf("custodial client: %w", err)
	}
	settlements := settlement.NewManager(custodial, crypto, cfg.Custodial.VaultAccountID, cfg.Custodial.AssetID, log)

	ion := anchor.NewIONClient(httpc, cfg.Anchoring.ChallengeEndpoint, cfg.Anchoring.SolutionEndpoint)

	pipe := pipeline.New(
		keys.NewProvider(crypto, log),
		builder.New(log),
		anchor.NewSubmitter(ion, httpc, cfg.Anchoring.SolutionEndpoint, log, m),
		settlements,
		poller.New(settlements, cfg.Poll.Interval, cfg.Poll.MaxWait, log, m),
		store,
		publisher,
		m,
		log,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	if cfg.RunOnStart {
		return oneShot(gctx, pipe, cfg)
	}

	runner := pipeline.NewRunner(gctx, pipe, log)
	handler := httptransport.NewHandler(runner, store, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	g.Go(func() error {
		log.Info("starting anchorid", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// oneShot executes a single pipeline run for the configured investor and
// exits. A zero error tally with the identifier derived is the only success
// outcome.
func oneShot(ctx context.Context, pipe *pipeline.Pipeline, cfg config.Config) error {
	summary, execErr := pipe.Execute(ctx, pipeline.RunRequest{
		InvestorID: cfg.Investor.ID,
		Wallets: builder.WalletAddresses{
			Bitcoin:  cfg.Investor.BitcoinAddress,
			Ethereum: cfg.Investor.EthereumAddress,
			Solana:   cfg.Investor.SolanaAddress,
		},
		Resume: true,
	})

	out, err := json.MarshalIndent(summary, "", "  ")
	if err == nil {
		fmt.Println(string(out))
	}

	if execErr != nil {
		return execErr
	}
	if !summary.Success {
		return fmt.Errorf("run %s finished with %d error(s)", summary.RunID, summary.ErrorCount)
	}
	return nil
}

// buildCheckpointStore picks postgres when DATABASE_URL is set, the file
// store otherwise, and layers the redis cache on top when configured.
func buildCheckpointStore(ctx context.Context, cfg config.Config, log *slog.Logger) (checkpoint.Store, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store checkpoint.Store
	if cfg.Checkpoints.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.Checkpoints.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		pg := checkpoint.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		store = pg
	} else {
		fs, err := checkpoint.NewFileStore(cfg.Checkpoints.Dir)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		store = checkpoint.NewCachedStore(store, client, log)
	}

	return store, closeAll, nil
}

// buildEventSink publishes stage events to kafka when brokers are
// configured; otherwise events stay in memory (for inspection in tests and
// local runs).
func buildEventSink(ctx context.Context, cfg config.Config) (events.Sink, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewInMemorySink(), func() {}, nil
	}
	kafka, err := events.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, nil, err
	}
	return kafka, kafka.Close, nil
}
