package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"price-relay/internal/aggregation"
	"price-relay/internal/config"
	"price-relay/internal/ingestion"
	"price-relay/internal/ledger"
	"price-relay/internal/ledger/stub"
	"price-relay/internal/logger"
	"price-relay/internal/observability"
	"price-relay/internal/retention"
	"price-relay/internal/scheduler"
	"price-relay/internal/storage"
	chstore "price-relay/internal/storage/clickhouse"
	"price-relay/internal/storage/memory"
	"price-relay/internal/storage/migrations"
	pgstore "price-relay/internal/storage/postgres"
	"price-relay/internal/submission"
)

func main() {
	_ = godotenv.Load() // .env is optional

	defaultPath := os.Getenv("RELAY_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/relay.yaml"
	}

	configPath := flag.String("config", defaultPath, "Path to YAML config file")
	envOnly := flag.Bool("env-only", false, "Read configuration from RELAY_* environment variables only")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	dryRun := flag.Bool("dry-run", false, "Submit to an in-memory ledger instead of the RPC endpoint")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envOnly)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *useMemory {
		cfg.DB.UseMemory = true
	}
	if *dryRun {
		cfg.Ledger.DryRun = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("relay stopped with error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting price relay",
		zap.String("env", cfg.App.Env),
		zap.String("symbol", cfg.Stream.Symbol),
		zap.Duration("window", cfg.Aggregation.Window),
		zap.Bool("memory", cfg.DB.UseMemory),
		zap.Bool("dry_run", cfg.Ledger.DryRun),
	)

	// Storage. Released in reverse order, after the scheduler has stopped.
	var release []func()
	defer func() { releaseAll(release) }()

	trades, prices, closeStore, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	release = append(release, closeStore)

	var archive storage.SubmissionArchive
	if cfg.Archive.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Archive.ClickhouseDSN, log.Named("clickhouse"))
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		release = append(release, func() { conn.Close() })
		archive = chstore.NewSubmissionArchive(conn)
		log.Info("submission archive enabled")
	}

	// Ledger
	client, signer, err := openLedger(cfg.Ledger, log)
	if err != nil {
		return err
	}
	log.Info("submitting as", zap.String("address", signer.Address()))

	// Pipeline
	retrying := storage.NewRetryingTradeStore(trades, storage.RetryPolicy{
		MaxAttempts:    cfg.Store.InsertMaxAttempts,
		InitialBackoff: cfg.Store.InsertInitialBackoff,
		MaxBackoff:     cfg.Store.InsertMaxBackoff,
	}, log.Named("store"))

	extractor := aggregation.NewExtractor(trades, prices, log)
	aggregator := aggregation.NewAggregator(extractor, cfg.Stream.Symbol, cfg.Aggregation.Window, log,
		aggregation.WithMaxCatchUp(cfg.Aggregation.MaxCatchUp))

	cursor, err := submission.RecomputeCursor(ctx, prices, cfg.Submission.SkipBacklog)
	if err != nil {
		return fmt.Errorf("recompute cursor: %w", err)
	}
	log.Info("submission cursor recomputed", zap.Int64("cursor", cursor))

	submitter := submission.NewLedgerSubmitter(client, signer, prices, archive, submission.SubmitterConfig{
		ContractID:        cfg.Ledger.ContractID,
		Function:          cfg.Ledger.Function,
		NetworkPassphrase: cfg.Ledger.NetworkPassphrase,
		BaseFee:           cfg.Ledger.BaseFee,
		ConfirmAttempts:   cfg.Submission.ConfirmAttempts,
		ConfirmInterval:   cfg.Submission.ConfirmInterval,
	}, log)
	engine := submission.NewEngine(prices, submitter, submission.NewCursor(cursor), cfg.Submission.BatchSize, log)
	sweeper := retention.NewSweeper(trades, prices, log)

	// Jobs get a context that outlives the signal; Stop waits for running ticks.
	runner := scheduler.New(context.Background(), log)
	jobs := []struct {
		name string
		spec string
		job  scheduler.Job
	}{
		{"aggregation", cfg.Aggregation.Schedule, aggregator.Tick},
		{"submission", cfg.Submission.Schedule, func(ctx context.Context) error {
			_, err := engine.Tick(ctx)
			return err
		}},
		{"retention", cfg.Retention.Schedule, func(ctx context.Context) error {
			_, err := sweeper.Sweep(ctx, cfg.Retention.MaxAgeMinutes)
			return err
		}},
	}
	for _, j := range jobs {
		if _, err := runner.Add(j.name, j.spec, j.job); err != nil {
			return err
		}
	}

	// Ingestion
	stream := ingestion.NewStreamSource(ingestion.StreamConfig{
		URL:            cfg.Stream.URL,
		Symbol:         cfg.Stream.Symbol,
		BufferSize:     cfg.Stream.BufferSize,
		ReconnectDelay: cfg.Stream.ReconnectDelay,
		ReadTimeout:    cfg.Stream.ReadTimeout,
		WriteTimeout:   cfg.Stream.WriteTimeout,
		PingInterval:   cfg.Stream.PingInterval,
	}, log)
	writer := ingestion.NewWriter(retrying, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return stream.Run(gctx)
	})
	g.Go(func() error {
		// Drains until the stream closes its channel.
		return writer.Run(context.Background(), stream.Trades())
	})

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = newMetricsServer(cfg.Metrics.Addr)
		g.Go(func() error {
			log.Info("metrics server listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("stopping ingestion")
		stream.Close()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	runner.Start()

	err = g.Wait()

	// Ingestion has stopped. Running ticks finish before storage is released.
	shutdown(runner, release)
	release = nil

	stats := writer.Stats()
	log.Info("pipeline stopped",
		zap.Int64("trades_stored", stats.Stored),
		zap.Int64("trades_failed", stats.Failed),
		zap.Int64("cursor", engine.Cursor()),
	)
	return err
}

// shutdown waits for every running job, however long its ledger calls take,
// then releases resources in reverse order of acquisition.
func shutdown(runner interface{ Stop() }, release []func()) {
	runner.Stop()
	releaseAll(release)
}

func releaseAll(release []func()) {
	for i := len(release) - 1; i >= 0; i-- {
		release[i]()
	}
}

// openStores returns the trade and unique price stores plus a close function.
// Postgres migrations are applied before the stores are returned.
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (storage.TradeStore, storage.UniquePriceStore, func(), error) {
	if cfg.DB.UseMemory {
		log.Warn("using in-memory storage; data is lost on exit")
		return memory.NewTradeStore(), memory.NewUniquePriceStore(), func() {}, nil
	}

	pool, err := pgstore.NewPoolWithOptions(ctx, cfg.DB.DSN, pgstore.PoolOptions{
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		MaxConnIdleTime: cfg.DB.MaxConnIdleTime,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	if err := migrations.RunPostgresMigrations(ctx, pool, log.Named("postgres")); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	log.Info("postgres ready")

	closeFn := func() {
		pool.Close()
		log.Info("postgres pool closed")
	}
	return pgstore.NewTradeStore(pool), pgstore.NewUniquePriceStore(pool), closeFn, nil
}

// openLedger returns the ledger client and submitting identity.
// In dry-run mode an in-memory ledger confirms everything.
func openLedger(cfg config.LedgerConfig, log *zap.Logger) (ledger.Client, *ledger.Signer, error) {
	var signer *ledger.Signer
	var err error
	if cfg.SecretKey != "" {
		signer, err = ledger.NewSignerFromSeed(cfg.SecretKey)
	} else {
		signer, err = ledger.GenerateSigner()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ledger key: %w", err)
	}

	if cfg.DryRun {
		log.Warn("dry run: submissions go to an in-memory ledger")
		l := stub.New(cfg.NetworkPassphrase)
		l.AutoCreate = true
		return l, signer, nil
	}

	client := ledger.NewHTTPClient(cfg.RPCURL,
		ledger.WithTimeout(cfg.Timeout),
		ledger.WithMaxRetries(cfg.MaxRetries),
	)
	return client, signer, nil
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
