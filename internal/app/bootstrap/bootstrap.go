package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	nftmarketplace "nftmarket/contexts/trading/nft-marketplace"
	"nftmarket/contexts/trading/nft-marketplace/adapters/memory"
	postgresadapter "nftmarket/contexts/trading/nft-marketplace/adapters/postgres"
	workerapp "nftmarket/contexts/trading/nft-marketplace/application/workers"
	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
	"nftmarket/contexts/trading/nft-marketplace/ports"
	"nftmarket/internal/platform/config"
	"nftmarket/internal/platform/db"
	"nftmarket/internal/platform/httpserver"
	"nftmarket/internal/platform/messaging"
	"nftmarket/internal/platform/metrics"
	"nftmarket/internal/platform/ratelimit"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	bus      *messaging.Kafka
	// activity and loops are unset when a separate worker process owns the
	// outbox and payout queue.
	activity *workerapp.ActivityConsumer
	loops    []pollLoop
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres *db.Postgres
	bus      *messaging.Kafka
	activity *workerapp.ActivityConsumer
	loops    []pollLoop
	logger   *slog.Logger
}

type pollLoop struct {
	name     string
	interval time.Duration
	run      func(context.Context) error
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	collector, observer, metricsHandler := buildMetrics(cfg)

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	if collector != nil {
		bus.OnDrop(collector.ObserveBusDrop)
	}

	app := &APIApp{bus: bus, logger: logger}
	policy := entities.WithdrawFailurePolicy(cfg.WithdrawFailurePolicy)

	var module nftmarketplace.Module
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		module = nftmarketplace.NewInMemoryModule(cfg.MarketplaceAddress, policy, observer, logger)
		app.loops = marketplaceLoops(cfg, module.Store, module.Store, module.Wallet, module.Store, bus, logger)
		app.activity = &workerapp.ActivityConsumer{Subscriber: bus, Logger: logger}
		logger.Warn("running on in-memory adapters",
			"event", "bootstrap_memory_adapters",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	} else {
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.postgres = pg

		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(context.Background()); err != nil {
			_ = app.Close()
			return nil, err
		}
		registry := memory.NewRegistry(cfg.MarketplaceAddress)
		wallet := memory.NewWallet()
		module = nftmarketplace.NewModule(nftmarketplace.Dependencies{
			Listings:       repo,
			Proceeds:       repo,
			Payouts:        repo,
			Outbox:         repo,
			Registry:       registry,
			Funds:          wallet,
			Observer:       observer,
			Clock:          postgresadapter.SystemClock{},
			IDGenerator:    postgresadapter.UUIDGenerator{},
			Operator:       cfg.MarketplaceAddress,
			WithdrawPolicy: policy,
			Logger:         logger,
		})
		module.Registry = registry
		module.Wallet = wallet
	}

	if cfg.RegistrySeedFile != "" {
		if err := seedRegistry(cfg.RegistrySeedFile, module.Registry, module.Wallet, logger); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	app.server = httpserver.New(module, limiter, metricsHandler, logger, normalizeAddr(cfg.HTTPPort))
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = pg.Close()
		return nil, err
	}

	wallet := memory.NewWallet()
	if cfg.RegistrySeedFile != "" {
		if err := seedRegistry(cfg.RegistrySeedFile, nil, wallet, logger); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}

	return &WorkerApp{
		postgres: pg,
		bus:      kafka,
		activity: &workerapp.ActivityConsumer{
			Subscriber: kafka,
			Logger:     logger,
		},
		loops:  marketplaceLoops(cfg, repo, repo, wallet, postgresadapter.SystemClock{}, kafka, logger),
		logger: logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.activity != nil {
		if err := a.activity.Start(ctx); err != nil {
			return err
		}
	}
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"in_process_workers", len(a.loops),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Start(gctx)
	})
	for _, loop := range a.loops {
		g.Go(func() error {
			return loop.runEvery(gctx, a.logger)
		})
	}
	return g.Wait()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	return errors.Join(errs...)
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.activity.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"loops", len(w.loops),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, loop := range w.loops {
		g.Go(func() error {
			return loop.runEvery(gctx, w.logger)
		})
	}
	return g.Wait()
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.bus != nil {
		errs = append(errs, w.bus.Close())
	}
	if w.postgres != nil {
		errs = append(errs, w.postgres.Close())
	}
	return errors.Join(errs...)
}

func marketplaceLoops(
	cfg config.Config,
	outbox ports.OutboxRepository,
	payouts ports.PayoutQueue,
	funds ports.FundTransfer,
	clock ports.Clock,
	publisher ports.EventPublisher,
	logger *slog.Logger,
) []pollLoop {
	relay := workerapp.OutboxRelay{
		Outbox:    outbox,
		Publisher: publisher,
		Clock:     clock,
		BatchSize: 100,
		Logger:    logger,
	}
	retrier := workerapp.PayoutRetrier{
		Payouts:     payouts,
		Funds:       funds,
		Clock:       clock,
		BatchSize:   50,
		MaxAttempts: cfg.PayoutMaxAttempts,
		Logger:      logger,
	}
	return []pollLoop{
		{name: "outbox_relay", interval: cfg.OutboxPollInterval, run: relay.RunOnce},
		{name: "payout_retrier", interval: cfg.PayoutRetryInterval, run: retrier.RunOnce},
	}
}

// runEvery keeps polling after a failed cycle; the next tick retries the
// same pending rows.
func (l pollLoop) runEvery(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("poll cycle failed",
				"event", "bootstrap_poll_cycle_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"loop", l.name,
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func buildMetrics(cfg config.Config) (*metrics.Collector, ports.OperationObserver, http.Handler) {
	if !cfg.EnableMetrics {
		return nil, nil, nil
	}
	collector := metrics.NewCollector()
	return collector, collector, collector.Handler()
}

// seedRegistry loads the development fixture. registry may be nil when only
// the wallet treasury is needed.
func seedRegistry(path string, registry *memory.Registry, wallet *memory.Wallet, logger *slog.Logger) error {
	seed, err := config.LoadRegistrySeed(path)
	if err != nil {
		return fmt.Errorf("seed registry from %s: %w", path, err)
	}
	if registry != nil {
		for _, item := range seed.Items {
			registry.Mint(item.Asset, item.ItemID, item.Owner)
			if item.Approved != (common.Address{}) {
				registry.Approve(item.Asset, item.ItemID, item.Approved)
			}
		}
		for _, op := range seed.Operators {
			registry.SetApprovalForAll(op.Owner, op.Operator, true)
		}
	}
	if wallet != nil && seed.HasTreasury {
		wallet.SetTreasury(seed.Treasury)
	}

	logger.Info("registry seeded",
		"event", "bootstrap_registry_seeded",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"path", path,
		"items", len(seed.Items),
		"operators", len(seed.Operators),
	)
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
