package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	electionledger "d21ledger/contexts/governance/election-ledger"
	badgeradapter "d21ledger/contexts/governance/election-ledger/adapters/badger"
	"d21ledger/contexts/governance/election-ledger/adapters/memory"
	postgresadapter "d21ledger/contexts/governance/election-ledger/adapters/postgres"
	"d21ledger/contexts/governance/election-ledger/adapters/system"
	"d21ledger/contexts/governance/election-ledger/application/commands"
	"d21ledger/contexts/governance/election-ledger/application/workers"
	"d21ledger/contexts/governance/election-ledger/ports"
	"d21ledger/internal/platform/config"
	"d21ledger/internal/platform/db"
	"d21ledger/internal/platform/httpserver"
	"d21ledger/internal/platform/messaging"
	"d21ledger/internal/platform/metrics"
	"d21ledger/internal/shared/events"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const bootstrapModule = "internal/app/bootstrap"

var ledgerTopics = []string{
	commands.EventElectionInitialized,
	commands.EventVoteCast,
	commands.EventElectionFinalized,
}

type ledgerStore interface {
	ports.ElectionRepository
	ports.OutboxWriter
	ports.OutboxRepository
}

type storage struct {
	backend config.StorageBackend
	store   ledgerStore
	closeFn func() error
}

func (s *storage) processLocal() bool {
	return s.backend == config.StorageMemory || s.backend == config.StorageBadger
}

func (s *storage) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return &storage{backend: cfg.Storage, store: memory.NewStore(nil)}, nil
	case config.StorageBadger:
		store, err := badgeradapter.Open(cfg.BadgerDir, logger)
		if err != nil {
			return nil, err
		}
		return &storage{backend: cfg.Storage, store: store, closeFn: store.Close}, nil
	case config.StoragePostgres, config.StorageSQLite:
		var (
			database *db.Database
			err      error
		)
		if cfg.Storage == config.StoragePostgres {
			database, err = db.ConnectPostgres(cfg.PostgresDSN)
		} else {
			database, err = db.ConnectSQLite(cfg.SQLitePath)
		}
		if err != nil {
			return nil, err
		}
		repo := postgresadapter.NewRepository(database.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, err
		}
		return &storage{backend: cfg.Storage, store: repo, closeFn: database.Close}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

type APIApp struct {
	server          *httpserver.Server
	worker          *WorkerApp
	storage         *storage
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

type WorkerApp struct {
	storage       *storage
	bus           *messaging.Bus
	relay         workers.OutboxRelay
	sweeper       workers.TallySweeper
	relayInterval time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

func BuildAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*APIApp, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "api")

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		ledgerMetrics  ports.Metrics = ports.NopMetrics{}
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		registry := metrics.NewRegistry()
		ledgerMetrics = metrics.NewLedger(registry)
		metricsHandler = metrics.Handler(registry)
	}
	module := newModule(cfg, store, ledgerMetrics, logger)

	app := &APIApp{
		server:          httpserver.New(module, metricsHandler, logger, cfg.HTTPAddr),
		storage:         store,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
	// Process-local stores cannot be opened by a second process, so the
	// background loops run next to the server.
	if store.processLocal() {
		app.worker = newWorker(cfg, store, module.Ledger, logger)
	}
	return app, nil
}

func BuildWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", "worker")

	if cfg.Storage == config.StorageMemory || cfg.Storage == config.StorageBadger {
		return nil, fmt.Errorf("storage backend %q is process-local; the api process runs the worker loops", cfg.Storage)
	}
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	module := newModule(cfg, store, ports.NopMetrics{}, logger)
	return newWorker(cfg, store, module.Ledger, logger), nil
}

func newModule(cfg *config.Config, store *storage, ledgerMetrics ports.Metrics, logger *slog.Logger) electionledger.Module {
	return electionledger.NewModule(electionledger.Dependencies{
		Elections:             store.store,
		Clock:                 system.Clock{},
		IDGen:                 system.UUIDGenerator{},
		Metrics:               ledgerMetrics,
		Quota:                 cfg.Quota.Table(),
		MaxCandidateNameBytes: cfg.MaxCandidateNameBytes,
		RepeatTally:           commands.RepeatTallyPolicy(cfg.RepeatTally),
		Logger:                logger,
	})
}

func newWorker(cfg *config.Config, store *storage, ledger commands.LedgerUseCase, logger *slog.Logger) *WorkerApp {
	bus := messaging.NewBus(cfg.OutboxBatchSize, logger)
	return &WorkerApp{
		storage: store,
		bus:     bus,
		relay: workers.OutboxRelay{
			Outbox:    store.store,
			Publisher: bus,
			Clock:     system.Clock{},
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		sweeper: workers.TallySweeper{
			Elections: store.store,
			Tally:     ledger,
			Clock:     system.Clock{},
			BatchSize: cfg.TallySweepBatchSize,
			CallerID:  cfg.ServiceName + "-sweeper",
			Logger:    logger,
		},
		relayInterval: cfg.OutboxPollInterval,
		sweepInterval: cfg.TallySweepInterval,
		logger:        logger,
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests
// within the shutdown timeout.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", bootstrapModule,
		"layer", "platform",
		"storage", string(a.storage.backend),
		"embedded_worker", a.worker != nil,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.worker != nil {
		group.Go(func() error {
			return a.worker.Run(groupCtx)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	return a.storage.Close()
}

// Run drives the outbox relay and the tally sweeper on independent tickers
// until ctx is cancelled. A failed cycle is logged and retried on the next
// tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	for _, topic := range ledgerTopics {
		if err := w.bus.Subscribe(ctx, topic, "ledger-audit", w.audit); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", bootstrapModule,
		"layer", "platform",
		"relay_interval", w.relayInterval.String(),
		"sweep_interval", w.sweepInterval.String(),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runEvery(groupCtx, w.relayInterval, "outbox_relay", w.logger, w.relay.RunOnce)
	})
	group.Go(func() error {
		return runEvery(groupCtx, w.sweepInterval, "tally_sweeper", w.logger, w.sweeper.RunOnce)
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return w.storage.Close()
}

func (w *WorkerApp) audit(_ context.Context, event events.Envelope) error {
	w.logger.Info("ledger event observed",
		"event", "ledger_event_observed",
		"module", bootstrapModule,
		"layer", "worker",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"election_id", event.PartitionKey,
		"occurred_at", event.OccurredAt.Format(time.RFC3339Nano),
	)
	return nil
}

func runEvery(
	ctx context.Context,
	interval time.Duration,
	job string,
	logger *slog.Logger,
	runOnce func(context.Context) (int, error),
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := runOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("worker cycle failed",
				"event", "bootstrap_worker_cycle_failed",
				"module", bootstrapModule,
				"layer", "worker",
				"job", job,
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
