package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	settlementengine "folio/contexts/finance-core/settlement-engine"
	settlementpostgres "folio/contexts/finance-core/settlement-engine/adapters/postgres"
	settlementworkers "folio/contexts/finance-core/settlement-engine/application/workers"
	settlementports "folio/contexts/finance-core/settlement-engine/ports"
	registryservice "folio/contexts/publishing-core/registry-service"
	registrypostgres "folio/contexts/publishing-core/registry-service/adapters/postgres"
	"folio/contexts/publishing-core/registry-service/application/commands"
	registryworkers "folio/contexts/publishing-core/registry-service/application/workers"
	registryerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	registrydomain "folio/contexts/publishing-core/registry-service/domain/services"
	"folio/internal/platform/config"
	"folio/internal/platform/db"
	"folio/internal/platform/httpserver"
	"folio/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres        *db.Postgres
	registryRelay   *registryworkers.OutboxRelay
	settlementRelay *settlementworkers.OutboxRelay
	intents         *settlementworkers.IntentDispatcher
	pollInterval    time.Duration
	logger          *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	identityMode, err := registrydomain.ParseIdentityMode(cfg.RegistryIdentityMode)
	if err != nil {
		return nil, err
	}

	registryRepo := registrypostgres.NewRepository(pg.DB, logger)
	registryModule := registryservice.NewModule(registryservice.Dependencies{
		Authority:    registryRepo,
		Capabilities: registryRepo,
		Papers:       registryRepo,
		Clock:        registrypostgres.SystemClock{},
		IDGenerator:  registrypostgres.UUIDGenerator{},
		IdentityMode: identityMode,
		Logger:       logger,
	})

	if err := seedAuthority(cfg, registryModule, logger); err != nil {
		return nil, err
	}

	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	settlementModule := settlementengine.NewModule(settlementengine.Dependencies{
		Papers:          settlementRepo,
		Ledger:          settlementRepo,
		Idempotency:     settlementRepo,
		Clock:           settlementpostgres.SystemClock{},
		IDGenerator:     settlementpostgres.UUIDGenerator{},
		PlatformAccount: cfg.PlatformAccount,
		FeeBps:          cfg.PlatformFeeBps,
		Mode:            settlementports.SettlementMode(cfg.SettlementMode),
		IdempotencyTTL:  7 * 24 * time.Hour,
		Logger:          logger,
	})

	server := httpserver.New(registryModule, settlementModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

// seedAuthority installs the signing authority from the environment when both
// values are set. A concurrent or earlier init wins silently.
func seedAuthority(cfg config.Config, module registryservice.Module, logger *slog.Logger) error {
	if cfg.AuthorityAdminAccount == "" || cfg.AuthorityPublicKey == "" {
		return nil
	}
	_, err := module.Handler.InitAuthority.Execute(context.Background(), commands.InitAuthorityCommand{
		AdminAccount: cfg.AuthorityAdminAccount,
		PublicKey:    cfg.AuthorityPublicKey,
	})
	if errors.Is(err, registryerrors.ErrAlreadyInitialized) {
		logger.Info("authority already initialized",
			"event", "bootstrap_authority_exists",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return nil
	}
	return err
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
		return nil, err
	}

	app := &WorkerApp{
		postgres:     pg,
		pollInterval: 2 * time.Second,
		logger:       logger,
	}

	if cfg.EnableRegistryOutboxRelay {
		registryRepo := registrypostgres.NewRepository(pg.DB, logger)
		app.registryRelay = &registryworkers.OutboxRelay{
			Outbox:    registryRepo,
			Publisher: kafka,
			Clock:     registrypostgres.SystemClock{},
			Topic:     "paper.published",
			BatchSize: 100,
			Logger:    logger,
		}
	}
	if cfg.EnableSettlementOutboxRelay {
		settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
		app.settlementRelay = &settlementworkers.OutboxRelay{
			Outbox:    settlementRepo,
			Publisher: kafka,
			Clock:     settlementpostgres.SystemClock{},
			Topic:     "paper.purchased",
			BatchSize: 100,
			Logger:    logger,
		}
	}
	if cfg.EnableIntentConsumer {
		app.intents = &settlementworkers.IntentDispatcher{
			Subscriber:    kafka,
			ConsumerGroup: "settlement-intent-dispatcher-cg",
			Topic:         "paper.purchased",
			Logger:        logger,
		}
	}
	return app, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.intents != nil {
		if err := w.intents.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.registryRelay != nil {
			if err := w.registryRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		if w.settlementRelay != nil {
			if err := w.settlementRelay.RunOnce(ctx); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
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
