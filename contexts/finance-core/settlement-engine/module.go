package settlementengine

import (
	"log/slog"
	"time"

	httpadapter "folio/contexts/finance-core/settlement-engine/adapters/http"
	"folio/contexts/finance-core/settlement-engine/adapters/memory"
	"folio/contexts/finance-core/settlement-engine/application"
	"folio/contexts/finance-core/settlement-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Papers          ports.PaperCatalog
	Ledger          ports.LedgerRepository
	Idempotency     ports.IdempotencyStore
	Clock           ports.Clock
	IDGenerator     ports.IDGenerator
	PlatformAccount string
	FeeBps          uint32
	Mode            ports.SettlementMode
	IdempotencyTTL  time.Duration
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Handler: httpadapter.Handler{
			Service: application.Service{
				Papers:          deps.Papers,
				Ledger:          deps.Ledger,
				Idempotency:     deps.Idempotency,
				Clock:           deps.Clock,
				IDGen:           deps.IDGenerator,
				PlatformAccount: deps.PlatformAccount,
				FeeBps:          deps.FeeBps,
				Mode:            deps.Mode,
				IdempotencyTTL:  deps.IdempotencyTTL,
				Logger:          deps.Logger,
			},
			Logger: deps.Logger,
		},
	}
}

func NewInMemoryModule(mode ports.SettlementMode, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Papers:      store,
		Ledger:      store,
		Idempotency: store,
		Clock:       store,
		IDGenerator: store,
		Mode:        mode,
		Logger:      logger,
	})
	module.Store = store
	return module
}
