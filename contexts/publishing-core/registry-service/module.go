package registryservice

import (
	"log/slog"

	httpadapter "folio/contexts/publishing-core/registry-service/adapters/http"
	"folio/contexts/publishing-core/registry-service/adapters/memory"
	"folio/contexts/publishing-core/registry-service/application/commands"
	"folio/contexts/publishing-core/registry-service/application/queries"
	"folio/contexts/publishing-core/registry-service/domain/services"
	"folio/contexts/publishing-core/registry-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Authority    ports.AuthorityStore
	Capabilities ports.CapabilityRepository
	Papers       ports.PaperRepository
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	IdentityMode services.IdentityMode
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	identityMode := deps.IdentityMode
	if identityMode == "" {
		identityMode = services.IdentityModeCounter
	}
	return Module{
		Handler: httpadapter.Handler{
			InitAuthority: commands.InitAuthorityUseCase{
				Authority: deps.Authority,
				Clock:     deps.Clock,
				Logger:    deps.Logger,
			},
			MintCapability: commands.MintCapabilityUseCase{
				Authority:    deps.Authority,
				Capabilities: deps.Capabilities,
				Clock:        deps.Clock,
				Logger:       deps.Logger,
			},
			PublishPaper: commands.PublishPaperUseCase{
				Capabilities: deps.Capabilities,
				Papers:       deps.Papers,
				IdentityMode: identityMode,
				Clock:        deps.Clock,
				IDGenerator:  deps.IDGenerator,
				Logger:       deps.Logger,
			},
			GetPaper:      queries.GetPaperUseCase{Papers: deps.Papers},
			ListPapers:    queries.ListPapersUseCase{Papers: deps.Papers},
			GetCapability: queries.GetCapabilityUseCase{Capabilities: deps.Capabilities},
			Logger:        deps.Logger,
		},
	}
}

func NewInMemoryModule(identityMode services.IdentityMode, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Authority:    store,
		Capabilities: store,
		Papers:       store,
		Clock:        store,
		IDGenerator:  store,
		IdentityMode: identityMode,
		Logger:       logger,
	})
	module.Store = store
	return module
}
