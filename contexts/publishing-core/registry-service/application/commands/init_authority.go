package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "folio/contexts/publishing-core/registry-service/application"
	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/domain/services"
	"folio/contexts/publishing-core/registry-service/ports"
)

type InitAuthorityCommand struct {
	AdminAccount string
	PublicKey    string // "ed25519:" + base64(raw key)
}

type InitAuthorityUseCase struct {
	Authority ports.AuthorityStore
	Clock     ports.Clock
	Logger    *slog.Logger
}

// Execute establishes the deployment authority key. It succeeds at most once;
// every later call fails with ErrAlreadyInitialized regardless of caller.
func (u InitAuthorityUseCase) Execute(ctx context.Context, cmd InitAuthorityCommand) (entities.Authority, error) {
	logger := application.ResolveLogger(u.Logger)
	if strings.TrimSpace(cmd.AdminAccount) == "" {
		return entities.Authority{}, domainerrors.ErrInvalidRequest
	}

	publicKey, err := services.ParseAuthorityKey(cmd.PublicKey)
	if err != nil {
		return entities.Authority{}, err
	}

	authority, err := entities.NewAuthority(
		strings.TrimSpace(cmd.AdminAccount),
		publicKey,
		services.EncodeAuthorityKey(publicKey),
		u.now(),
	)
	if err != nil {
		return entities.Authority{}, err
	}

	if err := u.Authority.InitAuthority(ctx, authority); err != nil {
		return entities.Authority{}, err
	}

	logger.Info("authority initialized",
		"event", "authority_initialized",
		"module", "publishing-core/registry-service",
		"layer", "application",
		"admin_account", authority.AdminAccount,
	)
	return authority, nil
}

func (u InitAuthorityUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
