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

type MintCapabilityCommand struct {
	CallerAccount string
	Request       entities.AuthorizationRequest
	Signature     []byte
}

type MintCapabilityUseCase struct {
	Authority    ports.AuthorityStore
	Capabilities ports.CapabilityRepository
	Clock        ports.Clock
	Logger       *slog.Logger
}

// Execute runs the mint flow in this order:
// 1) canonicalize + digest the request
// 2) verify the authority signature over the digest
// 3) bind the capability to the caller (recipient must match)
// 4) check expiry against the current second
// 5) create the single-use capability owned by the caller.
//
// Minting is deliberately not idempotent: presenting the same signed request
// while a capability is still pending fails with ErrCapabilityPending.
func (u MintCapabilityUseCase) Execute(ctx context.Context, cmd MintCapabilityCommand) (entities.Capability, error) {
	logger := application.ResolveLogger(u.Logger)
	caller := strings.TrimSpace(cmd.CallerAccount)
	if caller == "" || len(cmd.Request.ContentDigest) == 0 {
		return entities.Capability{}, domainerrors.ErrInvalidRequest
	}

	authority, err := u.Authority.GetAuthority(ctx)
	if err != nil {
		return entities.Capability{}, err
	}

	if !services.VerifyRequestSignature(authority.PublicKey, cmd.Request, cmd.Signature) {
		logger.Warn("mint rejected on signature",
			"event", "capability_mint_not_authorized",
			"module", "publishing-core/registry-service",
			"layer", "application",
			"caller_account", caller,
		)
		return entities.Capability{}, domainerrors.ErrNotAuthorized
	}

	if cmd.Request.Recipient != caller {
		logger.Warn("mint rejected on recipient binding",
			"event", "capability_mint_invalid_recipient",
			"module", "publishing-core/registry-service",
			"layer", "application",
			"caller_account", caller,
		)
		return entities.Capability{}, domainerrors.ErrInvalidRecipient
	}

	now := u.now()
	if now.Unix() > cmd.Request.ExpiresAt {
		return entities.Capability{}, domainerrors.ErrExpired
	}

	capability, err := entities.NewCapability(caller, cmd.Request, now)
	if err != nil {
		return entities.Capability{}, err
	}
	if err := u.Capabilities.CreateCapability(ctx, capability); err != nil {
		return entities.Capability{}, err
	}

	logger.Info("capability minted",
		"event", "capability_minted",
		"module", "publishing-core/registry-service",
		"layer", "application",
		"owner_account", capability.OwnerAccount,
		"content_uid", capability.ContentUID,
		"price", capability.Price,
		"expires_at", capability.ExpiresAt,
	)
	return capability, nil
}

func (u MintCapabilityUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
