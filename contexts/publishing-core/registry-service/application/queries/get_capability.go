package queries

import (
	"context"
	"strings"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/ports"
)

type GetCapabilityUseCase struct {
	Capabilities ports.CapabilityRepository
}

// Execute returns the caller's pending capability, if any.
func (u GetCapabilityUseCase) Execute(ctx context.Context, owner string) (entities.Capability, error) {
	if strings.TrimSpace(owner) == "" {
		return entities.Capability{}, domainerrors.ErrInvalidRequest
	}
	return u.Capabilities.GetCapabilityByOwner(ctx, strings.TrimSpace(owner))
}
