package queries

import (
	"context"
	"strings"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/ports"
)

type GetPaperUseCase struct {
	Papers ports.PaperRepository
}

func (u GetPaperUseCase) Execute(ctx context.Context, paperID string) (entities.Paper, error) {
	if strings.TrimSpace(paperID) == "" {
		return entities.Paper{}, domainerrors.ErrInvalidRequest
	}
	return u.Papers.GetPaper(ctx, strings.TrimSpace(paperID))
}
