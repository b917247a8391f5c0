package queries

import (
	"context"
	"strings"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	"folio/contexts/publishing-core/registry-service/ports"
)

type ListPapersUseCase struct {
	Papers ports.PaperRepository
}

func (u ListPapersUseCase) Execute(ctx context.Context, filter ports.PaperListFilter) ([]entities.Paper, string, error) {
	filter.Author = strings.TrimSpace(filter.Author)
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	return u.Papers.ListPapers(ctx, filter)
}
