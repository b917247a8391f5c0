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

const publishedEventType = "paper.published"

type PublishPaperCommand struct {
	CallerAccount string
	Authors       []string
	CitedPapers   []string
}

type PublishPaperUseCase struct {
	Capabilities ports.CapabilityRepository
	Papers       ports.PaperRepository
	IdentityMode services.IdentityMode
	Clock        ports.Clock
	IDGenerator  ports.IDGenerator
	Logger       *slog.Logger
}

// Execute consumes the caller's pending capability and commits the paper.
// Every precondition that can fail is validated before the write: the
// capability is only removed inside the same atomic transaction that creates
// the paper, so a failed publish always leaves the capability intact for a
// retry.
func (u PublishPaperUseCase) Execute(ctx context.Context, cmd PublishPaperCommand) (entities.Paper, error) {
	logger := application.ResolveLogger(u.Logger)
	caller := strings.TrimSpace(cmd.CallerAccount)
	if caller == "" {
		return entities.Paper{}, domainerrors.ErrInvalidRequest
	}

	capability, err := u.Capabilities.GetCapabilityByOwner(ctx, caller)
	if err != nil {
		return entities.Paper{}, err
	}

	now := u.now()
	if capability.ExpiredAt(now) {
		return entities.Paper{}, domainerrors.ErrExpired
	}

	paperID := ""
	if u.IdentityMode == services.IdentityModeContent {
		paperID, err = services.ContentKey(capability.ContentUID)
		if err != nil {
			return entities.Paper{}, err
		}
	}

	paper, err := entities.NewPaper(paperID, capability, cmd.Authors, cmd.CitedPapers, now)
	if err != nil {
		return entities.Paper{}, err
	}

	eventID, err := u.IDGenerator.NewID(ctx)
	if err != nil {
		return entities.Paper{}, err
	}
	event := ports.PublishedEvent{
		EventID:      eventID,
		EventType:    publishedEventType,
		PaperID:      paper.PaperID,
		Authors:      paper.Authors,
		Price:        paper.Price,
		PartitionKey: paper.PaperID,
		OccurredAt:   now,
	}

	// Capability removal, identity allocation, paper row and the published
	// outbox message commit together in the repository adapter.
	stored, err := u.Papers.ConsumeCapabilityAndCreatePaper(ctx, caller, paper, event)
	if err != nil {
		logger.Error("publish failed on write transaction",
			"event", "paper_publish_write_failed",
			"module", "publishing-core/registry-service",
			"layer", "application",
			"owner_account", caller,
			"error", err.Error(),
		)
		return entities.Paper{}, err
	}

	logger.Info("paper published",
		"event", "paper_published",
		"module", "publishing-core/registry-service",
		"layer", "application",
		"paper_id", stored.PaperID,
		"owner_account", caller,
		"author_count", len(stored.Authors),
		"price", stored.Price,
	)
	return stored, nil
}

func (u PublishPaperUseCase) now() time.Time {
	if u.Clock == nil {
		return time.Now().UTC()
	}
	return u.Clock.Now().UTC()
}
