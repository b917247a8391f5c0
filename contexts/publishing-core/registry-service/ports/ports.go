package ports

import (
	"context"
	"time"

	contractsv1 "folio/contracts/events/v1"

	"folio/contexts/publishing-core/registry-service/domain/entities"
)

// AuthorityStore holds the single trusted public key per deployment.
type AuthorityStore interface {
	// InitAuthority fails with ErrAlreadyInitialized on a second call.
	InitAuthority(ctx context.Context, authority entities.Authority) error
	GetAuthority(ctx context.Context) (entities.Authority, error)
}

// CapabilityRepository owns capability rows. At most one unconsumed
// capability exists per owning account.
type CapabilityRepository interface {
	// CreateCapability fails with ErrCapabilityPending when the owner already
	// holds an unconsumed capability; minting never silently overwrites.
	CreateCapability(ctx context.Context, capability entities.Capability) error
	GetCapabilityByOwner(ctx context.Context, owner string) (entities.Capability, error)
}

// PublishedEvent is the outbound integration payload persisted to outbox.
type PublishedEvent struct {
	EventID      string
	EventType    string
	PaperID      string
	Authors      []string
	Price        uint64
	PartitionKey string
	OccurredAt   time.Time
}

// PaperListFilter defines read-side filtering/pagination for the registry.
type PaperListFilter struct {
	Author string
	Cursor string
	Limit  int
}

// PaperRepository owns paper persistence and the publish transaction boundary.
type PaperRepository interface {
	GetPaper(ctx context.Context, paperID string) (entities.Paper, error)
	ListPapers(ctx context.Context, filter PaperListFilter) ([]entities.Paper, string, error)
	// ConsumeCapabilityAndCreatePaper must, in a single atomic transaction,
	// remove the owner's capability, allocate the paper identity when
	// paper.PaperID is empty (counter mode), persist the paper and append the
	// published outbox event. A duplicate paper identity fails with
	// ErrAlreadyPublished; a missing capability fails with
	// ErrCapabilityNotFound; on any failure nothing is written and the
	// capability stays intact.
	ConsumeCapabilityAndCreatePaper(
		ctx context.Context,
		owner string,
		paper entities.Paper,
		event PublishedEvent,
	) (entities.Paper, error)
}

// OutboxMessage is a pending event row awaiting relay to the bus.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error
}

// EventEnvelope reuses the canonical cross-runtime envelope contract.
type EventEnvelope = contractsv1.Envelope

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
