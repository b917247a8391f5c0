package ports

import (
	"context"
	"time"

	contractsv1 "folio/contracts/events/v1"
)

// SettlementMode selects how value moves for a purchase.
type SettlementMode string

const (
	// SettlementModeLedger moves balances on the internal ledger.
	SettlementModeLedger SettlementMode = "ledger"
	// SettlementModeIntents emits one settlement intent per payee and moves
	// no balances; an off-system rail performs the transfers.
	SettlementModeIntents SettlementMode = "intents"
)

// PaperView is the read-only projection of a published paper that settlement
// needs. Paper rows are owned by the registry service.
type PaperView struct {
	PaperID    string
	Authors    []string
	Price      uint64
	RoyaltyBps *uint32
}

type PaperCatalog interface {
	GetPaper(ctx context.Context, paperID string) (PaperView, error)
}

type PurchaseInput struct {
	BuyerAccount   string
	PaperID        string
	TenderedAmount *uint64 // optional; must equal the stored price when set
}

// Settlement is the committed outcome of one purchase.
type Settlement struct {
	SettlementID    string
	PaperID         string
	BuyerAccount    string
	Amount          uint64
	PlatformFee     uint64
	AuthorShare     uint64
	PerAuthorAmount uint64
	PlatformTotal   uint64
	AuthorCount     int
	Mode            string
	SettledAt       time.Time
}

// Transfer is a single ledger movement inside a settlement.
type Transfer struct {
	FromAccount string
	ToAccount   string
	Amount      uint64
}

type AccountBalance struct {
	Account string
	Balance uint64
}

// LedgerRepository owns account balances and the settlement transaction
// boundary.
type LedgerRepository interface {
	// SettleWithOutbox must atomically persist the settlement, apply every
	// transfer, append the outbox envelopes and store the idempotency record.
	// When any transfer cannot be completed (insufficient buyer balance) the
	// whole call fails with ErrInsufficientFunds and nothing is written. A
	// concurrent settle that already stored the same idempotency key fails
	// with ErrIdempotencyConflict, again writing nothing.
	SettleWithOutbox(ctx context.Context, settlement Settlement, transfers []Transfer, envelopes []EventEnvelope, record IdempotencyRecord) error
	GetSettlement(ctx context.Context, settlementID string) (Settlement, error)
	Deposit(ctx context.Context, account string, amount uint64) (AccountBalance, error)
	Withdraw(ctx context.Context, account string, amount uint64) (AccountBalance, error)
	GetBalance(ctx context.Context, account string) (AccountBalance, error)
}

// IdempotencyRecord captures dedupe metadata for purchase requests.
type IdempotencyRecord struct {
	Key             string
	RequestHash     string
	ResponsePayload []byte
	ExpiresAt       time.Time
}

// IdempotencyStore is the read side of purchase dedupe; the matching record
// is written by SettleWithOutbox inside the settlement transaction.
type IdempotencyStore interface {
	GetRecord(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
}

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

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, EventEnvelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
