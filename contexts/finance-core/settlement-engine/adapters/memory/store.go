package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domainerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
	"folio/contexts/finance-core/settlement-engine/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// Store is the in-memory adapter implementing every settlement port plus the
// paper catalog (seeded by tests or by the registry wiring). One mutex makes
// each settlement a single critical section: a purchase either applies every
// transfer and outbox row or none of them.
type Store struct {
	mu sync.Mutex

	papers      map[string]ports.PaperView
	balances    map[string]uint64
	settlements map[string]ports.Settlement
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
}

type outboxRecord struct {
	Message ports.OutboxMessage
	Status  string
	SentAt  *time.Time
}

func NewStore() *Store {
	return &Store{
		papers:      make(map[string]ports.PaperView),
		balances:    make(map[string]uint64),
		settlements: make(map[string]ports.Settlement),
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
	}
}

// SeedPaper installs a paper projection for purchase tests and in-memory
// wiring.
func (s *Store) SeedPaper(paper ports.PaperView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers[paper.PaperID] = paper
}

func (s *Store) GetPaper(_ context.Context, paperID string) (ports.PaperView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paper, ok := s.papers[strings.TrimSpace(paperID)]
	if !ok {
		return ports.PaperView{}, domainerrors.ErrPaperNotFound
	}
	return paper, nil
}

func (s *Store) SettleWithOutbox(
	_ context.Context,
	settlement ports.Settlement,
	transfers []ports.Transfer,
	envelopes []ports.EventEnvelope,
	record ports.IdempotencyRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if settlement.SettlementID == "" || strings.TrimSpace(record.Key) == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.settlements[settlement.SettlementID]; exists {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	if _, exists := s.idempotency[strings.TrimSpace(record.Key)]; exists {
		return domainerrors.ErrIdempotencyConflict
	}

	// Validate the full debit before touching any balance.
	debits := make(map[string]uint64)
	for _, transfer := range transfers {
		debits[transfer.FromAccount] += transfer.Amount
	}
	for account, total := range debits {
		if s.balances[account] < total {
			return domainerrors.ErrInsufficientFunds
		}
	}

	for _, transfer := range transfers {
		s.balances[transfer.FromAccount] -= transfer.Amount
		s.balances[transfer.ToAccount] += transfer.Amount
	}
	s.settlements[settlement.SettlementID] = settlement
	s.idempotency[strings.TrimSpace(record.Key)] = record
	for _, envelope := range envelopes {
		payload, err := json.Marshal(envelope)
		if err != nil {
			return err
		}
		s.outbox[envelope.EventID] = outboxRecord{
			Message: ports.OutboxMessage{
				OutboxID:     envelope.EventID,
				EventType:    envelope.EventType,
				PartitionKey: envelope.PartitionKey,
				Payload:      payload,
				CreatedAt:    envelope.OccurredAt.UTC(),
			},
			Status: outboxStatusPending,
		}
	}
	return nil
}

func (s *Store) GetSettlement(_ context.Context, settlementID string) (ports.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settlement, ok := s.settlements[strings.TrimSpace(settlementID)]
	if !ok {
		return ports.Settlement{}, domainerrors.ErrSettlementNotFound
	}
	return settlement, nil
}

func (s *Store) Deposit(_ context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account = strings.TrimSpace(account)
	if account == "" {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	s.balances[account] += amount
	return ports.AccountBalance{Account: account, Balance: s.balances[account]}, nil
}

func (s *Store) Withdraw(_ context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account = strings.TrimSpace(account)
	if account == "" {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	if s.balances[account] < amount {
		return ports.AccountBalance{}, domainerrors.ErrInsufficientFunds
	}
	s.balances[account] -= amount
	return ports.AccountBalance{Account: account, Balance: s.balances[account]}, nil
}

func (s *Store) GetBalance(_ context.Context, account string) (ports.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account = strings.TrimSpace(account)
	balance, ok := s.balances[account]
	if !ok {
		return ports.AccountBalance{}, domainerrors.ErrAccountNotFound
	}
	return ports.AccountBalance{Account: account, Balance: balance}, nil
}

func (s *Store) GetRecord(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[strings.TrimSpace(key)]
	if !ok {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, strings.TrimSpace(key))
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxSent(_ context.Context, outboxID string, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	ts := sentAt.UTC()
	row.Status = outboxStatusSent
	row.SentAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
