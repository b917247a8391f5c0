package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// Store is the in-memory adapter implementing every registry port. The whole
// store shares one mutex, so each mutating operation is a single critical
// section, matching the serial execution model of the registry.
type Store struct {
	mu sync.Mutex

	authority    *entities.Authority
	capabilities map[string]entities.Capability
	papers       map[string]entities.Paper
	paperOrder   []string
	counter      int64
	outbox       map[string]outboxRecord
}

type outboxRecord struct {
	Message ports.OutboxMessage
	Status  string
	SentAt  *time.Time
}

func NewStore() *Store {
	return &Store{
		capabilities: make(map[string]entities.Capability),
		papers:       make(map[string]entities.Paper),
		outbox:       make(map[string]outboxRecord),
	}
}

func (s *Store) InitAuthority(_ context.Context, authority entities.Authority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authority != nil {
		return domainerrors.ErrAlreadyInitialized
	}
	stored := authority
	stored.PublicKey = append([]byte(nil), authority.PublicKey...)
	s.authority = &stored
	return nil
}

func (s *Store) GetAuthority(_ context.Context) (entities.Authority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authority == nil {
		return entities.Authority{}, domainerrors.ErrAuthorityNotInitialized
	}
	return *s.authority, nil
}

func (s *Store) CreateCapability(_ context.Context, capability entities.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := strings.TrimSpace(capability.OwnerAccount)
	if owner == "" {
		return domainerrors.ErrInvalidRequest
	}
	if _, exists := s.capabilities[owner]; exists {
		return domainerrors.ErrCapabilityPending
	}
	s.capabilities[owner] = capability
	return nil
}

func (s *Store) GetCapabilityByOwner(_ context.Context, owner string) (entities.Capability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capability, ok := s.capabilities[strings.TrimSpace(owner)]
	if !ok {
		return entities.Capability{}, domainerrors.ErrCapabilityNotFound
	}
	return capability, nil
}

func (s *Store) GetPaper(_ context.Context, paperID string) (entities.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paper, ok := s.papers[strings.TrimSpace(paperID)]
	if !ok {
		return entities.Paper{}, domainerrors.ErrPaperNotFound
	}
	return paper, nil
}

func (s *Store) ListPapers(_ context.Context, filter ports.PaperListFilter) ([]entities.Paper, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	items := make([]entities.Paper, 0, len(s.paperOrder))
	for _, id := range s.paperOrder {
		paper := s.papers[id]
		if filter.Author != "" && !hasAuthor(paper, filter.Author) {
			continue
		}
		items = append(items, paper)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.Before(items[j].PublishedAt)
	})

	offset := decodeCursor(filter.Cursor)
	if offset >= len(items) {
		return []entities.Paper{}, "", nil
	}
	end := offset + limit
	nextCursor := ""
	if end < len(items) {
		nextCursor = encodeCursor(end)
	} else {
		end = len(items)
	}
	return append([]entities.Paper(nil), items[offset:end]...), nextCursor, nil
}

func (s *Store) ConsumeCapabilityAndCreatePaper(
	_ context.Context,
	owner string,
	paper entities.Paper,
	event ports.PublishedEvent,
) (entities.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner = strings.TrimSpace(owner)
	if _, ok := s.capabilities[owner]; !ok {
		return entities.Paper{}, domainerrors.ErrCapabilityNotFound
	}

	if paper.PaperID == "" {
		s.counter++
		paper.PaperID = strconv.FormatInt(s.counter, 10)
	} else if _, exists := s.papers[paper.PaperID]; exists {
		return entities.Paper{}, domainerrors.ErrAlreadyPublished
	}

	if event.PaperID == "" {
		event.PaperID = paper.PaperID
		event.PartitionKey = paper.PaperID
	}
	payload, err := json.Marshal(buildPublishedEnvelope(event))
	if err != nil {
		return entities.Paper{}, err
	}

	delete(s.capabilities, owner)
	s.papers[paper.PaperID] = paper
	s.paperOrder = append(s.paperOrder, paper.PaperID)
	s.outbox[event.EventID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			CreatedAt:    event.OccurredAt.UTC(),
		},
		Status: outboxStatusPending,
	}
	return paper, nil
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

func hasAuthor(paper entities.Paper, author string) bool {
	for _, candidate := range paper.Authors {
		if candidate == author {
			return true
		}
	}
	return false
}

func encodeCursor(offset int) string {
	return strconv.Itoa(offset)
}

func decodeCursor(cursor string) int {
	offset, err := strconv.Atoi(strings.TrimSpace(cursor))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
