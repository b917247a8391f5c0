package postgresadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	contractsv1 "folio/contracts/events/v1"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"

	authorityRowID = "authority"
	paperCounterID = "papers"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) InitAuthority(ctx context.Context, authority entities.Authority) error {
	row := authorityModel{
		AuthorityID:   authorityRowID,
		AdminAccount:  authority.AdminAccount,
		PublicKey:     authority.EncodedKey,
		InitializedAt: authority.InitializedAt.UTC(),
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "authority_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrAlreadyInitialized
	}
	return nil
}

func (r *Repository) GetAuthority(ctx context.Context) (entities.Authority, error) {
	var row authorityModel
	err := r.db.WithContext(ctx).
		Where("authority_id = ?", authorityRowID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Authority{}, domainerrors.ErrAuthorityNotInitialized
		}
		return entities.Authority{}, err
	}
	return row.toEntity()
}

func (r *Repository) CreateCapability(ctx context.Context, capability entities.Capability) error {
	row := capabilityModelFromEntity(capability)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_account"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrCapabilityPending
	}
	return nil
}

func (r *Repository) GetCapabilityByOwner(ctx context.Context, owner string) (entities.Capability, error) {
	var row capabilityModel
	err := r.db.WithContext(ctx).
		Where("owner_account = ?", strings.TrimSpace(owner)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Capability{}, domainerrors.ErrCapabilityNotFound
		}
		return entities.Capability{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) GetPaper(ctx context.Context, paperID string) (entities.Paper, error) {
	var row paperModel
	err := r.db.WithContext(ctx).
		Where("paper_id = ?", strings.TrimSpace(paperID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Paper{}, domainerrors.ErrPaperNotFound
		}
		return entities.Paper{}, err
	}
	return row.toEntity()
}

func (r *Repository) ListPapers(ctx context.Context, filter ports.PaperListFilter) ([]entities.Paper, string, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	tx := r.db.WithContext(ctx).Model(&paperModel{})
	if filter.Author != "" {
		tx = tx.Where("authors LIKE ?", "%"+escapeLike(filter.Author)+"%")
	}
	tx = tx.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "published_at"}, Desc: false}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "paper_id"}, Desc: false})

	offset := decodeCursor(filter.Cursor)
	var rows []paperModel
	if err := tx.Offset(offset).Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = encodeCursor(offset + limit)
		rows = rows[:limit]
	}

	items := make([]entities.Paper, 0, len(rows))
	for _, row := range rows {
		paper, err := row.toEntity()
		if err != nil {
			return nil, "", err
		}
		// LIKE over the JSON column is a prefilter; authors are matched
		// exactly after decoding.
		if filter.Author != "" && !hasAuthor(paper, filter.Author) {
			continue
		}
		items = append(items, paper)
	}
	return items, nextCursor, nil
}

func (r *Repository) ConsumeCapabilityAndCreatePaper(
	ctx context.Context,
	owner string,
	paper entities.Paper,
	event ports.PublishedEvent,
) (entities.Paper, error) {
	owner = strings.TrimSpace(owner)
	stored := paper

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded delete is the atomic consume: zero rows means another
		// publish already burned the capability.
		del := tx.Where("owner_account = ?", owner).Delete(&capabilityModel{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			return domainerrors.ErrCapabilityNotFound
		}

		if stored.PaperID == "" {
			next, err := nextPaperID(tx)
			if err != nil {
				return err
			}
			stored.PaperID = next
		}

		row, err := paperModelFromEntity(stored)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyPublished
			}
			return err
		}

		if event.PaperID == "" {
			event.PaperID = stored.PaperID
			event.PartitionKey = stored.PaperID
		}
		payload, err := json.Marshal(buildPublishedEnvelope(event))
		if err != nil {
			return err
		}
		outboxRow := outboxModel{
			OutboxID:     event.EventID,
			EventType:    event.EventType,
			PartitionKey: event.PartitionKey,
			Payload:      payload,
			Status:       outboxStatusPending,
			CreatedAt:    event.OccurredAt.UTC(),
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}
		return nil
	})
	if err != nil {
		return entities.Paper{}, err
	}
	return stored, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

func (r *Repository) MarkOutboxSent(ctx context.Context, outboxID string, sentAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Updates(map[string]any{
			"status":  outboxStatusSent,
			"sent_at": sentAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrRepositoryInvariantBroke
	}
	return nil
}

func nextPaperID(tx *gorm.DB) (string, error) {
	var counter registryCounterModel
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("counter_id = ?", paperCounterID).
		First(&counter).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = registryCounterModel{CounterID: paperCounterID}
		if err := tx.Create(&counter).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	counter.Value++
	if err := tx.
		Model(&registryCounterModel{}).
		Where("counter_id = ?", paperCounterID).
		Update("value", counter.Value).
		Error; err != nil {
		return "", err
	}
	return strconv.FormatInt(counter.Value, 10), nil
}

type authorityModel struct {
	AuthorityID   string    `gorm:"column:authority_id;primaryKey"`
	AdminAccount  string    `gorm:"column:admin_account"`
	PublicKey     string    `gorm:"column:public_key"`
	InitializedAt time.Time `gorm:"column:initialized_at"`
}

func (authorityModel) TableName() string {
	return "registry_authority"
}

func (m authorityModel) toEntity() (entities.Authority, error) {
	raw, err := decodeAuthorityKey(m.PublicKey)
	if err != nil {
		return entities.Authority{}, err
	}
	return entities.Authority{
		AdminAccount:  m.AdminAccount,
		PublicKey:     raw,
		EncodedKey:    m.PublicKey,
		InitializedAt: m.InitializedAt.UTC(),
	}, nil
}

type capabilityModel struct {
	OwnerAccount  string    `gorm:"column:owner_account;primaryKey"`
	ContentDigest []byte    `gorm:"column:content_digest"`
	ContentUID    string    `gorm:"column:content_uid"`
	Price         int64     `gorm:"column:price"`
	RoyaltyBps    *int32    `gorm:"column:royalty_bps"`
	ExpiresAt     time.Time `gorm:"column:expires_at"`
	MintedAt      time.Time `gorm:"column:minted_at"`
}

func (capabilityModel) TableName() string {
	return "publish_capabilities"
}

func capabilityModelFromEntity(capability entities.Capability) capabilityModel {
	return capabilityModel{
		OwnerAccount:  capability.OwnerAccount,
		ContentDigest: append([]byte(nil), capability.ContentDigest...),
		ContentUID:    capability.ContentUID,
		Price:         int64(capability.Price),
		RoyaltyBps:    bpsToColumn(capability.RoyaltyBps),
		ExpiresAt:     capability.ExpiresAt.UTC(),
		MintedAt:      capability.MintedAt.UTC(),
	}
}

func (m capabilityModel) toEntity() entities.Capability {
	return entities.Capability{
		OwnerAccount:  m.OwnerAccount,
		ContentDigest: append([]byte(nil), m.ContentDigest...),
		ContentUID:    m.ContentUID,
		Price:         uint64(m.Price),
		RoyaltyBps:    bpsFromColumn(m.RoyaltyBps),
		ExpiresAt:     m.ExpiresAt.UTC(),
		MintedAt:      m.MintedAt.UTC(),
	}
}

type paperModel struct {
	PaperID       string    `gorm:"column:paper_id;primaryKey"`
	ContentDigest []byte    `gorm:"column:content_digest"`
	ContentUID    string    `gorm:"column:content_uid"`
	Authors       string    `gorm:"column:authors"`
	Price         int64     `gorm:"column:price"`
	RoyaltyBps    *int32    `gorm:"column:royalty_bps"`
	CitedPapers   string    `gorm:"column:cited_papers"`
	PublishedAt   time.Time `gorm:"column:published_at"`
}

func (paperModel) TableName() string {
	return "papers"
}

func paperModelFromEntity(paper entities.Paper) (paperModel, error) {
	authors, err := json.Marshal(paper.Authors)
	if err != nil {
		return paperModel{}, err
	}
	cited, err := json.Marshal(paper.CitedPapers)
	if err != nil {
		return paperModel{}, err
	}
	return paperModel{
		PaperID:       paper.PaperID,
		ContentDigest: append([]byte(nil), paper.ContentDigest...),
		ContentUID:    paper.ContentUID,
		Authors:       string(authors),
		Price:         int64(paper.Price),
		RoyaltyBps:    bpsToColumn(paper.RoyaltyBps),
		CitedPapers:   string(cited),
		PublishedAt:   paper.PublishedAt.UTC(),
	}, nil
}

func (m paperModel) toEntity() (entities.Paper, error) {
	var authors []string
	if err := json.Unmarshal([]byte(m.Authors), &authors); err != nil {
		return entities.Paper{}, err
	}
	var cited []string
	if m.CitedPapers != "" {
		if err := json.Unmarshal([]byte(m.CitedPapers), &cited); err != nil {
			return entities.Paper{}, err
		}
	}
	return entities.Paper{
		PaperID:       m.PaperID,
		ContentDigest: append([]byte(nil), m.ContentDigest...),
		ContentUID:    m.ContentUID,
		Authors:       authors,
		Price:         uint64(m.Price),
		RoyaltyBps:    bpsFromColumn(m.RoyaltyBps),
		CitedPapers:   cited,
		PublishedAt:   m.PublishedAt.UTC(),
	}, nil
}

type registryCounterModel struct {
	CounterID string `gorm:"column:counter_id;primaryKey"`
	Value     int64  `gorm:"column:value"`
}

func (registryCounterModel) TableName() string {
	return "registry_counters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	SentAt       *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string {
	return "registry_outbox"
}

func (m outboxModel) toPort() ports.OutboxMessage {
	return ports.OutboxMessage{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      append([]byte(nil), m.Payload...),
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func buildPublishedEnvelope(event ports.PublishedEvent) contractsv1.Envelope {
	data, _ := json.Marshal(map[string]any{
		"paper_id": event.PaperID,
		"authors":  event.Authors,
		"price":    event.Price,
	})
	return contractsv1.Envelope{
		EventID:          event.EventID,
		EventType:        event.EventType,
		OccurredAt:       event.OccurredAt.UTC(),
		SourceService:    "registry-service",
		TraceID:          event.EventID,
		SchemaVersion:    1,
		PartitionKeyPath: "paper_id",
		PartitionKey:     event.PartitionKey,
		Data:             data,
	}
}

func bpsToColumn(bps *uint32) *int32 {
	if bps == nil {
		return nil
	}
	value := int32(*bps)
	return &value
}

func bpsFromColumn(column *int32) *uint32 {
	if column == nil {
		return nil
	}
	value := uint32(*column)
	return &value
}

func hasAuthor(paper entities.Paper, author string) bool {
	for _, candidate := range paper.Authors {
		if candidate == author {
			return true
		}
	}
	return false
}

func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, "%", `\%`)
	return strings.ReplaceAll(value, "_", `\_`)
}

func decodeAuthorityKey(encoded string) ([]byte, error) {
	const prefix = "ed25519:"
	if !strings.HasPrefix(encoded, prefix) {
		return nil, domainerrors.ErrInvalidAuthorityKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, prefix))
	if err != nil {
		return nil, domainerrors.ErrInvalidAuthorityKey
	}
	return raw, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func decodeCursor(cursor string) int {
	if strings.TrimSpace(cursor) == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	index, err := strconv.Atoi(string(raw))
	if err != nil || index < 0 {
		return 0
	}
	return index
}

func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}
