package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
	"folio/contexts/finance-core/settlement-engine/ports"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
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

// GetPaper reads the papers projection owned by the registry service. The
// settlement engine never writes this table.
func (r *Repository) GetPaper(ctx context.Context, paperID string) (ports.PaperView, error) {
	var row paperViewModel
	err := r.db.WithContext(ctx).
		Where("paper_id = ?", strings.TrimSpace(paperID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.PaperView{}, domainerrors.ErrPaperNotFound
		}
		return ports.PaperView{}, err
	}
	return row.toView()
}

func (r *Repository) SettleWithOutbox(
	ctx context.Context,
	settlement ports.Settlement,
	transfers []ports.Transfer,
	envelopes []ports.EventEnvelope,
	record ports.IdempotencyRecord,
) error {
	idempotencyRow := idempotencyModel{
		IdempotencyKey:  strings.TrimSpace(record.Key),
		RequestHash:     record.RequestHash,
		ResponsePayload: append([]byte(nil), record.ResponsePayload...),
		ExpiresAt:       record.ExpiresAt.UTC(),
	}
	if idempotencyRow.IdempotencyKey == "" {
		return domainerrors.ErrInvalidInput
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The key insert goes first so a concurrent settle with the same key
		// aborts before any balance moves.
		if err := tx.Create(&idempotencyRow).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrIdempotencyConflict
			}
			return err
		}

		for _, transfer := range transfers {
			if err := applyDebit(tx, transfer.FromAccount, transfer.Amount); err != nil {
				return err
			}
			if err := applyCredit(tx, transfer.ToAccount, transfer.Amount); err != nil {
				return err
			}
		}

		row := settlementModelFromPort(settlement)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrRepositoryInvariantBroke
			}
			return err
		}

		for _, envelope := range envelopes {
			payload, err := json.Marshal(envelope)
			if err != nil {
				return err
			}
			outboxRow := outboxModel{
				OutboxID:     envelope.EventID,
				EventType:    envelope.EventType,
				PartitionKey: envelope.PartitionKey,
				Payload:      payload,
				Status:       outboxStatusPending,
				CreatedAt:    envelope.OccurredAt.UTC(),
			}
			if err := tx.Create(&outboxRow).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrRepositoryInvariantBroke
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetSettlement(ctx context.Context, settlementID string) (ports.Settlement, error) {
	var row settlementModel
	err := r.db.WithContext(ctx).
		Where("settlement_id = ?", strings.TrimSpace(settlementID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Settlement{}, domainerrors.ErrSettlementNotFound
		}
		return ports.Settlement{}, err
	}
	return row.toPort(), nil
}

func (r *Repository) Deposit(ctx context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyCredit(tx, account, amount)
	})
	if err != nil {
		return ports.AccountBalance{}, err
	}
	return r.GetBalance(ctx, account)
}

func (r *Repository) Withdraw(ctx context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyDebit(tx, account, amount)
	})
	if err != nil {
		return ports.AccountBalance{}, err
	}
	return r.GetBalance(ctx, account)
}

func (r *Repository) GetBalance(ctx context.Context, account string) (ports.AccountBalance, error) {
	var row ledgerAccountModel
	err := r.db.WithContext(ctx).
		Where("account = ?", strings.TrimSpace(account)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.AccountBalance{}, domainerrors.ErrAccountNotFound
		}
		return ports.AccountBalance{}, err
	}
	return ports.AccountBalance{Account: row.Account, Balance: uint64(row.Balance)}, nil
}

func (r *Repository) GetRecord(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, err
	}
	if !row.ExpiresAt.After(now.UTC()) {
		return ports.IdempotencyRecord{}, false, nil
	}
	return row.toPort(), true, nil
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

// applyDebit is the conditional update that makes overdraft impossible: zero
// rows affected means the account is missing or short.
func applyDebit(tx *gorm.DB, account string, amount uint64) error {
	result := tx.
		Model(&ledgerAccountModel{}).
		Where("account = ? AND balance >= ?", account, int64(amount)).
		Update("balance", gorm.Expr("balance - ?", int64(amount)))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInsufficientFunds
	}
	return nil
}

func applyCredit(tx *gorm.DB, account string, amount uint64) error {
	row := ledgerAccountModel{
		Account: account,
		Balance: int64(amount),
	}
	return tx.
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance": gorm.Expr("ledger_accounts.balance + excluded.balance"),
			}),
		}).
		Create(&row).
		Error
}

type ledgerAccountModel struct {
	Account string `gorm:"column:account;primaryKey"`
	Balance int64  `gorm:"column:balance"`
}

func (ledgerAccountModel) TableName() string {
	return "ledger_accounts"
}

type settlementModel struct {
	SettlementID    string    `gorm:"column:settlement_id;primaryKey"`
	PaperID         string    `gorm:"column:paper_id"`
	BuyerAccount    string    `gorm:"column:buyer_account"`
	Amount          int64     `gorm:"column:amount"`
	PlatformFee     int64     `gorm:"column:platform_fee"`
	AuthorShare     int64     `gorm:"column:author_share"`
	PerAuthorAmount int64     `gorm:"column:per_author_amount"`
	PlatformTotal   int64     `gorm:"column:platform_total"`
	AuthorCount     int       `gorm:"column:author_count"`
	Mode            string    `gorm:"column:mode"`
	SettledAt       time.Time `gorm:"column:settled_at"`
}

func (settlementModel) TableName() string {
	return "settlements"
}

func settlementModelFromPort(settlement ports.Settlement) settlementModel {
	return settlementModel{
		SettlementID:    settlement.SettlementID,
		PaperID:         settlement.PaperID,
		BuyerAccount:    settlement.BuyerAccount,
		Amount:          int64(settlement.Amount),
		PlatformFee:     int64(settlement.PlatformFee),
		AuthorShare:     int64(settlement.AuthorShare),
		PerAuthorAmount: int64(settlement.PerAuthorAmount),
		PlatformTotal:   int64(settlement.PlatformTotal),
		AuthorCount:     settlement.AuthorCount,
		Mode:            settlement.Mode,
		SettledAt:       settlement.SettledAt.UTC(),
	}
}

func (m settlementModel) toPort() ports.Settlement {
	return ports.Settlement{
		SettlementID:    m.SettlementID,
		PaperID:         m.PaperID,
		BuyerAccount:    m.BuyerAccount,
		Amount:          uint64(m.Amount),
		PlatformFee:     uint64(m.PlatformFee),
		AuthorShare:     uint64(m.AuthorShare),
		PerAuthorAmount: uint64(m.PerAuthorAmount),
		PlatformTotal:   uint64(m.PlatformTotal),
		AuthorCount:     m.AuthorCount,
		Mode:            m.Mode,
		SettledAt:       m.SettledAt.UTC(),
	}
}

type idempotencyModel struct {
	IdempotencyKey  string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash     string    `gorm:"column:request_hash"`
	ResponsePayload []byte    `gorm:"column:response_payload"`
	ExpiresAt       time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "settlement_idempotency"
}

func (m idempotencyModel) toPort() ports.IdempotencyRecord {
	return ports.IdempotencyRecord{
		Key:             m.IdempotencyKey,
		RequestHash:     m.RequestHash,
		ResponsePayload: append([]byte(nil), m.ResponsePayload...),
		ExpiresAt:       m.ExpiresAt.UTC(),
	}
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
	return "settlement_outbox"
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

// paperViewModel maps the registry-owned papers table for read-only lookups.
type paperViewModel struct {
	PaperID    string `gorm:"column:paper_id;primaryKey"`
	Authors    string `gorm:"column:authors"`
	Price      int64  `gorm:"column:price"`
	RoyaltyBps *int32 `gorm:"column:royalty_bps"`
}

func (paperViewModel) TableName() string {
	return "papers"
}

func (m paperViewModel) toView() (ports.PaperView, error) {
	var authors []string
	if err := json.Unmarshal([]byte(m.Authors), &authors); err != nil {
		return ports.PaperView{}, err
	}
	view := ports.PaperView{
		PaperID: m.PaperID,
		Authors: authors,
		Price:   uint64(m.Price),
	}
	if m.RoyaltyBps != nil {
		value := uint32(*m.RoyaltyBps)
		view.RoyaltyBps = &value
	}
	return view, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
