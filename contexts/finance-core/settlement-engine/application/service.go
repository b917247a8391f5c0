package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	domainerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
	"folio/contexts/finance-core/settlement-engine/domain/services"
	"folio/contexts/finance-core/settlement-engine/ports"
)

const (
	purchasedEventType    = "paper.purchased"
	royaltyEventType      = "royalty.distributed"
	intentEventType       = "settlement.intent"
	defaultFeeBps         = 1000
	defaultIdempotencyTTL = 7 * 24 * time.Hour
)

type Service struct {
	Papers          ports.PaperCatalog
	Ledger          ports.LedgerRepository
	Idempotency     ports.IdempotencyStore
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	PlatformAccount string
	FeeBps          uint32
	Mode            ports.SettlementMode
	IdempotencyTTL  time.Duration
	Logger          *slog.Logger
}

// Purchase settles one purchase of a published paper. The buyer is charged
// exactly the stored price; a tendered amount, when supplied, must equal it.
// Every transfer and every outbox event of the purchase commits in a single
// atomic repository transaction, so a failed purchase moves no funds and
// emits nothing.
func (s Service) Purchase(
	ctx context.Context,
	idempotencyKey string,
	input ports.PurchaseInput,
) (ports.Settlement, bool, error) {
	logger := resolveLogger(s.Logger)
	if strings.TrimSpace(idempotencyKey) == "" {
		return ports.Settlement{}, false, domainerrors.ErrIdempotencyKeyMissing
	}
	buyer := strings.TrimSpace(input.BuyerAccount)
	paperID := strings.TrimSpace(input.PaperID)
	if buyer == "" || paperID == "" {
		return ports.Settlement{}, false, domainerrors.ErrInvalidInput
	}

	now := s.now()
	requestHash := hashPurchase(buyer, paperID, input.TenderedAmount)

	record, found, err := s.Idempotency.GetRecord(ctx, strings.TrimSpace(idempotencyKey), now)
	if err != nil {
		return ports.Settlement{}, false, err
	}
	if found {
		if record.RequestHash != requestHash {
			return ports.Settlement{}, false, domainerrors.ErrIdempotencyConflict
		}
		var replayed ports.Settlement
		if err := json.Unmarshal(record.ResponsePayload, &replayed); err != nil {
			return ports.Settlement{}, false, err
		}
		return replayed, true, nil
	}

	paper, err := s.Papers.GetPaper(ctx, paperID)
	if err != nil {
		return ports.Settlement{}, false, err
	}
	if input.TenderedAmount != nil && *input.TenderedAmount != paper.Price {
		return ports.Settlement{}, false, domainerrors.ErrAmountMismatch
	}

	split, err := services.ComputeSplit(paper.Price, s.feeBps(), len(paper.Authors))
	if err != nil {
		return ports.Settlement{}, false, err
	}

	settlementID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.Settlement{}, false, err
	}
	settlement := ports.Settlement{
		SettlementID:    settlementID,
		PaperID:         paper.PaperID,
		BuyerAccount:    buyer,
		Amount:          split.Amount,
		PlatformFee:     split.PlatformFee,
		AuthorShare:     split.AuthorShare,
		PerAuthorAmount: split.PerAuthorAmount,
		PlatformTotal:   split.PlatformTotal,
		AuthorCount:     split.AuthorCount,
		Mode:            string(s.mode()),
		SettledAt:       now,
	}

	transfers := s.buildTransfers(buyer, paper, split)
	envelopes, err := s.buildEnvelopes(ctx, paper, settlement, split)
	if err != nil {
		return ports.Settlement{}, false, err
	}
	payload, err := json.Marshal(settlement)
	if err != nil {
		return ports.Settlement{}, false, err
	}
	record = ports.IdempotencyRecord{
		Key:             strings.TrimSpace(idempotencyKey),
		RequestHash:     requestHash,
		ResponsePayload: payload,
		ExpiresAt:       now.Add(s.idempotencyTTL()),
	}

	// The idempotency record commits with the transfers: a retry after a
	// crash either replays the stored settlement or settles fresh, never both.
	if err := s.Ledger.SettleWithOutbox(ctx, settlement, transfers, envelopes, record); err != nil {
		logger.Error("purchase failed on settle transaction",
			"event", "purchase_settle_failed",
			"module", "finance-core/settlement-engine",
			"layer", "application",
			"paper_id", paper.PaperID,
			"buyer_account", buyer,
			"error", err.Error(),
		)
		return ports.Settlement{}, false, err
	}

	logger.Info("purchase settled",
		"event", "purchase_settled",
		"module", "finance-core/settlement-engine",
		"layer", "application",
		"settlement_id", settlement.SettlementID,
		"paper_id", settlement.PaperID,
		"buyer_account", settlement.BuyerAccount,
		"amount", settlement.Amount,
		"platform_total", settlement.PlatformTotal,
		"per_author_amount", settlement.PerAuthorAmount,
		"author_count", settlement.AuthorCount,
		"mode", settlement.Mode,
	)
	return settlement, false, nil
}

func (s Service) GetSettlement(ctx context.Context, settlementID string) (ports.Settlement, error) {
	if strings.TrimSpace(settlementID) == "" {
		return ports.Settlement{}, domainerrors.ErrInvalidInput
	}
	return s.Ledger.GetSettlement(ctx, strings.TrimSpace(settlementID))
}

func (s Service) Deposit(ctx context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	if strings.TrimSpace(account) == "" || amount == 0 {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	return s.Ledger.Deposit(ctx, strings.TrimSpace(account), amount)
}

func (s Service) Withdraw(ctx context.Context, account string, amount uint64) (ports.AccountBalance, error) {
	if strings.TrimSpace(account) == "" || amount == 0 {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	return s.Ledger.Withdraw(ctx, strings.TrimSpace(account), amount)
}

func (s Service) Balance(ctx context.Context, account string) (ports.AccountBalance, error) {
	if strings.TrimSpace(account) == "" {
		return ports.AccountBalance{}, domainerrors.ErrInvalidInput
	}
	return s.Ledger.GetBalance(ctx, strings.TrimSpace(account))
}

func (s Service) buildTransfers(buyer string, paper ports.PaperView, split services.Split) []ports.Transfer {
	if s.mode() != ports.SettlementModeLedger {
		return nil
	}
	transfers := make([]ports.Transfer, 0, len(paper.Authors)+1)
	transfers = append(transfers, ports.Transfer{
		FromAccount: buyer,
		ToAccount:   s.platformAccount(),
		Amount:      split.PlatformTotal,
	})
	for _, author := range paper.Authors {
		transfers = append(transfers, ports.Transfer{
			FromAccount: buyer,
			ToAccount:   author,
			Amount:      split.PerAuthorAmount,
		})
	}
	return transfers
}

func (s Service) buildEnvelopes(
	ctx context.Context,
	paper ports.PaperView,
	settlement ports.Settlement,
	split services.Split,
) ([]ports.EventEnvelope, error) {
	envelopes := make([]ports.EventEnvelope, 0, len(paper.Authors)+3)

	purchased, err := s.newEnvelope(ctx, purchasedEventType, settlement.PaperID, map[string]any{
		"paper_id":      settlement.PaperID,
		"buyer_account": settlement.BuyerAccount,
		"amount":        settlement.Amount,
	})
	if err != nil {
		return nil, err
	}
	envelopes = append(envelopes, purchased)

	royalty, err := s.newEnvelope(ctx, royaltyEventType, settlement.PaperID, map[string]any{
		"paper_id":          settlement.PaperID,
		"buyer_account":     settlement.BuyerAccount,
		"amount":            settlement.Amount,
		"platform_fee":      split.PlatformFee,
		"author_share":      split.AuthorShare,
		"per_author_amount": split.PerAuthorAmount,
		"platform_total":    split.PlatformTotal,
		"author_count":      split.AuthorCount,
		"royalty_bps":       paper.RoyaltyBps,
	})
	if err != nil {
		return nil, err
	}
	envelopes = append(envelopes, royalty)

	if s.mode() == ports.SettlementModeIntents {
		intent, err := s.newEnvelope(ctx, intentEventType, settlement.PaperID, map[string]any{
			"recipient_account": s.platformAccount(),
			"amount":            split.PlatformTotal,
			"paper_id":          settlement.PaperID,
		})
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, intent)
		for _, author := range paper.Authors {
			intent, err := s.newEnvelope(ctx, intentEventType, settlement.PaperID, map[string]any{
				"recipient_account": author,
				"amount":            split.PerAuthorAmount,
				"paper_id":          settlement.PaperID,
			})
			if err != nil {
				return nil, err
			}
			envelopes = append(envelopes, intent)
		}
	}
	return envelopes, nil
}

func (s Service) newEnvelope(
	ctx context.Context,
	eventType string,
	paperID string,
	data map[string]any,
) (ports.EventEnvelope, error) {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       s.now(),
		SourceService:    "settlement-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "paper_id",
		PartitionKey:     paperID,
		Data:             raw,
	}, nil
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) feeBps() uint32 {
	if s.FeeBps == 0 || s.FeeBps > services.BpsDenominator {
		return defaultFeeBps
	}
	return s.FeeBps
}

func (s Service) mode() ports.SettlementMode {
	if s.Mode == ports.SettlementModeIntents {
		return ports.SettlementModeIntents
	}
	return ports.SettlementModeLedger
}

func (s Service) platformAccount() string {
	if strings.TrimSpace(s.PlatformAccount) == "" {
		return "platform"
	}
	return s.PlatformAccount
}

func (s Service) idempotencyTTL() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return defaultIdempotencyTTL
	}
	return s.IdempotencyTTL
}

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// hashPurchase fingerprints the request fields for idempotency-conflict
// detection. Fields are length-prefixed so values containing a separator
// cannot collide across field boundaries.
func hashPurchase(buyer string, paperID string, tendered *uint64) string {
	amount := "price"
	if tendered != nil {
		amount = strconv.FormatUint(*tendered, 10)
	}
	digest := sha256.New()
	for _, field := range []string{buyer, paperID, amount} {
		fmt.Fprintf(digest, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(digest.Sum(nil))
}
