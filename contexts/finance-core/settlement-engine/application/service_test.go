package application_test

import (
	"context"
	"errors"
	"testing"

	"folio/contexts/finance-core/settlement-engine/adapters/memory"
	"folio/contexts/finance-core/settlement-engine/application"
	domainerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
	"folio/contexts/finance-core/settlement-engine/ports"
)

func newService(store *memory.Store, mode ports.SettlementMode) application.Service {
	return application.Service{
		Papers:          store,
		Ledger:          store,
		Idempotency:     store,
		Clock:           store,
		IDGen:           store,
		PlatformAccount: "platform",
		FeeBps:          1000,
		Mode:            mode,
	}
}

func seedThreeAuthorPaper(store *memory.Store) {
	store.SeedPaper(ports.PaperView{
		PaperID: "paper-1",
		Authors: []string{"ann", "ben", "cat"},
		Price:   1000,
	})
}

func mustBalance(t *testing.T, store *memory.Store, account string) uint64 {
	t.Helper()
	balance, err := store.GetBalance(context.Background(), account)
	if err != nil {
		t.Fatalf("balance of %s: %v", account, err)
	}
	return balance.Balance
}

func TestPurchaseLedgerModeMovesExactSplit(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 1500); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	settlement, replayed, err := service.Purchase(ctx, "idem-1", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if replayed {
		t.Fatalf("fresh purchase must not be a replay")
	}
	if settlement.Amount != 1000 || settlement.PlatformTotal != 100 || settlement.PerAuthorAmount != 300 {
		t.Fatalf("unexpected split: %+v", settlement)
	}

	if got := mustBalance(t, store, "buyer"); got != 500 {
		t.Fatalf("buyer balance = %d, want 500", got)
	}
	if got := mustBalance(t, store, "platform"); got != 100 {
		t.Fatalf("platform balance = %d, want 100", got)
	}
	for _, author := range []string{"ann", "ben", "cat"} {
		if got := mustBalance(t, store, author); got != 300 {
			t.Fatalf("%s balance = %d, want 300", author, got)
		}
	}

	outbox, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	types := make(map[string]int)
	for _, message := range outbox {
		types[message.EventType]++
	}
	if types["paper.purchased"] != 1 || types["royalty.distributed"] != 1 {
		t.Fatalf("unexpected outbox event types: %v", types)
	}
	if types["settlement.intent"] != 0 {
		t.Fatalf("ledger mode must not emit settlement intents: %v", types)
	}
}

func TestPurchaseChargesExactlyTheStoredPrice(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 5000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	over := uint64(1500)
	_, _, err := service.Purchase(ctx, "idem-over", ports.PurchaseInput{
		BuyerAccount:   "buyer",
		PaperID:        "paper-1",
		TenderedAmount: &over,
	})
	if !errors.Is(err, domainerrors.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch for overpayment, got %v", err)
	}
	if got := mustBalance(t, store, "buyer"); got != 5000 {
		t.Fatalf("failed purchase must not move funds, buyer = %d", got)
	}

	exact := uint64(1000)
	settlement, _, err := service.Purchase(ctx, "idem-exact", ports.PurchaseInput{
		BuyerAccount:   "buyer",
		PaperID:        "paper-1",
		TenderedAmount: &exact,
	})
	if err != nil {
		t.Fatalf("exact-amount purchase failed: %v", err)
	}
	if settlement.Amount != 1000 {
		t.Fatalf("charged %d, want 1000", settlement.Amount)
	}
}

func TestPurchaseInsufficientFundsIsAtomic(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 999); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	_, _, err := service.Purchase(ctx, "idem-short", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := mustBalance(t, store, "buyer"); got != 999 {
		t.Fatalf("buyer balance = %d, want untouched 999", got)
	}
	if _, err := store.GetBalance(ctx, "ann"); !errors.Is(err, domainerrors.ErrAccountNotFound) {
		t.Fatalf("no author account may be credited, got %v", err)
	}
	outbox, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(outbox) != 0 {
		t.Fatalf("failed purchase must emit nothing, got %d events", len(outbox))
	}
}

func TestPurchaseIdempotentReplayDoesNotDoubleCharge(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 2000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	first, _, err := service.Purchase(ctx, "idem-same", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	second, replayed, err := service.Purchase(ctx, "idem-same", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("replayed purchase failed: %v", err)
	}
	if !replayed {
		t.Fatalf("second call with same key must be a replay")
	}
	if first.SettlementID != second.SettlementID {
		t.Fatalf("replay returned different settlement: %s vs %s", first.SettlementID, second.SettlementID)
	}
	if got := mustBalance(t, store, "buyer"); got != 1000 {
		t.Fatalf("buyer charged twice: balance = %d, want 1000", got)
	}
}

func TestPurchaseIdempotencyKeyReuseWithDifferentRequestConflicts(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	store.SeedPaper(ports.PaperView{PaperID: "paper-2", Authors: []string{"dee"}, Price: 500})
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 5000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if _, _, err := service.Purchase(ctx, "idem-reuse", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	}); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	_, _, err := service.Purchase(ctx, "idem-reuse", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-2",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestPurchaseFailedSettleLeavesKeyReusable(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	_, _, err := service.Purchase(ctx, "idem-retry", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed settle recorded nothing, so a funded retry with the same key
	// settles fresh instead of replaying or conflicting.
	if _, err := service.Deposit(ctx, "buyer", 900); err != nil {
		t.Fatalf("top-up failed: %v", err)
	}
	settlement, replayed, err := service.Purchase(ctx, "idem-retry", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if replayed {
		t.Fatalf("retry after a failed settle must not be a replay")
	}
	if settlement.Amount != 1000 {
		t.Fatalf("retry charged %d, want 1000", settlement.Amount)
	}
}

func TestPurchaseIdempotencyHashKeepsFieldBoundaries(t *testing.T) {
	store := memory.NewStore()
	store.SeedPaper(ports.PaperView{PaperID: "c", Authors: []string{"ann"}, Price: 100})
	store.SeedPaper(ports.PaperView{PaperID: "b|c", Authors: []string{"ann"}, Price: 100})
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	for _, buyer := range []string{"a", "a|b"} {
		if _, err := service.Deposit(ctx, buyer, 1000); err != nil {
			t.Fatalf("deposit for %s failed: %v", buyer, err)
		}
	}
	if _, _, err := service.Purchase(ctx, "idem-bound", ports.PurchaseInput{
		BuyerAccount: "a|b",
		PaperID:      "c",
	}); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	// Same key, different request whose fields concatenate to the same bytes
	// under a naive separator: must conflict, never replay the first result.
	_, _, err := service.Purchase(ctx, "idem-bound", ports.PurchaseInput{
		BuyerAccount: "a",
		PaperID:      "b|c",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestPurchaseRequiresIdempotencyKey(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)

	_, _, err := service.Purchase(context.Background(), "  ", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyMissing) {
		t.Fatalf("expected ErrIdempotencyKeyMissing, got %v", err)
	}
}

func TestPurchaseUnknownPaper(t *testing.T) {
	store := memory.NewStore()
	service := newService(store, ports.SettlementModeLedger)

	_, _, err := service.Purchase(context.Background(), "idem-missing", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-404",
	})
	if !errors.Is(err, domainerrors.ErrPaperNotFound) {
		t.Fatalf("expected ErrPaperNotFound, got %v", err)
	}
}

func TestPurchaseIntentsModeEmitsPerPayeeIntents(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeIntents)
	ctx := context.Background()

	// Intents mode moves no internal balances, so the buyer needs none.
	settlement, _, err := service.Purchase(ctx, "idem-intents", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("intents purchase failed: %v", err)
	}
	if settlement.Mode != string(ports.SettlementModeIntents) {
		t.Fatalf("settlement mode = %s, want intents", settlement.Mode)
	}
	if _, err := store.GetBalance(ctx, "buyer"); !errors.Is(err, domainerrors.ErrAccountNotFound) {
		t.Fatalf("intents mode must not touch balances, got %v", err)
	}

	outbox, err := store.ListPendingOutbox(ctx, 20)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	intents := 0
	for _, message := range outbox {
		if message.EventType == "settlement.intent" {
			intents++
		}
	}
	// One intent for the platform plus one per author.
	if intents != 4 {
		t.Fatalf("intent count = %d, want 4", intents)
	}
}

func TestDepositWithdrawBalance(t *testing.T) {
	store := memory.NewStore()
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "acct", 0); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("zero deposit must be rejected, got %v", err)
	}

	balance, err := service.Deposit(ctx, "acct", 700)
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if balance.Balance != 700 {
		t.Fatalf("balance after deposit = %d, want 700", balance.Balance)
	}

	balance, err = service.Withdraw(ctx, "acct", 200)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if balance.Balance != 500 {
		t.Fatalf("balance after withdraw = %d, want 500", balance.Balance)
	}

	if _, err := service.Withdraw(ctx, "acct", 501); !errors.Is(err, domainerrors.ErrInsufficientFunds) {
		t.Fatalf("overdraft must be rejected, got %v", err)
	}

	if _, err := service.Balance(ctx, "ghost"); !errors.Is(err, domainerrors.ErrAccountNotFound) {
		t.Fatalf("unknown account lookup must fail, got %v", err)
	}
}

func TestGetSettlement(t *testing.T) {
	store := memory.NewStore()
	seedThreeAuthorPaper(store)
	service := newService(store, ports.SettlementModeLedger)
	ctx := context.Background()

	if _, err := service.Deposit(ctx, "buyer", 1000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	created, _, err := service.Purchase(ctx, "idem-get", ports.PurchaseInput{
		BuyerAccount: "buyer",
		PaperID:      "paper-1",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	fetched, err := service.GetSettlement(ctx, created.SettlementID)
	if err != nil {
		t.Fatalf("get settlement failed: %v", err)
	}
	if fetched.PaperID != "paper-1" || fetched.Amount != 1000 {
		t.Fatalf("unexpected settlement: %+v", fetched)
	}

	if _, err := service.GetSettlement(ctx, "missing"); !errors.Is(err, domainerrors.ErrSettlementNotFound) {
		t.Fatalf("expected ErrSettlementNotFound, got %v", err)
	}
}
