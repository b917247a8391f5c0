package unit

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"

	settlementengine "folio/contexts/finance-core/settlement-engine"
	settlementports "folio/contexts/finance-core/settlement-engine/ports"
	settlementhttp "folio/contexts/finance-core/settlement-engine/transport/http"
	registryservice "folio/contexts/publishing-core/registry-service"
	"folio/contexts/publishing-core/registry-service/domain/services"
	registryhttp "folio/contexts/publishing-core/registry-service/transport/http"
)

func TestPublishThenPurchaseAcrossModules(t *testing.T) {
	ctx := context.Background()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}
	registry := registryservice.NewInMemoryModule(services.IdentityModeCounter, nil)
	if _, err := registry.Handler.InitAuthorityHandler(ctx, registryhttp.InitAuthorityRequest{
		AdminAccount: "admin",
		PublicKey:    services.EncodeAuthorityKey(publicKey),
	}); err != nil {
		t.Fatalf("init authority: %v", err)
	}

	harness := registryHarness{module: registry, privateKey: privateKey}
	if _, err := registry.Handler.MintCapabilityHandler(ctx, "alice", harness.mintRequest("alice", "uid-x", 1000)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	published, err := registry.Handler.PublishPaperHandler(ctx, "alice", registryhttp.PublishPaperRequest{
		Authors: []string{"ann", "ben", "cat"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	settlement := settlementengine.NewInMemoryModule(settlementports.SettlementModeLedger, nil)
	// The settlement engine reads papers through a projection of the
	// registry's records.
	settlement.Store.SeedPaper(settlementports.PaperView{
		PaperID: published.Data.PaperID,
		Authors: published.Data.Authors,
		Price:   published.Data.Price,
	})

	if _, err := settlement.Handler.DepositHandler(ctx, "buyer", settlementhttp.DepositRequest{Amount: 1500}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	purchase, err := settlement.Handler.PurchasePaperHandler(ctx, "idem-x", published.Data.PaperID, settlementhttp.PurchasePaperRequest{
		BuyerAccount: "buyer",
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if purchase.Data.PlatformTotal != 100 || purchase.Data.PerAuthorAmount != 300 {
		t.Fatalf("unexpected split: %+v", purchase.Data)
	}

	balance, err := settlement.Handler.BalanceHandler(ctx, "ben")
	if err != nil {
		t.Fatalf("author balance failed: %v", err)
	}
	if balance.Data.Balance != 300 {
		t.Fatalf("author balance = %d, want 300", balance.Data.Balance)
	}

	fetched, err := settlement.Handler.GetSettlementHandler(ctx, purchase.Data.SettlementID)
	if err != nil {
		t.Fatalf("get settlement failed: %v", err)
	}
	if fetched.Data.PaperID != published.Data.PaperID {
		t.Fatalf("settlement paper id = %s, want %s", fetched.Data.PaperID, published.Data.PaperID)
	}
}

func TestPurchaseIdempotencyReplayThroughHandlers(t *testing.T) {
	ctx := context.Background()
	settlement := settlementengine.NewInMemoryModule(settlementports.SettlementModeLedger, nil)
	settlement.Store.SeedPaper(settlementports.PaperView{
		PaperID: "paper-h1",
		Authors: []string{"ann"},
		Price:   400,
	})

	if _, err := settlement.Handler.DepositHandler(ctx, "buyer", settlementhttp.DepositRequest{Amount: 800}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	first, err := settlement.Handler.PurchasePaperHandler(ctx, "idem-h", "paper-h1", settlementhttp.PurchasePaperRequest{
		BuyerAccount: "buyer",
	})
	if err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}
	second, err := settlement.Handler.PurchasePaperHandler(ctx, "idem-h", "paper-h1", settlementhttp.PurchasePaperRequest{
		BuyerAccount: "buyer",
	})
	if err != nil {
		t.Fatalf("second purchase failed: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replayed result on duplicate idempotency key")
	}
	if first.Data.SettlementID != second.Data.SettlementID {
		t.Fatalf("expected same settlement id, got %s and %s", first.Data.SettlementID, second.Data.SettlementID)
	}

	balance, err := settlement.Handler.BalanceHandler(ctx, "buyer")
	if err != nil {
		t.Fatalf("buyer balance failed: %v", err)
	}
	if balance.Data.Balance != 400 {
		t.Fatalf("buyer balance = %d, want 400 after a single charge", balance.Data.Balance)
	}
}
