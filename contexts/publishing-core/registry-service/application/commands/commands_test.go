package commands_test

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"folio/contexts/publishing-core/registry-service/adapters/memory"
	"folio/contexts/publishing-core/registry-service/application/commands"
	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
	"folio/contexts/publishing-core/registry-service/domain/services"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

type registryFixture struct {
	store      *memory.Store
	privateKey ed25519.PrivateKey
	clock      fixedClock
}

func newRegistryFixture(t *testing.T) registryFixture {
	t.Helper()

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate authority key: %v", err)
	}

	store := memory.NewStore()
	clock := fixedClock{at: time.Unix(1700000000, 0).UTC()}

	init := commands.InitAuthorityUseCase{Authority: store, Clock: clock}
	if _, err := init.Execute(context.Background(), commands.InitAuthorityCommand{
		AdminAccount: "admin",
		PublicKey:    services.EncodeAuthorityKey(publicKey),
	}); err != nil {
		t.Fatalf("init authority: %v", err)
	}

	return registryFixture{store: store, privateKey: privateKey, clock: clock}
}

func (f registryFixture) signedRequest(recipient string, expiresAt int64) (entities.AuthorizationRequest, []byte) {
	request := entities.AuthorizationRequest{
		ContentDigest: []byte("content-digest-1"),
		ContentUID:    "uid-1",
		Price:         1000,
		Recipient:     recipient,
		ExpiresAt:     expiresAt,
	}
	digest := services.AuthorizationDigest(request)
	return request, ed25519.Sign(f.privateKey, digest[:])
}

func (f registryFixture) mintUseCase() commands.MintCapabilityUseCase {
	return commands.MintCapabilityUseCase{
		Authority:    f.store,
		Capabilities: f.store,
		Clock:        f.clock,
	}
}

func (f registryFixture) publishUseCase(mode services.IdentityMode) commands.PublishPaperUseCase {
	return commands.PublishPaperUseCase{
		Capabilities: f.store,
		Papers:       f.store,
		IdentityMode: mode,
		Clock:        f.clock,
		IDGenerator:  f.store,
	}
}

func (f registryFixture) mintFor(t *testing.T, account string) {
	t.Helper()
	request, signature := f.signedRequest(account, f.clock.at.Unix()+3600)
	if _, err := f.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: account,
		Request:       request,
		Signature:     signature,
	}); err != nil {
		t.Fatalf("mint for %s: %v", account, err)
	}
}

func TestInitAuthoritySucceedsOnce(t *testing.T) {
	fixture := newRegistryFixture(t)

	publicKey, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	init := commands.InitAuthorityUseCase{Authority: fixture.store, Clock: fixture.clock}
	_, err = init.Execute(context.Background(), commands.InitAuthorityCommand{
		AdminAccount: "second-admin",
		PublicKey:    services.EncodeAuthorityKey(publicKey),
	})
	if !errors.Is(err, domainerrors.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestMintCapabilityHappyPath(t *testing.T) {
	fixture := newRegistryFixture(t)
	request, signature := fixture.signedRequest("alice", fixture.clock.at.Unix()+3600)

	capability, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "alice",
		Request:       request,
		Signature:     signature,
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if capability.OwnerAccount != "alice" {
		t.Fatalf("capability owner = %s, want alice", capability.OwnerAccount)
	}
	if capability.Price != 1000 {
		t.Fatalf("capability price = %d, want 1000", capability.Price)
	}

	stored, err := fixture.store.GetCapabilityByOwner(context.Background(), "alice")
	if err != nil {
		t.Fatalf("fetch minted capability: %v", err)
	}
	if stored.ContentUID != "uid-1" {
		t.Fatalf("stored content uid = %s, want uid-1", stored.ContentUID)
	}
}

func TestMintCapabilityRejectsTamperedRequest(t *testing.T) {
	fixture := newRegistryFixture(t)
	request, signature := fixture.signedRequest("alice", fixture.clock.at.Unix()+3600)
	request.Price = 1 // tampered after signing

	_, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "alice",
		Request:       request,
		Signature:     signature,
	})
	if !errors.Is(err, domainerrors.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestMintCapabilityRejectsNonRecipientCaller(t *testing.T) {
	fixture := newRegistryFixture(t)
	request, signature := fixture.signedRequest("alice", fixture.clock.at.Unix()+3600)

	_, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "mallory",
		Request:       request,
		Signature:     signature,
	})
	if !errors.Is(err, domainerrors.ErrNotAuthorized) && !errors.Is(err, domainerrors.ErrInvalidRecipient) {
		t.Fatalf("expected recipient rejection, got %v", err)
	}
	if _, err := fixture.store.GetCapabilityByOwner(context.Background(), "mallory"); !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("no capability must exist for mallory, got %v", err)
	}
}

func TestMintCapabilityExpiryBoundary(t *testing.T) {
	fixture := newRegistryFixture(t)

	// Expiring exactly now is still valid.
	request, signature := fixture.signedRequest("alice", fixture.clock.at.Unix())
	if _, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "alice",
		Request:       request,
		Signature:     signature,
	}); err != nil {
		t.Fatalf("boundary-second mint failed: %v", err)
	}

	// One second in the past is expired.
	request, signature = fixture.signedRequest("bob", fixture.clock.at.Unix()-1)
	_, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "bob",
		Request:       request,
		Signature:     signature,
	})
	if !errors.Is(err, domainerrors.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestMintCapabilityRejectsSecondMintWhilePending(t *testing.T) {
	fixture := newRegistryFixture(t)
	fixture.mintFor(t, "alice")

	request, signature := fixture.signedRequest("alice", fixture.clock.at.Unix()+7200)
	_, err := fixture.mintUseCase().Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "alice",
		Request:       request,
		Signature:     signature,
	})
	if !errors.Is(err, domainerrors.ErrCapabilityPending) {
		t.Fatalf("expected ErrCapabilityPending, got %v", err)
	}
}

func TestMintCapabilityRequiresInitializedAuthority(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{at: time.Unix(1700000000, 0).UTC()}
	mint := commands.MintCapabilityUseCase{Authority: store, Capabilities: store, Clock: clock}

	_, err := mint.Execute(context.Background(), commands.MintCapabilityCommand{
		CallerAccount: "alice",
		Request: entities.AuthorizationRequest{
			ContentDigest: []byte("digest"),
			Recipient:     "alice",
			ExpiresAt:     clock.at.Unix() + 3600,
		},
		Signature: make([]byte, 64),
	})
	if !errors.Is(err, domainerrors.ErrAuthorityNotInitialized) {
		t.Fatalf("expected ErrAuthorityNotInitialized, got %v", err)
	}
}

func TestPublishPaperCounterIdentityIsSequential(t *testing.T) {
	fixture := newRegistryFixture(t)
	publish := fixture.publishUseCase(services.IdentityModeCounter)

	fixture.mintFor(t, "alice")
	first, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	})
	if err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	if first.PaperID != "1" {
		t.Fatalf("first paper id = %s, want 1", first.PaperID)
	}

	fixture.mintFor(t, "bob")
	second, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "bob",
		Authors:       []string{"bob", "carol"},
	})
	if err != nil {
		t.Fatalf("second publish failed: %v", err)
	}
	if second.PaperID != "2" {
		t.Fatalf("second paper id = %s, want 2", second.PaperID)
	}
}

func TestPublishPaperConsumesCapabilityExactlyOnce(t *testing.T) {
	fixture := newRegistryFixture(t)
	publish := fixture.publishUseCase(services.IdentityModeCounter)

	fixture.mintFor(t, "alice")
	if _, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if _, err := fixture.store.GetCapabilityByOwner(context.Background(), "alice"); !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("capability must be consumed, got %v", err)
	}

	_, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	})
	if !errors.Is(err, domainerrors.ErrCapabilityNotFound) {
		t.Fatalf("second publish must fail with ErrCapabilityNotFound, got %v", err)
	}
}

func TestPublishPaperEmitsPublishedOutboxEvent(t *testing.T) {
	fixture := newRegistryFixture(t)
	publish := fixture.publishUseCase(services.IdentityModeCounter)

	fixture.mintFor(t, "alice")
	paper, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	outbox, err := fixture.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("expected exactly one outbox row, got %d", len(outbox))
	}
	if outbox[0].EventType != "paper.published" {
		t.Fatalf("outbox event type = %s, want paper.published", outbox[0].EventType)
	}
	if outbox[0].PartitionKey != paper.PaperID {
		t.Fatalf("outbox partition key = %s, want %s", outbox[0].PartitionKey, paper.PaperID)
	}
}

func TestPublishPaperFailedValidationKeepsCapability(t *testing.T) {
	fixture := newRegistryFixture(t)
	publish := fixture.publishUseCase(services.IdentityModeCounter)
	fixture.mintFor(t, "alice")

	_, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       nil,
	})
	if !errors.Is(err, domainerrors.ErrInvalidAuthors) {
		t.Fatalf("expected ErrInvalidAuthors, got %v", err)
	}

	// The capability survives the failed publish and a retry succeeds.
	if _, err := fixture.store.GetCapabilityByOwner(context.Background(), "alice"); err != nil {
		t.Fatalf("capability must survive failed validation: %v", err)
	}
	if _, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	}); err != nil {
		t.Fatalf("retry publish failed: %v", err)
	}
}

func TestPublishPaperExpiredCapability(t *testing.T) {
	fixture := newRegistryFixture(t)
	fixture.mintFor(t, "alice")

	latePublish := commands.PublishPaperUseCase{
		Capabilities: fixture.store,
		Papers:       fixture.store,
		IdentityMode: services.IdentityModeCounter,
		Clock:        fixedClock{at: fixture.clock.at.Add(2 * time.Hour)},
		IDGenerator:  fixture.store,
	}
	_, err := latePublish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	})
	if !errors.Is(err, domainerrors.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := fixture.store.GetCapabilityByOwner(context.Background(), "alice"); err != nil {
		t.Fatalf("expired capability must remain until consumed: %v", err)
	}
}

func TestPublishPaperContentIdentityRejectsDuplicateContent(t *testing.T) {
	fixture := newRegistryFixture(t)
	publish := fixture.publishUseCase(services.IdentityModeContent)

	fixture.mintFor(t, "alice")
	first, err := publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "alice",
		Authors:       []string{"alice"},
	})
	if err != nil {
		t.Fatalf("first content publish failed: %v", err)
	}
	expected, err := services.ContentKey("uid-1")
	if err != nil {
		t.Fatalf("content key: %v", err)
	}
	if first.PaperID != expected {
		t.Fatalf("paper id = %s, want %s", first.PaperID, expected)
	}

	// Same content uid signed for a second account collides on identity.
	fixture.mintFor(t, "bob")
	_, err = publish.Execute(context.Background(), commands.PublishPaperCommand{
		CallerAccount: "bob",
		Authors:       []string{"bob"},
	})
	if !errors.Is(err, domainerrors.ErrAlreadyPublished) {
		t.Fatalf("expected ErrAlreadyPublished, got %v", err)
	}
	if _, err := fixture.store.GetCapabilityByOwner(context.Background(), "bob"); err != nil {
		t.Fatalf("capability must survive identity collision: %v", err)
	}
}
