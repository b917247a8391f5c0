package entities

import (
	"strings"
	"time"

	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

// AuthorizationRequest is the off-band payload signed by the authority. Every
// field participates in the canonical byte encoding; changing any field after
// signing invalidates the signature.
type AuthorizationRequest struct {
	ContentDigest []byte
	ContentUID    string
	Price         uint64
	RoyaltyBps    *uint32
	Recipient     string
	ExpiresAt     int64 // unix seconds
}

// Capability is a single-use publish grant bound to exactly one owning
// account. It is created by a verified mint and destroyed when a publish
// consumes it; expired capabilities are never cleaned up, only rejected at
// consumption time.
type Capability struct {
	OwnerAccount  string
	ContentDigest []byte
	ContentUID    string
	Price         uint64
	RoyaltyBps    *uint32
	ExpiresAt     time.Time
	MintedAt      time.Time
}

func NewCapability(owner string, request AuthorizationRequest, mintedAt time.Time) (Capability, error) {
	if strings.TrimSpace(owner) == "" || len(request.ContentDigest) == 0 {
		return Capability{}, domainerrors.ErrInvalidRequest
	}
	if request.RoyaltyBps != nil && *request.RoyaltyBps > 10000 {
		return Capability{}, domainerrors.ErrInvalidRequest
	}
	return Capability{
		OwnerAccount:  owner,
		ContentDigest: append([]byte(nil), request.ContentDigest...),
		ContentUID:    request.ContentUID,
		Price:         request.Price,
		RoyaltyBps:    request.RoyaltyBps,
		ExpiresAt:     time.Unix(request.ExpiresAt, 0).UTC(),
		MintedAt:      mintedAt.UTC(),
	}, nil
}

// ExpiredAt reports whether the capability expiry has passed at the supplied
// instant. The boundary second is still valid.
func (c Capability) ExpiredAt(now time.Time) bool {
	return now.Unix() > c.ExpiresAt.Unix()
}
