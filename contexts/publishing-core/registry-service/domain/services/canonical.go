package services

import (
	"encoding/base64"
	"encoding/json"

	"golang.org/x/crypto/sha3"

	"folio/contexts/publishing-core/registry-service/domain/entities"
)

// authorizationPayload locks the canonical key order via struct field order.
// Keys: content_digest, content_uid, price, royalty_bps, recipient,
// expires_at. An absent royalty rate encodes as null, which keeps the
// encoding injective against royalty_bps = 0.
type authorizationPayload struct {
	ContentDigest string  `json:"content_digest"`
	ContentUID    string  `json:"content_uid"`
	Price         uint64  `json:"price"`
	RoyaltyBps    *uint32 `json:"royalty_bps"`
	Recipient     string  `json:"recipient"`
	ExpiresAt     int64   `json:"expires_at"`
}

// CanonicalAuthorizationPayload returns the deterministic byte encoding of an
// authorization request. Same field values always produce the same bytes;
// any field change produces different bytes.
func CanonicalAuthorizationPayload(request entities.AuthorizationRequest) []byte {
	payload := authorizationPayload{
		ContentDigest: base64.StdEncoding.EncodeToString(request.ContentDigest),
		ContentUID:    request.ContentUID,
		Price:         request.Price,
		RoyaltyBps:    request.RoyaltyBps,
		Recipient:     request.Recipient,
		ExpiresAt:     request.ExpiresAt,
	}
	// Marshal of a flat struct with string/integer fields cannot fail.
	raw, _ := json.Marshal(payload)
	return raw
}

// AuthorizationDigest is the SHA3-256 digest of the canonical payload bytes.
// This is the exact message the authority signs.
func AuthorizationDigest(request entities.AuthorizationRequest) [32]byte {
	return sha3.Sum256(CanonicalAuthorizationPayload(request))
}
