package services

import (
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"

	"folio/contexts/publishing-core/registry-service/domain/entities"
	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

// AuthorityKeyPrefix is the wire format for authority keys:
// "ed25519:" + base64(raw 32-byte public key).
const AuthorityKeyPrefix = "ed25519:"

// ParseAuthorityKey decodes an encoded authority public key string.
func ParseAuthorityKey(encoded string) (ed25519.PublicKey, error) {
	encoded = strings.TrimSpace(encoded)
	if !strings.HasPrefix(encoded, AuthorityKeyPrefix) {
		return nil, domainerrors.ErrInvalidAuthorityKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, AuthorityKeyPrefix))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, domainerrors.ErrInvalidAuthorityKey
	}
	return ed25519.PublicKey(raw), nil
}

// EncodeAuthorityKey renders a raw public key in the wire format.
func EncodeAuthorityKey(publicKey []byte) string {
	return AuthorityKeyPrefix + base64.StdEncoding.EncodeToString(publicKey)
}

// VerifyRequestSignature checks an Ed25519 signature over the SHA3-256 digest
// of the canonical request payload. Verification is strict: non-canonical
// signature encodings are rejected even when they would otherwise validate.
func VerifyRequestSignature(publicKey ed25519.PublicKey, request entities.AuthorizationRequest, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	digest := AuthorizationDigest(request)
	return ed25519.Verify(publicKey, digest[:], signature)
}
