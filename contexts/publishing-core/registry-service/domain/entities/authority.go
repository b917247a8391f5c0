package entities

import (
	"strings"
	"time"

	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

// Authority is the single trusted key-holder per deployment. It is written
// once at initialization and only ever read afterwards.
type Authority struct {
	AdminAccount  string
	PublicKey     []byte
	EncodedKey    string
	InitializedAt time.Time
}

func NewAuthority(adminAccount string, publicKey []byte, encodedKey string, initializedAt time.Time) (Authority, error) {
	if strings.TrimSpace(adminAccount) == "" || len(publicKey) == 0 {
		return Authority{}, domainerrors.ErrInvalidRequest
	}
	return Authority{
		AdminAccount:  adminAccount,
		PublicKey:     publicKey,
		EncodedKey:    encodedKey,
		InitializedAt: initializedAt.UTC(),
	}, nil
}
