package services

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

// IdentityMode selects how paper identities are allocated.
//
// Counter mode assigns a monotonically increasing id at publish time and
// places no restriction on duplicate content. Content mode keys the registry
// by a digest of the content uid, so a given uid can be published at most
// once.
type IdentityMode string

const (
	IdentityModeCounter IdentityMode = "counter"
	IdentityModeContent IdentityMode = "content"
)

func ParseIdentityMode(raw string) (IdentityMode, error) {
	switch IdentityMode(strings.TrimSpace(strings.ToLower(raw))) {
	case IdentityModeCounter, "":
		return IdentityModeCounter, nil
	case IdentityModeContent:
		return IdentityModeContent, nil
	default:
		return "", domainerrors.ErrInvalidRequest
	}
}

// ContentKey derives the content-keyed paper identity: a CIDv1 string over
// the raw content uid bytes using a sha3-256 multihash.
func ContentKey(contentUID string) (string, error) {
	if strings.TrimSpace(contentUID) == "" {
		return "", domainerrors.ErrInvalidRequest
	}
	sum, err := multihash.Sum([]byte(contentUID), multihash.SHA3_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}
