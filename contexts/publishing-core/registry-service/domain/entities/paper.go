package entities

import (
	"strings"
	"time"

	domainerrors "folio/contexts/publishing-core/registry-service/domain/errors"
)

// Paper is a published record. It is immutable once created; later papers may
// reference it through CitedPapers but never mutate it.
type Paper struct {
	PaperID       string
	ContentDigest []byte
	ContentUID    string
	Authors       []string
	Price         uint64
	RoyaltyBps    *uint32
	CitedPapers   []string
	PublishedAt   time.Time
}

// NewPaper validates the publish-time invariants. PaperID may be empty when
// the repository allocates a counter identity at commit time.
func NewPaper(
	paperID string,
	capability Capability,
	authors []string,
	citedPapers []string,
	publishedAt time.Time,
) (Paper, error) {
	if capability.Price == 0 {
		return Paper{}, domainerrors.ErrInvalidPrice
	}
	if len(authors) == 0 {
		return Paper{}, domainerrors.ErrInvalidAuthors
	}
	cleaned := make([]string, 0, len(authors))
	for _, author := range authors {
		author = strings.TrimSpace(author)
		if author == "" {
			return Paper{}, domainerrors.ErrInvalidAuthors
		}
		cleaned = append(cleaned, author)
	}
	cited := make([]string, 0, len(citedPapers))
	for _, ref := range citedPapers {
		ref = strings.TrimSpace(ref)
		if ref != "" {
			cited = append(cited, ref)
		}
	}
	return Paper{
		PaperID:       paperID,
		ContentDigest: append([]byte(nil), capability.ContentDigest...),
		ContentUID:    capability.ContentUID,
		Authors:       cleaned,
		Price:         capability.Price,
		RoyaltyBps:    capability.RoyaltyBps,
		CitedPapers:   cited,
		PublishedAt:   publishedAt.UTC(),
	}, nil
}
