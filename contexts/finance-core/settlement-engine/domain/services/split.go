package services

import (
	"math/bits"

	domainerrors "folio/contexts/finance-core/settlement-engine/domain/errors"
)

// BpsDenominator is the basis-point scale used for fee arithmetic.
const BpsDenominator = 10000

// Split is the exact division of a purchase amount. The conservation law
// holds for every valid split:
//
//	PlatformTotal + PerAuthorAmount*AuthorCount == Amount
type Split struct {
	Amount          uint64
	PlatformFee     uint64
	AuthorShare     uint64
	PerAuthorAmount uint64
	Remainder       uint64
	PlatformTotal   uint64
	AuthorCount     int
}

// ComputeSplit divides amount between the platform and authorCount authors
// using integer arithmetic only. The platform takes floor(amount*feeBps/10000)
// plus the remainder of the per-author division, so no unit is ever lost or
// left uncredited.
func ComputeSplit(amount uint64, feeBps uint32, authorCount int) (Split, error) {
	if authorCount <= 0 || feeBps > BpsDenominator {
		return Split{}, domainerrors.ErrInvalidInput
	}

	// 128-bit intermediate: amount*feeBps overflows uint64 for amounts above
	// roughly 2^50. feeBps <= 10000 keeps the high word below the divisor, so
	// Div64 cannot panic and the quotient always fits.
	hi, lo := bits.Mul64(amount, uint64(feeBps))
	platformFee, _ := bits.Div64(hi, lo, BpsDenominator)
	authorShare := amount - platformFee
	perAuthor := authorShare / uint64(authorCount)
	remainder := authorShare - perAuthor*uint64(authorCount)

	return Split{
		Amount:          amount,
		PlatformFee:     platformFee,
		AuthorShare:     authorShare,
		PerAuthorAmount: perAuthor,
		Remainder:       remainder,
		PlatformTotal:   platformFee + remainder,
		AuthorCount:     authorCount,
	}, nil
}
