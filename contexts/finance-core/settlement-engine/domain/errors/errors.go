package errors

import "errors"

var (
	ErrPaperNotFound            = errors.New("paper not found")
	ErrInvalidInput             = errors.New("settlement input is invalid")
	ErrAmountMismatch           = errors.New("tendered amount does not match paper price")
	ErrInsufficientFunds        = errors.New("buyer balance cannot cover the purchase")
	ErrAccountNotFound          = errors.New("ledger account not found")
	ErrSettlementNotFound       = errors.New("settlement not found")
	ErrIdempotencyKeyMissing    = errors.New("idempotency key is required")
	ErrIdempotencyConflict      = errors.New("idempotency key already used with different payload")
	ErrRepositoryInvariantBroke = errors.New("settlement repository invariant violated")
)
