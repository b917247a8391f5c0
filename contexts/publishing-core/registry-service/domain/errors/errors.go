package errors

import "errors"

var (
	ErrAlreadyInitialized       = errors.New("authority key is already initialized")
	ErrAuthorityNotInitialized  = errors.New("authority key is not initialized")
	ErrInvalidAuthorityKey      = errors.New("authority public key is malformed")
	ErrNotAuthorized            = errors.New("authorization signature did not verify")
	ErrInvalidRecipient         = errors.New("authorization recipient does not match caller")
	ErrExpired                  = errors.New("authorization expiry has passed")
	ErrCapabilityPending        = errors.New("caller already holds an unconsumed publish capability")
	ErrCapabilityNotFound       = errors.New("no publish capability is held by caller")
	ErrInvalidPrice             = errors.New("paper price must be greater than zero")
	ErrInvalidAuthors           = errors.New("paper requires at least one author account")
	ErrInvalidRequest           = errors.New("registry request is invalid")
	ErrAlreadyPublished         = errors.New("content is already published")
	ErrPaperNotFound            = errors.New("paper not found")
	ErrRepositoryInvariantBroke = errors.New("registry repository invariant violated")
)
