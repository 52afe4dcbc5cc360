package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound        = errors.New("resource not found") // General not found
	ErrMissionNotFound = errors.New("mission not found")
	ErrNodeNotFound    = errors.New("story node not found")
	ErrChoiceNotFound  = errors.New("story choice not found")

	// Precondition Errors (caller input rejected before any side effect)
	ErrInvalidSelection = errors.New("invalid selection")
	ErrMissionNotActive = errors.New("mission is not active")
	ErrEmptyCustomText  = errors.New("custom choice requires non-empty text")

	// Economy Errors
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Generation Errors
	// ErrGenerationUnavailable never crosses the engine boundary: the engine
	// substitutes the fallback payload and logs the condition instead.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// Persistence Errors (retryable by the caller; a debit that already
	// happened is compensated with a refund before this surfaces)
	ErrPersistenceFailure = errors.New("persistence failure")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
)
