package domain

import "errors"

// Errors returned by the voting core. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotEligible      = errors.New("address not eligible")
	ErrVoteLimitReached = errors.New("vote limit reached")
	ErrAlreadyVoted     = errors.New("already voted for this meme")
	ErrAlreadyCreated   = errors.New("address has already created a meme")
	ErrNotFound         = errors.New("meme not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)
