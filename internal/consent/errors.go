package consent

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrRecipientTypeUnsupported = errors.New("recipient type unsupported")
	ErrNotFound                 = errors.New("not found")
	ErrDocumentInactive         = errors.New("document inactive")
	ErrAlreadyCompleted         = errors.New("consent already completed")
	ErrPersistence              = errors.New("persistence failure")

	// ErrTokenConflict is returned by record stores when a token is already taken.
	ErrTokenConflict = errors.New("token already issued")
)
