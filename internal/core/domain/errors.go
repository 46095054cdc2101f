package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrItemNotFound   = errors.New("checklist item not found")
	ErrNotConfigured  = errors.New("integration not configured")
	ErrConsentDenied  = errors.New("interactive consent failed")
	ErrNoSession      = errors.New("no active session")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("permission denied")
	ErrTemporary      = errors.New("temporary failure")
	ErrQuotaDeferred  = errors.New("local quota exhausted")
	ErrMalformedState = errors.New("malformed persisted state")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
