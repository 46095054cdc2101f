package httpadapter

import (
	"net/http"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrItemNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUnauthorized), domain.IsKind(err, domain.ErrNoSession):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden), domain.IsKind(err, domain.ErrConsentDenied):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case domain.IsKind(err, domain.ErrQuotaDeferred):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
