package googleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "google api status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("google %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("google %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// apiErrorEnvelope is the error body shape shared by Google REST APIs.
type apiErrorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newHTTPStatusError(operation string, resp *http.Response, body []byte) *HTTPStatusError {
	msg := strings.TrimSpace(string(body))
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
		if envelope.Error.Status != "" {
			msg = envelope.Error.Status + ": " + msg
		}
	}
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       msg,
	}
}

// KindForStatus maps a provider status code onto the error taxonomy.
func KindForStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case statusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case isRetryableHTTPStatus(statusCode):
		return domain.ErrTemporary
	case statusCode >= 400 && statusCode < 500:
		return domain.ErrInvalidInput
	default:
		return domain.ErrTemporary
	}
}

func classifyGoogleError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ClassifyDomainError(err)
}

// wrapKind attaches the taxonomy kind so callers can branch with domain.IsKind.
func wrapKind(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(KindForStatus(statusErr.StatusCode), operation, err)
	}
	// Network, decode, timeout and open-circuit failures are all worth another
	// try on the next cycle.
	return domain.WrapError(domain.ErrTemporary, operation, err)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
