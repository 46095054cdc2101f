package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor wraps outbound calls with retries and a circuit breaker per
// operation name.
type Executor struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = ClassifyDomainError
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, op, fn, classifier)
	}
	_, err := e.breaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, e.retry(ctx, op, fn, classifier)
	})
	return err
}

// State reports the breaker state of an operation, "closed" if it never ran.
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.breakers[operation]; ok {
		return b.State().String()
	}
	return gobreaker.StateClosed.String()
}

func (e *Executor) retry(ctx context.Context, op string, fn func(context.Context) error, classifier ErrorClassifier) error {
	var err error
	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err).Retryable || attempt == e.cfg.RetryMaxAttempts {
			return err
		}

		wait := e.cfg.backoffAt(attempt)
		e.logger.Warn("retry_attempt",
			"operation", op,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff_ms", float64(wait.Microseconds())/1000.0,
			"error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func (e *Executor) breaker(op string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b, ok := e.breakers[op]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        op,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[op] = b
	return b
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// ClassifyDomainError retries transient failures only. Auth, permission and
// input errors are the caller's problem and must not trip the breaker.
func ClassifyDomainError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrUnauthorized),
		domain.IsKind(err, domain.ErrForbidden),
		domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrNotConfigured),
		domain.IsKind(err, domain.ErrQuotaDeferred):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}
