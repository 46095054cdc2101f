package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const (
	defaultTTL      = 10 * time.Minute
	defaultCapacity = 50
)

// Feed logs every notification and keeps recent ones so clients can poll for
// them. Entries fall out after their TTL or when capacity is exceeded.
type Feed struct {
	logger   *slog.Logger
	ttl      time.Duration
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries []domain.Notification
}

func NewFeed(logger *slog.Logger, ttl time.Duration, capacity int) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{logger: logger, ttl: ttl, capacity: capacity, now: time.Now}
}

func (f *Feed) Notify(ctx context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now().UTC()
	}
	if n.Severity == "" {
		n.Severity = domain.SeverityInfo
	}

	f.logger.Log(ctx, levelFor(n.Severity), "notification",
		"id", n.ID,
		"severity", string(n.Severity),
		"message", n.Message,
		"action", n.Action,
	)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, n)
	if over := len(f.entries) - f.capacity; over > 0 {
		f.entries = append([]domain.Notification(nil), f.entries[over:]...)
	}
}

// Recent returns the unexpired notifications created after since, oldest first.
func (f *Feed) Recent(since time.Time) []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := f.now().Add(-f.ttl)
	kept := f.entries[:0]
	for _, n := range f.entries {
		if n.CreatedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	f.entries = kept

	out := make([]domain.Notification, 0, len(kept))
	for _, n := range kept {
		if n.CreatedAt.After(since) {
			out = append(out, n)
		}
	}
	return out
}

func levelFor(s domain.Severity) slog.Level {
	switch s {
	case domain.SeverityError:
		return slog.LevelError
	case domain.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
