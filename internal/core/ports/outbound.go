package ports

import (
	"context"
	"io"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

// KeyValueStore is the durable local store for progress and dashboard state.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// BlobStorage keeps uploaded file bytes for the lifetime of the process.
type BlobStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// CatalogSource yields the fixed set of checklist items.
type CatalogSource interface {
	Load(ctx context.Context) ([]domain.CatalogItem, error)
}

// CredentialStore holds the bearer credential for the current login session only.
type CredentialStore interface {
	Save(ctx context.Context, cred domain.Credential) error
	Load(ctx context.Context) (domain.Credential, error)
	Clear(ctx context.Context) error
}

// ConsentProvider runs the provider-hosted consent flow and returns a credential.
type ConsentProvider interface {
	RequestGrant(ctx context.Context) (domain.Credential, error)
}

// TokenVerifier reports whether a credential is still live at the provider.
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (bool, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, accessToken string) error
}

// TrafficSource returns per-day engagement rows for the window.
type TrafficSource interface {
	FetchTraffic(ctx context.Context, accessToken string, window domain.ReportWindow) ([]domain.TrafficRow, error)
}

// SearchSource returns per-day search rows and the top queries for the window.
type SearchSource interface {
	FetchSearch(ctx context.Context, accessToken string, window domain.ReportWindow) ([]domain.SearchRow, error)
	FetchTopQueries(ctx context.Context, accessToken string, window domain.ReportWindow, limit int) ([]domain.SearchRow, error)
}

// PageAuditSource audits the live site. It authenticates with an API key.
type PageAuditSource interface {
	Audit(ctx context.Context) (domain.PageAudit, error)
}

// MetricSink receives one formatted dashboard value at a time.
type MetricSink interface {
	UpdateMetric(key, display string)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// DashboardRenderer is an optional presentation hook. Wiring supplies a no-op
// renderer when nothing is attached.
type DashboardRenderer interface {
	Render(view domain.HubView) error
}

// RefreshObserver records fetch outcomes for telemetry.
type RefreshObserver interface {
	ObserveFetch(source domain.SourceName, outcome string, elapsed time.Duration)
	ObserveCycle(live bool)
	ObserveStaleDrop(source domain.SourceName)
}
