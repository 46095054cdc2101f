package ports

import (
	"context"
	"io"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

type ProgressService interface {
	Load(ctx context.Context) error
	Items() []domain.ChecklistItem
	Snapshot() domain.ProgressSnapshot
	Toggle(itemID string) (bool, error)
	SetDone(itemID string, done bool) error
	Save(ctx context.Context) error
	AddUpload(ctx context.Context, itemID string, rec domain.UploadRecord) error
	AttachFile(ctx context.Context, itemID, name, mimeType string, data io.Reader) (domain.UploadRecord, error)
	RemoveUpload(ctx context.Context, itemID string, index int) error
	OpenBlob(ctx context.Context, ref string) (io.ReadCloser, error)
	ClearAll(ctx context.Context, confirmed bool) error
	ExportSnapshot(ctx context.Context, now time.Time) (domain.ExportDocument, error)
	ExportFileName(now time.Time, ext string) string
	Import(ctx context.Context, doc domain.ExportDocument) error
}

type SessionService interface {
	Initialize(ctx context.Context) (domain.SessionStatus, error)
	RequestInteractiveGrant(ctx context.Context) (domain.SessionStatus, error)
	Validate(ctx context.Context) (domain.SessionStatus, error)
	Revoke(ctx context.Context) error
	HandleUnauthorized(ctx context.Context, source domain.SourceName)
	Status() domain.SessionStatus
	AccessToken() (string, bool)
}

type MetricsService interface {
	Refresh(ctx context.Context) (domain.RefreshReport, error)
	RefreshAudit(ctx context.Context) (domain.RefreshReport, error)
	InitializeDashboard(ctx context.Context) error
	Dashboard() domain.DashboardSnapshot
}

type OverviewService interface {
	Overview(ctx context.Context) domain.HubView
	Roadmap() domain.RoadmapView
	ClearAll(ctx context.Context, confirmed bool) error
	Render(ctx context.Context) error
}

// NotificationFeed exposes recent user notifications to polling clients.
type NotificationFeed interface {
	Recent(since time.Time) []domain.Notification
}
