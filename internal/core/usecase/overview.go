package usecase

import (
	"context"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
)

type HubOptions struct {
	Progress ports.ProgressService
	Metrics  ports.MetricsService
	Session  ports.SessionService
	Renderer ports.DashboardRenderer

	Roadmap     domain.Roadmap
	Timeline    domain.Timeline
	Checkpoints []string
}

// Hub composes the read side of the dashboard and the few operations that
// span more than one component.
type Hub struct {
	progress    ports.ProgressService
	metrics     ports.MetricsService
	session     ports.SessionService
	renderer    ports.DashboardRenderer
	roadmap     domain.Roadmap
	timeline    domain.Timeline
	checkpoints []string
	now         func() time.Time
}

func NewHub(opts HubOptions) *Hub {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &Hub{
		progress:    opts.Progress,
		metrics:     opts.Metrics,
		session:     opts.Session,
		renderer:    renderer,
		roadmap:     opts.Roadmap,
		timeline:    opts.Timeline,
		checkpoints: opts.Checkpoints,
		now:         time.Now,
	}
}

func (h *Hub) Overview(_ context.Context) domain.HubView {
	snapshot := h.progress.Snapshot()
	return domain.HubView{
		Items:       h.progress.Items(),
		Progress:    snapshot,
		Roadmap:     h.roadmap.Project(snapshot),
		Stats:       domain.NewMigrationStats(snapshot, h.timeline, h.now()),
		Checkpoints: domain.CriticalPath(h.checkpoints, snapshot.Completed),
		Dashboard:   h.metrics.Dashboard(),
		Session:     h.session.Status(),
	}
}

func (h *Hub) Roadmap() domain.RoadmapView {
	return h.roadmap.Project(h.progress.Snapshot())
}

func (h *Hub) Render(ctx context.Context) error {
	return h.renderer.Render(h.Overview(ctx))
}

// ClearAll wipes stored progress and puts sample metrics back on the board.
func (h *Hub) ClearAll(ctx context.Context, confirmed bool) error {
	if err := h.progress.ClearAll(ctx, confirmed); err != nil {
		return err
	}
	return h.metrics.InitializeDashboard(ctx)
}

type NopRenderer struct{}

func (NopRenderer) Render(domain.HubView) error { return nil }
