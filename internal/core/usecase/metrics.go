package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
)

type credentialSource interface {
	AccessToken() (string, bool)
	HandleUnauthorized(ctx context.Context, source domain.SourceName)
}

type dashboardState interface {
	ports.MetricSink
	SetRankings(rankings []domain.Ranking)
	Touch(at time.Time, live bool)
	Replace(snap domain.DashboardSnapshot)
	Snapshot() domain.DashboardSnapshot
}

type snapshotStore interface {
	SaveDashboard(ctx context.Context, snap domain.DashboardSnapshot) error
	LoadDashboard(ctx context.Context) (domain.DashboardSnapshot, bool)
}

type MetricsAggregatorOptions struct {
	Session credentialSource
	// Sources left nil are reported as skipped.
	Traffic   ports.TrafficSource
	Search    ports.SearchSource
	PageAudit ports.PageAuditSource

	Board     dashboardState
	Snapshots snapshotStore
	Notifier  ports.Notifier
	Observer  ports.RefreshObserver
	Logger    *slog.Logger

	WindowDays      int
	TopQueriesLimit int
	TopQueriesShown int
}

// MetricsAggregator fetches the live sources, folds them into display values
// and pushes them into the dashboard.
type MetricsAggregator struct {
	session   credentialSource
	traffic   ports.TrafficSource
	search    ports.SearchSource
	pageAudit ports.PageAuditSource
	board     dashboardState
	snapshots snapshotStore
	notifier  ports.Notifier
	observer  ports.RefreshObserver
	logger    *slog.Logger
	now       func() time.Time

	windowDays      int
	topQueriesLimit int
	topQueriesShown int

	seq     atomic.Uint64
	mu      sync.Mutex
	applied map[domain.SourceName]uint64
}

func NewMetricsAggregator(opts MetricsAggregatorOptions) *MetricsAggregator {
	a := &MetricsAggregator{
		session:         opts.Session,
		traffic:         opts.Traffic,
		search:          opts.Search,
		pageAudit:       opts.PageAudit,
		board:           opts.Board,
		snapshots:       opts.Snapshots,
		notifier:        opts.Notifier,
		observer:        opts.Observer,
		logger:          opts.Logger,
		now:             time.Now,
		windowDays:      opts.WindowDays,
		topQueriesLimit: opts.TopQueriesLimit,
		topQueriesShown: opts.TopQueriesShown,
		applied:         make(map[domain.SourceName]uint64),
	}
	if a.board == nil {
		a.board = NewBoard()
	}
	if a.notifier == nil {
		a.notifier = nopNotifier{}
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.windowDays <= 0 {
		a.windowDays = domain.ReportWindowDays
	}
	if a.topQueriesLimit <= 0 {
		a.topQueriesLimit = 10
	}
	if a.topQueriesShown <= 0 || a.topQueriesShown > a.topQueriesLimit {
		a.topQueriesShown = min(4, a.topQueriesLimit)
	}
	return a
}

type cycle struct {
	id  string
	seq uint64
}

func (a *MetricsAggregator) newCycle() cycle {
	return cycle{id: uuid.NewString(), seq: a.seq.Add(1)}
}

type sourceResult struct {
	source   domain.SourceName
	metrics  domain.DashboardMetrics
	rankings []domain.Ranking
	empty    bool
	err      error
	elapsed  time.Duration
}

// Restore puts the last persisted snapshot on the board, or sample data when
// nothing usable was stored.
func (a *MetricsAggregator) Restore(ctx context.Context) error {
	if a.snapshots != nil {
		if snap, ok := a.snapshots.LoadDashboard(ctx); ok {
			a.board.Replace(snap)
			return nil
		}
	}
	return a.InitializeDashboard(ctx)
}

// InitializeDashboard pushes the canned dataset through the metric sink.
func (a *MetricsAggregator) InitializeDashboard(ctx context.Context) error {
	a.applyMock(false)
	return a.persist(ctx, false)
}

func (a *MetricsAggregator) applyMock(keepLiveAudit bool) {
	mock := domain.MockDashboard(a.now())
	a.mu.Lock()
	liveAudit := a.applied[domain.SourcePageAudit] > 0
	a.mu.Unlock()

	auditKeys := map[string]bool{}
	if keepLiveAudit && liveAudit {
		for key := range (domain.PageAudit{}).Metrics() {
			auditKeys[key] = true
		}
	}

	keys := make([]string, 0, len(mock.Metrics))
	for key := range mock.Metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if auditKeys[key] {
			continue
		}
		a.board.UpdateMetric(key, mock.Metrics[key])
	}
	a.board.SetRankings(mock.Rankings)
}

// Refresh runs one cycle over all three sources. Without a credential the
// dashboard falls back to sample data. Each source settles on its own; the
// returned report is produced once all of them have.
func (a *MetricsAggregator) Refresh(ctx context.Context) (domain.RefreshReport, error) {
	c := a.newCycle()
	token, ok := a.session.AccessToken()
	if !ok {
		a.applyMock(true)
		a.observer.ObserveCycle(false)
		report := domain.RefreshReport{
			CycleID:  c.id,
			Sequence: c.seq,
			Sources: map[domain.SourceName]domain.SourceOutcome{
				domain.SourceTraffic:   {Status: domain.OutcomeSkipped, Error: domain.ErrNoSession.Error()},
				domain.SourceSearch:    {Status: domain.OutcomeSkipped, Error: domain.ErrNoSession.Error()},
				domain.SourcePageAudit: {Status: domain.OutcomeSkipped, Error: domain.ErrNoSession.Error()},
			},
			Settled: a.now().UTC(),
		}
		return report, a.persist(ctx, false)
	}

	window := domain.TrailingWindow(a.now(), a.windowDays)
	fetchers := map[domain.SourceName]func(context.Context) sourceResult{
		domain.SourceTraffic: func(ctx context.Context) sourceResult {
			return a.fetchTraffic(ctx, token, window)
		},
		domain.SourceSearch: func(ctx context.Context) sourceResult {
			return a.fetchSearch(ctx, token, window)
		},
		domain.SourcePageAudit: a.fetchPageAudit,
	}

	report := a.runCycle(ctx, c, fetchers)
	report.Live = true

	failed := 0
	for _, outcome := range report.Sources {
		switch outcome.Status {
		case domain.OutcomeOK, domain.OutcomeSkipped, domain.OutcomeEmpty:
		default:
			failed++
		}
	}
	a.observer.ObserveCycle(true)
	if err := a.persist(ctx, true); err != nil {
		a.logger.Warn("dashboard_snapshot_save_failed", "cycle_id", c.id, "error", err)
	}

	switch failed {
	case 0:
		a.notify(ctx, "Live metrics refreshed.", domain.SeveritySuccess)
	case len(report.Sources):
		a.notify(ctx, "Live metrics could not be refreshed. Showing the last known values.", domain.SeverityError)
	default:
		a.notify(ctx, fmt.Sprintf("Live metrics refreshed with %d source(s) unavailable.", failed), domain.SeverityWarning)
	}
	return report, nil
}

// RefreshAudit runs the page audit alone. It needs no user credential.
func (a *MetricsAggregator) RefreshAudit(ctx context.Context) (domain.RefreshReport, error) {
	c := a.newCycle()
	report := a.runCycle(ctx, c, map[domain.SourceName]func(context.Context) sourceResult{
		domain.SourcePageAudit: a.fetchPageAudit,
	})
	_, live := a.session.AccessToken()
	report.Live = live
	if err := a.persist(ctx, live); err != nil {
		return report, err
	}
	return report, nil
}

func (a *MetricsAggregator) Dashboard() domain.DashboardSnapshot {
	return a.board.Snapshot()
}

func (a *MetricsAggregator) runCycle(
	ctx context.Context,
	c cycle,
	fetchers map[domain.SourceName]func(context.Context) sourceResult,
) domain.RefreshReport {
	results := make(chan sourceResult, len(fetchers))
	var wg sync.WaitGroup
	for source, fetch := range fetchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := fetch(ctx)
			res.source = source
			res.elapsed = time.Since(start)
			results <- res
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	report := domain.RefreshReport{
		CycleID:  c.id,
		Sequence: c.seq,
		Sources:  make(map[domain.SourceName]domain.SourceOutcome, len(fetchers)),
	}
	for res := range results {
		outcome := a.settle(ctx, c, res)
		report.Sources[res.source] = outcome
		a.observer.ObserveFetch(res.source, outcome.Status, res.elapsed)
	}
	report.Settled = a.now().UTC()
	a.logger.Info("refresh_cycle_settled", "cycle_id", c.id, "sequence", c.seq, "sources", len(report.Sources))
	return report
}

// settle applies one source result unless a newer cycle already wrote that
// source.
func (a *MetricsAggregator) settle(ctx context.Context, c cycle, res sourceResult) domain.SourceOutcome {
	attrs := []any{"cycle_id", c.id, "source", string(res.source)}

	if res.err != nil {
		switch {
		case domain.IsKind(res.err, domain.ErrNotConfigured):
			return domain.SourceOutcome{Status: domain.OutcomeSkipped, Error: res.err.Error()}
		case domain.IsKind(res.err, domain.ErrQuotaDeferred):
			a.logger.Info("source_deferred_by_quota", attrs...)
			return domain.SourceOutcome{Status: domain.OutcomeSkipped, Error: res.err.Error()}
		case domain.IsKind(res.err, domain.ErrUnauthorized):
			a.logger.Warn("source_auth_expired", append(attrs, "error", res.err)...)
			a.session.HandleUnauthorized(ctx, res.source)
			return domain.SourceOutcome{Status: domain.OutcomeExpired, Error: res.err.Error()}
		case domain.IsKind(res.err, domain.ErrForbidden):
			a.logger.Error("source_permission_denied", append(attrs, "hint", permissionHint(res.source), "error", res.err)...)
			return domain.SourceOutcome{Status: domain.OutcomeForbidden, Error: res.err.Error()}
		default:
			a.logger.Warn("source_fetch_failed", append(attrs, "error", res.err)...)
			return domain.SourceOutcome{Status: domain.OutcomeFailed, Error: res.err.Error()}
		}
	}

	// An empty report means the window has no data yet, not that it is zero.
	if res.empty {
		a.logger.Info("source_no_rows", attrs...)
		return domain.SourceOutcome{Status: domain.OutcomeEmpty}
	}

	a.mu.Lock()
	if last := a.applied[res.source]; last > c.seq {
		a.mu.Unlock()
		a.observer.ObserveStaleDrop(res.source)
		a.logger.Info("stale_source_result_dropped", append(attrs, "applied_sequence", last, "sequence", c.seq)...)
		return domain.SourceOutcome{Status: domain.OutcomeStale}
	}
	a.applied[res.source] = c.seq

	keys := make([]string, 0, len(res.metrics))
	for key := range res.metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		a.board.UpdateMetric(key, res.metrics[key])
	}
	if res.rankings != nil {
		a.board.SetRankings(res.rankings)
	}
	a.mu.Unlock()

	return domain.SourceOutcome{Status: domain.OutcomeOK}
}

func (a *MetricsAggregator) fetchTraffic(ctx context.Context, token string, window domain.ReportWindow) sourceResult {
	if a.traffic == nil {
		return sourceResult{err: domain.WrapError(domain.ErrNotConfigured, "traffic report", fmt.Errorf("no traffic source"))}
	}
	rows, err := a.traffic.FetchTraffic(ctx, token, window)
	if err != nil {
		return sourceResult{err: err}
	}
	if len(rows) == 0 {
		return sourceResult{empty: true}
	}
	return sourceResult{metrics: domain.AggregateTraffic(rows).Metrics()}
}

func (a *MetricsAggregator) fetchSearch(ctx context.Context, token string, window domain.ReportWindow) sourceResult {
	if a.search == nil {
		return sourceResult{err: domain.WrapError(domain.ErrNotConfigured, "search report", fmt.Errorf("no search source"))}
	}
	rows, err := a.search.FetchSearch(ctx, token, window)
	if err != nil {
		return sourceResult{err: err}
	}
	if len(rows) == 0 {
		return sourceResult{empty: true}
	}
	res := sourceResult{metrics: domain.AggregateSearch(rows).Metrics()}

	queries, err := a.search.FetchTopQueries(ctx, token, window, a.topQueriesLimit)
	if err != nil {
		a.logger.Warn("top_queries_fetch_failed", "error", err)
		return res
	}
	res.rankings = domain.TopRankings(queries, a.topQueriesShown)
	return res
}

func (a *MetricsAggregator) fetchPageAudit(ctx context.Context) sourceResult {
	if a.pageAudit == nil {
		return sourceResult{err: domain.WrapError(domain.ErrNotConfigured, "page audit", fmt.Errorf("no page audit source"))}
	}
	audit, err := a.pageAudit.Audit(ctx)
	if err != nil {
		return sourceResult{err: err}
	}
	return sourceResult{metrics: audit.Metrics()}
}

func (a *MetricsAggregator) persist(ctx context.Context, live bool) error {
	a.board.Touch(a.now(), live)
	if a.snapshots == nil {
		return nil
	}
	return a.snapshots.SaveDashboard(ctx, a.board.Snapshot())
}

func (a *MetricsAggregator) notify(ctx context.Context, message string, severity domain.Severity) {
	a.notifier.Notify(ctx, domain.Notification{
		Message:   message,
		Severity:  severity,
		CreatedAt: a.now().UTC(),
	})
}

func permissionHint(source domain.SourceName) string {
	switch source {
	case domain.SourceTraffic:
		return "check GA4_PROPERTY_ID and that the signed-in account can read it"
	case domain.SourceSearch:
		return "check SITE_URL matches a verified Search Console property"
	case domain.SourcePageAudit:
		return "check GOOGLE_API_KEY has PageSpeed Insights enabled"
	default:
		return ""
	}
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(domain.SourceName, string, time.Duration) {}
func (nopObserver) ObserveCycle(bool)                                     {}
func (nopObserver) ObserveStaleDrop(domain.SourceName)                    {}
