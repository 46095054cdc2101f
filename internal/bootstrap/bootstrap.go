package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/time/rate"

	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/usecase"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/catalog"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/ga4"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/oauth"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/pagespeed"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/searchconsole"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/uareporting"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/notify"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/resilience"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/session/filestore"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/storage/blobfs"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/storage/boltkv"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/storage/sqlitekv"
	"github.com/JLcilliers/MileIQ-Migration/internal/observability/metrics"
)

const notificationCapacity = 50

// Options carries the process-specific pieces: the API and the CLI log and
// prompt differently.
type Options struct {
	Service  string
	Logger   *slog.Logger
	Renderer ports.DashboardRenderer
	// Prompt receives the consent URL during interactive sign-in.
	Prompt io.Writer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Catalog       *catalog.Source
	Progress      *usecase.ProgressStore
	Session       *usecase.SessionManager
	Metrics       *usecase.MetricsAggregator
	Hub           *usecase.Hub
	Notifications *notify.Feed
	HTTPMetrics   *metrics.HTTPServerMetrics
	Scheduler     *usecase.Scheduler

	loaded  bool
	closed  bool
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := opts.Service
	if service == "" {
		service = config.AppName
	}
	app := &App{Config: cfg, Logger: logger}

	source, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("open checklist catalog: %w", err)
	}
	items, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checklist catalog: %w", err)
	}
	checklist, err := domain.NewCatalog(items)
	if err != nil {
		return nil, fmt.Errorf("build checklist catalog: %w", err)
	}
	app.Catalog = source

	kv, closeKV, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeKV)

	blobs, err := blobfs.New(cfg.UploadDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	app.closers = append(app.closers, blobs.Close)

	credentials, err := filestore.New(cfg.SessionDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init session store: %w", err)
	}

	app.Notifications = notify.NewFeed(logger, cfg.NotificationTTL, notificationCapacity)
	app.HTTPMetrics = metrics.NewHTTPServerMetrics(service)
	jobMetrics := metrics.NewJobMetrics(service, app.HTTPMetrics.Registry())

	executor := resilience.NewExecutor(resilienceConfig(cfg), logger)
	api := googleapi.NewClient(cfg.FetchTimeout, executor)

	tokenInfo := oauth.NewTokenInfo(api, cfg.TokenInfoURL, cfg.RevokeURL)
	sessionOpts := usecase.SessionManagerOptions{
		Verifier: tokenInfo,
		Revoker:  tokenInfo,
		Store:    credentials,
		Notifier: app.Notifications,
		Logger:   logger,
	}
	if cfg.GoogleConfigured() {
		prompt := opts.Prompt
		if prompt == nil {
			prompt = os.Stderr
		}
		sessionOpts.Consent = oauth.NewLoopbackConsent(oauth.ConsentOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			AuthURL:      cfg.OAuthAuthURL,
			TokenURL:     cfg.OAuthTokenURL,
			Prompt:       prompt,
			Open:         openBrowser,
			Timeout:      cfg.ConsentTimeout,
			Logger:       logger,
		})
	}
	app.Session = usecase.NewSessionManager(sessionOpts)

	app.Progress = usecase.NewProgressStore(checklist, kv, blobs, cfg.StorageNamespace, logger)

	aggOpts := usecase.MetricsAggregatorOptions{
		Session:         app.Session,
		Traffic:         trafficSource(cfg, api, logger),
		Snapshots:       app.Progress,
		Notifier:        app.Notifications,
		Observer:        app.HTTPMetrics,
		Logger:          logger,
		WindowDays:      cfg.ReportWindowDays,
		TopQueriesLimit: cfg.TopQueriesLimit,
		TopQueriesShown: cfg.TopQueriesShown,
	}
	if cfg.SiteURL != "" {
		aggOpts.Search = searchconsole.New(api, cfg.SearchConsoleBaseURL, cfg.SiteURL)
	}
	if cfg.GoogleAPIKey != "" {
		aggOpts.PageAudit = pagespeed.New(api, pagespeed.Options{
			BaseURL:  cfg.PageSpeedBaseURL,
			APIKey:   cfg.GoogleAPIKey,
			SiteURL:  cfg.SiteURL,
			Strategy: cfg.PageSpeedStrategy,
			Limiter:  auditLimiter(cfg.AuditsPerHour),
		})
	}
	app.Metrics = usecase.NewMetricsAggregator(aggOpts)

	app.Hub = usecase.NewHub(usecase.HubOptions{
		Progress: app.Progress,
		Metrics:  app.Metrics,
		Session:  app.Session,
		Renderer: opts.Renderer,
		Roadmap:  domain.NewRoadmap(nil, nil),
		Timeline: domain.Timeline{
			ProjectStart: cfg.ProjectStart,
			LaunchAfter:  time.Duration(cfg.LaunchAfterDays) * 24 * time.Hour,
		},
		Checkpoints: source.CriticalPath(),
	})

	if err := app.Progress.Load(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("load progress: %w", err)
	}
	app.loaded = true
	if err := app.Metrics.Restore(ctx); err != nil {
		logger.Warn("dashboard_restore_failed", "error", err)
	}
	if _, err := app.Session.Initialize(ctx); err != nil && !errors.Is(err, domain.ErrNoSession) {
		logger.Warn("session_restore_failed", "error", err)
	}

	app.Scheduler = usecase.NewScheduler(logger)
	jobs := []struct {
		name     string
		interval time.Duration
		job      func(context.Context) error
	}{
		{"autosave", cfg.AutosaveInterval, app.Progress.Save},
		{"live_refresh", cfg.LiveRefreshInterval, app.refreshLive},
		{"page_audit", cfg.AuditInterval, app.refreshAudit},
	}
	for _, j := range jobs {
		if err := app.Scheduler.Every(j.name, j.interval, jobMetrics.Wrap(j.name, j.job)); err != nil {
			app.Close()
			return nil, err
		}
	}

	logger.Info("hub_ready",
		"items", checklist.Len(),
		"store", cfg.StoreDriver,
		"google_configured", cfg.GoogleConfigured(),
		"traffic_configured", aggOpts.Traffic != nil,
		"audit_configured", aggOpts.PageAudit != nil,
	)
	return app, nil
}

// refreshLive only talks to Google while a session is open; sample data is
// already on the board otherwise.
func (a *App) refreshLive(ctx context.Context) error {
	if a.Session.Status().State != domain.SessionAuthenticated {
		return nil
	}
	_, err := a.Metrics.Refresh(ctx)
	return err
}

func (a *App) refreshAudit(ctx context.Context) error {
	_, err := a.Metrics.RefreshAudit(ctx)
	return err
}

// Close saves checklist state one last time and releases the stores. State is
// only written back if it was loaded, so a failed start cannot wipe it.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.loaded {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.Progress.Save(ctx); err != nil {
			a.Logger.Warn("final_save_failed", "error", err)
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close_failed", "error", err)
		}
	}
	a.closers = nil
}

func openStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, func() error, error) {
	switch cfg.StoreDriver {
	case "", "bolt":
		store, err := boltkv.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt store: %w", err)
		}
		return store, store.Close, nil
	case "sqlite":
		store, err := sqlitekv.Open(ctx, cfg.StorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store.Close, nil
	case "memory":
		store, err := boltkv.Open("")
		if err != nil {
			return nil, nil, fmt.Errorf("open memory store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func trafficSource(cfg config.Config, api *googleapi.Client, logger *slog.Logger) ports.TrafficSource {
	switch cfg.TrafficProvider {
	case "ua":
		if cfg.GAViewID == "" {
			return nil
		}
		return uareporting.New(api, cfg.UABaseURL, cfg.GAViewID)
	case "", "ga4":
		if cfg.GA4PropertyID == "" {
			return nil
		}
		return ga4.New(api, cfg.GA4BaseURL, cfg.GA4PropertyID)
	default:
		logger.Warn("unknown_traffic_provider", "provider", cfg.TrafficProvider)
		return nil
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.RetryMaxAttempts
	rc.RetryInitialBackoff = time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond
	rc.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond
	rc.BreakerEnabled = cfg.BreakerEnabled
	rc.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return rc
}

func auditLimiter(perHour int) *rate.Limiter {
	if perHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), 2)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
