package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/ga4"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/googleapi/uareporting"
)

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		StoreDriver:         driver,
		StorePath:           filepath.Join(dir, "hub.db"),
		StorageNamespace:    "mileiq",
		UploadDir:           filepath.Join(dir, "uploads"),
		SessionDir:          filepath.Join(dir, "session"),
		SiteURL:             "https://mileiq.com",
		AutosaveInterval:    30 * time.Second,
		LiveRefreshInterval: 5 * time.Minute,
		AuditInterval:       time.Hour,
		ProjectStart:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		LaunchAfterDays:     90,
		NotificationTTL:     time.Minute,
		RetryMaxAttempts:    1,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresDefaultChecklist(t *testing.T) {
	for _, driver := range []string{"bolt", "sqlite", "memory"} {
		t.Run(driver, func(t *testing.T) {
			app, err := New(context.Background(), testConfig(t, driver), Options{Logger: quietLogger()})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer app.Close()

			view := app.Hub.Overview(context.Background())
			if view.Progress.Total != 41 {
				t.Fatalf("expected 41 checklist items, got %d", view.Progress.Total)
			}
			if len(view.Checkpoints) != 6 {
				t.Fatalf("expected 6 critical path checkpoints, got %d", len(view.Checkpoints))
			}
			if view.Session.Configured {
				t.Fatalf("expected sign-in to be unconfigured without a client id")
			}
			if view.Dashboard.Metrics[domain.MetricTraffic] == "" {
				t.Fatalf("expected sample dashboard after start")
			}
		})
	}
}

func TestCloseSavesProgress(t *testing.T) {
	cfg := testConfig(t, "bolt")

	app, err := New(context.Background(), cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	id := app.Progress.Items()[0].ID
	if _, err := app.Progress.Toggle(id); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	app.Close()
	app.Close()

	reopened, err := New(context.Background(), cfg, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reopened.Close()
	if got := reopened.Progress.Snapshot().Completed; got != 1 {
		t.Fatalf("expected toggled item to survive restart, got %d completed", got)
	}
}

func TestNewRejectsUnknownStoreDriver(t *testing.T) {
	if _, err := New(context.Background(), testConfig(t, "redis"), Options{Logger: quietLogger()}); err == nil {
		t.Fatalf("expected error for unknown store driver")
	}
}

func TestOpenStoreMemoryDriver(t *testing.T) {
	ctx := context.Background()
	store, closeFn, err := openStore(ctx, testConfig(t, "memory"))
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer closeFn()

	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, ok, err := store.Get(ctx, "k"); err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v, %v", got, ok, err)
	}
}

func TestTrafficSourceSelection(t *testing.T) {
	api := googleapi.NewClient(time.Second, nil)

	cfg := config.Config{TrafficProvider: "ga4"}
	if src := trafficSource(cfg, api, quietLogger()); src != nil {
		t.Fatalf("expected no traffic source without a property id, got %T", src)
	}
	cfg.GA4PropertyID = "123"
	if _, ok := trafficSource(cfg, api, quietLogger()).(*ga4.Client); !ok {
		t.Fatalf("expected GA4 client")
	}
	cfg = config.Config{TrafficProvider: "ua", GAViewID: "456"}
	if _, ok := trafficSource(cfg, api, quietLogger()).(*uareporting.Client); !ok {
		t.Fatalf("expected UA reporting client")
	}
	cfg.TrafficProvider = "matomo"
	if src := trafficSource(cfg, api, quietLogger()); src != nil {
		t.Fatalf("expected nil for unknown provider, got %T", src)
	}
}

func TestAuditLimiterSpacing(t *testing.T) {
	if auditLimiter(0) != nil {
		t.Fatalf("expected nil limiter for zero budget")
	}
	limiter := auditLimiter(6)
	if limiter.Limit() != rate.Every(10*time.Minute) {
		t.Fatalf("expected one audit every 10m, got limit %v", limiter.Limit())
	}
}
