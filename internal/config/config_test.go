package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"API_ADDR", "STORE_DRIVER", "STORAGE_NAMESPACE", "GOOGLE_CLIENT_ID", "SITE_URL",
		"AUTOSAVE_INTERVAL", "LIVE_REFRESH_INTERVAL", "AUDIT_INTERVAL", "PROJECT_START", "LAUNCH_AFTER_DAYS",
		"TOP_QUERIES_LIMIT", "TOP_QUERIES_SHOWN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.APIAddr != "127.0.0.1:8787" {
		t.Fatalf("expected loopback api addr, got %q", cfg.APIAddr)
	}
	if cfg.StoreDriver != "bolt" || cfg.StorageNamespace != "mileiq" {
		t.Fatalf("unexpected store defaults %q %q", cfg.StoreDriver, cfg.StorageNamespace)
	}
	if cfg.AutosaveInterval != 30*time.Second || cfg.LiveRefreshInterval != 5*time.Minute || cfg.AuditInterval != time.Hour {
		t.Fatalf("unexpected intervals %v %v %v", cfg.AutosaveInterval, cfg.LiveRefreshInterval, cfg.AuditInterval)
	}
	if !cfg.ProjectStart.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) || cfg.LaunchAfterDays != 90 {
		t.Fatalf("unexpected timeline %v + %d", cfg.ProjectStart, cfg.LaunchAfterDays)
	}
	if cfg.TopQueriesLimit != 10 || cfg.TopQueriesShown != 4 {
		t.Fatalf("unexpected top query limits %d/%d", cfg.TopQueriesLimit, cfg.TopQueriesShown)
	}
	if cfg.GoogleConfigured() {
		t.Fatalf("expected google integration to be unconfigured")
	}
}

func TestLoadTreatsPlaceholdersAsMissing(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "YOUR_CLIENT_ID_HERE")
	t.Setenv("GOOGLE_API_KEY", "your-api-key")
	t.Setenv("GA4_PROPERTY_ID", "<property>")

	cfg := Load()
	if cfg.GoogleClientID != "" || cfg.GoogleAPIKey != "" || cfg.GA4PropertyID != "" {
		t.Fatalf("expected placeholders to be dropped, got %q %q %q", cfg.GoogleClientID, cfg.GoogleAPIKey, cfg.GA4PropertyID)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "123.apps.googleusercontent.com")
	t.Setenv("LIVE_REFRESH_INTERVAL", "90s")
	t.Setenv("AUTOSAVE_INTERVAL", "nonsense")
	t.Setenv("PROJECT_START", "2025-03-01")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_ENABLED", "false")

	cfg := Load()
	if !cfg.GoogleConfigured() {
		t.Fatalf("expected google integration to be configured")
	}
	if cfg.LiveRefreshInterval != 90*time.Second {
		t.Fatalf("expected 90s refresh, got %v", cfg.LiveRefreshInterval)
	}
	if cfg.AutosaveInterval != 30*time.Second {
		t.Fatalf("expected invalid duration to fall back, got %v", cfg.AutosaveInterval)
	}
	if cfg.ProjectStart.Month() != time.March {
		t.Fatalf("unexpected project start %v", cfg.ProjectStart)
	}
	if cfg.StoreDriver != "sqlite" || cfg.APIRateLimitRPS != 2.5 || cfg.BreakerEnabled {
		t.Fatalf("unexpected overrides %q %v %v", cfg.StoreDriver, cfg.APIRateLimitRPS, cfg.BreakerEnabled)
	}
}

func TestDefaultSessionDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := defaultSessionDir(); got != "" {
		t.Fatalf("expected memory-only session, got %q", got)
	}
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := defaultSessionDir(); got != "/run/user/1000/"+AppName {
		t.Fatalf("unexpected session dir %q", got)
	}
}
