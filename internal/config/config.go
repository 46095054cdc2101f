package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const AppName = "migration-hub"

type Config struct {
	LogLevel string
	LogFile  string
	APIAddr  string

	StoreDriver      string
	StorePath        string
	StorageNamespace string
	CatalogPath      string
	SessionDir       string
	UploadDir        string
	MaxUploadBytes   int64

	GoogleClientID     string
	GoogleClientSecret string
	GoogleAPIKey       string
	GA4PropertyID      string
	GAViewID           string
	TrafficProvider    string
	SiteURL            string
	PageSpeedStrategy  string

	GA4BaseURL           string
	UABaseURL            string
	SearchConsoleBaseURL string
	PageSpeedBaseURL     string
	OAuthAuthURL         string
	OAuthTokenURL        string
	TokenInfoURL         string
	RevokeURL            string

	AutosaveInterval    time.Duration
	LiveRefreshInterval time.Duration
	AuditInterval       time.Duration

	ProjectStart    time.Time
	LaunchAfterDays int

	FetchTimeout       time.Duration
	ConsentTimeout     time.Duration
	ReportWindowDays   int
	TopQueriesLimit    int
	TopQueriesShown    int
	AuditsPerHour      int
	NotificationTTL    time.Duration
	APIRateLimitRPS    float64
	APIRateLimitBurst  int
	APIMaxInFlight     int
	APIShutdownTimeout time.Duration

	RetryMaxAttempts      int
	RetryInitialBackoffMs int
	RetryMaxBackoffMs     int
	BreakerEnabled        bool
	BreakerOpenTimeout    time.Duration
}

// Load reads a .env file from the working directory when one exists and then
// the process environment. Real environment variables win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LogLevel: mustEnv("LOG_LEVEL", "info"),
		LogFile:  mustEnv("LOG_FILE", ""),
		APIAddr:  mustEnv("API_ADDR", "127.0.0.1:8787"),

		StoreDriver:      strings.ToLower(mustEnv("STORE_DRIVER", "bolt")),
		StorePath:        mustEnv("STORE_PATH", defaultDataPath("hub.db")),
		StorageNamespace: mustEnv("STORAGE_NAMESPACE", "mileiq"),
		CatalogPath:      mustEnv("CATALOG_PATH", ""),
		SessionDir:       mustEnv("SESSION_DIR", defaultSessionDir()),
		UploadDir:        mustEnv("UPLOAD_DIR", ""),
		MaxUploadBytes:   int64(mustEnvInt("MAX_UPLOAD_BYTES", 25<<20)),

		GoogleClientID:     credentialEnv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: credentialEnv("GOOGLE_CLIENT_SECRET"),
		GoogleAPIKey:       credentialEnv("GOOGLE_API_KEY"),
		GA4PropertyID:      credentialEnv("GA4_PROPERTY_ID"),
		GAViewID:           credentialEnv("GA_VIEW_ID"),
		TrafficProvider:    strings.ToLower(mustEnv("TRAFFIC_PROVIDER", "ga4")),
		SiteURL:            mustEnv("SITE_URL", "https://mileiq.com"),
		PageSpeedStrategy:  mustEnv("PAGESPEED_STRATEGY", "mobile"),

		GA4BaseURL:           mustEnv("GA4_BASE_URL", "https://analyticsdata.googleapis.com"),
		UABaseURL:            mustEnv("UA_BASE_URL", "https://analyticsreporting.googleapis.com"),
		SearchConsoleBaseURL: mustEnv("SEARCH_CONSOLE_BASE_URL", "https://searchconsole.googleapis.com"),
		PageSpeedBaseURL:     mustEnv("PAGESPEED_BASE_URL", "https://www.googleapis.com"),
		OAuthAuthURL:         mustEnv("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth"),
		OAuthTokenURL:        mustEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		TokenInfoURL:         mustEnv("TOKENINFO_URL", "https://www.googleapis.com/oauth2/v1/tokeninfo"),
		RevokeURL:            mustEnv("REVOKE_URL", "https://oauth2.googleapis.com/revoke"),

		AutosaveInterval:    mustEnvDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		LiveRefreshInterval: mustEnvDuration("LIVE_REFRESH_INTERVAL", 5*time.Minute),
		AuditInterval:       mustEnvDuration("AUDIT_INTERVAL", time.Hour),

		ProjectStart:    mustEnvDate("PROJECT_START", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		LaunchAfterDays: mustEnvInt("LAUNCH_AFTER_DAYS", 90),

		FetchTimeout:       mustEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		ConsentTimeout:     mustEnvDuration("CONSENT_TIMEOUT", 5*time.Minute),
		ReportWindowDays:   mustEnvInt("REPORT_WINDOW_DAYS", 30),
		TopQueriesLimit:    mustEnvInt("TOP_QUERIES_LIMIT", 10),
		TopQueriesShown:    mustEnvInt("TOP_QUERIES_SHOWN", 4),
		AuditsPerHour:      mustEnvInt("AUDITS_PER_HOUR", 6),
		NotificationTTL:    mustEnvDuration("NOTIFICATION_TTL", 10*time.Minute),
		APIRateLimitRPS:    mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:  mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:     mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIShutdownTimeout: mustEnvDuration("API_SHUTDOWN_TIMEOUT", 10*time.Second),

		RetryMaxAttempts:      mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMs: mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 250),
		RetryMaxBackoffMs:     mustEnvInt("RETRY_MAX_BACKOFF_MS", 2000),
		BreakerEnabled:        mustEnvBool("BREAKER_ENABLED", true),
		BreakerOpenTimeout:    mustEnvDuration("BREAKER_OPEN_TIMEOUT", time.Minute),
	}
}

// GoogleConfigured reports whether interactive sign-in can be offered.
func (c Config) GoogleConfigured() bool {
	return c.GoogleClientID != ""
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// credentialEnv treats template placeholders such as YOUR_CLIENT_ID as unset.
func credentialEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if isPlaceholder(v) {
		return ""
	}
	return v
}

func isPlaceholder(v string) bool {
	upper := strings.ToUpper(v)
	return strings.HasPrefix(upper, "YOUR_") || strings.HasPrefix(upper, "YOUR-") || strings.HasPrefix(upper, "<")
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustEnvDate(key string, fallback time.Time) time.Time {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return fallback
	}
	return t
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "data", name)
	}
	return filepath.Join(dir, AppName, name)
}

// defaultSessionDir lives under XDG_RUNTIME_DIR, which is cleared at logout.
// An empty result keeps the credential in memory only.
func defaultSessionDir() string {
	runtime := os.Getenv("XDG_RUNTIME_DIR")
	if runtime == "" {
		return ""
	}
	return filepath.Join(runtime, AppName)
}
