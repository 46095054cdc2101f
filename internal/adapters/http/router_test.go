package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/usecase"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/notify"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/session/filestore"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/storage/blobfs"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/storage/boltkv"
	"github.com/JLcilliers/MileIQ-Migration/internal/observability/metrics"
)

const testHost = "127.0.0.1:8787"

type testEnv struct {
	handler  http.Handler
	progress *usecase.ProgressStore
	feed     *notify.Feed
}

func newTestEnv(t *testing.T, cfg config.Config) testEnv {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog, err := domain.NewCatalog([]domain.CatalogItem{
		{ID: "crawl", Title: "Crawl the site", Section: "pre"},
		{ID: "redirects", Title: "Build redirect map", Section: "mapping"},
		{ID: "dns", Title: "DNS cutover", Section: "launch"},
		{ID: "report", Title: "Post-launch report", Section: "launch"},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	kv, _ := boltkv.Open("")
	blobs, err := blobfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobfs.New() error = %v", err)
	}
	sessions, _ := filestore.New("")
	feed := notify.NewFeed(logger, time.Minute, 20)

	progress := usecase.NewProgressStore(catalog, kv, blobs, "mileiq", logger)
	if err := progress.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	session := usecase.NewSessionManager(usecase.SessionManagerOptions{Store: sessions, Notifier: feed, Logger: logger})
	aggregator := usecase.NewMetricsAggregator(usecase.MetricsAggregatorOptions{
		Session:   session,
		Snapshots: progress,
		Notifier:  feed,
		Logger:    logger,
	})
	if err := aggregator.InitializeDashboard(ctx); err != nil {
		t.Fatalf("InitializeDashboard() error = %v", err)
	}
	hub := usecase.NewHub(usecase.HubOptions{
		Progress:    progress,
		Metrics:     aggregator,
		Session:     session,
		Roadmap:     domain.NewRoadmap(nil, nil),
		Timeline:    domain.Timeline{ProjectStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), LaunchAfter: 90 * 24 * time.Hour},
		Checkpoints: []string{"Benchmarks", "Launch"},
	})
	contract, err := LoadContract(ctx)
	if err != nil {
		t.Fatalf("LoadContract() error = %v", err)
	}

	router := NewRouter(cfg, RouterDeps{
		Hub:           hub,
		Progress:      progress,
		Session:       session,
		Metrics:       aggregator,
		Notifications: feed,
		Contract:      contract,
		HTTPMetrics:   metrics.NewHTTPServerMetrics(serviceName),
		Logger:        logger,
	})
	return testEnv{handler: router.Handler(), progress: progress, feed: feed}
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Host = testHost
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := do(t, env.handler, http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestToggleSaveAndProgress(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	res := do(t, env.handler, http.MethodPost, "/v1/checklist/crawl/toggle", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("toggle expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var state itemState
	_ = json.NewDecoder(res.Body).Decode(&state)
	if !state.Done || state.Progress.Percentage != 25 {
		t.Fatalf("unexpected toggle state %+v", state)
	}

	res = do(t, env.handler, http.MethodPut, "/v1/checklist/dns", strings.NewReader(`{"done":true}`))
	if res.Code != http.StatusOK {
		t.Fatalf("set expected 200, got %d", res.Code)
	}

	res = do(t, env.handler, http.MethodPost, "/v1/progress/save", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("save expected 200, got %d", res.Code)
	}

	res = do(t, env.handler, http.MethodGet, "/v1/progress", nil)
	var view domain.HubView
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Progress.Completed != 2 || view.Progress.Percentage != 50 {
		t.Fatalf("unexpected progress %+v", view.Progress)
	}
	if len(view.Roadmap.Phases) != 6 || view.Roadmap.Phases[2].State != domain.PhaseActive {
		t.Fatalf("unexpected roadmap %+v", view.Roadmap.Phases)
	}
}

func TestUnknownItemReturns404(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := do(t, env.handler, http.MethodPost, "/v1/checklist/nope/toggle", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSetItemRequiresDoneField(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := do(t, env.handler, http.MethodPut, "/v1/checklist/crawl", strings.NewReader(`{}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestClearRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	_, _ = env.progress.Toggle("crawl")

	res := do(t, env.handler, http.MethodPost, "/v1/progress/clear", strings.NewReader(`{"confirm":false}`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirmation, got %d", res.Code)
	}
	if env.progress.Snapshot().Completed != 1 {
		t.Fatalf("expected progress to survive an unconfirmed clear")
	}

	res = do(t, env.handler, http.MethodPost, "/v1/progress/clear", strings.NewReader(`{"confirm":true}`))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if env.progress.Snapshot().Completed != 0 {
		t.Fatalf("expected progress to be cleared")
	}
}

func TestUploadDownloadAndRemove(t *testing.T) {
	env := newTestEnv(t, config.Config{MaxUploadBytes: 1 << 20})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "redirects.csv")
	_, _ = part.Write([]byte("old,new\n/a,/b\n"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/checklist/redirects/uploads", &body)
	req.Host = testHost
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusCreated {
		t.Fatalf("upload expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var rec domain.UploadRecord
	_ = json.NewDecoder(res.Body).Decode(&rec)
	if rec.Name != "redirects.csv" || rec.Size != "14 B" {
		t.Fatalf("unexpected upload record %+v", rec)
	}

	res = do(t, env.handler, http.MethodGet, "/v1/blobs/"+rec.BlobRef, nil)
	if res.Code != http.StatusOK || res.Body.String() != "old,new\n/a,/b\n" {
		t.Fatalf("blob download = %d %q", res.Code, res.Body.String())
	}

	res = do(t, env.handler, http.MethodDelete, "/v1/checklist/redirects/uploads/x", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", res.Code)
	}
	res = do(t, env.handler, http.MethodDelete, "/v1/checklist/redirects/uploads/0", nil)
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	res = do(t, env.handler, http.MethodDelete, "/v1/checklist/redirects/uploads/0", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing upload, got %d", res.Code)
	}
}

func TestExportAndImport(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	_, _ = env.progress.Toggle("crawl")

	res := do(t, env.handler, http.MethodGet, "/v1/export", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d", res.Code)
	}
	if cd := res.Header().Get("Content-Disposition"); !strings.Contains(cd, "mileiq_migration_checklist_") || !strings.HasSuffix(cd, `.json"`) {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	exported := res.Body.Bytes()
	var doc domain.ExportDocument
	if err := json.Unmarshal(exported, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if !doc.Progress["crawl"] || len(doc.Progress) != 4 || doc.Dashboard == nil {
		t.Fatalf("unexpected export %+v", doc)
	}

	res = do(t, env.handler, http.MethodGet, "/v1/export?format=xlsx", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Header().Get("Content-Type"), "spreadsheetml") {
		t.Fatalf("xlsx export = %d %q", res.Code, res.Header().Get("Content-Type"))
	}

	res = do(t, env.handler, http.MethodGet, "/v1/export?format=pdf", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", res.Code)
	}

	_, _ = env.progress.Toggle("crawl")
	res = do(t, env.handler, http.MethodPost, "/v1/import", bytes.NewReader(exported))
	if res.Code != http.StatusOK {
		t.Fatalf("import expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if env.progress.Snapshot().Completed != 1 {
		t.Fatalf("expected imported progress to restore 1 completed item")
	}
}

func TestDashboardFallsBackToSampleData(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	res := do(t, env.handler, http.MethodPost, "/v1/dashboard/refresh", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("refresh expected 200, got %d", res.Code)
	}
	var report domain.RefreshReport
	_ = json.NewDecoder(res.Body).Decode(&report)
	if report.Live || report.Sources[domain.SourceTraffic].Status != domain.OutcomeSkipped {
		t.Fatalf("unexpected report %+v", report)
	}

	res = do(t, env.handler, http.MethodGet, "/v1/dashboard", nil)
	var snap domain.DashboardSnapshot
	_ = json.NewDecoder(res.Body).Decode(&snap)
	if snap.Metrics[domain.MetricTraffic] == "" {
		t.Fatalf("expected sample traffic value, got %+v", snap.Metrics)
	}
}

func TestLoginWithoutClientIDIsPreconditionFailed(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	res := do(t, env.handler, http.MethodPost, "/v1/auth/login", nil)
	if res.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", res.Code)
	}

	res = do(t, env.handler, http.MethodGet, "/v1/auth/status", nil)
	var status domain.SessionStatus
	_ = json.NewDecoder(res.Body).Decode(&status)
	if status.State != domain.SessionNone || status.Configured {
		t.Fatalf("unexpected status %+v", status)
	}

	res = do(t, env.handler, http.MethodPost, "/v1/auth/logout", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("logout expected 200, got %d", res.Code)
	}
}

func TestNotificationsSince(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.feed.Notify(context.Background(), domain.Notification{Message: "hello"})

	res := do(t, env.handler, http.MethodGet, "/v1/notifications", nil)
	var body struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	_ = json.NewDecoder(res.Body).Decode(&body)
	if len(body.Notifications) == 0 {
		t.Fatalf("expected notifications")
	}

	res = do(t, env.handler, http.MethodGet, "/v1/notifications?since=yesterday", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", res.Code)
	}
}

func TestMetricsAndContractEndpoints(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	_ = do(t, env.handler, http.MethodGet, "/v1/roadmap", nil)

	res := do(t, env.handler, http.MethodGet, "/metrics", nil)
	if !strings.Contains(res.Body.String(), "hub_checklist_completion_percent") {
		t.Fatalf("expected checklist gauge in metrics output")
	}

	res = do(t, env.handler, http.MethodGet, "/openapi.json", nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"/v1/checklist/{id}/toggle"`) {
		t.Fatalf("unexpected contract response %d", res.Code)
	}
}

func TestContractDescribesEveryRoute(t *testing.T) {
	contract, err := LoadContract(context.Background())
	if err != nil {
		t.Fatalf("LoadContract() error = %v", err)
	}
	routes := map[string][]string{
		"/healthz":                           {http.MethodGet},
		"/v1/progress":                       {http.MethodGet},
		"/v1/progress/save":                  {http.MethodPost},
		"/v1/progress/clear":                 {http.MethodPost},
		"/v1/checklist/{id}":                 {http.MethodPut},
		"/v1/checklist/{id}/toggle":          {http.MethodPost},
		"/v1/checklist/{id}/uploads":         {http.MethodPost},
		"/v1/checklist/{id}/uploads/{index}": {http.MethodDelete},
		"/v1/blobs/{ref}":                    {http.MethodGet},
		"/v1/export":                         {http.MethodGet},
		"/v1/import":                         {http.MethodPost},
		"/v1/roadmap":                        {http.MethodGet},
		"/v1/dashboard":                      {http.MethodGet},
		"/v1/dashboard/refresh":              {http.MethodPost},
		"/v1/auth/status":                    {http.MethodGet},
		"/v1/auth/login":                     {http.MethodPost},
		"/v1/auth/logout":                    {http.MethodPost},
		"/v1/auth/validate":                  {http.MethodPost},
		"/v1/notifications":                  {http.MethodGet},
	}
	for path, methods := range routes {
		item := contract.Doc.Paths.Value(path)
		if item == nil {
			t.Fatalf("contract is missing path %s", path)
		}
		for _, method := range methods {
			if item.GetOperation(method) == nil {
				t.Fatalf("contract is missing %s %s", method, path)
			}
		}
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	env := newTestEnv(t, config.Config{APIRateLimitRPS: 1, APIRateLimitBurst: 1})

	res1 := do(t, env.handler, http.MethodGet, "/v1/roadmap", nil)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}
	res2 := do(t, env.handler, http.MethodGet, "/v1/roadmap", nil)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodGet, "/v1/dashboard", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestForeignHostIsRejected(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	req.Host = "attacker.example:8787"
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusMisdirectedRequest {
		t.Fatalf("expected 421 for foreign host, got %d", res.Code)
	}

	for _, host := range []string{"localhost:8787", "[::1]:8787", "127.0.0.1"} {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Host = host
		res := httptest.NewRecorder()
		env.handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected 200 for host %s, got %d", host, res.Code)
		}
	}
}
