package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/config"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
	"github.com/JLcilliers/MileIQ-Migration/internal/core/ports"
	"github.com/JLcilliers/MileIQ-Migration/internal/infrastructure/export/xlsx"
	"github.com/JLcilliers/MileIQ-Migration/internal/observability/metrics"
)

const serviceName = "hub-api"

type RouterDeps struct {
	Hub           ports.OverviewService
	Progress      ports.ProgressService
	Session       ports.SessionService
	Metrics       ports.MetricsService
	Notifications ports.NotificationFeed
	Contract      *Contract
	HTTPMetrics   *metrics.HTTPServerMetrics
	Logger        *slog.Logger
}

type Router struct {
	cfg           config.Config
	hub           ports.OverviewService
	progress      ports.ProgressService
	session       ports.SessionService
	metrics       ports.MetricsService
	notifications ports.NotificationFeed
	contract      *Contract
	httpMetrics   *metrics.HTTPServerMetrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewRouter(cfg config.Config, deps RouterDeps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:           cfg,
		hub:           deps.Hub,
		progress:      deps.Progress,
		session:       deps.Session,
		metrics:       deps.Metrics,
		notifications: deps.Notifications,
		contract:      deps.Contract,
		httpMetrics:   deps.HTTPMetrics,
		logger:        logger,
		now:           time.Now,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.httpMetrics != nil {
		mux.Handle("GET /metrics", rt.metricsHandler())
	}

	mux.HandleFunc("GET /v1/progress", rt.getProgress)
	mux.HandleFunc("POST /v1/progress/save", rt.saveProgress)
	mux.HandleFunc("POST /v1/progress/clear", rt.clearProgress)
	mux.HandleFunc("PUT /v1/checklist/{id}", rt.setItemDone)
	mux.HandleFunc("POST /v1/checklist/{id}/toggle", rt.toggleItem)
	mux.HandleFunc("POST /v1/checklist/{id}/uploads", rt.uploadFile)
	mux.HandleFunc("DELETE /v1/checklist/{id}/uploads/{index}", rt.removeUpload)
	mux.HandleFunc("GET /v1/blobs/{ref}", rt.getBlob)
	mux.HandleFunc("GET /v1/export", rt.exportSnapshot)
	mux.HandleFunc("POST /v1/import", rt.importSnapshot)

	mux.HandleFunc("GET /v1/roadmap", rt.getRoadmap)
	mux.HandleFunc("GET /v1/dashboard", rt.getDashboard)
	mux.HandleFunc("POST /v1/dashboard/refresh", rt.refreshDashboard)

	mux.HandleFunc("GET /v1/auth/status", rt.authStatus)
	mux.HandleFunc("POST /v1/auth/login", rt.login)
	mux.HandleFunc("POST /v1/auth/logout", rt.logout)
	mux.HandleFunc("POST /v1/auth/validate", rt.validateSession)
	mux.HandleFunc("GET /v1/notifications", rt.listNotifications)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 250*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(serviceName, handler)
	}
	handler = localHostMiddleware(handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	if rt.contract == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "api contract not loaded"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(rt.contract.JSON)
}

// metricsHandler refreshes the point-in-time gauges before each scrape.
func (rt *Router) metricsHandler() http.Handler {
	inner := rt.httpMetrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.httpMetrics.SetProgress(rt.progress.Snapshot())
		rt.httpMetrics.SetAuthState(rt.session.Status().State)
		inner.ServeHTTP(w, r)
	})
}

func (rt *Router) getProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.hub.Overview(r.Context()))
}

func (rt *Router) saveProgress(w http.ResponseWriter, r *http.Request) {
	if err := rt.progress.Save(r.Context()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.progress.Snapshot())
}

func (rt *Router) clearProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.hub.ClearAll(r.Context(), req.Confirm); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type itemState struct {
	ID       string                  `json:"id"`
	Done     bool                    `json:"done"`
	Progress domain.ProgressSnapshot `json:"progress"`
}

func (rt *Router) setItemDone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Done *bool `json:"done"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Done == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'done' is required"})
		return
	}
	id := r.PathValue("id")
	if err := rt.progress.SetDone(id, *req.Done); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemState{ID: id, Done: *req.Done, Progress: rt.progress.Snapshot()})
}

func (rt *Router) toggleItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	done, err := rt.progress.Toggle(id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemState{ID: id, Done: done, Progress: rt.progress.Snapshot()})
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	rec, err := rt.progress.AttachFile(
		r.Context(),
		r.PathValue("id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (rt *Router) removeUpload(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "upload index must be an integer"})
		return
	}
	if err := rt.progress.RemoveUpload(r.Context(), r.PathValue("id"), index); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getBlob(w http.ResponseWriter, r *http.Request) {
	rc, err := rt.progress.OpenBlob(r.Context(), r.PathValue("ref"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		rt.logger.Warn("blob_stream_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

func (rt *Router) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	now := rt.now()
	doc, err := rt.progress.ExportSnapshot(r.Context(), now)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	switch format := strings.ToLower(r.URL.Query().Get("format")); format {
	case "", "json":
		w.Header().Set("Content-Disposition", attachment(rt.progress.ExportFileName(now, "json")))
		writeJSON(w, http.StatusOK, doc)
	case "xlsx":
		var buf bytes.Buffer
		if err := xlsx.Write(&buf, rt.progress.Items(), doc); err != nil {
			rt.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", xlsx.ContentType)
		w.Header().Set("Content-Disposition", attachment(rt.progress.ExportFileName(now, "xlsx")))
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unsupported export format %q", format)})
	}
}

func (rt *Router) importSnapshot(w http.ResponseWriter, r *http.Request) {
	var doc domain.ExportDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := rt.progress.Import(r.Context(), doc); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.progress.Snapshot())
}

func (rt *Router) getRoadmap(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.hub.Roadmap())
}

func (rt *Router) getDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.metrics.Dashboard())
}

func (rt *Router) refreshDashboard(w http.ResponseWriter, r *http.Request) {
	report, err := rt.metrics.Refresh(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) authStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.session.Status())
}

func (rt *Router) login(w http.ResponseWriter, r *http.Request) {
	status, err := rt.session.RequestInteractiveGrant(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) logout(w http.ResponseWriter, r *http.Request) {
	if err := rt.session.Revoke(r.Context()); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.session.Status())
}

func (rt *Router) validateSession(w http.ResponseWriter, r *http.Request) {
	status, err := rt.session.Validate(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (rt *Router) listNotifications(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		since = parsed
	}
	list := []domain.Notification{}
	if rt.notifications != nil {
		list = append(list, rt.notifications.Recent(since)...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
