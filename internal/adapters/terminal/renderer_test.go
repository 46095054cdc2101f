package terminal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

func TestRenderHubView(t *testing.T) {
	snapshot := domain.NewProgressSnapshot(9, 41)
	view := domain.HubView{
		Progress: snapshot,
		Roadmap:  domain.NewRoadmap(nil, nil).Project(snapshot),
		Stats: domain.NewMigrationStats(snapshot, domain.Timeline{
			ProjectStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			LaunchAfter:  90 * 24 * time.Hour,
		}, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
		Checkpoints: domain.CriticalPath([]string{"Benchmarks", "Redirects"}, 9),
		Dashboard:   domain.MockDashboard(time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)),
		Session:     domain.SessionStatus{State: domain.SessionNone},
	}

	var out bytes.Buffer
	if err := NewRenderer(&out).Render(view); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{
		"22%  9/41 tasks",
		"Launch 2025-04-01",
		"Content Audit & Mapping",
		"Benchmarks",
		"Organic traffic",
		"not configured",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in output:\n%s", want, text)
		}
	}
	if strings.Contains(text, "\x1b[") {
		t.Fatalf("expected plain output for a non-terminal writer")
	}
}

func TestRenderChecklistGroupsBySection(t *testing.T) {
	items := []domain.ChecklistItem{
		{CatalogItem: domain.CatalogItem{ID: "crawl", Title: "Crawl", Section: "pre-migration"}, Done: true},
		{CatalogItem: domain.CatalogItem{ID: "map", Title: "Map URLs", Section: "content-mapping"},
			Uploads: []domain.UploadRecord{{Name: "map.csv"}}},
	}
	var out bytes.Buffer
	if err := NewRenderer(&out).RenderChecklist(items); err != nil {
		t.Fatalf("RenderChecklist() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "[x] Crawl (crawl)") {
		t.Fatalf("expected completed item line, got:\n%s", text)
	}
	if !strings.Contains(text, "[ ] Map URLs (map) 1 file(s)") {
		t.Fatalf("expected pending item with upload count, got:\n%s", text)
	}
	if strings.Index(text, "pre-migration") > strings.Index(text, "content-mapping") {
		t.Fatalf("expected sections in catalog order")
	}
}

func TestRenderReportSortsSources(t *testing.T) {
	report := domain.RefreshReport{
		Sequence: 3,
		Live:     true,
		Sources: map[domain.SourceName]domain.SourceOutcome{
			domain.SourceTraffic:   {Status: domain.OutcomeOK},
			domain.SourcePageAudit: {Status: domain.OutcomeFailed, Error: "quota"},
		},
	}
	var out bytes.Buffer
	if err := NewRenderer(&out).RenderReport(report); err != nil {
		t.Fatalf("RenderReport() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Refresh #3 live data") {
		t.Fatalf("unexpected header:\n%s", text)
	}
	if strings.Index(text, "page_audit") > strings.Index(text, "traffic") {
		t.Fatalf("expected sources sorted by name:\n%s", text)
	}
	if !strings.Contains(text, "failed quota") {
		t.Fatalf("expected error detail:\n%s", text)
	}
}
