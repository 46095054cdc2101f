package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

func TestWriteWorkbook(t *testing.T) {
	items := []domain.ChecklistItem{
		{CatalogItem: domain.CatalogItem{ID: "crawl", Title: "Crawl", Section: "pre"}, Done: true},
		{CatalogItem: domain.CatalogItem{ID: "dns", Title: "DNS", Section: "launch"}},
	}
	doc := domain.ExportDocument{
		ExportDate: "2025-02-14T09:30:00Z",
		Progress:   map[string]bool{"crawl": true, "dns": false},
		Files: map[string][]domain.UploadRecord{
			"crawl":   {{Name: "urls.csv", Size: "1.0 KiB", Type: "text/csv", UploadDate: "2025-02-14T09:00:00Z"}},
			"retired": {{Name: "old.pdf", Size: "2 B", Type: "application/pdf"}},
		},
		Dashboard: &domain.DashboardSnapshot{
			Metrics:     domain.DashboardMetrics{domain.MetricSearchCTR: "3.2%"},
			Rankings:    []domain.Ranking{{Keyword: "mileage tracker", Position: "#2"}},
			LastUpdated: time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, items, doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetChecklist)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) < 3 || rows[1][0] != "crawl" || rows[1][3] != "TRUE" || rows[1][4] != "1" {
		t.Fatalf("unexpected checklist rows %v", rows)
	}

	uploads, err := f.GetRows(sheetUploads)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(uploads) != 3 || uploads[1][1] != "urls.csv" || uploads[2][0] != "retired" {
		t.Fatalf("unexpected upload rows %v", uploads)
	}

	dash, err := f.GetRows(sheetDashboard)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(dash) != 4 || dash[1][1] != "3.2%" || dash[2][1] != "#2" {
		t.Fatalf("unexpected dashboard rows %v", dash)
	}
}
