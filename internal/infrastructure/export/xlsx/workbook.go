package xlsx

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const (
	sheetChecklist = "Checklist"
	sheetUploads   = "Uploads"
	sheetDashboard = "Dashboard"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Write renders an export as a workbook with one sheet each for the checklist,
// the upload metadata and the dashboard values.
func Write(w io.Writer, items []domain.ChecklistItem, doc domain.ExportDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetChecklist); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeChecklist(f, items, doc); err != nil {
		return err
	}
	if err := writeUploads(f, items, doc); err != nil {
		return err
	}
	if err := writeDashboard(f, doc); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeChecklist(f *excelize.File, items []domain.ChecklistItem, doc domain.ExportDocument) error {
	rows := [][]any{{"ID", "Section", "Task", "Done", "Files"}}
	for _, item := range items {
		rows = append(rows, []any{item.ID, item.Section, item.Title, doc.Progress[item.ID], len(doc.Files[item.ID])})
	}
	rows = append(rows, []any{}, []any{"Exported", doc.ExportDate})
	if err := setRows(f, sheetChecklist, rows); err != nil {
		return err
	}
	return f.SetColWidth(sheetChecklist, "C", "C", 60)
}

func writeUploads(f *excelize.File, items []domain.ChecklistItem, doc domain.ExportDocument) error {
	if _, err := f.NewSheet(sheetUploads); err != nil {
		return fmt.Errorf("create %s sheet: %w", sheetUploads, err)
	}
	rows := [][]any{{"Item", "File", "Size", "Type", "Uploaded"}}
	seen := make(map[string]bool, len(items))
	appendItem := func(id string) {
		for _, rec := range doc.Files[id] {
			rows = append(rows, []any{id, rec.Name, rec.Size, rec.Type, rec.UploadDate})
		}
		seen[id] = true
	}
	for _, item := range items {
		appendItem(item.ID)
	}
	// Uploads for ids that left the catalog still belong in the export.
	var extra []string
	for id := range doc.Files {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		appendItem(id)
	}
	return setRows(f, sheetUploads, rows)
}

func writeDashboard(f *excelize.File, doc domain.ExportDocument) error {
	if _, err := f.NewSheet(sheetDashboard); err != nil {
		return fmt.Errorf("create %s sheet: %w", sheetDashboard, err)
	}
	rows := [][]any{{"Metric", "Value"}}
	if doc.Dashboard != nil {
		keys := make([]string, 0, len(doc.Dashboard.Metrics))
		for k := range doc.Dashboard.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, []any{k, doc.Dashboard.Metrics[k]})
		}
		for _, r := range doc.Dashboard.Rankings {
			rows = append(rows, []any{"ranking: " + r.Keyword, r.Position})
		}
		if !doc.Dashboard.LastUpdated.IsZero() {
			rows = append(rows, []any{"lastUpdated", doc.Dashboard.LastUpdated.UTC().Format("2006-01-02T15:04:05Z")})
		}
	}
	return setRows(f, sheetDashboard, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
