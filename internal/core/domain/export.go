package domain

import (
	"fmt"
	"time"
)

type ExportDocument struct {
	ExportDate string                    `json:"exportDate"`
	Progress   map[string]bool           `json:"progress"`
	Files      map[string][]UploadRecord `json:"files"`
	Dashboard  *DashboardSnapshot        `json:"dashboard"`
}

func ExportFileName(namespace string, now time.Time, ext string) string {
	if ext == "" {
		ext = "json"
	}
	return fmt.Sprintf("%s_migration_checklist_%s.%s", namespace, now.UTC().Format("2006-01-02"), ext)
}
