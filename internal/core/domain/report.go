package domain

import "time"

const ReportWindowDays = 30

// ReportWindow is the trailing aggregation window shared by traffic and search
// reports.
type ReportWindow struct {
	Start time.Time
	End   time.Time
}

func TrailingWindow(now time.Time, days int) ReportWindow {
	end := now.UTC().Truncate(24 * time.Hour)
	return ReportWindow{Start: end.AddDate(0, 0, -days), End: end}
}

const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeForbidden = "forbidden"
	OutcomeExpired   = "auth_expired"
	OutcomeStale     = "stale"
	OutcomeSkipped   = "skipped"
	OutcomeEmpty     = "no_rows"
)

type SourceOutcome struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type RefreshReport struct {
	CycleID  string                       `json:"cycleId"`
	Sequence uint64                       `json:"sequence"`
	Live     bool                         `json:"live"`
	Sources  map[SourceName]SourceOutcome `json:"sources"`
	Settled  time.Time                    `json:"settledAt"`
}

type HubView struct {
	Items       []ChecklistItem   `json:"items"`
	Progress    ProgressSnapshot  `json:"progress"`
	Roadmap     RoadmapView       `json:"roadmap"`
	Stats       MigrationStats    `json:"stats"`
	Checkpoints []CheckpointView  `json:"criticalPath"`
	Dashboard   DashboardSnapshot `json:"dashboard"`
	Session     SessionStatus     `json:"session"`
}
