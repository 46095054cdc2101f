package domain

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	MetricSearchImpressions = "gsc-impressions"
	MetricSearchClicks      = "gsc-clicks"
	MetricSearchCTR         = "gsc-ctr"
	MetricSearchPosition    = "gsc-position"

	MetricTraffic     = "ga-traffic"
	MetricUsers       = "ga-users"
	MetricBounceRate  = "ga-bounce"
	MetricSession     = "ga-session"
	MetricConversions = "ga-conversions"

	MetricLCP         = "cwv-lcp"
	MetricBlocking    = "cwv-fid"
	MetricLayoutShift = "cwv-cls"
	MetricPerfScore   = "cwv-score"
	MetricPerfStatus  = "cwv-status"
)

type SourceName string

const (
	SourceTraffic   SourceName = "traffic"
	SourceSearch    SourceName = "search"
	SourcePageAudit SourceName = "page_audit"
)

// DashboardMetrics maps a metric key to its display string.
type DashboardMetrics map[string]string

type Ranking struct {
	Keyword  string `json:"keyword"`
	Position string `json:"position"`
}

type DashboardSnapshot struct {
	Metrics     DashboardMetrics `json:"metrics"`
	Rankings    []Ranking        `json:"rankings,omitempty"`
	LastUpdated time.Time        `json:"lastUpdated"`
	Live        bool             `json:"live"`
}

type TrafficRow struct {
	Sessions           int64
	Users              int64
	BounceRate         float64
	AvgSessionDuration float64
	Conversions        int64
}

type SearchRow struct {
	Key         string
	Impressions int64
	Clicks      int64
	Position    float64
}

type PageAudit struct {
	LCPMillis         float64
	BlockingMillis    float64
	LayoutShiftRaw    float64
	LayoutShiftString string
	Score             float64
}

type TrafficTotals struct {
	Sessions           int64
	Users              int64
	Conversions        int64
	BounceRatePct      float64
	AvgSessionDuration float64
}

// AggregateTraffic sums counts as integers; the bounce rate is divided once by
// the row count after summing.
func AggregateTraffic(rows []TrafficRow) TrafficTotals {
	var out TrafficTotals
	if len(rows) == 0 {
		return out
	}
	var bounceSum, durationSum float64
	for _, row := range rows {
		out.Sessions += row.Sessions
		out.Users += row.Users
		out.Conversions += row.Conversions
		bounceSum += row.BounceRate
		durationSum += row.AvgSessionDuration
	}
	n := float64(len(rows))
	out.BounceRatePct = bounceSum / n * 100
	out.AvgSessionDuration = durationSum / n
	return out
}

type SearchTotals struct {
	Impressions int64
	Clicks      int64
	CTRPct      float64
	AvgPosition float64
}

// AggregateSearch computes CTR as total clicks over total impressions, never as
// a mean of per-row ratios.
func AggregateSearch(rows []SearchRow) SearchTotals {
	var out SearchTotals
	if len(rows) == 0 {
		return out
	}
	var positionSum float64
	for _, row := range rows {
		out.Impressions += row.Impressions
		out.Clicks += row.Clicks
		positionSum += row.Position
	}
	if out.Impressions > 0 {
		out.CTRPct = float64(out.Clicks) / float64(out.Impressions) * 100
	}
	out.AvgPosition = positionSum / float64(len(rows))
	return out
}

func (t TrafficTotals) Metrics() DashboardMetrics {
	return DashboardMetrics{
		MetricTraffic:     FormatNumber(t.Sessions),
		MetricUsers:       FormatNumber(t.Users),
		MetricBounceRate:  fmt.Sprintf("%.1f%%", t.BounceRatePct),
		MetricSession:     FormatDuration(t.AvgSessionDuration),
		MetricConversions: FormatNumber(t.Conversions),
	}
}

func (t SearchTotals) Metrics() DashboardMetrics {
	return DashboardMetrics{
		MetricSearchImpressions: FormatNumber(t.Impressions),
		MetricSearchClicks:      FormatNumber(t.Clicks),
		MetricSearchCTR:         fmt.Sprintf("%.1f%%", t.CTRPct),
		MetricSearchPosition:    fmt.Sprintf("%.1f", t.AvgPosition),
	}
}

func (a PageAudit) Metrics() DashboardMetrics {
	cls := a.LayoutShiftString
	if cls == "" {
		cls = fmt.Sprintf("%.2f", a.LayoutShiftRaw)
	}
	score := int(math.Round(a.Score))
	return DashboardMetrics{
		MetricLCP:         fmt.Sprintf("%.1fs", a.LCPMillis/1000),
		MetricBlocking:    fmt.Sprintf("%dms", int(math.Round(a.BlockingMillis))),
		MetricLayoutShift: cls,
		MetricPerfScore:   fmt.Sprintf("%d/100", score),
		MetricPerfStatus:  VitalsStatus(score),
	}
}

func VitalsStatus(score int) string {
	switch {
	case score >= 90:
		return "Good"
	case score >= 50:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}

// TopRankings keeps the first limit query rows in the order the provider
// returned them.
func TopRankings(rows []SearchRow, limit int) []Ranking {
	if limit > len(rows) {
		limit = len(rows)
	}
	out := make([]Ranking, 0, limit)
	for _, row := range rows[:limit] {
		out = append(out, Ranking{
			Keyword:  row.Key,
			Position: fmt.Sprintf("#%d", int(math.Round(row.Position))),
		})
	}
	return out
}

var numberPrinter = message.NewPrinter(language.English)

func FormatNumber(n int64) string {
	return numberPrinter.Sprintf("%d", n)
}

// FormatDuration renders seconds as m:ss.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func MockDashboard(now time.Time) DashboardSnapshot {
	return DashboardSnapshot{
		Metrics: DashboardMetrics{
			MetricSearchImpressions: "124,567",
			MetricSearchClicks:      "8,234",
			MetricSearchCTR:         "6.6%",
			MetricSearchPosition:    "12.4",
			MetricTraffic:           "45,678",
			MetricBounceRate:        "42.3%",
			MetricSession:           "2:34",
			MetricConversions:       "1,234",
			MetricLCP:               "2.4s",
			MetricBlocking:          "98ms",
			MetricLayoutShift:       "0.08",
			MetricPerfScore:         "92/100",
			MetricPerfStatus:        VitalsStatus(92),
		},
		Rankings: []Ranking{
			{Keyword: "mileage tracker app", Position: "#3"},
			{Keyword: "business mileage tracking", Position: "#5"},
			{Keyword: "IRS mileage reimbursement", Position: "#7"},
			{Keyword: "mileage log template", Position: "#4"},
		},
		LastUpdated: now.UTC(),
	}
}
