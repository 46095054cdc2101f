package domain

import (
	"math"
	"time"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

const maxTasksInProgress = 5

type Timeline struct {
	ProjectStart time.Time
	LaunchAfter  time.Duration
}

func (t Timeline) LaunchDate() time.Time {
	return t.ProjectStart.Add(t.LaunchAfter)
}

// DaysRemaining rounds partial days up and never goes below zero.
func (t Timeline) DaysRemaining(now time.Time) int {
	left := t.LaunchDate().Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours() / 24))
}

type MigrationStats struct {
	Completed     int       `json:"completed"`
	InProgress    int       `json:"inProgress"`
	Remaining     int       `json:"remaining"`
	Percentage    int       `json:"percentage"`
	Band          string    `json:"band"`
	DaysRemaining int       `json:"daysRemaining"`
	LaunchDate    string    `json:"launchDate"`
	Risk          RiskLevel `json:"risk"`
}

func NewMigrationStats(snapshot ProgressSnapshot, timeline Timeline, now time.Time) MigrationStats {
	days := timeline.DaysRemaining(now)
	remaining := snapshot.Remaining()
	return MigrationStats{
		Completed:     snapshot.Completed,
		InProgress:    min(maxTasksInProgress, remaining),
		Remaining:     remaining,
		Percentage:    snapshot.Percentage,
		Band:          string(BandFor(snapshot)),
		DaysRemaining: days,
		LaunchDate:    timeline.LaunchDate().Format("2006-01-02"),
		Risk:          AssessRisk(snapshot.Percentage, days),
	}
}

func AssessRisk(percentage, daysRemaining int) RiskLevel {
	switch {
	case percentage < 20 && daysRemaining < 30:
		return RiskHigh
	case percentage < 50 && daysRemaining < 45:
		return RiskMedium
	default:
		return RiskLow
	}
}
