package terminal

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/JLcilliers/MileIQ-Migration/internal/core/domain"
)

const barWidth = 30

var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#a6adc8")
	colorAccent  = lipgloss.Color("#74c7ec")
	colorGood    = lipgloss.Color("#a6e3a1")
	colorWarn    = lipgloss.Color("#fab387")
	colorBad     = lipgloss.Color("#f38ba8")
	colorSurface = lipgloss.Color("#45475a")
)

// Renderer draws the hub view as styled text. Colour output follows the
// capabilities of the destination writer, so a pipe or buffer gets plain text.
type Renderer struct {
	out io.Writer

	title   lipgloss.Style
	muted   lipgloss.Style
	pane    lipgloss.Style
	good    lipgloss.Style
	warn    lipgloss.Style
	bad     lipgloss.Style
	accent  lipgloss.Style
	checked lipgloss.Style
}

func NewRenderer(out io.Writer) *Renderer {
	r := lipgloss.NewRenderer(out)
	return &Renderer{
		out:   out,
		title: r.NewStyle().Foreground(colorAccent).Bold(true),
		muted: r.NewStyle().Foreground(colorMuted),
		pane: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface).
			Foreground(colorText).
			Padding(0, 1),
		good:    r.NewStyle().Foreground(colorGood),
		warn:    r.NewStyle().Foreground(colorWarn),
		bad:     r.NewStyle().Foreground(colorBad),
		accent:  r.NewStyle().Foreground(colorAccent),
		checked: r.NewStyle().Foreground(colorGood).Strikethrough(true),
	}
}

// Render writes the summary panes: progress, roadmap, stats, critical path,
// dashboard and session.
func (r *Renderer) Render(view domain.HubView) error {
	panes := []string{
		r.progressPane(view.Progress, view.Stats),
		r.roadmapPane(view.Roadmap),
		r.checkpointPane(view.Checkpoints),
		r.dashboardPane(view.Dashboard),
		r.sessionLine(view.Session),
	}
	_, err := fmt.Fprintln(r.out, lipgloss.JoinVertical(lipgloss.Left, panes...))
	return err
}

// RenderChecklist lists every item grouped by section.
func (r *Renderer) RenderChecklist(items []domain.ChecklistItem) error {
	var b strings.Builder
	section := ""
	for _, item := range items {
		if item.Section != section {
			section = item.Section
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(r.title.Render(section) + "\n")
		}
		box, title := "[ ]", item.Title
		if item.Done {
			box, title = r.good.Render("[x]"), r.checked.Render(item.Title)
		}
		fmt.Fprintf(&b, "%s %s %s", box, title, r.muted.Render("("+item.ID+")"))
		if n := len(item.Uploads); n > 0 {
			fmt.Fprintf(&b, " %s", r.accent.Render(fmt.Sprintf("%d file(s)", n)))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// RenderRoadmap writes only the roadmap pane.
func (r *Renderer) RenderRoadmap(view domain.RoadmapView) error {
	_, err := fmt.Fprintln(r.out, r.roadmapPane(view))
	return err
}

// RenderReport summarises a refresh cycle, one line per source.
func (r *Renderer) RenderReport(report domain.RefreshReport) error {
	var b strings.Builder
	mode := "sample data"
	if report.Live {
		mode = "live data"
	}
	fmt.Fprintf(&b, "%s %s\n", r.title.Render("Refresh #"+fmt.Sprint(report.Sequence)), r.muted.Render(mode))

	names := make([]string, 0, len(report.Sources))
	for name := range report.Sources {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		outcome := report.Sources[domain.SourceName(name)]
		line := fmt.Sprintf("  %-11s %s", name, r.outcomeStyle(outcome.Status).Render(outcome.Status))
		if outcome.Error != "" {
			line += " " + r.muted.Render(outcome.Error)
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *Renderer) progressPane(p domain.ProgressSnapshot, stats domain.MigrationStats) string {
	filled := barWidth * p.Percentage / 100
	bar := r.bandStyle(domain.BandFor(p)).Render(strings.Repeat("█", filled)) +
		r.muted.Render(strings.Repeat("░", barWidth-filled))

	lines := []string{
		r.title.Render("MileIQ migration"),
		fmt.Sprintf("%s %d%%  %d/%d tasks", bar, p.Percentage, p.Completed, p.Total),
		fmt.Sprintf("In progress %d  Remaining %d", stats.InProgress, stats.Remaining),
		fmt.Sprintf("Launch %s  (%d days)  Risk %s", stats.LaunchDate, stats.DaysRemaining, r.riskStyle(stats.Risk).Render(string(stats.Risk))),
	}
	return r.pane.Render(strings.Join(lines, "\n"))
}

func (r *Renderer) roadmapPane(view domain.RoadmapView) string {
	lines := []string{r.title.Render("Roadmap")}
	for i, phase := range view.Phases {
		lines = append(lines, fmt.Sprintf("%s Phase %d  %s", r.phaseMarker(phase.State), i+1, phase.Title))
	}
	for _, m := range view.Milestones {
		width := 10
		filled := int(m.Fill * float64(width))
		lines = append(lines, fmt.Sprintf("%-8s %s%s %3d%%",
			m.Label,
			r.accent.Render(strings.Repeat("▮", filled)),
			r.muted.Render(strings.Repeat("▯", width-filled)),
			m.Target,
		))
	}
	return r.pane.Render(strings.Join(lines, "\n"))
}

func (r *Renderer) checkpointPane(checkpoints []domain.CheckpointView) string {
	if len(checkpoints) == 0 {
		return ""
	}
	parts := make([]string, 0, len(checkpoints))
	for _, cp := range checkpoints {
		parts = append(parts, r.phaseMarker(cp.State)+" "+cp.Title)
	}
	return r.pane.Render(r.title.Render("Critical path") + "\n" + strings.Join(parts, "  →  "))
}

func (r *Renderer) dashboardPane(snap domain.DashboardSnapshot) string {
	source := "sample data"
	if snap.Live {
		source = "live"
	}
	lines := []string{r.title.Render("Dashboard") + " " + r.muted.Render(source)}

	rows := []struct{ label, key string }{
		{"Organic traffic", domain.MetricTraffic},
		{"Users", domain.MetricUsers},
		{"Bounce rate", domain.MetricBounceRate},
		{"Avg session", domain.MetricSession},
		{"Conversions", domain.MetricConversions},
		{"Impressions", domain.MetricSearchImpressions},
		{"Clicks", domain.MetricSearchClicks},
		{"CTR", domain.MetricSearchCTR},
		{"Avg position", domain.MetricSearchPosition},
		{"LCP", domain.MetricLCP},
		{"TBT", domain.MetricBlocking},
		{"CLS", domain.MetricLayoutShift},
		{"Perf score", domain.MetricPerfScore},
		{"Vitals", domain.MetricPerfStatus},
	}
	for _, row := range rows {
		value, ok := snap.Metrics[row.key]
		if !ok {
			value = r.muted.Render("-")
		}
		lines = append(lines, fmt.Sprintf("%-16s %s", row.label, value))
	}
	if len(snap.Rankings) > 0 {
		lines = append(lines, r.title.Render("Top rankings"))
		for _, rank := range snap.Rankings {
			lines = append(lines, fmt.Sprintf("%-5s %s", r.accent.Render(rank.Position), rank.Keyword))
		}
	}
	if !snap.LastUpdated.IsZero() {
		lines = append(lines, r.muted.Render("Last updated "+snap.LastUpdated.Local().Format("2006-01-02 15:04:05")))
	}
	return r.pane.Render(strings.Join(lines, "\n"))
}

func (r *Renderer) sessionLine(s domain.SessionStatus) string {
	switch {
	case !s.Configured:
		return r.muted.Render("Google sign-in is not configured; showing sample data.")
	case s.State == domain.SessionAuthenticated:
		return r.good.Render("Signed in to Google")
	default:
		return r.warn.Render("Not signed in. Run `hubctl login` for live data.")
	}
}

func (r *Renderer) phaseMarker(state domain.PhaseState) string {
	switch state {
	case domain.PhaseCompleted:
		return r.good.Render("●")
	case domain.PhaseActive:
		return r.accent.Render("◐")
	default:
		return r.muted.Render("○")
	}
}

func (r *Renderer) bandStyle(band domain.ProgressBand) lipgloss.Style {
	switch band {
	case domain.BandComplete, domain.BandStrong:
		return r.good
	case domain.BandSteady:
		return r.accent
	case domain.BandEarly:
		return r.warn
	default:
		return r.bad
	}
}

func (r *Renderer) riskStyle(risk domain.RiskLevel) lipgloss.Style {
	switch risk {
	case domain.RiskHigh:
		return r.bad
	case domain.RiskMedium:
		return r.warn
	default:
		return r.good
	}
}

func (r *Renderer) outcomeStyle(status string) lipgloss.Style {
	switch status {
	case domain.OutcomeOK:
		return r.good
	case domain.OutcomeSkipped, domain.OutcomeStale, domain.OutcomeEmpty:
		return r.muted
	case domain.OutcomeForbidden, domain.OutcomeExpired:
		return r.warn
	default:
		return r.bad
	}
}
