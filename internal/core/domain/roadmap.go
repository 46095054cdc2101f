package domain

type PhaseState string

const (
	PhasePending   PhaseState = "pending"
	PhaseActive    PhaseState = "active"
	PhaseCompleted PhaseState = "completed"
)

// Rank orders phase states so that pending < active < completed.
func (s PhaseState) Rank() int {
	switch s {
	case PhaseCompleted:
		return 2
	case PhaseActive:
		return 1
	default:
		return 0
	}
}

type Phase struct {
	Title     string
	Threshold int
}

type Milestone struct {
	Label  string
	Target int
}

var DefaultPhases = []Phase{
	{Title: "Discovery & Planning", Threshold: 0},
	{Title: "Content Audit & Mapping", Threshold: 20},
	{Title: "Design & Build", Threshold: 40},
	{Title: "Content Migration", Threshold: 60},
	{Title: "Testing & QA", Threshold: 80},
	{Title: "Launch & Monitoring", Threshold: 90},
}

var DefaultMilestones = []Milestone{
	{Label: "Week 2", Target: 13},
	{Label: "Week 4", Target: 26},
	{Label: "Week 8", Target: 52},
	{Label: "Week 10", Target: 65},
	{Label: "Week 12", Target: 78},
	{Label: "Week 13", Target: 100},
}

type PhaseView struct {
	Title string     `json:"title"`
	State PhaseState `json:"state"`
}

type MilestoneView struct {
	Label  string  `json:"label"`
	Target int     `json:"target"`
	Fill   float64 `json:"fill"`
}

type RoadmapView struct {
	Percentage int             `json:"percentage"`
	Phases     []PhaseView     `json:"phases"`
	Milestones []MilestoneView `json:"milestones"`
}

type Roadmap struct {
	phases     []Phase
	milestones []Milestone
}

func NewRoadmap(phases []Phase, milestones []Milestone) Roadmap {
	if len(phases) == 0 {
		phases = DefaultPhases
	}
	if len(milestones) == 0 {
		milestones = DefaultMilestones
	}
	return Roadmap{phases: phases, milestones: milestones}
}

// Project maps checklist progress onto phase states and milestone fills.
// Thresholds are walked in ascending order on every call: passing threshold k
// completes phase k-1 and activates phase k. The final phase completes only
// once every item is done; a percentage rounded up to 100 is not enough.
func (r Roadmap) Project(progress ProgressSnapshot) RoadmapView {
	percentage := progress.Percentage
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	view := RoadmapView{
		Percentage: percentage,
		Phases:     make([]PhaseView, len(r.phases)),
		Milestones: make([]MilestoneView, len(r.milestones)),
	}
	for i, phase := range r.phases {
		view.Phases[i] = PhaseView{Title: phase.Title, State: PhasePending}
	}
	for i, phase := range r.phases {
		if percentage <= phase.Threshold {
			break
		}
		if i > 0 {
			view.Phases[i-1].State = PhaseCompleted
		}
		view.Phases[i].State = PhaseActive
	}
	if progress.Complete() && len(view.Phases) > 0 {
		view.Phases[len(view.Phases)-1].State = PhaseCompleted
	}

	for i, m := range r.milestones {
		view.Milestones[i] = MilestoneView{
			Label:  m.Label,
			Target: m.Target,
			Fill:   milestoneFill(percentage, m.Target),
		}
	}
	return view
}

func milestoneFill(percentage, target int) float64 {
	if target <= 0 {
		return 1
	}
	fill := float64(percentage) / float64(target)
	switch {
	case fill < 0:
		return 0
	case fill > 1:
		return 1
	default:
		return fill
	}
}

type CheckpointView struct {
	Title string     `json:"title"`
	State PhaseState `json:"state"`
}

const tasksPerCheckpoint = 7

// CriticalPath marks each checkpoint by how many tasks are done: checkpoint i is
// completed once more than 7*i tasks are done and active once more than 7*(i-1).
func CriticalPath(titles []string, completed int) []CheckpointView {
	out := make([]CheckpointView, len(titles))
	for i, title := range titles {
		state := PhasePending
		switch {
		case completed > i*tasksPerCheckpoint:
			state = PhaseCompleted
		case completed > (i-1)*tasksPerCheckpoint:
			state = PhaseActive
		}
		out[i] = CheckpointView{Title: title, State: state}
	}
	return out
}
