package domain

import "time"

// Task status values. Transitions among them are unordered; lifecycle rules
// live in the engine's validator.
const (
	StatusTodo       = "TODO"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// Task complexity buckets used by the effort predictor.
const (
	ComplexityEasy   = "EASY"
	ComplexityMedium = "MEDIUM"
	ComplexityHard   = "HARD"
)

// Priority bounds for tasks.
const (
	PriorityMin = 1
	PriorityMax = 5
)

// Task is a single work item. SprintID == nil means the task sits in the
// backlog. A task may reference a sprint but never owns it.
type Task struct {
	ID              string   `json:"id"`
	ProjectID       string   `json:"project_id"`
	Name            string   `json:"task_name"`
	Category        string   `json:"task_category"`
	Complexity      string   `json:"task_complexity" enum:"EASY,MEDIUM,HARD"`
	Priority        int      `json:"priority"`
	Status          string   `json:"status" enum:"TODO,IN_PROGRESS,DONE"`
	SprintID        *string  `json:"sprint,omitempty"`
	AssigneeID      *string  `json:"user,omitempty"`
	EstimatedEffort *float64 `json:"estimated_effort,omitempty"`
	ActualEffort    float64  `json:"actual_effort"`
	ReworkEffort    *float64 `json:"rework_effort,omitempty"`
	IsReactivated   bool     `json:"is_reactivated"`
	CreatedAt       string   `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt       string   `json:"updated_at,omitempty" format:"date-time"`
}

// InBacklog reports whether the task has no sprint reference.
func (t Task) InBacklog() bool {
	return t.SprintID == nil || *t.SprintID == ""
}

// Sprint is a time-boxed iteration. Lifecycle: planned (neither flag set),
// active (IsActive), completed (IsCompleted, terminal).
type Sprint struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project"`
	Name        string  `json:"sprint_name"`
	StartDate   *string `json:"start_date,omitempty" format:"date-time"`
	Duration    int     `json:"duration,omitempty"`
	EndDate     *string `json:"end_date,omitempty" format:"date-time"`
	Goal        string  `json:"sprint_goal,omitempty"`
	IsActive    bool    `json:"is_active"`
	IsCompleted bool    `json:"is_completed"`
}

// Sprint lifecycle states derived from the two flags.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

// State returns the derived lifecycle state. IsCompleted wins over IsActive
// so a sprint left with both flags set still reads as terminal.
func (s Sprint) State() string {
	switch {
	case s.IsCompleted:
		return SprintCompleted
	case s.IsActive:
		return SprintActive
	default:
		return SprintPlanned
	}
}

// EndsAt resolves the sprint's end as a point in time: the explicit end date
// when present, otherwise start date plus duration days. The zero time and
// false are returned when neither is derivable.
func (s Sprint) EndsAt() (time.Time, bool) {
	if s.EndDate != nil && *s.EndDate != "" {
		if ts, err := time.Parse(time.RFC3339, *s.EndDate); err == nil {
			return ts, true
		}
	}
	if s.StartDate != nil && *s.StartDate != "" && s.Duration > 0 {
		if ts, err := time.Parse(time.RFC3339, *s.StartDate); err == nil {
			return ts.AddDate(0, 0, s.Duration), true
		}
	}
	return time.Time{}, false
}

// Expired reports whether an active sprint's end has passed at the given
// instant. Completed sprints are never expired; they are already terminal.
func (s Sprint) Expired(now time.Time) bool {
	if !s.IsActive || s.IsCompleted {
		return false
	}
	end, ok := s.EndsAt()
	if !ok {
		return false
	}
	return end.Before(now)
}

// Project is the container for sprints and tasks. EnableAutomation gates
// automatic task assignment; the history requirement behind it (two or more
// completed sprints) is enforced by the remote store.
type Project struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	EnableAutomation bool   `json:"enable_automation"`
}

// Participant is a member of a project's roster, including reward state
// maintained by the external gamification service.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Points int    `json:"points,omitempty"`
}

// Roster is the participant view of a project.
type Roster struct {
	ProjectName string        `json:"project_name"`
	Users       []Participant `json:"users"`
}

// TaskDraft carries the fields accepted when creating a task. Zero values
// are filled with the board defaults by the engine.
type TaskDraft struct {
	ProjectID    string
	Name         string
	Category     string
	Complexity   string
	Priority     int
	Status       string
	SprintID     *string
	AssigneeID   *string
	ActualEffort float64
}

// SprintDraft carries the fields accepted when creating a sprint.
type SprintDraft struct {
	ProjectID string
	Name      string
	StartDate *string
	Duration  int
	Goal      string
}
