package engine

import (
	"sprintline/internal/domain"
)

// Board defaults applied to task drafts, matching the remote store's own
// fallbacks.
const (
	defaultCategory     = "FE"
	defaultComplexity   = domain.ComplexityMedium
	defaultPriority     = 1
	defaultActualEffort = 1.0
	defaultDuration     = 14
)

// sprintLookup resolves a sprint id against the current store snapshot.
type sprintLookup func(id string) (domain.Sprint, bool)

func validStatus(s string) bool {
	switch s {
	case domain.StatusTodo, domain.StatusInProgress, domain.StatusDone:
		return true
	}
	return false
}

func validComplexity(c string) bool {
	switch c {
	case domain.ComplexityEasy, domain.ComplexityMedium, domain.ComplexityHard:
		return true
	}
	return false
}

// normalizeTaskDraft fills board defaults and checks the draft against the
// snapshot. Drafts targeting a completed sprint are rejected.
func normalizeTaskDraft(draft domain.TaskDraft, sprints sprintLookup) (domain.TaskDraft, error) {
	if draft.Name == "" {
		return draft, validationf("task name is required")
	}
	if draft.ProjectID == "" {
		return draft, validationf("project is required")
	}
	if draft.Category == "" {
		draft.Category = defaultCategory
	}
	if draft.Complexity == "" {
		draft.Complexity = defaultComplexity
	}
	if !validComplexity(draft.Complexity) {
		return draft, validationf("unknown complexity %q", draft.Complexity)
	}
	if draft.Priority == 0 {
		draft.Priority = defaultPriority
	}
	if draft.Priority < domain.PriorityMin || draft.Priority > domain.PriorityMax {
		return draft, validationf("priority %d out of range %d-%d", draft.Priority, domain.PriorityMin, domain.PriorityMax)
	}
	if draft.ActualEffort == 0 {
		draft.ActualEffort = defaultActualEffort
	}
	if draft.Status == "" {
		draft.Status = domain.StatusTodo
	}
	if !validStatus(draft.Status) {
		return draft, validationf("unknown status %q", draft.Status)
	}
	if draft.SprintID != nil && *draft.SprintID != "" {
		sp, ok := sprints(*draft.SprintID)
		if !ok {
			return draft, validationf("sprint %s not found", *draft.SprintID)
		}
		if sp.IsCompleted {
			return draft, validationf("sprint %s is completed", sp.ID)
		}
	}
	return draft, nil
}

// normalizeTaskPatch validates a task mutation against the snapshot and
// returns the accepted, normalized patch.
//
// Status transitions among TODO, IN_PROGRESS and DONE are unordered, with
// one adjustment: a task moving into a sprint defaults to TODO unless the
// mutation supplies an explicit status. Detaching a task from its sprint is
// always legal. The target sprint must exist and must not be completed.
// A DONE task returning to TODO is marked is_reactivated so rework shows up
// in effort reporting.
func normalizeTaskPatch(t domain.Task, patch domain.TaskPatch, sprints sprintLookup) (domain.TaskPatch, error) {
	if patch.IsZero() {
		return patch, validationf("empty mutation for task %s", t.ID)
	}
	if patch.Status != nil && !validStatus(*patch.Status) {
		return patch, validationf("unknown status %q", *patch.Status)
	}
	if patch.Complexity != nil && !validComplexity(*patch.Complexity) {
		return patch, validationf("unknown complexity %q", *patch.Complexity)
	}
	if patch.Priority != nil && (*patch.Priority < domain.PriorityMin || *patch.Priority > domain.PriorityMax) {
		return patch, validationf("priority %d out of range %d-%d", *patch.Priority, domain.PriorityMin, domain.PriorityMax)
	}
	if patch.Name != nil && *patch.Name == "" {
		return patch, validationf("task name cannot be empty")
	}
	if patch.SprintID != nil && *patch.SprintID != "" {
		sp, ok := sprints(*patch.SprintID)
		if !ok {
			return patch, validationf("sprint %s not found", *patch.SprintID)
		}
		if sp.IsCompleted {
			return patch, validationf("cannot move task %s into completed sprint %s", t.ID, sp.ID)
		}
		if patch.Status == nil {
			todo := domain.StatusTodo
			patch.Status = &todo
		}
	}
	if patch.IsReactivated == nil && t.Status == domain.StatusDone &&
		patch.Status != nil && *patch.Status == domain.StatusTodo {
		yes := true
		patch.IsReactivated = &yes
	}
	return patch, nil
}

// normalizeSprintPatch enforces the one-directional sprint lifecycle:
// planned -> active -> completed, with completed terminal.
func normalizeSprintPatch(s domain.Sprint, patch domain.SprintPatch) (domain.SprintPatch, error) {
	if patch.IsZero() {
		return patch, validationf("empty mutation for sprint %s", s.ID)
	}
	if s.IsCompleted {
		return patch, validationf("sprint %s is completed and cannot change", s.ID)
	}
	if patch.IsCompleted != nil && !*patch.IsCompleted {
		return patch, validationf("sprint %s: completion cannot be undone", s.ID)
	}
	if patch.IsActive != nil {
		switch {
		case *patch.IsActive && s.IsActive:
			// already active; harmless
		case *patch.IsActive:
			start := s.StartDate
			if patch.StartDate != nil {
				start = patch.StartDate
			}
			if start == nil || *start == "" {
				return patch, validationf("sprint %s needs a start date to become active", s.ID)
			}
			if s.ProjectID == "" {
				return patch, validationf("sprint %s has no project", s.ID)
			}
		case s.IsActive:
			return patch, validationf("sprint %s cannot return from active to planned", s.ID)
		}
	}
	if patch.IsCompleted != nil && *patch.IsCompleted {
		active := s.IsActive
		if patch.IsActive != nil {
			active = *patch.IsActive
		}
		if !active {
			return patch, validationf("sprint %s must be active before completion", s.ID)
		}
	}
	if patch.Duration != nil && *patch.Duration < 0 {
		return patch, validationf("sprint duration cannot be negative")
	}
	return patch, nil
}
