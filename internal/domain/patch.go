package domain

// TaskPatch is a partial task update. Nil fields are untouched. For the two
// nullable references the empty string means "clear": SprintID pointing at ""
// detaches the task to the backlog, AssigneeID pointing at "" unassigns it.
type TaskPatch struct {
	Name            *string
	Category        *string
	Complexity      *string
	Priority        *int
	Status          *string
	SprintID        *string
	AssigneeID      *string
	EstimatedEffort *float64
	ActualEffort    *float64
	ReworkEffort    *float64
	IsReactivated   *bool
}

// IsZero reports whether the patch changes nothing.
func (p TaskPatch) IsZero() bool {
	return p == TaskPatch{}
}

// Fields returns the wire representation of the patch: only the fields being
// changed, with cleared references encoded as JSON null.
func (p TaskPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["task_name"] = *p.Name
	}
	if p.Category != nil {
		out["task_category"] = *p.Category
	}
	if p.Complexity != nil {
		out["task_complexity"] = *p.Complexity
	}
	if p.Priority != nil {
		out["priority"] = *p.Priority
	}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.SprintID != nil {
		out["sprint"] = nullable(*p.SprintID)
	}
	if p.AssigneeID != nil {
		out["user"] = nullable(*p.AssigneeID)
	}
	if p.EstimatedEffort != nil {
		out["estimated_effort"] = *p.EstimatedEffort
	}
	if p.ActualEffort != nil {
		out["actual_effort"] = *p.ActualEffort
	}
	if p.ReworkEffort != nil {
		out["rework_effort"] = *p.ReworkEffort
	}
	if p.IsReactivated != nil {
		out["is_reactivated"] = *p.IsReactivated
	}
	return out
}

// ApplyTo returns a copy of the task with the patch applied locally. This is
// the speculative value the coordinator writes before remote confirmation.
func (p TaskPatch) ApplyTo(t Task) Task {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Complexity != nil {
		t.Complexity = *p.Complexity
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.SprintID != nil {
		if *p.SprintID == "" {
			t.SprintID = nil
		} else {
			id := *p.SprintID
			t.SprintID = &id
		}
	}
	if p.AssigneeID != nil {
		if *p.AssigneeID == "" {
			t.AssigneeID = nil
		} else {
			id := *p.AssigneeID
			t.AssigneeID = &id
		}
	}
	if p.EstimatedEffort != nil {
		v := *p.EstimatedEffort
		t.EstimatedEffort = &v
	}
	if p.ActualEffort != nil {
		t.ActualEffort = *p.ActualEffort
	}
	if p.ReworkEffort != nil {
		v := *p.ReworkEffort
		t.ReworkEffort = &v
	}
	if p.IsReactivated != nil {
		t.IsReactivated = *p.IsReactivated
	}
	return t
}

// SprintPatch is a partial sprint update. Nil fields are untouched.
type SprintPatch struct {
	Name        *string
	StartDate   *string
	Duration    *int
	EndDate     *string
	Goal        *string
	IsActive    *bool
	IsCompleted *bool
}

// IsZero reports whether the patch changes nothing.
func (p SprintPatch) IsZero() bool {
	return p == SprintPatch{}
}

// Fields returns the wire representation of the patch.
func (p SprintPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["sprint_name"] = *p.Name
	}
	if p.StartDate != nil {
		out["start_date"] = *p.StartDate
	}
	if p.Duration != nil {
		out["duration"] = *p.Duration
	}
	if p.EndDate != nil {
		out["end_date"] = *p.EndDate
	}
	if p.Goal != nil {
		out["sprint_goal"] = *p.Goal
	}
	if p.IsActive != nil {
		out["is_active"] = *p.IsActive
	}
	if p.IsCompleted != nil {
		out["is_completed"] = *p.IsCompleted
	}
	return out
}

// ApplyTo returns a copy of the sprint with the patch applied locally.
func (p SprintPatch) ApplyTo(s Sprint) Sprint {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.StartDate != nil {
		v := *p.StartDate
		s.StartDate = &v
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.EndDate != nil {
		v := *p.EndDate
		s.EndDate = &v
	}
	if p.Goal != nil {
		s.Goal = *p.Goal
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.IsCompleted != nil {
		s.IsCompleted = *p.IsCompleted
	}
	return s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
