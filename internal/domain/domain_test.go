package domain_test

import (
	"testing"
	"time"

	"sprintline/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestSprintState(t *testing.T) {
	cases := []struct {
		name   string
		sprint domain.Sprint
		want   string
	}{
		{"planned", domain.Sprint{}, domain.SprintPlanned},
		{"active", domain.Sprint{IsActive: true}, domain.SprintActive},
		{"completed", domain.Sprint{IsCompleted: true}, domain.SprintCompleted},
		{"completed wins over active", domain.Sprint{IsActive: true, IsCompleted: true}, domain.SprintCompleted},
	}
	for _, tc := range cases {
		if got := tc.sprint.State(); got != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestSprintEndsAt(t *testing.T) {
	sp := domain.Sprint{StartDate: strPtr("2026-03-02T00:00:00Z"), Duration: 14}
	end, ok := sp.EndsAt()
	if !ok || !end.Equal(time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("duration end wrong: %v %v", end, ok)
	}

	sp.EndDate = strPtr("2026-03-20T00:00:00Z")
	end, ok = sp.EndsAt()
	if !ok || !end.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("explicit end date must win: %v %v", end, ok)
	}

	if _, ok := (domain.Sprint{}).EndsAt(); ok {
		t.Fatalf("sprint with no dates has no end")
	}
}

func TestSprintExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	past := domain.Sprint{IsActive: true, StartDate: strPtr("2026-02-02T00:00:00Z"), Duration: 14}
	if !past.Expired(now) {
		t.Fatalf("active sprint past its end should be expired")
	}
	planned := domain.Sprint{StartDate: strPtr("2026-02-02T00:00:00Z"), Duration: 14}
	if planned.Expired(now) {
		t.Fatalf("planned sprint never expires")
	}
	completed := past
	completed.IsCompleted = true
	if completed.Expired(now) {
		t.Fatalf("completed sprint never expires")
	}
}

func TestTaskPatchClearsReferences(t *testing.T) {
	sid := "s1"
	uid := "u1"
	task := domain.Task{ID: "t1", SprintID: &sid, AssigneeID: &uid}

	cleared := ""
	patch := domain.TaskPatch{SprintID: &cleared, AssigneeID: &cleared}
	got := patch.ApplyTo(task)
	if got.SprintID != nil || got.AssigneeID != nil {
		t.Fatalf("cleared references should be nil: %+v", got)
	}

	fields := patch.Fields()
	if v, ok := fields["sprint"]; !ok || v != nil {
		t.Fatalf("cleared sprint must serialize as explicit null, got %v (present=%v)", v, ok)
	}
	if v, ok := fields["user"]; !ok || v != nil {
		t.Fatalf("cleared user must serialize as explicit null, got %v (present=%v)", v, ok)
	}
}

func TestTaskPatchFieldsOmitsUntouched(t *testing.T) {
	p := 5
	patch := domain.TaskPatch{Priority: &p}
	fields := patch.Fields()
	if len(fields) != 1 {
		t.Fatalf("expected only priority, got %v", fields)
	}
	if fields["priority"] != 5 {
		t.Fatalf("priority wrong: %v", fields["priority"])
	}
}

func TestTaskPatchIsZero(t *testing.T) {
	if !(domain.TaskPatch{}).IsZero() {
		t.Fatalf("empty patch should be zero")
	}
	v := 1
	if (domain.TaskPatch{Priority: &v}).IsZero() {
		t.Fatalf("non-empty patch should not be zero")
	}
}

func TestSprintPatchApply(t *testing.T) {
	sp := domain.Sprint{ID: "s1", Name: "old"}
	name := "new"
	active := true
	got := domain.SprintPatch{Name: &name, IsActive: &active}.ApplyTo(sp)
	if got.Name != "new" || !got.IsActive {
		t.Fatalf("patch not applied: %+v", got)
	}
	if sp.Name != "old" {
		t.Fatalf("ApplyTo must not mutate its input")
	}
}
