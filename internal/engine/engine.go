// Package engine owns task and sprint state transitions for the selected
// project: optimistic mutations reconciled against the remote store,
// multi-step cascades with partial-failure tolerance, and the re-fetch entry
// point the scheduler drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sprintline/internal/domain"
	"sprintline/internal/store"
)

const timeLayout = time.RFC3339

// Remote is the slice of the remote planning store the engine consumes.
// Shapes follow the store's REST API; transport belongs to internal/remote.
type Remote interface {
	ListTasks(ctx context.Context, projectID string) ([]domain.Task, error)
	CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error)
	PatchTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListSprints(ctx context.Context, projectID string) ([]domain.Sprint, error)
	CreateSprint(ctx context.Context, draft domain.SprintDraft) (domain.Sprint, error)
	PatchSprint(ctx context.Context, id string, patch domain.SprintPatch) (domain.Sprint, error)
	DeleteSprint(ctx context.Context, id string) error
	EstimateEffort(ctx context.Context, taskID, complexity, category string, sprintID *string) (float64, error)
	CalculateRewards(ctx context.Context, projectID, sprintID string) error
	ListParticipants(ctx context.Context, projectID string) (domain.Roster, error)
}

// Journal records engine operations locally for the history views. A nil
// journal is valid and drops everything.
type Journal interface {
	Record(ctx context.Context, projectID, op, entityKind, entityID, outcome string, detail map[string]any) error
}

type Engine struct {
	Store  *store.Store
	Remote Remote

	// Journal and Notify are optional collaborators: the local operation
	// journal and a callback fired after any state change worth re-reading.
	Journal Journal
	Notify  func(projectID string)

	Now func() time.Time
	Log *slog.Logger

	coord *coordinator
	est   *estimator
}

func New(st *store.Store, rem Remote) *Engine {
	e := &Engine{
		Store:  st,
		Remote: rem,
		Now:    time.Now,
	}
	e.coord = newCoordinator(st, rem)
	e.est = newEstimator()
	return e
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

func (e *Engine) notify(projectID string) {
	if e.Notify != nil {
		e.Notify(projectID)
	}
}

func (e *Engine) record(ctx context.Context, projectID, op, kind, id string, err error, detail map[string]any) {
	if e.Journal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = err.Error()
	}
	if jerr := e.Journal.Record(ctx, projectID, op, kind, id, outcome, detail); jerr != nil {
		e.log().Warn("journal write failed", "op", op, "error", jerr)
	}
}

// SelectProject switches the engine to a project. The store is torn down
// before the first fetch completes, so data from the previous project is
// never visible, at the cost of a brief empty state.
func (e *Engine) SelectProject(ctx context.Context, projectID string) error {
	if projectID == "" {
		return validationf("project id is required")
	}
	e.Store.Reset(projectID)
	return e.Refresh(ctx, projectID)
}

// Refresh is the single re-fetch entry point: it replaces the confirmed
// baseline with fresh task and sprint lists, then runs automatic expiry
// detection. Completed sprints are excluded from the expiry check, so
// repeated refreshes cannot double-trigger the completion cascade.
func (e *Engine) Refresh(ctx context.Context, projectID string) error {
	if err := e.refreshLists(ctx, projectID); err != nil {
		return err
	}
	now := e.now()
	for _, sp := range e.Store.Sprints() {
		if !sp.Expired(now) {
			continue
		}
		e.log().Info("sprint past its end date, auto-completing", "sprint", sp.ID, "name", sp.Name)
		report, err := e.CompleteSprint(ctx, projectID, sp.ID)
		if err != nil {
			e.log().Warn("auto-expiry cascade incomplete",
				"sprint", sp.ID, "failed_steps", len(report.Failures()), "error", err)
		}
	}
	e.notify(projectID)
	return nil
}

func (e *Engine) refreshLists(ctx context.Context, projectID string) error {
	tasks, err := e.Remote.ListTasks(ctx, projectID)
	if err != nil {
		return remoteErr("list tasks", err)
	}
	sprints, err := e.Remote.ListSprints(ctx, projectID)
	if err != nil {
		return remoteErr("list sprints", err)
	}
	if !e.Store.ReplaceBaseline(projectID, tasks, sprints) {
		e.log().Debug("discarding stale fetch", "project", projectID)
	}
	return nil
}

func (e *Engine) refreshSprints(ctx context.Context, projectID string) error {
	sprints, err := e.Remote.ListSprints(ctx, projectID)
	if err != nil {
		return remoteErr("list sprints", err)
	}
	if !e.Store.ReplaceSprints(projectID, sprints) {
		e.log().Debug("discarding stale sprint fetch", "project", projectID)
	}
	return nil
}

func (e *Engine) refreshRoster(ctx context.Context, projectID string) error {
	roster, err := e.Remote.ListParticipants(ctx, projectID)
	if err != nil {
		return remoteErr("list participants", err)
	}
	e.Store.SetRoster(projectID, roster)
	return nil
}

// Participants refreshes and returns the project roster.
func (e *Engine) Participants(ctx context.Context, projectID string) (domain.Roster, error) {
	if err := e.refreshRoster(ctx, projectID); err != nil {
		return domain.Roster{}, err
	}
	return e.Store.Roster(), nil
}

// CreateTask validates the draft, fills board defaults, creates the task
// remotely and commits the canonical record.
func (e *Engine) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	draft, err := normalizeTaskDraft(draft, e.Store.Sprint)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.Remote.CreateTask(ctx, draft)
	if err != nil {
		return domain.Task{}, remoteErr("create task", err)
	}
	if e.Store.ProjectID() == draft.ProjectID {
		e.Store.CommitTask(t)
	}
	e.record(ctx, draft.ProjectID, "task.create", "task", t.ID, nil, map[string]any{"name": t.Name})
	e.notify(draft.ProjectID)
	return t, nil
}

// UpdateTask runs one optimistic mutation through the validator and the
// coordinator. The caller is responsible for retrying remote failures.
func (e *Engine) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	current, ok := e.Store.Task(id)
	if !ok {
		return domain.Task{}, validationf("task %s: %v", id, ErrNotFound)
	}
	patch, err := normalizeTaskPatch(current, patch, e.Store.Sprint)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.coord.applyTask(ctx, id, patch)
	e.record(ctx, current.ProjectID, "task.update", "task", id, err, patch.Fields())
	if err != nil {
		return domain.Task{}, err
	}
	e.notify(t.ProjectID)
	return t, nil
}

// DeleteTask removes a task remotely and from the store.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	t, ok := e.Store.Task(id)
	if !ok {
		return validationf("task %s: %v", id, ErrNotFound)
	}
	if err := e.Remote.DeleteTask(ctx, id); err != nil {
		return remoteErr("delete task "+id, err)
	}
	e.Store.RemoveTask(id)
	e.record(ctx, t.ProjectID, "task.delete", "task", id, nil, nil)
	e.notify(t.ProjectID)
	return nil
}

// MoveTask is the drag-and-drop reassignment workflow: backlog to sprint,
// sprint to sprint, sprint to backlog, or a board column change. SprintID ""
// targets the backlog; a nil explicit status defaults sprint moves to TODO.
// The optimistic placement is visible before the remote call resolves and is
// rolled back to the pre-drag position when that call fails. A successful
// move triggers a sprint list refresh so aggregate views stay current.
func (e *Engine) MoveTask(ctx context.Context, id, sprintID string, explicitStatus *string) (domain.Task, error) {
	current, ok := e.Store.Task(id)
	if !ok {
		return domain.Task{}, validationf("task %s: %v", id, ErrNotFound)
	}
	sid := sprintID
	patch := domain.TaskPatch{SprintID: &sid, Status: explicitStatus}
	patch, err := normalizeTaskPatch(current, patch, e.Store.Sprint)
	if err != nil {
		return domain.Task{}, err
	}
	t, err := e.coord.applyTask(ctx, id, patch)
	e.record(ctx, current.ProjectID, "task.move", "task", id, err, map[string]any{"sprint": sprintID})
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.refreshSprints(ctx, t.ProjectID); err != nil {
		// The move itself committed; a failed aggregate refresh only delays
		// the counts until the next poll.
		e.log().Warn("sprint refresh after move failed", "task", id, "error", err)
	}
	e.notify(t.ProjectID)
	return t, nil
}

// CreateSprint creates a planned sprint, auto-naming it "Sprint N" when the
// draft has no name.
func (e *Engine) CreateSprint(ctx context.Context, draft domain.SprintDraft) (domain.Sprint, error) {
	if draft.ProjectID == "" {
		return domain.Sprint{}, validationf("project is required")
	}
	if draft.Name == "" {
		n := 1
		for _, sp := range e.Store.Sprints() {
			if sp.ProjectID == draft.ProjectID {
				n++
			}
		}
		draft.Name = fmt.Sprintf("Sprint %d", n)
	}
	sp, err := e.Remote.CreateSprint(ctx, draft)
	if err != nil {
		return domain.Sprint{}, remoteErr("create sprint", err)
	}
	if e.Store.ProjectID() == draft.ProjectID {
		e.Store.CommitSprint(sp)
	}
	e.record(ctx, draft.ProjectID, "sprint.create", "sprint", sp.ID, nil, map[string]any{"name": sp.Name})
	e.notify(draft.ProjectID)
	return sp, nil
}

// StartSprintOptions are the fields the start dialog collects.
type StartSprintOptions struct {
	Name      string
	StartDate string
	Duration  int
	Goal      string
}

// StartSprint moves a planned sprint to active. Start date defaults to now
// and duration to two weeks.
func (e *Engine) StartSprint(ctx context.Context, id string, opts StartSprintOptions) (domain.Sprint, error) {
	current, ok := e.Store.Sprint(id)
	if !ok {
		return domain.Sprint{}, validationf("sprint %s: %v", id, ErrNotFound)
	}
	if opts.StartDate == "" {
		opts.StartDate = e.now().UTC().Format(timeLayout)
	}
	if opts.Duration == 0 {
		opts.Duration = defaultDuration
	}
	active := true
	patch := domain.SprintPatch{
		StartDate: &opts.StartDate,
		Duration:  &opts.Duration,
		IsActive:  &active,
	}
	if opts.Name != "" {
		patch.Name = &opts.Name
	}
	if opts.Goal != "" {
		patch.Goal = &opts.Goal
	}
	patch, err := normalizeSprintPatch(current, patch)
	if err != nil {
		return domain.Sprint{}, err
	}
	sp, err := e.coord.applySprint(ctx, id, patch)
	e.record(ctx, current.ProjectID, "sprint.start", "sprint", id, err, patch.Fields())
	if err != nil {
		return domain.Sprint{}, err
	}
	e.notify(sp.ProjectID)
	return sp, nil
}

// UpdateSprint runs an optimistic sprint mutation (rename, reschedule,
// re-goal) through the validator and coordinator.
func (e *Engine) UpdateSprint(ctx context.Context, id string, patch domain.SprintPatch) (domain.Sprint, error) {
	current, ok := e.Store.Sprint(id)
	if !ok {
		return domain.Sprint{}, validationf("sprint %s: %v", id, ErrNotFound)
	}
	patch, err := normalizeSprintPatch(current, patch)
	if err != nil {
		return domain.Sprint{}, err
	}
	sp, err := e.coord.applySprint(ctx, id, patch)
	e.record(ctx, current.ProjectID, "sprint.update", "sprint", id, err, patch.Fields())
	if err != nil {
		return domain.Sprint{}, err
	}
	e.notify(sp.ProjectID)
	return sp, nil
}

// DeleteSprint removes a sprint remotely and from the store.
func (e *Engine) DeleteSprint(ctx context.Context, id string) error {
	sp, ok := e.Store.Sprint(id)
	if !ok {
		return validationf("sprint %s: %v", id, ErrNotFound)
	}
	if err := e.Remote.DeleteSprint(ctx, id); err != nil {
		return remoteErr("delete sprint "+id, err)
	}
	e.Store.RemoveSprint(id)
	e.record(ctx, sp.ProjectID, "sprint.delete", "sprint", id, nil, nil)
	e.notify(sp.ProjectID)
	return nil
}

// CompleteSprint runs the sprint completion cascade, manually or on expiry.
// A sprint already completed is a no-op so the expiry check stays idempotent.
// The returned report records every step; its error, when non-nil, is a
// CascadeError listing the failed sub-operations for operator retry.
func (e *Engine) CompleteSprint(ctx context.Context, projectID, sprintID string) (CascadeReport, error) {
	sp, ok := e.Store.Sprint(sprintID)
	if !ok {
		return CascadeReport{}, validationf("sprint %s: %v", sprintID, ErrNotFound)
	}
	if sp.IsCompleted {
		return CascadeReport{Workflow: "complete-sprint"}, nil
	}
	if !sp.IsActive {
		return CascadeReport{}, validationf("sprint %s must be active before completion", sprintID)
	}
	runID := uuid.New().String()
	report := e.completeSprintCascade(projectID, sp).run(ctx)
	err := report.Err()
	e.record(ctx, projectID, "sprint.complete", "sprint", sprintID, err, map[string]any{
		"run_id":       runID,
		"failed_steps": len(report.Failures()),
	})
	e.notify(projectID)
	return report, err
}
