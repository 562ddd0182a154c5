package engine

import (
	"context"

	"sprintline/internal/domain"
)

// Cascades are expressed as explicit ordered step lists with per-step result
// capture, so partial completion is observable without a live network. A step
// only runs when the steps it declares as prerequisites succeeded; failures
// never roll back steps that already committed.

// StepResult captures one executed cascade step.
type StepResult struct {
	Step     string
	Skipped  bool
	Failures []StepFailure
}

// OK reports whether the step ran without failures.
func (r StepResult) OK() bool {
	return !r.Skipped && len(r.Failures) == 0
}

// CascadeReport is the full outcome of a cascade run.
type CascadeReport struct {
	Workflow string
	Steps    []StepResult
}

// Failures flattens the failed sub-operations across all steps.
func (r CascadeReport) Failures() []StepFailure {
	var out []StepFailure
	for _, s := range r.Steps {
		out = append(out, s.Failures...)
	}
	return out
}

// Err returns the CascadeError for a run with failures, nil otherwise.
func (r CascadeReport) Err() error {
	failures := r.Failures()
	if len(failures) == 0 {
		return nil
	}
	return &CascadeError{Workflow: r.Workflow, Failures: failures}
}

type cascadeStep struct {
	name string
	// needs names a prior step that must have succeeded for this one to run;
	// empty means the step always runs.
	needs string
	run   func(ctx context.Context) []StepFailure
}

type cascade struct {
	name  string
	steps []cascadeStep
}

func (c *cascade) run(ctx context.Context) CascadeReport {
	report := CascadeReport{Workflow: c.name}
	succeeded := map[string]bool{}
	for _, step := range c.steps {
		if step.needs != "" && !succeeded[step.needs] {
			report.Steps = append(report.Steps, StepResult{Step: step.name, Skipped: true})
			continue
		}
		failures := step.run(ctx)
		succeeded[step.name] = len(failures) == 0
		report.Steps = append(report.Steps, StepResult{Step: step.name, Failures: failures})
	}
	return report
}

func oneFailure(step, entityID string, err error) []StepFailure {
	if err == nil {
		return nil
	}
	return []StepFailure{{Step: step, EntityID: entityID, Err: err}}
}

// completeSprintCascade builds the sprint completion workflow:
//
//	reactivate-tasks  every non-DONE task goes back to the backlog as TODO,
//	                  sequentially, continuing past individual failures
//	close-sprint      is_completed=true with end_date=now; runs even when
//	                  reactivation partially failed, trading strict atomicity
//	                  for forward progress
//	calculate-rewards best-effort trigger of the external scorer
//	refresh-roster    reward-driven roster changes become visible
//	refresh-sprints   aggregate sprint views pick up the new memberships
//
// Reactivation failures leave tasks attached to a completed sprint. That
// state is recoverable only by operator retry, so it is surfaced through the
// returned report rather than rolled back.
func (e *Engine) completeSprintCascade(projectID string, sprint domain.Sprint) *cascade {
	return &cascade{
		name: "complete-sprint",
		steps: []cascadeStep{
			{
				name: "reactivate-tasks",
				run: func(ctx context.Context) []StepFailure {
					var failures []StepFailure
					for _, t := range e.Store.SprintTasks(sprint.ID) {
						if t.Status == domain.StatusDone {
							continue
						}
						// Only non-DONE tasks reach this point, so none of
						// them qualifies for the is_reactivated marking.
						patch := domain.TaskPatch{}
						empty := ""
						todo := domain.StatusTodo
						patch.SprintID = &empty
						patch.Status = &todo
						if _, err := e.coord.applyTask(ctx, t.ID, patch); err != nil {
							e.log().Warn("task reactivation failed",
								"sprint", sprint.ID, "task", t.ID, "error", err)
							failures = append(failures, StepFailure{Step: "reactivate-tasks", EntityID: t.ID, Err: err})
						}
					}
					return failures
				},
			},
			{
				name: "close-sprint",
				run: func(ctx context.Context) []StepFailure {
					done := true
					end := e.now().UTC().Format(timeLayout)
					patch := domain.SprintPatch{IsCompleted: &done, EndDate: &end}
					patch, err := normalizeSprintPatch(sprint, patch)
					if err == nil {
						_, err = e.coord.applySprint(ctx, sprint.ID, patch)
					}
					return oneFailure("close-sprint", sprint.ID, err)
				},
			},
			{
				name:  "calculate-rewards",
				needs: "close-sprint",
				run: func(ctx context.Context) []StepFailure {
					if err := e.Remote.CalculateRewards(ctx, projectID, sprint.ID); err != nil {
						// Scoring is external and retried out of band; the
						// completed sprint stays completed.
						e.log().Warn("reward calculation failed",
							"project", projectID, "sprint", sprint.ID, "error", err)
						return oneFailure("calculate-rewards", sprint.ID, remoteErr("calculate rewards", err))
					}
					return nil
				},
			},
			{
				name:  "refresh-roster",
				needs: "calculate-rewards",
				run: func(ctx context.Context) []StepFailure {
					return oneFailure("refresh-roster", projectID, e.refreshRoster(ctx, projectID))
				},
			},
			{
				name: "refresh-sprints",
				run: func(ctx context.Context) []StepFailure {
					return oneFailure("refresh-sprints", projectID, e.refreshSprints(ctx, projectID))
				},
			},
		},
	}
}
