package engine

import (
	"context"
	"sync"
)

// estimator gates effort estimation to one in-flight request per task.
type estimator struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newEstimator() *estimator {
	return &estimator{inFlight: make(map[string]struct{})}
}

func (g *estimator) begin(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[taskID]; busy {
		return false
	}
	g.inFlight[taskID] = struct{}{}
	return true
}

func (g *estimator) end(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, taskID)
}

// EstimateEffort asks the external predictor for an estimate and attaches it
// to the task. A second request for the same task while one is pending is
// rejected, not queued. On success only estimated_effort changes, written
// straight to the store; on failure the task is left untouched and the error
// is reported to the caller. There is no automatic retry.
func (e *Engine) EstimateEffort(ctx context.Context, taskID string) (float64, error) {
	t, ok := e.Store.Task(taskID)
	if !ok {
		return 0, validationf("task %s: %v", taskID, ErrNotFound)
	}
	if !e.est.begin(taskID) {
		return 0, ErrEstimateInFlight
	}
	defer e.est.end(taskID)

	hours, err := e.Remote.EstimateEffort(ctx, taskID, t.Complexity, t.Category, t.SprintID)
	if err != nil {
		e.record(ctx, t.ProjectID, "task.estimate", "task", taskID, err, nil)
		return 0, remoteErr("estimate effort for task "+taskID, err)
	}
	e.Store.SetEstimatedEffort(taskID, hours)
	e.record(ctx, t.ProjectID, "task.estimate", "task", taskID, nil, map[string]any{"estimated_effort": hours})
	e.notify(t.ProjectID)
	return hours, nil
}
