package engine

import (
	"errors"
	"fmt"
	"strings"

	"sprintline/internal/remote"
)

// ErrNotFound marks lookups against entities the store does not hold.
var ErrNotFound = errors.New("not found")

// ErrEstimateInFlight rejects a second estimation request for a task whose
// first request has not resolved. Requests are rejected, not queued.
var ErrEstimateInFlight = errors.New("estimation already in flight for task")

// ValidationError is a transition validator rejection. It is raised before
// any remote call and never sent to the remote store.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// RemoteError is a network or store failure on an individual remote call.
// Conflict marks the store reporting a concurrent incompatible change; with
// no merge logic it still rolls back like any other remote failure.
type RemoteError struct {
	Op       string
	Conflict bool
	Err      error
}

func (e *RemoteError) Error() string {
	if e.Conflict {
		return fmt.Sprintf("%s: remote conflict: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: remote: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	re := &RemoteError{Op: op, Err: err}
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.IsConflict() {
		re.Conflict = true
	}
	return re
}

// StepFailure records one failed sub-operation of a cascade.
type StepFailure struct {
	Step     string
	EntityID string
	Err      error
}

func (f StepFailure) String() string {
	if f.EntityID == "" {
		return fmt.Sprintf("%s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("%s(%s): %v", f.Step, f.EntityID, f.Err)
}

// CascadeError reports the failed subset of a multi-step workflow. Earlier
// committed steps are not rolled back; the operator retries the failed
// sub-operations manually.
type CascadeError struct {
	Workflow string
	Failures []StepFailure
}

func (e *CascadeError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("cascade %s: %d step(s) failed: %s", e.Workflow, len(e.Failures), strings.Join(parts, "; "))
}
