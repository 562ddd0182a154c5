// Package store holds the in-memory authoritative cache of tasks and sprints
// for the currently selected project. It keeps the confirmed baseline and the
// currently visible (possibly speculative) value for every entity separate,
// so optimistic mutations can be rolled back to the last confirmed state.
//
// The store itself enforces no lifecycle rules; all mutation is expected to
// arrive through the engine's coordinator, cascade runner, or scheduler.
package store

import (
	"sort"
	"sync"

	"sprintline/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	projectID string

	tasks           map[string]domain.Task
	confirmedTasks  map[string]domain.Task
	sprints         map[string]domain.Sprint
	confirmedSprint map[string]domain.Sprint

	roster domain.Roster
}

func New() *Store {
	s := &Store{}
	s.resetLocked("")
	return s
}

func (s *Store) resetLocked(projectID string) {
	s.projectID = projectID
	s.tasks = make(map[string]domain.Task)
	s.confirmedTasks = make(map[string]domain.Task)
	s.sprints = make(map[string]domain.Sprint)
	s.confirmedSprint = make(map[string]domain.Sprint)
	s.roster = domain.Roster{}
}

// Reset tears the store down for a project switch. The store is empty until
// the first fetch for the new project lands; stale data from the previous
// project is never visible.
func (s *Store) Reset(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(projectID)
}

// ProjectID returns the project the store currently serves.
func (s *Store) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// ReplaceBaseline installs freshly fetched lists as the confirmed baseline.
// Responses captured for a superseded project selection are detected by id
// mismatch and discarded; the return value reports whether the data landed.
func (s *Store) ReplaceBaseline(projectID string, tasks []domain.Task, sprints []domain.Sprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID != s.projectID {
		return false
	}
	s.tasks = make(map[string]domain.Task, len(tasks))
	s.confirmedTasks = make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.confirmedTasks[t.ID] = t
	}
	s.sprints = make(map[string]domain.Sprint, len(sprints))
	s.confirmedSprint = make(map[string]domain.Sprint, len(sprints))
	for _, sp := range sprints {
		s.sprints[sp.ID] = sp
		s.confirmedSprint[sp.ID] = sp
	}
	return true
}

// ReplaceSprints installs a freshly fetched sprint list without touching
// tasks, used by cascades that only need aggregate sprint views refreshed.
func (s *Store) ReplaceSprints(projectID string, sprints []domain.Sprint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID != s.projectID {
		return false
	}
	s.sprints = make(map[string]domain.Sprint, len(sprints))
	s.confirmedSprint = make(map[string]domain.Sprint, len(sprints))
	for _, sp := range sprints {
		s.sprints[sp.ID] = sp
		s.confirmedSprint[sp.ID] = sp
	}
	return true
}

// SetRoster installs the participant roster, subject to the same stale
// project check as ReplaceBaseline.
func (s *Store) SetRoster(projectID string, roster domain.Roster) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if projectID != s.projectID {
		return false
	}
	s.roster = roster
	return true
}

// Roster returns the cached participant roster.
func (s *Store) Roster() domain.Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.roster
	r.Users = append([]domain.Participant(nil), s.roster.Users...)
	return r
}

// Task returns the currently visible value, speculative or confirmed.
func (s *Store) Task(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

// ConfirmedTask returns the last value acknowledged by the remote store.
func (s *Store) ConfirmedTask(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.confirmedTasks[id]
	return t, ok
}

// Sprint returns the currently visible value, speculative or confirmed.
func (s *Store) Sprint(id string) (domain.Sprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.sprints[id]
	return sp, ok
}

// ConfirmedSprint returns the last value acknowledged by the remote store.
func (s *Store) ConfirmedSprint(id string) (domain.Sprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.confirmedSprint[id]
	return sp, ok
}

// Tasks returns all visible tasks ordered by priority (highest first), then
// name for a stable listing.
func (s *Store) Tasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sprints returns all visible sprints ordered by start date, then name.
func (s *Store) Sprints() []domain.Sprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Sprint, 0, len(s.sprints))
	for _, sp := range s.sprints {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := "", ""
		if out[i].StartDate != nil {
			si = *out[i].StartDate
		}
		if out[j].StartDate != nil {
			sj = *out[j].StartDate
		}
		if si != sj {
			return si < sj
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SprintTasks returns the visible tasks referencing a sprint.
func (s *Store) SprintTasks(sprintID string) []domain.Task {
	var out []domain.Task
	for _, t := range s.Tasks() {
		if t.SprintID != nil && *t.SprintID == sprintID {
			out = append(out, t)
		}
	}
	return out
}

// Backlog returns the visible tasks with no sprint reference.
func (s *Store) Backlog() []domain.Task {
	var out []domain.Task
	for _, t := range s.Tasks() {
		if t.InBacklog() {
			out = append(out, t)
		}
	}
	return out
}

// PutSpeculativeTask writes a value readers observe immediately, without
// touching the confirmed baseline.
func (s *Store) PutSpeculativeTask(t domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

// CommitTask installs the canonical value as both visible and confirmed.
func (s *Store) CommitTask(t domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	s.confirmedTasks[t.ID] = t
}

// RollbackTask restores the last confirmed value; an entity that never had
// one (a failed create) disappears.
func (s *Store) RollbackTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.confirmedTasks[id]; ok {
		s.tasks[id] = c
	} else {
		delete(s.tasks, id)
	}
}

// RemoveTask drops a task from both views.
func (s *Store) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	delete(s.confirmedTasks, id)
}

// PutSpeculativeSprint writes a value readers observe immediately.
func (s *Store) PutSpeculativeSprint(sp domain.Sprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sprints[sp.ID] = sp
}

// CommitSprint installs the canonical value as both visible and confirmed.
func (s *Store) CommitSprint(sp domain.Sprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sprints[sp.ID] = sp
	s.confirmedSprint[sp.ID] = sp
}

// RollbackSprint restores the last confirmed value.
func (s *Store) RollbackSprint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.confirmedSprint[id]; ok {
		s.sprints[id] = c
	} else {
		delete(s.sprints, id)
	}
}

// RemoveSprint drops a sprint from both views.
func (s *Store) RemoveSprint(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sprints, id)
	delete(s.confirmedSprint, id)
}

// SetEstimatedEffort writes the predictor result straight into both views.
// Estimation touches no other field, so it bypasses the coordinator.
func (s *Store) SetEstimatedEffort(id string, hours float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	t.EstimatedEffort = &hours
	s.tasks[id] = t
	if c, ok := s.confirmedTasks[id]; ok {
		c.EstimatedEffort = &hours
		s.confirmedTasks[id] = c
	}
	return true
}
