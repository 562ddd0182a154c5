package engine

import (
	"context"
	"sync"

	"sprintline/internal/domain"
	"sprintline/internal/store"
)

// coordinator applies optimistic mutations: the speculative value is written
// to the store before the remote call is issued, so readers observe the
// change synchronously. On success the server's canonical record replaces the
// speculative one; on failure the last confirmed snapshot is restored.
//
// Mutations against the same entity are serialized: a second mutation waits
// for the in-flight one to resolve before computing its own baseline, so it
// never works from a stale pre-mutation value. Mutations against distinct
// entities proceed independently. The coordinator never retries; retry policy
// belongs to the caller.
type coordinator struct {
	store  *store.Store
	remote Remote

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCoordinator(st *store.Store, rem Remote) *coordinator {
	return &coordinator{
		store:  st,
		remote: rem,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (c *coordinator) entityLock(kind, id string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := kind + "/" + id
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// applyTask runs one optimistic task mutation through its full lifecycle.
// The patch must already be normalized by the validator.
func (c *coordinator) applyTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	l := c.entityLock("task", id)
	l.Lock()
	defer l.Unlock()

	// Baseline is read after acquiring the per-entity slot so back-to-back
	// mutations see each other's outcome.
	current, ok := c.store.Task(id)
	if !ok {
		return domain.Task{}, validationf("task %s: %v", id, ErrNotFound)
	}
	projectID := c.store.ProjectID()

	c.store.PutSpeculativeTask(patch.ApplyTo(current))

	canonical, err := c.remote.PatchTask(ctx, id, patch)
	if c.store.ProjectID() != projectID {
		// The selection changed while the call was outstanding; the store
		// was torn down and this response no longer has a home.
		return domain.Task{}, remoteErr("patch task "+id, context.Canceled)
	}
	if err != nil {
		c.store.RollbackTask(id)
		return domain.Task{}, remoteErr("patch task "+id, err)
	}
	c.store.CommitTask(canonical)
	return canonical, nil
}

// applySprint is the sprint counterpart of applyTask.
func (c *coordinator) applySprint(ctx context.Context, id string, patch domain.SprintPatch) (domain.Sprint, error) {
	l := c.entityLock("sprint", id)
	l.Lock()
	defer l.Unlock()

	current, ok := c.store.Sprint(id)
	if !ok {
		return domain.Sprint{}, validationf("sprint %s: %v", id, ErrNotFound)
	}
	projectID := c.store.ProjectID()

	c.store.PutSpeculativeSprint(patch.ApplyTo(current))

	canonical, err := c.remote.PatchSprint(ctx, id, patch)
	if c.store.ProjectID() != projectID {
		return domain.Sprint{}, remoteErr("patch sprint "+id, context.Canceled)
	}
	if err != nil {
		c.store.RollbackSprint(id)
		return domain.Sprint{}, remoteErr("patch sprint "+id, err)
	}
	c.store.CommitSprint(canonical)
	return canonical, nil
}
