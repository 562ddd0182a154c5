package scheduler_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/scheduler"
	"sprintline/internal/store"
)

// stubRemote counts list fetches and can fail the first few.
type stubRemote struct {
	listCalls atomic.Int64
	failFirst int64
	fetched   chan struct{}
}

func (s *stubRemote) signal() {
	select {
	case s.fetched <- struct{}{}:
	default:
	}
}

func (s *stubRemote) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	n := s.listCalls.Add(1)
	if n <= s.failFirst {
		return nil, fmt.Errorf("transient failure %d", n)
	}
	s.signal()
	return nil, nil
}

func (s *stubRemote) ListSprints(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	return nil, nil
}

func (s *stubRemote) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	return domain.Task{}, nil
}

func (s *stubRemote) PatchTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	return domain.Task{}, nil
}

func (s *stubRemote) DeleteTask(ctx context.Context, id string) error { return nil }

func (s *stubRemote) CreateSprint(ctx context.Context, draft domain.SprintDraft) (domain.Sprint, error) {
	return domain.Sprint{}, nil
}

func (s *stubRemote) PatchSprint(ctx context.Context, id string, patch domain.SprintPatch) (domain.Sprint, error) {
	return domain.Sprint{}, nil
}

func (s *stubRemote) DeleteSprint(ctx context.Context, id string) error { return nil }

func (s *stubRemote) EstimateEffort(ctx context.Context, taskID, complexity, category string, sprintID *string) (float64, error) {
	return 0, nil
}

func (s *stubRemote) CalculateRewards(ctx context.Context, projectID, sprintID string) error {
	return nil
}

func (s *stubRemote) ListParticipants(ctx context.Context, projectID string) (domain.Roster, error) {
	return domain.Roster{}, nil
}

func newScheduler(rem *stubRemote) *scheduler.Scheduler {
	e := engine.New(store.New(), rem)
	e.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	e.Store.Reset("p1")
	s := scheduler.New(e, time.Hour)
	s.Log = e.Log
	return s
}

func TestRunRefreshesUpFront(t *testing.T) {
	rem := &stubRemote{fetched: make(chan struct{}, 1)}
	s := newScheduler(rem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-rem.fetched:
	case <-time.After(5 * time.Second):
		t.Fatalf("no upfront refresh")
	}
	cancel()
	<-done
	if rem.listCalls.Load() != 1 {
		t.Fatalf("expected exactly one fetch, got %d", rem.listCalls.Load())
	}
}

func TestRunSkipsWithoutProject(t *testing.T) {
	rem := &stubRemote{fetched: make(chan struct{}, 1)}
	s := newScheduler(rem)
	s.Engine.Store.Reset("")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	if rem.listCalls.Load() != 0 {
		t.Fatalf("refresh must not fire with no project selected")
	}
}

func TestTriggerRequestsRefresh(t *testing.T) {
	rem := &stubRemote{fetched: make(chan struct{}, 2)}
	s := newScheduler(rem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-rem.fetched
	s.Trigger()
	select {
	case <-rem.fetched:
	case <-time.After(5 * time.Second):
		t.Fatalf("trigger did not cause a refresh")
	}
	cancel()
	<-done
}

func TestTriggerCoalescesAndNeverBlocks(t *testing.T) {
	s := newScheduler(&stubRemote{fetched: make(chan struct{}, 1)})
	// No Run loop draining; repeated triggers must still return.
	s.Trigger()
	s.Trigger()
	s.Trigger()
}

func TestRefreshRetriesTransientFailures(t *testing.T) {
	rem := &stubRemote{fetched: make(chan struct{}, 1), failFirst: 2}
	s := newScheduler(rem)
	s.RetrySpan = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-rem.fetched:
	case <-time.After(15 * time.Second):
		t.Fatalf("refresh never succeeded")
	}
	cancel()
	<-done
	if rem.listCalls.Load() != 3 {
		t.Fatalf("expected 2 failures then success, got %d calls", rem.listCalls.Load())
	}
}
