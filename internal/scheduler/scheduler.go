// Package scheduler drives the engine's re-fetch entry point on a cadence,
// decoupled from any presentation lifecycle. Refreshes fire on project
// selection, on demand after mutations and cascades, and on a fixed
// interval; all three paths funnel through the same engine call.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"sprintline/internal/engine"
)

const (
	defaultInterval  = 30 * time.Second
	defaultRetrySpan = 20 * time.Second
)

type Scheduler struct {
	Engine   *engine.Engine
	Interval time.Duration
	// RetrySpan bounds the exponential backoff applied to a failing fetch
	// within one refresh attempt. The engine's coordinator never retries;
	// retrying list fetches here is the caller-side policy.
	RetrySpan time.Duration
	Log       *slog.Logger

	trigger chan struct{}
}

func New(e *engine.Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		Engine:    e,
		Interval:  interval,
		RetrySpan: defaultRetrySpan,
		trigger:   make(chan struct{}, 1),
	}
}

func (s *Scheduler) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Trigger requests an immediate refresh. Coalesces when one is pending.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes until the context is canceled. It performs one refresh up
// front so a freshly selected project is not stuck waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refresh(ctx)
		case <-s.trigger:
			s.refresh(ctx)
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	projectID := s.Engine.Store.ProjectID()
	if projectID == "" {
		return
	}
	op := func() error {
		err := s.Engine.Refresh(ctx, projectID)
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return backoff.Permanent(err)
		}
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.RetrySpan
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		s.log().Warn("refresh failed", "project", projectID, "error", err)
	}
}
