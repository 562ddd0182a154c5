// Package server exposes the local dashboard API: a read-only view over the
// engine's cached state plus a websocket stream of refresh hints. All writes
// go through the CLI and the engine; the dashboard never mutates.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/localstate"
	"sprintline/internal/timeline"
)

// JournalReader serves the history endpoint. Nil disables it.
type JournalReader interface {
	Recent(ctx context.Context, projectID string, limit int) ([]localstate.Entry, error)
}

// Config for the dashboard handler.
type Config struct {
	Engine   *engine.Engine
	Journal  JournalReader
	BasePath string
	// Trigger requests an immediate poll cycle; usually the scheduler's
	// Trigger method. Nil disables the refresh endpoint.
	Trigger func()
	Log     *slog.Logger
}

type Server struct {
	engine  *engine.Engine
	journal JournalReader
	trigger func()
	hub     *hub
	log     *slog.Logger
	router  chi.Router
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"task t1 cannot move to a completed sprint"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		switch status {
		case http.StatusBadRequest:
			code = "bad_request"
		case http.StatusNotFound:
			code = "not_found"
		case http.StatusConflict:
			code = "conflict"
		default:
			code = "internal"
		}
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

func handleError(err error) error {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusBadRequest, "validation_failed", verr.Error())
	}
	var rerr *engine.RemoteError
	if errors.As(err, &rerr) {
		if rerr.Conflict {
			return newAPIError(http.StatusConflict, "remote_conflict", rerr.Error())
		}
		return newAPIError(http.StatusBadGateway, "remote_unavailable", rerr.Error())
	}
	return newAPIError(http.StatusInternalServerError, "internal", err.Error())
}

// New returns the dashboard server.
func New(cfg Config) (*Server, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		engine:  cfg.Engine,
		journal: cfg.Journal,
		trigger: cfg.Trigger,
		hub:     newHub(),
		log:     log,
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Sprintline Dashboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	s.registerSnapshot(group)
	s.registerTimeline(group)
	s.registerJournal(group)
	s.registerRefresh(group)
	router.Get(basePath+"/ws", s.handleWS)

	s.router = router
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type sprintRow struct {
	Sprint domain.Sprint `json:"sprint"`
	State  string        `json:"state"`
	Tasks  []domain.Task `json:"tasks"`
}

type snapshotBody struct {
	ProjectID string        `json:"project_id"`
	Sprints   []sprintRow   `json:"sprints"`
	Backlog   []domain.Task `json:"backlog"`
	Roster    domain.Roster `json:"roster"`
}

func (s *Server) registerSnapshot(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "snapshot",
		Method:      http.MethodGet,
		Path:        "/snapshot",
		Summary:     "Current board state",
		Errors:      []int{http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body snapshotBody `json:"body"`
	}, error) {
		st := s.engine.Store
		projectID := st.ProjectID()
		if projectID == "" {
			return nil, newAPIError(http.StatusConflict, "no_project", "no project selected")
		}
		body := snapshotBody{
			ProjectID: projectID,
			Sprints:   []sprintRow{},
			Backlog:   st.Backlog(),
			Roster:    st.Roster(),
		}
		for _, sp := range st.Sprints() {
			body.Sprints = append(body.Sprints, sprintRow{
				Sprint: sp,
				State:  sp.State(),
				Tasks:  st.SprintTasks(sp.ID),
			})
		}
		return &struct {
			Body snapshotBody `json:"body"`
		}{Body: body}, nil
	})
}

func (s *Server) registerTimeline(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "timeline",
		Method:      http.MethodGet,
		Path:        "/timeline",
		Summary:     "Gantt layout of sprints",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Granularity string `query:"granularity" enum:"weeks,months,quarters" default:"months"`
		Ref         string `query:"ref" doc:"Reference date, RFC 3339; defaults to now"`
	}) (*struct {
		Body struct {
			Buckets []timeline.Bucket    `json:"buckets"`
			Sprints []timeline.SprintBar `json:"sprints"`
		} `json:"body"`
	}, error) {
		st := s.engine.Store
		if st.ProjectID() == "" {
			return nil, newAPIError(http.StatusConflict, "no_project", "no project selected")
		}
		ref := time.Now()
		if input.Ref != "" {
			parsed, err := time.Parse(time.RFC3339, input.Ref)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid ref date")
			}
			ref = parsed
		}
		g := timeline.Granularity(input.Granularity)
		buckets, err := timeline.Buckets(g, ref)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error())
		}
		bars, err := timeline.Layout(st.Sprints(), st.Tasks(), g, ref)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error())
		}
		resp := &struct {
			Body struct {
				Buckets []timeline.Bucket    `json:"buckets"`
				Sprints []timeline.SprintBar `json:"sprints"`
			} `json:"body"`
		}{}
		resp.Body.Buckets = buckets
		resp.Body.Sprints = bars
		return resp, nil
	})
}

func (s *Server) registerJournal(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "journal",
		Method:      http.MethodGet,
		Path:        "/journal",
		Summary:     "Recent operations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" maximum:"500"`
	}) (*struct {
		Body struct {
			Items []localstate.Entry `json:"items"`
		} `json:"body"`
	}, error) {
		if s.journal == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "journal disabled")
		}
		items, err := s.journal.Recent(ctx, s.engine.Store.ProjectID(), input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []localstate.Entry{}
		}
		resp := &struct {
			Body struct {
				Items []localstate.Entry `json:"items"`
			} `json:"body"`
		}{}
		resp.Body.Items = items
		return resp, nil
	})
}

func (s *Server) registerRefresh(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "refresh",
		Method:        http.MethodPost,
		Path:          "/refresh",
		Summary:       "Request an immediate poll cycle",
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if s.trigger == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "refresh disabled")
		}
		s.trigger()
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "scheduled"}}, nil
	})
}
