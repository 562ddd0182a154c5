package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sprintline/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to the remote planning store over its REST API. Only the
// fields the engine depends on are decoded; responses missing them are
// rejected at this boundary rather than propagated half-parsed. The client
// is shared across goroutines (scheduler, concurrent mutations), so
// configure it before issuing the first request.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsConflict reports whether the store rejected the call because the entity
// changed concurrently.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// MalformedError marks a 2xx response whose body did not match the expected
// shape.
type MalformedError struct {
	Endpoint string
	Reason   string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.Endpoint, e.Reason)
}

// ListTasks returns every task of a project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]domain.Task, error) {
	endpoint := "api/v1/tasks/?project_id=" + url.QueryEscape(projectID)
	var resp []domain.Task
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	for _, t := range resp {
		if err := checkTask(t); err != nil {
			return nil, &MalformedError{Endpoint: endpoint, Reason: err.Error()}
		}
	}
	return resp, nil
}

// CreateTask creates a task and returns the canonical record.
func (c *Client) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	body := map[string]any{
		"task_name":       draft.Name,
		"task_category":   draft.Category,
		"task_complexity": draft.Complexity,
		"actual_effort":   draft.ActualEffort,
		"priority":        draft.Priority,
		"status":          draft.Status,
		"project":         draft.ProjectID,
		"sprint":          deref(draft.SprintID),
		"user":            deref(draft.AssigneeID),
	}
	var resp taskEnvelope
	if err := c.do(ctx, http.MethodPost, "api/v1/tasks/", body, &resp); err != nil {
		return domain.Task{}, err
	}
	t := resp.task()
	if err := checkTask(t); err != nil {
		return domain.Task{}, &MalformedError{Endpoint: "api/v1/tasks/", Reason: err.Error()}
	}
	return t, nil
}

// PatchTask applies a partial update and returns the canonical record. Server
// computed fields (timestamps) may differ from the speculative local value.
func (c *Client) PatchTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	endpoint := fmt.Sprintf("api/v1/tasks/%s/", url.PathEscape(id))
	var resp taskEnvelope
	if err := c.do(ctx, http.MethodPatch, endpoint, patch.Fields(), &resp); err != nil {
		return domain.Task{}, err
	}
	t := resp.task()
	if err := checkTask(t); err != nil {
		return domain.Task{}, &MalformedError{Endpoint: endpoint, Reason: err.Error()}
	}
	return t, nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("api/v1/tasks/%s/", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// ListSprints returns every sprint of a project.
func (c *Client) ListSprints(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	endpoint := "api/v1/sprints/?project=" + url.QueryEscape(projectID)
	var resp []domain.Sprint
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	for _, s := range resp {
		if err := checkSprint(s); err != nil {
			return nil, &MalformedError{Endpoint: endpoint, Reason: err.Error()}
		}
	}
	return resp, nil
}

// CreateSprint creates a planned sprint.
func (c *Client) CreateSprint(ctx context.Context, draft domain.SprintDraft) (domain.Sprint, error) {
	body := map[string]any{
		"sprint_name":  draft.Name,
		"project":      draft.ProjectID,
		"is_active":    false,
		"is_completed": false,
	}
	if draft.StartDate != nil {
		body["start_date"] = *draft.StartDate
	}
	if draft.Duration > 0 {
		body["duration"] = draft.Duration
	}
	if draft.Goal != "" {
		body["sprint_goal"] = draft.Goal
	}
	var resp domain.Sprint
	if err := c.do(ctx, http.MethodPost, "api/v1/sprints/", body, &resp); err != nil {
		return domain.Sprint{}, err
	}
	if err := checkSprint(resp); err != nil {
		return domain.Sprint{}, &MalformedError{Endpoint: "api/v1/sprints/", Reason: err.Error()}
	}
	return resp, nil
}

// PatchSprint applies a partial update and returns the canonical record.
func (c *Client) PatchSprint(ctx context.Context, id string, patch domain.SprintPatch) (domain.Sprint, error) {
	endpoint := fmt.Sprintf("api/v1/sprints/%s/", url.PathEscape(id))
	var resp domain.Sprint
	if err := c.do(ctx, http.MethodPatch, endpoint, patch.Fields(), &resp); err != nil {
		return domain.Sprint{}, err
	}
	if err := checkSprint(resp); err != nil {
		return domain.Sprint{}, &MalformedError{Endpoint: endpoint, Reason: err.Error()}
	}
	return resp, nil
}

// DeleteSprint removes a sprint.
func (c *Client) DeleteSprint(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("api/v1/sprints/%s/", url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// EstimateEffort asks the external predictor for an effort estimate in hours.
func (c *Client) EstimateEffort(ctx context.Context, taskID, complexity, category string, sprintID *string) (float64, error) {
	body := map[string]any{
		"task_id":         taskID,
		"task_complexity": complexity,
		"task_category":   category,
		"sprint_id":       deref(sprintID),
	}
	var resp struct {
		PredictedEffort *float64 `json:"predicted_effort"`
	}
	if err := c.do(ctx, http.MethodPost, "api/v1/predict/", body, &resp); err != nil {
		return 0, err
	}
	if resp.PredictedEffort == nil {
		return 0, &MalformedError{Endpoint: "api/v1/predict/", Reason: "predicted_effort missing"}
	}
	return *resp.PredictedEffort, nil
}

// CalculateRewards triggers reward scoring for a completed sprint. The
// computation itself is external; only the trigger lives here.
func (c *Client) CalculateRewards(ctx context.Context, projectID, sprintID string) error {
	endpoint := fmt.Sprintf("gamification/calculate-rewards/?project_id=%s&sprint_id=%s",
		url.QueryEscape(projectID), url.QueryEscape(sprintID))
	return c.do(ctx, http.MethodPost, endpoint, nil, nil)
}

// ListParticipants returns the project roster.
func (c *Client) ListParticipants(ctx context.Context, projectID string) (domain.Roster, error) {
	endpoint := fmt.Sprintf("projects/%s/users/", url.PathEscape(projectID))
	var resp domain.Roster
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return domain.Roster{}, err
	}
	return resp, nil
}

// taskEnvelope tolerates both bare task responses and the {message, data}
// wrapper some store endpoints use.
type taskEnvelope struct {
	domain.Task
	Data *domain.Task `json:"data"`
}

func (e taskEnvelope) task() domain.Task {
	if e.Data != nil {
		return *e.Data
	}
	return e.Task
}

func checkTask(t domain.Task) error {
	if t.ID == "" {
		return fmt.Errorf("task id missing")
	}
	switch t.Status {
	case domain.StatusTodo, domain.StatusInProgress, domain.StatusDone:
	default:
		return fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
	}
	return nil
}

func checkSprint(s domain.Sprint) error {
	if s.ID == "" {
		return fmt.Errorf("sprint id missing")
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &MalformedError{Endpoint: endpoint, Reason: err.Error()}
		}
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func deref(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
