package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintline/internal/domain"
	"sprintline/internal/remote"
)

func newClient(t *testing.T, handler http.HandlerFunc) *remote.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := remote.New(srv.URL)
	c.BearerToken = "tok-123"
	return c
}

func TestListTasks(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks/", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "t1", "task_name": "a", "status": "TODO", "project_id": "p1"},
			{"id": "t2", "task_name": "b", "status": "DONE", "project_id": "p1", "sprint": "s1"},
		})
	})
	tasks, err := c.ListTasks(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Name)
	require.NotNil(t, tasks[1].SprintID)
	assert.Equal(t, "s1", *tasks[1].SprintID)
}

func TestClientIsSafeForConcurrentUse(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	})
	require.NotNil(t, c.HTTPClient, "New must build the HTTP client up front")

	// The scheduler and in-flight mutations share one client; requests from
	// several goroutines must not touch shared client state.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListTasks(context.Background(), "p1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestListTasksRejectsUnknownStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "t1", "task_name": "a", "status": "ARCHIVED"},
		})
	})
	_, err := c.ListTasks(context.Background(), "p1")
	var merr *remote.MalformedError
	require.ErrorAs(t, err, &merr)
}

func TestPatchTaskUnwrapsEnvelope(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/tasks/t1/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Task updated successfully",
			"data":    map[string]any{"id": "t1", "task_name": "a", "status": "IN_PROGRESS"},
		})
	})
	status := domain.StatusInProgress
	task, err := c.PatchTask(context.Background(), "t1", domain.TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, task.Status)
}

func TestPatchTaskSendsNullForClearedSprint(t *testing.T) {
	var got map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"id": "t1", "task_name": "a", "status": "TODO"})
	})
	cleared := ""
	todo := domain.StatusTodo
	_, err := c.PatchTask(context.Background(), "t1", domain.TaskPatch{SprintID: &cleared, Status: &todo})
	require.NoError(t, err)

	v, present := got["sprint"]
	require.True(t, present, "cleared sprint must be sent explicitly")
	assert.Nil(t, v)
	assert.Equal(t, "TODO", got["status"])
	_, present = got["priority"]
	assert.False(t, present, "untouched fields must not be sent")
}

func TestConflictStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"stale"}`, http.StatusConflict)
	})
	status := domain.StatusDone
	_, err := c.PatchTask(context.Background(), "t1", domain.TaskPatch{Status: &status})
	var aerr *remote.APIError
	require.ErrorAs(t, err, &aerr)
	assert.True(t, aerr.IsConflict())
}

func TestEstimateEffort(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/predict/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "HARD", body["task_complexity"])
		json.NewEncoder(w).Encode(map[string]any{"predicted_effort": 12.5})
	})
	hours, err := c.EstimateEffort(context.Background(), "t1", "HARD", "FE", nil)
	require.NoError(t, err)
	assert.Equal(t, 12.5, hours)
}

func TestEstimateEffortMissingField(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"confidence": 0.9})
	})
	_, err := c.EstimateEffort(context.Background(), "t1", "EASY", "FE", nil)
	var merr *remote.MalformedError
	require.ErrorAs(t, err, &merr)
}

func TestCalculateRewards(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/gamification/calculate-rewards/", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "s1", r.URL.Query().Get("sprint_id"))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, c.CalculateRewards(context.Background(), "p1", "s1"))
}

func TestListParticipants(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/p1/users/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"project_name": "Demo",
			"users": []map[string]any{
				{"id": "u1", "name": "Sam", "points": 42},
			},
		})
	})
	roster, err := c.ListParticipants(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Demo", roster.ProjectName)
	require.Len(t, roster.Users, 1)
	assert.Equal(t, 42, roster.Users[0].Points)
}

func TestLocalUserID(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u7"})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	id, err := remote.LocalUserID(signed)
	require.NoError(t, err)
	assert.Equal(t, "u7", id)
}

func TestLocalUserIDFallsBackToSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u9"})
	signed, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	id, err := remote.LocalUserID(signed)
	require.NoError(t, err)
	assert.Equal(t, "u9", id)
}

func TestLocalUserIDRequiresToken(t *testing.T) {
	_, err := remote.LocalUserID("  ")
	assert.Error(t, err)
}
