package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/localstate"
	"sprintline/internal/store"
)

type fakeJournal struct {
	entries []localstate.Entry
}

func (f fakeJournal) Recent(ctx context.Context, projectID string, limit int) ([]localstate.Entry, error) {
	return f.entries, nil
}

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T) (*Server, *httptest.Server, *bool) {
	t.Helper()
	st := store.New()
	st.Reset("p1")
	st.ReplaceBaseline("p1",
		[]domain.Task{
			{ID: "t1", ProjectID: "p1", Name: "build", Status: domain.StatusTodo, Priority: 2, SprintID: strPtr("s1")},
			{ID: "t2", ProjectID: "p1", Name: "drift", Status: domain.StatusTodo, Priority: 1},
		},
		[]domain.Sprint{
			{ID: "s1", ProjectID: "p1", Name: "Sprint 1", IsActive: true, StartDate: strPtr("2026-03-02T00:00:00Z"), Duration: 14},
		})

	e := engine.New(st, nil)
	triggered := false
	srv, err := New(Config{
		Engine:  e,
		Journal: fakeJournal{entries: []localstate.Entry{{ID: 1, Op: "task.create", EntityKind: "task", EntityID: "t1", Outcome: "ok"}}},
		Trigger: func() { triggered = true },
	})
	if err != nil {
		t.Fatalf("build server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts, &triggered
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, ts, _ := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/v0/health", &body); code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("health body: %v", body)
	}
}

func TestSnapshot(t *testing.T) {
	_, ts, _ := newTestServer(t)
	var body struct {
		ProjectID string `json:"project_id"`
		Sprints   []struct {
			State string        `json:"state"`
			Tasks []domain.Task `json:"tasks"`
		} `json:"sprints"`
		Backlog []domain.Task `json:"backlog"`
	}
	if code := getJSON(t, ts.URL+"/v0/snapshot", &body); code != http.StatusOK {
		t.Fatalf("snapshot status %d", code)
	}
	if body.ProjectID != "p1" || len(body.Sprints) != 1 {
		t.Fatalf("snapshot shape wrong: %+v", body)
	}
	if body.Sprints[0].State != domain.SprintActive || len(body.Sprints[0].Tasks) != 1 {
		t.Fatalf("sprint row wrong: %+v", body.Sprints[0])
	}
	if len(body.Backlog) != 1 || body.Backlog[0].ID != "t2" {
		t.Fatalf("backlog wrong: %+v", body.Backlog)
	}
}

func TestSnapshotWithoutProject(t *testing.T) {
	srv, ts, _ := newTestServer(t)
	srv.engine.Store.Reset("")
	if code := getJSON(t, ts.URL+"/v0/snapshot", nil); code != http.StatusConflict {
		t.Fatalf("expected 409 with no project, got %d", code)
	}
}

func TestTimeline(t *testing.T) {
	_, ts, _ := newTestServer(t)
	var body struct {
		Buckets []struct {
			Label string `json:"label"`
		} `json:"buckets"`
		Sprints []struct {
			Bar struct {
				Width float64 `json:"width"`
			} `json:"bar"`
		} `json:"sprints"`
	}
	url := ts.URL + "/v0/timeline?granularity=weeks&ref=2026-03-02T00:00:00Z"
	if code := getJSON(t, url, &body); code != http.StatusOK {
		t.Fatalf("timeline status %d", code)
	}
	if len(body.Buckets) != 24 {
		t.Fatalf("expected 24 week buckets, got %d", len(body.Buckets))
	}
	if len(body.Sprints) != 1 || body.Sprints[0].Bar.Width <= 0 {
		t.Fatalf("sprint bar missing: %+v", body.Sprints)
	}
}

func TestTimelineBadRef(t *testing.T) {
	_, ts, _ := newTestServer(t)
	if code := getJSON(t, ts.URL+"/v0/timeline?ref=yesterday", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ref, got %d", code)
	}
}

func TestJournalEndpoint(t *testing.T) {
	_, ts, _ := newTestServer(t)
	var body struct {
		Items []localstate.Entry `json:"items"`
	}
	if code := getJSON(t, ts.URL+"/v0/journal", &body); code != http.StatusOK {
		t.Fatalf("journal status %d", code)
	}
	if len(body.Items) != 1 || body.Items[0].Op != "task.create" {
		t.Fatalf("journal items wrong: %+v", body.Items)
	}
}

func TestRefreshTriggers(t *testing.T) {
	_, ts, triggered := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v0/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("post refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("refresh status %d", resp.StatusCode)
	}
	if !*triggered {
		t.Fatalf("trigger not invoked")
	}
}

func TestWebsocketRefreshPush(t *testing.T) {
	srv, ts, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v0/ws?project=p1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// Registration races the dial response; give the handler a beat.
	time.Sleep(50 * time.Millisecond)
	srv.NotifyRefresh("p1")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if payload["type"] != "refresh" || payload["project"] != "p1" {
		t.Fatalf("unexpected push: %v", payload)
	}
}
