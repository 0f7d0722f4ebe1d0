package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ruleminder/internal/index"
	"ruleminder/internal/ingest"
	"ruleminder/internal/intent"
	"ruleminder/internal/notify"
	"ruleminder/internal/reminder"
	"ruleminder/internal/storage"
	"ruleminder/internal/task"
)

const testToken = "test-token"

func newTestServer(t *testing.T, rules []index.Rule) (*httptest.Server, Deps) {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	idx := index.NewSimilarityIndex()
	idx.AddRules(rules)

	tasks := task.NewStore(nil)
	hub := notify.NewHub(nil)
	scheduler := reminder.NewScheduler(hub)
	engine := intent.NewEngine(idx, scheduler, tasks)

	deps := Deps{
		Store:     store,
		Index:     idx,
		Engine:    engine,
		Tasks:     tasks,
		Scheduler: scheduler,
		Hub:       hub,
		Token:     testToken,
	}

	srv := httptest.NewServer(NewHandler(deps))
	t.Cleanup(srv.Close)
	return srv, deps
}

func doRequest(t *testing.T, method, url string, body any, token string) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doRequest(t, "GET", srv.URL+"/health", nil, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, token := range []string{"", "wrong-token"} {
		resp := doRequest(t, "GET", srv.URL+"/tasks", nil, token)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
	}
}

func TestUploadDocumentQueuesExtraction(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := doRequest(t, "POST", srv.URL+"/documents", map[string]string{
		"name":    "rules.md",
		"type":    "markdown",
		"content": "- Always water the plants in the morning",
	}, testToken)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var result map[string]string
	decodeBody(t, resp, &result)
	if result["id"] == "" || result["status"] != "queued" {
		t.Errorf("result = %v", result)
	}

	// The upload must have persisted the document and queued a job.
	if _, err := deps.Store.GetDocument(result["id"]); err != nil {
		t.Errorf("document not persisted: %v", err)
	}
	job, err := deps.Store.ClaimNextJob([]string{ingest.JobTypeExtract})
	if err != nil || job == nil {
		t.Errorf("no extraction job queued: %v", err)
	}
}

func TestUploadDocumentValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := doRequest(t, "POST", srv.URL+"/documents", map[string]string{"name": "x"}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", resp.StatusCode)
	}

	resp = doRequest(t, "POST", srv.URL+"/documents", map[string]string{
		"type": "pdf", "content": "not base64 !!!",
	}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad base64: status = %d, want 400", resp.StatusCode)
	}
}

func TestAskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, []index.Rule{
		{ID: "r1", Content: "always read reviews before buying electronics", Priority: 4},
	})

	resp := doRequest(t, "POST", srv.URL+"/ask", map[string]string{"text": "buying new headphones"}, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		Response      string          `json:"response"`
		RelevantRules json.RawMessage `json:"relevant_rules"`
		Confidence    float64         `json:"confidence"`
	}
	decodeBody(t, resp, &result)
	if result.Response == "" {
		t.Error("empty response text")
	}

	resp = doRequest(t, "POST", srv.URL+"/ask", map[string]string{"text": "  "}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank text: status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateAndManageTasks(t *testing.T) {
	srv, deps := newTestServer(t, []index.Rule{
		{ID: "r1", Content: "check the calendar before booking anything", Priority: 5},
	})

	resp := doRequest(t, "POST", srv.URL+"/tasks/generate", map[string]string{"text": "booking a dentist appointment tomorrow"}, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d, want 200", resp.StatusCode)
	}
	var generated []task.Task
	decodeBody(t, resp, &generated)
	if len(generated) == 0 {
		t.Fatal("no tasks generated")
	}
	id := generated[0].ID

	// Generated tasks are persisted.
	persisted, err := deps.Store.ListTasks()
	if err != nil || len(persisted) != len(generated) {
		t.Errorf("persisted %d tasks, want %d (err %v)", len(persisted), len(generated), err)
	}

	// Listing reflects the in-memory store.
	resp = doRequest(t, "GET", srv.URL+"/tasks", nil, testToken)
	var listed []task.Task
	decodeBody(t, resp, &listed)
	if len(listed) != len(generated) {
		t.Errorf("listed %d tasks, want %d", len(listed), len(generated))
	}

	// Invalid status is rejected.
	resp = doRequest(t, "PATCH", srv.URL+"/tasks/"+id, map[string]string{"status": "done"}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid status: status = %d, want 400", resp.StatusCode)
	}

	// Unknown task is a 404.
	resp = doRequest(t, "PATCH", srv.URL+"/tasks/ghost", map[string]string{"status": "completed"}, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown task: status = %d, want 404", resp.StatusCode)
	}

	// Completing cancels the task's reminders.
	resp = doRequest(t, "PATCH", srv.URL+"/tasks/"+id, map[string]string{"status": "completed"}, testToken)
	var updated task.Task
	decodeBody(t, resp, &updated)
	if updated.Status != task.StatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	for _, rem := range deps.Scheduler.Upcoming(24 * 14) {
		if rem.TaskID == id {
			t.Error("completed task still has a pending reminder")
		}
	}

	// Delete removes it everywhere.
	resp = doRequest(t, "DELETE", srv.URL+"/tasks/"+id, nil, testToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d, want 200", resp.StatusCode)
	}
	if _, err := deps.Tasks.Get(id); err == nil {
		t.Error("task still in memory after delete")
	}
}

func TestUpdateTaskDueDateReschedules(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	tk := task.Task{ID: "t1", Content: "renew passport", Priority: task.PriorityLow, Status: task.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	deps.Tasks.Put(tk)

	due := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	resp := doRequest(t, "PATCH", srv.URL+"/tasks/t1", map[string]any{"due_date": due.Format(time.RFC3339)}, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var updated task.Task
	decodeBody(t, resp, &updated)
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Errorf("DueDate = %v, want %v", updated.DueDate, due)
	}

	up := deps.Scheduler.Upcoming(24 * 14)
	found := false
	for _, rem := range up {
		if rem.TaskID == "t1" {
			found = true
		}
	}
	if !found {
		t.Error("no reminder scheduled for updated due date")
	}
}

func TestUpcomingRemindersEndpoint(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	tk := task.Task{ID: "t1", Content: "water plants", Priority: task.PriorityMedium}
	deps.Scheduler.Schedule(tk, time.Now().Add(2*time.Hour), reminder.TypeDeadline)

	resp := doRequest(t, "GET", srv.URL+"/reminders/upcoming?window=24", nil, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var reminders []reminder.Reminder
	decodeBody(t, resp, &reminders)
	if len(reminders) != 1 || reminders[0].TaskID != "t1" {
		t.Errorf("reminders = %+v", reminders)
	}
}

func TestListRulesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, []index.Rule{
		{ID: "r1", Content: "always lock the door before leaving", Priority: 9},
	})

	resp := doRequest(t, "GET", srv.URL+"/rules", nil, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var rules []index.Rule
	decodeBody(t, resp, &rules)
	if len(rules) != 1 || rules[0].ID != "r1" {
		t.Errorf("rules = %+v", rules)
	}
}
