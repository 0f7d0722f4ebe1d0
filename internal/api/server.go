// Package api is the transport adapter over the engine: a bearer-token chi
// router for the dashboard, a websocket stream for fired reminders, and an
// MCP server for agent clients. The core never sees HTTP types.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ruleminder/internal/index"
	"ruleminder/internal/ingest"
	"ruleminder/internal/intent"
	"ruleminder/internal/notify"
	"ruleminder/internal/reminder"
	"ruleminder/internal/storage"
	"ruleminder/internal/task"
)

const maxUploadBodySize = 10 << 20 // 10MB

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Store     *storage.Store
	Index     *index.SimilarityIndex
	Engine    *intent.Engine
	Tasks     *task.Store
	Scheduler *reminder.Scheduler
	Hub       *notify.Hub
	Token     string
}

// NewHandler builds the full router. /health is unauthenticated; everything
// else requires the local bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Websocket clients authenticate via query parameter; browsers cannot
	// set headers on websocket dials.
	r.Get("/ws", handleWS(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/documents", handleUploadDocument(deps))
		r.Get("/documents", handleListDocuments(deps))
		r.Get("/rules", handleListRules(deps))
		r.Post("/ask", handleAsk(deps))
		r.Post("/tasks/generate", handleGenerateTasks(deps))
		r.Get("/tasks", handleListTasks(deps))
		r.Patch("/tasks/{id}", handleUpdateTask(deps))
		r.Delete("/tasks/{id}", handleDeleteTask(deps))
		r.Get("/reminders/upcoming", handleUpcomingReminders(deps))
	})

	return r
}

// UploadRequest is a document submitted for rule extraction.
type UploadRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`     // text, markdown, csv, json, pdf, html
	Content  string `json:"content"`  // raw text, or base64 when encoding says so
	Encoding string `json:"encoding"` // "" or "base64"
}

func handleUploadDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req UploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}

		var data []byte
		// PDFs are binary and always arrive base64-encoded.
		if req.Encoding == "base64" || strings.EqualFold(req.Type, "pdf") {
			decoded, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
				return
			}
			data = decoded
		} else {
			data = []byte(req.Content)
		}

		docID := uuid.New().String()
		doc := storage.Document{
			ID:        docID,
			Name:      req.Name,
			Type:      strings.ToLower(req.Type),
			Content:   data,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save document: %v", err)
			return
		}

		payload, err := json.Marshal(map[string]string{"document_id": docID})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        ingest.JobTypeExtract,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"id": docID, "status": "queued"})
	}
}

func handleListDocuments(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		docs, err := deps.Store.ListDocuments(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list documents: %v", err)
			return
		}

		type docView struct {
			ID        string    `json:"id"`
			Name      string    `json:"name"`
			Type      string    `json:"type"`
			Status    string    `json:"status"`
			RuleCount int       `json:"rule_count"`
			CreatedAt time.Time `json:"created_at"`
		}
		out := make([]docView, len(docs))
		for i, d := range docs {
			out[i] = docView{ID: d.ID, Name: d.Name, Type: d.Type, Status: d.Status, RuleCount: d.RuleCount, CreatedAt: d.CreatedAt}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleListRules(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Index.GetAllRules())
	}
}

type textRequest struct {
	Text string `json:"text"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Engine.ProcessInput(req.Text))
	}
}

func handleGenerateTasks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		tasks := deps.Engine.GenerateTasks(req.Text)
		for _, t := range tasks {
			if err := deps.Store.SaveTask(t); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to persist task %s: %v", t.ID, err)
				return
			}
		}
		if tasks == nil {
			tasks = []task.Task{}
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func handleListTasks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deps.Tasks.List())
	}
}

func handleUpdateTask(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var u task.Update
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if u.Status != nil && !u.Status.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid status %q", *u.Status)
			return
		}
		if u.Priority != nil && !u.Priority.Valid() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid priority %q", *u.Priority)
			return
		}

		t, err := deps.Tasks.Apply(id, u)
		if errors.Is(err, task.ErrNotFound) {
			httpError(w, http.StatusNotFound, "invalid_request_error", "task %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to update task: %v", err)
			return
		}

		// A completed task needs no reminder; a moved due date supersedes the
		// old reminder rather than duplicating it.
		switch {
		case u.Status != nil && *u.Status == task.StatusCompleted:
			deps.Scheduler.CancelForTask(t.ID)
		case u.DueDate != nil:
			deps.Scheduler.CancelForTask(t.ID)
			now := time.Now()
			rt := reminder.ComputeReminderTime(now, *t.DueDate, t.Priority)
			if rem := deps.Scheduler.Schedule(t, rt, reminder.TypeDeadline); rem != nil {
				st := rem.ScheduledTime
				t.ReminderTime = &st
				deps.Tasks.Put(t)
			}
		}

		if err := deps.Store.SaveTask(t); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to persist task: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func handleDeleteTask(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		deps.Scheduler.CancelForTask(id)
		deps.Tasks.Delete(id)
		if err := deps.Store.DeleteTask(id); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete task: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleUpcomingReminders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		window := parseIntParam(r, "window", 24, 24*14)
		writeJSON(w, http.StatusOK, deps.Scheduler.Upcoming(window))
	}
}
