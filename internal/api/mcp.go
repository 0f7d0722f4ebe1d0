package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"ruleminder/internal/ingest"
	"ruleminder/internal/reminder"
	"ruleminder/internal/storage"
	"ruleminder/internal/task"
)

// NewMCPServer creates an MCP server exposing the rule engine to agent
// clients over stdio.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"ruleminder",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("ruleminder — personal rule engine that matches input against your rules, generates tasks, and schedules reminders."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Match free-form input against the stored rules and return the rule-grounded response."),
			mcp.WithString("text", mcp.Description("The input to evaluate"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_tasks",
			mcp.WithDescription("Derive actionable tasks with due dates and reminders from free-form input."),
			mcp.WithString("text", mcp.Description("The input to derive tasks from"), mcp.Required()),
		),
		mcpGenerateTasks(deps),
	)

	s.AddTool(
		mcp.NewTool("upcoming_reminders",
			mcp.WithDescription("List reminders scheduled to fire within the next N hours."),
			mcp.WithNumber("window_hours", mcp.Description("Look-ahead window in hours (default 24)")),
		),
		mcpUpcomingReminders(deps),
	)

	s.AddTool(
		mcp.NewTool("add_document",
			mcp.WithDescription("Submit a document for rule extraction. Rules become searchable once extraction completes."),
			mcp.WithString("name", mcp.Description("Display name for the document")),
			mcp.WithString("type", mcp.Description("Document type: text, markdown, csv, json, pdf, html (default text)")),
			mcp.WithString("content", mcp.Description("Document content; base64 for pdf"), mcp.Required()),
		),
		mcpAddDocument(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"rules://all",
			"Stored Rules",
			mcp.WithResourceDescription("All currently indexed rules as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRules(deps),
	)

	return s
}

func mcpAsk(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		b, err := json.Marshal(deps.Engine.ProcessInput(text))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateTasks(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		tasks := deps.Engine.GenerateTasks(text)
		for _, t := range tasks {
			if err := deps.Store.SaveTask(t); err != nil {
				return mcpError(fmt.Sprintf("generated tasks but failed to persist %s: %v", t.ID, err)), nil
			}
		}
		if tasks == nil {
			tasks = []task.Task{}
		}

		b, err := json.Marshal(tasks)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal tasks: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpcomingReminders(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		window := req.GetInt("window_hours", 24)
		if window <= 0 {
			window = 24
		}

		reminders := deps.Scheduler.Upcoming(window)
		if reminders == nil {
			reminders = []reminder.Reminder{}
		}

		b, err := json.Marshal(reminders)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reminders: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddDocument(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		docType := req.GetString("type", "text")
		name := req.GetString("name", "")

		data := []byte(content)
		if docType == "pdf" {
			decoded, err := base64.StdEncoding.DecodeString(content)
			if err != nil {
				return mcpError("pdf content must be base64-encoded"), nil
			}
			data = decoded
		}

		docID := uuid.New().String()
		doc := storage.Document{
			ID:        docID,
			Name:      name,
			Type:      docType,
			Content:   data,
			CreatedAt: time.Now().UTC(),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			return mcpError(fmt.Sprintf("failed to save document: %v", err)), nil
		}

		payload, err := json.Marshal(map[string]string{"document_id": docID})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal job payload: %v", err)), nil
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        ingest.JobTypeExtract,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			return mcpError(fmt.Sprintf("saved document but failed to queue extraction: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Queued document %s for rule extraction", docID)), nil
	}
}

func mcpResourceRules(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Index.GetAllRules())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rules: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
