package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ruleminder/internal/config"
)

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a document for rule extraction",
	Long: `Upload a document for rule extraction.

The document type is inferred from the file extension (txt, md, csv, json,
pdf, html) unless --type is given.

Examples:
  ruleminder upload household-rules.md
  ruleminder upload policies.pdf
  ruleminder upload rules.csv --name "Office rules"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		name, _ := cmd.Flags().GetString("name")
		docType, _ := cmd.Flags().GetString("type")

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		if docType == "" {
			docType = typeFromExtension(path)
		}
		if name == "" {
			name = filepath.Base(path)
		}

		req := map[string]any{
			"name": name,
			"type": docType,
		}
		if docType == "pdf" {
			req["content"] = base64.StdEncoding.EncodeToString(data)
			req["encoding"] = "base64"
		} else {
			req["content"] = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/documents", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Queued document %s for rule extraction", result["id"])
		return nil
	},
}

func typeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".pdf":
		return "pdf"
	case ".html", ".htm":
		return "html"
	default:
		return "text"
	}
}

func init() {
	uploadCmd.Flags().String("name", "", "display name for the document")
	uploadCmd.Flags().String("type", "", "document type (text, markdown, csv, json, pdf, html)")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <text>",
	Short: "Match input against your rules and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ask", map[string]string{"text": text})
		if err != nil {
			return err
		}

		var result struct {
			Response      string `json:"response"`
			RelevantRules []struct {
				Content  string `json:"content"`
				Priority int    `json:"priority"`
			} `json:"relevant_rules"`
			Confidence float64 `json:"confidence"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		if len(result.RelevantRules) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Matched rules:"))
			for _, r := range result.RelevantRules {
				fmt.Printf("  [%d] %s\n", r.Priority, r.Content)
			}
		}
		fmt.Printf("\n%s %.0f%%\n", colorize(colorBold, "Confidence:"), result.Confidence)
		return nil
	},
}

// --- tasks ---

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Generate and manage tasks",
}

var tasksGenerateCmd = &cobra.Command{
	Use:   "generate <text>",
	Short: "Derive tasks with due dates and reminders from input",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tasks/generate", map[string]string{"text": text})
		if err != nil {
			return err
		}

		var tasks []taskView
		if err := decodeJSON(resp, &tasks); err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks generated (no rules matched).")
			return nil
		}

		for _, t := range tasks {
			printTask(t)
		}
		return nil
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tasks")
		if err != nil {
			return err
		}

		var tasks []taskView
		if err := decodeJSON(resp, &tasks); err != nil {
			return err
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return nil
		}

		for _, t := range tasks {
			printTask(t)
		}
		return nil
	},
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed (cancels its reminder)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/tasks/"+args[0], map[string]string{"status": "completed"})
		if err != nil {
			return err
		}

		var t taskView
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}

		printSuccess("Completed: %s", t.Content)
		return nil
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and cancel its reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/tasks/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted task %s", args[0])
		return nil
	},
}

type taskView struct {
	ID           string     `json:"id"`
	Content      string     `json:"content"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	DueDate      *time.Time `json:"due_date"`
	ReminderTime *time.Time `json:"reminder_time"`
}

func printTask(t taskView) {
	fmt.Printf("%s %s  %s", priorityTag(t.Priority), colorize(colorCyan, shortID(t.ID)), t.Content)
	if t.Status != "pending" {
		fmt.Printf("  (%s)", t.Status)
	}
	fmt.Println()
	if t.DueDate != nil {
		fmt.Printf("        due %s", t.DueDate.Local().Format("Mon Jan 2 15:04"))
		if t.ReminderTime != nil {
			fmt.Printf(", reminder %s", t.ReminderTime.Local().Format("Mon Jan 2 15:04"))
		}
		fmt.Println()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	tasksCmd.AddCommand(tasksGenerateCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
	tasksCmd.AddCommand(tasksDeleteCmd)
}

// --- reminders ---

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "List reminders due within the look-ahead window",
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetInt("window")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/reminders/upcoming?window=%d", window))
		if err != nil {
			return err
		}

		var reminders []struct {
			TaskID        string    `json:"task_id"`
			Message       string    `json:"message"`
			Priority      string    `json:"priority"`
			ScheduledTime time.Time `json:"scheduled_time"`
		}
		if err := decodeJSON(resp, &reminders); err != nil {
			return err
		}

		if len(reminders) == 0 {
			fmt.Printf("No reminders in the next %d hours.\n", window)
			return nil
		}

		for _, r := range reminders {
			fmt.Printf("%s %s  %s\n", priorityTag(r.Priority), r.ScheduledTime.Local().Format("Mon Jan 2 15:04"), r.Message)
		}
		return nil
	},
}

func init() {
	remindersCmd.Flags().Int("window", 24, "look-ahead window in hours")
}

// --- rules ---

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List indexed rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/rules")
		if err != nil {
			return err
		}

		var rules []struct {
			Content  string `json:"content"`
			Source   string `json:"source"`
			Priority int    `json:"priority"`
			Category string `json:"category"`
		}
		if err := decodeJSON(resp, &rules); err != nil {
			return err
		}

		if len(rules) == 0 {
			fmt.Println("No rules indexed. Upload a document first.")
			return nil
		}

		for _, r := range rules {
			fmt.Printf("  [%d] %s", r.Priority, r.Content)
			if r.Category != "" {
				fmt.Printf("  %s", colorize(colorCyan, "("+r.Category+")"))
			}
			fmt.Println()
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
