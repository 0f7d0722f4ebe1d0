package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ruleminder/internal/api"
	"ruleminder/internal/config"
	"ruleminder/internal/index"
	"ruleminder/internal/ingest"
	"ruleminder/internal/intent"
	"ruleminder/internal/notify"
	"ruleminder/internal/reminder"
	"ruleminder/internal/storage"
	"ruleminder/internal/task"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ruleminder server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running ruleminder server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ruleminder system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "ruleminder.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "ruleminder version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	apiToken, err := config.EnsureAPIToken()
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice: probe the health endpoint before claiming the pid file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("ruleminder is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("ruleminder is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Rebuild the in-memory similarity index from persisted rules.
	idx := index.NewSimilarityIndex()
	rules, err := store.ListRules()
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	idx.AddRules(rules)
	slog.Info("rule index rebuilt", "rules", idx.Count())

	tasks := task.NewStore(time.Now)
	if persisted, err := store.ListTasks(); err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	} else {
		for _, t := range persisted {
			tasks.Put(t)
		}
	}

	// Delivery chain: mark the task, persist, then fan out to websocket
	// subscribers; the hub falls through to slog so firings are always visible.
	hub := notify.NewHub(&notify.SlogSink{})
	sink := notify.SinkFunc(func(n notify.Notification) {
		tasks.MarkReminderSent(n.TaskID)
		if t, err := tasks.Get(n.TaskID); err == nil {
			if err := store.SaveTask(t); err != nil {
				slog.Warn("failed to persist reminder_sent", "task", n.TaskID, "error", err)
			}
		}
		hub.Notify(n)
	})
	scheduler := reminder.NewScheduler(sink)

	// Restore reminders for tasks that still have one pending.
	now := time.Now()
	restored := 0
	for _, t := range tasks.List() {
		if t.Status == task.StatusCompleted || t.ReminderSent || t.DueDate == nil {
			continue
		}
		rt := reminder.ComputeReminderTime(now, *t.DueDate, t.Priority)
		if rem := scheduler.Schedule(t, rt, reminder.TypeDeadline); rem != nil {
			restored++
		}
	}
	slog.Info("reminders restored", "count", restored)

	engine := intent.NewEngine(idx, scheduler, tasks)

	handler := api.NewHandler(api.Deps{
		Store:     store,
		Index:     idx,
		Engine:    engine,
		Tasks:     tasks,
		Scheduler: scheduler,
		Hub:       hub,
		Token:     apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Document extraction worker.
	worker := ingest.NewWorker(store, idx, time.Duration(cfg.Worker.PollIntervalMs)*time.Millisecond)
	go worker.Run(ctx)

	// MCP server over stdio for agent clients.
	mcpSrv := api.NewMCPServer(api.Deps{
		Store:     store,
		Index:     idx,
		Engine:    engine,
		Tasks:     tasks,
		Scheduler: scheduler,
		Hub:       hub,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "ruleminder listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("ruleminder is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop ruleminder (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to ruleminder (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}

	resp, err := healthClient.Get(serverURL + "/health")
	running := false
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if client, err := newAPIClient(); err == nil {
			if rulesResp, err := client.get(ctx, "/rules"); err == nil {
				var rules []json.RawMessage
				if decodeJSON(rulesResp, &rules) == nil {
					printStatus("Rules", "%d", len(rules))
				}
			}
			if tasksResp, err := client.get(ctx, "/tasks"); err == nil {
				var tasks []json.RawMessage
				if decodeJSON(tasksResp, &tasks) == nil {
					printStatus("Tasks", "%d", len(tasks))
				}
			}
			if remResp, err := client.get(ctx, "/reminders/upcoming?window=24"); err == nil {
				var reminders []json.RawMessage
				if decodeJSON(remResp, &reminders) == nil {
					printStatus("Reminders (24h)", "%d", len(reminders))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
