package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mindmate/gtasks"
	"mindmate/internal/cli/prompt"
	"mindmate/internal/config"
	"mindmate/internal/connectivity"
	"mindmate/internal/credentials"
	"mindmate/internal/daemon"
	"mindmate/internal/history"
	"mindmate/internal/markdown"
	"mindmate/internal/notification"
	"mindmate/internal/reminder"
	"mindmate/internal/shutdown"
	"mindmate/internal/tui"
	"mindmate/internal/utils"
	"mindmate/remote"
	"mindmate/store/sqlite"
	syncengine "mindmate/sync"
	"mindmate/task"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// clientSecretEnv is consulted for the OAuth client secret when the flag is
// not given. The secret never lives in the config file.
const clientSecretEnv = "MINDMATE_GTASKS_CLIENT_SECRET"

// Config holds application configuration
type Config struct {
	NoPrompt   bool
	Verbose    bool
	ConfigPath string
	DBPath     string // Path to database file (for testing)
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewMindMate(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			var sugg *utils.ErrorWithSuggestion
			if errors.As(err, &sugg) && sugg.GetSuggestion() != "" {
				_, _ = fmt.Fprintln(stderr, "Hint:", sugg.GetSuggestion())
			}
			if cfg != nil && cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	response := errorResponse{
		Error:  err.Error(),
		Code:   1,
		Result: ResultError,
	}

	jsonBytes, _ := json.Marshal(response)
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
}

// NewMindMate creates the root command with injectable IO
func NewMindMate(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "mindmate",
		Short:   "A personal task manager that syncs everywhere",
		Long:    "mindmate manages tasks offline-first, syncing to a remote store and mirroring into an external task service when connected.",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			noPrompt, _ := cmd.Flags().GetBool("no-prompt")
			if noPrompt {
				cfg.NoPrompt = true
			}
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				cfg.Verbose = true
			}
			utils.SetVerboseMode(cfg.Verbose)
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg.ConfigPath = path
			}
			if path, _ := cmd.Flags().GetString("db"); path != "" {
				cfg.DBPath = path
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("db", "", "Path to database file (overrides config)")

	cmd.AddCommand(newAddCmd(stdout, cfg))
	cmd.AddCommand(newListCmd(stdout, cfg))
	cmd.AddCommand(newUpdateCmd(stdout, cfg))
	cmd.AddCommand(newDoneCmd(stdout, cfg))
	cmd.AddCommand(newDeleteCmd(stdout, cfg))
	cmd.AddCommand(newSyncCmd(stdout, cfg))
	cmd.AddCommand(newConnectCmd(stdout, stderr, cfg))
	cmd.AddCommand(newDisconnectCmd(stdout, cfg))
	cmd.AddCommand(newTUICmd(cfg))
	cmd.AddCommand(newRemindCmd(stdout, cfg))
	cmd.AddCommand(newConfigCmd(stdout, cfg))

	return cmd
}

// engine bundles everything a command needs to act on tasks.
type engine struct {
	cfg     *config.Config
	store   *sqlite.Store
	orch    *syncengine.Orchestrator
	creds   *credentials.Manager
	checker *connectivity.Checker
	userID  string
	dbPath  string

	remoteConfigured bool
}

// close flushes outstanding mirror work, then releases the store.
func (e *engine) close() {
	e.orch.Wait()
	_ = e.store.Close()
}

// buildEngine assembles the sync engine from configuration. A missing remote
// base URL degrades to offline-only operation rather than failing.
func buildEngine(cliCfg *Config) (*engine, error) {
	path := cliCfg.ConfigPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbPath := cliCfg.DBPath
	if dbPath == "" {
		dbPath = cfg.Storage.Path
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("could not create data directory: %w", err)
		}
	}

	st, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}

	userID := cfg.User.Email
	if userID == "" {
		userID = "local"
	}

	var remoteClient *remote.Client
	var health connectivity.HealthFunc
	mode := cfg.OfflineMode()
	if cfg.Remote.BaseURL != "" {
		timeout, err := cfg.RemoteTimeout()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		remoteClient, err = remote.New(remote.Config{
			BaseURL:   cfg.Remote.BaseURL,
			UserEmail: userID,
			Timeout:   timeout,
		})
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		health = remoteClient.Health
	} else {
		// No remote store configured; every mutation stays queued.
		mode = connectivity.ModeOffline
	}

	connTimeout, err := cfg.ConnectivityTimeout()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	checker := connectivity.NewChecker(mode, cfg.Sync.ProbeURL, health, connTimeout)

	queue := syncengine.NewQueue(st, cfg.Sync.MaxAttempts)

	var creds *credentials.Manager
	var mirror syncengine.MirrorService
	if cfg.GTasks.Enabled {
		creds = credentials.NewManager(oauthConfig(cfg))
		gtTimeout, err := cfg.GTasksTimeout()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		gt, err := gtasks.New(gtasks.Config{
			BaseURL: cfg.GTasks.BaseURL,
			Timeout: gtTimeout,
		}, creds)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		registry := syncengine.NewRegistry(st, gt, cfg.GTasks.ListPrefix)
		mirror = syncengine.NewMirror(st, registry, gt)
	}

	var remoteSvc syncengine.RemoteService
	if remoteClient != nil {
		remoteSvc = remoteClient
	}
	orch := syncengine.NewOrchestrator(st, remoteSvc, queue, mirror, checker)

	return &engine{
		cfg:              cfg,
		store:            st,
		orch:             orch,
		creds:            creds,
		checker:          checker,
		userID:           userID,
		dbPath:           dbPath,
		remoteConfigured: remoteClient != nil,
	}, nil
}

// historyPath keeps the sync history next to the task database.
func (e *engine) historyPath() string {
	return filepath.Join(filepath.Dir(e.dbPath), "history.db")
}

// recordHistory persists a sync cycle entry and prunes old ones. History is
// advisory, so failures only get logged.
func (e *engine) recordHistory(entry history.Entry) {
	enabled := history.IsEnabledFromEnv(e.cfg.History.Enabled)
	rec, err := history.NewRecorder(e.historyPath(), enabled)
	if err != nil {
		utils.Debugf("could not open sync history: %v", err)
		return
	}
	defer func() { _ = rec.Close() }()

	if err := rec.Record(entry); err != nil {
		utils.Debugf("could not record sync history: %v", err)
	}
	if e.cfg.History.RetentionDays > 0 {
		_, _ = rec.Cleanup(e.cfg.History.RetentionDays)
	}
}

func oauthConfig(cfg *config.Config) credentials.OAuthConfig {
	return credentials.OAuthConfig{
		ClientID:     cfg.GTasks.ClientID,
		ClientSecret: os.Getenv(clientSecretEnv),
		AuthURL:      cfg.GTasks.AuthURL,
		TokenURL:     cfg.GTasks.TokenURL,
		RedirectURL:  cfg.GTasks.RedirectURL,
		Scopes:       []string{"tasks"},
	}
}

// findTask resolves a task reference, either an exact id or a
// case-insensitive title. An ambiguous title falls back to an interactive
// selector, or errors in no-prompt mode.
func findTask(ctx context.Context, e *engine, ref string, in io.Reader, out io.Writer, noPrompt bool) (*task.Task, error) {
	if t, err := e.orch.GetTask(ctx, e.userID, ref); err == nil && t != nil {
		return t, nil
	}

	tasks, err := e.orch.Tasks(ctx, e.userID)
	if err != nil {
		return nil, err
	}

	var matches []task.Task
	for i := range tasks {
		if strings.EqualFold(tasks[i].Title, ref) {
			matches = append(matches, tasks[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil, utils.ErrTaskNotFound(ref)
	case 1:
		return &matches[0], nil
	}

	if noPrompt {
		return nil, fmt.Errorf("multiple tasks named '%s'; use the task id", ref)
	}
	selector := &prompt.TaskSelector{
		Tasks:  matches,
		Prompt: fmt.Sprintf("Multiple tasks named '%s':", ref),
		Reader: in,
		Writer: out,
	}
	return selector.Run()
}

// parseDate accepts YYYY-MM-DD or RFC3339 timestamps.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, utils.ErrInvalidDate(s)
}

// newAddCmd creates the 'add' subcommand
func newAddCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add [title]",
		Aliases: []string{"a"},
		Short:   "Add a new task",
		Long:    "Create a task locally and sync it to the remote store when reachable.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()

			// Quick-add metadata in the title ("Buy milk !2 @2026-01-15
			// #errands") fills fields the flags leave unset.
			title, quickPriority, quickDue, quickCategory := markdown.ParseQuickAdd(args[0])
			if title == "" {
				return fmt.Errorf("task title cannot be empty")
			}
			t := task.Task{UserID: e.userID, Title: title}

			t.Description, _ = cmd.Flags().GetString("description")
			t.Category, _ = cmd.Flags().GetString("category")
			if t.Category == "" {
				t.Category = quickCategory
			}
			t.Priority, _ = cmd.Flags().GetInt("priority")
			if !cmd.Flags().Changed("priority") {
				t.Priority = quickPriority
			}
			if t.Priority < 0 || t.Priority > 9 {
				return utils.ErrInvalidPriority(t.Priority)
			}
			t.DurationMinutes, _ = cmd.Flags().GetInt("duration")

			dueStr, _ := cmd.Flags().GetString("due-date")
			if t.DueDate, err = parseDate(dueStr); err != nil {
				return err
			}
			if t.DueDate == nil {
				t.DueDate = quickDue
			}
			startStr, _ := cmd.Flags().GetString("start-date")
			if t.StartDate, err = parseDate(startStr); err != nil {
				return err
			}
			remindStr, _ := cmd.Flags().GetString("reminder")
			if t.ReminderAt, err = parseDate(remindStr); err != nil {
				return err
			}

			if parentRef, _ := cmd.Flags().GetString("parent"); parentRef != "" {
				parent, err := findTask(ctx, e, parentRef, cmd.InOrStdin(), stdout, cfg.NoPrompt)
				if err != nil {
					return err
				}
				if parent.ParentID != "" {
					return fmt.Errorf("'%s' is already a sub-task; only one level of nesting is supported", parent.Title)
				}
				t.ParentID = parent.ID
			}

			created, err := e.orch.CreateTask(ctx, &t)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputTaskJSON(created, stdout)
			}
			_, _ = fmt.Fprintf(stdout, "Added task: %s [%s]\n", created.Title, created.SyncStatus)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("description", "d", "", "Task description")
	cmd.Flags().StringP("category", "c", "", "Task category (maps to an external list)")
	cmd.Flags().IntP("priority", "p", 0, "Task priority (0-9)")
	cmd.Flags().Int("duration", 0, "Estimated duration in minutes")
	cmd.Flags().String("due-date", "", "Due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().String("start-date", "", "Start date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().String("reminder", "", "Reminder time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringP("parent", "P", "", "Parent task title or id (makes this a sub-task)")

	return cmd
}

// newListCmd creates the 'list' subcommand
func newListCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "get"},
		Short:   "List tasks",
		Long:    "Show all tasks with their sync status, sub-tasks nested under parents.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			tasks, err := e.orch.Tasks(ctx, e.userID)
			if err != nil {
				return err
			}

			category, _ := cmd.Flags().GetString("category")
			showArchived, _ := cmd.Flags().GetBool("archived")
			filtered := tasks[:0]
			for _, t := range tasks {
				if t.Archived != showArchived {
					continue
				}
				if category != "" && !strings.EqualFold(t.Category, category) {
					continue
				}
				filtered = append(filtered, t)
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputTaskListJSON(filtered, stdout)
			}
			if asMarkdown, _ := cmd.Flags().GetBool("markdown"); asMarkdown {
				_, _ = fmt.Fprint(stdout, markdown.Render(filtered))
				return nil
			}

			if len(filtered) == 0 {
				_, _ = fmt.Fprintln(stdout, "No tasks. Add one with: mindmate add \"My task\"")
			} else {
				printTaskTree(filtered, stdout)
			}

			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("category", "c", "", "Only show tasks in this category")
	cmd.Flags().Bool("archived", false, "Show archived tasks instead of active ones")
	cmd.Flags().Bool("markdown", false, "Export tasks as a markdown checklist")

	return cmd
}

// newUpdateCmd creates the 'update' subcommand
func newUpdateCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "update [task]",
		Aliases: []string{"u"},
		Short:   "Update a task",
		Long:    "Modify a task's fields. The task is matched by id or title.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			t, err := findTask(ctx, e, args[0], cmd.InOrStdin(), stdout, cfg.NoPrompt)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("title") {
				t.Title, _ = cmd.Flags().GetString("title")
			}
			if cmd.Flags().Changed("description") {
				t.Description, _ = cmd.Flags().GetString("description")
			}
			if cmd.Flags().Changed("category") {
				t.Category, _ = cmd.Flags().GetString("category")
			}
			if cmd.Flags().Changed("priority") {
				t.Priority, _ = cmd.Flags().GetInt("priority")
				if t.Priority < 0 || t.Priority > 9 {
					return utils.ErrInvalidPriority(t.Priority)
				}
			}
			if cmd.Flags().Changed("duration") {
				t.DurationMinutes, _ = cmd.Flags().GetInt("duration")
			}
			if cmd.Flags().Changed("due-date") {
				s, _ := cmd.Flags().GetString("due-date")
				if t.DueDate, err = parseDate(s); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("start-date") {
				s, _ := cmd.Flags().GetString("start-date")
				if t.StartDate, err = parseDate(s); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("reminder") {
				s, _ := cmd.Flags().GetString("reminder")
				if t.ReminderAt, err = parseDate(s); err != nil {
					return err
				}
			}
			if archive, _ := cmd.Flags().GetBool("archive"); archive {
				t.Archived = true
			}
			if unarchive, _ := cmd.Flags().GetBool("unarchive"); unarchive {
				t.Archived = false
			}
			if noParent, _ := cmd.Flags().GetBool("no-parent"); noParent {
				t.ParentID = ""
			} else if parentRef, _ := cmd.Flags().GetString("parent"); parentRef != "" {
				parent, err := findTask(ctx, e, parentRef, cmd.InOrStdin(), stdout, cfg.NoPrompt)
				if err != nil {
					return err
				}
				if parent.ID == t.ID {
					return fmt.Errorf("a task cannot be its own parent")
				}
				if parent.ParentID != "" {
					return fmt.Errorf("'%s' is already a sub-task; only one level of nesting is supported", parent.Title)
				}
				t.ParentID = parent.ID
			}

			updated, err := e.orch.UpdateTask(ctx, t)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputTaskJSON(updated, stdout)
			}
			_, _ = fmt.Fprintf(stdout, "Updated task: %s [%s]\n", updated.Title, updated.SyncStatus)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("title", "", "New task title")
	cmd.Flags().StringP("description", "d", "", "New description")
	cmd.Flags().StringP("category", "c", "", "New category")
	cmd.Flags().IntP("priority", "p", 0, "New priority (0-9)")
	cmd.Flags().Int("duration", 0, "New estimated duration in minutes")
	cmd.Flags().String("due-date", "", "New due date (use \"\" to clear)")
	cmd.Flags().String("start-date", "", "New start date (use \"\" to clear)")
	cmd.Flags().String("reminder", "", "New reminder time (use \"\" to clear)")
	cmd.Flags().StringP("parent", "P", "", "New parent task title or id")
	cmd.Flags().Bool("no-parent", false, "Remove the parent relationship")
	cmd.Flags().Bool("archive", false, "Archive the task")
	cmd.Flags().Bool("unarchive", false, "Unarchive the task")

	return cmd
}

// newDoneCmd creates the 'done' subcommand
func newDoneCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "done [task]",
		Aliases: []string{"complete", "c"},
		Short:   "Toggle task completion",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			t, err := findTask(ctx, e, args[0], cmd.InOrStdin(), stdout, cfg.NoPrompt)
			if err != nil {
				return err
			}

			updated, err := e.orch.ToggleComplete(ctx, e.userID, t.ID)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputTaskJSON(updated, stdout)
			}
			if updated.Completed() {
				_, _ = fmt.Fprintf(stdout, "Completed task: %s\n", updated.Title)
			} else {
				_, _ = fmt.Fprintf(stdout, "Reopened task: %s\n", updated.Title)
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newDeleteCmd creates the 'delete' subcommand
func newDeleteCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete [task]",
		Aliases: []string{"del", "d", "rm"},
		Short:   "Delete a task",
		Long:    "Remove a task locally and from the remote store and external mirror.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			t, err := findTask(ctx, e, args[0], cmd.InOrStdin(), stdout, cfg.NoPrompt)
			if err != nil {
				return err
			}

			force, _ := cmd.Flags().GetBool("force")
			if !force {
				ok, err := prompt.Confirm(cmd.InOrStdin(), stdout,
					fmt.Sprintf("Delete task '%s'?", t.Title), cfg.NoPrompt)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(stdout, "Cancelled")
					return nil
				}
			}

			if err := e.orch.DeleteTask(ctx, e.userID, t.ID); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(stdout, "Deleted task: %s\n", t.Title)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolP("force", "f", false, "Delete without confirmation")

	return cmd
}

// newSyncCmd creates the 'sync' subcommand
func newSyncCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued changes and refresh the external mirror",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			if !e.remoteConfigured {
				return utils.ErrRemoteUnreachable("no remote store configured")
			}
			if !connectivity.FullyOnline(ctx, e.checker) {
				return utils.ErrRemoteUnreachable("remote store is not reachable")
			}

			started := time.Now()
			result, err := e.orch.DrainQueue(ctx, e.userID)
			if err != nil {
				e.recordHistory(history.Entry{
					StartedAt: started, FinishedAt: time.Now(),
					Trigger: history.TriggerManual, Error: err.Error(),
				})
				return err
			}

			triggered, err := e.orch.RetryMirror(ctx, e.userID)
			if err != nil {
				return err
			}

			e.recordHistory(history.Entry{
				StartedAt: started, FinishedAt: time.Now(),
				Trigger: history.TriggerManual,
				Sent:    result.Sent, Halted: result.Halted,
				Errored: len(result.Errored), MirrorPushes: triggered,
			})

			_, _ = fmt.Fprintf(stdout, "Synced %d queued change(s)\n", result.Sent)
			if result.Halted {
				_, _ = fmt.Fprintln(stdout, "Sync halted: an action failed and will be retried")
			}
			for _, a := range result.Errored {
				_, _ = fmt.Fprintf(stdout, "Gave up on %s of task %s: %s\n", a.Type, a.TaskID, a.LastError)
			}
			if triggered > 0 {
				_, _ = fmt.Fprintf(stdout, "Refreshing external mirror for %d task(s)\n", triggered)
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	syncCmd.AddCommand(newSyncStatusCmd(stdout, cfg))
	syncCmd.AddCommand(newSyncQueueCmd(stdout, cfg))
	syncCmd.AddCommand(newSyncHistoryCmd(stdout, cfg))
	syncCmd.AddCommand(newSyncWatchCmd(stdout, cfg))

	return syncCmd
}

// newSyncHistoryCmd creates the 'sync history' subcommand
func newSyncHistoryCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			rec, err := history.NewRecorder(e.historyPath(), true)
			if err != nil {
				return err
			}
			defer func() { _ = rec.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := rec.Recent(limit)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				if entries == nil {
					entries = []history.Entry{}
				}
				jsonBytes, err := json.Marshal(entries)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(stdout, string(jsonBytes))
				return nil
			}

			if len(entries) == 0 {
				_, _ = fmt.Fprintln(stdout, "No sync history yet")
			} else {
				_, _ = fmt.Fprintf(stdout, "%-20s %-8s %-6s %-8s %s\n", "TIME", "TRIGGER", "SENT", "MIRROR", "RESULT")
				for _, entry := range entries {
					result := "ok"
					switch {
					case entry.Error != "":
						result = entry.Error
					case entry.Halted:
						result = "halted"
					case entry.Errored > 0:
						result = fmt.Sprintf("%d action(s) gave up", entry.Errored)
					}
					_, _ = fmt.Fprintf(stdout, "%-20s %-8s %-6d %-8d %s\n",
						entry.StartedAt.Format("2006-01-02 15:04:05"), entry.Trigger,
						entry.Sent, entry.MirrorPushes, result)
				}
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum entries to show")

	return cmd
}

// newSyncWatchCmd creates the 'sync watch' subcommand
func newSyncWatchCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically until interrupted",
		Long:  "Drain the queue and refresh the external mirror on an interval. Consecutive failures stretch the interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			if !e.remoteConfigured {
				e.close()
				return utils.ErrRemoteUnreachable("no remote store configured")
			}

			notify, _ := cmd.Flags().GetBool("notify")
			notifier := notification.NewManager(notification.Config{
				Enabled:        notify,
				OnSyncComplete: true,
				OnSyncError:    true,
			})
			defer func() { _ = notifier.Close() }()

			interval, _ := cmd.Flags().GetDuration("interval")
			runner := daemon.New(interval, e.checker, func(ctx context.Context) error {
				started := time.Now()
				result, err := e.orch.DrainQueue(ctx, e.userID)
				if err != nil {
					e.recordHistory(history.Entry{
						StartedAt: started, FinishedAt: time.Now(),
						Trigger: history.TriggerWatch, Error: err.Error(),
					})
					_ = notifier.Send(notification.Notification{
						Type:    notification.TypeSyncError,
						Title:   "Sync failed",
						Message: err.Error(),
					})
					return err
				}
				triggered, mirrorErr := e.orch.RetryMirror(ctx, e.userID)
				if mirrorErr != nil {
					utils.Debugf("mirror retry failed: %v", mirrorErr)
				}

				e.recordHistory(history.Entry{
					StartedAt: started, FinishedAt: time.Now(),
					Trigger: history.TriggerWatch,
					Sent:    result.Sent, Halted: result.Halted,
					Errored: len(result.Errored), MirrorPushes: triggered,
				})

				if result.Sent > 0 || triggered > 0 {
					_, _ = fmt.Fprintf(stdout, "Synced %d change(s), refreshed %d mirror task(s)\n", result.Sent, triggered)
					_ = notifier.Send(notification.Notification{
						Type:    notification.TypeSyncComplete,
						Title:   "Sync complete",
						Message: fmt.Sprintf("%d change(s) synced", result.Sent),
					})
				}
				return nil
			})

			mgr := shutdown.NewManager()
			mgr.ListenForSignals()
			mgr.RegisterCleanup("sync engine", func(context.Context) error {
				e.close()
				return nil
			})

			_, _ = fmt.Fprintf(stdout, "Watching; syncing every %s (Ctrl-C to stop)\n", interval)
			if err := runner.Run(mgr.Context()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return mgr.Wait(waitCtx)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().Duration("interval", daemon.DefaultInterval, "Pause between sync cycles")
	cmd.Flags().Bool("notify", false, "Send OS notifications for sync outcomes")

	return cmd
}

// newSyncStatusCmd creates the 'sync status' subcommand
func newSyncStatusCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()

			online := e.checker.IsOnline(ctx)
			reachable := e.remoteConfigured && e.checker.IsServerReachable(ctx)

			tasks, err := e.orch.Tasks(ctx, e.userID)
			if err != nil {
				return err
			}
			counts := map[task.SyncStatus]int{}
			for _, t := range tasks {
				counts[t.SyncStatus]++
			}
			pending, err := e.orch.Queue().Pending(ctx, e.userID)
			if err != nil {
				return err
			}

			extState := "disabled"
			if e.creds != nil {
				state, err := e.creds.Status(ctx, e.userID)
				if err != nil {
					utils.Debugf("credential status lookup failed: %v", err)
				}
				extState = string(state)
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				out := map[string]interface{}{
					"online":          online,
					"remoteReachable": reachable,
					"circuitBreaker":  e.checker.BreakerState().String(),
					"externalService": extState,
					"queuedActions":   len(pending),
					"tasks":           counts,
				}
				jsonBytes, err := json.Marshal(out)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(stdout, string(jsonBytes))
				return nil
			}

			_, _ = fmt.Fprintf(stdout, "Network:          %s\n", onlineWord(online))
			_, _ = fmt.Fprintf(stdout, "Remote store:     %s\n", reachableWord(e.remoteConfigured, reachable))
			_, _ = fmt.Fprintf(stdout, "Circuit breaker:  %s\n", e.checker.BreakerState())
			_, _ = fmt.Fprintf(stdout, "External service: %s\n", extState)
			_, _ = fmt.Fprintf(stdout, "Queued actions:   %d\n", len(pending))
			for _, status := range []task.SyncStatus{task.StatusSynced, task.StatusPending, task.StatusSyncing, task.StatusUnsynced, task.StatusError} {
				if counts[status] > 0 {
					_, _ = fmt.Fprintf(stdout, "  %-10s %d\n", status, counts[status])
				}
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func onlineWord(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func reachableWord(configured, reachable bool) string {
	if !configured {
		return "not configured"
	}
	if reachable {
		return "reachable"
	}
	return "unreachable"
}

// newSyncQueueCmd creates the 'sync queue' subcommand
func newSyncQueueCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Show queued offline changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := context.Background()
			actions, err := e.orch.Queue().Pending(ctx, e.userID)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				if actions == nil {
					actions = []task.OfflineAction{}
				}
				jsonBytes, err := json.Marshal(actions)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(stdout, string(jsonBytes))
				return nil
			}

			if len(actions) == 0 {
				_, _ = fmt.Fprintln(stdout, "Queue is empty")
			} else {
				_, _ = fmt.Fprintf(stdout, "%-6s %-8s %-30s %-10s %s\n", "ID", "ACTION", "TASK", "ATTEMPTS", "STATE")
				for _, a := range actions {
					state := "pending"
					if a.Failed {
						state = "failed"
					}
					title := a.Payload.Title
					if title == "" {
						title = a.TaskID
					}
					_, _ = fmt.Fprintf(stdout, "%-6d %-8s %-30s %-10d %s\n", a.ID, a.Type, title, a.Attempts, state)
				}
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	queueCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop all queued changes",
		Long:  "Discard queued offline changes without sending them. Tasks keep their local state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.orch.Queue().Clear(context.Background(), e.userID)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Cleared %d queued change(s)\n", n)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return queueCmd
}

// newConnectCmd creates the 'connect' subcommand for the external service
func newConnectCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect [auth-code]",
		Short: "Connect the external task service",
		Long:  "Authorize mirroring into the external task service. Run without arguments to get the authorization URL, then run again with the code.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			if e.creds == nil {
				return utils.WrapWithSuggestion(
					fmt.Errorf("external task service is not enabled"),
					"Set gtasks.enabled: true in your config file",
				)
			}

			if len(args) == 0 {
				_, _ = fmt.Fprintln(stdout, "Open this URL in your browser and authorize access:")
				_, _ = fmt.Fprintln(stdout, e.creds.AuthCodeURL("state"))
				_, _ = fmt.Fprintln(stdout, "Then run: mindmate connect <code>")
				if cfg.NoPrompt {
					_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
				}
				return nil
			}

			if os.Getenv(clientSecretEnv) == "" && !cfg.NoPrompt {
				secret, err := promptSecret(stdout, "Client secret (leave empty for public clients): ")
				if err != nil {
					return err
				}
				if secret != "" {
					// Rebuild the manager with the secret for this exchange.
					_ = os.Setenv(clientSecretEnv, secret)
					e.creds = credentials.NewManager(oauthConfig(e.cfg))
					_, _ = fmt.Fprintf(stderr, "Note: set %s so background token refresh can use the secret\n", clientSecretEnv)
				}
			}

			if err := e.creds.Connect(context.Background(), e.userID, args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(stdout, "Connected to the external task service")
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	return cmd
}

// promptSecret reads a secret without echoing when stdin is a terminal.
func promptSecret(stdout io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(stdout, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimSpace(line), nil
}

// newDisconnectCmd creates the 'disconnect' subcommand
func newDisconnectCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the external task service",
		Long:  "Remove stored tokens for the external task service. Mirrored lists and tasks are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			if e.creds == nil {
				_, _ = fmt.Fprintln(stdout, "External task service is not enabled")
				if cfg.NoPrompt {
					_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
				}
				return nil
			}

			if err := e.creds.Disconnect(context.Background(), e.userID); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Disconnected from the external task service")
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newTUICmd creates the 'tui' subcommand
func newTUICmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive task view",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			return tui.Run(e.orch, e.userID)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newRemindCmd creates the 'remind' subcommand
func newRemindCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	remindCmd := &cobra.Command{
		Use:   "remind",
		Short: "Fire due reminders",
		Long:  "Check for tasks whose reminder time has passed. Each reminder fires once; --notify also raises an OS notification.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := reminder.NewService(e.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if notify, _ := cmd.Flags().GetBool("notify"); notify {
				notifier := notification.NewManager(notification.Config{
					Enabled:    true,
					OnReminder: true,
				})
				defer func() { _ = notifier.Close() }()
				svc.SetNotifier(notifier)
			}

			tasks, err := e.orch.Tasks(context.Background(), e.userID)
			if err != nil {
				return err
			}

			triggered, err := svc.Check(tasks)
			if err != nil {
				return err
			}

			if len(triggered) == 0 {
				_, _ = fmt.Fprintln(stdout, "No due reminders")
			} else {
				for _, t := range triggered {
					line := t.Title
					if t.DueDate != nil {
						line += " (due " + t.DueDate.Format("2006-01-02") + ")"
					}
					_, _ = fmt.Fprintf(stdout, "Reminder: %s\n", line)
				}
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	remindCmd.Flags().Bool("notify", false, "Also send an OS notification per reminder")

	upcomingCmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List reminders due within a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := reminder.NewService(e.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			tasks, err := e.orch.Tasks(context.Background(), e.userID)
			if err != nil {
				return err
			}

			window, _ := cmd.Flags().GetDuration("window")
			upcoming, err := svc.Upcoming(tasks, window)
			if err != nil {
				return err
			}

			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return outputTaskListJSON(upcoming, stdout)
			}

			if len(upcoming) == 0 {
				_, _ = fmt.Fprintln(stdout, "No upcoming reminders")
			} else {
				for _, t := range upcoming {
					_, _ = fmt.Fprintf(stdout, "%s  %s\n", t.ReminderAt.Format("2006-01-02 15:04"), t.Title)
				}
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	upcomingCmd.Flags().DurationP("window", "w", reminder.DefaultUpcomingWindow, "How far ahead to look")
	remindCmd.AddCommand(upcomingCmd)

	remindCmd.AddCommand(&cobra.Command{
		Use:   "dismiss [task]",
		Short: "Silence a task's reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			t, err := findTask(context.Background(), e, args[0], cmd.InOrStdin(), stdout, cfg.NoPrompt)
			if err != nil {
				return err
			}

			svc, err := reminder.NewService(e.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if err := svc.Dismiss(e.userID, t.ID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Dismissed reminder for: %s\n", t.Title)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	remindCmd.AddCommand(&cobra.Command{
		Use:   "restore [task]",
		Short: "Re-arm a dismissed reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer e.close()

			t, err := findTask(context.Background(), e, args[0], cmd.InOrStdin(), stdout, cfg.NoPrompt)
			if err != nil {
				return err
			}

			svc, err := reminder.NewService(e.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if err := svc.Restore(e.userID, t.ID); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Restored reminder for: %s\n", t.Title)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return remindCmd
}

// newConfigCmd creates the 'config' subcommand
func newConfigCmd(stdout io.Writer, cfg *Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:           "config",
		Short:         "Manage configuration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a sample config file",
		Long:  "Write the annotated sample configuration to the default location (or --config).",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file already exists at %s", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(config.GetSampleConfig()), 0644); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "Wrote sample config to %s\n", path)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.ConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			_, _ = fmt.Fprintln(stdout, path)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return configCmd
}

// outputTaskJSON prints one task as JSON
func outputTaskJSON(t *task.Task, stdout io.Writer) error {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputTaskListJSON prints tasks as a JSON array
func outputTaskListJSON(tasks []task.Task, stdout io.Writer) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	jsonBytes, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// statusIcon renders a compact completion marker.
func statusIcon(t *task.Task) string {
	if t.Completed() {
		return "[x]"
	}
	return "[ ]"
}

// printTaskTree prints tasks with sub-tasks nested under their parents.
func printTaskTree(tasks []task.Task, stdout io.Writer) {
	children := make(map[string][]*task.Task)
	var roots []*task.Task

	byID := make(map[string]bool, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = true
	}
	for i := range tasks {
		t := &tasks[i]
		if t.ParentID != "" && byID[t.ParentID] {
			children[t.ParentID] = append(children[t.ParentID], t)
		} else {
			// Orphans (parent filtered out or missing) render at root level.
			roots = append(roots, t)
		}
	}

	for _, t := range roots {
		printTaskLine(t, "", stdout)
		kids := children[t.ID]
		for i, child := range kids {
			branch := "├─ "
			if i == len(kids)-1 {
				branch = "└─ "
			}
			printTaskLine(child, branch, stdout)
		}
	}
}

func printTaskLine(t *task.Task, branch string, stdout io.Writer) {
	extras := ""
	if t.Priority > 0 {
		extras += fmt.Sprintf(" [P%d]", t.Priority)
	}
	if t.Category != "" {
		extras += fmt.Sprintf(" {%s}", t.Category)
	}
	if t.DueDate != nil {
		extras += fmt.Sprintf(" due:%s", t.DueDate.Format("2006-01-02"))
	}
	_, _ = fmt.Fprintf(stdout, "%s%s %s%s (%s)\n", branch, statusIcon(t), t.Title, extras, t.SyncStatus)
}
