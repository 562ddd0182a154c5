package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sprintline/internal/config"
	"sprintline/internal/domain"
	"sprintline/internal/engine"
	"sprintline/internal/localstate"
	"sprintline/internal/remote"
	"sprintline/internal/scheduler"
	"sprintline/internal/server"
	"sprintline/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Sprintline CLI",
	Long: `Sprintline drives an agile board from the terminal: sprints, tasks,
drag-style reassignment, effort estimation, and sprint completion.
The remote planning service owns the data; sprintline keeps an in-memory
cache per invocation, applies mutations optimistically, and rolls back
anything the remote rejects. Only the selected project id and the
operation journal persist locally, under .sprintline/.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := localstate.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SPRINTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("remote", "", "remote base URL (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides config)")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides persisted selection)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("remote", rootCmd.PersistentFlags().Lookup("remote"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(logCmd())
}

// env bundles everything a command needs after project selection.
type env struct {
	cfg     *config.Config
	db      *localstate.DB
	journal localstate.Journal
	engine  *engine.Engine
	project string
}

func (v *env) close() {
	if v.db != nil {
		v.db.Close()
	}
}

func newEnv() (*env, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	db, err := localstate.Open(workspace)
	if err != nil {
		return nil, err
	}

	baseURL := viper.GetString("remote")
	if baseURL == "" && cfg != nil {
		baseURL = cfg.Remote.BaseURL
	}
	if baseURL == "" {
		db.Close()
		return nil, fmt.Errorf("remote base URL is required; set remote.base_url in %s or pass --remote", config.Path(workspace))
	}
	token := viper.GetString("token")
	if token == "" && cfg != nil {
		token = cfg.Remote.Token
	}

	client := remote.New(baseURL)
	client.BearerToken = token
	if cfg != nil {
		if d := cfg.RemoteTimeout(); d > 0 {
			client.HTTPClient.Timeout = d
		}
	}

	journal := localstate.Journal{DB: db}
	e := engine.New(store.New(), client)
	e.Journal = journal
	return &env{cfg: cfg, db: db, journal: journal, engine: e}, nil
}

// withEngine sets up the environment, selects the project (flag first, then
// the persisted selection), runs the initial fetch, and calls fn.
func withEngine(ctx context.Context, fn func(context.Context, *env) error) error {
	v, err := newEnv()
	if err != nil {
		return err
	}
	defer v.close()

	projectID := viper.GetString("project")
	if projectID == "" {
		projectID, err = v.db.SelectedProject(ctx)
		if err != nil {
			return err
		}
	}
	if projectID == "" {
		return fmt.Errorf("no project selected; run sl project use <id>")
	}
	v.project = projectID
	if err := v.engine.SelectProject(ctx, projectID); err != nil {
		return err
	}
	return fn(ctx, v)
}

func initCmd() *cobra.Command {
	var remoteURL string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default sprintline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(remoteURL)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteURL, "remote", "http://localhost:8000", "remote base URL")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Project selection and roster"}
	prj.AddCommand(projectUseCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectParticipantsCmd())
	return prj
}

func projectUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <project-id>",
		Short: "Select the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newEnv()
			if err != nil {
				return err
			}
			defer v.close()
			projectID := args[0]
			// Fetch before persisting so a bad id is rejected here rather
			// than breaking every later invocation.
			if err := v.engine.SelectProject(cmd.Context(), projectID); err != nil {
				return err
			}
			if err := v.db.SetSelectedProject(cmd.Context(), projectID); err != nil {
				return err
			}
			fmt.Println("selected project", projectID)
			return nil
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the selected project and board summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				st := v.engine.Store
				sprints := st.Sprints()
				out := map[string]any{
					"project_id": v.project,
					"sprints":    len(sprints),
					"backlog":    len(st.Backlog()),
					"tasks":      len(st.Tasks()),
				}
				for _, sp := range sprints {
					if sp.State() == domain.SprintActive {
						out["active_sprint"] = sp.Name
						break
					}
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func projectParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "List project participants with reward points",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				roster, err := v.engine.Participants(ctx, v.project)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(roster)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Points"})
				for _, p := range roster.Users {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Email, p.Points})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskEstimateCmd())
	return task
}

func renderTasks(tasks []domain.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Complexity", "Prio", "Sprint", "Assignee", "Est"})
	for _, t := range tasks {
		sprint := ""
		if t.SprintID != nil {
			sprint = *t.SprintID
		}
		assignee := ""
		if t.AssigneeID != nil {
			assignee = *t.AssigneeID
		}
		est := ""
		if t.EstimatedEffort != nil {
			est = fmt.Sprintf("%.1f", *t.EstimatedEffort)
		}
		tw.AppendRow(table.Row{t.ID, t.Name, t.Status, t.Complexity, t.Priority, sprint, assignee, est})
	}
	tw.Render()
}

func taskListCmd() *cobra.Command {
	var sprintID string
	var backlog bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				st := v.engine.Store
				var tasks []domain.Task
				switch {
				case backlog:
					tasks = st.Backlog()
				case sprintID != "":
					tasks = st.SprintTasks(sprintID)
				default:
					tasks = st.Tasks()
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				renderTasks(tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "only tasks in this sprint")
	cmd.Flags().BoolVar(&backlog, "backlog", false, "only backlog tasks")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var name, category, complexity, status, sprintID, assignee string
	var priority int
	var effort float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				draft := domain.TaskDraft{
					ProjectID:    v.project,
					Name:         name,
					Category:     category,
					Complexity:   complexity,
					Priority:     priority,
					Status:       status,
					ActualEffort: effort,
				}
				if v.cfg != nil && draft.Category == "" {
					draft.Category = v.cfg.Defaults.TaskCategory
				}
				if sprintID != "" {
					draft.SprintID = &sprintID
				}
				if assignee == "" {
					// The token identifies the local user; new tasks default
					// to them like the board's quick-add does.
					if id, err := remote.LocalUserID(viper.GetString("token")); err == nil && id != "" {
						assignee = id
					}
				}
				if assignee != "" {
					draft.AssigneeID = &assignee
				}
				t, err := v.engine.CreateTask(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().StringVar(&complexity, "complexity", "", "EASY, MEDIUM or HARD")
	cmd.Flags().StringVar(&status, "status", "", "initial status")
	cmd.Flags().StringVar(&sprintID, "sprint", "", "sprint id")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-5")
	cmd.Flags().Float64Var(&effort, "effort", 0, "actual effort in hours")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var name, category, complexity, status, assignee string
	var priority int
	var actual, rework float64
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				var patch domain.TaskPatch
				if cmd.Flags().Changed("name") {
					patch.Name = &name
				}
				if cmd.Flags().Changed("category") {
					patch.Category = &category
				}
				if cmd.Flags().Changed("complexity") {
					patch.Complexity = &complexity
				}
				if cmd.Flags().Changed("status") {
					patch.Status = &status
				}
				if cmd.Flags().Changed("assignee") {
					patch.AssigneeID = &assignee
				}
				if cmd.Flags().Changed("priority") {
					patch.Priority = &priority
				}
				if cmd.Flags().Changed("actual-effort") {
					patch.ActualEffort = &actual
				}
				if cmd.Flags().Changed("rework-effort") {
					patch.ReworkEffort = &rework
				}
				t, err := v.engine.UpdateTask(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&category, "category", "", "task category")
	cmd.Flags().StringVar(&complexity, "complexity", "", "EASY, MEDIUM or HARD")
	cmd.Flags().StringVar(&status, "status", "", "TODO, IN_PROGRESS or DONE")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id; empty clears")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 1-5")
	cmd.Flags().Float64Var(&actual, "actual-effort", 0, "actual effort in hours")
	cmd.Flags().Float64Var(&rework, "rework-effort", 0, "rework effort in hours")
	return cmd
}

func taskMoveCmd() *cobra.Command {
	var sprintID, status string
	var toBacklog bool
	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task between backlog, sprints, and board columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sprintID == "" && !toBacklog && status == "" {
				return fmt.Errorf("one of --sprint, --backlog or --status is required")
			}
			if sprintID != "" && toBacklog {
				return fmt.Errorf("--sprint and --backlog are mutually exclusive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				target := sprintID
				if toBacklog {
					target = ""
				}
				if sprintID == "" && !toBacklog {
					// Pure column change; keep the current sprint.
					if t, ok := v.engine.Store.Task(args[0]); ok && t.SprintID != nil {
						target = *t.SprintID
					}
				}
				var explicit *string
				if status != "" {
					explicit = &status
				}
				t, err := v.engine.MoveTask(ctx, args[0], target, explicit)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&sprintID, "sprint", "", "target sprint id")
	cmd.Flags().BoolVar(&toBacklog, "backlog", false, "move to backlog")
	cmd.Flags().StringVar(&status, "status", "", "target board column")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				if err := v.engine.DeleteTask(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted task", args[0])
				return nil
			})
		},
	}
	return cmd
}

func taskEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <task-id>",
		Short: "Ask the predictor for an effort estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				hours, err := v.engine.EstimateEffort(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"task_id":          args[0],
					"estimated_effort": hours,
				})
			})
		},
	}
	return cmd
}

func sprintCmd() *cobra.Command {
	sprint := &cobra.Command{Use: "sprint", Short: "Manage sprints"}
	sprint.AddCommand(sprintListCmd())
	sprint.AddCommand(sprintCreateCmd())
	sprint.AddCommand(sprintStartCmd())
	sprint.AddCommand(sprintUpdateCmd())
	sprint.AddCommand(sprintCompleteCmd())
	sprint.AddCommand(sprintDeleteCmd())
	return sprint
}

func sprintListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				sprints := v.engine.Store.Sprints()
				if viper.GetBool("json") {
					return printJSON(sprints)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "State", "Start", "Days", "Tasks", "Goal"})
				for _, sp := range sprints {
					start := ""
					if sp.StartDate != nil {
						start = *sp.StartDate
					}
					tw.AppendRow(table.Row{
						sp.ID, sp.Name, sp.State(), start, sp.Duration,
						len(v.engine.Store.SprintTasks(sp.ID)), sp.Goal,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func sprintCreateCmd() *cobra.Command {
	var name, start, goal string
	var duration int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a planned sprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				draft := domain.SprintDraft{
					ProjectID: v.project,
					Name:      name,
					Duration:  duration,
					Goal:      goal,
				}
				if v.cfg != nil && draft.Duration == 0 {
					draft.Duration = v.cfg.Defaults.SprintDuration
				}
				if start != "" {
					draft.StartDate = &start
				}
				sp, err := v.engine.CreateSprint(ctx, draft)
				if err != nil {
					return err
				}
				return printJSONOrTable(sp)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name; defaults to Sprint N")
	cmd.Flags().StringVar(&start, "start", "", "start date, RFC 3339")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in days: 7, 14, 21 or 28")
	return cmd
}

func sprintStartCmd() *cobra.Command {
	var name, start, goal string
	var duration int
	cmd := &cobra.Command{
		Use:   "start <sprint-id>",
		Short: "Activate a planned sprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				sp, err := v.engine.StartSprint(ctx, args[0], engine.StartSprintOptions{
					Name:      name,
					StartDate: start,
					Duration:  duration,
					Goal:      goal,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(sp)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "rename on start")
	cmd.Flags().StringVar(&start, "start", "", "start date, RFC 3339; defaults to now")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in days; defaults to 14")
	return cmd
}

func sprintUpdateCmd() *cobra.Command {
	var name, start, goal string
	var duration int
	cmd := &cobra.Command{
		Use:   "update <sprint-id>",
		Short: "Update sprint fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				var patch domain.SprintPatch
				if cmd.Flags().Changed("name") {
					patch.Name = &name
				}
				if cmd.Flags().Changed("start") {
					patch.StartDate = &start
				}
				if cmd.Flags().Changed("goal") {
					patch.Goal = &goal
				}
				if cmd.Flags().Changed("duration") {
					patch.Duration = &duration
				}
				sp, err := v.engine.UpdateSprint(ctx, args[0], patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(sp)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "sprint name")
	cmd.Flags().StringVar(&start, "start", "", "start date, RFC 3339")
	cmd.Flags().StringVar(&goal, "goal", "", "sprint goal")
	cmd.Flags().IntVar(&duration, "duration", 0, "duration in days")
	return cmd
}

func sprintCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <sprint-id>",
		Short: "Run the sprint completion cascade",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				report, err := v.engine.CompleteSprint(ctx, v.project, args[0])
				var cerr *engine.CascadeError
				if err != nil && !errors.As(err, &cerr) {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				for _, step := range report.Steps {
					switch {
					case step.Skipped:
						fmt.Printf("  %-20s skipped\n", step.Step)
					case len(step.Failures) > 0:
						fmt.Printf("  %-20s %d failure(s)\n", step.Step, len(step.Failures))
						for _, f := range step.Failures {
							fmt.Printf("    %s: %v\n", f.EntityID, f.Err)
						}
					default:
						fmt.Printf("  %-20s ok\n", step.Step)
					}
				}
				if err != nil {
					fmt.Println("sprint completed with failures; re-run complete or refresh to reconcile")
				} else {
					fmt.Println("sprint completed")
				}
				return nil
			})
		},
		Args: cobra.ExactArgs(1),
	}
	return cmd
}

func sprintDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <sprint-id>",
		Short: "Delete a sprint; its tasks return to the backlog on the next refresh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				if err := v.engine.DeleteSprint(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted sprint", args[0])
				return nil
			})
		},
	}
	return cmd
}

func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the latest board state and run expiry checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				// withEngine already ran the fetch and expiry pass.
				fmt.Println("refreshed project", v.project)
				return nil
			})
		},
	}
	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the remote on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				if interval == 0 && v.cfg != nil {
					interval = v.cfg.PollInterval()
				}
				v.engine.Notify = func(projectID string) {
					fmt.Printf("%s board changed for project %s\n",
						time.Now().Format(time.TimeOnly), projectID)
				}
				sched := scheduler.New(v.engine, interval)
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Printf("watching project %s every %s\n", v.project, sched.Interval)
				err := sched.Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval; defaults to config or 30s")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, v *env) error {
				if v.cfg != nil {
					if addr == "" {
						addr = v.cfg.Dashboard.Listen
					}
					if basePath == "" {
						basePath = v.cfg.Dashboard.BasePath
					}
					if interval == 0 {
						interval = v.cfg.PollInterval()
					}
				}
				if addr == "" {
					addr = "127.0.0.1:8594"
				}

				sched := scheduler.New(v.engine, interval)
				srv, err := server.New(server.Config{
					Engine:   v.engine,
					Journal:  v.journal,
					BasePath: basePath,
					Trigger:  sched.Trigger,
				})
				if err != nil {
					return err
				}
				v.engine.Notify = srv.NotifyRefresh

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				go sched.Run(ctx)

				httpSrv := &http.Server{Addr: addr, Handler: srv}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					httpSrv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving dashboard API on http://%s (OpenAPI at /openapi.json)\n", addr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval; defaults to config or 30s")
	return cmd
}

func logCmd() *cobra.Command {
	var n int
	var all bool
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent operations from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Journal reads never touch the remote.
			db, err := localstate.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer db.Close()
			projectID := viper.GetString("project")
			if projectID == "" && !all {
				projectID, err = db.SelectedProject(cmd.Context())
				if err != nil {
					return err
				}
			}
			if all {
				projectID = ""
			}
			journal := localstate.Journal{DB: db}
			entries, err := journal.Recent(cmd.Context(), projectID, n)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"TS", "Op", "Entity", "Outcome"})
			for _, e := range entries {
				tw.AppendRow(table.Row{e.TS, e.Op, e.EntityKind + " " + e.EntityID, e.Outcome})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 50, "number of entries")
	cmd.Flags().BoolVar(&all, "all", false, "entries across all projects")
	return cmd
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
