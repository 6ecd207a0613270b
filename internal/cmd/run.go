package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/overseer/internal/agent"
	"github.com/harrison/overseer/internal/config"
	"github.com/harrison/overseer/internal/display"
	"github.com/harrison/overseer/internal/executor"
	"github.com/harrison/overseer/internal/logger"
	"github.com/harrison/overseer/internal/models"
	"github.com/harrison/overseer/internal/report"
	"github.com/harrison/overseer/internal/state"
	"github.com/harrison/overseer/internal/store"
)

// NewRunCommand creates the run command, which submits a job and executes
// its tasks to completion.
func NewRunCommand(opts *rootOptions) *cobra.Command {
	var (
		repo      string
		tasksFile string
		inputType string
		parallel  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a task list against a repository",
		Long: `Run submits a new job for the given repository, executes every task in
the task file through the configured agent binary, and records progress,
per-task reports, and a final summary in the durable store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if parallel > 0 {
				cfg.MaxParallel = parallel
			}

			log := logger.New(os.Stdout, cfg.LogLevel)
			st, err := store.New(cfg.DataDir, log)
			if err != nil {
				return err
			}

			tasks, err := loadTasks(tasksFile)
			if err != nil {
				return err
			}

			input := models.TaskInput{Type: resolveInputType(inputType, repo), URL: repo}
			record, err := st.CreateTask(input, "")
			if err != nil {
				return err
			}
			log.Infof("job %s created for %s (%d tasks)", record.ID, repo, len(tasks))

			return executeJob(cmd, cfg, log, st, record.ID, repo, tasks)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "repository reference (URL or local path)")
	cmd.Flags().StringVar(&tasksFile, "tasks", "", "path to the JSON task list")
	cmd.Flags().StringVar(&inputType, "type", "", "input type: github_url, git_url, or local_path (default inferred)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "override max parallel task runs")
	cmd.MarkFlagRequired("repo")
	cmd.MarkFlagRequired("tasks")

	return cmd
}

func executeJob(cmd *cobra.Command, cfg *config.Config, log *logger.ConsoleLogger, st *store.Store, id, repo string, tasks []models.Task) error {
	flat := models.FlattenTasks(tasks)
	started := time.Now()

	executing := models.StatusExecuting
	analyzerDone := time.Now().UTC()
	_, err := st.UpdateTask(id, models.TaskStateUpdate{
		Status: &executing,
		Tasks:  flat,
		AnalyzerProgress: &models.AnalyzerProgress{
			Status:      "completed",
			Progress:    100,
			CompletedAt: &analyzerDone,
		},
		SolverProgress: &models.SolverProgress{
			Status:     "running",
			TotalTasks: len(flat),
			StartedAt:  &analyzerDone,
		},
	})
	if err != nil {
		return err
	}

	agentCfg := agent.Config{Binary: cfg.AgentBinary, Args: cfg.AgentArgs}
	sched := executor.NewScheduler(agent.NewCLIExecutor(), repo, agentCfg, cfg.MaxParallel, cfg.TaskTimeout, log)

	// Run-scoped counters live in the ephemeral state store; the janitor
	// sweeps the per-task entries once their TTL lapses.
	runtime := state.NewWithJanitor(cfg.StateCleanupInterval, log)
	defer runtime.Close()
	sched.SetResultHook(func(res models.TaskResult) {
		done, err := runtime.Increment("job:"+id+":finished", 1)
		if err != nil {
			log.Warnf("progress counter for job %s: %v", id, err)
			return
		}
		if res.Status == models.ResultFailure {
			if _, err := runtime.Increment("job:"+id+":failed", 1); err != nil {
				log.Warnf("failure counter for job %s: %v", id, err)
			}
		}
		runtime.Set("job:"+id+":task:"+res.Task.ID, string(res.Status), state.WithTTL(time.Hour))
		log.Infof("progress: %.0f/%d tasks finished", done, len(flat))
	})

	for _, task := range flat {
		sched.Enqueue(task)
	}

	results := sched.Run(cmd.Context())

	if err := st.SaveTaskReports(id, results); err != nil {
		return err
	}

	final := report.Build(results, started)
	display.NewRenderer(cmd.OutOrStdout(), isatty.IsTerminal(os.Stdout.Fd())).RenderResults(results, final)

	status := models.StatusCompleted
	if final.TotalTasks > 0 && final.CompletedTasks == 0 {
		status = models.StatusFailed
	}
	solverDone := time.Now().UTC()
	_, err = st.UpdateTask(id, models.TaskStateUpdate{
		Status:      &status,
		Reports:     results,
		FinalReport: final,
		SolverProgress: &models.SolverProgress{
			Status:         string(status),
			Progress:       100,
			TotalTasks:     final.TotalTasks,
			CompletedTasks: final.CompletedTasks,
			FailedTasks:    final.FailedTasks,
			CompletedAt:    &solverDone,
		},
	})
	if err != nil {
		return err
	}

	log.Infof("job %s %s: %s", id, status, final.Summary)
	return nil
}

// loadTasks reads a JSON file holding either a task array or an object
// with a "tasks" field.
func loadTasks(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		var wrapper struct {
			Tasks []models.Task `json:"tasks"`
		}
		if err2 := json.Unmarshal(data, &wrapper); err2 != nil || wrapper.Tasks == nil {
			return nil, fmt.Errorf("parse task file %s: %w", path, err)
		}
		tasks = wrapper.Tasks
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("task file %s contains no tasks", path)
	}
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
	}
	return tasks, nil
}

// resolveInputType honors an explicit flag and otherwise infers the type
// from the reference's shape.
func resolveInputType(explicit, repo string) models.InputType {
	switch explicit {
	case string(models.InputGitHubURL), string(models.InputGitURL), string(models.InputLocalPath):
		return models.InputType(explicit)
	}
	switch {
	case strings.HasPrefix(repo, "https://github.com/"), strings.HasPrefix(repo, "git@github.com:"):
		return models.InputGitHubURL
	case strings.HasPrefix(repo, "git://"), strings.HasPrefix(repo, "ssh://"), strings.HasSuffix(repo, ".git"):
		return models.InputGitURL
	default:
		return models.InputLocalPath
	}
}
