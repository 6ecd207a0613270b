package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/overseer/internal/models"
	"github.com/harrison/overseer/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "history", "cleanup", "stats"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestHistoryEmptyStore(t *testing.T) {
	dataDir := t.TempDir()

	out, err := execute(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs recorded.")
}

func TestHistoryListsJobs(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.New(dataDir, nil)
	require.NoError(t, err)
	_, err = st.CreateTask(models.TaskInput{Type: models.InputGitHubURL, URL: "https://github.com/a/b.git"}, "job-1")
	require.NoError(t, err)

	out, err := execute(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "https://github.com/a/b.git")
	assert.Contains(t, out, "1 of 1 job(s) shown")
}

func TestHistoryStatusFilter(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.New(dataDir, nil)
	require.NoError(t, err)
	_, err = st.CreateTask(models.TaskInput{Type: models.InputGitHubURL, URL: "https://github.com/a/b.git"}, "job-1")
	require.NoError(t, err)

	out, err := execute(t, "history", "--data-dir", dataDir, "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "No jobs recorded.")
}

func TestCleanupReportsCount(t *testing.T) {
	dataDir := t.TempDir()

	out, err := execute(t, "cleanup", "--data-dir", dataDir, "--max-age", "24h")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 job record(s)")
}

func TestStats(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.New(dataDir, nil)
	require.NoError(t, err)
	_, err = st.CreateTask(models.TaskInput{Type: models.InputLocalPath, URL: "/srv/repo"}, "job-1")
	require.NoError(t, err)

	out, err := execute(t, "stats", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Jobs:       1")
}

func TestRunEndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}

	workDir := t.TempDir()
	dataDir := filepath.Join(workDir, "data")

	agentPath := filepath.Join(workDir, "fake-agent")
	script := "#!/bin/sh\necho \"task handled\"\n"
	require.NoError(t, os.WriteFile(agentPath, []byte(script), 0o755))

	configPath := filepath.Join(workDir, "overseer.yaml")
	configBody := "agent_binary: " + agentPath + "\nmax_parallel: 2\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configBody), 0o644))

	tasks := []models.Task{
		{ID: "t1", Title: "first", Description: "do the first thing"},
		{ID: "t2", Title: "second", Description: "do the second thing"},
	}
	tasksData, err := json.Marshal(tasks)
	require.NoError(t, err)
	tasksPath := filepath.Join(workDir, "tasks.json")
	require.NoError(t, os.WriteFile(tasksPath, tasksData, 0o644))

	_, err = execute(t, "run",
		"--config", configPath,
		"--data-dir", dataDir,
		"--repo", "https://github.com/a/b.git",
		"--tasks", tasksPath,
	)
	require.NoError(t, err)

	st, err := store.New(dataDir, nil)
	require.NoError(t, err)

	all, err := st.GetAllTasks(store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	record := all[0]
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, models.InputGitHubURL, record.Input.Type)
	assert.Equal(t, 2, record.SolverProgress.TotalTasks)
	assert.Equal(t, 2, record.SolverProgress.CompletedTasks)
	assert.Equal(t, 0, record.SolverProgress.FailedTasks)
	require.NotNil(t, record.FinalReport)
	assert.Equal(t, "2 of 2 tasks completed", record.FinalReport.Summary)

	reports, err := st.LoadTaskReports(record.ID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.Equal(t, models.ResultSuccess, r.Status)
		assert.Equal(t, "task handled", r.Report)
	}
}

func TestRunFailingAgentMarksJobFailed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}

	workDir := t.TempDir()
	dataDir := filepath.Join(workDir, "data")

	agentPath := filepath.Join(workDir, "fake-agent")
	require.NoError(t, os.WriteFile(agentPath, []byte("#!/bin/sh\necho broken; exit 1\n"), 0o755))

	configPath := filepath.Join(workDir, "overseer.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("agent_binary: "+agentPath+"\n"), 0o644))

	tasksPath := filepath.Join(workDir, "tasks.json")
	tasksData, err := json.Marshal([]models.Task{{ID: "t1", Title: "only", Description: "d"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tasksPath, tasksData, 0o644))

	_, err = execute(t, "run",
		"--config", configPath,
		"--data-dir", dataDir,
		"--repo", "/srv/repo",
		"--tasks", tasksPath,
	)
	require.NoError(t, err, "a failed task does not fail the command")

	st, err := store.New(dataDir, nil)
	require.NoError(t, err)
	all, err := st.GetAllTasks(store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.StatusFailed, all[0].Status)
	assert.Equal(t, 1, all[0].SolverProgress.FailedTasks)
}

func TestLoadTasksWrapperObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	body := `{"tasks": [{"id": "t1", "title": "T", "description": "D"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tasks, err := loadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestLoadTasksRejectsEmptyAndMalformed(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o644))
	_, err := loadTasks(empty)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = loadTasks(bad)
	assert.Error(t, err)
}

func TestResolveInputType(t *testing.T) {
	tests := []struct {
		explicit string
		repo     string
		want     models.InputType
	}{
		{"", "https://github.com/a/b.git", models.InputGitHubURL},
		{"", "git@github.com:a/b.git", models.InputGitHubURL},
		{"", "git://host/repo.git", models.InputGitURL},
		{"", "https://gitlab.com/a/b.git", models.InputGitURL},
		{"", "/srv/checkout", models.InputLocalPath},
		{"local_path", "https://github.com/a/b.git", models.InputLocalPath},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveInputType(tt.explicit, tt.repo), "repo %s", tt.repo)
	}
}
