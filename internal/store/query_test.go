package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/overseer/internal/models"
)

func seedTask(t *testing.T, s *Store, id string, input models.TaskInput, createdAt time.Time) *models.TaskState {
	t.Helper()
	state := models.NewTaskState(id, input)
	state.CreatedAt = createdAt
	state.UpdatedAt = createdAt
	require.NoError(t, s.SaveTask(state))
	return state
}

func TestGetAllTasksSortsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()

	seedTask(t, s, "old", githubInput(), base.Add(-2*time.Hour))
	seedTask(t, s, "newest", githubInput(), base)
	seedTask(t, s, "middle", githubInput(), base.Add(-time.Hour))

	all, err := s.GetAllTasks(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "newest", all[0].ID)
	assert.Equal(t, "middle", all[1].ID)
	assert.Equal(t, "old", all[2].ID)
}

func TestGetAllTasksFilters(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()

	seedTask(t, s, "gh", githubInput(), base)
	local := seedTask(t, s, "local", models.TaskInput{Type: models.InputLocalPath, URL: "/srv/repo"}, base.Add(-time.Minute))
	local.Status = models.StatusCompleted
	require.NoError(t, s.SaveTask(local))

	byType, err := s.GetAllTasks(Filter{Type: models.InputLocalPath})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "local", byType[0].ID)

	byStatus, err := s.GetAllTasks(Filter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "gh", byStatus[0].ID)

	both, err := s.GetAllTasks(Filter{Status: models.StatusCompleted, Type: models.InputGitHubURL})
	require.NoError(t, err)
	assert.Empty(t, both)
}

func TestGetAllTasksPagination(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedTask(t, s, string(rune('a'+i)), githubInput(), base.Add(-time.Duration(i)*time.Minute))
	}

	page, err := s.GetAllTasks(Filter{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	past, err := s.GetAllTasks(Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestGetAllTasksSkipsCorruptedRecords(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "good", githubInput(), time.Now().UTC())
	require.NoError(t, os.WriteFile(filepath.Join(s.taskDir, "bad.json"), []byte("nope"), 0o644))

	all, err := s.GetAllTasks(Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
}

func TestGetTaskHistory(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()

	finished := seedTask(t, s, "finished", githubInput(), base)
	finished.Status = models.StatusCompleted
	finished.FinalReport = &models.FinalReport{
		Summary:        "3 of 3 tasks completed",
		TotalTasks:     3,
		CompletedTasks: 3,
	}
	require.NoError(t, s.SaveTask(finished))

	seedTask(t, s, "running", githubInput(), base.Add(-time.Minute))

	history, err := s.GetTaskHistory(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, history.Total)
	require.Len(t, history.Tasks, 2)

	first := history.Tasks[0]
	assert.Equal(t, "finished", first.ID)
	assert.Equal(t, models.InputGitHubURL, first.Type)
	assert.Equal(t, "https://github.com/a/b.git", first.URL)
	assert.NotNil(t, first.CompletedAt)
	assert.Equal(t, "3 of 3 tasks completed", first.Summary)

	second := history.Tasks[1]
	assert.Nil(t, second.CompletedAt)
	assert.Empty(t, second.Summary)
}

func TestGetTaskHistoryTotalCountsBeforePagination(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		seedTask(t, s, string(rune('a'+i)), githubInput(), base.Add(-time.Duration(i)*time.Minute))
	}

	history, err := s.GetTaskHistory(Filter{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, history.Total)
	require.Len(t, history.Tasks, 2)
	assert.Equal(t, "c", history.Tasks[0].ID)
}

func TestCleanupOldTasks(t *testing.T) {
	s := newTestStore(t)

	seedTask(t, s, "old", githubInput(), time.Now().UTC())
	require.NoError(t, s.SaveTaskReports("old", []models.TaskResult{{Status: models.ResultSuccess}}))
	seedTask(t, s, "recent", githubInput(), time.Now().UTC())

	// Age the old record's file two days into the past.
	twoDaysAgo := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(s.taskPath("old"), twoDaysAgo, twoDaysAgo))

	removed, err := s.CleanupOldTasks(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	gone, err := s.LoadTask("old")
	require.NoError(t, err)
	assert.Nil(t, gone)

	reports, err := s.LoadTaskReports("old")
	require.NoError(t, err)
	assert.Nil(t, reports, "cleanup must remove the reports too")

	kept, err := s.LoadTask("recent")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestCleanupOldTasksDefaultMaxAge(t *testing.T) {
	s := newTestStore(t)
	seedTask(t, s, "fresh", githubInput(), time.Now().UTC())

	removed, err := s.CleanupOldTasks(0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed, "a fresh record survives the 30-day default")
}

func TestGetStorageStats(t *testing.T) {
	s := newTestStore(t)

	empty, err := s.GetStorageStats()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TaskCount)
	assert.Equal(t, int64(0), empty.TotalSizeBytes)

	seedTask(t, s, "a", githubInput(), time.Now().UTC())
	seedTask(t, s, "b", githubInput(), time.Now().UTC())
	require.NoError(t, s.SaveTaskReports("a", []models.TaskResult{{Status: models.ResultSuccess, Report: "done"}}))

	stats, err := s.GetStorageStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TaskCount)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))
}
