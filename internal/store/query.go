package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/overseer/internal/models"
)

// loadParallelism bounds concurrent record reads during listings.
const loadParallelism = 8

// Filter narrows listings by record fields; zero values match everything.
// Offset and Limit paginate after filtering and sorting (Limit 0 means no
// limit).
type Filter struct {
	Status models.Status
	Type   models.InputType
	Offset int
	Limit  int
}

// HistorySummary is the lightweight listing view of one job record.
type HistorySummary struct {
	ID          string           `json:"id"`
	Type        models.InputType `json:"type"`
	URL         string           `json:"url"`
	Status      models.Status    `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Summary     string           `json:"summary,omitempty"`
}

// History is a page of summaries plus the total match count computed
// before pagination.
type History struct {
	Tasks []HistorySummary `json:"tasks"`
	Total int              `json:"total"`
}

// StorageStats reports the store's on-disk footprint.
type StorageStats struct {
	TaskCount      int   `json:"taskCount"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`
}

// GetAllTasks returns all records matching the filter, newest first.
// Records that fail to parse are skipped (and logged); a read failure on
// the medium aborts the listing.
func (s *Store) GetAllTasks(f Filter) ([]*models.TaskState, error) {
	states, err := s.loadAll()
	if err != nil {
		return nil, err
	}

	matched := states[:0]
	for _, state := range states {
		if f.Status != "" && state.Status != f.Status {
			continue
		}
		if f.Type != "" && state.Input.Type != f.Type {
			continue
		}
		matched = append(matched, state)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return paginate(matched, f.Offset, f.Limit), nil
}

// GetTaskHistory returns summaries of the records matching the filter,
// newest first, with Total counted before Offset/Limit are applied.
func (s *Store) GetTaskHistory(f Filter) (*History, error) {
	all, err := s.GetAllTasks(Filter{Status: f.Status, Type: f.Type})
	if err != nil {
		return nil, err
	}

	history := &History{Total: len(all), Tasks: []HistorySummary{}}
	for _, state := range paginate(all, f.Offset, f.Limit) {
		summary := HistorySummary{
			ID:        state.ID,
			Type:      state.Input.Type,
			URL:       state.Input.URL,
			Status:    state.Status,
			CreatedAt: state.CreatedAt,
		}
		if state.FinalReport != nil {
			completed := state.UpdatedAt
			summary.CompletedAt = &completed
			summary.Summary = state.FinalReport.Summary
		}
		history.Tasks = append(history.Tasks, summary)
	}
	return history, nil
}

// CleanupOldTasks deletes every record (and its reports) whose file was
// last modified before now-maxAge, returning the count removed. A maxAge
// of zero or below falls back to DefaultMaxAge.
func (s *Store) CleanupOldTasks(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := time.Now().Add(-maxAge)

	ids, err := s.listIDs()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		info, err := os.Stat(s.taskPath(id))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("stat task %s: %w", id, err)
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		existed, err := s.DeleteTask(id)
		if err != nil {
			return removed, err
		}
		if existed {
			removed++
			if s.logger != nil {
				s.logger.Debugf("cleaned up task %s (age %s)", id, time.Since(info.ModTime()).Round(time.Second))
			}
		}
	}
	return removed, nil
}

// GetStorageStats reports the record count and the aggregate size of all
// task and report files.
func (s *Store) GetStorageStats() (*StorageStats, error) {
	stats := &StorageStats{}
	var mu sync.Mutex

	var g errgroup.Group
	for _, dir := range []string{s.taskDir, s.reportDir} {
		dir := dir
		countTasks := dir == s.taskDir
		g.Go(func() error {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("read store directory %s: %w", dir, err)
			}
			var size int64
			count := 0
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				size += info.Size()
				count++
			}
			mu.Lock()
			stats.TotalSizeBytes += size
			if countTasks {
				stats.TaskCount = count
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// loadAll reads every record in the task directory with bounded
// parallelism, skipping unparseable files.
func (s *Store) loadAll() ([]*models.TaskState, error) {
	ids, err := s.listIDs()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	states := make([]*models.TaskState, 0, len(ids))

	var g errgroup.Group
	g.SetLimit(loadParallelism)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			state, err := s.loadPath(s.taskPath(id))
			if err != nil {
				return err
			}
			if state == nil {
				return nil
			}
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

func (s *Store) listIDs() ([]string, error) {
	entries, err := os.ReadDir(s.taskDir)
	if err != nil {
		return nil, fmt.Errorf("read store directory %s: %w", s.taskDir, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(filepath.Base(name), ".json"))
	}
	return ids, nil
}

func paginate(states []*models.TaskState, offset, limit int) []*models.TaskState {
	if offset > 0 {
		if offset >= len(states) {
			return []*models.TaskState{}
		}
		states = states[offset:]
	}
	if limit > 0 && limit < len(states) {
		states = states[:limit]
	}
	return states
}
