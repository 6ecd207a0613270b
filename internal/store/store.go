// Package store persists job records durably, one self-contained JSON file
// per record, with a parallel file per job holding its task reports. A
// record that fails to parse is treated as absent (corruption is logged,
// never surfaced as a crash); an unreadable or unwritable medium is a
// storage error the caller must handle.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/overseer/internal/filelock"
	"github.com/harrison/overseer/internal/models"
)

// DefaultMaxAge is the retention window CleanupOldTasks falls back to.
const DefaultMaxAge = 30 * 24 * time.Hour

// Logger receives store diagnostics. A nil Logger disables logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Store is a file-backed store of TaskState records keyed by id.
//
// Writes are atomic (temp file + rename) and read-merge-write updates are
// serialized per id, in-process with a mutex and cross-process with a
// flock lock file next to the record. Concurrent SaveTask calls on the
// same id remain last-writer-wins, as do UpdateTask calls from callers
// that bypass the store on disk.
type Store struct {
	taskDir   string
	reportDir string
	logger    Logger

	mu      sync.Mutex
	idLocks map[string]*sync.Mutex
}

// New creates the store rooted at dataDir, creating its directories if
// absent. logger may be nil.
func New(dataDir string, logger Logger) (*Store, error) {
	s := &Store{
		taskDir:   filepath.Join(dataDir, "tasks"),
		reportDir: filepath.Join(dataDir, "reports"),
		logger:    logger,
		idLocks:   make(map[string]*sync.Mutex),
	}
	for _, dir := range []string{s.taskDir, s.reportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// CreateTask builds a fresh pending record for the given input and
// persists it. An empty id gets a generated UUID. Returns the created
// record, or an error if the input is malformed or the medium unwritable.
func (s *Store) CreateTask(input models.TaskInput, id string) (*models.TaskState, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	state := models.NewTaskState(id, input)
	if err := s.SaveTask(state); err != nil {
		return nil, err
	}
	return state, nil
}

// SaveTask overwrites the full record for state.ID.
func (s *Store) SaveTask(state *models.TaskState) error {
	if err := validateID(state.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", state.ID, err)
	}
	if err := filelock.AtomicWrite(s.taskPath(state.ID), data); err != nil {
		return fmt.Errorf("save task %s: %w", state.ID, err)
	}
	return nil
}

// LoadTask reads the record for id. A missing or unparseable record
// returns (nil, nil); only an unreadable medium is an error.
func (s *Store) LoadTask(id string) (*models.TaskState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.loadPath(s.taskPath(id))
}

func (s *Store) loadPath(path string) (*models.TaskState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task record %s: %w", path, err)
	}

	var state models.TaskState
	if err := json.Unmarshal(data, &state); err != nil {
		if s.logger != nil {
			s.logger.Warnf("skipping corrupted task record %s: %v", path, err)
		}
		return nil, nil
	}
	return &state, nil
}

// UpdateTask loads the record for id, shallow-merges the supplied fields
// over it, refreshes updatedAt, and persists the result. Returns
// (nil, nil) if no record exists. The load-merge-write sequence is
// serialized per id, in-process and across processes.
func (s *Store) UpdateTask(id string, update models.TaskStateUpdate) (*models.TaskState, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	unlock := s.lockID(id)
	defer unlock()

	var state *models.TaskState
	err := filelock.WithLock(s.taskPath(id)+".lock", func() error {
		loaded, err := s.loadPath(s.taskPath(id))
		if err != nil {
			return err
		}
		if loaded == nil {
			return nil
		}
		if err := loaded.Apply(update); err != nil {
			return fmt.Errorf("update task %s: %w", id, err)
		}
		if err := s.SaveTask(loaded); err != nil {
			return err
		}
		state = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteTask removes the record, its reports, and its lock file. Reports
// whether a record existed.
func (s *Store) DeleteTask(id string) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	existed := true
	if err := os.Remove(s.taskPath(id)); err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("delete task %s: %w", id, err)
		}
		existed = false
	}

	// Companion files are best-effort; absence is fine.
	os.Remove(s.taskPath(id) + ".lock")
	if err := os.Remove(s.reportPath(id)); err != nil && !os.IsNotExist(err) {
		return existed, fmt.Errorf("delete reports for %s: %w", id, err)
	}
	return existed, nil
}

// SaveTaskReports durably stores the task-report list for a job,
// independent of its main record.
func (s *Store) SaveTaskReports(id string, reports []models.TaskResult) error {
	if err := validateID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports for %s: %w", id, err)
	}
	if err := filelock.AtomicWrite(s.reportPath(id), data); err != nil {
		return fmt.Errorf("save reports for %s: %w", id, err)
	}
	return nil
}

// LoadTaskReports reads a job's report list. Missing or unparseable
// reports return (nil, nil).
func (s *Store) LoadTaskReports(id string) ([]models.TaskResult, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.reportPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read reports for %s: %w", id, err)
	}

	var reports []models.TaskResult
	if err := json.Unmarshal(data, &reports); err != nil {
		if s.logger != nil {
			s.logger.Warnf("skipping corrupted reports for %s: %v", id, err)
		}
		return nil, nil
	}
	return reports, nil
}

func (s *Store) taskPath(id string) string {
	return filepath.Join(s.taskDir, id+".json")
}

func (s *Store) reportPath(id string) string {
	return filepath.Join(s.reportDir, id+".json")
}

// lockID serializes in-process access to one record id. Returns the
// release function.
func (s *Store) lockID(id string) func() {
	s.mu.Lock()
	lock, ok := s.idLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.idLocks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid task id %q", id)
	}
	return nil
}
