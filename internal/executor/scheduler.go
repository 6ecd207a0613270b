package executor

import (
	"context"
	"sync"
	"time"

	"github.com/harrison/overseer/internal/agent"
	"github.com/harrison/overseer/internal/models"
)

// Logger receives scheduler progress events. Implementations must be safe
// for concurrent use. A nil Logger disables logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Scheduler executes an unordered queue of tasks with at most limit
// concurrently active runs, collecting exactly one TaskResult per task.
//
// Admission is event-driven: a slot semaphore bounds the active set, and a
// completion wakes the admission loop immediately instead of on a polling
// tick. The queue, active count, and results are guarded by one mutex, so
// admission and completion are each indivisible with respect to the other.
type Scheduler struct {
	delegate   agent.Executor
	repository string
	cfg        agent.Config
	limit      int
	timeout    time.Duration
	logger     Logger

	mu       sync.Mutex
	queue    []models.Task
	active   int
	results  []models.TaskResult
	onResult func(models.TaskResult)

	// wake is signaled (capacity 1, non-blocking send) on enqueue and on
	// completion so an idle Run loop re-checks its termination condition.
	wake chan struct{}
}

// NewScheduler creates a scheduler delegating to the given agent executor.
// A limit below 1 is treated as 1. timeout bounds each run; zero disables
// the deadline. logger may be nil.
func NewScheduler(delegate agent.Executor, repository string, cfg agent.Config, limit int, timeout time.Duration, logger Logger) *Scheduler {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler{
		delegate:   delegate,
		repository: repository,
		cfg:        cfg,
		limit:      limit,
		timeout:    timeout,
		logger:     logger,
		wake:       make(chan struct{}, 1),
	}
}

// SetResultHook registers fn to run after each result is recorded, before
// the freed slot is handed to the next admission. fn is called from run
// goroutines and must be safe for concurrent use. Set before calling Run.
func (s *Scheduler) SetResultHook(fn func(models.TaskResult)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// Enqueue appends a task to the pending queue. Safe to call before or
// while Run executes; there is no upper bound on queue length.
func (s *Scheduler) Enqueue(task models.Task) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	s.signal()
}

// QueueLen reports the number of tasks waiting for admission.
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run drives execution until the queue is empty and no run is active,
// then returns all collected results. Every enqueued task yields exactly
// one TaskResult: delegate errors are converted into failure results at
// the run boundary and never abort the loop or sibling tasks.
//
// The context is threaded into each run's delegate invocation; Run itself
// has no cancellation path, so a cancelled context drains the queue as
// fast-failing runs rather than dropping tasks.
func (s *Scheduler) Run(ctx context.Context) []models.TaskResult {
	sem := make(chan struct{}, s.limit)
	var wg sync.WaitGroup

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			idle := s.active == 0
			s.mu.Unlock()
			if idle {
				break
			}
			// Wait for a completion (or a late enqueue) before re-checking.
			<-s.wake
			continue
		}
		s.mu.Unlock()

		// Blocks until a completed run frees a slot. The head task stays
		// queued while waiting, so it is always visible as either pending
		// or active; only this loop dequeues.
		sem <- struct{}{}

		s.mu.Lock()
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.active++
		s.mu.Unlock()

		if s.logger != nil {
			s.logger.Infof("task %s started: %s", task.ID, task.Title)
		}

		wg.Add(1)
		go func(task models.Task) {
			defer wg.Done()

			run := NewRun(task, s.repository, s.delegate, s.cfg, s.timeout)
			err := run.Solve(ctx)

			result, resErr := run.Result()
			if resErr != nil {
				// Solve always records a result; this path only guards a
				// misbehaving delegate implementation.
				result = models.TaskResult{
					Task:        task,
					Status:      models.ResultFailure,
					Report:      resErr.Error(),
					CompletedAt: time.Now().UTC(),
				}
			}

			if s.logger != nil {
				if err != nil {
					s.logger.Warnf("task %s failed: %v", task.ID, err)
				} else {
					s.logger.Infof("task %s completed", task.ID)
				}
			}

			s.complete(result)
			<-sem
		}(task)
	}

	wg.Wait()
	return s.Reports()
}

// complete records a result and retires the run from the active set as one
// indivisible step, then wakes the admission loop.
func (s *Scheduler) complete(result models.TaskResult) {
	s.mu.Lock()
	s.results = append(s.results, result)
	s.active--
	hook := s.onResult
	s.mu.Unlock()
	if hook != nil {
		hook(result)
	}
	s.signal()
}

// Reports returns a snapshot of the results accumulated so far, in
// completion order. Safe to call while Run is executing.
func (s *Scheduler) Reports() []models.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TaskResult, len(s.results))
	copy(out, s.results)
	return out
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
