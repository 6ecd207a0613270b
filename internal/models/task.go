package models

import "errors"

// Task represents a single unit of work produced by decomposing a repository.
type Task struct {
	// ID is a unique, stable identifier for the task.
	ID string `json:"id"`

	// Title is a short human-readable name.
	Title string `json:"title"`

	// Description is the full instruction handed to the agent.
	Description string `json:"description"`

	// RelatedFiles lists repository paths the task is expected to touch.
	RelatedFiles []string `json:"relatedFiles,omitempty"`

	// FollowingTasks are dependent tasks that should execute after this one.
	// The scheduler treats tasks as independent; producers are responsible
	// for flattening this forest into a correctly ordered queue.
	FollowingTasks []Task `json:"followingTasks,omitempty"`

	// Priority orders tasks within the queue; higher is more urgent.
	Priority int `json:"priority"`
}

// Validate checks that the task carries the fields execution requires.
func (t *Task) Validate() error {
	if t.ID == "" {
		return errors.New("task id is required")
	}
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.Description == "" {
		return errors.New("task description is required")
	}
	return nil
}

// FlattenTasks walks a task forest depth-first and returns a flat list in
// which every task precedes its FollowingTasks. This is the ordering the
// scheduler's FIFO queue expects from producers.
func FlattenTasks(tasks []Task) []Task {
	var flat []Task
	for _, t := range tasks {
		following := t.FollowingTasks
		t.FollowingTasks = nil
		flat = append(flat, t)
		if len(following) > 0 {
			flat = append(flat, FlattenTasks(following)...)
		}
	}
	return flat
}
