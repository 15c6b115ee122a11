package taskreg

import (
	"fmt"
	"sync"
)

var ErrNoSuchTask = fmt.Errorf("no such task")

type Status string

const (
	StatusInProgress          Status = "in_progress"
	StatusDownloading         Status = "downloading"
	StatusConverting          Status = "converting"
	StatusGeneratingThumbnail Status = "generating_thumbnail"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// Task is a point-in-time snapshot of one ingest task. Pollers only ever see
// copies; the owning pipeline goroutine is the sole writer.
type Task struct {
	ID       string `json:"task_id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Registry maps task ids to their current state. Entries are never removed:
// a poller arriving arbitrarily late can still see the outcome, and the
// scale this runs at makes the leak a non-issue.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

func (r *Registry) Create(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[id] = Task{ID: id, Status: StatusInProgress, Progress: 0}
}

func (r *Registry) Get(id string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("taskreg.Registry.Get: %q: %w", id, ErrNoSuchTask)
	}

	return t, nil
}

// All returns a snapshot of every task in the registry.
func (r *Registry) All() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		a = append(a, t)
	}

	return a
}

// Update moves a task forward. Progress never decreases while the task is
// live, and a failed or completed task never changes again.
func (r *Registry) Update(id string, status Status, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status == StatusFailed || t.Status == StatusCompleted {
		return
	}

	t.Status = status
	if progress > t.Progress {
		t.Progress = progress
	}

	r.tasks[id] = t
}

// Fail marks a task failed with a diagnostic. Terminal states stick.
func (r *Registry) Fail(id string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status == StatusFailed || t.Status == StatusCompleted {
		return
	}

	t.Status = StatusFailed
	t.Error = message

	r.tasks[id] = t
}
