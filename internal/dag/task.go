package dag

import "context"

// Task is the work a plan node performs once per frame. Execute runs on a
// scheduler worker goroutine and must return promptly once ctx is done.
type Task interface {
	Execute(ctx context.Context) error
	ID() string
	Kind() string
	Description() string
	Validate() error
}

// BaseTask holds the identity every task kind shares. Kinds embed it and
// add Execute.
type BaseTask struct {
	id, kind, description string
}

func NewBaseTask(id, kind, description string) *BaseTask {
	return &BaseTask{id: id, kind: kind, description: description}
}

func (t *BaseTask) ID() string          { return t.id }
func (t *BaseTask) Kind() string        { return t.kind }
func (t *BaseTask) Description() string { return t.description }

// Validate accepts everything; kinds with parameters override it
func (t *BaseTask) Validate() error { return nil }

// KindOf returns the kind of task, or "unknown" when task is nil
func KindOf(task Task) string {
	if task == nil {
		return "unknown"
	}
	return task.Kind()
}
