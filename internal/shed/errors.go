package shed

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskCapacity is returned by CreateTasks when the task pool cannot
	// satisfy the whole batch. No task is reserved in that case.
	ErrTaskCapacity = errors.New("shed: task capacity exhausted")

	// ErrDependencyCapacity is returned by AddDependencies when the
	// dependency pool cannot hold every requested edge. No edge is attached
	// in that case.
	ErrDependencyCapacity = errors.New("shed: dependency capacity exhausted")

	// ErrInvalidConfig is returned by New and Clone for unusable capacities
	// or memory blocks.
	ErrInvalidConfig = errors.New("shed: invalid configuration")

	// ErrInvariant matches every *InvariantError.
	ErrInvariant = errors.New("shed: invariant violated")
)

// InvariantError reports a broken usage contract, such as a stale TaskID or
// readying a task twice. The scheduler state is left as it was before the
// offending call whenever the violation is detected up front.
type InvariantError struct {
	Expression string
	File       string
	Line       int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("shed: invariant %q violated at %s:%d", e.Expression, e.File, e.Line)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
