// Package reqctx carries per-request task correlation through contexts. The
// task ID is returned to API callers and attached to every log line the
// request produces.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const taskKey key = 0

// TaskContext identifies one API request. The ID is a correlation handle
// only; no job store exists behind it.
type TaskContext struct {
	TaskID    string
	StartTime time.Time
}

func WithTaskContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, taskKey, &TaskContext{
		TaskID:    uuid.NewString(),
		StartTime: time.Now(),
	})
}

func GetTaskContext(ctx context.Context) *TaskContext {
	if tc, ok := ctx.Value(taskKey).(*TaskContext); ok {
		return tc
	}
	return &TaskContext{
		TaskID:    uuid.NewString(),
		StartTime: time.Now(),
	}
}

// TaskError wraps an error with the task it occurred in
type TaskError struct {
	TaskID string
	Err    error
}

// Error implements the error interface
func (e *TaskError) Error() string {
	return fmt.Sprintf("[%s] %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// NewTaskError creates a TaskError from context
func NewTaskError(ctx context.Context, err error) error {
	tc := GetTaskContext(ctx)
	return &TaskError{
		TaskID: tc.TaskID,
		Err:    err,
	}
}
