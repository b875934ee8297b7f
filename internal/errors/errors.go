// Package errors defines the engine's error taxonomy.
//
// Errors inside a task's execution are handled locally by the task state
// machine (retry -> fallback -> rollback -> raise). Errors escaping a task
// propagate into the workflow body as an ordinary Go error return; escaping
// the workflow body itself is recorded as WORKFLOW_FAILED by the workflow
// runtime.
package errors

import (
	"errors"
	"fmt"
)

// controlSignal marks an error value that is not a failure: it is a control
// signal the scheduler traps and handles (currently, only WorkflowPaused).
// Checking this interface, rather than a specific type switch order, keeps
// the distinction open to future control signals without touching call
// sites that only care "is this a real failure or not".
type controlSignal interface {
	controlSignal()
}

// IsControlSignal reports whether err is a control signal rather than a
// true failure.
func IsControlSignal(err error) bool {
	var cs controlSignal
	return errors.As(err, &cs)
}

// ExecutionError wraps an unhandled user exception raised from a task.
type ExecutionError struct {
	TaskName string
	Cause    error
}

func NewExecutionError(taskName string, cause error) *ExecutionError {
	return &ExecutionError{TaskName: taskName, Cause: cause}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.TaskName, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// RetryError is raised when a task's retries exhaust with no fallback and
// no rollback left to run (rollback itself never rescues the outcome).
type RetryError struct {
	TaskName string
	Cause    error
	Attempts int
	Delay    int
	Backoff  int
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("task %q exhausted %d retries (delay=%ds backoff=%dx): %v",
		e.TaskName, e.Attempts, e.Delay, e.Backoff, e.Cause)
}

func (e *RetryError) Unwrap() error { return e.Cause }

// ExecutionTimeoutError is raised when a task attempt exceeds its timeout
// budget.
type ExecutionTimeoutError struct {
	Kind      string // "Task" or "Workflow"
	Name      string
	SourceID  string
	TimeoutS  int
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("%s %q (%s) timed out (%ds)", e.Kind, e.Name, e.SourceID, e.TimeoutS)
}

// WorkflowPaused is a control signal, not a failure: the workflow
// cooperatively suspended at a named reference point.
type WorkflowPaused struct {
	Reference     string
	WaitForInput  bool
}

func (e *WorkflowPaused) Error() string {
	return fmt.Sprintf("workflow paused at %q", e.Reference)
}

func (e *WorkflowPaused) controlSignal() {}

// WorkflowNotFoundError is a catalog miss.
type WorkflowNotFoundError struct {
	Name string
}

func (e *WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found in catalog", e.Name)
}

// ExecutionContextNotFoundError is a store miss.
type ExecutionContextNotFoundError struct {
	ExecutionID string
}

func (e *ExecutionContextNotFoundError) Error() string {
	return fmt.Sprintf("execution context %q not found", e.ExecutionID)
}

// StoreCollisionError surfaces a constraint violation during Store.Save.
type StoreCollisionError struct {
	ExecutionID string
	Cause       error
}

func (e *StoreCollisionError) Error() string {
	return fmt.Sprintf("save collision for execution %q: %v", e.ExecutionID, e.Cause)
}

func (e *StoreCollisionError) Unwrap() error { return e.Cause }

// As re-exports errors.As for callers that only import this package.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is re-exports errors.Is for callers that only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }
