package workflow

import (
	"time"

	"go.fluxrun.dev/flux/internal/admission"
	"go.fluxrun.dev/flux/internal/outputstorage"
)

// TaskContext is what a task body receives: any secrets it requested (spec
// §4.3.1 secret_requests). It carries no cancellation signal.
type TaskContext struct {
	Secrets map[string]string
}

// TaskFn is the shape of a task body.
type TaskFn func(tc *TaskContext, args ...any) (any, error)

// TaskOptions configures a Task (spec §4.3.1).
type TaskOptions struct {
	RetryMaxAttempts     int
	RetryDelay           int // seconds
	RetryBackoff         int // multiplicative factor; the resulting delay is capped at RetryBackoffCeilingSeconds
	Timeout              int // seconds; 0 = unbounded
	Fallback             TaskFn
	Rollback             func(tc *TaskContext, args ...any) error
	SecretRequests       []string
	OutputStorage        outputstorage.Storage
	Cache                bool
	CacheTTL             time.Duration
	CacheVersion         string
	CacheTags            []string
	ResourceRequirements admission.Requirements
}

// RetryBackoffCeilingSeconds is the retry delay cap named in spec §4.3.2.
const RetryBackoffCeilingSeconds = 600

// Task is a user function wrapped with retry/timeout/fallback/rollback/
// cache/secret policies (spec §4.3), replacing the decorator pattern with
// a builder value object per spec §9's design note.
type Task struct {
	Name    string
	Fn      TaskFn
	Options TaskOptions
}

// NewTask constructs a Task with default options.
func NewTask(name string, fn TaskFn) *Task {
	return &Task{Name: name, Fn: fn, Options: TaskOptions{OutputStorage: outputstorage.Inline{}}}
}

// WithOptions returns a copy of t configured with opts; opts.OutputStorage
// defaults to Inline if left nil.
func (t *Task) WithOptions(opts TaskOptions) *Task {
	if opts.OutputStorage == nil {
		opts.OutputStorage = outputstorage.Inline{}
	}
	cp := *t
	cp.Options = opts
	return &cp
}

// Map fans out one invocation of t per element of argsList, gathering
// results in input order (spec §4.3.3).
func (t *Task) Map(ctx *Context, argsList [][]any) ([]any, error) {
	invocations := make([]func() (any, error), len(argsList))
	for i := range argsList {
		args := argsList[i]
		invocations[i] = func() (any, error) { return ctx.InvokeTask(t, args...) }
	}
	return ctx.Parallel(invocations...)
}
