// Package workflow implements the Replay Scheduler (spec §4.2), the Task
// Runtime (spec §4.3), and the Workflow Runtime (spec §4.4). The three are
// kept in one package because they share a single piece of mutable state
// on every call — the running ExecutionContext and its replay cursor —
// and splitting them into separate packages would only duplicate an
// interface around that shared state without adding a real seam; the
// granularity named in spec §2 is preserved at the file level instead
// (context.go = Scheduler, task.go = Task Runtime, runtime.go = Workflow
// Runtime, determinism.go = the engine-provided helper tasks, graph.go =
// the graph() helper).
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"go.fluxrun.dev/flux/internal/admission"
	"go.fluxrun.dev/flux/internal/cache"
	"go.fluxrun.dev/flux/internal/event"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/secretmanager"
	"go.fluxrun.dev/flux/internal/store"
	"go.fluxrun.dev/flux/internal/telemetry"
)

// Deps bundles the Scheduler's explicit, worker-local collaborators. Spec
// §9 insists the "current context registry" used by engine helpers never
// be a process global; in Go this is realized as a value threaded as an
// explicit parameter (here, the receiver of every Context method) rather
// than package-level state.
type Deps struct {
	Store     store.Store
	Cache     *cache.Manager
	Secrets   secretmanager.SecretManager
	Admission *admission.Controller
	Clock     clock.Clock
	Logger    *zap.Logger
	Scope     tally.Scope
	Tracer    opentracing.Tracer
}

// Context is the Replay Scheduler bound to one running execution: it owns
// the mutable ExecutionContext, decides replay vs. live execution for
// every task/subworkflow/pause token, and drives the retry loop for live
// task attempts.
type Context struct {
	goCtx context.Context
	ec    *event.Context
	deps  Deps
	mu    sync.Mutex
}

// NewContext binds a Scheduler to ec using deps. goCtx bounds the whole
// run (e.g. a caller-supplied request deadline); task-level timeouts
// derive child contexts from it.
func NewContext(goCtx context.Context, ec *event.Context, deps Deps) *Context {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Scope == nil {
		deps.Scope = tally.NoopScope
	}
	if deps.Tracer == nil {
		deps.Tracer = opentracing.NoopTracer{}
	}
	return &Context{goCtx: goCtx, ec: ec, deps: deps}
}

// ExecutionContext returns the running context (for inspection by
// callers; the Scheduler itself still owns all mutation).
func (c *Context) ExecutionContext() *event.Context { return c.ec }

// commit appends e to the context and persists the change. Serialized so
// that sibling goroutines in a parallel group do not race on the event
// slice or interleave store writes. Every committed event is logged and,
// for the kinds CounterForEvent recognizes, counted — the single choke
// point through which all 15 event kinds pass.
func (c *Context) commit(e event.Event) error {
	c.mu.Lock()
	c.ec.Append(e)
	err := c.deps.Store.Save(c.goCtx, c.ec)
	c.mu.Unlock()

	if err != nil {
		c.deps.Logger.Error("commit failed",
			zap.String("event_type", string(e.Type)), zap.String("source_id", e.SourceID), zap.Error(err))
		return err
	}

	c.deps.Logger.Debug("event committed",
		zap.String("event_type", string(e.Type)), zap.String("source_id", e.SourceID), zap.String("name", e.Name))
	if counter, ok := telemetry.CounterForEvent(string(e.Type)); ok {
		c.deps.Scope.Counter(counter).Inc(1)
	}
	return nil
}

// find looks up (sourceID, typ) against the context's current event list.
// Because past (replayed) events and freshly-appended (live) events live
// in the same slice, a single lookup serves both the "is this a replay"
// check of spec §4.2.2 and ordinary within-run dedup.
func (c *Context) find(sourceID string, typ event.Type) (event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ec.Find(sourceID, typ)
}

func (c *Context) findTerminal(sourceID string) (event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ec.FindTerminal(sourceID)
}

// InvokeTask drives one task invocation through the Scheduler's replay
// algorithm (spec §4.2.2): if a terminal event for this task's source_id
// already exists, the call is a replay and the stored value (or error) is
// returned without re-executing; otherwise TASK_STARTED is appended and
// the Task Runtime's retry/fallback/rollback/timeout/cache machinery (spec
// §4.3) drives it live.
func (c *Context) InvokeTask(t *Task, args ...any) (any, error) {
	value, _, err := c.invokeTask(t, args, nil)
	return value, err
}

// InvokeTaskKwargs is InvokeTask with keyword-style arguments folded into
// the source_id, mirroring spec §3.2's sorted_kwargs_tuple.
func (c *Context) InvokeTaskKwargs(t *Task, args []any, kwargs map[string]any) (any, error) {
	value, _, err := c.invokeTask(t, args, kwargs)
	return value, err
}

// invokeTask additionally reports whether the result came from replay,
// which Pause (in runtime.go) needs to decide whether to suspend again.
func (c *Context) invokeTask(t *Task, args []any, kwargs map[string]any) (value any, replay bool, err error) {
	sourceID := taskSourceID(t.Name, args, kwargs)

	if terminal, ok := c.findTerminal(sourceID); ok {
		resolved, rerr := resolveTerminal(t, terminal)
		return resolved, true, rerr
	}

	if err := c.commit(event.New(event.TaskStarted, sourceID, t.Name, argsValue(args))); err != nil {
		return nil, false, err
	}

	value, err = c.executeLive(t, sourceID, args)
	return value, false, err
}

func taskSourceID(name string, args []any, kwargs map[string]any) string {
	return event.TaskSourceID(name, args, kwargs)
}

func argsValue(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args
}

func resolveTerminal(t *Task, terminal event.Event) (any, error) {
	if terminal.Type == event.TaskFailed {
		msg := "task failed"
		if ev, ok := terminal.Value.(event.ErrorValue); ok {
			msg = ev.Message
		} else if m, ok := terminal.Value.(map[string]any); ok {
			if s, ok := m["message"].(string); ok {
				msg = s
			}
		}
		return nil, fluxerrors.NewExecutionError(t.Name, fmt.Errorf("%s", msg))
	}
	value, err := t.Options.OutputStorage.Get(terminal.Value)
	return value, err
}

// executeLive runs the Task Runtime state machine (spec §4.3) for a freshly
// started task: cache shortcut, timeout-bounded attempt, retry loop,
// fallback, rollback.
func (c *Context) executeLive(t *Task, sourceID string, args []any) (any, error) {
	cacheKey := sourceID
	if t.Options.Cache && c.deps.Cache != nil {
		if cached, ok := c.deps.Cache.Get(cacheKey, t.Options.CacheVersion); ok {
			return c.complete(t, sourceID, cached)
		}
	}

	tc, err := c.buildTaskContext(t)
	if err != nil {
		return nil, err
	}

	req := t.Options.ResourceRequirements
	if c.deps.Admission != nil {
		if err := c.deps.Admission.Acquire(c.goCtx, req); err != nil {
			return nil, err
		}
		defer c.deps.Admission.Release(req)
	}

	output, err := c.attempt(t, tc, args)
	if err == nil {
		if t.Options.Cache && c.deps.Cache != nil {
			_ = c.deps.Cache.Set(cacheKey, output, t.Options.CacheTTL, t.Options.CacheVersion, t.Options.CacheTags)
		}
		return c.complete(t, sourceID, output)
	}

	if fluxerrors.IsControlSignal(err) {
		// A pause (or future control signal) raised from inside the task
		// body itself completes the task framing before propagating, per
		// spec §4.3's state diagram ("WorkflowPaused -> emit TASK_COMPLETED
		// then WORKFLOW_PAUSED -> propagate").
		if _, cerr := c.complete(t, sourceID, nil); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	return c.retryLoop(t, tc, sourceID, args, err)
}

func (c *Context) complete(t *Task, sourceID string, output any) (any, error) {
	stored, err := t.Options.OutputStorage.Store(sourceID, output)
	if err != nil {
		return nil, err
	}
	if err := c.commit(event.New(event.TaskCompleted, sourceID, t.Name, stored)); err != nil {
		return nil, err
	}
	return output, nil
}

func (c *Context) fail(t *Task, sourceID string, cause error) error {
	return c.commit(event.New(event.TaskFailed, sourceID, t.Name, event.ErrorValue{Message: cause.Error()}))
}

// attempt runs one invocation of t.Fn under its timeout budget (if any).
// Go cannot forcibly interrupt a running goroutine; a timed-out attempt is
// abandoned (its goroutine may still be running) while the Scheduler moves
// on to retry/fallback/rollback, the same abandon-don't-kill posture
// net/http and the teacher's own activity execution take.
func (c *Context) attempt(t *Task, tc *TaskContext, args []any) (any, error) {
	span := c.deps.Tracer.StartSpan("task." + t.Name)
	defer span.Finish()

	if t.Options.Timeout <= 0 {
		value, err := t.Fn(tc, args...)
		if err != nil {
			span.SetTag("error", true)
		}
		return value, err
	}

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := t.Fn(tc, args...)
		done <- result{value, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			span.SetTag("error", true)
		}
		return r.value, r.err
	case <-c.deps.Clock.After(time.Duration(t.Options.Timeout) * time.Second):
		span.SetTag("error", true)
		span.SetTag("timeout", true)
		return nil, &fluxerrors.ExecutionTimeoutError{Kind: "Task", Name: t.Name, TimeoutS: t.Options.Timeout}
	}
}

// retryLoop implements spec §4.3.2's pseudocode exactly.
func (c *Context) retryLoop(t *Task, tc *TaskContext, sourceID string, args []any, cause error) (any, error) {
	attempt := 0
	delay := t.Options.RetryDelay

	for attempt < t.Options.RetryMaxAttempts {
		c.deps.Clock.Sleep(time.Duration(delay) * time.Second)
		delay = delay * t.Options.RetryBackoff
		if delay > RetryBackoffCeilingSeconds {
			delay = RetryBackoffCeilingSeconds
		}

		if err := c.commit(event.New(event.TaskRetryStarted, sourceID, t.Name, event.RetryValue{
			Attempt: attempt + 1, Delay: delay, Backoff: t.Options.RetryBackoff,
		})); err != nil {
			return nil, err
		}

		output, err := c.attempt(t, tc, args)
		attempt++
		if err == nil {
			if err := c.commit(event.New(event.TaskRetryCompleted, sourceID, t.Name, event.RetryValue{
				Attempt: attempt, Delay: delay, Backoff: t.Options.RetryBackoff,
			})); err != nil {
				return nil, err
			}
			return c.complete(t, sourceID, output)
		}
		cause = err
		if err := c.commit(event.New(event.TaskRetryFailed, sourceID, t.Name, event.RetryValue{
			Attempt: attempt, Delay: delay, Backoff: t.Options.RetryBackoff,
		})); err != nil {
			return nil, err
		}
	}

	return c.exhausted(t, tc, sourceID, args, cause)
}

func (c *Context) exhausted(t *Task, tc *TaskContext, sourceID string, args []any, cause error) (any, error) {
	if t.Options.Fallback != nil {
		if err := c.commit(event.New(event.TaskFallbackStarted, sourceID, t.Name, nil)); err != nil {
			return nil, err
		}
		output, err := t.Options.Fallback(tc, args...)
		if err != nil {
			if ferr := c.fail(t, sourceID, err); ferr != nil {
				return nil, ferr
			}
			return nil, fluxerrors.NewExecutionError(t.Name, err)
		}
		if err := c.commit(event.New(event.TaskFallbackCompleted, sourceID, t.Name, output)); err != nil {
			return nil, err
		}
		return c.complete(t, sourceID, output)
	}

	if t.Options.Rollback != nil {
		if err := c.commit(event.New(event.TaskRollbackStarted, sourceID, t.Name, nil)); err != nil {
			return nil, err
		}
		// Rollback is compensation-only (spec §9 resolves this ambiguity):
		// its outcome never rescues the task, which still fails afterward.
		_ = t.Options.Rollback(tc, args...)
		if err := c.commit(event.New(event.TaskRollbackCompleted, sourceID, t.Name, nil)); err != nil {
			return nil, err
		}
	}

	retryErr := &fluxerrors.RetryError{
		TaskName: t.Name, Cause: cause,
		Attempts: t.Options.RetryMaxAttempts, Delay: t.Options.RetryDelay, Backoff: t.Options.RetryBackoff,
	}
	if err := c.fail(t, sourceID, retryErr); err != nil {
		return nil, err
	}
	return nil, retryErr
}

func (c *Context) buildTaskContext(t *Task) (*TaskContext, error) {
	tc := &TaskContext{}
	if len(t.Options.SecretRequests) > 0 {
		if c.deps.Secrets == nil {
			return nil, fmt.Errorf("workflow: task %q requests secrets but no secret manager is configured", t.Name)
		}
		secrets, err := c.deps.Secrets.Get(t.Options.SecretRequests)
		if err != nil {
			return nil, err
		}
		tc.Secrets = secrets
	}
	return tc, nil
}

// Parallel runs every invocation concurrently and returns their results in
// input order (spec §4.2.2 "Parallel group" / §5 ordering guarantees).
// Each branch serializes its own event appends through commit's mutex, so
// interleaving across branches is safe; only the first error is returned,
// but every branch is allowed to finish before Parallel returns.
func (c *Context) Parallel(invocations ...func() (any, error)) ([]any, error) {
	results := make([]any, len(invocations))
	errs := make([]error, len(invocations))

	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		go func(i int, inv func() (any, error)) {
			defer wg.Done()
			results[i], errs[i] = inv()
		}(i, inv)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
