package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"go.fluxrun.dev/flux/internal/store/memory"
	"go.fluxrun.dev/flux/internal/telemetry"
)

// TestCommitEmitsCounterPerEventKind pins down that commit (the single
// choke point every committed event passes through) actually increments
// the scope counter telemetry.CounterForEvent names for it, rather than
// leaving the Scope dependency wired but unused.
func TestCommitEmitsCounterPerEventKind(t *testing.T) {
	st := memory.New()
	scope := tally.NewTestScope("", nil)
	deps := Deps{Scope: scope}

	task := NewTask("noop", func(tc *TaskContext, args ...any) (any, error) {
		return "ok", nil
	})
	wf := New("counter_demo", func(ctx *Context, input any) (any, error) {
		return ctx.InvokeTask(task)
	})

	_, err := Run(context.Background(), st, deps, wf, RunOptions{}, uuid.New)
	require.NoError(t, err)

	counters := scope.Snapshot().Counters()
	for _, name := range []string{
		telemetry.WorkflowStartedCounter,
		telemetry.WorkflowCompletedCounter,
		telemetry.TaskStartedCounter,
		telemetry.TaskCompletedCounter,
	} {
		var found bool
		for key, snap := range counters {
			if strings.HasPrefix(key, name) {
				found = true
				require.EqualValues(t, 1, snap.Value(), "counter %q", key)
			}
		}
		require.True(t, found, "expected counter %q to have been incremented, got %+v", name, counters)
	}
}

// TestAttemptStartsOneSpanPerTaskAttempt pins down that the Tracer
// dependency actually starts a span for each live task attempt, rather
// than sitting constructed-but-unused.
func TestAttemptStartsOneSpanPerTaskAttempt(t *testing.T) {
	st := memory.New()
	tracer := mocktracer.New()
	deps := Deps{Tracer: tracer}

	task := NewTask("noop", func(tc *TaskContext, args ...any) (any, error) {
		return "ok", nil
	})
	wf := New("span_demo", func(ctx *Context, input any) (any, error) {
		return ctx.InvokeTask(task)
	})

	_, err := Run(context.Background(), st, deps, wf, RunOptions{}, uuid.New)
	require.NoError(t, err)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1, "exactly one span for the single live task attempt")
	require.Equal(t, "task.noop", spans[0].OperationName)
}
