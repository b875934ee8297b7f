package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/event"
)

func TestGetMissingExecutionReturnsNotFound(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "missing")
	var notFound *fluxerrors.ExecutionContextNotFoundError
	require.True(t, fluxerrors.As(err, &notFound), "Get() error = %v, want *ExecutionContextNotFoundError", err)
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	s := New()
	ec := event.NewContext("exec-1", "demo", "input")
	ec.Append(event.New(event.WorkflowStarted, "demo_exec-1", "demo", "input"))

	require.NoError(t, s.Save(context.Background(), ec))

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
}

func TestSaveDeduplicatesBySourceIDAndType(t *testing.T) {
	s := New()
	ec := event.NewContext("exec-1", "demo", nil)
	ec.Append(event.New(event.TaskStarted, "task_a", "greet", nil))
	require.NoError(t, s.Save(context.Background(), ec))

	// A second save carrying the same (source_id, type) plus one new event
	// should only append the new one.
	ec2 := event.NewContext("exec-1", "demo", nil)
	ec2.Append(event.New(event.TaskStarted, "task_a", "greet", nil))
	ec2.Append(event.New(event.TaskCompleted, "task_a", "greet", "done"))
	require.NoError(t, s.Save(context.Background(), ec2))

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 2, "events should be deduplicated")
}

func TestSaveKeepsDistinctPauseResumeOccurrences(t *testing.T) {
	s := New()
	ec := event.NewContext("exec-1", "demo", nil)
	ec.Append(event.New(event.WorkflowStarted, "demo_exec-1", "demo", nil))

	for i := 1; i <= 3; i++ {
		sourceID := event.WorkflowPauseSourceID("demo", "exec-1", i)
		ec.Append(event.New(event.WorkflowPaused, sourceID, "demo", nil))
		require.NoError(t, s.Save(context.Background(), ec))
		ec.Append(event.New(event.WorkflowResumed, sourceID, "demo", nil))
		require.NoError(t, s.Save(context.Background(), ec))
	}

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)

	var paused, resumed int
	for _, e := range loaded.Events {
		switch e.Type {
		case event.WorkflowPaused:
			paused++
		case event.WorkflowResumed:
			resumed++
		}
	}
	require.Equal(t, 3, paused, "occurrence-qualified source_ids must not collapse under (source_id,type) dedup")
	require.Equal(t, 3, resumed, "occurrence-qualified source_ids must not collapse under (source_id,type) dedup")
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	s := New()
	ec := event.NewContext("exec-1", "demo", nil)
	ec.Append(event.New(event.WorkflowStarted, "demo_exec-1", "demo", nil))
	require.NoError(t, s.Save(context.Background(), ec))

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	loaded.Append(event.New(event.WorkflowCompleted, "demo_exec-1", "demo", "result"))

	reloaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, reloaded.Events, 1, "mutating a Get() result must not affect the stored copy")
}
