package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSqliteGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	var notFound *fluxerrors.ExecutionContextNotFoundError
	require.True(t, fluxerrors.As(err, &notFound), "Get() error = %v, want *ExecutionContextNotFoundError", err)
}

func TestSqliteSaveThenGetRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ec := event.NewContext("exec-1", "demo", map[string]any{"greeting": "hi"})
	ec.Append(event.New(event.WorkflowStarted, "demo_exec-1", "demo", nil))
	ec.Append(event.New(event.TaskCompleted, "task_a", "greet", "hello"))

	require.NoError(t, s.Save(context.Background(), ec))

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Equal(t, "demo", loaded.Name)
	require.Len(t, loaded.Events, 2)

	input, ok := loaded.Input.(map[string]any)
	require.True(t, ok, "Input should JSON round-trip back into a map")
	require.Equal(t, "hi", input["greeting"])
}

func TestSqliteSaveKeepsDistinctPauseResumeOccurrences(t *testing.T) {
	s := openTestStore(t)
	ec := event.NewContext("exec-1", "demo", nil)
	ec.Append(event.New(event.WorkflowStarted, "demo_exec-1", "demo", nil))
	require.NoError(t, s.Save(context.Background(), ec))

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
	require.Equal(t, 3, paused, "occurrence-qualified source_ids must not collapse under the (execution_id,source_id,type) primary key")
	require.Equal(t, 3, resumed, "occurrence-qualified source_ids must not collapse under the (execution_id,source_id,type) primary key")
}

func TestSqliteSaveDeduplicatesEvents(t *testing.T) {
	s := openTestStore(t)
	ec := event.NewContext("exec-1", "demo", nil)
	ec.Append(event.New(event.TaskStarted, "task_a", "greet", nil))
	require.NoError(t, s.Save(context.Background(), ec))

	ec.Append(event.New(event.TaskCompleted, "task_a", "greet", "done"))
	require.NoError(t, s.Save(context.Background(), ec))

	loaded, err := s.Get(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 2, "no duplicate TASK_STARTED")
}
