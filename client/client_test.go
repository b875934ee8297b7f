package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"go.fluxrun.dev/flux/internal/config"
	"go.fluxrun.dev/flux/internal/workflow"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRegisterAndStart(t *testing.T) {
	c := newTestClient(t)
	c.Register(workflow.New("greet", func(ctx *workflow.Context, input any) (any, error) {
		return "hello, " + input.(string), nil
	}))

	ec, err := c.Start(context.Background(), "greet", "world")
	require.NoError(t, err)
	require.Equal(t, "hello, world", ec.Output())
}

func TestStartUnknownWorkflowErrors(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Start(context.Background(), "missing", nil)
	require.Error(t, err, "Start() should error for an unregistered workflow")
}

func TestInspectReturnsStoredExecution(t *testing.T) {
	c := newTestClient(t)
	c.Register(workflow.New("greet", func(ctx *workflow.Context, input any) (any, error) {
		return "ok", nil
	}))

	started, err := c.Start(context.Background(), "greet", nil)
	require.NoError(t, err)

	ec, err := c.Inspect(context.Background(), started.ExecutionID)
	require.NoError(t, err)
	require.Equal(t, started.ExecutionID, ec.ExecutionID)
}

func TestWorkflowsListsRegistrations(t *testing.T) {
	c := newTestClient(t)
	c.Register(workflow.New("a", func(ctx *workflow.Context, input any) (any, error) { return nil, nil }))
	c.Register(workflow.New("b", func(ctx *workflow.Context, input any) (any, error) { return nil, nil }))

	require.Len(t, c.Workflows(), 2)
}
