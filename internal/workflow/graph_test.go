package workflow

import (
	"context"
	"testing"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"

	"go.fluxrun.dev/flux/internal/store/memory"
)

func TestGraphRunsLinearPath(t *testing.T) {
	st := memory.New()

	g := NewGraph("pipeline").
		AddNode("double", func(ctx *Context, state any) (any, error) {
			return state.(int) * 2, nil
		}).
		AddNode("increment", func(ctx *Context, state any) (any, error) {
			return state.(int) + 1, nil
		}).
		AddEdge("double", "increment").
		SetEntryPoint("double").
		FinishPoint("increment")

	wf := New("graph_demo", func(ctx *Context, input any) (any, error) {
		return g.Run(ctx, input)
	})

	ec, err := Run(context.Background(), st, Deps{}, wf, RunOptions{Input: 5}, uuid.New)
	require.NoError(t, err)
	require.Equal(t, 11, ec.Output(), "(5*2)+1")
}

func TestGraphConditionalEdgeRoutesOnNodeOutput(t *testing.T) {
	st := memory.New()

	g := NewGraph("router").
		AddNode("classify", func(ctx *Context, state any) (any, error) {
			return state.(int), nil
		}).
		AddNode("small", func(ctx *Context, state any) (any, error) {
			return "small:" + string(rune('0'+state.(int))), nil
		}).
		AddNode("large", func(ctx *Context, state any) (any, error) {
			return "large", nil
		}).
		AddConditionalEdge("classify", "large", func(state any) bool { return state.(int) >= 5 }).
		AddConditionalEdge("classify", "small", func(state any) bool { return state.(int) < 5 }).
		SetEntryPoint("classify").
		FinishPoint("large")

	wf := New("router_demo", func(ctx *Context, input any) (any, error) {
		return g.Run(ctx, input)
	})

	ec, err := Run(context.Background(), st, Deps{}, wf, RunOptions{Input: 9}, uuid.New)
	require.NoError(t, err)
	require.Equal(t, "large", ec.Output())
}

func TestGraphConditionalEdgeFallsThroughToSmallBranch(t *testing.T) {
	st := memory.New()

	g := NewGraph("router").
		AddNode("classify", func(ctx *Context, state any) (any, error) {
			return state.(int), nil
		}).
		AddNode("small", func(ctx *Context, state any) (any, error) {
			return "small", nil
		}).
		AddNode("large", func(ctx *Context, state any) (any, error) {
			return "large", nil
		}).
		AddConditionalEdge("classify", "large", func(state any) bool { return state.(int) >= 5 }).
		AddConditionalEdge("classify", "small", func(state any) bool { return state.(int) < 5 }).
		SetEntryPoint("classify").
		FinishPoint("small")

	wf := New("router_demo_small", func(ctx *Context, input any) (any, error) {
		return g.Run(ctx, input)
	})

	ec, err := Run(context.Background(), st, Deps{}, wf, RunOptions{Input: 2}, uuid.New)
	require.NoError(t, err)
	require.Equal(t, "small", ec.Output())
}

func TestTaskMapFansOutInOrder(t *testing.T) {
	st := memory.New()

	double := NewTask("double", func(tc *TaskContext, args ...any) (any, error) {
		return args[0].(int) * 2, nil
	})

	wf := New("map_demo", func(ctx *Context, input any) (any, error) {
		return double.Map(ctx, [][]any{{1}, {2}, {3}})
	})

	ec, err := Run(context.Background(), st, Deps{}, wf, RunOptions{}, uuid.New)
	require.NoError(t, err)

	results, ok := ec.Output().([]any)
	require.True(t, ok)
	require.Equal(t, []any{2, 4, 6}, results)
}
