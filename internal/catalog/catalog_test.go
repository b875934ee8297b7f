package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	fluxerrors "go.fluxrun.dev/flux/internal/errors"
)

func TestRegisterAndGet(t *testing.T) {
	c := New[func() string]()
	c.Register("greet", func() string { return "hi" })

	fn, err := c.Get("greet")
	require.NoError(t, err)
	require.Equal(t, "hi", fn())
}

func TestGetMissingReturnsWorkflowNotFoundError(t *testing.T) {
	c := New[func() string]()
	_, err := c.Get("missing")
	var notFound *fluxerrors.WorkflowNotFoundError
	require.True(t, fluxerrors.As(err, &notFound), "Get() error = %v, want *WorkflowNotFoundError", err)
}

func TestNamesListsEveryRegistration(t *testing.T) {
	c := New[int]()
	c.Register("a", 1)
	c.Register("b", 2)

	require.Len(t, c.Names(), 2)
}
