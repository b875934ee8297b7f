package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.fluxrun.dev/flux/client"
	"go.fluxrun.dev/flux/internal/config"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/telemetry"
	"go.fluxrun.dev/flux/internal/workflow"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	c, err := client.New(config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	c.Register(workflow.New("greet", func(ctx *workflow.Context, input any) (any, error) {
		return "hello, " + input.(string), nil
	}))

	tel, err := telemetry.New("test")
	require.NoError(t, err)
	t.Cleanup(func() { tel.Close() })

	return New(c, tel)
}

func TestPostWorkflowStartsExecution(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/greet", strings.NewReader(`"world"`))
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "hello, world", body.Output)
	require.Equal(t, "completed", body.Status)
}

func TestPostUnknownWorkflowReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/missing", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInspectReturnsFullContext(t *testing.T) {
	s := newTestServer(t)

	startReq := httptest.NewRequest(http.MethodPost, "/greet", strings.NewReader(`"world"`))
	startRec := httptest.NewRecorder()
	s.ServeHTTP(startRec, startReq)

	var started summary
	require.NoError(t, json.Unmarshal(startRec.Body.Bytes(), &started))

	inspectReq := httptest.NewRequest(http.MethodGet, "/inspect/"+started.ExecutionID, nil)
	inspectRec := httptest.NewRecorder()
	s.ServeHTTP(inspectRec, inspectReq)

	require.Equal(t, http.StatusOK, inspectRec.Code, inspectRec.Body.String())
}

func TestWriteErrorMapsStoreCollisionTo409(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()

	s.writeError(rec, &fluxerrors.StoreCollisionError{ExecutionID: "exec-1", Cause: errors.New("unique constraint violated")})

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestInspectMissingReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/inspect/does-not-exist", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
