// Package httpapi implements the HTTP surface named in spec §6.1, grounded
// on the teacher's worker.go style of a thin façade over the engine
// (ReplayWorkflowHistory et al. wrap internal machinery behind a small,
// documented function set) adapted here to stdlib net/http plus
// gorilla/mux-free path parsing, since the three routes are static enough
// not to need a router dependency beyond what the teacher already pulls
// in for its own RPC surface.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"go.fluxrun.dev/flux/client"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/event"
	"go.fluxrun.dev/flux/internal/telemetry"
)

// Server serves the three routes of spec §6.1 against one Client.
type Server struct {
	client *client.Client
	tel    *telemetry.Telemetry
	mux    *http.ServeMux
}

// New builds a Server routing requests to c, logging and counting through
// tel.
func New(c *client.Client, tel *telemetry.Telemetry) *Server {
	s := &Server{client: c, tel: tel, mux: http.NewServeMux()}
	s.mux.HandleFunc("/inspect/", s.handleInspect)
	s.mux.HandleFunc("/", s.handleWorkflow)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	span := s.tel.Tracer.StartSpan("http." + r.Method + " " + r.URL.Path)
	defer span.Finish()
	ctx := opentracing.ContextWithSpan(r.Context(), span)
	r = r.WithContext(ctx)

	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.tel.Scope.Timer(telemetry.HTTPRequestLatencyTimer).Record(time.Since(start))
}

// summary is the JSON shape returned by POST /{workflow_name} and
// POST /{workflow_name}/{execution_id} (spec §6.1).
type summary struct {
	ExecutionID string `json:"execution_id"`
	Name        string `json:"name"`
	Input       any    `json:"input"`
	Output      any    `json:"output,omitempty"`
	Status      string `json:"status"`
}

func toSummary(ec *event.Context) summary {
	status := "running"
	switch {
	case ec.Succeeded():
		status = "completed"
	case ec.Failed():
		status = "failed"
	case ec.Paused():
		status = "paused"
	}
	return summary{ExecutionID: ec.ExecutionID, Name: ec.Name, Input: ec.Input, Output: ec.Output(), Status: status}
}

// handleWorkflow serves POST /{workflow_name} and
// POST /{workflow_name}/{execution_id}.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	name := parts[0]

	var input any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var (
		ec  *event.Context
		err error
	)
	if len(parts) >= 2 && parts[1] != "" {
		ec, err = s.client.Resume(r.Context(), name, parts[1], input)
	} else {
		ec, err = s.client.Start(r.Context(), name, input)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.tel.Scope.Counter(telemetry.HTTPWorkflowRequestCounter).Inc(1)
	writeJSON(w, http.StatusOK, toSummary(ec))
}

// handleInspect serves GET /inspect/{execution_id} (spec §6.1).
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	executionID := strings.TrimPrefix(r.URL.Path, "/inspect/")
	if executionID == "" {
		http.NotFound(w, r)
		return
	}

	ec, err := s.client.Inspect(r.Context(), executionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ec)
}

// writeError maps engine errors to kind-appropriate HTTP statuses per spec
// §7's propagation policy: 404 for not-found, 409 for store collision
// faults, 500 otherwise.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var notFound *fluxerrors.ExecutionContextNotFoundError
	var catalogMiss *fluxerrors.WorkflowNotFoundError
	var collision *fluxerrors.StoreCollisionError
	status := http.StatusInternalServerError
	switch {
	case fluxerrors.As(err, &notFound), fluxerrors.As(err, &catalogMiss):
		status = http.StatusNotFound
	case fluxerrors.As(err, &collision):
		status = http.StatusConflict
	}
	s.tel.Logger.Error("request failed", zap.Error(err), zap.Int("status", status))
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
