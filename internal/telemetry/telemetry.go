// Package telemetry wires the engine's structured logging, metrics scope,
// and distributed tracer, grounded on the teacher's worker.go/
// internal_task_pollers.go pattern of threading a *zap.Logger and a
// tally.Scope as explicit constructor parameters rather than package
// globals.
package telemetry

import (
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"go.uber.org/zap"
)

// Names mirror the teacher's metrics.* constants: counters and timers for
// the engine's own state-machine transitions rather than an activity
// poller's.
const (
	TaskStartedCounter   = "flux.task.started"
	TaskCompletedCounter = "flux.task.completed"
	TaskFailedCounter    = "flux.task.failed"
	TaskRetryCounter     = "flux.task.retry"
	TaskFallbackCounter  = "flux.task.fallback"
	TaskRollbackCounter  = "flux.task.rollback"

	WorkflowStartedCounter   = "flux.workflow.started"
	WorkflowCompletedCounter = "flux.workflow.completed"
	WorkflowFailedCounter    = "flux.workflow.failed"
	WorkflowPausedCounter    = "flux.workflow.paused"
	WorkflowResumedCounter   = "flux.workflow.resumed"

	TaskExecutionLatencyTimer     = "flux.task.execution_latency"
	WorkflowExecutionLatencyTimer = "flux.workflow.execution_latency"

	HTTPRequestLatencyTimer    = "flux.http.request_latency"
	HTTPWorkflowRequestCounter = "flux.http.workflow_request"
)

// CounterForEvent maps an event kind to the counter name incremented for it
// at commit time (internal/workflow Context.commit). Not every event kind
// has a counter: TASK_STARTED/COMPLETED/FAILED and the TASK_RETRY_*/
// TASK_FALLBACK_*/TASK_ROLLBACK_* pairs collapse onto one counter per verb
// rather than per before/after phase, matching how the teacher counts
// activity attempts rather than every event the state machine appends.
func CounterForEvent(typ string) (string, bool) {
	switch typ {
	case "TASK_STARTED":
		return TaskStartedCounter, true
	case "TASK_COMPLETED":
		return TaskCompletedCounter, true
	case "TASK_FAILED":
		return TaskFailedCounter, true
	case "TASK_RETRY_STARTED":
		return TaskRetryCounter, true
	case "TASK_FALLBACK_STARTED":
		return TaskFallbackCounter, true
	case "TASK_ROLLBACK_STARTED":
		return TaskRollbackCounter, true
	case "WORKFLOW_STARTED":
		return WorkflowStartedCounter, true
	case "WORKFLOW_COMPLETED":
		return WorkflowCompletedCounter, true
	case "WORKFLOW_FAILED":
		return WorkflowFailedCounter, true
	case "WORKFLOW_PAUSED":
		return WorkflowPausedCounter, true
	case "WORKFLOW_RESUMED":
		return WorkflowResumedCounter, true
	default:
		return "", false
	}
}

// Telemetry bundles the three cross-cutting observability collaborators a
// worker process threads through its components, replacing the teacher's
// WorkerExecutionParameters.{Logger,MetricsScope} fields with one value.
type Telemetry struct {
	Logger *zap.Logger
	Scope  tally.Scope
	Tracer opentracing.Tracer
	closer io.Closer
}

// New builds a Telemetry bundle: a production zap logger, a tally
// NoopScope (callers wanting a reporting backend pass one via WithScope),
// and a Jaeger tracer registered under serviceName.
func New(serviceName string) (*Telemetry, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans: false,
		},
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaeger.StdLogger))
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &Telemetry{Logger: logger, Scope: tally.NoopScope, Tracer: tracer, closer: closer}, nil
}

// WithScope returns a copy of t reporting through scope instead of the
// no-op default (tests and local runs typically pass tally's
// NewTestScope()).
func (t *Telemetry) WithScope(scope tally.Scope) *Telemetry {
	cp := *t
	cp.Scope = scope
	return &cp
}

// Close flushes the logger and shuts down the tracer.
func (t *Telemetry) Close() error {
	_ = t.Logger.Sync()
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
