// Package event defines the execution event taxonomy and the
// ExecutionContext/ExecutionEvent data model (spec §3).
package event

import (
	"encoding/json"
	"hash/fnv"
	"sort"
	"strconv"
	"time"
)

// Type enumerates the 15 event kinds the engine emits.
type Type string

const (
	WorkflowStarted   Type = "WORKFLOW_STARTED"
	WorkflowCompleted Type = "WORKFLOW_COMPLETED"
	WorkflowFailed    Type = "WORKFLOW_FAILED"
	WorkflowPaused    Type = "WORKFLOW_PAUSED"
	WorkflowResumed   Type = "WORKFLOW_RESUMED"

	TaskStarted   Type = "TASK_STARTED"
	TaskCompleted Type = "TASK_COMPLETED"
	TaskFailed    Type = "TASK_FAILED"

	TaskRetryStarted   Type = "TASK_RETRY_STARTED"
	TaskRetryCompleted Type = "TASK_RETRY_COMPLETED"
	TaskRetryFailed    Type = "TASK_RETRY_FAILED"

	TaskFallbackStarted   Type = "TASK_FALLBACK_STARTED"
	TaskFallbackCompleted Type = "TASK_FALLBACK_COMPLETED"

	TaskRollbackStarted   Type = "TASK_ROLLBACK_STARTED"
	TaskRollbackCompleted Type = "TASK_ROLLBACK_COMPLETED"
)

// terminalWorkflowTypes are the types that close out a run.
var terminalWorkflowTypes = map[Type]bool{
	WorkflowCompleted: true,
	WorkflowFailed:    true,
}

// Event is one atomic, append-only record of something observable the
// engine did (spec §3.2).
type Event struct {
	Type     Type      `json:"type"`
	SourceID string    `json:"source_id"`
	Name     string    `json:"name"`
	Value    any       `json:"value,omitempty"`
	Time     time.Time `json:"time"`
}

// New constructs an Event stamped with the current wall-clock time. Time is
// used only for ordering diagnostics, never for correctness (spec §3.2).
func New(typ Type, sourceID, name string, value any) Event {
	return Event{Type: typ, SourceID: sourceID, Name: name, Value: value, Time: time.Now()}
}

// RetryValue is the payload shape of TASK_RETRY_* events.
type RetryValue struct {
	Attempt int `json:"attempt"`
	Delay   int `json:"delay"`
	Backoff int `json:"backoff"`
}

// ErrorValue is the payload shape of TASK_FAILED events.
type ErrorValue struct {
	Message string `json:"message"`
}

// Context is the durable record of one workflow run (spec §3.1).
type Context struct {
	ExecutionID string  `json:"execution_id"`
	Name        string  `json:"name"`
	Input       any     `json:"input"`
	Events      []Event `json:"events"`
}

// NewContext constructs a fresh, unstarted context.
func NewContext(executionID, name string, input any) *Context {
	return &Context{ExecutionID: executionID, Name: name, Input: input, Events: nil}
}

// Append adds an event to the ordered, append-only event list.
func (c *Context) Append(e Event) { c.Events = append(c.Events, e) }

// Started reports whether the first event (WORKFLOW_STARTED) has been
// recorded.
func (c *Context) Started() bool {
	return len(c.Events) > 0 && c.Events[0].Type == WorkflowStarted
}

// Finished reports whether a terminal workflow event has been recorded.
func (c *Context) Finished() bool {
	for _, e := range c.Events {
		if terminalWorkflowTypes[e.Type] {
			return true
		}
	}
	return false
}

// Succeeded reports whether the run finished via WORKFLOW_COMPLETED.
func (c *Context) Succeeded() bool {
	for _, e := range c.Events {
		if e.Type == WorkflowCompleted {
			return true
		}
	}
	return false
}

// Failed reports whether the run finished via WORKFLOW_FAILED.
func (c *Context) Failed() bool {
	for _, e := range c.Events {
		if e.Type == WorkflowFailed {
			return true
		}
	}
	return false
}

// Paused reports whether WORKFLOW_PAUSED count exceeds WORKFLOW_RESUMED
// count (spec §3.3 pause-balance invariant).
func (c *Context) Paused() bool {
	paused, resumed := c.pauseCounts()
	return paused > resumed
}

// Resumed reports whether a WORKFLOW_RESUMED event has ever been recorded.
func (c *Context) Resumed() bool {
	_, resumed := c.pauseCounts()
	return resumed > 0
}

func (c *Context) pauseCounts() (paused, resumed int) {
	for _, e := range c.Events {
		switch e.Type {
		case WorkflowPaused:
			paused++
		case WorkflowResumed:
			resumed++
		}
	}
	return
}

// Output returns the value of the terminal WORKFLOW_COMPLETED event, if
// any.
func (c *Context) Output() any {
	for _, e := range c.Events {
		if e.Type == WorkflowCompleted {
			return e.Value
		}
	}
	return nil
}

// FindTerminal returns the TASK_COMPLETED or TASK_FAILED event for sourceID,
// if one has already been committed. Used by the scheduler's replay
// short-circuit (spec §4.2.2).
func (c *Context) FindTerminal(sourceID string) (Event, bool) {
	for _, e := range c.Events {
		if e.SourceID == sourceID && (e.Type == TaskCompleted || e.Type == TaskFailed) {
			return e, true
		}
	}
	return Event{}, false
}

// Find returns the first event matching (sourceID, typ), if any. Used to
// test whether a token the scheduler is about to append already exists in
// the replay cursor.
func (c *Context) Find(sourceID string, typ Type) (Event, bool) {
	for _, e := range c.Events {
		if e.SourceID == sourceID && e.Type == typ {
			return e, true
		}
	}
	return Event{}, false
}

// WorkflowSourceID returns the deterministic source_id for a workflow's own
// framing events: "<name>_<execution_id>" (spec §3.2). WORKFLOW_STARTED,
// WORKFLOW_COMPLETED, and WORKFLOW_FAILED each occur at most once per
// execution, so this constant id is safe for them to share.
func WorkflowSourceID(name, executionID string) string {
	return name + "_" + executionID
}

// WorkflowPauseSourceID returns the source_id for the occurrence-th
// WORKFLOW_PAUSED/WORKFLOW_RESUMED pair of an execution (1-indexed).
// Unlike WorkflowSourceID, a single execution can pause and resume more
// than once, and the Context Store dedups committed events on
// (source_id, type); sharing one constant source_id across every pause
// would collapse the 2nd and later WORKFLOW_PAUSED/WORKFLOW_RESUMED
// events on reload, silently breaking the pause-balance invariant (spec
// §3.3) for any persisted, reloaded context. Qualifying the id by
// occurrence keeps each pause/resume cycle distinct under that dedup key.
func WorkflowPauseSourceID(name, executionID string, occurrence int) string {
	return WorkflowSourceID(name, executionID) + "_pause_" + strconv.Itoa(occurrence)
}

// PauseOccurrences counts how many WORKFLOW_PAUSED events have been
// recorded so far, used to mint the next WorkflowPauseSourceID.
func (c *Context) PauseOccurrences() int {
	n := 0
	for _, e := range c.Events {
		if e.Type == WorkflowPaused {
			n++
		}
	}
	return n
}

// TaskSourceID returns the deterministic source_id for a task invocation:
// "<task_name>_<stable_hash(...)>" (spec §3.2).
func TaskSourceID(name string, args []any, kwargs map[string]any) string {
	return name + "_" + StableHash(name, args, kwargs)
}

// StableHash implements spec §3.2's source_id function:
// stable_hash(name, positional_args_tuple, sorted_kwargs_tuple).
//
// The original Python implementation salts with the builtin hash(), which
// is randomized per-process (PYTHONHASHSEED) and explicitly NOT stable
// across restarts or machines. Spec §3.2 requires exactly that stability,
// so this diverges from the literal original algorithm on purpose: FNV-1a
// over a canonical JSON encoding of (name, args, sorted kwargs).
func StableHash(name string, args []any, kwargs map[string]any) string {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sortedKwargs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		sortedKwargs = append(sortedKwargs, [2]any{k, kwargs[k]})
	}

	canonical := struct {
		Name   string  `json:"name"`
		Args   []any   `json:"args"`
		Kwargs [][2]any `json:"kwargs"`
	}{Name: name, Args: args, Kwargs: sortedKwargs}

	// json.Marshal errors only on unsupported types (channels, funcs);
	// task arguments are always serializable values by construction, so
	// a marshal failure here means caller misuse, not a runtime
	// condition to recover from.
	b, err := json.Marshal(canonical)
	if err != nil {
		panic("event: StableHash: non-serializable task arguments: " + err.Error())
	}

	h := fnv.New64a()
	_, _ = h.Write(b)
	return strconv.FormatUint(h.Sum64(), 16)
}
