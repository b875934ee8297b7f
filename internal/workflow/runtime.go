package workflow

import (
	"context"

	"go.fluxrun.dev/flux/internal/event"
	fluxerrors "go.fluxrun.dev/flux/internal/errors"
	"go.fluxrun.dev/flux/internal/outputstorage"
	"go.fluxrun.dev/flux/internal/store"
)

// Fn is the shape of a workflow body. It receives the Scheduler bound to
// its own run and the (possibly rewritten, see Pause/resume) input value.
type Fn func(ctx *Context, input any) (any, error)

// Options configures workflow-level policy (spec §9's with_options note,
// supplemented from original_source/flux/decorators.py's workflow class).
type Options struct {
	SecretRequests []string
	OutputStorage  outputstorage.Storage
}

// Workflow is a user function that yields tasks and other control tokens;
// itself a task-like unit with its own state machine (GLOSSARY).
type Workflow struct {
	Name    string
	Fn      Fn
	Options Options
}

// New constructs a Workflow with default options.
func New(name string, fn Fn) *Workflow {
	return &Workflow{Name: name, Fn: fn, Options: Options{OutputStorage: outputstorage.Inline{}}}
}

// WithOptions returns a copy of w configured with opts.
func (w *Workflow) WithOptions(opts Options) *Workflow {
	if opts.OutputStorage == nil {
		opts.OutputStorage = outputstorage.Inline{}
	}
	cp := *w
	cp.Options = opts
	return &cp
}

// RunOptions configures one Run call (spec §4.4's run(input=,
// execution_id=, force_replay=)).
type RunOptions struct {
	ExecutionID string
	Input       any
	ForceReplay bool
}

// Run is the Workflow Runtime's outer envelope (spec §4.4): it loads or
// creates the ExecutionContext, handles the four execution_id/finished/
// paused cases, emits WORKFLOW_STARTED idempotently, drives the workflow
// body through a Scheduler, and commits exactly one closing event:
// WORKFLOW_COMPLETED on return, WORKFLOW_FAILED on failure, or the
// non-terminal WORKFLOW_PAUSED on pause.
func Run(goCtx context.Context, st store.Store, deps Deps, w *Workflow, opts RunOptions, newExecutionID func() string) (*event.Context, error) {
	var ec *event.Context

	if opts.ExecutionID == "" {
		ec = event.NewContext(newExecutionID(), w.Name, opts.Input)
	} else {
		loaded, err := st.Get(goCtx, opts.ExecutionID)
		if err != nil {
			if _, ok := err.(*fluxerrors.ExecutionContextNotFoundError); ok {
				ec = event.NewContext(opts.ExecutionID, w.Name, opts.Input)
			} else {
				return nil, err
			}
		} else {
			ec = loaded
			if ec.Finished() {
				if !opts.ForceReplay {
					return ec, nil
				}
				ec = rerunFromScratch(loaded)
			}
		}
	}

	deps.Store = st
	sched := NewContext(goCtx, ec, deps)

	sourceID := event.WorkflowSourceID(w.Name, ec.ExecutionID)
	_, started := ec.Find(sourceID, event.WorkflowStarted)
	switch {
	case ec.Paused():
		if opts.Input != nil {
			ec.Input = opts.Input
		}
		resumeSourceID := event.WorkflowPauseSourceID(w.Name, ec.ExecutionID, ec.PauseOccurrences())
		if err := sched.commit(event.New(event.WorkflowResumed, resumeSourceID, w.Name, ec.Input)); err != nil {
			return nil, err
		}
	case !started:
		if err := sched.commit(event.New(event.WorkflowStarted, sourceID, w.Name, ec.Input)); err != nil {
			return nil, err
		}
	}

	output, err := w.Fn(sched, ec.Input)

	var paused *fluxerrors.WorkflowPaused
	switch {
	case fluxerrors.As(err, &paused):
		pauseSourceID := event.WorkflowPauseSourceID(w.Name, ec.ExecutionID, ec.PauseOccurrences()+1)
		if cerr := sched.commit(event.New(event.WorkflowPaused, pauseSourceID, w.Name, paused.Reference)); cerr != nil {
			return nil, cerr
		}
		return ec, nil
	case err != nil:
		if cerr := sched.commit(event.New(event.WorkflowFailed, sourceID, w.Name, event.ErrorValue{Message: err.Error()})); cerr != nil {
			return nil, cerr
		}
		return ec, nil
	default:
		stored, serr := w.Options.OutputStorage.Store(sourceID, output)
		if serr != nil {
			return nil, serr
		}
		if cerr := sched.commit(event.New(event.WorkflowCompleted, sourceID, w.Name, stored)); cerr != nil {
			return nil, cerr
		}
		return ec, nil
	}
}

// rerunFromScratch produces the replay-oracle context for a force_replay
// run: a context carrying the prior run's event list as the cursor but
// whose own fresh terminal event has not yet been appended, so Run's
// normal WORKFLOW_STARTED/terminal-event logic re-derives it (spec §8.1's
// Replay preservation property law).
func rerunFromScratch(prior *event.Context) *event.Context {
	ec := event.NewContext(prior.ExecutionID, prior.Name, prior.Input)
	for _, e := range prior.Events {
		if e.Type == event.WorkflowCompleted || e.Type == event.WorkflowFailed {
			continue
		}
		ec.Append(e)
	}
	return ec
}

// Pause is the pause(reference, wait_for_input) determinism helper (spec
// §4.2.5, §6.5). It is implemented as a task invocation (pause "completes"
// immediately, recording its reference as the task value) so that on
// resume, replay finds the terminal event and simply returns the stored
// reference instead of pausing a second time.
func (c *Context) Pause(reference string, waitForInput bool) (any, error) {
	t := NewTask("pause", func(_ *TaskContext, args ...any) (any, error) {
		return args[0], nil
	})
	value, replay, err := c.invokeTask(t, []any{reference}, nil)
	if err != nil {
		return nil, err
	}
	if replay {
		return value, nil
	}
	return nil, &fluxerrors.WorkflowPaused{Reference: reference, WaitForInput: waitForInput}
}

// CallWorkflow invokes a subworkflow, which is semantically identical to a
// task invocation (spec §4.2.1 #3): it shares this run's ExecutionContext
// and event log, gets its own source_id, and is replay-dedup'd exactly
// like any other task.
func (c *Context) CallWorkflow(wf *Workflow, input any) (any, error) {
	t := NewTask(wf.Name, func(_ *TaskContext, args ...any) (any, error) {
		return wf.Fn(c, args[0])
	})
	t.Options.OutputStorage = wf.Options.OutputStorage
	return c.InvokeTask(t, input)
}
