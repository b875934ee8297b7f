package workflow

import (
	"math/rand"
	"time"

	"github.com/pborman/uuid"
)

// The helpers in this file are the engine-provided tasks named in spec
// §6.5: now/uuid/random_int/random_range/sleep/pause/call_workflow/
// parallel/pipeline. Each one is routed through InvokeTask (or, for
// Pause/CallWorkflow, through the dedicated methods in runtime.go; Parallel,
// in context.go, is not itself a task and only runs invocations that are)
// so that it participates in the same replay/dedup machinery as a user task —
// spec §6.5 is explicit that these "become ordinary Tasks registered by
// the engine itself" rather than special scheduler cases.

// Now returns the current wall-clock time, replay-safe because it is
// itself wrapped as a Task: a replayed run returns the originally
// recorded value instead of re-sampling the live clock (spec §8.1's
// Determinism property law).
func (c *Context) Now() (time.Time, error) {
	t := NewTask("now", func(tc *TaskContext, args ...any) (any, error) {
		return c.deps.Clock.Now(), nil
	})
	value, err := c.InvokeTask(t)
	if err != nil {
		return time.Time{}, err
	}
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return time.Parse(time.RFC3339Nano, v)
	default:
		return time.Time{}, nil
	}
}

// UUID returns a fresh random identifier on first (live) invocation and
// the previously recorded one on replay.
func (c *Context) UUID() (string, error) {
	t := NewTask("uuid", func(tc *TaskContext, args ...any) (any, error) {
		return uuid.New(), nil
	})
	value, err := c.InvokeTask(t)
	if err != nil {
		return "", err
	}
	s, _ := value.(string)
	return s, nil
}

// RandomInt returns a uniformly distributed integer in [a, b], replay-safe
// for the same reason as Now/UUID.
func (c *Context) RandomInt(a, b int) (int, error) {
	t := NewTask("random_int", func(tc *TaskContext, args ...any) (any, error) {
		lo, hi := args[0].(int), args[1].(int)
		if hi < lo {
			lo, hi = hi, lo
		}
		return lo + rand.Intn(hi-lo+1), nil
	})
	value, err := c.InvokeTask(t, a, b)
	if err != nil {
		return 0, err
	}
	return asInt(value), nil
}

// RandomRange returns a uniformly chosen value from the arithmetic
// sequence start, start+step, ..., stop (exclusive), mirroring Python's
// random.randrange(start, stop, step).
func (c *Context) RandomRange(start, stop, step int) (int, error) {
	t := NewTask("random_range", func(tc *TaskContext, args ...any) (any, error) {
		lo, hi, st := args[0].(int), args[1].(int), args[2].(int)
		if st == 0 {
			st = 1
		}
		var n int
		if st > 0 {
			n = (hi - lo + st - 1) / st
		} else {
			n = (hi - lo + st + 1) / st
		}
		if n <= 0 {
			return lo, nil
		}
		return lo + rand.Intn(n)*st, nil
	})
	value, err := c.InvokeTask(t, start, stop, step)
	if err != nil {
		return 0, err
	}
	return asInt(value), nil
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Sleep suspends the current live attempt for d. On replay this is a
// no-op: the recorded TASK_COMPLETED is found and returned immediately
// without sleeping a second time.
func (c *Context) Sleep(d time.Duration) error {
	t := NewTask("sleep", func(tc *TaskContext, args ...any) (any, error) {
		c.deps.Clock.Sleep(d)
		return nil, nil
	})
	_, err := c.InvokeTask(t, d)
	return err
}

// Pipeline runs stages sequentially, threading each stage's output into
// the next stage's input, starting from input (spec §6.5's pipeline
// helper, a thin sequential composition over InvokeTask-backed stages).
func (c *Context) Pipeline(input any, stages ...*Task) (any, error) {
	value := input
	for _, stage := range stages {
		out, err := c.InvokeTask(stage, value)
		if err != nil {
			return nil, err
		}
		value = out
	}
	return value, nil
}
