// Package catalog implements the name -> workflow-function lookup (spec
// §2), grounded on original_source/flux/catalogs.py's
// ModuleWorkflowCatalog.
//
// The Python original resolves names reflectively (importlib/getattr
// against a module); Go has no equivalent of reflective module
// introspection for arbitrary user packages, so this is adapted to
// explicit registration: a catalog-path loader (cmd/fluxctl) calls
// Register for every workflow it knows about at process start.
package catalog

import (
	"sync"

	fluxerrors "go.fluxrun.dev/flux/internal/errors"
)

// Entry is a registered workflow: its name and function.
type Entry[Fn any] struct {
	Name string
	Fn   Fn
}

// Catalog resolves workflow names to their registered functions. Fn is
// typically *workflow.Workflow; kept generic here so this package has no
// dependency on the workflow package (avoiding an import cycle, since
// workflow bodies may themselves look workflows up via call_workflow).
type Catalog[Fn any] struct {
	mu      sync.RWMutex
	entries map[string]Fn
}

// New returns an empty Catalog.
func New[Fn any]() *Catalog[Fn] {
	return &Catalog[Fn]{entries: make(map[string]Fn)}
}

// Register adds or replaces the entry for name.
func (c *Catalog[Fn]) Register(name string, fn Fn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = fn
}

// Get resolves name, or returns a WorkflowNotFoundError.
func (c *Catalog[Fn]) Get(name string) (Fn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.entries[name]
	if !ok {
		var zero Fn
		return zero, &fluxerrors.WorkflowNotFoundError{Name: name}
	}
	return fn, nil
}

// Names returns every registered workflow name.
func (c *Catalog[Fn]) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for n := range c.entries {
		names = append(names, n)
	}
	return names
}
