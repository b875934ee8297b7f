// Package client is the public surface of the engine, mirroring the
// teacher's client.go: a thin wrapper that assembles internal/config,
// internal/store, internal/catalog, and internal/workflow behind a small
// API rather than exposing those packages directly.
package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/pborman/uuid"
	"go.uber.org/zap"

	"go.fluxrun.dev/flux/internal/admission"
	"go.fluxrun.dev/flux/internal/cache"
	"go.fluxrun.dev/flux/internal/cachebackend"
	"go.fluxrun.dev/flux/internal/catalog"
	"go.fluxrun.dev/flux/internal/config"
	"go.fluxrun.dev/flux/internal/event"
	"go.fluxrun.dev/flux/internal/secretmanager"
	"go.fluxrun.dev/flux/internal/store"
	"go.fluxrun.dev/flux/internal/store/memory"
	"go.fluxrun.dev/flux/internal/store/sqlite"
	"go.fluxrun.dev/flux/internal/telemetry"
	"go.fluxrun.dev/flux/internal/workflow"
)

// Client runs and inspects workflow executions against one configured
// store, catalog, and dependency set (spec §6's "programmatic client"
// surface, supplemented by the CLI/HTTP front ends in cmd/ and httpapi/).
type Client struct {
	cfg     *config.Config
	store   store.Store
	catalog *catalog.Catalog[*workflow.Workflow]
	deps    workflow.Deps
	logger  *zap.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithLogger overrides the default no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger; c.deps.Logger = logger }
}

// WithTelemetry wires tel's logger, metrics scope, and tracer down into
// every workflow run this Client drives, so the Replay Scheduler's
// per-event counters, commit logging, and per-task-attempt spans (spec
// §AMBIENT) land on the same telemetry the HTTP front end reports through.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Client) {
		c.logger = tel.Logger
		c.deps.Logger = tel.Logger
		c.deps.Scope = tel.Scope
		c.deps.Tracer = tel.Tracer
	}
}

// WithSecretManager configures the secret manager tasks draw from.
func WithSecretManager(sm secretmanager.SecretManager) Option {
	return func(c *Client) { c.deps.Secrets = sm }
}

// WithAdmission configures the resource admission controller gating
// parallel task dispatch.
func WithAdmission(ctrl *admission.Controller) Option {
	return func(c *Client) { c.deps.Admission = ctrl }
}

// New builds a Client from cfg: it opens the Context Store named by
// cfg.DatabaseURL ("memory://", "sqlite://<path>", or a bare sqlite file
// path) and the cache
// backend named by cfg.Cache.Backend ("memory" or "redis").
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: opening store: %w", err)
	}

	backend, err := openCacheBackend(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("client: opening cache backend: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		store:   st,
		catalog: catalog.New[*workflow.Workflow](),
		deps: workflow.Deps{
			Store: st,
			Cache: cache.NewManager(backend),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func openStore(databaseURL string) (store.Store, error) {
	if databaseURL == "" || databaseURL == "memory://" {
		return memory.New(), nil
	}
	return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
}

func openCacheBackend(cfg config.Cache) (cachebackend.Backend, error) {
	switch cfg.Backend {
	case "redis":
		return cachebackend.NewRedis(cfg.RedisAddr, cfg.RedisDB), nil
	default:
		return cachebackend.NewMemory(), nil
	}
}

// Register adds wf to the catalog under its own name.
func (c *Client) Register(wf *workflow.Workflow) {
	c.catalog.Register(wf.Name, wf)
}

// Workflows lists every registered workflow name.
func (c *Client) Workflows() []string {
	return c.catalog.Names()
}

// Start begins a new execution of the named workflow with input under a
// freshly minted execution_id and returns the resulting ExecutionContext
// once Run returns (spec §6.1's POST
// /{workflow_name} route; this engine runs workflows to completion or
// pause in the calling goroutine, matching spec §9's "do not build a
// separate out-of-process task queue" guidance).
func (c *Client) Start(ctx context.Context, name string, input any) (*event.Context, error) {
	wf, err := c.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return workflow.Run(ctx, c.store, c.deps, wf, workflow.RunOptions{Input: input}, uuid.New)
}

// Resume continues a paused or finished execution by execution_id. If
// input is non-nil it replaces the stored input for this resumption (spec
// §4.2.5's "pause with input").
func (c *Client) Resume(ctx context.Context, name, executionID string, input any) (*event.Context, error) {
	wf, err := c.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return workflow.Run(ctx, c.store, c.deps, wf, workflow.RunOptions{ExecutionID: executionID, Input: input}, uuid.New)
}

// Replay re-derives executionID's event log from the start as a
// determinism check (spec §8.1's Replay preservation property law) rather
// than returning the already-stored terminal result.
func (c *Client) Replay(ctx context.Context, name, executionID string) (*event.Context, error) {
	wf, err := c.catalog.Get(name)
	if err != nil {
		return nil, err
	}
	return workflow.Run(ctx, c.store, c.deps, wf, workflow.RunOptions{ExecutionID: executionID, ForceReplay: true}, uuid.New)
}

// Inspect returns the stored ExecutionContext for executionID without
// running anything (spec §6.1's GET /inspect/{execution_id} route).
func (c *Client) Inspect(ctx context.Context, executionID string) (*event.Context, error) {
	return c.store.Get(ctx, executionID)
}

// Close releases the underlying store's resources.
func (c *Client) Close() error {
	return c.store.Close()
}
