// Package registry provides the process-wide catalog of backends,
// components and graphs. All registration happens through a Builder before
// Build; the built Catalog is immutable and swapped atomically on reload.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/integrated-assistant/mcp-go/internal/capability"
	"github.com/integrated-assistant/mcp-go/internal/metrics"
	"github.com/integrated-assistant/mcp-go/internal/pipeline"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// ConfigurationError aggregates every problem found during Build so a
// broken wiring document is reported in one pass. Fatal at startup.
type ConfigurationError struct {
	Problems []error
}

func (e *ConfigurationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is/As.
func (e *ConfigurationError) Unwrap() []error { return e.Problems }

// Builder collects registrations. Not safe for concurrent use; all
// registration happens during startup or inside Reload.
type Builder struct {
	backends    map[string]capability.Backend
	chains      map[string]types.ChainSpec
	components  map[string]pipeline.Component
	graphs      map[string]*types.GraphSpec
	resolverCfg *capability.Config
	logger      *slog.Logger
}

// NewBuilder creates an empty builder.
func NewBuilder(resolverCfg *capability.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		backends:    make(map[string]capability.Backend),
		chains:      make(map[string]types.ChainSpec),
		components:  make(map[string]pipeline.Component),
		graphs:      make(map[string]*types.GraphSpec),
		resolverCfg: resolverCfg,
		logger:      logger,
	}
}

// RegisterBackend adds a backend adapter. Names are global.
func (b *Builder) RegisterBackend(backend capability.Backend) error {
	name := backend.Name()
	if _, dup := b.backends[name]; dup {
		return fmt.Errorf("backend %q already registered", name)
	}
	b.backends[name] = backend
	return nil
}

// RegisterChain adds the fallback chain for one capability.
func (b *Builder) RegisterChain(spec types.ChainSpec) error {
	if _, dup := b.chains[spec.Capability]; dup {
		return fmt.Errorf("capability %q already has a chain", spec.Capability)
	}
	b.chains[spec.Capability] = spec
	return nil
}

// RegisterComponent adds a named pipeline component.
func (b *Builder) RegisterComponent(name string, c pipeline.Component) error {
	if _, dup := b.components[name]; dup {
		return fmt.Errorf("component %q already registered", name)
	}
	b.components[name] = c
	return nil
}

// RegisterGraph adds a graph definition. Validation happens at Build.
func (b *Builder) RegisterGraph(spec types.GraphSpec) error {
	if _, dup := b.graphs[spec.Name]; dup {
		return fmt.Errorf("graph %q already registered", spec.Name)
	}
	b.graphs[spec.Name] = &spec
	return nil
}

// Build validates everything registered and produces an immutable Catalog.
// Any problem makes the whole build fail; the process must not serve
// requests with a partially valid catalog.
func (b *Builder) Build() (*Catalog, error) {
	var problems []error

	for capName, chain := range b.chains {
		problems = append(problems, b.validateChain(capName, chain)...)
	}

	resolver, err := capability.NewFromSpecs(chainList(b.chains), b.backends, b.resolverCfg, b.logger)
	if err != nil {
		problems = append(problems, err)
	}

	graphs := make(map[string]*pipeline.Graph, len(b.graphs))
	for name, spec := range b.graphs {
		g, err := pipeline.Build(spec, b.components)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		graphs[name] = g
	}

	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}

	return &Catalog{
		resolver:   resolver,
		graphs:     graphs,
		components: b.components,
	}, nil
}

func (b *Builder) validateChain(capName string, chain types.ChainSpec) []error {
	var problems []error

	seen := make(map[int]string)
	enabled := 0
	for _, bs := range chain.Backends {
		if bs.Capability != capName {
			problems = append(problems, fmt.Errorf("backend %q declares capability %q but is listed under %q", bs.Name, bs.Capability, capName))
		}
		if prev, dup := seen[bs.Priority]; dup {
			problems = append(problems, fmt.Errorf("capability %q: backends %q and %q share priority %d", capName, prev, bs.Name, bs.Priority))
		}
		seen[bs.Priority] = bs.Name
		if !bs.Enabled {
			continue
		}
		enabled++
		if _, ok := b.backends[bs.Name]; !ok {
			problems = append(problems, fmt.Errorf("capability %q references unregistered backend %q", capName, bs.Name))
		}
	}

	if enabled == 0 && !chain.Optional {
		problems = append(problems, fmt.Errorf("capability %q has no enabled backend and is not marked optional", capName))
	}
	return problems
}

func chainList(chains map[string]types.ChainSpec) []types.ChainSpec {
	out := make([]types.ChainSpec, 0, len(chains))
	for _, c := range chains {
		out = append(out, c)
	}
	return out
}

// Executor is a runnable task kind resolved from the catalog.
type Executor func(ctx context.Context, payload types.State) (types.State, error)

// Catalog is the immutable result of a successful Build.
type Catalog struct {
	resolver   *capability.Resolver
	graphs     map[string]*pipeline.Graph
	components map[string]pipeline.Component
}

// Resolver returns the capability resolver.
func (c *Catalog) Resolver() *capability.Resolver { return c.resolver }

// Kinds lists every task kind the catalog can execute: graph names first,
// then component names, then raw capability names.
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.graphs)+len(c.components))
	for name := range c.graphs {
		kinds = append(kinds, name)
	}
	for name := range c.components {
		kinds = append(kinds, name)
	}
	kinds = append(kinds, c.resolver.Capabilities()...)
	sort.Strings(kinds)
	return kinds
}

// Executor resolves a task kind to something runnable. Lookup order:
// graph, component, capability. Returns false for unknown kinds.
func (c *Catalog) Executor(kind string) (Executor, bool) {
	if g, ok := c.graphs[kind]; ok {
		return g.Execute, true
	}
	if comp, ok := c.components[kind]; ok {
		return comp.Run, true
	}
	for _, capName := range c.resolver.Capabilities() {
		if capName != kind {
			continue
		}
		return func(ctx context.Context, payload types.State) (types.State, error) {
			result, err := c.resolver.Invoke(ctx, kind, payload)
			if err != nil {
				return nil, err
			}
			out := result.Output.Clone()
			out["backend"] = result.Backend
			if result.Degraded {
				out["degraded"] = true
			}
			return out, nil
		}, true
	}
	return nil, false
}

// Registry holds the live catalog behind an atomic pointer. In-flight
// executions keep using the catalog they started with; Reload swaps the
// pointer only after a clean build.
type Registry struct {
	current atomic.Pointer[Catalog]
	rebuild func() (*Catalog, error)
	logger  *slog.Logger
}

// NewRegistry wraps an initial catalog. rebuild, if non-nil, re-reads
// configuration and constructs a fresh catalog for Reload.
func NewRegistry(initial *Catalog, rebuild func() (*Catalog, error), logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{rebuild: rebuild, logger: logger}
	r.current.Store(initial)
	return r
}

// Catalog returns the live catalog.
func (r *Registry) Catalog() *Catalog {
	return r.current.Load()
}

// Reload builds a new catalog and atomically swaps it in. On build failure
// the old catalog stays live.
func (r *Registry) Reload() error {
	if r.rebuild == nil {
		return fmt.Errorf("reload not supported: no rebuild function configured")
	}
	catalog, err := r.rebuild()
	if err != nil {
		metrics.RegistryReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("rebuild catalog: %w", err)
	}
	r.current.Store(catalog)
	metrics.RegistryReloads.WithLabelValues("success").Inc()
	r.logger.Info("catalog reloaded", slog.Int("kinds", len(catalog.Kinds())))
	return nil
}
