package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/integrated-assistant/mcp-go/internal/metrics"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

const defaultHealthCacheSize = 128

// Config holds resolver defaults. Per-backend timeouts in the wiring
// document override these.
type Config struct {
	// HealthTimeout bounds a single health probe.
	HealthTimeout time.Duration

	// InvokeTimeout bounds a single backend invocation.
	InvokeTimeout time.Duration

	// HealthCacheTTL is how long a probe result (healthy or not) is reused
	// before the backend is probed again. A short TTL lets recovered
	// backends be rediscovered quickly.
	HealthCacheTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HealthTimeout:  2 * time.Second,
		InvokeTimeout:  60 * time.Second,
		HealthCacheTTL: 10 * time.Second,
	}
}

// chainEntry pairs a backend spec from the wiring document with its adapter.
type chainEntry struct {
	spec    types.BackendSpec
	backend Backend
}

// healthEntry is a cached probe result with the timestamp it was taken.
type healthEntry struct {
	healthy   bool
	err       error
	checkedAt time.Time
}

// Resolver selects and invokes backends per capability in ascending
// priority order, falling through on failure. Health probe results are
// shared across concurrent resolutions via a TTL cache.
type Resolver struct {
	chains map[string][]chainEntry
	cfg    *Config
	health *lru.Cache[string, healthEntry]
	logger *slog.Logger
}

// newResolver builds a resolver from enabled chain entries. Chains are
// assumed to have passed registry validation; disabled backends must
// already be filtered out.
func newResolver(chains map[string][]chainEntry, cfg *Config, logger *slog.Logger) (*Resolver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[string, healthEntry](defaultHealthCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create health cache: %w", err)
	}

	for capName, entries := range chains {
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].spec.Priority < entries[j].spec.Priority
		})
		chains[capName] = entries
	}

	return &Resolver{
		chains: chains,
		cfg:    cfg,
		health: cache,
		logger: logger,
	}, nil
}

// NewFromSpecs builds a resolver from chain specs and a backend lookup keyed
// by backend name. Used by the registry after Build.
func NewFromSpecs(specs []types.ChainSpec, backends map[string]Backend, cfg *Config, logger *slog.Logger) (*Resolver, error) {
	chains := make(map[string][]chainEntry, len(specs))
	for _, chain := range specs {
		for _, bs := range chain.Backends {
			if !bs.Enabled {
				continue
			}
			b, ok := backends[bs.Name]
			if !ok {
				return nil, fmt.Errorf("backend %q referenced by capability %q is not registered", bs.Name, chain.Capability)
			}
			chains[chain.Capability] = append(chains[chain.Capability], chainEntry{spec: bs, backend: b})
		}
	}
	return newResolver(chains, cfg, logger)
}

// Capabilities lists the capabilities this resolver can serve.
func (r *Resolver) Capabilities() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke resolves the capability by walking its chain in priority order.
// Backend-local failures are accumulated, never propagated, unless the
// whole chain is exhausted.
func (r *Resolver) Invoke(ctx context.Context, capName string, input types.State) (*types.Result, error) {
	chain, ok := r.chains[capName]
	if !ok || len(chain) == 0 {
		return nil, &UnknownCapabilityError{Capability: capName}
	}

	var failures []BackendFailure
	for _, entry := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := r.checkHealth(ctx, entry); err != nil {
			failures = append(failures, BackendFailure{
				Backend: entry.spec.Name,
				Kind:    FailureUnhealthy,
				Message: err.Error(),
			})
			metrics.BackendInvocations.WithLabelValues(capName, entry.spec.Name, "unhealthy").Inc()
			r.logger.Warn("backend unhealthy, falling through",
				slog.String("capability", capName),
				slog.String("backend", entry.spec.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		output, err := r.invokeOne(ctx, entry, input)
		if err == nil {
			degraded := entry.spec.Degraded
			if degraded {
				metrics.DegradedResults.WithLabelValues(capName).Inc()
				r.logger.Warn("capability served by degraded fallback",
					slog.String("capability", capName),
					slog.String("backend", entry.spec.Name),
				)
			}
			return &types.Result{
				Output:   output,
				Backend:  entry.spec.Name,
				Degraded: degraded,
			}, nil
		}

		// A caller-level cancellation is not a backend failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := FailureInvocation
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FailureTimeout
			outcome = "timeout"
		}
		failures = append(failures, BackendFailure{
			Backend: entry.spec.Name,
			Kind:    kind,
			Message: err.Error(),
		})
		metrics.BackendInvocations.WithLabelValues(capName, entry.spec.Name, outcome).Inc()
		r.logger.Warn("backend invocation failed, falling through",
			slog.String("capability", capName),
			slog.String("backend", entry.spec.Name),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
	}

	return nil, &AllBackendsError{Capability: capName, Failures: failures}
}

// invokeOne runs a single backend invocation under its timeout.
func (r *Resolver) invokeOne(ctx context.Context, entry chainEntry, input types.State) (types.State, error) {
	timeout := entry.spec.InvokeTimeout
	if timeout <= 0 {
		timeout = r.cfg.InvokeTimeout
	}
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, err := entry.backend.Invoke(invokeCtx, input)
	metrics.BackendInvokeDuration.WithLabelValues(entry.spec.Capability, entry.spec.Name).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.BackendInvocations.WithLabelValues(entry.spec.Capability, entry.spec.Name, "ok").Inc()
	return output, nil
}

// checkHealth probes the backend, reusing a cached result within the TTL.
func (r *Resolver) checkHealth(ctx context.Context, entry chainEntry) error {
	name := entry.spec.Name
	if cached, ok := r.health.Get(name); ok && time.Since(cached.checkedAt) < r.cfg.HealthCacheTTL {
		metrics.HealthProbes.WithLabelValues(name, "cached").Inc()
		if cached.healthy {
			return nil
		}
		return cached.err
	}

	timeout := entry.spec.HealthTimeout
	if timeout <= 0 {
		timeout = r.cfg.HealthTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := entry.backend.Health(probeCtx)
	now := time.Now()
	if err != nil {
		err = fmt.Errorf("health check failed: %w", err)
		r.health.Add(name, healthEntry{healthy: false, err: err, checkedAt: now})
		metrics.HealthProbes.WithLabelValues(name, "unhealthy").Inc()
		return err
	}
	r.health.Add(name, healthEntry{healthy: true, checkedAt: now})
	metrics.HealthProbes.WithLabelValues(name, "healthy").Inc()
	return nil
}

// Snapshot reports the chain order and last known health per capability.
func (r *Resolver) Snapshot() map[string][]types.BackendHealth {
	out := make(map[string][]types.BackendHealth, len(r.chains))
	for capName, chain := range r.chains {
		statuses := make([]types.BackendHealth, 0, len(chain))
		for _, entry := range chain {
			status := types.BackendHealth{
				Name:     entry.spec.Name,
				Priority: entry.spec.Priority,
				Enabled:  entry.spec.Enabled,
				Degraded: entry.spec.Degraded,
			}
			if cached, ok := r.health.Get(entry.spec.Name); ok {
				healthy := cached.healthy
				checkedAt := cached.checkedAt
				status.Healthy = &healthy
				status.CheckedAt = &checkedAt
			}
			statuses = append(statuses, status)
		}
		out[capName] = statuses
	}
	return out
}
