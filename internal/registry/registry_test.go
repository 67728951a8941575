package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/integrated-assistant/mcp-go/internal/capability"
	"github.com/integrated-assistant/mcp-go/internal/pipeline"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

type stubBackend struct {
	name       string
	capability string
}

func (s *stubBackend) Name() string                     { return s.name }
func (s *stubBackend) Capability() string               { return s.capability }
func (s *stubBackend) Health(ctx context.Context) error { return nil }
func (s *stubBackend) Invoke(ctx context.Context, input types.State) (types.State, error) {
	return types.State{"from": s.name}, nil
}

var _ capability.Backend = (*stubBackend)(nil)

func noopComponent() pipeline.Component {
	return pipeline.ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
		return types.State{}, nil
	})
}

func TestBuild_AggregatesAllProblems(t *testing.T) {
	b := NewBuilder(nil, nil)

	// Chain referencing an unregistered backend, with a duplicate priority.
	err := b.RegisterChain(types.ChainSpec{
		Capability: "generate-text",
		Backends: []types.BackendSpec{
			{Name: "ghost", Capability: "generate-text", Priority: 0, Enabled: true, Driver: "mock"},
			{Name: "ghost2", Capability: "generate-text", Priority: 0, Enabled: true, Driver: "mock"},
		},
	})
	if err != nil {
		t.Fatalf("register chain: %v", err)
	}

	// Graph referencing an unknown component.
	err = b.RegisterGraph(types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{{Name: "a", Component: "missing"}},
	})
	if err != nil {
		t.Fatalf("register graph: %v", err)
	}

	_, err = b.Build()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
	}
	// duplicate priority + two unregistered backends + resolver + graph
	if len(cfgErr.Problems) < 3 {
		t.Errorf("problems = %d, want at least 3: %v", len(cfgErr.Problems), cfgErr)
	}
}

func TestBuild_RejectsEmptyRequiredChain(t *testing.T) {
	b := NewBuilder(nil, nil)
	if err := b.RegisterChain(types.ChainSpec{
		Capability: "transcribe-audio",
		Backends: []types.BackendSpec{
			{Name: "off", Capability: "transcribe-audio", Priority: 0, Enabled: false, Driver: "mock"},
		},
	}); err != nil {
		t.Fatalf("register chain: %v", err)
	}

	_, err := b.Build()
	if err == nil {
		t.Fatal("expected build failure for chain with no enabled backends")
	}

	// Optional chains may be empty.
	b2 := NewBuilder(nil, nil)
	if err := b2.RegisterChain(types.ChainSpec{
		Capability: "mail-sync",
		Optional:   true,
		Backends: []types.BackendSpec{
			{Name: "off", Capability: "mail-sync", Priority: 0, Enabled: false, Driver: "mock"},
		},
	}); err != nil {
		t.Fatalf("register optional chain: %v", err)
	}
	if _, err := b2.Build(); err != nil {
		t.Fatalf("optional empty chain should build, got %v", err)
	}
}

func TestBuilder_RejectsDuplicates(t *testing.T) {
	b := NewBuilder(nil, nil)

	if err := b.RegisterBackend(&stubBackend{name: "x", capability: "generate-text"}); err != nil {
		t.Fatalf("register backend: %v", err)
	}
	if err := b.RegisterBackend(&stubBackend{name: "x", capability: "generate-text"}); err == nil {
		t.Error("expected duplicate backend registration to fail")
	}

	if err := b.RegisterComponent("c", noopComponent()); err != nil {
		t.Fatalf("register component: %v", err)
	}
	if err := b.RegisterComponent("c", noopComponent()); err == nil {
		t.Error("expected duplicate component registration to fail")
	}
}

func TestCatalog_ExecutorLookup(t *testing.T) {
	b := NewBuilder(nil, nil)

	if err := b.RegisterBackend(&stubBackend{name: "gen", capability: "generate-text"}); err != nil {
		t.Fatalf("register backend: %v", err)
	}
	if err := b.RegisterChain(types.ChainSpec{
		Capability: "generate-text",
		Backends: []types.BackendSpec{
			{Name: "gen", Capability: "generate-text", Priority: 0, Enabled: true, Driver: "mock"},
		},
	}); err != nil {
		t.Fatalf("register chain: %v", err)
	}
	if err := b.RegisterComponent("comp", noopComponent()); err != nil {
		t.Fatalf("register component: %v", err)
	}
	if err := b.RegisterGraph(types.GraphSpec{
		Name:  "graph",
		Entry: "a",
		Nodes: []types.NodeSpec{{Name: "a", Component: "comp"}},
	}); err != nil {
		t.Fatalf("register graph: %v", err)
	}

	catalog, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, kind := range []string{"graph", "comp", "generate-text"} {
		if _, ok := catalog.Executor(kind); !ok {
			t.Errorf("expected executor for kind %q", kind)
		}
	}
	if _, ok := catalog.Executor("nope"); ok {
		t.Error("unexpected executor for unknown kind")
	}

	// The capability executor surfaces the serving backend.
	exec, _ := catalog.Executor("generate-text")
	out, err := exec(context.Background(), types.State{})
	if err != nil {
		t.Fatalf("capability executor: %v", err)
	}
	if out.String("backend") != "gen" {
		t.Errorf("backend = %q, want gen", out.String("backend"))
	}
}

func TestRegistry_ReloadSwapsOnlyOnSuccess(t *testing.T) {
	build := func(fail bool) func() (*Catalog, error) {
		return func() (*Catalog, error) {
			if fail {
				return nil, fmt.Errorf("broken wiring")
			}
			b := NewBuilder(nil, nil)
			if err := b.RegisterComponent("comp", noopComponent()); err != nil {
				return nil, err
			}
			return b.Build()
		}
	}

	initial, err := build(false)()
	if err != nil {
		t.Fatalf("initial build: %v", err)
	}

	failNext := true
	reg := NewRegistry(initial, func() (*Catalog, error) {
		return build(failNext)()
	}, nil)

	if err := reg.Reload(); err == nil {
		t.Fatal("expected reload failure")
	}
	if reg.Catalog() != initial {
		t.Error("failed reload must keep the previous catalog live")
	}

	failNext = false
	if err := reg.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reg.Catalog() == initial {
		t.Error("successful reload must swap the catalog")
	}
}

func TestRegistry_ReloadWithoutRebuildFails(t *testing.T) {
	b := NewBuilder(nil, nil)
	catalog, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	reg := NewRegistry(catalog, nil, nil)
	if err := reg.Reload(); err == nil {
		t.Error("expected reload to fail without a rebuild function")
	}
}
