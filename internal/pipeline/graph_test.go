package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// fakeComponent writes a fixed update and declares its produced keys.
type fakeComponent struct {
	update types.State
	keys   []string
	err    error
	calls  int
}

func (f *fakeComponent) Run(ctx context.Context, state types.State) (types.State, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.update.Clone(), nil
}

func (f *fakeComponent) ProducedKeys() []string { return f.keys }

func TestBuild_ValidationErrors(t *testing.T) {
	components := map[string]Component{
		"noop": &fakeComponent{update: types.State{}, keys: []string{}},
	}

	tests := []struct {
		name    string
		spec    types.GraphSpec
		wantMsg string
	}{
		{
			name:    "missing entry",
			spec:    types.GraphSpec{Name: "g", Nodes: []types.NodeSpec{{Name: "a", Component: "noop"}}},
			wantMsg: "entry node is required",
		},
		{
			name:    "no nodes",
			spec:    types.GraphSpec{Name: "g", Entry: "a"},
			wantMsg: "graph has no nodes",
		},
		{
			name: "unknown component",
			spec: types.GraphSpec{Name: "g", Entry: "a", Nodes: []types.NodeSpec{
				{Name: "a", Component: "missing"},
			}},
			wantMsg: "unknown component",
		},
		{
			name: "entry does not exist",
			spec: types.GraphSpec{Name: "g", Entry: "b", Nodes: []types.NodeSpec{
				{Name: "a", Component: "noop"},
			}},
			wantMsg: "does not exist",
		},
		{
			name: "dangling edge target",
			spec: types.GraphSpec{Name: "g", Entry: "a", Nodes: []types.NodeSpec{
				{Name: "a", Component: "noop", Edges: []types.EdgeSpec{{Target: "ghost"}}},
			}},
			wantMsg: "unknown node",
		},
		{
			name: "unreachable node",
			spec: types.GraphSpec{Name: "g", Entry: "a", Nodes: []types.NodeSpec{
				{Name: "a", Component: "noop"},
				{Name: "b", Component: "noop"},
			}},
			wantMsg: "unreachable",
		},
		{
			name: "bad predicate syntax",
			spec: types.GraphSpec{Name: "g", Entry: "a", Nodes: []types.NodeSpec{
				{Name: "a", Component: "noop", Edges: []types.EdgeSpec{{When: "x ===", Target: "terminal"}}},
			}},
			wantMsg: "edge 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(&tt.spec, components)
			if err == nil {
				t.Fatalf("expected build error containing %q, got nil", tt.wantMsg)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestBuild_CycleDetection(t *testing.T) {
	components := map[string]Component{
		"noop": &fakeComponent{update: types.State{}, keys: []string{}},
	}
	spec := types.GraphSpec{
		Name:  "loop",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "noop", Edges: []types.EdgeSpec{{Target: "b"}}},
			{Name: "b", Component: "noop", Edges: []types.EdgeSpec{{Target: "c"}}},
			{Name: "c", Component: "noop", Edges: []types.EdgeSpec{{Target: "a"}}},
		},
	}

	_, err := Build(&spec, components)
	var cerr *CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected CycleError, got %T: %v", err, err)
	}
	if len(cerr.Nodes) < 4 {
		t.Errorf("cycle path too short: %v", cerr.Nodes)
	}
	if cerr.Nodes[0] != cerr.Nodes[len(cerr.Nodes)-1] {
		t.Errorf("cycle path should close on itself: %v", cerr.Nodes)
	}
}

func TestBuild_PredicateKeyCheck(t *testing.T) {
	components := map[string]Component{
		"producer": &fakeComponent{update: types.State{"ready": true}, keys: []string{"ready"}},
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "producer", Edges: []types.EdgeSpec{
				{When: "missing_key", Target: "terminal"},
			}},
		},
	}

	_, err := Build(&spec, components)
	if err == nil {
		t.Fatal("expected validation error for unresolvable predicate key")
	}

	// The same predicate passes when the key arrives in the entry payload.
	spec.InputKeys = []string{"missing_key"}
	if _, err := Build(&spec, components); err != nil {
		t.Fatalf("expected clean build with declared input key, got %v", err)
	}
}

func TestBuild_UndeclaredComponentSkipsKeyCheck(t *testing.T) {
	// ComponentFunc does not implement KeyProducer, so the static predicate
	// check must not reject keys it cannot reason about.
	components := map[string]Component{
		"opaque": ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{"anything": 1}, nil
		}),
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "opaque", Edges: []types.EdgeSpec{
				{When: "anything > 0", Target: "terminal"},
			}},
		},
	}

	if _, err := Build(&spec, components); err != nil {
		t.Fatalf("expected clean build, got %v", err)
	}
}

func TestExecute_BranchTraversal(t *testing.T) {
	tests := []struct {
		name        string
		hasActions  bool
		wantDrafted bool
	}{
		{name: "actions branch", hasActions: true, wantDrafted: true},
		{name: "no actions branch", hasActions: false, wantDrafted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := &fakeComponent{update: types.State{"draft": "text"}, keys: []string{"draft"}}
			components := map[string]Component{
				"extract": &fakeComponent{
					update: types.State{"has_action_items": tt.hasActions},
					keys:   []string{"has_action_items"},
				},
				"draft": draft,
				"index": &fakeComponent{update: types.State{"indexed": true}, keys: []string{"indexed"}},
			}
			spec := types.GraphSpec{
				Name:  "meeting",
				Entry: "extract",
				Nodes: []types.NodeSpec{
					{Name: "extract", Component: "extract", Edges: []types.EdgeSpec{
						{When: "has_action_items", Target: "draft"},
						{Target: "index"},
					}},
					{Name: "draft", Component: "draft", Edges: []types.EdgeSpec{{Target: "index"}}},
					{Name: "index", Component: "index", Edges: []types.EdgeSpec{{Target: "terminal"}}},
				},
			}

			g, err := Build(&spec, components)
			if err != nil {
				t.Fatalf("build: %v", err)
			}

			state, err := g.Execute(context.Background(), nil)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}

			if got := draft.calls > 0; got != tt.wantDrafted {
				t.Errorf("draft called = %v, want %v", got, tt.wantDrafted)
			}
			if !state.Bool("indexed") {
				t.Error("expected index node to run on both branches")
			}
		})
	}
}

func TestExecute_LastWriterWins(t *testing.T) {
	components := map[string]Component{
		"first":  &fakeComponent{update: types.State{"value": "first", "only_first": 1}, keys: []string{"value", "only_first"}},
		"second": &fakeComponent{update: types.State{"value": "second"}, keys: []string{"value"}},
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "first", Edges: []types.EdgeSpec{{Target: "b"}}},
			{Name: "b", Component: "second"},
		},
	}

	g, err := Build(&spec, components)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	state, err := g.Execute(context.Background(), types.State{"value": "payload"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := state.String("value"); got != "second" {
		t.Errorf("value = %q, want %q", got, "second")
	}
	if _, ok := state["only_first"]; !ok {
		t.Error("untouched key from first node should survive the second merge")
	}
}

func TestExecute_NoMatchingEdge(t *testing.T) {
	components := map[string]Component{
		"noop": &fakeComponent{update: types.State{"flag": false}, keys: []string{"flag"}},
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "noop", Edges: []types.EdgeSpec{
				{When: "flag", Target: "terminal"},
			}},
		},
	}

	g, err := Build(&spec, components)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = g.Execute(context.Background(), nil)
	var nerr *NoMatchingEdgeError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NoMatchingEdgeError, got %T: %v", err, err)
	}
	if nerr.Node != "a" {
		t.Errorf("error node = %q, want %q", nerr.Node, "a")
	}
}

func TestExecute_MissingStateKey(t *testing.T) {
	// The opaque component disables the static check, so the missing key
	// surfaces at runtime instead.
	components := map[string]Component{
		"opaque": ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			return types.State{}, nil
		}),
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "opaque", Edges: []types.EdgeSpec{
				{When: "never_written > 2", Target: "terminal"},
			}},
		},
	}

	g, err := Build(&spec, components)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = g.Execute(context.Background(), nil)
	var merr *MissingStateKeyError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MissingStateKeyError, got %T: %v", err, err)
	}
}

func TestExecute_NodeErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("backend exploded")
	components := map[string]Component{
		"boom": &fakeComponent{err: cause, keys: []string{}},
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{{Name: "a", Component: "boom"}},
	}

	g, err := Build(&spec, components)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = g.Execute(context.Background(), nil)
	var nerr *NodeError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NodeError, got %T: %v", err, err)
	}
	if !errors.Is(err, cause) {
		t.Error("NodeError should unwrap to the component error")
	}
}

func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	second := &fakeComponent{update: types.State{}, keys: []string{}}
	components := map[string]Component{
		"canceller": ComponentFunc(func(ctx context.Context, state types.State) (types.State, error) {
			cancel()
			return types.State{}, nil
		}),
		"second": second,
	}
	spec := types.GraphSpec{
		Name:  "g",
		Entry: "a",
		Nodes: []types.NodeSpec{
			{Name: "a", Component: "canceller", Edges: []types.EdgeSpec{{Target: "b"}}},
			{Name: "b", Component: "second"},
		},
	}

	g, err := Build(&spec, components)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = g.Execute(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if second.calls != 0 {
		t.Error("cancellation at the node boundary should stop before the next node")
	}
}
