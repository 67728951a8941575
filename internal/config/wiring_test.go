package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/integrated-assistant/mcp-go/pkg/types"
)

func TestLoadWiring_Default(t *testing.T) {
	wiring, err := LoadWiring("")
	if err != nil {
		t.Fatalf("load default wiring: %v", err)
	}

	caps := map[string]types.ChainSpec{}
	for _, chain := range wiring.Chains {
		caps[chain.Capability] = chain
	}
	for _, want := range []string{
		types.CapabilityTranscribe,
		types.CapabilityGenerate,
		types.CapabilitySearch,
		types.CapabilityIndex,
		types.CapabilityMailSync,
	} {
		chain, ok := caps[want]
		if !ok {
			t.Errorf("default wiring missing chain for %q", want)
			continue
		}
		// Every chain ends in a degraded mock so an offline machine still
		// produces results.
		last := chain.Backends[len(chain.Backends)-1]
		if last.Driver != "mock" || !last.Degraded {
			t.Errorf("chain %q does not end in a degraded mock: %+v", want, last)
		}
	}

	graphs := map[string]bool{}
	for _, g := range wiring.Graphs {
		graphs[g.Name] = true
	}
	if !graphs["meeting"] || !graphs["email"] {
		t.Errorf("default wiring missing built-in graphs: %v", graphs)
	}
}

func TestLoadWiring_File(t *testing.T) {
	doc := `{
	  "chains": [
	    {
	      "capability": "generate-text",
	      "backends": [
	        {"name": "local-llm", "capability": "generate-text", "priority": 0, "enabled": true, "driver": "local-llm"}
	      ]
	    }
	  ]
	}`
	path := filepath.Join(t.TempDir(), "wiring.json")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write wiring: %v", err)
	}

	wiring, err := LoadWiring(path)
	if err != nil {
		t.Fatalf("load wiring: %v", err)
	}
	if len(wiring.Chains) != 1 || wiring.Chains[0].Capability != "generate-text" {
		t.Errorf("unexpected wiring: %+v", wiring)
	}
}

func TestLoadWiring_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown driver",
			doc: `{"chains": [{"capability": "generate-text", "backends": [
				{"name": "x", "capability": "generate-text", "priority": 0, "enabled": true, "driver": "carrier-pigeon"}
			]}]}`,
		},
		{
			name: "negative priority",
			doc: `{"chains": [{"capability": "generate-text", "backends": [
				{"name": "x", "capability": "generate-text", "priority": -1, "enabled": true, "driver": "mock"}
			]}]}`,
		},
		{
			name: "graph without entry",
			doc:  `{"graphs": [{"name": "g", "nodes": [{"name": "a", "component": "noop"}]}]}`,
		},
		{
			name: "not json",
			doc:  `chains: []`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "wiring.json")
			if err := os.WriteFile(path, []byte(tt.doc), 0o600); err != nil {
				t.Fatalf("write wiring: %v", err)
			}
			if _, err := LoadWiring(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MCP_MAX_WORKERS", "8")
	t.Setenv("MCP_TASKSTORE", "redis")
	t.Setenv("MCP_SYNC_TIMEOUT", "30s")

	cfg := Load()
	if cfg.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.MaxWorkers)
	}
	if cfg.TaskStoreType != "redis" {
		t.Errorf("TaskStoreType = %q, want redis", cfg.TaskStoreType)
	}
	if cfg.SyncTimeout.Seconds() != 30 {
		t.Errorf("SyncTimeout = %v, want 30s", cfg.SyncTimeout)
	}
}
