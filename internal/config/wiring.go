package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/integrated-assistant/mcp-go/internal/validator"
	"github.com/integrated-assistant/mcp-go/pkg/types"
)

// Wiring is the decoded wiring document: which backends serve each
// capability, in what order, and which graphs the daemon offers.
type Wiring struct {
	Chains []types.ChainSpec `json:"chains"`
	Graphs []types.GraphSpec `json:"graphs"`
}

// LoadWiring reads and validates the wiring document at path. An empty
// path returns the built-in default wiring.
func LoadWiring(path string) (*Wiring, error) {
	var data []byte
	if path == "" {
		data = []byte(defaultWiringJSON)
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read wiring file: %w", err)
		}
	}

	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("create wiring validator: %w", err)
	}
	if result := v.ValidateWiringJSON(data); !result.Valid {
		return nil, fmt.Errorf("invalid wiring document: %v", result.Errors)
	}

	var wiring Wiring
	if err := json.Unmarshal(data, &wiring); err != nil {
		return nil, fmt.Errorf("decode wiring document: %w", err)
	}
	return &wiring, nil
}

// defaultWiringJSON ships the standard chains and the meeting and email
// pipelines. Hosted providers sit in front; mocks close every chain so a
// fully offline machine still produces (degraded) results.
const defaultWiringJSON = `{
  "chains": [
    {
      "capability": "transcribe-audio",
      "backends": [
        {"name": "whisper-http", "capability": "transcribe-audio", "priority": 0, "enabled": true, "driver": "whisper-http"},
        {"name": "mock-transcribe", "capability": "transcribe-audio", "priority": 10, "enabled": true, "degraded": true, "driver": "mock"}
      ]
    },
    {
      "capability": "generate-text",
      "backends": [
        {"name": "anthropic", "capability": "generate-text", "priority": 0, "enabled": true, "driver": "anthropic"},
        {"name": "openai", "capability": "generate-text", "priority": 1, "enabled": true, "driver": "openai"},
        {"name": "local-llm", "capability": "generate-text", "priority": 2, "enabled": true, "driver": "local-llm"},
        {"name": "mock-generate", "capability": "generate-text", "priority": 10, "enabled": true, "degraded": true, "driver": "mock"}
      ]
    },
    {
      "capability": "vector-search",
      "backends": [
        {"name": "chromem-search", "capability": "vector-search", "priority": 0, "enabled": true, "driver": "chromem"},
        {"name": "mock-search", "capability": "vector-search", "priority": 10, "enabled": true, "degraded": true, "driver": "mock"}
      ]
    },
    {
      "capability": "vector-index",
      "backends": [
        {"name": "chromem-index", "capability": "vector-index", "priority": 0, "enabled": true, "driver": "chromem"},
        {"name": "mock-index", "capability": "vector-index", "priority": 10, "enabled": true, "degraded": true, "driver": "mock"}
      ]
    },
    {
      "capability": "mail-sync",
      "optional": true,
      "backends": [
        {"name": "gmail", "capability": "mail-sync", "priority": 0, "enabled": false, "driver": "gmail"},
        {"name": "mock-mail", "capability": "mail-sync", "priority": 10, "enabled": true, "degraded": true, "driver": "mock"}
      ]
    }
  ],
  "graphs": [
    {
      "name": "meeting",
      "description": "Transcribe a recording, summarize it, extract action items and draft a follow-up when there are any.",
      "entry": "transcribe",
      "input_keys": ["audio_path", "language"],
      "nodes": [
        {"name": "transcribe", "component": "transcribe", "edges": [{"target": "summarize"}]},
        {"name": "summarize", "component": "summarize", "edges": [{"target": "extract_actions"}]},
        {"name": "extract_actions", "component": "extract_actions", "edges": [
          {"when": "has_action_items", "target": "retrieve"},
          {"target": "index_transcript"}
        ]},
        {"name": "retrieve", "component": "retrieve", "edges": [{"target": "draft_followup"}]},
        {"name": "draft_followup", "component": "draft_followup", "edges": [{"target": "index_transcript"}]},
        {"name": "index_transcript", "component": "index_transcript", "edges": [{"target": "terminal"}]}
      ]
    },
    {
      "name": "email",
      "description": "Fetch recent mail, summarize it and index the digest.",
      "entry": "mail_fetch",
      "input_keys": ["query", "max_results"],
      "nodes": [
        {"name": "mail_fetch", "component": "mail_fetch", "edges": [
          {"when": "message_count > 0", "target": "summarize"},
          {"target": "terminal"}
        ]},
        {"name": "summarize", "component": "summarize", "edges": [{"target": "index_transcript"}]},
        {"name": "index_transcript", "component": "index_transcript", "edges": [{"target": "terminal"}]}
      ]
    }
  ]
}`
