// Package validator provides JSON schema validation for the wiring
// document (capability chains and graph definitions).
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates wiring documents before they are decoded.
type Validator struct {
	wiringSchema *jsonschema.Schema
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationResult holds the result of a validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// New creates a new validator with the embedded schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("wiring.json", strings.NewReader(wiringSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add wiring schema: %w", err)
	}

	wiringSchema, err := compiler.Compile("wiring.json")
	if err != nil {
		return nil, fmt.Errorf("compile wiring schema: %w", err)
	}

	return &Validator{wiringSchema: wiringSchema}, nil
}

// ValidateWiring validates a decoded wiring document.
func (v *Validator) ValidateWiring(doc map[string]interface{}) *ValidationResult {
	return v.validate(v.wiringSchema, doc)
}

// ValidateWiringJSON validates a JSON-encoded wiring document.
func (v *Validator) ValidateWiringJSON(data []byte) *ValidationResult {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Path: "$", Message: fmt.Sprintf("invalid JSON: %v", err)},
			},
		}
	}
	return v.ValidateWiring(doc)
}

// validate runs schema validation and converts errors.
func (v *Validator) validate(schema *jsonschema.Schema, data interface{}) *ValidationResult {
	err := schema.Validate(data)
	if err == nil {
		return &ValidationResult{Valid: true}
	}

	result := &ValidationResult{Valid: false}

	if verr, ok := err.(*jsonschema.ValidationError); ok {
		result.Errors = extractErrors(verr)
	} else {
		result.Errors = []ValidationError{
			{Path: "$", Message: err.Error()},
		}
	}

	return result
}

// extractErrors recursively extracts validation errors.
func extractErrors(verr *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	if verr.Message != "" {
		errors = append(errors, ValidationError{
			Path:    verr.InstanceLocation,
			Message: verr.Message,
		})
	}

	for _, cause := range verr.Causes {
		errors = append(errors, extractErrors(cause)...)
	}

	return errors
}

// Embedded JSON schema

const wiringSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "wiring.json",
  "title": "Wiring Document",
  "description": "Capability chains and graph definitions",
  "type": "object",
  "properties": {
    "chains": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["capability", "backends"],
        "properties": {
          "capability": {
            "type": "string",
            "pattern": "^[a-z][a-z0-9-]*$",
            "description": "Capability name"
          },
          "optional": {
            "type": "boolean",
            "description": "Allow zero enabled backends"
          },
          "backends": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name", "capability", "priority", "driver"],
              "properties": {
                "name": {
                  "type": "string",
                  "pattern": "^[a-z][a-z0-9._-]*$",
                  "description": "Unique backend name"
                },
                "capability": {"type": "string"},
                "priority": {
                  "type": "integer",
                  "minimum": 0,
                  "description": "Lower tries first; unique within a chain"
                },
                "enabled": {"type": "boolean"},
                "degraded": {
                  "type": "boolean",
                  "description": "Last-resort backend; output tagged degraded"
                },
                "driver": {
                  "type": "string",
                  "enum": ["openai", "anthropic", "local-llm", "whisper-http", "chromem", "gmail", "mock"],
                  "description": "Adapter implementation"
                },
                "endpoint": {"type": "string"},
                "model": {"type": "string"}
              }
            }
          }
        }
      },
      "description": "Fallback chains, one per capability"
    },
    "graphs": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "entry", "nodes"],
        "properties": {
          "name": {
            "type": "string",
            "pattern": "^[a-z][a-z0-9._-]*$",
            "description": "Graph name, also the task kind"
          },
          "description": {"type": "string"},
          "entry": {
            "type": "string",
            "description": "Entry node name"
          },
          "input_keys": {
            "type": "array",
            "items": {"type": "string"},
            "description": "State keys supplied by the caller"
          },
          "nodes": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name", "component"],
              "properties": {
                "name": {
                  "type": "string",
                  "pattern": "^[a-zA-Z][a-zA-Z0-9_-]*$"
                },
                "component": {"type": "string"},
                "edges": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["target"],
                    "properties": {
                      "when": {
                        "type": "string",
                        "description": "expr predicate; empty is unconditional"
                      },
                      "target": {
                        "type": "string",
                        "description": "Node name or terminal"
                      }
                    }
                  }
                }
              }
            }
          }
        }
      },
      "description": "Component graph definitions"
    }
  }
}`
