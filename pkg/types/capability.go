package types

import "time"

// Well-known capability names.
const (
	CapabilityTranscribe = "transcribe-audio"
	CapabilityGenerate   = "generate-text"
	CapabilitySearch     = "vector-search"
	CapabilityIndex      = "vector-index"
	CapabilityMailSync   = "mail-sync"
)

// BackendSpec is one entry in a capability's fallback chain as loaded from
// the wiring document. Lower priority values are tried first; priorities
// within one capability must be distinct.
type BackendSpec struct {
	Name       string `json:"name"`
	Capability string `json:"capability"`
	Priority   int    `json:"priority"`
	Enabled    bool   `json:"enabled"`

	// Degraded marks a last-resort backend whose output is returned tagged
	// as degraded instead of failing the chain.
	Degraded bool `json:"degraded,omitempty"`

	// Driver selects the adapter implementation ("openai", "anthropic",
	// "local-llm", "whisper-http", "chromem", "gmail", "mock").
	Driver string `json:"driver"`

	// Endpoint and Model are driver-specific connection settings.
	Endpoint string `json:"endpoint,omitempty"`
	Model    string `json:"model,omitempty"`

	// Timeouts; zero means the resolver defaults apply.
	HealthTimeout time.Duration `json:"health_timeout,omitempty"`
	InvokeTimeout time.Duration `json:"invoke_timeout,omitempty"`
}

// ChainSpec is the ordered backend chain for one capability.
type ChainSpec struct {
	Capability string        `json:"capability"`
	Optional   bool          `json:"optional,omitempty"`
	Backends   []BackendSpec `json:"backends"`
}

// Result is the outcome of a capability invocation. Backend names the
// adapter that actually served the request; Degraded marks last-resort
// fallback output.
type Result struct {
	Output   State  `json:"output"`
	Backend  string `json:"backend"`
	Degraded bool   `json:"degraded,omitempty"`
}

// BackendHealth is a point-in-time health snapshot for one backend,
// exposed on the capabilities endpoint.
type BackendHealth struct {
	Name      string     `json:"name"`
	Priority  int        `json:"priority"`
	Enabled   bool       `json:"enabled"`
	Degraded  bool       `json:"degraded,omitempty"`
	Healthy   *bool      `json:"healthy,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}
