package config

import "time"

type Duration struct {
	Duration time.Duration
}

type JSONSchemaConfig struct {
	// Mode controls how structured output is requested from the upstream.
	// - "none": ignore schema hints
	// - "response_format": send a json_schema response_format on every attempt
	// - "prompt": append a system instruction with the schema text
	// - "auto": response_format on the first attempt, prompt-only afterwards
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`

	// MaxRetries is the number of additional attempts when output is not valid JSON.
	// Total attempts = 1 + MaxRetries.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// MaxPromptBytes caps how much schema JSON can be injected into a prompt.
	MaxPromptBytes int `json:"max_prompt_bytes,omitempty" yaml:"max_prompt_bytes,omitempty"`
}

type EngineConfig struct {
	// BaseURL is the upstream chat-completions host.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// APIKey is optional; when empty the oracle is disabled and callers use their fallbacks.
	APIKey string `json:"-" yaml:"-"`

	ChatCompletionsPath string `json:"chat_completions_path,omitempty" yaml:"chat_completions_path,omitempty"`

	// Timeout bounds one upstream HTTP call.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	JSONSchema JSONSchemaConfig `json:"json_schema,omitempty" yaml:"json_schema,omitempty"`
}

// OracleConfig configures the language-model client used for question
// generation, calibration and the final report.
type OracleConfig struct {
	Model  string       `json:"model" yaml:"model"`
	Engine EngineConfig `json:"engine" yaml:"engine"`

	// RPS and Burst pace outgoing calls across all sessions.
	RPS   float64 `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst int     `json:"burst,omitempty" yaml:"burst,omitempty"`

	// CallTimeout bounds one logical request including the schema-less retry.
	CallTimeout Duration `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`
}

func (c OracleConfig) Enabled() bool {
	return c.Engine.APIKey != ""
}
