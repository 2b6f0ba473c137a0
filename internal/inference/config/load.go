package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel       = "o3"
	DefaultBaseURL     = "https://api.openai.com"
	DefaultChatPath    = "/v1/chat/completions"
	DefaultTimeout     = 20 * time.Second
	DefaultCallTimeout = 45 * time.Second
)

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		return d.parse(u)
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a JSON string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = time.Duration(n)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got kind %d", node.Kind)
	}
	if n, err := strconv.ParseInt(strings.TrimSpace(node.Value), 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = dd
	return nil
}

func DefaultOracle() OracleConfig {
	return OracleConfig{
		Model: DefaultModel,
		Engine: EngineConfig{
			BaseURL:             DefaultBaseURL,
			ChatCompletionsPath: DefaultChatPath,
			Timeout:             Duration{Duration: DefaultTimeout},
			JSONSchema:          JSONSchemaConfig{Mode: "auto", MaxRetries: 1, MaxPromptBytes: 64 << 10},
		},
		RPS:         4,
		Burst:       8,
		CallTimeout: Duration{Duration: DefaultCallTimeout},
	}
}

// ApplyEnv overlays OPENAI_* and ORACLE_* environment variables and normalizes the result.
func (c *OracleConfig) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.Engine.APIKey = v
	}
	if v := firstEnv("ORACLE_MODEL", "OPENAI_MODEL"); v != "" {
		c.Model = v
	}
	if v := firstEnv("ORACLE_BASE_URL", "OPENAI_BASE_URL"); v != "" {
		c.Engine.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_TIMEOUT")); v != "" {
		if err := c.Engine.Timeout.parse(v); err != nil {
			return fmt.Errorf("ORACLE_TIMEOUT: %w", err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ORACLE_RPS: %w", err)
		}
		c.RPS = f
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_BURST")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ORACLE_BURST: %w", err)
		}
		c.Burst = n
	}
	if v := strings.TrimSpace(os.Getenv("ORACLE_JSON_SCHEMA_MODE")); v != "" {
		c.Engine.JSONSchema.Mode = v
	}
	return c.Normalize()
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func (c *OracleConfig) Normalize() error {
	c.Model = strings.TrimSpace(c.Model)
	if c.Model == "" {
		c.Model = DefaultModel
	}
	c.Engine.BaseURL = strings.TrimRight(strings.TrimSpace(c.Engine.BaseURL), "/")
	if c.Engine.BaseURL == "" {
		c.Engine.BaseURL = DefaultBaseURL
	}
	c.Engine.ChatCompletionsPath = strings.TrimSpace(c.Engine.ChatCompletionsPath)
	if c.Engine.ChatCompletionsPath == "" {
		c.Engine.ChatCompletionsPath = DefaultChatPath
	}
	if c.Engine.Timeout.Duration <= 0 {
		c.Engine.Timeout = Duration{Duration: DefaultTimeout}
	}
	if c.CallTimeout.Duration <= 0 {
		c.CallTimeout = Duration{Duration: DefaultCallTimeout}
	}

	c.Engine.JSONSchema.Mode = strings.ToLower(strings.TrimSpace(c.Engine.JSONSchema.Mode))
	switch c.Engine.JSONSchema.Mode {
	case "", "auto":
		c.Engine.JSONSchema.Mode = "auto"
	case "none", "response_format", "prompt":
	default:
		return fmt.Errorf("invalid oracle json_schema.mode=%q", c.Engine.JSONSchema.Mode)
	}
	if c.Engine.JSONSchema.MaxRetries < 0 {
		return fmt.Errorf("invalid oracle json_schema.max_retries=%d", c.Engine.JSONSchema.MaxRetries)
	}
	if c.Engine.JSONSchema.MaxPromptBytes <= 0 {
		c.Engine.JSONSchema.MaxPromptBytes = 64 << 10
	}
	if c.RPS < 0 {
		return fmt.Errorf("invalid oracle rps=%v", c.RPS)
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return nil
}

func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}
