// Package engine is the seam between the oracle and a concrete
// chat-completions backend.
package engine

import "context"

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string
	Content string
}

// Prompt is the two-message conversation every oracle label sends.
func Prompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// JSONSchema names the structured output expected from a completion. Name
// doubles as the routing key for scripted test engines.
type JSONSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

type GenerateOptions struct {
	Temperature float64
	JSONSchema  *JSONSchema
}

// Engine produces a single chat completion. Implementations return text that
// is valid JSON whenever opts.JSONSchema is set, or an error.
type Engine interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
}
