// Package mock provides a scripted engine for tests. Replies are keyed by the
// requested schema name so one engine can serve several oracle labels.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/mindtrace-backend/internal/inference/engine"
)

type Handler func(messages []engine.Message) (string, error)

type Call struct {
	Schema   string
	Model    string
	Messages []engine.Message
}

type Engine struct {
	mu       sync.Mutex
	handlers map[string]Handler
	fallback Handler
	calls    []Call
}

func New() *Engine {
	return &Engine{handlers: map[string]Handler{}}
}

// On registers h for requests whose schema name is schema.
func (e *Engine) On(schema string, h Handler) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[schema] = h
	return e
}

// Otherwise registers the handler used when no schema-specific one matches.
func (e *Engine) Otherwise(h Handler) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = h
	return e
}

func Reply(text string) Handler {
	return func([]engine.Message) (string, error) { return text, nil }
}

func Fail(err error) Handler {
	if err == nil {
		err = errors.New("mock: upstream failure")
	}
	return func([]engine.Message) (string, error) { return "", err }
}

// Sequence replies with texts in order and repeats the last one.
func Sequence(texts ...string) Handler {
	var mu sync.Mutex
	i := 0
	return func([]engine.Message) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(texts) == 0 {
			return "", errors.New("mock: empty sequence")
		}
		t := texts[min(i, len(texts)-1)]
		i++
		return t, nil
	}
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := ""
	if opts.JSONSchema != nil {
		name = opts.JSONSchema.Name
	}

	e.mu.Lock()
	e.calls = append(e.calls, Call{Schema: name, Model: model, Messages: append([]engine.Message(nil), messages...)})
	h, ok := e.handlers[name]
	if !ok {
		h = e.fallback
	}
	e.mu.Unlock()

	if h == nil {
		return "", fmt.Errorf("mock: no handler for schema %q", name)
	}
	return h(messages)
}

func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

func (e *Engine) CallCount(schema string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Schema == schema {
			n++
		}
	}
	return n
}
