// Package ctxutil carries per-request identity through context: the ids that
// tag every log line and the caller credentials resolved by middleware.
package ctxutil

import "context"

type requestKey struct{}

// Request is attached once per HTTP request and filled in by successive
// middleware. It is never shared across requests.
type Request struct {
	RequestID string
	TraceID   string
	Token     string
	ClientIP  string
}

// Ensure returns the Request already attached to ctx, or attaches a new one.
func Ensure(ctx context.Context) (context.Context, *Request) {
	ctx = Default(ctx)
	if r := From(ctx); r != nil {
		return ctx, r
	}
	r := &Request{}
	return context.WithValue(ctx, requestKey{}, r), r
}

func From(ctx context.Context) *Request {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(requestKey{}).(*Request)
	return r
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// RequestID returns the id assigned by the trace middleware, or "n/a" outside
// a request (prefetch tasks, tests).
func RequestID(ctx context.Context) string {
	if r := From(ctx); r != nil && r.RequestID != "" {
		return r.RequestID
	}
	return "n/a"
}
