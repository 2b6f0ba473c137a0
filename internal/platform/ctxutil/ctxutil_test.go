package ctxutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureReusesAttachedRequest(t *testing.T) {
	ctx, r := Ensure(context.Background())
	r.RequestID = "req-1"

	ctx2, r2 := Ensure(ctx)
	assert.Same(t, r, r2)
	assert.Equal(t, ctx, ctx2)
	assert.Equal(t, "req-1", RequestID(ctx2))
}

func TestRequestIDOutsideRequest(t *testing.T) {
	assert.Equal(t, "n/a", RequestID(context.Background()))
}
