package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=mt ")
	assert.Equal(t, map[string]string{"api-key": "abc", "tenant": "mt"}, got)
	assert.Empty(t, ParseHeaders(""))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), nil, TracingConfig{})
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}

func TestInitTracingStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	shutdown, err := InitTracing(ctx, nil, TracingConfig{
		Enabled:     true,
		ServiceName: "mindtrace-test",
		SampleRatio: 1,
		Stdout:      &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer("test").Start(ctx, "prefetch.run")
	span.End()
	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "prefetch.run")
}
