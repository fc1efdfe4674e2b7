package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_EmptyEndpointIsNoop(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestSetup_InstallsProvider(t *testing.T) {
	for _, endpoint := range []string{"127.0.0.1:4318", "http://127.0.0.1:4318"} {
		t.Run(endpoint, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), endpoint)
			require.NoError(t, err)

			// exporter is lazy, nothing is dialed until spans are flushed
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = shutdown(ctx)
		})
	}
}
