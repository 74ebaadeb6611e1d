package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "svc", "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingWithEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "svc", "test", "http://127.0.0.1:4318")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing was exported, so shutdown has nothing to flush
	_ = shutdown(ctx)
}

func TestExporterOptions(t *testing.T) {
	opts, err := exporterOptions("collector:4318")
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	opts, err = exporterOptions("https://collector.example.com/v1/traces")
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	for _, bad := range []string{"ftp://collector:21", "http://"} {
		_, err := exporterOptions(bad)
		assert.Error(t, err, bad)
	}
}
