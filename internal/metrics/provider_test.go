package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
)

func TestNewProvider(t *testing.T) {
	t.Run("Success_CreateProviderWithNamespace", func(t *testing.T) {
		provider, err := NewProvider("test_app")

		require.NoError(t, err)
		assert.NotNil(t, provider.meterProvider)
		assert.NotNil(t, provider.exporter)
		assert.NotNil(t, provider.registry)
	})

	t.Run("Success_CreateProviderWithEmptyNamespace", func(t *testing.T) {
		provider, err := NewProvider("")

		require.NoError(t, err)
		assert.NotNil(t, provider)
	})
}

func TestProvider_Handler(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	body := scrape(t, provider)

	assert.Contains(t, body, "go_goroutines")
}

func TestProvider_DurationBuckets(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	histogram, err := provider.MeterProvider().Meter("test_app").Float64Histogram(
		"test_app_kek_wrap_duration_seconds",
		metric.WithUnit("s"),
	)
	require.NoError(t, err)
	histogram.Record(context.Background(), 90)

	body := scrape(t, provider)

	assert.Contains(t, body, `le="120"`)
	assert.Contains(t, body, `le="0.0005"`)
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Success_ShutdownProvider", func(t *testing.T) {
		provider, err := NewProvider("test_app")
		require.NoError(t, err)

		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("Success_ShutdownNilProvider", func(t *testing.T) {
		provider := &Provider{meterProvider: nil}

		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
