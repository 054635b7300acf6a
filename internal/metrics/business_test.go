package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertBizMetricLine checks that the Prometheus output contains a business metric
// matching the given name, partial label pattern, and value. Uses regex to handle
// extra OTel scope labels injected by the Prometheus exporter.
func assertBizMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func newBusinessMetrics(t *testing.T, namespace string) (BusinessMetrics, *Provider) {
	t.Helper()
	provider, err := NewProvider(namespace)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	bm, err := NewBusinessMetrics(provider.MeterProvider(), namespace)
	require.NoError(t, err)
	return bm, provider
}

func TestBusinessMetrics_RecordOperation(t *testing.T) {
	ctx := context.Background()
	bm, provider := newBusinessMetrics(t, "ops_test")

	bm.RecordOperation(ctx, "crypto", "dek_protect", "success")
	bm.RecordOperation(ctx, "crypto", "dek_protect", "success")
	bm.RecordOperation(ctx, "crypto", "dek_recover", "error")
	bm.RecordOperation(ctx, "files", "file_encrypt", "success")
	bm.RecordOperation(ctx, "crypto", "provider_switch", "error")

	output := scrape(t, provider)

	tests := []struct {
		labels string
		value  string
	}{
		{`domain="crypto".*operation="dek_protect".*status="success"`, `2`},
		{`domain="crypto".*operation="dek_recover".*status="error"`, `1`},
		{`domain="files".*operation="file_encrypt".*status="success"`, `1`},
		{`domain="crypto".*operation="provider_switch".*status="error"`, `1`},
	}
	for _, tt := range tests {
		assertBizMetricLine(t, output, `ops_test_operations_total`, tt.labels, tt.value)
	}
}

func TestBusinessMetrics_RecordDuration(t *testing.T) {
	ctx := context.Background()
	bm, provider := newBusinessMetrics(t, "duration_test")

	bm.RecordDuration(ctx, "crypto", "dek_protect", 50*time.Millisecond, "success")
	bm.RecordDuration(ctx, "crypto", "dek_protect", 60*time.Millisecond, "success")
	bm.RecordDuration(ctx, "files", "file_decrypt", 2*time.Second, "error")

	output := scrape(t, provider)

	assertBizMetricLine(
		t,
		output,
		`duration_test_operation_duration_seconds_count`,
		`domain="crypto".*operation="dek_protect".*status="success"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`duration_test_operation_duration_seconds_sum`,
		`domain="files".*operation="file_decrypt".*status="error"`,
		`2`,
	)
	assertBizMetricLine(
		t,
		output,
		`duration_test_operation_duration_seconds_bucket`,
		`domain="crypto".*operation="dek_protect".*le="0.1"`,
		`2`,
	)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	noOpMetrics := NewNoOpBusinessMetrics()

	assert.NotPanics(t, func() {
		noOpMetrics.RecordOperation(context.Background(), "crypto", "dek_protect", "success")
		noOpMetrics.RecordDuration(context.Background(), "files", "file_encrypt", time.Second, "error")
	})
}

func TestRegisterProviderGauge(t *testing.T) {
	provider, err := NewProvider("gauge_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	active := false
	require.NoError(t, RegisterProviderGauge(provider.MeterProvider(), "gauge_test", func() bool { return active }))

	assert.Regexp(t, `gauge_test_kek_provider_active(\{[^}]*\})? 0`, scrape(t, provider))

	active = true
	assert.Regexp(t, `gauge_test_kek_provider_active(\{[^}]*\})? 1`, scrape(t, provider))
}
