package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	command "github.com/JohnPlummer/jp-go-command"
	"github.com/JohnPlummer/jp-go-command/metrics"
)

func TestCollectorObserveIncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	collector.Observe(command.Event{
		Command:      "pricing-lookup",
		Kind:         command.KindRetryable,
		CacheHit:     true,
		BreakerState: command.StateClosed,
		Duration:     50 * time.Millisecond,
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		found[mf.GetName()] = mf
	}

	require.Contains(t, found, "command_requests_total")
	require.Contains(t, found, "command_cache_hits_total")
	require.Contains(t, found, "command_cache_requests_total")

	assert.Equal(t, float64(1), found["command_requests_total"].Metric[0].Counter.GetValue())
	assert.Equal(t, float64(1), found["command_cache_hits_total"].Metric[0].Counter.GetValue())
}

func TestCollectorObserveWithoutCacheHitSkipsHitCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	collector.Observe(command.Event{
		Command:  "pricing-lookup",
		Kind:     command.KindNonRetryable,
		CacheHit: false,
		Duration: time.Millisecond,
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() == "command_cache_hits_total" {
			assert.Empty(t, mf.Metric, "expected no cache-hit sample to be recorded")
		}
	}
}
