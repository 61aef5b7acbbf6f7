package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsCounterIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestsTotal.WithLabelValues("success").Inc()
	m.CacheHits.WithLabelValues("l1").Inc()
	m.RateLimitDenied.WithLabelValues("per_user_per_minute").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	require.True(t, found["orderbot_requests_total"])
	require.True(t, found["orderbot_cache_hits_total"])
	require.True(t, found["orderbot_rate_limit_denied_total"])
}

func TestNew_HistogramObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RequestDuration.WithLabelValues("intent_classification").Observe(0.25)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, f := range families {
		if f.GetName() == "orderbot_request_duration_seconds" {
			hist = f.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	require.Equal(t, uint64(1), hist.GetSampleCount())
}
