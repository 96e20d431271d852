package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/pkg/retry"
)

func TestObserverHooks(t *testing.T) {
	m := New()

	m.OnStateChange(source.Reconnecting)
	m.OnReconnect()
	m.OnDrop()
	m.OnDrop()
	m.OnPriceSourceFailure("dexscreener", retry.RateLimited)

	assert.Equal(t, float64(source.Reconnecting), testutil.ToFloat64(m.SubscriptionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LogsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceSourceErrors.WithLabelValues("dexscreener", "rate_limited")))
}

func TestMetricsEndpoint(t *testing.T) {
	m := New()
	m.LogsReceived.Add(3)

	srv := NewServer(":0", m)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "whale_signal_logs_received_total 3"))
}
