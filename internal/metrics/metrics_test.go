package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New()
	r.CommandsSent.WithLabelValues("load_shard").Inc()
	r.ActiveRequests.Set(3)
	r.DiscoveryCompleteness.Set(0.75)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "swarmweave_commands_sent_total")
	require.Contains(t, body, "swarmweave_active_requests 3")
	require.Contains(t, body, "swarmweave_discovery_completeness_ratio 0.75")
}

func TestIndependentRegistriesDoNotCollide(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}
