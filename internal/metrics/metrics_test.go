package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()

	ObserveGatewayRequest("GET", "ok", 20*time.Millisecond)
	ReconcileAction("create")
	SetServerUp("alpha", true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, name := range []string{
		"wgprov_gateway_requests_total",
		"wgprov_reconcile_actions_total",
		`wgprov_server_up{server="alpha"} 1`,
	} {
		require.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
