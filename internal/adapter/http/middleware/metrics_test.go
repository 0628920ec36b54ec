package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"zkvault/pkg/apperror"
	"zkvault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metricsRouter(m *Metrics) *gin.Engine {
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/stakes/:address", func(c *gin.Context) { response.OK(c, gin.H{"ok": true}) })
	r.POST("/stakes/withdraw", func(c *gin.Context) { response.Error(c, apperror.ErrStakeLocked(42)) })
	r.GET("/metrics", gin.WrapH(m.Handler()))
	return r
}

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	m := NewMetrics()
	r := metricsRouter(m)

	for _, addr := range []string{"0xa", "0xb", "0xc"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stakes/"+addr, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, float64(3), testutil.ToFloat64(m.requests.WithLabelValues("/stakes/:address", "200", "GET")))
}

func TestMetrics_CountsErrorCodes(t *testing.T) {
	m := NewMetrics()
	r := metricsRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stakes/withdraw", nil))
	require.Equal(t, http.StatusLocked, w.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.rejected.WithLabelValues("VAULT_001")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/stakes/withdraw", "423", "POST")))
}

func TestMetrics_UnmatchedRoutesShareOneSeries(t *testing.T) {
	m := NewMetrics()
	r := metricsRouter(m)

	for _, p := range []string{"/nope", "/also/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, p, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "404", "GET")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	r := metricsRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stakes/0xa", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `zkvault_api_request_count{code="200",method="GET",path="/stakes/:address"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
