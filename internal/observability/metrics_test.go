package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.PestNet.SetModelLoaded("complete:models/pest_model_complete.pnm")
	m.HTTP.RecordRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pestnet_model_loaded")
	assert.Contains(t, body, `route="/health"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	_, err := NewMetrics()
	require.NoError(t, err)
	_, err = NewMetrics()
	require.NoError(t, err, "each call owns its registry")
}
