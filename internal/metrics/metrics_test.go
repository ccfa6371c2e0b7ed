package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := NewHTTP()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/profile/{userID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/profile/"+id, nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `mouldconnect_http_requests_total{method="GET",route="/api/profile/{userID}",status="403"} 3`)
	assert.NotContains(t, string(body), `route="/api/profile/1"`)
	assert.Contains(t, string(body), "go_goroutines")
}
