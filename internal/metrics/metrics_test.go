package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/api/campaigns/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/campaigns/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/api/campaigns/{id}", "404")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("not_found")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("pending", "active")
	m.Stake(10)
	m.Draw()
	m.ChainJob("burn_tokens", "ok")

	called := false
	m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	m := New()
	m.Transition("pending", "active")
	m.Stake(250)
	m.ChainJob("select_winners", "ok")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `squdy_campaign_transitions_total{from="pending",to="active"} 1`))
	assert.True(t, strings.Contains(body, "squdy_tokens_staked_total 250"))
	assert.True(t, strings.Contains(body, `squdy_chain_jobs_total{kind="select_winners",outcome="ok"} 1`))
}

func TestCategorizeStatus(t *testing.T) {
	assert.Equal(t, "server_error", categorizeStatus(502))
	assert.Equal(t, "auth_error", categorizeStatus(403))
	assert.Equal(t, "conflict", categorizeStatus(409))
	assert.Equal(t, "bad_request", categorizeStatus(400))
	assert.Equal(t, "client_error", categorizeStatus(422))
}
