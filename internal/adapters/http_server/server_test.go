package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	server "review_analysis/internal/adapters/http_server"
	"review_analysis/internal/adapters/observability"
)

func TestServer_TimeoutIsCountedAs503(t *testing.T) {
	srv := server.New(50 * time.Millisecond)
	srv.Mount("/slow", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	timedOut := observability.HTTPRequests.WithLabelValues("/slow", "GET", "503")
	before := testutil.ToFloat64(timedOut)

	rr := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rr, httptest.NewRequest("GET", "/slow", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(timedOut))
}
