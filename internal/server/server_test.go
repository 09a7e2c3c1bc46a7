package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := New(Config{Port: 0, Log: zerolog.Nop()})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestModuleRoutesMountedUnderAPI(t *testing.T) {
	s := New(Config{Port: 0, Log: zerolog.Nop(), Modules: []RouteRegistrar{pingModule{}}})

	req := httptest.NewRequest("GET", "/api/ping", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	// Not reachable outside /api.
	req = httptest.NewRequest("GET", "/ping", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestTimeoutDefault(t *testing.T) {
	s := New(Config{Port: 0, RequestTimeout: 50 * time.Millisecond, Log: zerolog.Nop()})
	require.NotNil(t, s.server)
	assert.Equal(t, ":0", s.server.Addr)
}
