package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castlegate/networth/internal/modules/market_hours"
)

func TestHandleGetStatus(t *testing.T) {
	// Tuesday 2024-01-16 10:00 ET: NYSE is open.
	svc := market_hours.New("XNYS", market_hours.WithNow(func() time.Time {
		return time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC)
	}))
	handler := NewHandler(svc, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	req := httptest.NewRequest("GET", "/api/market-hours/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Contains(t, envelope, "data")
	require.Contains(t, envelope, "metadata")

	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, true, data["open"])
	assert.Equal(t, "XNYS", data["exchange"])
	assert.Equal(t, "America/New_York", data["timezone"])
	assert.NotEmpty(t, data["closes_at"])
}

func TestHandleGetStatus_ClosedMarket(t *testing.T) {
	// Saturday.
	svc := market_hours.New("XNYS", market_hours.WithNow(func() time.Time {
		return time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)
	}))
	handler := NewHandler(svc, zerolog.Nop())

	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/market-hours/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, false, data["open"])
	assert.NotEmpty(t, data["opens_date"])
}
