// Package handlers provides HTTP handlers for portfolio and market data
// operations.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/castlegate/networth/internal/domain"
	"github.com/castlegate/networth/internal/modules/marketdata"
	"github.com/castlegate/networth/internal/modules/portfolio"
)

// SymbolSource lists the symbols a full refresh should cover.
type SymbolSource interface {
	AllSymbols(ctx context.Context) ([]string, error)
}

// Handler handles portfolio HTTP requests.
type Handler struct {
	portfolio  *portfolio.Service
	marketData *marketdata.Service
	symbols    SymbolSource
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(
	portfolioService *portfolio.Service,
	marketDataService *marketdata.Service,
	symbols SymbolSource,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolio:  portfolioService,
		marketData: marketDataService,
		symbols:    symbols,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleGetSummary handles GET /api/portfolio/{userID}/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	summary, err := h.portfolio.GetCompletePortfolioSummary(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("Failed to build portfolio summary")
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

// HandleGetHistory handles GET /api/portfolio/{userID}/history?period=
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	periodParam := r.URL.Query().Get("period")
	if periodParam == "" {
		periodParam = string(portfolio.PeriodAll)
	}
	period, err := portfolio.ParsePeriod(periodParam)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history, err := h.portfolio.GetReconstructedHistory(r.Context(), userID, period)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Str("period", string(period)).
			Msg("Failed to reconstruct history")
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeData(w, http.StatusOK, history)
}

// refreshRequest is the optional body of a refresh call. With no symbols
// given, every ledger symbol is refreshed.
type refreshRequest struct {
	Symbols []string `json:"symbols"`
}

// HandleRefresh handles POST /api/market-data/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = h.symbols.AllSymbols(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list refresh symbols")
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if len(symbols) == 0 {
		h.writeData(w, http.StatusOK, map[string]interface{}{"refreshed": 0})
		return
	}

	if err := h.marketData.Refresh(r.Context(), symbols); err != nil {
		h.log.Error().Err(err).Int("symbols", len(symbols)).Msg("Refresh failed")
		h.writeError(w, statusForError(err), err.Error())
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{"refreshed": len(symbols)})
}

// HandleGetCacheStats handles GET /api/market-data/cache/stats
func (h *Handler) HandleGetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeData(w, http.StatusOK, h.marketData.CacheStats())
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var pe *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrQuoteUnavailable), errors.As(err, &pe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
