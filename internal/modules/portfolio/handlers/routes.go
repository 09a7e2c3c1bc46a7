package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio and market data routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/{userID}/summary", h.HandleGetSummary)
		r.Get("/{userID}/history", h.HandleGetHistory)
	})
	r.Route("/market-data", func(r chi.Router) {
		r.Post("/refresh", h.HandleRefresh)
		r.Get("/cache/stats", h.HandleGetCacheStats)
	})
}
