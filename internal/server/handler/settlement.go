package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// SettlementHandler serves the settlement journal.
type SettlementHandler struct {
	store  domain.SettlementStore
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(store domain.SettlementStore, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "settlements")),
	}
}

// ListRecent returns the newest settlements first.
// GET /api/settlements?limit=&offset=
func (h *SettlementHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list settlements failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}
	if records == nil {
		records = []domain.SettlementRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ListByMarket returns every attempt recorded for one market.
// GET /api/settlements/{market}
func (h *SettlementHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("market"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "market must be a non-negative integer")
		return
	}
	records, err := h.store.ListByMarket(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list market settlements failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}
	if records == nil {
		records = []domain.SettlementRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
