package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/leca/imgdrop/internal/api"
)

// Metrics handles GET /metrics -- Prometheus-style gauges with per-type
// asset counts and byte totals from the upload ledger.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		api.Error(w, http.StatusNotFound, "Metrics are not enabled!")
		return
	}

	stats, err := h.Ledger.Stats()
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to query ledger stats")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	var b strings.Builder
	for _, st := range stats {
		fmt.Fprintf(&b,
			"directory_size{service=\"imgdrop\", extension=\"%s\", mime_type=\"%s\"} %d\n",
			st.Ext, st.MediaType, st.Bytes)
		fmt.Fprintf(&b,
			"directory_count{service=\"imgdrop\", extension=\"%s\", mime_type=\"%s\"} %d\n",
			st.Ext, st.MediaType, st.Count)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}

// Stats handles GET /stats -- JSON totals from the upload ledger.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Ledger == nil {
		api.Error(w, http.StatusNotFound, "Stats are not enabled!")
		return
	}

	count, bytes, err := h.Ledger.Totals()
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to query ledger totals")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	types, err := h.Ledger.Stats()
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to query ledger stats")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": count,
		"bytes": bytes,
		"types": types,
	})
}
