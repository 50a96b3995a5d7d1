package handler

import (
	"net/http"

	"github.com/rushroster/rushroster-cloud/internal/apierr"
	"github.com/rushroster/rushroster-cloud/internal/service"
)

type StatsHandler struct {
	statsService *service.StatsService
}

func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Global serves the latest fleet-wide snapshot.
func (h *StatsHandler) Global(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Latest(r.Context())
	if err != nil {
		writeError(w, r, err, "global stats")
		return
	}
	apierr.WriteJSON(w, http.StatusOK, stats)
}
