package handlers

import (
	"net/http"

	"nfl-pickem/interfaces"
	"nfl-pickem/logging"
	"nfl-pickem/models"
)

// AdminHandler handles moderation and manual pipeline triggers
type AdminHandler struct {
	picks    interfaces.PickService
	pipeline interfaces.WeekProcessor
	logger   *logging.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(picks interfaces.PickService, pipeline interfaces.WeekProcessor) *AdminHandler {
	return &AdminHandler{picks: picks, pipeline: pipeline, logger: logging.WithPrefix("Admin")}
}

// ModeratePropBet handles POST /api/admin/propbets/{season}/{week}/{userId}
func (h *AdminHandler) ModeratePropBet(w http.ResponseWriter, r *http.Request) {
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathInt(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var decision models.PropBetModeration
	if err := decodeBody(r, &decision); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.picks.ModeratePropBet(r.Context(), userID, season, week, decision); err != nil {
		writeError(w, r, err)
		return
	}
	h.logger.Infof("Prop bet for user %d in %d/%d moderated: %s", userID, season, week, decision.Status)
	w.WriteHeader(http.StatusNoContent)
}

// ResolveWeek handles POST /api/admin/resolve/{season}/{week}
func (h *AdminHandler) ResolveWeek(w http.ResponseWriter, r *http.Request) {
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.pipeline.Run(r.Context(), season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
