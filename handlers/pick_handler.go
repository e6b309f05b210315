package handlers

import (
	"net/http"
	"strconv"

	"nfl-pickem/interfaces"
	"nfl-pickem/logging"
	"nfl-pickem/middleware"
	"nfl-pickem/models"
)

// PickHandler handles pick submission and reveal requests
type PickHandler struct {
	picks  interfaces.PickService
	logger *logging.Logger
}

// NewPickHandler creates a new pick handler
func NewPickHandler(picks interfaces.PickService) *PickHandler {
	return &PickHandler{picks: picks, logger: logging.WithPrefix("PickHandler")}
}

// weeksResponse lists weeks with finalized picks
type weeksResponse struct {
	Season int   `json:"season"`
	Weeks  []int `json:"weeks"`
}

// revealResponse is the body of the reveal endpoint
type revealResponse struct {
	Season int            `json:"season"`
	Week   int            `json:"week"`
	Picks  []*models.Pick `json:"picks"`
}

// GetPick handles GET /api/picks/{season}/{week}
func (h *PickHandler) GetPick(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	pick, err := h.picks.Get(r.Context(), user.ID, season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pick == nil {
		writeError(w, r, models.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pick)
}

// PutPick handles PUT /api/picks/{season}/{week}
func (h *PickHandler) PutPick(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var payload models.PickPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	pick, err := h.picks.Upsert(r.Context(), user.ID, season, week, payload)
	if err != nil {
		h.logger.Debugf("Rejected pick from user %d for %d/%d: %v", user.ID, season, week, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pick)
}

// DeletePick handles DELETE /api/picks/{season}/{week}
func (h *PickHandler) DeletePick(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.picks.Delete(r.Context(), user.ID, season, week); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListWeeks handles GET /api/picks/{season}/weeks?user=<id>
func (h *PickHandler) ListWeeks(w http.ResponseWriter, r *http.Request) {
	season, err := pathInt(r, "season")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var userID *int
	if raw := r.URL.Query().Get("user"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			writeError(w, r, models.NewValidationError("user", "%q is not a valid user id", raw))
			return
		}
		userID = &id
	}

	weeks, err := h.picks.ListWeeksWithFinalizedPicks(r.Context(), season, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weeksResponse{Season: season, Weeks: weeks})
}

// RevealWeek handles GET /api/picks/{season}/{week}/all
func (h *PickHandler) RevealWeek(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	picks, err := h.picks.RevealFinalized(r.Context(), user.ID, user.IsAdmin, season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if picks == nil {
		picks = []*models.Pick{}
	}
	writeJSON(w, http.StatusOK, revealResponse{Season: season, Week: week, Picks: picks})
}
