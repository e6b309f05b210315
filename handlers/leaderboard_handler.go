package handlers

import (
	"net/http"

	"nfl-pickem/interfaces"
	"nfl-pickem/models"
)

// LeaderboardHandler handles standings requests
type LeaderboardHandler struct {
	leaderboard interfaces.LeaderboardService
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(leaderboard interfaces.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

type standingsResponse struct {
	Season int                     `json:"season"`
	Week   int                     `json:"week,omitempty"`
	Rows   []models.LeaderboardRow `json:"rows"`
}

// Season handles GET /api/leaderboard/{season}
func (h *LeaderboardHandler) Season(w http.ResponseWriter, r *http.Request) {
	season, err := pathInt(r, "season")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := h.leaderboard.SeasonStandings(r.Context(), season)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, standingsResponse{Season: season, Rows: rows})
}

// Week handles GET /api/leaderboard/{season}/{week}
func (h *LeaderboardHandler) Week(w http.ResponseWriter, r *http.Request) {
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := h.leaderboard.WeeklyStandings(r.Context(), season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, standingsResponse{Season: season, Week: week, Rows: rows})
}
