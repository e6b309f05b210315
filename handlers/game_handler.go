package handlers

import (
	"net/http"

	"nfl-pickem/interfaces"
	"nfl-pickem/models"
)

// GameHandler handles schedule requests
type GameHandler struct {
	games interfaces.GameService
}

// NewGameHandler creates a new game handler
func NewGameHandler(games interfaces.GameService) *GameHandler {
	return &GameHandler{games: games}
}

// gamesResponse is the body of the week games endpoint
type gamesResponse struct {
	Season int            `json:"season"`
	Week   int            `json:"week"`
	Games  []*models.Game `json:"games"`
}

// GetWeekGames handles GET /api/games/{season}/{week}
func (h *GameHandler) GetWeekGames(w http.ResponseWriter, r *http.Request) {
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	games, err := h.games.WeekGames(r.Context(), season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gamesResponse{Season: season, Week: week, Games: games})
}

// GetWeekWindow handles GET /api/games/{season}/{week}/window
func (h *GameHandler) GetWeekWindow(w http.ResponseWriter, r *http.Request) {
	season, week, err := seasonWeek(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	window, err := h.games.WeekWindow(r.Context(), season, week)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, window)
}
