package handlers

import (
	"net/http"

	"nfl-pickem/interfaces"
	"nfl-pickem/metrics"
	"nfl-pickem/middleware"

	"github.com/gorilla/mux"
)

// RouterDeps bundles what the API needs to serve requests
type RouterDeps struct {
	Picks       interfaces.PickService
	Games       interfaces.GameService
	Leaderboard interfaces.LeaderboardService
	Pipeline    interfaces.WeekProcessor
	Broker      interfaces.LiveBroker
	Health      interfaces.HealthChecker
	Auth        *middleware.AuthMiddleware
	Security    middleware.SecurityConfig
	CheckOrigin func(r *http.Request) bool
}

// NewRouter wires every API route onto a mux router
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Security(deps.Security))
	r.Use(metrics.Middleware)

	health := NewHealthHandler(deps.Health)
	r.HandleFunc("/healthz", health.Healthz).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	picks := NewPickHandler(deps.Picks)
	authed := api.NewRoute().Subrouter()
	authed.Use(deps.Auth.RequireAuth)
	authed.HandleFunc("/picks/{season:[0-9]+}/weeks", picks.ListWeeks).Methods("GET")
	authed.HandleFunc("/picks/{season:[0-9]+}/{week:[0-9]+}", picks.GetPick).Methods("GET")
	authed.HandleFunc("/picks/{season:[0-9]+}/{week:[0-9]+}", picks.PutPick).Methods("PUT")
	authed.HandleFunc("/picks/{season:[0-9]+}/{week:[0-9]+}", picks.DeletePick).Methods("DELETE")
	authed.HandleFunc("/picks/{season:[0-9]+}/{week:[0-9]+}/all", picks.RevealWeek).Methods("GET")

	public := api.NewRoute().Subrouter()
	public.Use(deps.Auth.OptionalAuth)

	games := NewGameHandler(deps.Games)
	public.HandleFunc("/games/{season:[0-9]+}/{week:[0-9]+}", games.GetWeekGames).Methods("GET")
	public.HandleFunc("/games/{season:[0-9]+}/{week:[0-9]+}/window", games.GetWeekWindow).Methods("GET")

	leaderboard := NewLeaderboardHandler(deps.Leaderboard)
	public.HandleFunc("/leaderboard/{season:[0-9]+}", leaderboard.Season).Methods("GET")
	public.HandleFunc("/leaderboard/{season:[0-9]+}/{week:[0-9]+}", leaderboard.Week).Methods("GET")

	live := NewLiveHandler(deps.Broker, deps.CheckOrigin)
	public.HandleFunc("/events", live.ServeSSE).Methods("GET")
	public.HandleFunc("/ws", live.ServeWebSocket).Methods("GET")

	admin := NewAdminHandler(deps.Picks, deps.Pipeline)
	adminRoutes := api.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(deps.Auth.RequireAdmin)
	adminRoutes.HandleFunc("/propbets/{season:[0-9]+}/{week:[0-9]+}/{userId:[0-9]+}", admin.ModeratePropBet).Methods("POST")
	adminRoutes.HandleFunc("/resolve/{season:[0-9]+}/{week:[0-9]+}", admin.ResolveWeek).Methods("POST")

	return r
}
