package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/checkers-match-backend/internal/hub"
	"github.com/DoyleJ11/checkers-match-backend/internal/stats"
	"github.com/DoyleJ11/checkers-match-backend/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	Gateway *ws.Gateway
	WS      ws.HandlerConfig
	// Stats is optional; without it the stats routes are not mounted.
	Stats            stats.Store
	LeaderboardLimit int
	Logger           *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Public routes
	r.Get("/", Root)
	r.Get("/healthz", Healthz(d.Hub, d.Gateway.Connections()))
	r.Get("/ws", ws.Handler(d.Gateway, d.WS))

	if d.Stats != nil {
		r.Group(func(r chi.Router) {
			r.Use(allowCORS)
			r.Get("/api/profile/{id}", Profile(d.Stats, log))
			r.Post("/save-stat", SaveStat(d.Stats, log))
			r.Options("/save-stat", func(http.ResponseWriter, *http.Request) {})
			r.Get("/leaderboard", Leaderboard(d.Stats, d.LeaderboardLimit, log))
		})
	}
	return r
}
