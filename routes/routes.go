package routes

import (
	"log/slog"
	"time"

	"github.com/Dosada05/league-manager/handlers"
	"github.com/Dosada05/league-manager/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func SetupRoutes(
	router *chi.Mux,
	matchHandler *handlers.MatchHandler,
	standingsHandler *handlers.StandingsHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)

	// websocket не должен попадать под Timeout middleware
	router.Get("/ws/leagues/{leagueID}", webSocketHandler.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(opts.RequestTimeout))

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", matchHandler.ListMatches)
			r.Post("/", matchHandler.CreateMatch)
			r.Get("/{matchID}", matchHandler.GetMatch)
			r.Put("/{matchID}/result", matchHandler.RecordResult)
		})

		r.Get("/league-team-matches", matchHandler.ListParticipations)
		r.Get("/rankings", standingsHandler.GetRankings)
		r.Get("/leagues/{leagueID}/standings", standingsHandler.GetLeagueStandings)
	})
}
