package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/firezone/firezone-sub013/internal/api/handler"
	mw "github.com/firezone/firezone-sub013/internal/api/middleware"
	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/pubsub"
	"github.com/firezone/firezone-sub013/internal/transport"
)

// Server is the control-plane HTTP surface: flow authorization and the
// live session socket.
type Server struct {
	router chi.Router
	logger zerolog.Logger
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, engine *flow.Engine, bus *pubsub.Bus) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	flows := handler.NewFlows(pool, engine, logger)
	sessions := transport.NewSessions(pool, engine, bus, logger)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(mw.Auth(pool))

		r.Post("/flows/authorize", flows.Authorize)
		r.Get("/connect", sessions.Connect)
	})

	return s
}

func (s *Server) Handler() http.Handler { return s.router }
