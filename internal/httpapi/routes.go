package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/creature-draft-backend/internal/draft"
)

func SetupRoutes(svc *draft.Service, log *zap.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", Healthz)

		// Catalog
		r.Get("/creatures", ListCreatures(svc, log))
		r.Get("/creatures/{id}", GetCreature(svc, log))
		r.Get("/draft-sets", ListDraftSets(svc, log))
		r.Get("/draft-sets/{id}", GetDraftSet(svc, log))

		r.Post("/draft-rules", CreateRuleSet(svc, log))
		r.Get("/draft-rules", ListRuleSets(svc, log))
		r.Get("/draft-rules/{id}", GetRuleSet(svc, log))

		// Sessions
		r.Post("/draft-sessions", CreateSession(svc, log))
		r.Route("/draft-sessions/{id}", func(r chi.Router) {
			r.Get("/", GetSession(svc, log))
			r.Get("/view", GetSessionView(svc, log))
			r.Post("/players", JoinSession(svc, log))
			r.Post("/ready", ToggleReady(svc, log))
			r.Post("/start", StartSession(svc, log))
			r.Post("/selections", ApplySelection(svc, log))
		})
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}
