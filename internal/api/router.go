package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/guidelines", GuidelinesHandler)

	r.Route("/analyses", func(r chi.Router) {
		r.Post("/", app.CreateAnalysisHandler)
		r.Get("/{id}", app.GetAnalysisHandler)
		r.Get("/{id}/events", app.AnalysisEventsHandler)
		r.Get("/{id}/preview", app.PreviewHandler)
	})

	r.Route("/history", func(r chi.Router) {
		r.Get("/", app.ListHistoryHandler)
		r.Get("/{id}", app.GetHistoryHandler)
		r.Post("/{id}/analyses", app.ReopenHistoryHandler)
	})

	return r
}
