package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/leca/imgdrop/internal/config"
	"github.com/leca/imgdrop/internal/handler"
	"github.com/leca/imgdrop/internal/middleware"
)

// New builds the chi router for the service.
func New(h *handler.Handler, cfg *config.Config, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	// CORS first so preflight OPTIONS is handled before anything else.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(referrerPolicy)

	r.Get("/liveness", h.Liveness)
	r.Get("/metrics", h.Metrics)
	r.Get("/stats", h.Stats)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.AuthToken))
		r.With(middleware.RateLimit(cfg.MaxUploadsPerMinute, time.Minute)).
			Post("/", h.Upload)
		r.Delete("/{filename}", h.DeleteFile)
	})

	r.Get("/{filename}", h.GetFile)

	return r
}

func referrerPolicy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
		next.ServeHTTP(w, r)
	})
}
