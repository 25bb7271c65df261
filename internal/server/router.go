package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sectordocs/caodex/internal/api"
	"github.com/sectordocs/caodex/internal/api/handlers"
	"github.com/sectordocs/caodex/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// PDF uploads come through this router, so the body cap sits well above
	// a typical agreement PDF.
	const maxBodyBytes int64 = 52 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/download", cfg.DocumentHandler.Download)
	})

	r.Post("/search", cfg.SearchHandler.Search)

	return r
}
