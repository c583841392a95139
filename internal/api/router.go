package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mova-app/widget-tasks/internal/api/middleware"
)

// NewRouter builds the daemon's HTTP routes around the task handler.
func NewRouter(handler *TaskHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.Health)
	r.Post("/v1/task", handler.InvokeTask)

	return r
}
