package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/leadexport-service/internal/delivery/http/handler"
	"github.com/user/leadexport-service/internal/delivery/http/middleware"
)

func New(h *handler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		r.Route("/exports", func(r chi.Router) {
			r.Post("/", h.HandleRequestExport)
			r.Get("/", h.HandleListJobs)
			r.Get("/stuck", h.HandleStuckJobs)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", h.HandleGetJob)
				r.Delete("/", h.HandleCancelJob)
				r.Get("/progress", h.HandleProgress)
				r.Get("/download", h.HandleDownload)
			})
		})

		r.Route("/credits", func(r chi.Router) {
			r.Get("/balance", h.HandleBalance)
			r.Post("/purchase", h.HandlePurchase)
			r.Get("/history", h.HandleHistory)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
