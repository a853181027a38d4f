package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xavierca1/eva-followup/internal/infra/http/middleware"
)

func NewRouter(leads *LeadHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Rota não encontrada")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Método não permitido. Use POST para enviar leads.")
	})

	for _, path := range []string{"/leads", "/webhook"} {
		r.Post(path, leads.Capture)
		r.Options(path, leads.Options)
	}
	r.Get("/leads", leads.ListLeads)
	r.Get("/leads/{id}", leads.GetLead)

	r.Get("/health", health.Handle)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
