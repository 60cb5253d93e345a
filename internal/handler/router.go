package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	personahandler "github.com/lumate/voicecoach/internal/handler/persona"
	personaModel "github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/pkg/utils"
)

// NewRouter wires the operational HTTP surface: health, metrics and the
// persona catalog. Conversations happen over the chat connector, not HTTP.
func NewRouter(catalog personaModel.Catalog) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		personahandler.New(catalog).RegisterRoutes(api)
	})

	return r
}
