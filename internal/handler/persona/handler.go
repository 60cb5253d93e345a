package persona

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	personaModel "github.com/lumate/voicecoach/internal/model/persona"
	"github.com/lumate/voicecoach/pkg/utils"
)

// Handler serves the persona catalog over HTTP.
type Handler struct {
	catalog personaModel.Catalog
}

// New creates the persona handler.
func New(catalog personaModel.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// RegisterRoutes mounts the persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
	r.Get("/personas/{index}", h.handleGet)
}

type listEntry struct {
	Index int `json:"index"`
	personaModel.Persona
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	personas := h.catalog.List()
	entries := make([]listEntry, 0, len(personas))
	for i, p := range personas {
		entries = append(entries, listEntry{Index: i, Persona: p})
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "index must be numeric")
		return
	}

	p, err := h.catalog.Resolve(index)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
