package server

import (
	"net/http"

	"github.com/SayWess/Musicarr/internal/tasks"
)

// LibraryHandler serves the library export and import endpoints.
type LibraryHandler struct {
	engine *tasks.Engine
}

// NewLibraryHandler creates the handler around the engine.
func NewLibraryHandler(engine *tasks.Engine) *LibraryHandler {
	return &LibraryHandler{engine: engine}
}

// Routes returns the HTTP routes this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{
		"GET /api/library/export",
		"POST /api/library/import",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/library/export":
		h.export(w, r)
	case "POST /api/library/import":
		h.importLibrary(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *LibraryHandler) export(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="musicarr-library.json"`)
	if err := h.engine.ExportLibrary(w); err != nil {
		respondError(w, err)
	}
}

func (h *LibraryHandler) importLibrary(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.ImportLibrary(r.Context(), r.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	})
}
