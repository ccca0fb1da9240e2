package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tasks"
)

// VideoHandler serves the video collection: the local library view, free
// text search over it, upstream search, and single-video registration.
type VideoHandler struct {
	engine *tasks.Engine
	repos  tasks.Repos
	source services.MetadataSource
	logger *log.Logger
}

// NewVideoHandler creates the handler around the engine and repositories.
func NewVideoHandler(engine *tasks.Engine, repos tasks.Repos, source services.MetadataSource, logger *log.Logger) *VideoHandler {
	return &VideoHandler{engine: engine, repos: repos, source: source, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *VideoHandler) Routes() []string {
	return []string{
		"GET /api/videos",
		"POST /api/videos",
		"GET /api/videos/{id}",
		"GET /api/search",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *VideoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/videos":
		h.list(w, r)
	case "POST /api/videos":
		h.add(w, r)
	case "GET /api/videos/{id}":
		h.detail(w, r)
	case "GET /api/search":
		h.search(w, r)
	default:
		http.NotFound(w, r)
	}
}

// list returns the whole library, or a LIKE search over titles when the
// query parameter is present.
func (h *VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	var rows []*models.Video
	var err error
	if query := r.URL.Query().Get("query"); query != "" {
		rows, err = h.repos.Videos.Search(query)
	} else {
		rows, err = h.repos.Videos.List()
	}
	if err != nil {
		respondError(w, err)
		return
	}

	videos := make([]videoJSON, 0, len(rows))
	for _, v := range rows {
		videos = append(videos, toVideoJSON(v))
	}
	respondJSON(w, http.StatusOK, videos)
}

// add registers a single standalone video under the reserved playlist.
func (h *VideoHandler) add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SourceID string `json:"source_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.SourceID == "" {
		respondError(w, shared.ErrMissingArgument)
		return
	}

	video, err := h.engine.AddVideo(r.Context(), body.SourceID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toVideoJSON(video))
}

func (h *VideoHandler) detail(w http.ResponseWriter, r *http.Request) {
	video, err := h.repos.Videos.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toVideoJSON(video))
}

// search queries upstream for videos matching the query parameter. An
// optional channel parameter keeps only results from matching channels.
func (h *VideoHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		respondError(w, shared.ErrMissingArgument)
		return
	}

	results, err := h.source.Search(r.Context(), query)
	if err != nil {
		respondError(w, err)
		return
	}

	channel := strings.ToLower(r.URL.Query().Get("channel"))
	hits := make([]searchJSON, 0, len(results))
	for _, result := range results {
		if channel != "" && !strings.Contains(strings.ToLower(result.ChannelTitle), channel) {
			continue
		}
		hits = append(hits, toSearchJSON(result))
	}
	respondJSON(w, http.StatusOK, hits)
}
