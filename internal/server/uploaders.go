package server

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/tasks"
)

// UploaderHandler serves the uploader listing and their avatar images.
//
// Avatars are stored on disk by the download pipeline under an uploader-id
// filename with whatever extension the thumbnail came in, so the avatar
// route globs for the id instead of assuming an extension.
type UploaderHandler struct {
	engine    *tasks.Engine
	uploaders *repositories.UploaderRepository
	avatarDir string
	logger    *log.Logger
}

// NewUploaderHandler creates the handler over the uploader repository.
func NewUploaderHandler(engine *tasks.Engine, uploaders *repositories.UploaderRepository, avatarDir string, logger *log.Logger) *UploaderHandler {
	return &UploaderHandler{engine: engine, uploaders: uploaders, avatarDir: avatarDir, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *UploaderHandler) Routes() []string {
	return []string{
		"GET /api/uploaders",
		"GET /api/uploaders/{id}",
		"POST /api/uploaders/{id}/avatar",
		"GET /avatars/{id}",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *UploaderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/uploaders":
		h.list(w, r)
	case "GET /api/uploaders/{id}":
		h.detail(w, r)
	case "POST /api/uploaders/{id}/avatar":
		h.downloadAvatar(w, r)
	case "GET /avatars/{id}":
		h.avatar(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *UploaderHandler) list(w http.ResponseWriter, _ *http.Request) {
	uploaders, err := h.uploaders.List()
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]uploaderJSON, 0, len(uploaders))
	for _, u := range uploaders {
		out = append(out, toUploaderJSON(u))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *UploaderHandler) detail(w http.ResponseWriter, r *http.Request) {
	uploader, err := h.uploaders.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUploaderJSON(uploader))
}

// downloadAvatar refetches the uploader's avatar in the background; the
// outcome lands on the uploaders websocket group.
func (h *UploaderHandler) downloadAvatar(w http.ResponseWriter, r *http.Request) {
	uploader, err := h.uploaders.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	go func() {
		if err := h.engine.DownloadAvatar(context.Background(), uploader.ID); err != nil {
			h.logger.Error("avatar download failed", "uploader", uploader.Name, "error", err)
		}
	}()
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *UploaderHandler) avatar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	matches, err := filepath.Glob(filepath.Join(h.avatarDir, id+".*"))
	if err != nil || len(matches) == 0 {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, matches[0])
}
