package server

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/shared"
)

// RootFolderHandler serves the storage root folder resource and the mount
// browser the frontend uses to pick paths.
type RootFolderHandler struct {
	roots *repositories.RootFolderRepository
	// mediaRoot is the mount every root folder must live under.
	mediaRoot string
}

// NewRootFolderHandler creates the handler over the root folder repository.
func NewRootFolderHandler(roots *repositories.RootFolderRepository, mediaRoot string) *RootFolderHandler {
	return &RootFolderHandler{roots: roots, mediaRoot: mediaRoot}
}

// Routes returns the HTTP routes this handler serves.
func (h *RootFolderHandler) Routes() []string {
	return []string{
		"GET /api/root_folders",
		"POST /api/root_folders",
		"DELETE /api/root_folders/{id}",
		"POST /api/root_folders/{id}/default",
		"GET /api/mounts",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *RootFolderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/root_folders":
		h.list(w, r)
	case "POST /api/root_folders":
		h.create(w, r)
	case "DELETE /api/root_folders/{id}":
		h.delete(w, r)
	case "POST /api/root_folders/{id}/default":
		h.setDefault(w, r)
	case "GET /api/mounts":
		h.mounts(w, r)
	default:
		http.NotFound(w, r)
	}
}

// list returns the registered root folders, pruning rows whose directory
// no longer exists on disk.
func (h *RootFolderHandler) list(w http.ResponseWriter, _ *http.Request) {
	folders, err := h.roots.List()
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]rootFolderJSON, 0, len(folders))
	for _, f := range folders {
		if _, err := os.Stat(f.Path); os.IsNotExist(err) {
			if err := h.roots.Delete(f.ID); err != nil {
				respondError(w, err)
				return
			}
			continue
		}
		out = append(out, toRootFolderJSON(f))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *RootFolderHandler) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, err)
		return
	}

	path, err := h.containedPath(body.Path)
	if err != nil {
		respondError(w, err)
		return
	}
	if rel := strings.TrimPrefix(path, h.mediaRoot+string(filepath.Separator)); rel != path && !shared.IsValidFolderPath(rel) {
		respondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidPath, body.Path))
		return
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		respondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidPath, path))
		return
	}

	folder := &models.RootFolder{Path: path}
	if err := h.roots.Create(folder); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toRootFolderJSON(folder))
}

// delete removes the root folder row. With ?deleteFiles=true the directory
// and its contents are removed from disk as well.
func (h *RootFolderHandler) delete(w http.ResponseWriter, r *http.Request) {
	folder, err := h.roots.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}

	if r.URL.Query().Get("deleteFiles") == "true" {
		if _, err := h.containedPath(folder.Path); err == nil {
			if err := os.RemoveAll(folder.Path); err != nil {
				respondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidPath, folder.Path))
				return
			}
		}
	}

	if err := h.roots.Delete(folder.ID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *RootFolderHandler) setDefault(w http.ResponseWriter, r *http.Request) {
	if err := h.roots.SetDefault(r.PathValue("id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// mounts lists the directories under the given path, defaulting to the
// media root. Only paths inside the media root can be browsed.
func (h *RootFolderHandler) mounts(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = h.mediaRoot
	}
	path, err := h.containedPath(path)
	if err != nil {
		respondError(w, err)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		respondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidPath, path))
		return
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(path, entry.Name()))
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"path": path, "directories": dirs})
}

// containedPath cleans the path and verifies it lives under the media root
func (h *RootFolderHandler) containedPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	cleaned := filepath.Clean(path)
	if cleaned != h.mediaRoot && !strings.HasPrefix(cleaned, h.mediaRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", shared.ErrInvalidPath, path, h.mediaRoot)
	}
	return cleaned, nil
}
