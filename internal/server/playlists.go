package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tasks"
)

// PlaylistHandler serves the playlist resource and its member videos.
//
// Mutating operations that talk to upstream or run downloads (add, refresh,
// download) return 202 immediately and finish in the background; clients
// follow progress on the playlists websocket group.
type PlaylistHandler struct {
	engine *tasks.Engine
	repos  tasks.Repos
	logger *log.Logger
}

// NewPlaylistHandler creates the handler around the engine and repositories.
func NewPlaylistHandler(engine *tasks.Engine, repos tasks.Repos, logger *log.Logger) *PlaylistHandler {
	return &PlaylistHandler{engine: engine, repos: repos, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *PlaylistHandler) Routes() []string {
	return []string{
		"GET /api/playlists",
		"POST /api/playlists",
		"GET /api/playlists/{id}",
		"PATCH /api/playlists/{id}",
		"DELETE /api/playlists/{id}",
		"POST /api/playlists/{id}/refresh",
		"GET /api/playlists/{id}/is_fetching",
		"POST /api/playlists/{id}/download",
		"GET /api/playlists/{id}/download_status",
		"POST /api/playlists/{id}/videos/{videoID}/refresh",
		"POST /api/playlists/{id}/videos/{videoID}/download",
		"GET /api/playlists/{id}/videos/{videoID}/download_status",
		"PATCH /api/playlists/{id}/videos/{videoID}",
		"DELETE /api/playlists/{id}/videos/{videoID}",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *PlaylistHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /api/playlists":
		h.list(w, r)
	case "POST /api/playlists":
		h.add(w, r)
	case "GET /api/playlists/{id}":
		h.detail(w, r)
	case "PATCH /api/playlists/{id}":
		h.updateSettings(w, r)
	case "DELETE /api/playlists/{id}":
		h.delete(w, r)
	case "POST /api/playlists/{id}/refresh":
		h.refresh(w, r)
	case "GET /api/playlists/{id}/is_fetching":
		h.isFetching(w, r)
	case "POST /api/playlists/{id}/download":
		h.download(w, r)
	case "GET /api/playlists/{id}/download_status":
		h.downloadStatus(w, r)
	case "POST /api/playlists/{id}/videos/{videoID}/refresh":
		h.refreshVideo(w, r)
	case "POST /api/playlists/{id}/videos/{videoID}/download":
		h.downloadVideo(w, r)
	case "GET /api/playlists/{id}/videos/{videoID}/download_status":
		h.videoDownloadStatus(w, r)
	case "PATCH /api/playlists/{id}/videos/{videoID}":
		h.updateOverrides(w, r)
	case "DELETE /api/playlists/{id}/videos/{videoID}":
		h.removeVideo(w, r)
	default:
		http.NotFound(w, r)
	}
}

// list returns every playlist with its download counts. The sort parameter
// accepts title (default) or last_published.
func (h *PlaylistHandler) list(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.repos.Playlists.List()
	if err != nil {
		respondError(w, err)
		return
	}

	if r.URL.Query().Get("sort") == "last_published" {
		sort.Slice(playlists, func(i, j int) bool {
			return playlists[i].LastPublished > playlists[j].LastPublished
		})
	}

	out := make([]playlistJSON, 0, len(playlists))
	for _, p := range playlists {
		counts, err := h.repos.Playlists.Counts(p.ID)
		if err != nil {
			respondError(w, err)
			return
		}
		out = append(out, toPlaylistJSON(p, counts))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *PlaylistHandler) add(w http.ResponseWriter, r *http.Request) {
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
	if _, err := h.repos.Playlists.GetBySourceID(body.SourceID); err == nil {
		respondError(w, shared.ErrAlreadyExists)
		return
	}

	// The request context dies with this response; the registration runs on
	// its own.
	go func() {
		if _, err := h.engine.AddPlaylist(context.Background(), body.SourceID); err != nil {
			h.logger.Error("playlist registration failed", "source_id", body.SourceID, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *PlaylistHandler) detail(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.repos.Playlists.Get(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	counts, err := h.repos.Playlists.Counts(playlist.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	memberships, err := h.repos.Memberships.ListByPlaylist(playlist.ID)
	if err != nil {
		respondError(w, err)
		return
	}

	videos := make([]memberJSON, 0, len(memberships))
	for _, pv := range memberships {
		video, err := h.repos.Videos.Get(pv.VideoID)
		if err != nil {
			respondError(w, err)
			return
		}
		videos = append(videos, toMemberJSON(video, pv))
	}

	var uploader *uploaderJSON
	if playlist.UploaderID != "" {
		u, err := h.repos.Uploaders.Get(playlist.UploaderID)
		if err == nil {
			wire := toUploaderJSON(u)
			uploader = &wire
		} else if !errors.Is(err, shared.ErrUploaderNotFound) {
			respondError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, struct {
		playlistJSON
		Uploader *uploaderJSON `json:"uploader,omitempty"`
		Videos   []memberJSON  `json:"videos"`
	}{toPlaylistJSON(playlist, counts), uploader, videos})
}

func (h *PlaylistHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeBody(r, &fields); err != nil {
		respondError(w, err)
		return
	}

	if err := h.engine.UpdatePlaylistSettings(r.PathValue("id"), fields); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *PlaylistHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repos.Playlists.Delete(id); err != nil {
		respondError(w, err)
		return
	}
	if _, err := h.repos.Videos.DeleteOrphans(); err != nil {
		h.logger.Error("orphan cleanup failed", "error", err)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *PlaylistHandler) refresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.repos.Playlists.Get(id); err != nil {
		respondError(w, err)
		return
	}
	if h.engine.IsFetching(id) {
		respondError(w, shared.ErrAlreadyInProgress)
		return
	}

	go func() {
		if err := h.engine.RefreshPlaylist(context.Background(), id); err != nil {
			h.logger.Error("playlist refresh failed", "playlist", id, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *PlaylistHandler) isFetching(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"is_fetching": h.engine.IsFetching(r.PathValue("id"))})
}

func (h *PlaylistHandler) download(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.repos.Playlists.Get(id); err != nil {
		respondError(w, err)
		return
	}
	redownloadAll := r.URL.Query().Get("redownloadAll") == "true"

	go func() {
		if _, err := h.engine.DownloadPlaylist(context.Background(), id, redownloadAll); err != nil {
			h.logger.Error("playlist download failed", "playlist", id, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *PlaylistHandler) downloadStatus(w http.ResponseWriter, r *http.Request) {
	downloading, err := h.engine.DownloadStatus(r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_downloading": downloading})
}

func (h *PlaylistHandler) videoDownloadStatus(w http.ResponseWriter, r *http.Request) {
	downloading, err := h.engine.IsDownloadingVideo(r.PathValue("id"), r.PathValue("videoID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"is_downloading": downloading})
}

func (h *PlaylistHandler) refreshVideo(w http.ResponseWriter, r *http.Request) {
	id, videoID := r.PathValue("id"), r.PathValue("videoID")
	if _, err := h.repos.Memberships.GetByPair(id, videoID); err != nil {
		respondError(w, err)
		return
	}

	go func() {
		if err := h.engine.RefreshVideo(context.Background(), id, videoID); err != nil {
			h.logger.Error("video refresh failed", "video", videoID, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *PlaylistHandler) downloadVideo(w http.ResponseWriter, r *http.Request) {
	id, videoID := r.PathValue("id"), r.PathValue("videoID")
	if _, err := h.repos.Memberships.GetByPair(id, videoID); err != nil {
		respondError(w, err)
		return
	}

	go func() {
		if err := h.engine.DownloadVideo(context.Background(), id, videoID); err != nil {
			h.logger.Error("video download failed", "video", videoID, "error", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// overridesBody carries the full per-membership override set. Omitted or
// null fields clear the override back to the playlist default.
type overridesBody struct {
	Format       *string `json:"format"`
	Quality      *string `json:"quality"`
	Subtitles    *bool   `json:"subtitles"`
	CustomTitle  *string `json:"custom_title"`
	CustomFolder *string `json:"custom_folder"`
}

func (h *PlaylistHandler) updateOverrides(w http.ResponseWriter, r *http.Request) {
	pv, err := h.repos.Memberships.GetByPair(r.PathValue("id"), r.PathValue("videoID"))
	if err != nil {
		respondError(w, err)
		return
	}

	var body overridesBody
	if err := decodeBody(r, &body); err != nil {
		respondError(w, err)
		return
	}

	pv.Format, pv.Quality = nil, nil
	if body.Format != nil {
		format, err := models.ParseFormat(*body.Format)
		if err != nil {
			respondError(w, shared.ErrInvalidInput)
			return
		}
		pv.Format = &format
	}
	if body.Quality != nil {
		quality, err := models.ParseQuality(*body.Quality)
		if err != nil {
			respondError(w, shared.ErrInvalidInput)
			return
		}
		pv.Quality = &quality
	}
	if body.CustomFolder != nil && *body.CustomFolder != "" && !shared.IsValidFolderPath(*body.CustomFolder) {
		respondError(w, fmt.Errorf("%w: %s", shared.ErrInvalidPath, *body.CustomFolder))
		return
	}
	pv.Subtitles = body.Subtitles
	pv.CustomTitle = body.CustomTitle
	pv.CustomFolder = body.CustomFolder

	if err := h.repos.Memberships.UpdateOverrides(pv); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *PlaylistHandler) removeVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.RemoveVideo(r.PathValue("id"), r.PathValue("videoID")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
