package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/SayWess/Musicarr/internal/download"
	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tracker"
)

// DownloadSummary reports the outcome of a bulk download pass.
type DownloadSummary struct {
	Total       int  // Candidates considered for download
	Failed      int  // Downloads that ended in error
	Unavailable int  // Candidates skipped because the video is gone upstream
	UpToDate    bool // Nothing needed downloading
}

// AddPlaylist registers a new playlist by its external id and reconciles it
// from upstream. When the first reconciliation fails the playlist row is
// removed again, so a bad id never leaves a half-registered playlist behind.
func (e *Engine) AddPlaylist(ctx context.Context, sourceID string) (*models.Playlist, error) {
	if _, err := e.repos.Playlists.GetBySourceID(sourceID); err == nil {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrAlreadyExists, sourceID)
	} else if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, err
	}

	playlist := &models.Playlist{
		SourceID:       sourceID,
		Title:          sourceID, // placeholder until the first reconcile
		DefaultFormat:  models.FormatAudio,
		DefaultQuality: models.QualityBest,
	}
	// Missing default root is only fatal at download time.
	if root, err := e.repos.Roots.GetDefault(); err == nil {
		playlist.Folder = root.Path
	} else if !errors.Is(err, shared.ErrNoRootFolder) {
		return nil, err
	}
	if err := e.repos.Playlists.Create(playlist); err != nil {
		return nil, err
	}

	if err := e.RefreshPlaylist(ctx, playlist.ID); err != nil {
		if delErr := e.repos.Playlists.Delete(playlist.ID); delErr != nil {
			e.logger.Error("failed to remove playlist after failed initial fetch", "playlist", sourceID, "error", delErr)
		}
		return nil, err
	}

	return e.repos.Playlists.Get(playlist.ID)
}

// RefreshPlaylist reconciles one playlist's metadata and membership set with
// the upstream. Concurrent refreshes of the same playlist are rejected with
// [shared.ErrAlreadyInProgress].
func (e *Engine) RefreshPlaylist(ctx context.Context, playlistID string) error {
	key := tracker.PlaylistFetch(playlistID)
	if !e.tracker.TryClaim(key) {
		return fmt.Errorf("%w: refresh of playlist %s", shared.ErrAlreadyInProgress, playlistID)
	}
	defer e.tracker.Release(key)

	playlist, err := e.repos.Playlists.Get(playlistID)
	if err != nil {
		return err
	}

	e.notifyPlaylist(playlistID, notify.Message{"status": "started"})

	result, err := e.reconcilePlaylist(ctx, playlist)
	if err != nil {
		e.logger.Error("playlist refresh failed", "playlist", playlist.SourceID, "error", err)
		e.notifyPlaylist(playlistID, notify.Message{
			"fetch_success": false,
			"message":       err.Error(),
		})
		return err
	}

	e.logger.Info("playlist refreshed",
		"playlist", playlist.Title,
		"videos", result.VideosTotal,
		"unavailable", result.VideosUnavailable,
		"new", result.NewMemberships)
	e.notifyPlaylist(playlistID, notify.Message{"fetch_success": true})

	return nil
}

// RefreshVideo refreshes one video's metadata within a playlist.
func (e *Engine) RefreshVideo(ctx context.Context, playlistID, videoID string) error {
	key := tracker.VideoFetch(playlistID, videoID)
	if !e.tracker.TryClaim(key) {
		return fmt.Errorf("%w: refresh of video %s", shared.ErrAlreadyInProgress, videoID)
	}
	defer e.tracker.Release(key)

	if _, err := e.repos.Memberships.GetByPair(playlistID, videoID); err != nil {
		return err
	}
	video, err := e.repos.Videos.Get(videoID)
	if err != nil {
		return err
	}

	err = e.reconcileVideo(ctx, video)
	e.notifyPlaylist(playlistID, notify.Message{
		"video_id":      videoID,
		"fetch_success": err == nil,
	})

	return err
}

// AddVideo registers a standalone video under the reserved playlist,
// fetching its metadata from upstream. A video already linked there is
// reported as [shared.ErrAlreadyExists] without touching the row.
func (e *Engine) AddVideo(ctx context.Context, videoSourceID string) (*models.Video, error) {
	sentinel, err := e.repos.Playlists.EnsureSentinel()
	if err != nil {
		return nil, err
	}

	if existing, err := e.repos.Videos.GetBySourceID(videoSourceID); err == nil {
		if _, err := e.repos.Memberships.GetByPair(sentinel.ID, existing.ID); err == nil {
			return existing, fmt.Errorf("%w: video %s", shared.ErrAlreadyExists, videoSourceID)
		} else if !errors.Is(err, shared.ErrMembershipNotFound) {
			return nil, err
		}
	} else if !errors.Is(err, shared.ErrVideoNotFound) {
		return nil, err
	}

	details, err := e.source.GetVideos(ctx, []string{videoSourceID})
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrVideoUnavailable, videoSourceID)
	}

	detail := details[0]
	uploader, err := e.ensureUploader(ctx, detail.ChannelID, detail.ChannelTitle, detail.ChannelURL, map[string]*models.Uploader{})
	if err != nil {
		return nil, err
	}

	video := &models.Video{
		SourceID:    detail.ID,
		Title:       detail.Title,
		Description: detail.Description,
		Thumbnail:   detail.Thumbnail,
		UploadDate:  detail.UploadDate,
		Duration:    detail.Duration,
		Available:   true,
	}
	if uploader != nil {
		video.UploaderID = uploader.ID
	}
	if err := e.repos.Videos.Upsert(video); err != nil {
		return nil, err
	}

	if _, err := e.repos.Memberships.Ensure(sentinel.ID, video.ID); err != nil {
		return nil, err
	}

	return video, nil
}

// RemoveVideo unlinks a video from a playlist, garbage-collecting video rows
// that no longer belong anywhere.
func (e *Engine) RemoveVideo(playlistID, videoID string) error {
	pv, err := e.repos.Memberships.GetByPair(playlistID, videoID)
	if err != nil {
		return err
	}
	if err := e.repos.Memberships.Delete(pv.ID); err != nil {
		return err
	}

	removed, err := e.repos.Videos.DeleteOrphans()
	if err != nil {
		return err
	}
	if removed > 0 {
		e.logger.Debug("removed orphan videos", "count", removed)
	}

	return nil
}

// DownloadPlaylist downloads every pending member of a playlist
// sequentially. With redownloadAll set, previously downloaded members are
// fetched again. The summary notification distinguishes an up-to-date
// playlist from partial and total failure.
func (e *Engine) DownloadPlaylist(ctx context.Context, playlistID string, redownloadAll bool) (*DownloadSummary, error) {
	if e.tracker.IsClaimed(tracker.PlaylistFetch(playlistID)) {
		return nil, fmt.Errorf("%w: refresh of playlist %s", shared.ErrAlreadyInProgress, playlistID)
	}
	key := tracker.PlaylistDownload(playlistID)
	if !e.tracker.TryClaim(key) {
		return nil, fmt.Errorf("%w: download of playlist %s", shared.ErrAlreadyInProgress, playlistID)
	}
	defer e.tracker.Release(key)

	playlist, err := e.repos.Playlists.Get(playlistID)
	if err != nil {
		return nil, err
	}

	folder, err := e.resolveFolder(playlist)
	if err != nil {
		e.notifyPlaylist(playlistID, notify.Message{
			"download_success": false,
			"message":          err.Error(),
		})
		return nil, err
	}

	memberships, err := e.repos.Memberships.ListByPlaylist(playlistID)
	if err != nil {
		return nil, err
	}

	summary := &DownloadSummary{}
	e.notifyPlaylist(playlistID, notify.Message{"status": "started"})

	var candidates []*models.PlaylistVideo
	for _, pv := range memberships {
		if !redownloadAll && pv.State != models.StateIdle && pv.State != models.StateError {
			continue
		}
		// An in-flight single-video download keeps its claim; attempting
		// it here would only lose the claim race and pollute the summary.
		if pv.State == models.StateDownloading && e.tracker.IsClaimed(tracker.VideoDownload(playlistID, pv.ID)) {
			continue
		}
		candidates = append(candidates, pv)
	}
	summary.Total = len(candidates)

	e.notifyPlaylist(playlistID, notify.Message{"total_to_download": summary.Total})

	for _, pv := range candidates {
		video, err := e.repos.Videos.Get(pv.VideoID)
		if err != nil {
			summary.Failed++
			continue
		}
		if !video.Available {
			summary.Unavailable++
			e.notifyPlaylist(playlistID, notify.Message{
				"video_id":    video.ID,
				"video_title": video.Title,
				"status":      "error",
				"message":     shared.ErrVideoUnavailable.Error(),
			})
			continue
		}

		if err := e.downloadMember(ctx, playlist, pv, video, folder); err != nil {
			summary.Failed++
			e.logger.Error("video download failed", "video", video.Title, "error", err)
		}
	}

	summary.UpToDate = summary.Total == 0
	e.notifyPlaylist(playlistID, notify.Message{
		"download_success":   summary.Failed == 0,
		"up_to_date":         summary.UpToDate,
		"nb_download_failed": summary.Failed,
		"total_to_download":  summary.Total,
	})

	return summary, nil
}

// DownloadVideo downloads one playlist member. Rejected while the same
// video is being refreshed.
func (e *Engine) DownloadVideo(ctx context.Context, playlistID, videoID string) error {
	if e.tracker.IsClaimed(tracker.VideoFetch(playlistID, videoID)) {
		return fmt.Errorf("%w: refresh of video %s", shared.ErrAlreadyInProgress, videoID)
	}
	playlist, err := e.repos.Playlists.Get(playlistID)
	if err != nil {
		return err
	}
	pv, err := e.repos.Memberships.GetByPair(playlistID, videoID)
	if err != nil {
		e.notifyPlaylist(playlistID, notify.Message{
			"video_id": videoID,
			"status":   "error",
			"message":  "Video not found in this playlist",
		})
		return err
	}
	video, err := e.repos.Videos.Get(videoID)
	if err != nil {
		return err
	}
	if !video.Available {
		e.notifyPlaylist(playlistID, notify.Message{
			"video_id":    videoID,
			"video_title": video.Title,
			"status":      "error",
			"message":     "Video not available",
		})
		return fmt.Errorf("%w: %s", shared.ErrVideoUnavailable, video.SourceID)
	}

	folder, err := e.resolveFolder(playlist)
	if err != nil {
		return err
	}

	return e.downloadMember(ctx, playlist, pv, video, folder)
}

// downloadMember runs the state machine for one membership download:
// claim, DOWNLOADING, fetch, DOWNLOADED or ERROR, release.
func (e *Engine) downloadMember(ctx context.Context, playlist *models.Playlist, pv *models.PlaylistVideo, video *models.Video, folder string) error {
	key := tracker.VideoDownload(playlist.ID, pv.ID)
	if !e.tracker.TryClaim(key) {
		return fmt.Errorf("%w: download of video %s", shared.ErrAlreadyInProgress, video.SourceID)
	}
	defer e.tracker.Release(key)

	if err := e.repos.Memberships.SetState(pv.ID, models.StateDownloading); err != nil {
		return err
	}
	e.notifyPlaylist(playlist.ID, notify.Message{
		"video_id":    video.ID,
		"video_title": video.Title,
		"status":      "started",
	})

	opts := models.ResolveOptions(playlist, pv)
	opts.Folder = folder

	req := download.VideoRequest{
		PlaylistID: playlist.ID,
		VideoID:    video.ID,
		SourceID:   video.SourceID,
		Title:      video.Title,
		Options:    opts,
	}
	if pv.CustomTitle != nil && *pv.CustomTitle != "" {
		req.OutTitle = *pv.CustomTitle
	}

	if err := e.downloads.FetchVideo(ctx, req); err != nil {
		if stateErr := e.repos.Memberships.SetState(pv.ID, models.StateError); stateErr != nil {
			e.logger.Error("failed to record error state", "video", video.Title, "error", stateErr)
		}
		e.notifyPlaylist(playlist.ID, notify.Message{
			"video_id":    video.ID,
			"video_title": video.Title,
			"status":      "error",
			"message":     err.Error(),
		})
		return err
	}

	if err := e.repos.Memberships.SetState(pv.ID, models.StateDownloaded); err != nil {
		return err
	}
	e.notifyPlaylist(playlist.ID, notify.Message{
		"video_id":    video.ID,
		"video_title": video.Title,
		"status":      "finished",
	})

	return nil
}

// resolveFolder picks the storage root for a playlist: its configured folder
// when that is a known root, otherwise the default root. No configured roots
// means downloads cannot proceed.
func (e *Engine) resolveFolder(playlist *models.Playlist) (string, error) {
	if playlist.Folder != "" {
		if root, err := e.repos.Roots.GetByPath(playlist.Folder); err == nil {
			return root.Path, nil
		}
	}

	root, err := e.repos.Roots.GetDefault()
	if err != nil {
		return "", err
	}
	return root.Path, nil
}

// UpdatePlaylistSettings applies a partial policy update and notifies
// watchers that options changed.
func (e *Engine) UpdatePlaylistSettings(playlistID string, fields map[string]any) error {
	if err := e.repos.Playlists.UpdateSettings(playlistID, fields); err != nil {
		return err
	}
	e.notifyPlaylist(playlistID, notify.Message{"options_updated": true})
	return nil
}

// IsFetching reports whether a metadata refresh of the playlist is in
// flight.
func (e *Engine) IsFetching(playlistID string) bool {
	return e.tracker.IsClaimed(tracker.PlaylistFetch(playlistID))
}

// IsDownloadingVideo reports whether a single-video download of the
// membership is in flight.
func (e *Engine) IsDownloadingVideo(playlistID, videoID string) (bool, error) {
	pv, err := e.repos.Memberships.GetByPair(playlistID, videoID)
	if err != nil {
		return false, err
	}
	return e.tracker.IsClaimed(tracker.VideoDownload(playlistID, pv.ID)), nil
}

// DownloadStatus reports whether a bulk download of the playlist is in
// flight. Reading the status also heals memberships stuck in DOWNLOADING
// with no live claim, which happens when a previous process died mid-download.
func (e *Engine) DownloadStatus(playlistID string) (bool, error) {
	live := e.tracker.ClaimedVideos(tracker.KindVideoDownload, playlistID)
	reset, err := e.repos.Memberships.ResetDownloading(playlistID, live)
	if err != nil {
		return false, err
	}
	if reset > 0 {
		e.logger.Warn("reset stale downloading memberships", "playlist", playlistID, "count", reset)
	}

	return e.tracker.IsClaimed(tracker.PlaylistDownload(playlistID)) || len(live) > 0, nil
}
