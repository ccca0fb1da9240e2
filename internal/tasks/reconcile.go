package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tracker"
)

// unavailableTitle names video rows whose metadata the upstream no longer
// serves.
const unavailableTitle = "Unavailable video"

// ReconcileResult summarizes one reconciliation pass over a playlist.
type ReconcileResult struct {
	VideosTotal       int
	VideosUnavailable int
	NewMemberships    int
}

// reconcilePlaylist aligns one playlist's descriptive metadata and
// membership set with the upstream.
//
// Descriptive fields are overwritten from upstream; the playlist's policy
// fields are never touched. Videos missing upstream are marked unavailable
// but their memberships survive, so download history is preserved. Existing
// membership state is left alone.
func (e *Engine) reconcilePlaylist(ctx context.Context, playlist *models.Playlist) (*ReconcileResult, error) {
	info, err := e.source.GetPlaylist(ctx, playlist.SourceID)
	if err != nil {
		return nil, err
	}

	uploaderCache := map[string]*models.Uploader{}

	uploader, err := e.ensureUploader(ctx, info.ChannelID, info.ChannelTitle, info.ChannelURL, uploaderCache)
	if err != nil {
		return nil, err
	}

	playlist.Title = info.Title
	playlist.Description = info.Description
	playlist.Thumbnail = info.Thumbnail
	if uploader != nil {
		playlist.UploaderID = uploader.ID
	}

	itemIDs, err := e.source.GetPlaylistItems(ctx, playlist.SourceID)
	if err != nil {
		return nil, err
	}

	details, err := e.source.GetVideos(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	detailByID := make(map[string]*models.Video, len(details))
	lastPublished := playlist.LastPublished
	for i := range details {
		detail := &details[i]
		videoUploader, err := e.ensureUploader(ctx, detail.ChannelID, detail.ChannelTitle, detail.ChannelURL, uploaderCache)
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
		if videoUploader != nil {
			video.UploaderID = videoUploader.ID
		}
		detailByID[detail.ID] = video

		if detail.UploadDate > lastPublished {
			lastPublished = detail.UploadDate
		}
	}

	result := &ReconcileResult{VideosTotal: len(itemIDs)}

	for _, sourceID := range itemIDs {
		video, available := detailByID[sourceID]
		if !available {
			result.VideosUnavailable++
			video = &models.Video{SourceID: sourceID, Title: unavailableTitle, Available: false}

			if existing, err := e.repos.Videos.GetBySourceID(sourceID); err == nil {
				existing.Available = false
				if err := e.repos.Videos.Update(existing); err != nil {
					return nil, err
				}
				video = existing
			} else if !errors.Is(err, shared.ErrVideoNotFound) {
				return nil, err
			} else if err := e.repos.Videos.Create(video); err != nil {
				return nil, err
			}
		} else if err := e.repos.Videos.Upsert(video); err != nil {
			return nil, err
		}

		_, err := e.repos.Memberships.GetByPair(playlist.ID, video.ID)
		switch {
		case errors.Is(err, shared.ErrMembershipNotFound):
			if _, err := e.repos.Memberships.Ensure(playlist.ID, video.ID); err != nil {
				return nil, err
			}
			result.NewMemberships++
		case err != nil:
			return nil, err
		}
	}

	playlist.LastPublished = lastPublished
	if err := e.repos.Playlists.Update(playlist); err != nil {
		return nil, err
	}

	return result, nil
}

// reconcileVideo refreshes one video's metadata from upstream. A video the
// upstream no longer serves is marked unavailable and the call fails with
// [shared.ErrVideoUnavailable].
func (e *Engine) reconcileVideo(ctx context.Context, video *models.Video) error {
	details, err := e.source.GetVideos(ctx, []string{video.SourceID})
	if err != nil {
		return err
	}

	if len(details) == 0 {
		video.Available = false
		if err := e.repos.Videos.Update(video); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", shared.ErrVideoUnavailable, video.SourceID)
	}

	detail := details[0]
	uploader, err := e.ensureUploader(ctx, detail.ChannelID, detail.ChannelTitle, detail.ChannelURL, map[string]*models.Uploader{})
	if err != nil {
		return err
	}

	video.Title = detail.Title
	video.Description = detail.Description
	video.Thumbnail = detail.Thumbnail
	video.UploadDate = detail.UploadDate
	video.Duration = detail.Duration
	video.Available = true
	if uploader != nil {
		video.UploaderID = uploader.ID
	}

	return e.repos.Videos.Update(video)
}

// ensureUploader upserts the uploader behind a channel id, fetching its
// avatar on first sight. The per-run cache keeps a bulk reconciliation from
// re-upserting the same channel for every video.
func (e *Engine) ensureUploader(ctx context.Context, channelID, name, channelURL string, cache map[string]*models.Uploader) (*models.Uploader, error) {
	if channelID == "" {
		return nil, nil
	}
	if cached, ok := cache[channelID]; ok {
		return cached, nil
	}
	if name == "" {
		name = channelID
	}

	uploader := &models.Uploader{ChannelID: channelID, Name: name, ChannelURL: channelURL}
	created, err := e.repos.Uploaders.Upsert(uploader)
	if err != nil {
		return nil, err
	}
	cache[channelID] = uploader

	if created {
		e.downloadAvatar(ctx, uploader)
	}

	return uploader, nil
}

// DownloadAvatar fetches an uploader's channel avatar on demand, sharing
// the per-uploader claim with reconciliation-triggered fetches.
func (e *Engine) DownloadAvatar(ctx context.Context, uploaderID string) error {
	uploader, err := e.repos.Uploaders.Get(uploaderID)
	if err != nil {
		return err
	}

	key := tracker.AvatarDownload(uploader.ID)
	if !e.tracker.TryClaim(key) {
		return fmt.Errorf("%w: avatar of %s", shared.ErrAlreadyInProgress, uploader.Name)
	}
	defer e.tracker.Release(key)

	e.fetchAvatar(ctx, uploader)
	return nil
}

// downloadAvatar fetches the uploader's channel avatar, claiming the job so
// concurrent reconciliations touch each avatar once. Failures are logged and
// reported on the uploaders group but never fail the reconciliation.
func (e *Engine) downloadAvatar(ctx context.Context, uploader *models.Uploader) {
	key := tracker.AvatarDownload(uploader.ID)
	if !e.tracker.TryClaim(key) {
		return
	}
	defer e.tracker.Release(key)

	e.fetchAvatar(ctx, uploader)
}

func (e *Engine) fetchAvatar(ctx context.Context, uploader *models.Uploader) {
	downloaded := true
	if err := e.downloads.FetchAvatar(ctx, e.avatarDir, uploader.ID, uploader.ChannelURL); err != nil {
		e.logger.Warn("avatar download failed", "uploader", uploader.Name, "error", err)
		downloaded = false
	}

	e.notifyUploader(uploader.ID, notify.Message{
		"uploader_name":     uploader.Name,
		"avatar_downloaded": downloaded,
	})
}
