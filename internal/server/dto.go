package server

import (
	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/services"
)

// playlistJSON is the wire shape of a playlist, including member counts.
type playlistJSON struct {
	ID               string                `json:"id"`
	SourceID         string                `json:"source_id"`
	Title            string                `json:"title"`
	Description      string                `json:"description,omitempty"`
	Thumbnail        string                `json:"thumbnail,omitempty"`
	LastPublished    string                `json:"last_published,omitempty"`
	Folder           string                `json:"folder,omitempty"`
	DownloadPath     string                `json:"download_path,omitempty"`
	CheckEveryDay    bool                  `json:"check_every_day"`
	DefaultFormat    models.DownloadFormat `json:"default_format"`
	DefaultQuality   models.Quality        `json:"default_quality"`
	DefaultSubtitles bool                  `json:"default_subtitles"`
	UploaderID       string                `json:"uploader_id,omitempty"`
	NbVideos         int                   `json:"nb_videos"`
	NbDownloaded     int                   `json:"nb_videos_downloaded"`
}

func toPlaylistJSON(p *models.Playlist, counts repositories.PlaylistCounts) playlistJSON {
	return playlistJSON{
		ID:               p.ID,
		SourceID:         p.SourceID,
		Title:            p.Title,
		Description:      p.Description,
		Thumbnail:        p.Thumbnail,
		LastPublished:    p.LastPublished,
		Folder:           p.Folder,
		DownloadPath:     p.DownloadPath,
		CheckEveryDay:    p.CheckEveryDay,
		DefaultFormat:    p.DefaultFormat,
		DefaultQuality:   p.DefaultQuality,
		DefaultSubtitles: p.DefaultSubtitles,
		UploaderID:       p.UploaderID,
		NbVideos:         counts.Total,
		NbDownloaded:     counts.Downloaded,
	}
}

// videoJSON is the wire shape of a video row.
type videoJSON struct {
	ID          string `json:"id"`
	SourceID    string `json:"source_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	UploadDate  string `json:"upload_date,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Available   bool   `json:"available"`
	UploaderID  string `json:"uploader_id,omitempty"`
}

func toVideoJSON(v *models.Video) videoJSON {
	return videoJSON{
		ID:          v.ID,
		SourceID:    v.SourceID,
		Title:       v.Title,
		Description: v.Description,
		Thumbnail:   v.Thumbnail,
		UploadDate:  v.UploadDate,
		Duration:    v.Duration,
		Available:   v.Available,
		UploaderID:  v.UploaderID,
	}
}

// memberJSON is a video as seen through one playlist membership, carrying
// the download state and the per-membership overrides.
type memberJSON struct {
	videoJSON
	State        models.DownloadState   `json:"state"`
	Format       *models.DownloadFormat `json:"format,omitempty"`
	Quality      *models.Quality        `json:"quality,omitempty"`
	Subtitles    *bool                  `json:"subtitles,omitempty"`
	CustomTitle  *string                `json:"custom_title,omitempty"`
	CustomFolder *string                `json:"custom_folder,omitempty"`
}

func toMemberJSON(v *models.Video, pv *models.PlaylistVideo) memberJSON {
	return memberJSON{
		videoJSON:    toVideoJSON(v),
		State:        pv.State,
		Format:       pv.Format,
		Quality:      pv.Quality,
		Subtitles:    pv.Subtitles,
		CustomTitle:  pv.CustomTitle,
		CustomFolder: pv.CustomFolder,
	}
}

// uploaderJSON is the wire shape of an uploader. Avatar is the API path the
// frontend loads the channel avatar from.
type uploaderJSON struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channel_id"`
	Name       string `json:"name"`
	ChannelURL string `json:"channel_url,omitempty"`
	Avatar     string `json:"avatar"`
}

func toUploaderJSON(u *models.Uploader) uploaderJSON {
	return uploaderJSON{
		ID:         u.ID,
		ChannelID:  u.ChannelID,
		Name:       u.Name,
		ChannelURL: u.ChannelURL,
		Avatar:     "/avatars/" + u.ID,
	}
}

// searchJSON is one upstream search hit.
type searchJSON struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	ChannelTitle string `json:"channel_title,omitempty"`
	PublishedAt  string `json:"published_at,omitempty"`
}

func toSearchJSON(r services.SearchResult) searchJSON {
	return searchJSON{
		VideoID:      r.VideoID,
		Title:        r.Title,
		Description:  r.Description,
		Thumbnail:    r.Thumbnail,
		ChannelTitle: r.ChannelTitle,
		PublishedAt:  r.PublishedAt,
	}
}

// rootFolderJSON is the wire shape of a root folder.
type rootFolderJSON struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	IsDefault bool   `json:"is_default"`
}

func toRootFolderJSON(f *models.RootFolder) rootFolderJSON {
	return rootFolderJSON{ID: f.ID, Path: f.Path, IsDefault: f.IsDefault}
}
