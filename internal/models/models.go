// package models defines the data model for the playlist mirror service
package models

import (
	"fmt"
	"strings"
	"time"
)

// SentinelPlaylistID is the reserved playlist source id collecting videos
// that do not belong to any real playlist. The row is created lazily and
// listing queries filter it out.
const SentinelPlaylistID = "0"

// SentinelPlaylistTitle names the reserved playlist in detail views.
const SentinelPlaylistTitle = "My videos"

// DownloadState tracks the download lifecycle of a playlist/video membership.
type DownloadState string

const (
	StateIdle        DownloadState = "IDLE"
	StateDownloading DownloadState = "DOWNLOADING"
	StateDownloaded  DownloadState = "DOWNLOADED"
	StateError       DownloadState = "ERROR"
)

// DownloadFormat selects between audio-only and full video downloads.
type DownloadFormat string

const (
	FormatAudio DownloadFormat = "AUDIO"
	FormatVideo DownloadFormat = "VIDEO"
)

// Quality is a ranked enumeration of download qualities. QualityBest is the
// top rank; numeric qualities name the maximum vertical resolution passed to
// the fetch tool.
type Quality string

const (
	QualityBest  Quality = "best"
	Quality2160p Quality = "2160p"
	Quality1440p Quality = "1440p"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
)

// Qualities lists all valid qualities, best first.
var Qualities = []Quality{
	QualityBest, Quality2160p, Quality1440p, Quality1080p, Quality720p, Quality480p, Quality360p,
}

// Height returns the maximum vertical resolution for the quality, or 0 for
// QualityBest which carries no cap.
func (q Quality) Height() int {
	switch q {
	case Quality2160p:
		return 2160
	case Quality1440p:
		return 1440
	case Quality1080p:
		return 1080
	case Quality720p:
		return 720
	case Quality480p:
		return 480
	case Quality360p:
		return 360
	default:
		return 0
	}
}

// ParseQuality validates a quality string, accepting a trailing "p" or not
// for numeric ranks.
func ParseQuality(s string) (Quality, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized != string(QualityBest) && !strings.HasSuffix(normalized, "p") {
		normalized += "p"
	}
	for _, q := range Qualities {
		if normalized == string(q) {
			return q, nil
		}
	}
	return "", fmt.Errorf("invalid quality %q", s)
}

// ParseFormat validates a download format string.
func ParseFormat(s string) (DownloadFormat, error) {
	switch DownloadFormat(strings.ToUpper(strings.TrimSpace(s))) {
	case FormatAudio:
		return FormatAudio, nil
	case FormatVideo:
		return FormatVideo, nil
	}
	return "", fmt.Errorf("invalid format %q", s)
}

// ParseState validates a download state string.
func ParseState(s string) (DownloadState, error) {
	switch DownloadState(strings.ToUpper(strings.TrimSpace(s))) {
	case StateIdle:
		return StateIdle, nil
	case StateDownloading:
		return StateDownloading, nil
	case StateDownloaded:
		return StateDownloaded, nil
	case StateError:
		return StateError, nil
	}
	return "", fmt.Errorf("invalid download state %q", s)
}

// Uploader is an external channel identity referenced by playlists and videos.
// Uploaders are created lazily on first reference and never deleted
// automatically.
type Uploader struct {
	ID         string // Internal id
	ChannelID  string // External channel identity, unique
	Name       string // Display name
	ChannelURL string // External channel URL
	SourceID   string // Uploader handle id, may be empty
	URL        string // Uploader handle URL, may be empty
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the uploader's required fields.
func (u *Uploader) Validate() error {
	if u.ChannelID == "" {
		return fmt.Errorf("uploader channel id is required")
	}
	if u.Name == "" {
		return fmt.Errorf("uploader name is required")
	}
	return nil
}

// Playlist mirrors an externally hosted playlist together with its
// user-owned download policy. Policy fields (Folder, DownloadPath,
// CheckEveryDay, DefaultFormat, DefaultQuality, DefaultSubtitles) are never
// touched by reconciliation.
type Playlist struct {
	ID               string
	SourceID         string // External playlist id, unique
	Title            string
	Description      string
	Thumbnail        string
	LastPublished    string // Max member upload date, YYYYMMDD
	Folder           string // Storage root folder
	DownloadPath     string // Optional sub-path under Folder
	CheckEveryDay    bool
	DefaultFormat    DownloadFormat
	DefaultQuality   Quality
	DefaultSubtitles bool
	UploaderID       string // Internal uploader id, may be empty
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the playlist's required fields.
func (p *Playlist) Validate() error {
	if p.SourceID == "" {
		return fmt.Errorf("playlist source id is required")
	}
	if p.Title == "" {
		return fmt.Errorf("playlist title is required")
	}
	if p.DefaultFormat != FormatAudio && p.DefaultFormat != FormatVideo {
		return fmt.Errorf("invalid playlist format %q", p.DefaultFormat)
	}
	return nil
}

// IsSentinel reports whether this is the reserved playlist holding
// standalone videos.
func (p *Playlist) IsSentinel() bool {
	return p.SourceID == SentinelPlaylistID
}

// Video mirrors an externally hosted video. A video is globally unique by
// source id and can belong to several playlists through memberships.
type Video struct {
	ID          string
	SourceID    string // External video id, unique
	Title       string
	Description string
	Thumbnail   string
	UploadDate  string // YYYYMMDD
	Duration    string // Compact form, e.g. "3:57" or "1:03:20"
	Available   bool
	UploaderID  string // Internal uploader id, may be empty
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the video's required fields.
func (v *Video) Validate() error {
	if v.SourceID == "" {
		return fmt.Errorf("video source id is required")
	}
	if v.Title == "" {
		return fmt.Errorf("video title is required")
	}
	return nil
}

// PlaylistVideo links one playlist to one video, carrying the per-membership
// download state and optional overrides that fall back to the playlist's
// defaults when nil.
type PlaylistVideo struct {
	ID         string
	PlaylistID string // Internal playlist id
	VideoID    string // Internal video id
	State      DownloadState

	// Per-membership overrides; nil means "use the playlist default".
	Format    *DownloadFormat
	Quality   *Quality
	Subtitles *bool

	// Custom title and storage sub-path per membership; nil means unset.
	CustomTitle  *string
	CustomFolder *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the membership's required fields.
func (pv *PlaylistVideo) Validate() error {
	if pv.PlaylistID == "" || pv.VideoID == "" {
		return fmt.Errorf("membership requires playlist and video ids")
	}
	if _, err := ParseState(string(pv.State)); err != nil {
		return err
	}
	return nil
}

// RootFolder is an allowed storage root. At most one root folder is the
// default at a time; playlists whose folder is not a known root fall back to
// the default at download time.
type RootFolder struct {
	ID        string
	Path      string
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the root folder's required fields.
func (r *RootFolder) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("root folder path is required")
	}
	return nil
}

// DownloadOptions is the fully resolved set of settings handed to the
// download pipeline for one membership.
type DownloadOptions struct {
	Format    DownloadFormat
	Quality   Quality
	Subtitles bool
	Folder    string // Resolved storage root
	SubPath   string // Sub-path under Folder, may be empty
}

// ResolveOptions merges a membership's overrides over the playlist defaults.
// The playlist's folder is carried as-is; root folder fallback happens at
// download time, where the configured roots are known.
func ResolveOptions(p *Playlist, pv *PlaylistVideo) DownloadOptions {
	opts := DownloadOptions{
		Format:    p.DefaultFormat,
		Quality:   p.DefaultQuality,
		Subtitles: p.DefaultSubtitles,
		Folder:    p.Folder,
		SubPath:   p.DownloadPath,
	}

	if pv == nil {
		return opts
	}
	if pv.Format != nil {
		opts.Format = *pv.Format
	}
	if pv.Quality != nil {
		opts.Quality = *pv.Quality
	}
	if pv.Subtitles != nil {
		opts.Subtitles = *pv.Subtitles
	}
	if pv.CustomFolder != nil && *pv.CustomFolder != "" {
		opts.SubPath = *pv.CustomFolder
	}

	return opts
}
