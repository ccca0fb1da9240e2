// package tasks implements the orchestration core of the playlist mirror.
//
// The central abstraction is [Engine], which coordinates metadata
// reconciliation, download scheduling and state transitions across the
// repositories, the upstream metadata source and the download pipeline.
// Operations publish progress to the notification hub for the HTTP and
// websocket layers.
package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/download"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/tracker"
)

// Downloader is the slice of the download pipeline the engine needs.
// [download.Service] implements it; tests substitute fakes.
type Downloader interface {
	FetchVideo(ctx context.Context, req download.VideoRequest) error
	FetchAvatar(ctx context.Context, avatarDir, uploaderID, channelURL string) error
}

// Repos bundles the repositories the engine operates on.
type Repos struct {
	Playlists   *repositories.PlaylistRepository
	Videos      *repositories.VideoRepository
	Memberships *repositories.PlaylistVideoRepository
	Uploaders   *repositories.UploaderRepository
	Roots       *repositories.RootFolderRepository
}

// Engine orchestrates reconciliation and downloads. All public operations
// are synchronous; callers that want fire-and-forget semantics run them in
// their own goroutine after the engine has claimed the job.
type Engine struct {
	repos     Repos
	source    services.MetadataSource
	downloads Downloader
	tracker   *tracker.Tracker
	hub       *notify.Hub
	logger    *log.Logger
	avatarDir string
}

// NewEngine creates an Engine with the given dependencies
func NewEngine(repos Repos, source services.MetadataSource, downloads Downloader, jobs *tracker.Tracker, hub *notify.Hub, logger *log.Logger, avatarDir string) *Engine {
	return &Engine{
		repos:     repos,
		source:    source,
		downloads: downloads,
		tracker:   jobs,
		hub:       hub,
		logger:    logger,
		avatarDir: avatarDir,
	}
}

// notifyPlaylist publishes a message to the playlists group with the
// playlist id filled in
func (e *Engine) notifyPlaylist(playlistID string, fields notify.Message) {
	msg := notify.Message{"playlist_id": playlistID}
	for k, v := range fields {
		msg[k] = v
	}
	e.hub.Publish(notify.GroupPlaylists, msg)
}

// notifyUploader publishes a message to the uploaders group
func (e *Engine) notifyUploader(uploaderID string, fields notify.Message) {
	msg := notify.Message{"uploader_id": uploaderID}
	for k, v := range fields {
		msg[k] = v
	}
	e.hub.Publish(notify.GroupUploaders, msg)
}
