package download

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/shared"
)

// VideoRequest describes one video download: where it goes, the resolved
// options and the identifiers carried in progress notifications.
type VideoRequest struct {
	PlaylistID string // Internal playlist id, for notifications
	VideoID    string // Internal video id, for notifications
	SourceID   string // External video id passed to the fetch tool
	Title      string // Display title, for notifications
	OutTitle   string // Filename override; empty uses the upstream title
	Options    models.DownloadOptions
}

// Service drives the fetch tool for video and avatar downloads, publishing
// throttled progress to the notification hub.
type Service struct {
	binary   string
	executor Executor
	hub      *notify.Hub
	logger   *log.Logger
}

// NewService creates a download service around the given executor
func NewService(binary string, executor Executor, hub *notify.Hub, logger *log.Logger) *Service {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Service{binary: binary, executor: executor, hub: hub, logger: logger}
}

// FetchVideo downloads one video according to its resolved options,
// publishing "downloading" progress notifications as output arrives.
func (s *Service) FetchVideo(ctx context.Context, req VideoRequest) error {
	if req.Options.Folder == "" {
		return shared.ErrNoRootFolder
	}

	args := videoArgs(req)
	parser := NewProgressParser(req.Options.Format)

	s.logger.Info("starting download", "video", req.SourceID, "format", req.Options.Format, "quality", req.Options.Quality)

	err := s.executor.Run(ctx, s.binary, args, func(line string) {
		progress, emit := parser.Feed(line)
		if !emit {
			return
		}
		s.hub.Publish(notify.GroupPlaylists, notify.Message{
			"playlist_id":    req.PlaylistID,
			"video_id":       req.VideoID,
			"video_title":    req.Title,
			"status":         "downloading",
			"progress":       progress.Percent,
			"download_stage": progress.Stage,
		})
	})
	if err != nil {
		return fmt.Errorf("download of %s: %w", req.SourceID, err)
	}

	return nil
}

// FetchAvatar downloads an uploader's channel avatar into the avatar
// directory, named by the uploader's internal id.
func (s *Service) FetchAvatar(ctx context.Context, avatarDir, uploaderID, channelURL string) error {
	args := []string{
		"--write-thumbnail",
		"--playlist-items", "0",
		"--skip-download",
		"-o", filepath.Join(avatarDir, uploaderID+".%(ext)s"),
		channelURL,
	}

	if err := s.executor.Run(ctx, s.binary, args, func(string) {}); err != nil {
		return fmt.Errorf("avatar fetch for %s: %w", uploaderID, err)
	}

	return nil
}

// videoArgs builds the fetch tool invocation for one video download
func videoArgs(req VideoRequest) []string {
	outTitle := req.OutTitle
	if outTitle == "" {
		outTitle = "%(title)s"
	} else {
		outTitle = shared.SanitizeTitle(outTitle)
	}
	outDir := req.Options.Folder
	if req.Options.SubPath != "" {
		outDir = filepath.Join(outDir, req.Options.SubPath)
	}

	args := []string{
		"--progress",
		"--newline",
		"--no-playlist",
		"--embed-thumbnail",
		"--embed-metadata",
		"-o", filepath.Join(outDir, outTitle+".%(ext)s"),
	}

	if req.Options.Format == models.FormatAudio {
		args = append(args, "-x")
	} else {
		args = append(args, "-f", formatSelector(req.Options.Quality))
	}

	if req.Options.Subtitles {
		args = append(args, "--write-sub", "--sub-lang", "en", "--convert-subs", "srt")
	}

	return append(args, "--", req.SourceID)
}

// formatSelector builds the yt-dlp -f expression for a video quality
func formatSelector(quality models.Quality) string {
	height := quality.Height()
	if height == 0 {
		return "bestvideo+bestaudio/best"
	}
	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", height, height)
}
