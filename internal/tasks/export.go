package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// LibraryExport is the portable snapshot of the mirror's configuration:
// which playlists are tracked and with what policy, plus the source ids of
// standalone videos. Video metadata and download state are deliberately not
// exported; a fresh instance rebuilds them from upstream.
type LibraryExport struct {
	ExportedAt string           `json:"exported_at"`
	Playlists  []PlaylistExport `json:"playlists"`
	Videos     []string         `json:"videos,omitempty"`
}

// PlaylistExport is one tracked playlist inside a [LibraryExport].
type PlaylistExport struct {
	SourceID         string                `json:"source_id"`
	Title            string                `json:"title"`
	Folder           string                `json:"folder,omitempty"`
	DownloadPath     string                `json:"download_path,omitempty"`
	CheckEveryDay    bool                  `json:"check_every_day"`
	DefaultFormat    models.DownloadFormat `json:"default_format"`
	DefaultQuality   models.Quality        `json:"default_quality"`
	DefaultSubtitles bool                  `json:"default_subtitles"`
}

// ExportLibrary writes the tracked playlists and their policies as JSON
func (e *Engine) ExportLibrary(w io.Writer) error {
	playlists, err := e.repos.Playlists.List()
	if err != nil {
		return err
	}

	export := LibraryExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Playlists:  make([]PlaylistExport, 0, len(playlists)),
	}
	for _, p := range playlists {
		export.Playlists = append(export.Playlists, PlaylistExport{
			SourceID:         p.SourceID,
			Title:            p.Title,
			Folder:           p.Folder,
			DownloadPath:     p.DownloadPath,
			CheckEveryDay:    p.CheckEveryDay,
			DefaultFormat:    p.DefaultFormat,
			DefaultQuality:   p.DefaultQuality,
			DefaultSubtitles: p.DefaultSubtitles,
		})
	}

	sentinel, err := e.repos.Playlists.GetBySourceID(models.SentinelPlaylistID)
	if err == nil {
		memberships, err := e.repos.Memberships.ListByPlaylist(sentinel.ID)
		if err != nil {
			return err
		}
		for _, pv := range memberships {
			video, err := e.repos.Videos.Get(pv.VideoID)
			if err != nil {
				return err
			}
			export.Videos = append(export.Videos, video.SourceID)
		}
	} else if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportResult reports how an import went.
type ImportResult struct {
	Imported int
	Skipped  int // Entries already tracked or unreachable upstream
}

// ImportLibrary reads a [LibraryExport] and registers the playlists it
// names, restoring their policies, then re-adds the standalone videos.
// Playlists already tracked are skipped, as are videos that already exist
// or cannot be fetched. Imported playlists hold their exported title until
// the next refresh replaces it with upstream metadata.
func (e *Engine) ImportLibrary(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var export LibraryExport
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	result := &ImportResult{}
	for _, entry := range export.Playlists {
		if entry.SourceID == "" || entry.SourceID == models.SentinelPlaylistID {
			result.Skipped++
			continue
		}

		_, err := e.repos.Playlists.GetBySourceID(entry.SourceID)
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			return nil, err
		}

		title := entry.Title
		if title == "" {
			title = entry.SourceID
		}
		format := entry.DefaultFormat
		if format == "" {
			format = models.FormatAudio
		}
		quality := entry.DefaultQuality
		if quality == "" {
			quality = models.QualityBest
		}

		playlist := &models.Playlist{
			SourceID:         entry.SourceID,
			Title:            title,
			Folder:           entry.Folder,
			DownloadPath:     entry.DownloadPath,
			CheckEveryDay:    entry.CheckEveryDay,
			DefaultFormat:    format,
			DefaultQuality:   quality,
			DefaultSubtitles: entry.DefaultSubtitles,
		}
		if err := e.repos.Playlists.Create(playlist); err != nil {
			return nil, err
		}
		result.Imported++
	}

	for _, sourceID := range export.Videos {
		if sourceID == "" {
			result.Skipped++
			continue
		}
		if _, err := e.repos.Videos.GetBySourceID(sourceID); err == nil {
			result.Skipped++
			continue
		} else if !errors.Is(err, shared.ErrVideoNotFound) {
			return nil, err
		}

		if _, err := e.AddVideo(ctx, sourceID); err != nil {
			e.logger.Warn("import: video not re-added", "source_id", sourceID, "error", err)
			result.Skipped++
			continue
		}
		result.Imported++
	}

	return result, nil
}
