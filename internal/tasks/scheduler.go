package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// Scheduler runs the periodic maintenance passes: a refresh of every
// playlist's metadata, and a refresh-plus-download of the playlists flagged
// check_every_day. Both passes work sequentially, logging and continuing on
// per-playlist failure so one broken playlist never blocks the rest.
//
// Serve blocks until its context is canceled, which makes the scheduler a
// suture-supervisable service.
type Scheduler struct {
	engine           *Engine
	refreshInterval  time.Duration
	downloadInterval time.Duration
	logger           *log.Logger
}

// NewScheduler creates a scheduler around the engine. Non-positive
// intervals disable the corresponding pass.
func NewScheduler(engine *Engine, refreshInterval, downloadInterval time.Duration, logger *log.Logger) *Scheduler {
	return &Scheduler{
		engine:           engine,
		refreshInterval:  refreshInterval,
		downloadInterval: downloadInterval,
		logger:           logger,
	}
}

// String names the service in supervisor logs
func (s *Scheduler) String() string {
	return "scheduler"
}

// Serve runs the periodic passes until ctx is canceled
func (s *Scheduler) Serve(ctx context.Context) error {
	refresh := newTicker(s.refreshInterval)
	download := newTicker(s.downloadInterval)
	defer refresh.Stop()
	defer download.Stop()

	s.logger.Info("scheduler started",
		"refresh_interval", s.refreshInterval,
		"download_interval", s.downloadInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			s.RefreshAll(ctx)
		case <-download.C:
			s.DownloadDailyCheck(ctx)
		}
	}
}

// newTicker returns a ticker that never fires for non-positive intervals
func newTicker(interval time.Duration) *time.Ticker {
	if interval <= 0 {
		ticker := time.NewTicker(time.Hour)
		ticker.Stop()
		return ticker
	}
	return time.NewTicker(interval)
}

// RefreshAll reconciles every playlist's metadata
func (s *Scheduler) RefreshAll(ctx context.Context) {
	playlists, err := s.engine.repos.Playlists.List()
	if err != nil {
		s.logger.Error("scheduled refresh: listing playlists failed", "error", err)
		return
	}

	s.logger.Info("scheduled refresh started", "playlists", len(playlists))
	for _, playlist := range playlists {
		if ctx.Err() != nil {
			return
		}
		if err := s.engine.RefreshPlaylist(ctx, playlist.ID); err != nil {
			s.logger.Error("scheduled refresh failed", "playlist", playlist.Title, "error", err)
		}
	}
}

// DownloadDailyCheck refreshes and downloads every playlist flagged
// check_every_day
func (s *Scheduler) DownloadDailyCheck(ctx context.Context) {
	playlists, err := s.engine.repos.Playlists.ListDailyCheck()
	if err != nil {
		s.logger.Error("scheduled download: listing playlists failed", "error", err)
		return
	}

	s.logger.Info("scheduled download started", "playlists", len(playlists))
	for _, playlist := range playlists {
		if ctx.Err() != nil {
			return
		}
		if err := s.engine.RefreshPlaylist(ctx, playlist.ID); err != nil {
			s.logger.Error("scheduled refresh failed", "playlist", playlist.Title, "error", err)
			continue
		}
		if _, err := s.engine.DownloadPlaylist(ctx, playlist.ID, false); err != nil {
			s.logger.Error("scheduled download failed", "playlist", playlist.Title, "error", err)
		}
	}
}
