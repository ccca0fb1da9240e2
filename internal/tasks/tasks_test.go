package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/SayWess/Musicarr/internal/download"
	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tracker"
)

// fakeSource is an in-memory MetadataSource
type fakeSource struct {
	playlists map[string]*services.PlaylistInfo
	items     map[string][]string
	videos    map[string]services.VideoDetail
	err       error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) GetPlaylist(_ context.Context, id string) (*services.PlaylistInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info, ok := f.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return info, nil
}

func (f *fakeSource) GetPlaylistItems(_ context.Context, id string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items[id], nil
}

func (f *fakeSource) GetVideos(_ context.Context, ids []string) ([]services.VideoDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	var details []services.VideoDetail
	for _, id := range ids {
		if detail, ok := f.videos[id]; ok {
			details = append(details, detail)
		}
	}
	return details, nil
}

func (f *fakeSource) Search(_ context.Context, _ string) ([]services.SearchResult, error) {
	return nil, nil
}

// fakeDownloader records fetches and fails the source ids listed in failing
type fakeDownloader struct {
	fetched []download.VideoRequest
	avatars []string
	failing map[string]bool
}

func (f *fakeDownloader) FetchVideo(_ context.Context, req download.VideoRequest) error {
	f.fetched = append(f.fetched, req)
	if f.failing[req.SourceID] {
		return errors.New("exit status 1")
	}
	return nil
}

func (f *fakeDownloader) FetchAvatar(_ context.Context, _, uploaderID, _ string) error {
	f.avatars = append(f.avatars, uploaderID)
	return nil
}

type testEnv struct {
	db     *sql.DB
	engine *Engine
	repos  Repos
	source *fakeSource
	dl     *fakeDownloader
	hub    *notify.Hub
	jobs   *tracker.Tracker
}

func setupEngine(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repos := Repos{
		Playlists:   repositories.NewPlaylistRepository(db),
		Videos:      repositories.NewVideoRepository(db),
		Memberships: repositories.NewPlaylistVideoRepository(db),
		Uploaders:   repositories.NewUploaderRepository(db),
		Roots:       repositories.NewRootFolderRepository(db),
	}

	source := &fakeSource{
		playlists: map[string]*services.PlaylistInfo{
			"PL123": {
				ID:           "PL123",
				Title:        "Road Trip",
				Description:  "desc",
				Thumbnail:    "http://img/pl.jpg",
				ChannelID:    "UC1",
				ChannelTitle: "Chan",
				ChannelURL:   "https://www.youtube.com/channel/UC1",
			},
		},
		items: map[string][]string{
			"PL123": {"vidA", "vidB"},
		},
		videos: map[string]services.VideoDetail{
			"vidA": {ID: "vidA", Title: "Song A", UploadDate: "20240101", Duration: "3:00", ChannelID: "UC1", ChannelTitle: "Chan"},
			"vidB": {ID: "vidB", Title: "Song B", UploadDate: "20240301", Duration: "2:51", ChannelID: "UC2", ChannelTitle: "Other"},
		},
	}

	dl := &fakeDownloader{failing: map[string]bool{}}
	logger := shared.NewLogger(io.Discard)
	hub := notify.NewHub(logger)
	jobs := tracker.New()

	engine := NewEngine(repos, source, dl, jobs, hub, logger, "/data/metadata/avatars")

	return &testEnv{db: db, engine: engine, repos: repos, source: source, dl: dl, hub: hub, jobs: jobs}
}

// addRoot configures a default storage root
func (env *testEnv) addRoot(t *testing.T, path string) *models.RootFolder {
	t.Helper()
	root := &models.RootFolder{Path: path}
	if err := env.repos.Roots.Create(root); err != nil {
		t.Fatalf("failed to create root folder: %v", err)
	}
	return root
}

// drain collects every message currently buffered on the subscriber
func drain(sub *notify.Subscriber) []notify.Message {
	var msgs []notify.Message
	for {
		select {
		case msg := <-sub.C():
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestAddPlaylist(t *testing.T) {
	t.Run("ReconcilesFromUpstream", func(t *testing.T) {
		env := setupEngine(t)
		sub := env.hub.Subscribe(notify.GroupUploaders)
		defer env.hub.Unsubscribe(notify.GroupUploaders, sub)

		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if playlist.Title != "Road Trip" {
			t.Errorf("title = %q, want Road Trip", playlist.Title)
		}
		if playlist.LastPublished != "20240301" {
			t.Errorf("last_published = %q, want 20240301", playlist.LastPublished)
		}
		if playlist.UploaderID == "" {
			t.Error("playlist uploader not linked")
		}

		memberships, _ := env.repos.Memberships.ListByPlaylist(playlist.ID)
		if len(memberships) != 2 {
			t.Fatalf("expected 2 memberships, got %d", len(memberships))
		}
		for _, pv := range memberships {
			if pv.State != models.StateIdle {
				t.Errorf("new membership state = %s, want IDLE", pv.State)
			}
		}

		// Both channels were new, so both avatars were fetched.
		if len(env.dl.avatars) != 2 {
			t.Errorf("expected 2 avatar fetches, got %d", len(env.dl.avatars))
		}
		msgs := drain(sub)
		if len(msgs) != 2 {
			t.Errorf("expected 2 uploader notifications, got %d", len(msgs))
		}
	})

	t.Run("FailedFirstFetchRemovesPlaylist", func(t *testing.T) {
		env := setupEngine(t)

		if _, err := env.engine.AddPlaylist(context.Background(), "PLmissing"); err == nil {
			t.Fatal("expected error for unknown playlist")
		}

		if _, err := env.repos.Playlists.GetBySourceID("PLmissing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("half-registered playlist left behind: %v", err)
		}
	})

	t.Run("Duplicate", func(t *testing.T) {
		env := setupEngine(t)

		if _, err := env.engine.AddPlaylist(context.Background(), "PL123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := env.engine.AddPlaylist(context.Background(), "PL123"); !errors.Is(err, shared.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("InitializesFolderFromDefaultRoot", func(t *testing.T) {
		env := setupEngine(t)
		env.addRoot(t, "/media/Music")

		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if playlist.Folder != "/media/Music" {
			t.Errorf("folder = %q, want /media/Music", playlist.Folder)
		}
	})
}

func TestRefreshPlaylist(t *testing.T) {
	t.Run("PreservesPolicyAndState", func(t *testing.T) {
		env := setupEngine(t)

		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := env.repos.Playlists.UpdateSettings(playlist.ID, map[string]any{
			"folder":          "/media/Music",
			"check_every_day": true,
		}); err != nil {
			t.Fatalf("failed to update settings: %v", err)
		}

		videoA, _ := env.repos.Videos.GetBySourceID("vidA")
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		env.repos.Memberships.SetState(pv.ID, models.StateDownloaded)

		// Upstream renames the playlist.
		env.source.playlists["PL123"].Title = "Road Trip 2"

		if err := env.engine.RefreshPlaylist(context.Background(), playlist.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		refreshed, _ := env.repos.Playlists.Get(playlist.ID)
		if refreshed.Title != "Road Trip 2" {
			t.Errorf("title not refreshed: %q", refreshed.Title)
		}
		if refreshed.Folder != "/media/Music" || !refreshed.CheckEveryDay {
			t.Errorf("policy fields lost on refresh: %+v", refreshed)
		}

		after, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		if after.State != models.StateDownloaded {
			t.Errorf("membership state reset to %s", after.State)
		}

		memberships, _ := env.repos.Memberships.ListByPlaylist(playlist.ID)
		if len(memberships) != 2 {
			t.Errorf("memberships duplicated: %d", len(memberships))
		}
	})

	t.Run("MarksMissingVideoUnavailable", func(t *testing.T) {
		env := setupEngine(t)

		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// vidB disappears upstream but stays listed in the playlist.
		delete(env.source.videos, "vidB")

		if err := env.engine.RefreshPlaylist(context.Background(), playlist.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		videoB, err := env.repos.Videos.GetBySourceID("vidB")
		if err != nil {
			t.Fatalf("video row disappeared: %v", err)
		}
		if videoB.Available {
			t.Error("missing video still marked available")
		}
		if videoB.Title != "Song B" {
			t.Errorf("descriptive metadata of unavailable video lost: %q", videoB.Title)
		}

		if _, err := env.repos.Memberships.GetByPair(playlist.ID, videoB.ID); err != nil {
			t.Errorf("membership of unavailable video dropped: %v", err)
		}
	})

	t.Run("ConcurrentRefreshRejected", func(t *testing.T) {
		env := setupEngine(t)

		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		env.jobs.TryClaim(tracker.PlaylistFetch(playlist.ID))
		defer env.jobs.Release(tracker.PlaylistFetch(playlist.ID))

		if err := env.engine.RefreshPlaylist(context.Background(), playlist.ID); !errors.Is(err, shared.ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
	})
}

func TestAddVideo(t *testing.T) {
	env := setupEngine(t)

	video, err := env.engine.AddVideo(context.Background(), "vidA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if video.Title != "Song A" {
		t.Errorf("title = %q", video.Title)
	}

	sentinel, err := env.repos.Playlists.GetBySourceID(models.SentinelPlaylistID)
	if err != nil {
		t.Fatalf("sentinel playlist missing: %v", err)
	}
	if sentinel.Title != models.SentinelPlaylistTitle {
		t.Errorf("sentinel title = %q", sentinel.Title)
	}
	if _, err := env.repos.Memberships.GetByPair(sentinel.ID, video.ID); err != nil {
		t.Errorf("membership under sentinel missing: %v", err)
	}

	t.Run("Duplicate", func(t *testing.T) {
		again, err := env.engine.AddVideo(context.Background(), "vidA")
		if !errors.Is(err, shared.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if again == nil || again.ID != video.ID {
			t.Errorf("existing row not returned: %+v", again)
		}
	})

	t.Run("UnknownVideo", func(t *testing.T) {
		if _, err := env.engine.AddVideo(context.Background(), "nope"); !errors.Is(err, shared.ErrVideoUnavailable) {
			t.Fatalf("expected ErrVideoUnavailable, got %v", err)
		}
	})
}

func TestDownloadPlaylist(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, *models.Playlist) {
		env := setupEngine(t)
		env.addRoot(t, "/media/Music")
		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return env, playlist
	}

	t.Run("DownloadsPending", func(t *testing.T) {
		env, playlist := setup(t)

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total != 2 || summary.Failed != 0 || summary.UpToDate {
			t.Errorf("unexpected summary: %+v", summary)
		}
		if len(env.dl.fetched) != 2 {
			t.Fatalf("expected 2 fetches, got %d", len(env.dl.fetched))
		}

		memberships, _ := env.repos.Memberships.ListByPlaylist(playlist.ID)
		for _, pv := range memberships {
			if pv.State != models.StateDownloaded {
				t.Errorf("membership state = %s, want DOWNLOADED", pv.State)
			}
		}
	})

	t.Run("UpToDateSkipsDownloaded", func(t *testing.T) {
		env, playlist := setup(t)

		if _, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		env.dl.fetched = nil

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !summary.UpToDate || len(env.dl.fetched) != 0 {
			t.Errorf("expected up-to-date with no fetches, got %+v, %d fetches", summary, len(env.dl.fetched))
		}
	})

	t.Run("RedownloadAll", func(t *testing.T) {
		env, playlist := setup(t)

		if _, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		env.dl.fetched = nil

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Total != 2 || len(env.dl.fetched) != 2 {
			t.Errorf("redownload all should refetch everything: %+v", summary)
		}
	})

	t.Run("PartialFailure", func(t *testing.T) {
		env, playlist := setup(t)
		env.dl.failing["vidB"] = true

		sub := env.hub.Subscribe(notify.GroupPlaylists)
		defer env.hub.Unsubscribe(notify.GroupPlaylists, sub)

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Failed != 1 {
			t.Errorf("failed = %d, want 1", summary.Failed)
		}

		videoB, _ := env.repos.Videos.GetBySourceID("vidB")
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoB.ID)
		if pv.State != models.StateError {
			t.Errorf("failed membership state = %s, want ERROR", pv.State)
		}

		var foundSummary bool
		for _, msg := range drain(sub) {
			if failed, ok := msg["nb_download_failed"]; ok {
				foundSummary = true
				if failed != 1 {
					t.Errorf("nb_download_failed = %v", failed)
				}
				if msg["download_success"] != false {
					t.Errorf("download_success = %v", msg["download_success"])
				}
			}
		}
		if !foundSummary {
			t.Error("summary notification not published")
		}
	})

	t.Run("SkipsUnavailable", func(t *testing.T) {
		env, playlist := setup(t)

		delete(env.source.videos, "vidB")
		if err := env.engine.RefreshPlaylist(context.Background(), playlist.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Unavailable != 1 {
			t.Errorf("unavailable = %d, want 1", summary.Unavailable)
		}
		for _, req := range env.dl.fetched {
			if req.SourceID == "vidB" {
				t.Error("unavailable video was fetched")
			}
		}
	})

	t.Run("SkipsInFlightMember", func(t *testing.T) {
		env, playlist := setup(t)

		videoA, _ := env.repos.Videos.GetBySourceID("vidA")
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		if err := env.repos.Memberships.SetState(pv.ID, models.StateDownloading); err != nil {
			t.Fatalf("failed to set state: %v", err)
		}
		env.jobs.TryClaim(tracker.VideoDownload(playlist.ID, pv.ID))
		defer env.jobs.Release(tracker.VideoDownload(playlist.ID, pv.ID))

		summary, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if summary.Failed != 0 {
			t.Errorf("in-flight member counted as failure: %+v", summary)
		}
		if summary.Total != 1 {
			t.Errorf("total = %d, want 1", summary.Total)
		}
	})

	t.Run("RejectedWhileFetching", func(t *testing.T) {
		env, playlist := setup(t)

		env.jobs.TryClaim(tracker.PlaylistFetch(playlist.ID))
		defer env.jobs.Release(tracker.PlaylistFetch(playlist.ID))

		if _, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false); !errors.Is(err, shared.ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
	})

	t.Run("NoRootFolder", func(t *testing.T) {
		env := setupEngine(t)
		playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false); !errors.Is(err, shared.ErrNoRootFolder) {
			t.Fatalf("expected ErrNoRootFolder, got %v", err)
		}
	})

	t.Run("UnknownFolderFallsBackToDefault", func(t *testing.T) {
		env, playlist := setup(t)

		if err := env.repos.Playlists.UpdateSettings(playlist.ID, map[string]any{"folder": "/not/a/root"}); err != nil {
			t.Fatalf("failed to update settings: %v", err)
		}

		if _, err := env.engine.DownloadPlaylist(context.Background(), playlist.ID, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, req := range env.dl.fetched {
			if req.Options.Folder != "/media/Music" {
				t.Errorf("folder = %q, want default root", req.Options.Folder)
			}
		}
	})
}

func TestDownloadVideo(t *testing.T) {
	env := setupEngine(t)
	env.addRoot(t, "/media/Music")
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	videoA, _ := env.repos.Videos.GetBySourceID("vidA")

	t.Run("AppliesOverrides", func(t *testing.T) {
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		format := models.FormatVideo
		quality := models.Quality1080p
		title := "Renamed"
		pv.Format = &format
		pv.Quality = &quality
		pv.CustomTitle = &title
		if err := env.repos.Memberships.UpdateOverrides(pv); err != nil {
			t.Fatalf("failed to set overrides: %v", err)
		}

		if err := env.engine.DownloadVideo(context.Background(), playlist.ID, videoA.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		req := env.dl.fetched[len(env.dl.fetched)-1]
		if req.Options.Format != models.FormatVideo || req.Options.Quality != models.Quality1080p {
			t.Errorf("overrides not applied: %+v", req.Options)
		}
		if req.OutTitle != "Renamed" {
			t.Errorf("custom title not applied: %q", req.OutTitle)
		}
	})

	t.Run("NotInPlaylist", func(t *testing.T) {
		stray := &models.Video{SourceID: "stray", Title: "Stray", Available: true}
		if err := env.repos.Videos.Create(stray); err != nil {
			t.Fatalf("failed to create video: %v", err)
		}

		sub := env.hub.Subscribe(notify.GroupPlaylists)
		defer env.hub.Unsubscribe(notify.GroupPlaylists, sub)

		err := env.engine.DownloadVideo(context.Background(), playlist.ID, stray.ID)
		if !errors.Is(err, shared.ErrMembershipNotFound) {
			t.Fatalf("expected ErrMembershipNotFound, got %v", err)
		}

		msgs := drain(sub)
		if len(msgs) != 1 || msgs[0]["status"] != "error" || msgs[0]["message"] == nil {
			t.Errorf("missing error notification, got %v", msgs)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		videoB, _ := env.repos.Videos.GetBySourceID("vidB")
		videoB.Available = false
		if err := env.repos.Videos.Update(videoB); err != nil {
			t.Fatalf("failed to update video: %v", err)
		}

		sub := env.hub.Subscribe(notify.GroupPlaylists)
		defer env.hub.Unsubscribe(notify.GroupPlaylists, sub)

		err := env.engine.DownloadVideo(context.Background(), playlist.ID, videoB.ID)
		if !errors.Is(err, shared.ErrVideoUnavailable) {
			t.Fatalf("expected ErrVideoUnavailable, got %v", err)
		}

		msgs := drain(sub)
		if len(msgs) != 1 || msgs[0]["status"] != "error" || msgs[0]["video_title"] != "Song B" {
			t.Errorf("missing error notification, got %v", msgs)
		}
	})
}

func TestDownloadStatus(t *testing.T) {
	env := setupEngine(t)
	env.addRoot(t, "/media/Music")
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("HealsStuckMemberships", func(t *testing.T) {
		videoA, _ := env.repos.Videos.GetBySourceID("vidA")
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		env.repos.Memberships.SetState(pv.ID, models.StateDownloading)

		downloading, err := env.engine.DownloadStatus(playlist.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if downloading {
			t.Error("no claim held, status should be idle")
		}

		healed, _ := env.repos.Memberships.Get(pv.ID)
		if healed.State != models.StateIdle {
			t.Errorf("stuck membership not healed: %s", healed.State)
		}
	})

	t.Run("LiveClaimSurvives", func(t *testing.T) {
		videoA, _ := env.repos.Videos.GetBySourceID("vidA")
		pv, _ := env.repos.Memberships.GetByPair(playlist.ID, videoA.ID)
		env.repos.Memberships.SetState(pv.ID, models.StateDownloading)

		key := tracker.VideoDownload(playlist.ID, pv.ID)
		env.jobs.TryClaim(key)
		defer env.jobs.Release(key)

		downloading, err := env.engine.DownloadStatus(playlist.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !downloading {
			t.Error("live claim should report downloading")
		}

		kept, _ := env.repos.Memberships.Get(pv.ID)
		if kept.State != models.StateDownloading {
			t.Errorf("live download was healed away: %s", kept.State)
		}
	})
}

func TestDownloadAvatar(t *testing.T) {
	env := setupEngine(t)

	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetched := len(env.dl.avatars)

	sub := env.hub.Subscribe(notify.GroupUploaders)
	defer env.hub.Unsubscribe(notify.GroupUploaders, sub)

	if err := env.engine.DownloadAvatar(context.Background(), playlist.UploaderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(env.dl.avatars) != fetched+1 {
		t.Errorf("avatar fetches = %d, want %d", len(env.dl.avatars), fetched+1)
	}
	msgs := drain(sub)
	if len(msgs) != 1 || msgs[0]["avatar_downloaded"] != true {
		t.Errorf("unexpected notifications: %v", msgs)
	}

	t.Run("ConcurrentClaimRejected", func(t *testing.T) {
		env.jobs.TryClaim(tracker.AvatarDownload(playlist.UploaderID))
		defer env.jobs.Release(tracker.AvatarDownload(playlist.UploaderID))

		if err := env.engine.DownloadAvatar(context.Background(), playlist.UploaderID); !errors.Is(err, shared.ErrAlreadyInProgress) {
			t.Fatalf("expected ErrAlreadyInProgress, got %v", err)
		}
	})

	t.Run("UnknownUploader", func(t *testing.T) {
		if err := env.engine.DownloadAvatar(context.Background(), "nope"); !errors.Is(err, shared.ErrUploaderNotFound) {
			t.Fatalf("expected ErrUploaderNotFound, got %v", err)
		}
	})
}

func TestRemoveVideo(t *testing.T) {
	env := setupEngine(t)
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	videoA, _ := env.repos.Videos.GetBySourceID("vidA")

	if err := env.engine.RemoveVideo(playlist.ID, videoA.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// vidA had no other memberships, so the row is gone.
	if _, err := env.repos.Videos.GetBySourceID("vidA"); !errors.Is(err, shared.ErrVideoNotFound) {
		t.Errorf("orphan video not collected: %v", err)
	}
	// vidB still linked, still present.
	if _, err := env.repos.Videos.GetBySourceID("vidB"); err != nil {
		t.Errorf("linked video collected: %v", err)
	}
}

func TestUpdatePlaylistSettingsNotifies(t *testing.T) {
	env := setupEngine(t)
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := env.hub.Subscribe(notify.GroupPlaylists)
	defer env.hub.Unsubscribe(notify.GroupPlaylists, sub)

	if err := env.engine.UpdatePlaylistSettings(playlist.ID, map[string]any{"default_format": "VIDEO"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := drain(sub)
	if len(msgs) != 1 || msgs[0]["options_updated"] != true {
		t.Errorf("expected options_updated notification, got %v", msgs)
	}
}

func TestExportImport(t *testing.T) {
	env := setupEngine(t)
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.repos.Playlists.UpdateSettings(playlist.ID, map[string]any{
		"default_format":  "VIDEO",
		"check_every_day": true,
		"folder":          "/media/Music",
	}); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}

	var buf bytes.Buffer
	if err := env.engine.ExportLibrary(&buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	t.Run("RoundTripIntoFreshInstance", func(t *testing.T) {
		fresh := setupEngine(t)

		result, err := fresh.engine.ImportLibrary(context.Background(), bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Imported != 1 || result.Skipped != 0 {
			t.Errorf("unexpected result: %+v", result)
		}

		imported, err := fresh.repos.Playlists.GetBySourceID("PL123")
		if err != nil {
			t.Fatalf("imported playlist missing: %v", err)
		}
		if imported.DefaultFormat != models.FormatVideo || !imported.CheckEveryDay || imported.Folder != "/media/Music" {
			t.Errorf("policy not restored: %+v", imported)
		}
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		result, err := env.engine.ImportLibrary(context.Background(), bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Imported != 0 || result.Skipped != 1 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("CarriesStandaloneVideos", func(t *testing.T) {
		if _, err := env.engine.AddVideo(context.Background(), "vidA"); err != nil {
			t.Fatalf("failed to add standalone video: %v", err)
		}

		var snapshot bytes.Buffer
		if err := env.engine.ExportLibrary(&snapshot); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		fresh := setupEngine(t)
		result, err := fresh.engine.ImportLibrary(context.Background(), &snapshot)
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Imported != 2 {
			t.Errorf("imported = %d, want 2", result.Imported)
		}
		if _, err := fresh.repos.Videos.GetBySourceID("vidA"); err != nil {
			t.Errorf("standalone video not restored: %v", err)
		}
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		if _, err := env.engine.ImportLibrary(context.Background(), bytes.NewReader([]byte("not json"))); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestScheduler(t *testing.T) {
	t.Run("RefreshAllContinuesPastFailures", func(t *testing.T) {
		env := setupEngine(t)

		if _, err := env.engine.AddPlaylist(context.Background(), "PL123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// A second playlist whose upstream vanished after registration.
		env.source.playlists["PLother"] = &services.PlaylistInfo{ID: "PLother", Title: "Other", ChannelID: "UC1", ChannelTitle: "Chan"}
		if _, err := env.engine.AddPlaylist(context.Background(), "PLother"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		delete(env.source.playlists, "PLother")

		env.source.playlists["PL123"].Title = "Renamed"

		scheduler := NewScheduler(env.engine, 0, 0, shared.NewLogger(io.Discard))
		scheduler.RefreshAll(context.Background())

		refreshed, _ := env.repos.Playlists.GetBySourceID("PL123")
		if refreshed.Title != "Renamed" {
			t.Error("healthy playlist not refreshed after a failing one")
		}
	})

	t.Run("DownloadDailyCheckOnlyFlagged", func(t *testing.T) {
		env := setupEngine(t)
		env.addRoot(t, "/media/Music")

		daily, err := env.engine.AddPlaylist(context.Background(), "PL123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := env.repos.Playlists.UpdateSettings(daily.ID, map[string]any{"check_every_day": true}); err != nil {
			t.Fatalf("failed to flag playlist: %v", err)
		}

		env.source.playlists["PLother"] = &services.PlaylistInfo{ID: "PLother", Title: "Other", ChannelID: "UC1", ChannelTitle: "Chan"}
		env.source.items["PLother"] = []string{"vidA"}
		if _, err := env.engine.AddPlaylist(context.Background(), "PLother"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		env.dl.fetched = nil
		scheduler := NewScheduler(env.engine, 0, 0, shared.NewLogger(io.Discard))
		scheduler.DownloadDailyCheck(context.Background())

		if len(env.dl.fetched) != 2 {
			t.Fatalf("expected 2 fetches for the daily playlist, got %d", len(env.dl.fetched))
		}
		for _, req := range env.dl.fetched {
			if req.PlaylistID != daily.ID {
				t.Errorf("non-flagged playlist downloaded: %+v", req)
			}
		}
	})
}
