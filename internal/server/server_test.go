package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/SayWess/Musicarr/internal/download"
	"github.com/SayWess/Musicarr/internal/notify"
	"github.com/SayWess/Musicarr/internal/repositories"
	"github.com/SayWess/Musicarr/internal/services"
	"github.com/SayWess/Musicarr/internal/shared"
	"github.com/SayWess/Musicarr/internal/tasks"
	"github.com/SayWess/Musicarr/internal/tracker"
)

type stubSource struct {
	playlists map[string]*services.PlaylistInfo
	items     map[string][]string
	videos    map[string]services.VideoDetail
	searches  []services.SearchResult
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) GetPlaylist(_ context.Context, id string) (*services.PlaylistInfo, error) {
	info, ok := s.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
	}
	return info, nil
}

func (s *stubSource) GetPlaylistItems(_ context.Context, id string) ([]string, error) {
	return s.items[id], nil
}

func (s *stubSource) GetVideos(_ context.Context, ids []string) ([]services.VideoDetail, error) {
	var details []services.VideoDetail
	for _, id := range ids {
		if detail, ok := s.videos[id]; ok {
			details = append(details, detail)
		}
	}
	return details, nil
}

func (s *stubSource) Search(_ context.Context, _ string) ([]services.SearchResult, error) {
	return s.searches, nil
}

type stubDownloader struct{}

func (stubDownloader) FetchVideo(context.Context, download.VideoRequest) error { return nil }
func (stubDownloader) FetchAvatar(context.Context, string, string, string) error {
	return nil
}

type apiEnv struct {
	srv    *httptest.Server
	repos  tasks.Repos
	engine *tasks.Engine
	root   string // media root on disk
}

func setupAPI(t *testing.T) *apiEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	repos := tasks.Repos{
		Playlists:   repositories.NewPlaylistRepository(db),
		Videos:      repositories.NewVideoRepository(db),
		Memberships: repositories.NewPlaylistVideoRepository(db),
		Uploaders:   repositories.NewUploaderRepository(db),
		Roots:       repositories.NewRootFolderRepository(db),
	}

	source := &stubSource{
		playlists: map[string]*services.PlaylistInfo{
			"PL123": {ID: "PL123", Title: "Road Trip", ChannelID: "UC1", ChannelTitle: "Chan"},
		},
		items: map[string][]string{"PL123": {"vidA"}},
		videos: map[string]services.VideoDetail{
			"vidA": {ID: "vidA", Title: "Song A", UploadDate: "20240101", Duration: "3:00", ChannelID: "UC1", ChannelTitle: "Chan"},
		},
		searches: []services.SearchResult{
			{VideoID: "vidZ", Title: "Hit", ChannelTitle: "Chan", PublishedAt: "20240501"},
		},
	}

	root := t.TempDir()
	cfg := shared.DefaultConfig()
	cfg.Storage.MediaRoot = root
	cfg.Storage.MetadataPath = filepath.Join(root, ".metadata")

	logger := shared.NewLogger(io.Discard)
	hub := notify.NewHub(logger)
	engine := tasks.NewEngine(repos, source, stubDownloader{}, tracker.New(), hub, logger, cfg.AvatarDir())

	router := NewAPIRouter(cfg, engine, repos, source, hub, logger)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiEnv{srv: srv, repos: repos, engine: engine, root: root}
}

// addPlaylist registers the stub playlist synchronously, bypassing the
// asynchronous endpoint.
func (env *apiEnv) addPlaylist(t *testing.T) string {
	t.Helper()
	playlist, err := env.engine.AddPlaylist(context.Background(), "PL123")
	if err != nil {
		t.Fatalf("failed to add playlist: %v", err)
	}
	return playlist.ID
}

func (env *apiEnv) request(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, env.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response: %v", err)
	}
	return resp, data
}

func TestPlaylistEndpoints(t *testing.T) {
	t.Run("ListWithCounts", func(t *testing.T) {
		env := setupAPI(t)
		env.addPlaylist(t)

		resp, body := env.request(t, http.MethodGet, "/api/playlists", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %s", resp.StatusCode, body)
		}

		var playlists []map[string]any
		if err := json.Unmarshal(body, &playlists); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(playlists) != 1 {
			t.Fatalf("expected 1 playlist, got %d", len(playlists))
		}
		if playlists[0]["title"] != "Road Trip" || playlists[0]["nb_videos"] != float64(1) {
			t.Errorf("unexpected playlist payload: %v", playlists[0])
		}
	})

	t.Run("AddValidation", func(t *testing.T) {
		env := setupAPI(t)

		resp, _ := env.request(t, http.MethodPost, "/api/playlists", `{}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("empty source_id: status = %d, want 400", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPost, "/api/playlists", `not json`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("garbage body: status = %d, want 400", resp.StatusCode)
		}

		env.addPlaylist(t)
		resp, _ = env.request(t, http.MethodPost, "/api/playlists", `{"source_id":"PL123"}`)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("duplicate: status = %d, want 409", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPost, "/api/playlists", `{"source_id":"PLnew"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Errorf("new playlist: status = %d, want 202", resp.StatusCode)
		}
	})

	t.Run("DetailIncludesMembers", func(t *testing.T) {
		env := setupAPI(t)
		id := env.addPlaylist(t)

		resp, body := env.request(t, http.MethodGet, "/api/playlists/"+id, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, body %s", resp.StatusCode, body)
		}

		var detail struct {
			Title  string `json:"title"`
			Videos []struct {
				Title string `json:"title"`
				State string `json:"state"`
			} `json:"videos"`
		}
		if err := json.Unmarshal(body, &detail); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(detail.Videos) != 1 || detail.Videos[0].Title != "Song A" || detail.Videos[0].State != "IDLE" {
			t.Errorf("unexpected detail payload: %+v", detail)
		}
	})

	t.Run("UnknownPlaylistIs404", func(t *testing.T) {
		env := setupAPI(t)
		resp, _ := env.request(t, http.MethodGet, "/api/playlists/nope", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})

	t.Run("StatusEndpoints", func(t *testing.T) {
		env := setupAPI(t)
		id := env.addPlaylist(t)

		resp, body := env.request(t, http.MethodGet, "/api/playlists/"+id+"/is_fetching", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"is_fetching":false`) {
			t.Errorf("is_fetching = %d %s", resp.StatusCode, body)
		}

		resp, body = env.request(t, http.MethodGet, "/api/playlists/"+id+"/download_status", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"is_downloading":false`) {
			t.Errorf("download_status = %d %s", resp.StatusCode, body)
		}

		memberships, err := env.repos.Memberships.ListByPlaylist(id)
		if err != nil || len(memberships) == 0 {
			t.Fatalf("no memberships: %v", err)
		}
		resp, body = env.request(t, http.MethodGet, "/api/playlists/"+id+"/videos/"+memberships[0].VideoID+"/download_status", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"is_downloading":false`) {
			t.Errorf("video download_status = %d %s", resp.StatusCode, body)
		}
	})

	t.Run("SettingsValidation", func(t *testing.T) {
		env := setupAPI(t)
		id := env.addPlaylist(t)

		resp, _ := env.request(t, http.MethodPatch, "/api/playlists/"+id, `{"nonsense":true}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("unknown field: status = %d, want 400", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPatch, "/api/playlists/"+id, `{"check_every_day":true}`)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("valid patch: status = %d, want 200", resp.StatusCode)
		}

		playlist, _ := env.repos.Playlists.Get(id)
		if !playlist.CheckEveryDay {
			t.Error("setting not persisted")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		env := setupAPI(t)
		id := env.addPlaylist(t)

		resp, _ := env.request(t, http.MethodDelete, "/api/playlists/"+id, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		resp, _ = env.request(t, http.MethodGet, "/api/playlists/"+id, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("deleted playlist still served: %d", resp.StatusCode)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		env := setupAPI(t)
		id := env.addPlaylist(t)
		video, _ := env.repos.Videos.GetBySourceID("vidA")

		path := "/api/playlists/" + id + "/videos/" + video.ID
		resp, _ := env.request(t, http.MethodPatch, path, `{"quality":"144p"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("invalid quality: status = %d, want 400", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPatch, path, `{"custom_folder":"../escape"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("traversal custom_folder: status = %d, want 400", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPatch, path, `{"format":"VIDEO","quality":"720p","custom_title":"Renamed"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}

		pv, _ := env.repos.Memberships.GetByPair(id, video.ID)
		if pv.Format == nil || pv.Quality == nil || pv.CustomTitle == nil {
			t.Fatalf("overrides not persisted: %+v", pv)
		}
		if *pv.CustomTitle != "Renamed" {
			t.Errorf("custom_title = %q", *pv.CustomTitle)
		}

		// An empty body clears everything back to playlist defaults.
		resp, _ = env.request(t, http.MethodPatch, path, `{}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		pv, _ = env.repos.Memberships.GetByPair(id, video.ID)
		if pv.Format != nil || pv.Quality != nil || pv.CustomTitle != nil {
			t.Errorf("overrides not cleared: %+v", pv)
		}
	})
}

func TestVideoEndpoints(t *testing.T) {
	t.Run("AddToSentinel", func(t *testing.T) {
		env := setupAPI(t)

		resp, body := env.request(t, http.MethodPost, "/api/videos", `{"source_id":"vidA"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, body %s", resp.StatusCode, body)
		}

		resp, _ = env.request(t, http.MethodPost, "/api/videos", `{"source_id":"vidA"}`)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("duplicate video: status = %d, want 409", resp.StatusCode)
		}

		resp, _ = env.request(t, http.MethodPost, "/api/videos", `{"source_id":"missing"}`)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("unavailable video: status = %d, want 422", resp.StatusCode)
		}
	})

	t.Run("LocalSearch", func(t *testing.T) {
		env := setupAPI(t)
		env.addPlaylist(t)

		resp, body := env.request(t, http.MethodGet, "/api/videos?query=song", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var videos []map[string]any
		if err := json.Unmarshal(body, &videos); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(videos) != 1 || videos[0]["title"] != "Song A" {
			t.Errorf("unexpected search payload: %v", videos)
		}
	})

	t.Run("UpstreamSearch", func(t *testing.T) {
		env := setupAPI(t)

		resp, _ := env.request(t, http.MethodGet, "/api/search", "")
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("missing query: status = %d, want 400", resp.StatusCode)
		}

		resp, body := env.request(t, http.MethodGet, "/api/search?query=hit", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var hits []map[string]any
		if err := json.Unmarshal(body, &hits); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(hits) != 1 || hits[0]["video_id"] != "vidZ" {
			t.Errorf("unexpected search payload: %v", hits)
		}
	})
}

func TestRootFolderEndpoints(t *testing.T) {
	env := setupAPI(t)

	t.Run("RejectsOutsideMediaRoot", func(t *testing.T) {
		resp, _ := env.request(t, http.MethodPost, "/api/root_folders", `{"path":"/etc"}`)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("RejectsBadFolderName", func(t *testing.T) {
		body := fmt.Sprintf(`{"path":%q}`, filepath.Join(env.root, "Mu*sic"))
		resp, _ := env.request(t, http.MethodPost, "/api/root_folders", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("FirstFolderIsDefault", func(t *testing.T) {
		body := fmt.Sprintf(`{"path":%q}`, filepath.Join(env.root, "Music"))
		resp, data := env.request(t, http.MethodPost, "/api/root_folders", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, body %s", resp.StatusCode, data)
		}

		var folder map[string]any
		if err := json.Unmarshal(data, &folder); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if folder["is_default"] != true {
			t.Errorf("first folder not default: %v", folder)
		}
	})

	t.Run("Mounts", func(t *testing.T) {
		if err := os.MkdirAll(filepath.Join(env.root, "Podcasts"), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}

		resp, data := env.request(t, http.MethodGet, "/api/mounts", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var listing struct {
			Directories []string `json:"directories"`
		}
		if err := json.Unmarshal(data, &listing); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		var found bool
		for _, dir := range listing.Directories {
			if strings.HasSuffix(dir, "Podcasts") {
				found = true
			}
		}
		if !found {
			t.Errorf("Podcasts not listed: %v", listing.Directories)
		}
	})

	t.Run("ListPrunesVanishedDirectory", func(t *testing.T) {
		gone := filepath.Join(env.root, "Vinyl")
		resp, _ := env.request(t, http.MethodPost, "/api/root_folders", fmt.Sprintf(`{"path":%q}`, gone))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if err := os.RemoveAll(gone); err != nil {
			t.Fatalf("failed to remove dir: %v", err)
		}

		_, data := env.request(t, http.MethodGet, "/api/root_folders", "")
		if strings.Contains(string(data), "Vinyl") {
			t.Errorf("vanished folder still listed: %s", data)
		}
	})

	t.Run("DeleteFilesRemovesDirectory", func(t *testing.T) {
		dir := filepath.Join(env.root, "Tapes")
		_, data := env.request(t, http.MethodPost, "/api/root_folders", fmt.Sprintf(`{"path":%q}`, dir))
		var folder map[string]any
		if err := json.Unmarshal(data, &folder); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}

		resp, _ := env.request(t, http.MethodDelete, "/api/root_folders/"+folder["id"].(string)+"?deleteFiles=true", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("directory still on disk")
		}
	})
}

func TestLibraryEndpoints(t *testing.T) {
	env := setupAPI(t)
	env.addPlaylist(t)

	resp, exported := env.request(t, http.MethodGet, "/api/library/export", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}

	// Importing into the same instance skips the known playlist.
	resp, body := env.request(t, http.MethodPost, "/api/library/import", string(exported))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d, body %s", resp.StatusCode, body)
	}
	var result map[string]int
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result["imported"] != 0 || result["skipped"] != 1 {
		t.Errorf("unexpected import result: %v", result)
	}
}
