package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// PlaylistRepository persists [models.Playlist] rows.
//
// Reconciliation only ever touches descriptive fields through [PlaylistRepository.Update];
// user policy fields change exclusively through [PlaylistRepository.UpdateSettings],
// which takes a field map validated against an allow-list.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

const playlistColumns = `id, source_id, title, description, thumbnail, last_published,
	folder, download_path, check_every_day, default_format, default_quality, default_subtitles,
	uploader_id, created_at, updated_at`

// playlistSettings maps update-request field names to columns. Fields outside
// this map are rejected so descriptive columns cannot be overwritten through
// the settings path.
var playlistSettings = map[string]string{
	"folder":            "folder",
	"download_path":     "download_path",
	"check_every_day":   "check_every_day",
	"default_format":    "default_format",
	"default_quality":   "default_quality",
	"default_subtitles": "default_subtitles",
}

// PlaylistCounts aggregates membership download progress for one playlist.
type PlaylistCounts struct {
	Total      int
	Downloaded int
}

// Create inserts a new playlist with a generated ID
func (r *PlaylistRepository) Create(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	playlist.ID = shared.GenerateID()
	playlist.CreatedAt = now
	playlist.UpdatedAt = now

	query := `
		INSERT INTO playlists (id, source_id, title, description, thumbnail, last_published,
			folder, download_path, check_every_day, default_format, default_quality, default_subtitles,
			uploader_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		playlist.ID,
		playlist.SourceID,
		playlist.Title,
		playlist.Description,
		playlist.Thumbnail,
		playlist.LastPublished,
		playlist.Folder,
		playlist.DownloadPath,
		playlist.CheckEveryDay,
		string(playlist.DefaultFormat),
		string(playlist.DefaultQuality),
		playlist.DefaultSubtitles,
		nullString(playlist.UploaderID),
		playlist.CreatedAt,
		playlist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a playlist by internal ID
func (r *PlaylistRepository) Get(id string) (*models.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySourceID retrieves a playlist by external source ID
func (r *PlaylistRepository) GetBySourceID(sourceID string) (*models.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE source_id = ?"
	return r.scanOne(r.db.QueryRow(query, sourceID))
}

// Update overwrites a playlist's descriptive fields, leaving policy columns
// untouched
func (r *PlaylistRepository) Update(playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	playlist.UpdatedAt = time.Now()

	query := `
		UPDATE playlists
		SET title = ?, description = ?, thumbnail = ?, last_published = ?, uploader_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		playlist.Title,
		playlist.Description,
		playlist.Thumbnail,
		playlist.LastPublished,
		nullString(playlist.UploaderID),
		playlist.UpdatedAt,
		playlist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return requireRows(result, shared.ErrPlaylistNotFound, playlist.ID)
}

// UpdateSettings applies a partial update to a playlist's policy fields.
// Unknown field names fail the whole update with [shared.ErrUnknownField]
// before anything is written.
func (r *PlaylistRepository) UpdateSettings(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty settings update", shared.ErrInvalidInput)
	}

	setClause := ""
	args := []any{}
	for name, value := range fields {
		column, ok := playlistSettings[name]
		if !ok {
			return fmt.Errorf("%w: %s", shared.ErrUnknownField, name)
		}
		value, err := normalizeSetting(name, value)
		if err != nil {
			return err
		}
		if setClause != "" {
			setClause += ", "
		}
		setClause += column + " = ?"
		args = append(args, value)
	}

	args = append(args, time.Now(), id)
	query := "UPDATE playlists SET " + setClause + ", updated_at = ? WHERE id = ?"

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update playlist settings: %w", err)
	}

	return requireRows(result, shared.ErrPlaylistNotFound, id)
}

// normalizeSetting validates enum-valued and path settings before they
// reach the database
func normalizeSetting(name string, value any) (any, error) {
	switch name {
	case "default_format":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: default_format must be a string", shared.ErrInvalidInput)
		}
		format, err := models.ParseFormat(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return string(format), nil
	case "default_quality":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: default_quality must be a string", shared.ErrInvalidInput)
		}
		quality, err := models.ParseQuality(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return string(quality), nil
	case "download_path":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: download_path must be a string", shared.ErrInvalidInput)
		}
		// The path later joins onto the root folder, so every component
		// must be a plain folder name. Empty clears the override.
		if s != "" && !shared.IsValidFolderPath(s) {
			return nil, fmt.Errorf("%w: %s", shared.ErrInvalidPath, s)
		}
		return s, nil
	case "check_every_day", "default_subtitles":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", shared.ErrInvalidInput, name)
		}
		return b, nil
	default:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", shared.ErrInvalidInput, name)
		}
		return s, nil
	}
}

// Delete removes a playlist; memberships cascade at the database level
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	return requireRows(result, shared.ErrPlaylistNotFound, id)
}

// List retrieves all playlists ordered by title, excluding the reserved
// standalone-video playlist
func (r *PlaylistRepository) List() ([]*models.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE source_id != ? ORDER BY title ASC"
	return r.list(query, models.SentinelPlaylistID)
}

// ListDailyCheck retrieves playlists flagged for the daily refresh-and-download
// pass, excluding the reserved playlist
func (r *PlaylistRepository) ListDailyCheck() ([]*models.Playlist, error) {
	query := "SELECT " + playlistColumns + " FROM playlists WHERE check_every_day = 1 AND source_id != ? ORDER BY title ASC"
	return r.list(query, models.SentinelPlaylistID)
}

// EnsureSentinel returns the reserved playlist holding standalone videos,
// creating it on first use
func (r *PlaylistRepository) EnsureSentinel() (*models.Playlist, error) {
	playlist, err := r.GetBySourceID(models.SentinelPlaylistID)
	if err == nil {
		return playlist, nil
	}
	if !errors.Is(err, shared.ErrPlaylistNotFound) {
		return nil, err
	}

	playlist = &models.Playlist{
		SourceID:       models.SentinelPlaylistID,
		Title:          models.SentinelPlaylistTitle,
		DefaultFormat:  models.FormatAudio,
		DefaultQuality: models.QualityBest,
	}
	if err := r.Create(playlist); err != nil {
		return nil, err
	}

	return playlist, nil
}

// Counts aggregates membership totals for a playlist
func (r *PlaylistRepository) Counts(id string) (PlaylistCounts, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0)
		FROM playlist_videos
		WHERE playlist_id = ?
	`

	var counts PlaylistCounts
	err := r.db.QueryRow(query, string(models.StateDownloaded), id).Scan(&counts.Total, &counts.Downloaded)
	if err != nil {
		return PlaylistCounts{}, fmt.Errorf("failed to count memberships: %w", err)
	}

	return counts, nil
}

func (r *PlaylistRepository) list(query string, args ...any) ([]*models.Playlist, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []*models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return playlists, nil
}

// scanOne scans a single row into a [models.Playlist]
func (r *PlaylistRepository) scanOne(row *sql.Row) (*models.Playlist, error) {
	playlist := &models.Playlist{}
	var uploaderID sql.NullString

	err := row.Scan(
		&playlist.ID,
		&playlist.SourceID,
		&playlist.Title,
		&playlist.Description,
		&playlist.Thumbnail,
		&playlist.LastPublished,
		&playlist.Folder,
		&playlist.DownloadPath,
		&playlist.CheckEveryDay,
		&playlist.DefaultFormat,
		&playlist.DefaultQuality,
		&playlist.DefaultSubtitles,
		&uploaderID,
		&playlist.CreatedAt,
		&playlist.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.UploaderID = uploaderID.String
	return playlist, nil
}

func scanPlaylist(rows *sql.Rows) (*models.Playlist, error) {
	playlist := &models.Playlist{}
	var uploaderID sql.NullString

	err := rows.Scan(
		&playlist.ID,
		&playlist.SourceID,
		&playlist.Title,
		&playlist.Description,
		&playlist.Thumbnail,
		&playlist.LastPublished,
		&playlist.Folder,
		&playlist.DownloadPath,
		&playlist.CheckEveryDay,
		&playlist.DefaultFormat,
		&playlist.DefaultQuality,
		&playlist.DefaultSubtitles,
		&uploaderID,
		&playlist.CreatedAt,
		&playlist.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	playlist.UploaderID = uploaderID.String
	return playlist, nil
}

// nullString maps an empty string to SQL NULL for nullable foreign keys
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
