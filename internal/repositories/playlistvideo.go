package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// PlaylistVideoRepository persists [models.PlaylistVideo] rows, the junction
// between playlists and videos.
//
// Each membership carries the per-playlist download state machine and the
// optional per-membership overrides of the playlist's download policy.
type PlaylistVideoRepository struct {
	db *sql.DB
}

// NewPlaylistVideoRepository creates a new PlaylistVideoRepository with the given database connection
func NewPlaylistVideoRepository(db *sql.DB) *PlaylistVideoRepository {
	return &PlaylistVideoRepository{db: db}
}

const membershipColumns = `id, playlist_id, video_id, state, format, quality, subtitles,
	custom_title, custom_folder, created_at, updated_at`

// Create inserts a new membership in state IDLE unless a state is already set
func (r *PlaylistVideoRepository) Create(pv *models.PlaylistVideo) error {
	if pv.State == "" {
		pv.State = models.StateIdle
	}
	if err := pv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	pv.ID = shared.GenerateID()
	pv.CreatedAt = now
	pv.UpdatedAt = now

	query := `
		INSERT INTO playlist_videos (id, playlist_id, video_id, state, format, quality, subtitles,
			custom_title, custom_folder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		pv.ID,
		pv.PlaylistID,
		pv.VideoID,
		string(pv.State),
		formatPtr(pv.Format),
		qualityPtr(pv.Quality),
		pv.Subtitles,
		pv.CustomTitle,
		pv.CustomFolder,
		pv.CreatedAt,
		pv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert membership: %w", err)
	}

	return nil
}

// Ensure creates the membership if the playlist/video pair is not linked yet.
// Existing memberships are returned unchanged, keeping membership creation
// idempotent across repeated reconciliations.
func (r *PlaylistVideoRepository) Ensure(playlistID, videoID string) (*models.PlaylistVideo, error) {
	existing, err := r.GetByPair(playlistID, videoID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrMembershipNotFound) {
		return nil, err
	}

	pv := &models.PlaylistVideo{PlaylistID: playlistID, VideoID: videoID, State: models.StateIdle}
	if err := r.Create(pv); err != nil {
		return nil, err
	}

	return pv, nil
}

// Get retrieves a membership by internal ID
func (r *PlaylistVideoRepository) Get(id string) (*models.PlaylistVideo, error) {
	query := "SELECT " + membershipColumns + " FROM playlist_videos WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByPair retrieves the membership linking a playlist to a video
func (r *PlaylistVideoRepository) GetByPair(playlistID, videoID string) (*models.PlaylistVideo, error) {
	query := "SELECT " + membershipColumns + " FROM playlist_videos WHERE playlist_id = ? AND video_id = ?"
	return r.scanOne(r.db.QueryRow(query, playlistID, videoID))
}

// ListByPlaylist retrieves all memberships of a playlist, oldest link first
func (r *PlaylistVideoRepository) ListByPlaylist(playlistID string) ([]*models.PlaylistVideo, error) {
	query := "SELECT " + membershipColumns + " FROM playlist_videos WHERE playlist_id = ? ORDER BY created_at ASC, id ASC"
	return r.list(query, playlistID)
}

// ListByState retrieves memberships of a playlist in the given state
func (r *PlaylistVideoRepository) ListByState(playlistID string, state models.DownloadState) ([]*models.PlaylistVideo, error) {
	query := "SELECT " + membershipColumns + " FROM playlist_videos WHERE playlist_id = ? AND state = ? ORDER BY created_at ASC, id ASC"
	return r.list(query, playlistID, string(state))
}

// SetState moves a membership to the given download state
func (r *PlaylistVideoRepository) SetState(id string, state models.DownloadState) error {
	if _, err := models.ParseState(string(state)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := "UPDATE playlist_videos SET state = ?, updated_at = ? WHERE id = ?"

	result, err := r.db.Exec(query, string(state), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update membership state: %w", err)
	}

	return requireRows(result, shared.ErrMembershipNotFound, id)
}

// UpdateOverrides replaces a membership's per-video policy overrides
func (r *PlaylistVideoRepository) UpdateOverrides(pv *models.PlaylistVideo) error {
	if err := pv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	pv.UpdatedAt = time.Now()

	query := `
		UPDATE playlist_videos
		SET format = ?, quality = ?, subtitles = ?, custom_title = ?, custom_folder = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		formatPtr(pv.Format),
		qualityPtr(pv.Quality),
		pv.Subtitles,
		pv.CustomTitle,
		pv.CustomFolder,
		pv.UpdatedAt,
		pv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership overrides: %w", err)
	}

	return requireRows(result, shared.ErrMembershipNotFound, pv.ID)
}

// Delete removes a membership by internal ID
func (r *PlaylistVideoRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM playlist_videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	return requireRows(result, shared.ErrMembershipNotFound, id)
}

// ResetDownloading moves memberships of a playlist out of DOWNLOADING back to
// IDLE, skipping the given membership ids. Used to recover rows left behind
// by an interrupted run, where the skipped ids are the downloads still live.
func (r *PlaylistVideoRepository) ResetDownloading(playlistID string, keep []string) (int, error) {
	query := "UPDATE playlist_videos SET state = ?, updated_at = ? WHERE playlist_id = ? AND state = ?"
	args := []any{string(models.StateIdle), time.Now(), playlistID, string(models.StateDownloading)}

	if len(keep) > 0 {
		query += " AND id NOT IN (?" + strings.Repeat(", ?", len(keep)-1) + ")"
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reset downloading memberships: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

func (r *PlaylistVideoRepository) list(query string, args ...any) ([]*models.PlaylistVideo, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.PlaylistVideo
	for rows.Next() {
		pv, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, pv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return memberships, nil
}

// scanOne scans a single row into a [models.PlaylistVideo]
func (r *PlaylistVideoRepository) scanOne(row *sql.Row) (*models.PlaylistVideo, error) {
	pv := &models.PlaylistVideo{}
	var format, quality, customTitle, customFolder sql.NullString
	var subtitles sql.NullBool

	err := row.Scan(
		&pv.ID,
		&pv.PlaylistID,
		&pv.VideoID,
		&pv.State,
		&format,
		&quality,
		&subtitles,
		&customTitle,
		&customFolder,
		&pv.CreatedAt,
		&pv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	applyNullables(pv, format, quality, subtitles, customTitle, customFolder)
	return pv, nil
}

func scanMembership(rows *sql.Rows) (*models.PlaylistVideo, error) {
	pv := &models.PlaylistVideo{}
	var format, quality, customTitle, customFolder sql.NullString
	var subtitles sql.NullBool

	err := rows.Scan(
		&pv.ID,
		&pv.PlaylistID,
		&pv.VideoID,
		&pv.State,
		&format,
		&quality,
		&subtitles,
		&customTitle,
		&customFolder,
		&pv.CreatedAt,
		&pv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}

	applyNullables(pv, format, quality, subtitles, customTitle, customFolder)
	return pv, nil
}

func applyNullables(pv *models.PlaylistVideo, format, quality sql.NullString, subtitles sql.NullBool, customTitle, customFolder sql.NullString) {
	if format.Valid {
		f := models.DownloadFormat(format.String)
		pv.Format = &f
	}
	if quality.Valid {
		q := models.Quality(quality.String)
		pv.Quality = &q
	}
	if subtitles.Valid {
		s := subtitles.Bool
		pv.Subtitles = &s
	}
	if customTitle.Valid {
		t := customTitle.String
		pv.CustomTitle = &t
	}
	if customFolder.Valid {
		f := customFolder.String
		pv.CustomFolder = &f
	}
}

// formatPtr converts an optional format to its nullable column value
func formatPtr(f *models.DownloadFormat) any {
	if f == nil {
		return nil
	}
	return string(*f)
}

// qualityPtr converts an optional quality to its nullable column value
func qualityPtr(q *models.Quality) any {
	if q == nil {
		return nil
	}
	return string(*q)
}
