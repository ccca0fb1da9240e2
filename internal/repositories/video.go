package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// VideoRepository persists [models.Video] rows.
//
// Videos are globally unique by source_id; the same video shared by several
// playlists is stored once and linked through memberships.
type VideoRepository struct {
	db *sql.DB
}

// NewVideoRepository creates a new VideoRepository with the given database connection
func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, source_id, title, description, thumbnail, upload_date, duration,
	available, uploader_id, created_at, updated_at`

// Create inserts a new video with a generated ID
func (r *VideoRepository) Create(video *models.Video) error {
	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	video.ID = shared.GenerateID()
	video.CreatedAt = now
	video.UpdatedAt = now

	query := `
		INSERT INTO videos (id, source_id, title, description, thumbnail, upload_date, duration,
			available, uploader_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		video.ID,
		video.SourceID,
		video.Title,
		video.Description,
		video.Thumbnail,
		video.UploadDate,
		video.Duration,
		video.Available,
		nullString(video.UploaderID),
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}

	return nil
}

// Get retrieves a video by internal ID
func (r *VideoRepository) Get(id string) (*models.Video, error) {
	query := "SELECT " + videoColumns + " FROM videos WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySourceID retrieves a video by external source ID
func (r *VideoRepository) GetBySourceID(sourceID string) (*models.Video, error) {
	query := "SELECT " + videoColumns + " FROM videos WHERE source_id = ?"
	return r.scanOne(r.db.QueryRow(query, sourceID))
}

// Update overwrites a video's descriptive fields
func (r *VideoRepository) Update(video *models.Video) error {
	if err := video.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	video.UpdatedAt = time.Now()

	query := `
		UPDATE videos
		SET title = ?, description = ?, thumbnail = ?, upload_date = ?, duration = ?,
			available = ?, uploader_id = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		video.Title,
		video.Description,
		video.Thumbnail,
		video.UploadDate,
		video.Duration,
		video.Available,
		nullString(video.UploaderID),
		video.UpdatedAt,
		video.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	return requireRows(result, shared.ErrVideoNotFound, video.ID)
}

// Upsert creates the video if its source_id is unknown, otherwise refreshes
// the existing row's descriptive fields
func (r *VideoRepository) Upsert(video *models.Video) error {
	existing, err := r.GetBySourceID(video.SourceID)
	if errors.Is(err, shared.ErrVideoNotFound) {
		return r.Create(video)
	}
	if err != nil {
		return err
	}

	existing.Title = video.Title
	existing.Description = video.Description
	existing.Thumbnail = video.Thumbnail
	existing.UploadDate = video.UploadDate
	existing.Duration = video.Duration
	existing.Available = video.Available
	existing.UploaderID = video.UploaderID
	if err := r.Update(existing); err != nil {
		return err
	}

	*video = *existing
	return nil
}

// Delete removes a video by internal ID
func (r *VideoRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM videos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	return requireRows(result, shared.ErrVideoNotFound, id)
}

// List retrieves all videos ordered by upload date, newest first
func (r *VideoRepository) List() ([]*models.Video, error) {
	query := "SELECT " + videoColumns + " FROM videos ORDER BY upload_date DESC, title ASC"
	return r.list(query)
}

// Search retrieves videos whose title contains the given term,
// case-insensitively
func (r *VideoRepository) Search(term string) ([]*models.Video, error) {
	query := "SELECT " + videoColumns + " FROM videos WHERE title LIKE ? COLLATE NOCASE ORDER BY upload_date DESC"
	return r.list(query, "%"+term+"%")
}

// DeleteOrphans removes videos that no longer belong to any playlist,
// returning how many rows were removed
func (r *VideoRepository) DeleteOrphans() (int, error) {
	query := `
		DELETE FROM videos
		WHERE id NOT IN (SELECT video_id FROM playlist_videos)
	`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan videos: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return int(rows), nil
}

func (r *VideoRepository) list(query string, args ...any) ([]*models.Video, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []*models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return videos, nil
}

// scanOne scans a single row into a [models.Video]
func (r *VideoRepository) scanOne(row *sql.Row) (*models.Video, error) {
	video := &models.Video{}
	var uploaderID sql.NullString

	err := row.Scan(
		&video.ID,
		&video.SourceID,
		&video.Title,
		&video.Description,
		&video.Thumbnail,
		&video.UploadDate,
		&video.Duration,
		&video.Available,
		&uploaderID,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}

	video.UploaderID = uploaderID.String
	return video, nil
}

func scanVideo(rows *sql.Rows) (*models.Video, error) {
	video := &models.Video{}
	var uploaderID sql.NullString

	err := rows.Scan(
		&video.ID,
		&video.SourceID,
		&video.Title,
		&video.Description,
		&video.Thumbnail,
		&video.UploadDate,
		&video.Duration,
		&video.Available,
		&uploaderID,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}

	video.UploaderID = uploaderID.String
	return video, nil
}
