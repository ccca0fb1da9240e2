package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// UploaderRepository persists [models.Uploader] rows.
//
// Uploaders are keyed internally by id but looked up by their external
// channel_id, which is unique.
type UploaderRepository struct {
	db *sql.DB
}

// NewUploaderRepository creates a new UploaderRepository with the given database connection
func NewUploaderRepository(db *sql.DB) *UploaderRepository {
	return &UploaderRepository{db: db}
}

const uploaderColumns = "id, channel_id, name, channel_url, source_id, url, created_at, updated_at"

// Create inserts a new uploader with a generated ID
func (r *UploaderRepository) Create(uploader *models.Uploader) error {
	if err := uploader.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	uploader.ID = shared.GenerateID()
	uploader.CreatedAt = now
	uploader.UpdatedAt = now

	query := `
		INSERT INTO uploaders (id, channel_id, name, channel_url, source_id, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		uploader.ID,
		uploader.ChannelID,
		uploader.Name,
		uploader.ChannelURL,
		uploader.SourceID,
		uploader.URL,
		uploader.CreatedAt,
		uploader.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert uploader: %w", err)
	}

	return nil
}

// Get retrieves an uploader by internal ID
func (r *UploaderRepository) Get(id string) (*models.Uploader, error) {
	query := "SELECT " + uploaderColumns + " FROM uploaders WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByChannelID retrieves an uploader by external channel ID
func (r *UploaderRepository) GetByChannelID(channelID string) (*models.Uploader, error) {
	query := "SELECT " + uploaderColumns + " FROM uploaders WHERE channel_id = ?"
	return r.scanOne(r.db.QueryRow(query, channelID))
}

// Update modifies an existing uploader's descriptive fields
func (r *UploaderRepository) Update(uploader *models.Uploader) error {
	if err := uploader.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	uploader.UpdatedAt = time.Now()

	query := `
		UPDATE uploaders
		SET name = ?, channel_url = ?, source_id = ?, url = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		uploader.Name,
		uploader.ChannelURL,
		uploader.SourceID,
		uploader.URL,
		uploader.UpdatedAt,
		uploader.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update uploader: %w", err)
	}

	return requireRows(result, shared.ErrUploaderNotFound, uploader.ID)
}

// Upsert creates the uploader if its channel_id is unknown, otherwise
// refreshes the existing row's descriptive fields. It reports whether a new
// row was created so callers can trigger one-time work like avatar fetches.
func (r *UploaderRepository) Upsert(uploader *models.Uploader) (created bool, err error) {
	existing, err := r.GetByChannelID(uploader.ChannelID)
	if errors.Is(err, shared.ErrUploaderNotFound) {
		if err := r.Create(uploader); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	existing.Name = uploader.Name
	existing.ChannelURL = uploader.ChannelURL
	existing.SourceID = uploader.SourceID
	existing.URL = uploader.URL
	if err := r.Update(existing); err != nil {
		return false, err
	}

	*uploader = *existing
	return false, nil
}

// List retrieves all uploaders ordered by name
func (r *UploaderRepository) List() ([]*models.Uploader, error) {
	query := "SELECT " + uploaderColumns + " FROM uploaders ORDER BY name ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploaders: %w", err)
	}
	defer rows.Close()

	var uploaders []*models.Uploader
	for rows.Next() {
		uploader := &models.Uploader{}
		err := rows.Scan(
			&uploader.ID,
			&uploader.ChannelID,
			&uploader.Name,
			&uploader.ChannelURL,
			&uploader.SourceID,
			&uploader.URL,
			&uploader.CreatedAt,
			&uploader.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan uploader: %w", err)
		}
		uploaders = append(uploaders, uploader)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return uploaders, nil
}

// scanOne scans a single row into a [models.Uploader]
func (r *UploaderRepository) scanOne(row *sql.Row) (*models.Uploader, error) {
	uploader := &models.Uploader{}
	err := row.Scan(
		&uploader.ID,
		&uploader.ChannelID,
		&uploader.Name,
		&uploader.ChannelURL,
		&uploader.SourceID,
		&uploader.URL,
		&uploader.CreatedAt,
		&uploader.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, shared.ErrUploaderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan uploader: %w", err)
	}

	return uploader, nil
}
