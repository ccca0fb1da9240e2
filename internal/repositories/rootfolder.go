package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/SayWess/Musicarr/internal/models"
	"github.com/SayWess/Musicarr/internal/shared"
)

// RootFolderRepository persists [models.RootFolder] rows.
//
// At most one root folder is flagged as default; [RootFolderRepository.SetDefault]
// enforces the invariant transactionally.
type RootFolderRepository struct {
	db *sql.DB
}

// NewRootFolderRepository creates a new RootFolderRepository with the given database connection
func NewRootFolderRepository(db *sql.DB) *RootFolderRepository {
	return &RootFolderRepository{db: db}
}

const rootFolderColumns = "id, path, is_default, created_at, updated_at"

// Create inserts a new root folder with a generated ID. The first folder
// created becomes the default automatically.
func (r *RootFolderRepository) Create(folder *models.RootFolder) error {
	if err := folder.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM root_folders").Scan(&count); err != nil {
		return fmt.Errorf("failed to count root folders: %w", err)
	}
	if count == 0 {
		folder.IsDefault = true
	}

	now := time.Now()
	folder.ID = shared.GenerateID()
	folder.CreatedAt = now
	folder.UpdatedAt = now

	query := `
		INSERT INTO root_folders (id, path, is_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, folder.ID, folder.Path, folder.IsDefault, folder.CreatedAt, folder.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert root folder: %w", err)
	}

	return nil
}

// Get retrieves a root folder by internal ID
func (r *RootFolderRepository) Get(id string) (*models.RootFolder, error) {
	query := "SELECT " + rootFolderColumns + " FROM root_folders WHERE id = ?"
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByPath retrieves a root folder by its path
func (r *RootFolderRepository) GetByPath(path string) (*models.RootFolder, error) {
	query := "SELECT " + rootFolderColumns + " FROM root_folders WHERE path = ?"
	return r.scanOne(r.db.QueryRow(query, path))
}

// GetDefault retrieves the default root folder. Returns
// [shared.ErrNoRootFolder] when none is configured.
func (r *RootFolderRepository) GetDefault() (*models.RootFolder, error) {
	query := "SELECT " + rootFolderColumns + " FROM root_folders WHERE is_default = 1"

	folder, err := r.scanOne(r.db.QueryRow(query))
	if err == shared.ErrNotFound {
		return nil, shared.ErrNoRootFolder
	}
	return folder, err
}

// SetDefault makes the given root folder the single default
func (r *RootFolderRepository) SetDefault(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	if _, err := tx.Exec("UPDATE root_folders SET is_default = 0, updated_at = ? WHERE is_default = 1", now); err != nil {
		return fmt.Errorf("failed to clear default root folder: %w", err)
	}

	result, err := tx.Exec("UPDATE root_folders SET is_default = 1, updated_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("failed to set default root folder: %w", err)
	}
	if err := requireRows(result, shared.ErrNotFound, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit default root folder: %w", err)
	}

	return nil
}

// Delete removes a root folder by internal ID
func (r *RootFolderRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM root_folders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete root folder: %w", err)
	}

	return requireRows(result, shared.ErrNotFound, id)
}

// List retrieves all root folders, default first
func (r *RootFolderRepository) List() ([]*models.RootFolder, error) {
	query := "SELECT " + rootFolderColumns + " FROM root_folders ORDER BY is_default DESC, path ASC"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query root folders: %w", err)
	}
	defer rows.Close()

	var folders []*models.RootFolder
	for rows.Next() {
		folder := &models.RootFolder{}
		err := rows.Scan(&folder.ID, &folder.Path, &folder.IsDefault, &folder.CreatedAt, &folder.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan root folder: %w", err)
		}
		folders = append(folders, folder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return folders, nil
}

// scanOne scans a single row into a [models.RootFolder]
func (r *RootFolderRepository) scanOne(row *sql.Row) (*models.RootFolder, error) {
	folder := &models.RootFolder{}
	err := row.Scan(&folder.ID, &folder.Path, &folder.IsDefault, &folder.CreatedAt, &folder.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan root folder: %w", err)
	}

	return folder, nil
}
