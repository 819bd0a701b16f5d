package repository

import (
	"context"
	"fmt"

	"map-pin-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db *pgxpool.Pool
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(db *pgxpool.Pool) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// CreateBatch inserts all photo rows of one attachment call in a single batch
func (r *PhotoRepository) CreateBatch(ctx context.Context, photos []models.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO photos (id, pin_id, url, caption, order_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, photo := range photos {
		batch.Queue(query,
			photo.ID, photo.PinID, photo.URL, photo.Caption, photo.OrderIndex, photo.CreatedAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range photos {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert photo rows: %w", err)
		}
	}
	return nil
}

// GetByPinID retrieves the photos of a pin in ascending order_index
func (r *PhotoRepository) GetByPinID(ctx context.Context, pinID string) ([]models.Photo, error) {
	query := `
		SELECT id, pin_id, url, caption, order_index, created_at
		FROM photos
		WHERE pin_id = $1
		ORDER BY order_index ASC
	`
	rows, err := r.db.Query(ctx, query, pinID)
	if err != nil {
		return nil, fmt.Errorf("failed to get photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var photo models.Photo
		err := rows.Scan(
			&photo.ID, &photo.PinID, &photo.URL, &photo.Caption,
			&photo.OrderIndex, &photo.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return photos, nil
}

// DeleteByIDs deletes photo rows and returns the URLs of the deleted rows
// for storage cleanup.
func (r *PhotoRepository) DeleteByIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `DELETE FROM photos WHERE id = ANY($1) RETURNING url`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to delete photos: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan deleted photo url: %w", err)
		}
		urls = append(urls, url)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deleted photos: %w", err)
	}

	return urls, nil
}

// UpdateOrder rewrites the caption and order_index of a kept photo
func (r *PhotoRepository) UpdateOrder(ctx context.Context, photoID string, caption *string, orderIndex int) error {
	query := `UPDATE photos SET caption = $1, order_index = $2 WHERE id = $3`
	_, err := r.db.Exec(ctx, query, caption, orderIndex, photoID)
	if err != nil {
		return fmt.Errorf("failed to update photo order: %w", err)
	}
	return nil
}
