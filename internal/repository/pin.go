package repository

import (
	"context"
	"errors"
	"fmt"

	"map-pin-backend/internal/models"
	"map-pin-backend/internal/services"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PinRepository handles database operations for pins
type PinRepository struct {
	db *pgxpool.Pool
}

// NewPinRepository creates a new pin repository
func NewPinRepository(db *pgxpool.Pool) *PinRepository {
	return &PinRepository{db: db}
}

// Create creates a new pin
func (r *PinRepository) Create(ctx context.Context, pin *models.Pin) error {
	query := `
		INSERT INTO pins (id, title, description, category, lat, lng, author_id, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		pin.ID, pin.Title, pin.Description, pin.Category, pin.Lat, pin.Lng,
		pin.AuthorID, pin.Rating, pin.CreatedAt, pin.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pin: %w", err)
	}
	return nil
}

// GetByID retrieves a pin by ID
func (r *PinRepository) GetByID(ctx context.Context, id string) (*models.Pin, error) {
	query := `
		SELECT id, title, description, category, lat, lng, author_id, rating, created_at, updated_at
		FROM pins
		WHERE id = $1
	`
	var pin models.Pin
	err := r.db.QueryRow(ctx, query, id).Scan(
		&pin.ID, &pin.Title, &pin.Description, &pin.Category, &pin.Lat, &pin.Lng,
		&pin.AuthorID, &pin.Rating, &pin.CreatedAt, &pin.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, services.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pin: %w", err)
	}
	return &pin, nil
}

// Update updates the mutable fields of a pin. AuthorID is never touched.
func (r *PinRepository) Update(ctx context.Context, pin *models.Pin) error {
	query := `
		UPDATE pins
		SET title = $1, description = $2, category = $3, rating = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := r.db.Exec(ctx, query,
		pin.Title, pin.Description, pin.Category, pin.Rating, pin.UpdatedAt, pin.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return services.ErrNotFound
	}
	return nil
}

// Delete deletes a pin and its photo rows, so no orphan photo can survive
// the pin it belongs to.
func (r *PinRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM photos WHERE pin_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete pin photos: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM pins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return services.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// ListWithPhotos retrieves all pins newest-first, each with its photos in
// ascending order_index and its author profile.
func (r *PinRepository) ListWithPhotos(ctx context.Context) ([]models.PinWithPhotos, error) {
	query := `
		SELECT p.id, p.title, p.description, p.category, p.lat, p.lng,
		       p.author_id, p.rating, p.created_at, p.updated_at,
		       u.id, u.email, u.name, u.created_at, u.updated_at
		FROM pins p
		JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	defer rows.Close()

	var pins []models.PinWithPhotos
	index := make(map[string]int)
	for rows.Next() {
		var pin models.PinWithPhotos
		var author models.User
		err := rows.Scan(
			&pin.ID, &pin.Title, &pin.Description, &pin.Category, &pin.Lat, &pin.Lng,
			&pin.AuthorID, &pin.Rating, &pin.CreatedAt, &pin.UpdatedAt,
			&author.ID, &author.Email, &author.Name, &author.CreatedAt, &author.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		pin.Author = &author
		pin.Photos = []models.Photo{}
		index[pin.ID] = len(pins)
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pins: %w", err)
	}

	photoQuery := `
		SELECT id, pin_id, url, caption, order_index, created_at
		FROM photos
		ORDER BY pin_id, order_index ASC
	`
	photoRows, err := r.db.Query(ctx, photoQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer photoRows.Close()

	for photoRows.Next() {
		var photo models.Photo
		err := photoRows.Scan(
			&photo.ID, &photo.PinID, &photo.URL, &photo.Caption,
			&photo.OrderIndex, &photo.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		if i, ok := index[photo.PinID]; ok {
			pins[i].Photos = append(pins[i].Photos, photo)
		}
	}
	if err := photoRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return pins, nil
}
