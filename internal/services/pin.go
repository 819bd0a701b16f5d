package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"map-pin-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PinStore is the pin-row persistence the pin service depends on
type PinStore interface {
	Create(ctx context.Context, pin *models.Pin) error
	GetByID(ctx context.Context, id string) (*models.Pin, error)
	Update(ctx context.Context, pin *models.Pin) error
	Delete(ctx context.Context, id string) error
	ListWithPhotos(ctx context.Context) ([]models.PinWithPhotos, error)
}

// IdentityResolver resolves the active session's identity
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) (*models.User, error)
}

// Attacher uploads and links an ordered set of photos to a pin
type Attacher interface {
	Attach(ctx context.Context, pinID string, uploads []PhotoUpload) ([]models.Photo, error)
}

// ChangeNotifier is told after every successful mutation so connected map
// views re-fetch the visible pin set.
type ChangeNotifier interface {
	PinsChanged(action, pinID string)
}

// PinInput carries the mutable pin fields submitted by a client
type PinInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Rating      int     `json:"rating"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// PhotoSetEntry is one position of the desired photo set on update: either
// an existing photo kept (ID set) or a new file to upload (Upload set).
type PhotoSetEntry struct {
	ID      string
	Caption *string
	Upload  *PhotoUpload
}

// PinService translates pin intents into ordered persistence calls while
// enforcing the author-only mutation policy and pin/photo consistency.
type PinService struct {
	pins     PinStore
	photos   PhotoStore
	identity IdentityResolver
	pipeline Attacher
	storage  ObjectStorage
	notifier ChangeNotifier
	now      func() time.Time
}

// NewPinService creates a new pin service
func NewPinService(
	pins PinStore,
	photos PhotoStore,
	identity IdentityResolver,
	pipeline Attacher,
	storage ObjectStorage,
	notifier ChangeNotifier,
) *PinService {
	return &PinService{
		pins:     pins,
		photos:   photos,
		identity: identity,
		pipeline: pipeline,
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
	}
}

// List returns the visible pin set: all pins newest-first with their photos
// ascending by order index.
func (s *PinService) List(ctx context.Context) ([]models.PinWithPhotos, error) {
	return s.pins.ListWithPhotos(ctx)
}

// Create validates the input, resolves the author's identity, inserts the
// pin row and then runs the photo pipeline. If the pin insert fails nothing
// is uploaded. If a photo upload fails, the pin row stays and the returned
// pin accompanies the upload error so the caller sees the partial success.
func (s *PinService) Create(ctx context.Context, input PinInput, uploads []PhotoUpload) (*models.PinWithPhotos, error) {
	if err := validatePinInput(&input); err != nil {
		return nil, err
	}

	user, err := s.identity.ResolveIdentity(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pin := &models.Pin{
		ID:          uuid.New().String(),
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		Lat:         input.Lat,
		Lng:         input.Lng,
		AuthorID:    user.ID,
		Rating:      input.Rating,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to create pin: %w", err)
	}

	result := &models.PinWithPhotos{Pin: *pin, Photos: []models.Photo{}, Author: user}

	for i := range uploads {
		uploads[i].OrderIndex = i
	}
	photos, err := s.pipeline.Attach(ctx, pin.ID, uploads)
	if err != nil {
		// The pin row is persisted; surface the failed upload, do not
		// swallow it.
		s.notifier.PinsChanged("created", pin.ID)
		return result, err
	}
	if photos != nil {
		result.Photos = photos
	}

	log.Info().
		Str("pin_id", pin.ID).
		Str("author_id", user.ID).
		Int("photos", len(result.Photos)).
		Msg("Pin created")

	s.notifier.PinsChanged("created", pin.ID)
	return result, nil
}

// Update applies field changes and reconciles the pin's photo set with the
// desired one: removed photos are deleted (row plus best-effort storage
// cleanup), kept photos get their caption and order index rewritten to the
// new position, new files are uploaded and inserted at their position.
func (s *PinService) Update(ctx context.Context, pinID string, input PinInput, photoSet []PhotoSetEntry) (*models.PinWithPhotos, error) {
	if err := validatePinInput(&input); err != nil {
		return nil, err
	}

	user, err := s.identity.ResolveIdentity(ctx)
	if err != nil {
		return nil, err
	}

	pin, err := s.pins.GetByID(ctx, pinID)
	if err != nil {
		return nil, err
	}
	if !CanMutate(pin, user.ID, true) {
		return nil, ErrForbidden
	}

	pin.Title = input.Title
	pin.Description = input.Description
	pin.Category = input.Category
	pin.Rating = input.Rating
	pin.UpdatedAt = s.now()
	if err := s.pins.Update(ctx, pin); err != nil {
		return nil, fmt.Errorf("failed to update pin: %w", err)
	}

	existing, err := s.photos.GetByPinID(ctx, pinID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing photos: %w", err)
	}
	existingIDs := make(map[string]bool, len(existing))
	for _, photo := range existing {
		existingIDs[photo.ID] = true
	}

	kept := make(map[string]bool, len(photoSet))
	for _, entry := range photoSet {
		if entry.ID != "" {
			kept[entry.ID] = true
		}
	}

	var removed []string
	for _, photo := range existing {
		if !kept[photo.ID] {
			removed = append(removed, photo.ID)
		}
	}
	if len(removed) > 0 {
		urls, err := s.photos.DeleteByIDs(ctx, removed)
		if err != nil {
			return nil, fmt.Errorf("failed to delete removed photos: %w", err)
		}
		s.cleanupObjects(ctx, urls)
	}

	var uploads []PhotoUpload
	for position, entry := range photoSet {
		switch {
		case entry.ID != "":
			if !existingIDs[entry.ID] {
				return nil, fmt.Errorf("photo %s: %w", entry.ID, ErrNotFound)
			}
			if err := s.photos.UpdateOrder(ctx, entry.ID, entry.Caption, position); err != nil {
				return nil, fmt.Errorf("failed to reorder photo: %w", err)
			}
		case entry.Upload != nil:
			upload := *entry.Upload
			upload.Caption = entry.Caption
			upload.OrderIndex = position
			uploads = append(uploads, upload)
		}
	}

	if len(uploads) > 0 {
		if _, err := s.pipeline.Attach(ctx, pinID, uploads); err != nil {
			s.notifier.PinsChanged("updated", pinID)
			return nil, err
		}
	}

	photos, err := s.photos.GetByPinID(ctx, pinID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload photos: %w", err)
	}

	log.Info().
		Str("pin_id", pinID).
		Str("author_id", user.ID).
		Int("photos", len(photos)).
		Msg("Pin updated")

	s.notifier.PinsChanged("updated", pinID)
	return &models.PinWithPhotos{Pin: *pin, Photos: photos, Author: user}, nil
}

// Delete removes a pin and its photo rows after the authorization gate
// approves. Storage objects are cleaned up best-effort.
func (s *PinService) Delete(ctx context.Context, pinID string) error {
	user, err := s.identity.ResolveIdentity(ctx)
	if err != nil {
		return err
	}

	pin, err := s.pins.GetByID(ctx, pinID)
	if err != nil {
		return err
	}
	if !CanMutate(pin, user.ID, true) {
		return ErrForbidden
	}

	photos, err := s.photos.GetByPinID(ctx, pinID)
	if err != nil {
		return fmt.Errorf("failed to load pin photos: %w", err)
	}

	if err := s.pins.Delete(ctx, pinID); err != nil {
		return err
	}

	urls := make([]string, 0, len(photos))
	for _, photo := range photos {
		urls = append(urls, photo.URL)
	}
	s.cleanupObjects(ctx, urls)

	log.Info().
		Str("pin_id", pinID).
		Str("author_id", user.ID).
		Msg("Pin deleted")

	s.notifier.PinsChanged("deleted", pinID)
	return nil
}

// cleanupObjects deletes storage objects best-effort; a failure never blocks
// the primary operation.
func (s *PinService) cleanupObjects(ctx context.Context, urls []string) {
	for _, url := range urls {
		key, ok := s.storage.KeyFromURL(url)
		if !ok {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to delete photo object")
		}
	}
}

func validatePinInput(input *PinInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)

	if input.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if input.Description == "" {
		return &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if input.Rating < 1 || input.Rating > 5 {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if input.Lat < -90 || input.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	}
	if input.Lng < -180 || input.Lng > 180 {
		return &ValidationError{Field: "lng", Reason: "must be between -180 and 180"}
	}
	if input.Category == "" {
		input.Category = "General"
	}
	return nil
}
