package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"time"

	"map-pin-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PhotoStore is the photo-row persistence the pipeline and pin service use
type PhotoStore interface {
	CreateBatch(ctx context.Context, photos []models.Photo) error
	GetByPinID(ctx context.Context, pinID string) ([]models.Photo, error)
	DeleteByIDs(ctx context.Context, ids []string) ([]string, error)
	UpdateOrder(ctx context.Context, photoID string, caption *string, orderIndex int) error
}

// PhotoUpload is one file entering the attachment pipeline. OrderIndex is
// the row's display position; the pin service assigns it from the file's
// position in the submitted set.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Caption     *string
	Body        io.Reader
	Size        int64
	OrderIndex  int
}

// AttachmentPipeline uploads an ordered set of photo files and links them to
// a pin. Uploads run sequentially in input order; the first failure aborts
// the rest and reports which file failed. Photo rows are inserted in one
// batch only after every upload in the call succeeded, so a row never
// references an object that did not finish uploading.
type AttachmentPipeline struct {
	photos        PhotoStore
	storage       ObjectStorage
	uploadTimeout time.Duration
	now           func() time.Time
}

// NewAttachmentPipeline creates a new attachment pipeline
func NewAttachmentPipeline(photos PhotoStore, storage ObjectStorage, uploadTimeout time.Duration) *AttachmentPipeline {
	return &AttachmentPipeline{
		photos:        photos,
		storage:       storage,
		uploadTimeout: uploadTimeout,
		now:           time.Now,
	}
}

// Attach uploads the files in order and inserts their photo rows. On
// failure the objects already uploaded in this call are left in storage;
// that leak is accepted, orphan rows are not.
func (p *AttachmentPipeline) Attach(ctx context.Context, pinID string, uploads []PhotoUpload) ([]models.Photo, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	photos := make([]models.Photo, 0, len(uploads))
	for i, upload := range uploads {
		key := p.objectKey(pinID, i, upload.Filename)

		log.Debug().
			Str("pin_id", pinID).
			Int("index", i).
			Str("key", key).
			Msg("Uploading photo")

		url, err := p.uploadOne(ctx, key, upload)
		if err != nil {
			log.Error().
				Err(err).
				Str("pin_id", pinID).
				Int("index", i).
				Str("filename", upload.Filename).
				Msg("Photo upload failed, aborting remaining uploads")
			return nil, &UploadError{Index: i, Filename: upload.Filename, Err: err}
		}

		photos = append(photos, models.Photo{
			ID:         uuid.New().String(),
			PinID:      pinID,
			URL:        url,
			Caption:    upload.Caption,
			OrderIndex: upload.OrderIndex,
			CreatedAt:  p.now(),
		})
	}

	if err := p.photos.CreateBatch(ctx, photos); err != nil {
		return nil, fmt.Errorf("failed to save photo rows: %w", err)
	}

	return photos, nil
}

// uploadOne uploads a single file under the per-file timeout and returns
// the object's public URL.
func (p *AttachmentPipeline) uploadOne(ctx context.Context, key string, upload PhotoUpload) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	if err := p.storage.Put(uploadCtx, key, upload.Body, upload.Size, contentType); err != nil {
		if uploadCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("upload timed out after %s: %w", p.uploadTimeout, err)
		}
		return "", err
	}

	return p.storage.PublicURL(key), nil
}

// objectKey builds a storage key unique per pin, time, index and random
// suffix: {pin_id}/{millis}-{index}-{suffix}{ext}
func (p *AttachmentPipeline) objectKey(pinID string, index int, filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%s/%d-%d-%s%s", pinID, p.now().UnixMilli(), index, randSuffix(), ext)
}

func randSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "000000"
	}
	return hex.EncodeToString(b)
}
