package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"map-pin-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxUploadMemory = 32 << 20 // 32 MB

// PinHandler handles pin-related HTTP requests
type PinHandler struct {
	pinService *services.PinService
}

// NewPinHandler creates a new pin handler
func NewPinHandler(pinService *services.PinService) *PinHandler {
	return &PinHandler{pinService: pinService}
}

// photoSetEntry is one position of the desired photo set in an update
// request: either the id of a kept photo or the index of an uploaded file.
type photoSetEntry struct {
	ID      string  `json:"id,omitempty"`
	File    *int    `json:"file,omitempty"`
	Caption *string `json:"caption,omitempty"`
}

// ListPins handles GET /api/v1/pins
func (h *PinHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.pinService.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list pins")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, map[string]interface{}{
		"pins":  pins,
		"total": len(pins),
	}, http.StatusOK)
}

// CreatePin handles POST /api/v1/pins. The request is multipart: pin fields
// plus zero or more files under "photos" in display order, with an optional
// "captions" JSON array parallel to the files.
func (h *PinHandler) CreatePin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	input, err := parsePinInput(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var captions []*string
	if raw := r.FormValue("captions"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &captions); err != nil {
			respondError(w, "Invalid captions field", http.StatusBadRequest)
			return
		}
	}

	uploads, closeFiles, err := openUploads(r.MultipartForm.File["photos"], captions)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer closeFiles()

	pin, err := h.pinService.Create(r.Context(), input, uploads)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create pin")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, pin, http.StatusCreated)
}

// UpdatePin handles PATCH /api/v1/pins/{pin_id}. The "photo_set" field is a
// JSON array describing the desired photo set in display order; new files
// travel under "photos" and are referenced by index.
func (h *PinHandler) UpdatePin(w http.ResponseWriter, r *http.Request) {
	pinID := chi.URLParam(r, "pin_id")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	input, err := parsePinInput(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var entries []photoSetEntry
	if raw := r.FormValue("photo_set"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			respondError(w, "Invalid photo_set field", http.StatusBadRequest)
			return
		}
	}

	files := r.MultipartForm.File["photos"]
	uploads, closeFiles, err := openUploads(files, nil)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer closeFiles()

	photoSet := make([]services.PhotoSetEntry, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.ID != "":
			photoSet = append(photoSet, services.PhotoSetEntry{ID: entry.ID, Caption: entry.Caption})
		case entry.File != nil:
			if *entry.File < 0 || *entry.File >= len(uploads) {
				respondError(w, fmt.Sprintf("photo_set references missing file %d", *entry.File), http.StatusBadRequest)
				return
			}
			upload := uploads[*entry.File]
			photoSet = append(photoSet, services.PhotoSetEntry{Caption: entry.Caption, Upload: &upload})
		default:
			respondError(w, "photo_set entries need an id or a file index", http.StatusBadRequest)
			return
		}
	}

	pin, err := h.pinService.Update(r.Context(), pinID, input, photoSet)
	if err != nil {
		log.Error().Err(err).Str("pin_id", pinID).Msg("Failed to update pin")
		respondServiceError(w, err)
		return
	}

	respondJSON(w, pin, http.StatusOK)
}

// DeletePin handles DELETE /api/v1/pins/{pin_id}
func (h *PinHandler) DeletePin(w http.ResponseWriter, r *http.Request) {
	pinID := chi.URLParam(r, "pin_id")

	if err := h.pinService.Delete(r.Context(), pinID); err != nil {
		log.Error().Err(err).Str("pin_id", pinID).Msg("Failed to delete pin")
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parsePinInput(r *http.Request) (services.PinInput, error) {
	input := services.PinInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
	}

	if raw := r.FormValue("rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			return input, fmt.Errorf("rating must be a number")
		}
		input.Rating = rating
	}
	if raw := r.FormValue("lat"); raw != "" {
		lat, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, fmt.Errorf("lat must be a number")
		}
		input.Lat = lat
	}
	if raw := r.FormValue("lng"); raw != "" {
		lng, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return input, fmt.Errorf("lng must be a number")
		}
		input.Lng = lng
	}

	return input, nil
}

// openUploads opens the submitted files in order and pairs them with their
// captions. The returned func closes every opened file.
func openUploads(files []*multipart.FileHeader, captions []*string) ([]services.PhotoUpload, func(), error) {
	uploads := make([]services.PhotoUpload, 0, len(files))
	var opened []multipart.File

	closeFiles := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for i, header := range files {
		file, err := header.Open()
		if err != nil {
			closeFiles()
			return nil, func() {}, fmt.Errorf("failed to open uploaded file %s", header.Filename)
		}
		opened = append(opened, file)

		upload := services.PhotoUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
			Size:        header.Size,
		}
		if i < len(captions) {
			upload.Caption = captions[i]
		}
		uploads = append(uploads, upload)
	}

	return uploads, closeFiles, nil
}
