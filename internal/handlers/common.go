package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"map-pin-backend/internal/services"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Index *int   `json:"index,omitempty"`
	File  string `json:"file,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, payload interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Every error reaches the client as a readable message; nothing is
// swallowed.
func respondServiceError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, ErrorResponse{Error: validationErr.Error(), Field: validationErr.Field}, http.StatusBadRequest)
		return
	}

	var uploadErr *services.UploadError
	if errors.As(err, &uploadErr) {
		index := uploadErr.Index
		respondJSON(w, ErrorResponse{
			Error: uploadErr.Error(),
			Index: &index,
			File:  uploadErr.Filename,
		}, http.StatusBadGateway)
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionExpired):
		respondError(w, services.ErrSessionExpired.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrAuthRequired):
		respondError(w, "authentication required", http.StatusUnauthorized)
	case errors.Is(err, services.ErrForbidden):
		respondError(w, "you can only modify your own pins", http.StatusForbidden)
	case errors.Is(err, services.ErrNotFound):
		respondError(w, "not found", http.StatusNotFound)
	case errors.Is(err, services.ErrEmailTaken):
		respondError(w, services.ErrEmailTaken.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, services.ErrInvalidCredentials.Error(), http.StatusUnauthorized)
	default:
		respondError(w, "internal server error", http.StatusInternalServerError)
	}
}
