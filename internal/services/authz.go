package services

import "map-pin-backend/internal/models"

// CanMutate reports whether the current identity may edit or delete a pin.
// Only the pin's author may mutate it; there is no role hierarchy.
func CanMutate(pin *models.Pin, currentUserID string, isAuthenticated bool) bool {
	if pin == nil || !isAuthenticated || currentUserID == "" {
		return false
	}
	return pin.AuthorID == currentUserID
}
