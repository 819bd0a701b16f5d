package models

import "time"

// User represents a profile row mirroring an authenticated identity.
// ID always equals the identity subsystem's user identifier.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pin represents a geotagged point of interest on the map
type Pin struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	AuthorID    string    `json:"author_id"`
	Rating      int       `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Photo represents an ordered image attachment belonging to one pin.
// Display order follows ascending OrderIndex.
type Photo struct {
	ID         string    `json:"id"`
	PinID      string    `json:"pin_id"`
	URL        string    `json:"url"`
	Caption    *string   `json:"caption,omitempty"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
}

// PinWithPhotos is a pin together with its ordered photos and author profile
type PinWithPhotos struct {
	Pin
	Photos []Photo `json:"photos"`
	Author *User   `json:"author,omitempty"`
}
