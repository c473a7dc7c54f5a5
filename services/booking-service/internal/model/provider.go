package model

import "time"

// Provider is addressed publicly by Slug and internally by ID.
type Provider struct {
	ID           string    `json:"id"`
	Slug         string    `json:"provider_id"`
	BusinessName string    `json:"business_name"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Customer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Slot is a bookable (date, time) pair. It is computed, never stored.
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}
