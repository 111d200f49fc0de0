package model

import (
	"time"

	"github.com/google/uuid"
)

// Account is the tenant boundary. Every other entity belongs to exactly one
// account; cross-account references are never valid.
type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
